package bot

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/xssautomation/xssbot/internal/model"
	"github.com/xssautomation/xssbot/internal/orchestrator"
)

// Default bot settings.
const (
	// DefaultPollTimeout is the long-poll timeout for getUpdates.
	DefaultPollTimeout = 60 * time.Second

	// DefaultScanInterval and DefaultScanBurst allow a user three scans back
	// to back and one more every five minutes.
	DefaultScanInterval = 5 * time.Minute
	DefaultScanBurst    = 3
)

// ErrUpdatesClosed is returned by Run when the update channel closes
// before ctx is done.
var ErrUpdatesClosed = errors.New("telegram update channel closed")

// API is the part of the Telegram Bot API the bot uses.
// *tgbotapi.BotAPI satisfies this interface.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Scanner runs scans and answers report queries.
// *orchestrator.Orchestrator satisfies this interface.
type Scanner interface {
	Scan(ctx context.Context, req model.ScanRequest, sink model.ProgressSink) *orchestrator.Result
	Summary(ctx context.Context, identity model.Identity, domain model.Domain) (model.Summary, bool, error)
	Report(ctx context.Context, identity model.Identity, domain model.Domain) (*model.Report, bool, error)
	DrillDown(ctx context.Context, identity model.Identity, domain model.Domain, kind model.ArtifactKind) ([]string, bool, error)
}

// Metrics receives bot-level events. *metrics.Recorder satisfies this
// interface.
type Metrics interface {
	UpdateHandled(kind string)
	ScanRejected(cause string)
}

type nopMetrics struct{}

func (nopMetrics) UpdateHandled(string) {}
func (nopMetrics) ScanRejected(string)  {}

// Update kinds reported to Metrics.UpdateHandled.
const (
	updateCommand  = "command"
	updateText     = "text"
	updateCallback = "callback"
	updateOther    = "other"
)

// Bot serves Telegram updates.
type Bot struct {
	api     API
	scanner Scanner
	guard   *guard
	metrics Metrics
	logger  *slog.Logger
	version string

	pollTimeout  time.Duration
	scanInterval time.Duration
	scanBurst    int

	wg sync.WaitGroup
}

// Option configures a Bot.
type Option func(*Bot)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		b.logger = logger
	}
}

// WithMetrics sets the metrics receiver.
func WithMetrics(m Metrics) Option {
	return func(b *Bot) {
		if m != nil {
			b.metrics = m
		}
	}
}

// WithPollTimeout sets the long-poll timeout.
func WithPollTimeout(d time.Duration) Option {
	return func(b *Bot) {
		b.pollTimeout = d
	}
}

// WithRateLimit allows burst scans per user, refilled one per interval.
// A zero interval disables rate limiting.
func WithRateLimit(interval time.Duration, burst int) Option {
	return func(b *Bot) {
		b.scanInterval = interval
		b.scanBurst = burst
	}
}

// WithVersion sets the version written into exported reports.
func WithVersion(version string) Option {
	return func(b *Bot) {
		b.version = version
	}
}

// New creates a Bot.
func New(api API, scanner Scanner, opts ...Option) *Bot {
	b := &Bot{
		api:          api,
		scanner:      scanner,
		metrics:      nopMetrics{},
		version:      "(devel)",
		pollTimeout:  DefaultPollTimeout,
		scanInterval: DefaultScanInterval,
		scanBurst:    DefaultScanBurst,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	b.guard = newGuard(b.scanInterval, b.scanBurst)
	return b
}

// Run receives updates until ctx is done, then waits for the handlers in
// flight. Scans still running see ctx canceled and finish as failed.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.pollTimeout / time.Second)
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("bot started", "poll_timeout", b.pollTimeout)
	defer func() {
		b.wg.Wait()
		b.logger.Info("bot stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return ErrUpdatesClosed
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}

// HandleUpdate dispatches one update. A panic in a handler is logged and
// does not stop the bot.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("update handler panicked",
				"update_id", update.UpdateID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.metrics.UpdateHandled(updateCallback)
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.metrics.UpdateHandled(updateCommand)
		b.handleCommand(ctx, update.Message)
	case update.Message != nil && update.Message.Text != "":
		b.metrics.UpdateHandled(updateText)
		b.handleText(ctx, update.Message)
	default:
		b.metrics.UpdateHandled(updateOther)
	}
}

// identityOf returns the requester identity for a Telegram user.
func identityOf(user *tgbotapi.User, chat *tgbotapi.Chat) model.Identity {
	if user != nil {
		return model.Identity(strconv.FormatInt(user.ID, 10))
	}
	return model.Identity(strconv.FormatInt(chat.ID, 10))
}

// reply sends text to chatID, split to the message size limit.
func (b *Bot) reply(chatID int64, text string, markup any) {
	chunks := splitText(text)
	for i, chunk := range chunks {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.DisableWebPagePreview = true
		if i == len(chunks)-1 && markup != nil {
			msg.ReplyMarkup = markup
		}
		if _, err := b.api.Send(msg); err != nil {
			b.logger.Warn("failed to send message", "chat_id", chatID, "error", err)
			return
		}
	}
}
