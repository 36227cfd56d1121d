package bot

import (
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/xssautomation/xssbot/internal/model"
)

var _ model.ProgressSink = (*statusSink)(nil)

// statusSink shows scan progress by editing one status message.
// The orchestrator calls Progress sequentially for a request.
type statusSink struct {
	api       API
	chatID    int64
	messageID int
	last      string
	logger    *slog.Logger
}

// Progress replaces the status message text. Repeated texts are skipped
// because Telegram rejects edits that change nothing.
func (s *statusSink) Progress(status string) {
	if status == s.last {
		return
	}
	edit := tgbotapi.NewEditMessageText(s.chatID, s.messageID, status)
	if _, err := s.api.Send(edit); err != nil {
		s.logger.Warn("failed to update status message",
			"chat_id", s.chatID,
			"message_id", s.messageID,
			"error", err,
		)
		return
	}
	s.last = status
}
