package bot

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/xssautomation/xssbot/internal/model"
	"github.com/xssautomation/xssbot/internal/report"
)

// handleCommand dispatches a slash command.
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	identity := identityOf(msg.From, msg.Chat)
	args := strings.Fields(msg.CommandArguments())

	switch cmd := msg.Command(); cmd {
	case "start":
		b.reply(chatID, welcomeText, welcomeKeyboard())
	case "help":
		b.reply(chatID, helpText, nil)
	case "about":
		b.reply(chatID, aboutText, nil)
	case "scan":
		if len(args) == 0 {
			b.reply(chatID, scanUsageText, nil)
			return
		}
		b.scan(ctx, chatID, identity, args[0])
	case "vulns", "tested", "stats":
		if len(args) == 0 {
			b.reply(chatID, fmt.Sprintf("❌ Please specify the domain.\nExample: /%s example.com", cmd), nil)
			return
		}
		b.drillDown(ctx, chatID, identity, args[0], drillDowns[cmd])
	case "export":
		if len(args) == 0 {
			b.reply(chatID, "❌ Please specify the domain.\nExample: /export example.com md", nil)
			return
		}
		format := "json"
		if len(args) > 1 {
			format = strings.ToLower(args[1])
		}
		b.export(ctx, chatID, identity, args[0], format)
	default:
		b.reply(chatID, unknownCommand, nil)
	}
}

// handleText treats a plain message as a domain to scan.
func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	b.scan(ctx, msg.Chat.ID, identityOf(msg.From, msg.Chat), strings.TrimSpace(msg.Text))
}

// handleCallback answers an inline keyboard button.
func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Warn("failed to answer callback", "callback_id", query.ID, "error", err)
	}
	if query.Message == nil {
		return
	}

	chatID := query.Message.Chat.ID
	identity := identityOf(query.From, query.Message.Chat)

	switch query.Data {
	case callbackNewScan:
		b.edit(chatID, query.Message.MessageID, newScanPromptText)
		return
	case callbackHelp:
		b.reply(chatID, helpText, nil)
		return
	case callbackAbout:
		b.edit(chatID, query.Message.MessageID, aboutText)
		return
	}

	for _, prefix := range []string{callbackShowVulns, callbackShowTested, callbackShowStats} {
		if domain, ok := strings.CutPrefix(query.Data, prefix); ok {
			b.drillDown(ctx, chatID, identity, domain, drillDowns[prefix])
			return
		}
	}

	b.logger.Debug("unknown callback data", "data", query.Data)
}

// scan runs one scan for identity, showing progress in a status message
// and sending the summary when it completes. Input that is not a domain is
// answered with a hint before it can use up a rate limit token.
func (b *Bot) scan(ctx context.Context, chatID int64, identity model.Identity, input string) {
	if _, err := model.NormalizeDomain(input); err != nil {
		b.reply(chatID, invalidDomainText, nil)
		return
	}

	adm := b.guard.admit(identity, input)
	switch adm.cause {
	case rejectBusy:
		b.metrics.ScanRejected(rejectBusy)
		b.reply(chatID, fmt.Sprintf("⏳ Your scan of %s is still running. Please wait for it to finish.", adm.running), nil)
		return
	case rejectRateLimited:
		b.metrics.ScanRejected(rejectRateLimited)
		b.reply(chatID, fmt.Sprintf("🕒 Too many scans. Try again in %s.", roundUp(adm.retryAfter)), nil)
		return
	}
	defer adm.release()

	status, err := b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("🔍 Scan request received: %s", input)))
	if err != nil {
		b.logger.Warn("failed to send status message", "chat_id", chatID, "error", err)
		return
	}
	sink := &statusSink{
		api:       b.api,
		chatID:    chatID,
		messageID: status.MessageID,
		last:      status.Text,
		logger:    b.logger,
	}

	result := b.scanner.Scan(ctx, model.NewScanRequest(identity, input), sink)
	if result.Report == nil {
		return
	}

	summary := result.Report.Summary()
	b.reply(chatID, report.SummaryMessage(summary, result.Delta), summaryKeyboard(summary))
}

// drillDown sends the lines of kind, or the statistics view when kind is
// empty, from identity's cached report.
func (b *Bot) drillDown(ctx context.Context, chatID int64, identity model.Identity, input string, kind model.ArtifactKind) {
	domain, ok := b.cachedDomain(chatID, input)
	if !ok {
		return
	}

	if kind == "" {
		summary, found, err := b.scanner.Summary(ctx, identity, domain)
		if !b.found(chatID, domain, found, err) {
			return
		}
		b.reply(chatID, report.StatsMessage(summary), nil)
		return
	}

	if _, found, err := b.scanner.Summary(ctx, identity, domain); !b.found(chatID, domain, found, err) {
		return
	}
	lines, measured, err := b.scanner.DrillDown(ctx, identity, domain, kind)
	if err != nil {
		b.logger.Warn("drill-down failed", "domain", domain, "kind", kind, "error", err)
		b.reply(chatID, "❌ Could not read the cached report. Please try again.", nil)
		return
	}
	b.reply(chatID, report.DrillDownMessage(domain, kind, lines, measured), nil)
}

// export sends identity's cached report for input as a document.
func (b *Bot) export(ctx context.Context, chatID int64, identity model.Identity, input, format string) {
	domain, ok := b.cachedDomain(chatID, input)
	if !ok {
		return
	}

	rep, found, err := b.scanner.Report(ctx, identity, domain)
	if !b.found(chatID, domain, found, err) {
		return
	}

	var buf bytes.Buffer
	var name string
	switch format {
	case "json":
		name = domain.String() + ".json"
		_, err = report.NewFullJSONWriter(&buf, b.version, report.WithPrettyPrint()).Write(rep)
	case "md", "markdown":
		name = domain.String() + ".md"
		_, err = report.NewMarkdownWriter(&buf).Write(rep)
	default:
		b.reply(chatID, "❌ Unknown format. Use json or md.", nil)
		return
	}
	if err != nil {
		b.logger.Warn("failed to render report", "domain", domain, "format", format, "error", err)
		b.reply(chatID, "❌ Could not render the report.", nil)
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: buf.Bytes()})
	doc.Caption = fmt.Sprintf("XSS scan report for %s", domain)
	if _, err := b.api.Send(doc); err != nil {
		b.logger.Warn("failed to send report document", "domain", domain, "error", err)
	}
}

// cachedDomain normalizes input for a report lookup, replying on error.
func (b *Bot) cachedDomain(chatID int64, input string) (model.Domain, bool) {
	domain, err := model.NormalizeDomain(input)
	if err != nil {
		b.reply(chatID, invalidDomainText, nil)
		return "", false
	}
	return domain, true
}

// found replies when a report lookup failed or found nothing.
func (b *Bot) found(chatID int64, domain model.Domain, found bool, err error) bool {
	switch {
	case err != nil:
		b.logger.Warn("report lookup failed", "domain", domain, "error", err)
		b.reply(chatID, "❌ Could not read the cached report. Please try again.", nil)
		return false
	case !found:
		b.reply(chatID, fmt.Sprintf("No cached report for %s. Scan it first with /scan %s", domain, domain), nil)
		return false
	}
	return true
}

// edit replaces the text of an existing message.
func (b *Bot) edit(chatID int64, messageID int, text string) {
	if _, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		b.logger.Warn("failed to edit message", "chat_id", chatID, "error", err)
	}
}

// splitText splits text to the chat message size limit.
func splitText(text string) []string {
	return report.SplitMessage(text, report.MaxMessageLength)
}

// roundUp formats d rounded up to the next second.
func roundUp(d time.Duration) time.Duration {
	return (d + time.Second - 1).Truncate(time.Second)
}
