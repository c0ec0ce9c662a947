package notification

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/vmail/internal/enum"
	"github.com/customeros/vmail/internal/tracing"
	"github.com/customeros/vmail/internal/utils"
)

const (
	maxUnblockButtons    = 10
	maxUnblockEntryChars = 58
	checkLimit           = 5

	textWelcome        = "👋 Welcome to vMail Bot!"
	textBlocklistEmpty = "✅ Blocklist is empty."
	textCheckUsage     = "Usage: <code>/check &lt;address&gt;</code>"
	textNoDomain       = "❌ No mail domain configured."
)

func (d *dispatcher) handleCommand(ctx context.Context, chatID int64, text string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "dispatcher.handleCommand")
	defer span.Finish()

	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	// "/new@vmail_bot" in group chats
	command, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	span.LogKV("command", command)

	var (
		reply  string
		markup *tgbotapi.InlineKeyboardMarkup
		err    error
	)
	switch command {
	case "/start":
		reply = textWelcome
	case "/new":
		reply = d.newAddressReply()
	case "/blocklist":
		reply, markup, err = d.blocklistReply(ctx)
	case "/check":
		reply, err = d.checkReply(ctx, fields[1:])
	default:
		return nil
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if _, err := d.deps.Telegram.SendMessage(ctx, chatID, reply, markup); err != nil {
		tracing.TraceErr(span, err)
		d.log.Warnf("reply to %s in chat %d: %v", command, chatID, err)
	}
	return nil
}

func (d *dispatcher) newAddressReply() string {
	address := utils.RandomAddress(d.cfg.MailConfig.Domains)
	if address == "" {
		return textNoDomain
	}
	return fmt.Sprintf("📧 New Address: <code>%s</code>", escape(address))
}

func (d *dispatcher) blocklistReply(ctx context.Context) (string, *tgbotapi.InlineKeyboardMarkup, error) {
	entries, err := d.deps.BlocklistGuard.List(ctx)
	if err != nil {
		return "", nil, err
	}
	if len(entries) == 0 {
		return textBlocklistEmpty, nil, nil
	}

	var sb strings.Builder
	sb.WriteString("🚫 <b>Blocked Senders:</b>\n\n")
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, entry := range entries {
		fmt.Fprintf(&sb, "- <code>%s</code>\n", escape(entry.Email))
		// callback data is capped at 64 bytes
		if len(entry.Email) < maxUnblockEntryChars && len(rows) < maxUnblockButtons {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🔓 Unblock "+entry.Email, CallbackData(enum.ActionWhitelist, entry.Email)),
			))
		}
	}

	var markup *tgbotapi.InlineKeyboardMarkup
	if len(rows) > 0 {
		m := tgbotapi.NewInlineKeyboardMarkup(rows...)
		markup = &m
	}
	return clip(sb.String()), markup, nil
}

func (d *dispatcher) checkReply(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return textCheckUsage, nil
	}
	address := utils.NormalizeAddress(args[0])
	if !utils.IsValidAddress(address) {
		return fmt.Sprintf("❌ Invalid address: %s", escape(address)), nil
	}

	emails, err := d.deps.EmailRepository.ListByRecipient(ctx, address)
	if err != nil {
		return "", err
	}
	if len(emails) == 0 {
		return fmt.Sprintf("📭 Box %s is empty.", escape(address)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📬 <b>Inbox %s:</b>\n", escape(address))
	for _, email := range emails[:min(checkLimit, len(emails))] {
		fmt.Fprintf(&sb, "\n🆔 <code>%s</code>\nFROM: %s\nSUBJ: %s\n----------------",
			escape(email.ID), escape(email.MessageFrom), escape(utils.TruncateWithEllipsis(email.Subject, 200)))
	}
	return clip(sb.String()), nil
}
