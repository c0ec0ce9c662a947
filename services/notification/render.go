package notification

import (
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/customeros/vmail/internal/enum"
	"github.com/customeros/vmail/internal/models"
	"github.com/customeros/vmail/internal/utils"
)

const (
	maxMessageLength = 4000
	maxSubjectLength = 300
	previewLength    = 500
	fullTextLength   = 3000
	receivedLayout   = "2006-01-02 15:04:05 UTC"

	textNotFound = "❌ Email not found (deleted)."
	textDeleted  = "🗑️ Email deleted."
)

// View is one rendering of a notification message.
type View struct {
	Text   string
	Markup *tgbotapi.InlineKeyboardMarkup
}

type renderer struct {
	viewURL       func(emailID string) string
	attachmentURL func(emailID, filename string) string
}

func (r renderer) header(email *models.Email, attachments []*models.EmailAttachment, otp string) View {
	var sb strings.Builder
	sb.WriteString("📬 <b>New Email</b>\n")
	fmt.Fprintf(&sb, "<b>Subject:</b> %s\n", escape(utils.TruncateWithEllipsis(utils.FirstNonEmpty(email.Subject, "(No Subject)"), maxSubjectLength)))
	fmt.Fprintf(&sb, "<b>From:</b> %s\n", escape(displaySender(email)))
	fmt.Fprintf(&sb, "<b>To:</b> %s\n", escape(email.MessageTo))
	fmt.Fprintf(&sb, "<b>Received:</b> %s\n", email.CreatedAt.UTC().Format(receivedLayout))
	if otp != "" {
		fmt.Fprintf(&sb, "\n🔑 OTP: <code>%s</code>", escape(otp))
	}

	if len(attachments) > 0 {
		sb.WriteString("\n\n📎 <b>Attachments:</b>\n")
		for i, att := range attachments {
			line := fmt.Sprintf("%d. <a href=\"%s\">%s</a> (%.1f KB)\n",
				i+1, escape(r.attachmentURL(email.ID, att.Filename)), escape(att.Filename), att.SizeKB())
			// leave room for the overflow line, never cut inside a tag
			if sb.Len()+len(line) > maxMessageLength-40 {
				fmt.Fprintf(&sb, "… and %d more\n", len(attachments)-i)
				break
			}
			sb.WriteString(line)
		}
	}

	return View{Text: clip(sb.String()), Markup: r.headerKeyboard(email.ID)}
}

func (r renderer) headerKeyboard(emailID string) *tgbotapi.InlineKeyboardMarkup {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👁️ Preview", CallbackData(enum.ActionPreview, emailID)),
			tgbotapi.NewInlineKeyboardButtonURL("🌍 Read Online", r.viewURL(emailID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📝 Summary", CallbackData(enum.ActionSummary, emailID)),
			tgbotapi.NewInlineKeyboardButtonData("📄 Text", CallbackData(enum.ActionText, emailID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚫 Block Sender", CallbackData(enum.ActionBlock, emailID)),
			tgbotapi.NewInlineKeyboardButtonData("✅ Whitelist Sender", CallbackData(enum.ActionWhitelist, emailID)),
		),
	)
	return &markup
}

func backKeyboard(emailID string) *tgbotapi.InlineKeyboardMarkup {
	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔙 Back", CallbackData(enum.ActionBack, emailID)),
	))
	return &markup
}

func (r renderer) preview(email *models.Email) View {
	content := utils.Truncate(bodyText(email), previewLength)
	return View{
		Text:   clip("👁️ <b>Preview:</b>\n\n" + escape(content) + "..."),
		Markup: backKeyboard(email.ID),
	}
}

func (r renderer) summary(email *models.Email) View {
	return View{
		Text:   clip("📝 <b>AI Summary:</b>\n\n" + escape(utils.FirstNonEmpty(email.Summary, "Not available"))),
		Markup: backKeyboard(email.ID),
	}
}

func (r renderer) fullText(email *models.Email) View {
	content := utils.Truncate(utils.FirstNonEmpty(email.Text, "No text content"), fullTextLength)
	return View{
		Text:   clip("📄 <b>Full Text:</b>\n\n" + escape(content)),
		Markup: backKeyboard(email.ID),
	}
}

func (r renderer) online(email *models.Email) View {
	return View{
		Text:   "🌍 <b>Read Online:</b>\n\n" + escape(r.viewURL(email.ID)),
		Markup: backKeyboard(email.ID),
	}
}

func deletedView() View {
	return View{Text: textDeleted}
}

func notFoundView() View {
	return View{Text: textNotFound}
}

// render maps a view-changing action onto the view of email. email may be nil.
func (r renderer) render(view enum.NotificationView, email *models.Email, attachments []*models.EmailAttachment) View {
	if view == enum.ViewDeleted {
		return deletedView()
	}
	if view == enum.ViewNotFound || email == nil {
		return notFoundView()
	}
	switch view {
	case enum.ViewPreview:
		return r.preview(email)
	case enum.ViewSummary:
		return r.summary(email)
	case enum.ViewFullText:
		return r.fullText(email)
	case enum.ViewOnline:
		return r.online(email)
	default:
		return r.header(email, attachments, utils.ExtractOTP(email.Subject, bodyText(email)))
	}
}

func displaySender(email *models.Email) string {
	if email.From.Name != "" && email.From.Address == email.MessageFrom {
		return email.From.String()
	}
	return email.MessageFrom
}

// bodyText is the text body, or the stripped HTML when there is none.
func bodyText(email *models.Email) string {
	if strings.TrimSpace(email.Text) != "" {
		return email.Text
	}
	return utils.StripHTML(email.HTML)
}

func escape(s string) string {
	return html.EscapeString(s)
}

// clip cuts an escaped message to the telegram limit, dropping an entity the cut would split.
func clip(s string) string {
	out := utils.Truncate(s, maxMessageLength)
	if len(out) == len(s) {
		return out
	}
	if amp := strings.LastIndexByte(out, '&'); amp >= 0 && !strings.Contains(out[amp:], ";") {
		out = out[:amp]
	}
	return out
}
