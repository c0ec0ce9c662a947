package notification

import (
	"context"
	"fmt"
	"slices"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/vmail/config"
	"github.com/customeros/vmail/interfaces"
	"github.com/customeros/vmail/internal/enum"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/logger"
	"github.com/customeros/vmail/internal/models"
	"github.com/customeros/vmail/internal/tracing"
	"github.com/customeros/vmail/internal/utils"
)

const (
	blockReason = "User blocked via Telegram"

	ackGeneratingSummary = "Generating summary..."
	ackEmailNotFound     = "❌ Email not found"
	ackFailed            = "❌ Something went wrong"
)

type Dependencies struct {
	Telegram        interfaces.TelegramClient
	EmailRepository interfaces.EmailRepository
	AttachmentRepo  interfaces.EmailAttachmentRepository
	AttachmentStore interfaces.AttachmentStore
	BlocklistGuard  interfaces.BlocklistGuard
	AIService       interfaces.AIService
	EmailDeleter    interfaces.EmailDeleter
}

type dispatcher struct {
	cfg      *config.Config
	log      logger.Logger
	deps     Dependencies
	renderer renderer
}

func NewNotificationDispatcher(cfg *config.Config, log logger.Logger, deps Dependencies) interfaces.NotificationDispatcher {
	return &dispatcher{
		cfg:  cfg,
		log:  log,
		deps: deps,
		renderer: renderer{
			viewURL: func(emailID string) string {
				return cfg.AppConfig.PublicURL("/view/" + emailID)
			},
			attachmentURL: deps.AttachmentStore.PublicURL,
		},
	}
}

func (d *dispatcher) Enabled() bool {
	return d.deps.Telegram != nil && d.cfg.TelegramConfig.Enabled()
}

// NotifyEmailReceived broadcasts the header view to every configured chat.
// It fails only when no chat received the message.
func (d *dispatcher) NotifyEmailReceived(ctx context.Context, email *models.Email, attachments []*models.EmailAttachment, otp string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "dispatcher.NotifyEmailReceived")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagComponentTelegram(span)
	tracing.TagEmail(span, email.ID)

	if !d.Enabled() {
		return nil
	}

	view := d.renderer.header(email, attachments, otp)

	var lastErr error
	delivered := 0
	for _, chatID := range d.cfg.TelegramConfig.ChatIDs {
		if _, err := d.deps.Telegram.SendMessage(ctx, chatID, view.Text, view.Markup); err != nil {
			tracing.TraceErr(span, err)
			d.log.Warnf("telegram notification for %s to chat %d failed: %v", email.ID, chatID, err)
			lastErr = err
			continue
		}
		delivered++
	}
	span.LogKV("delivered", delivered)

	if delivered == 0 && lastErr != nil {
		return vmailerrors.NewNotificationError("telegram", lastErr)
	}
	return nil
}

func (d *dispatcher) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "dispatcher.HandleUpdate")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagComponentTelegram(span)
	span.LogKV("updateId", update.UpdateID)

	switch {
	case update.CallbackQuery != nil:
		return d.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Text != "":
		if !d.isAuthorizedChat(update.Message.Chat) {
			span.LogKV("ignored", "unauthorized chat")
			return nil
		}
		return d.handleCommand(ctx, update.Message.Chat.ID, update.Message.Text)
	default:
		return nil
	}
}

func (d *dispatcher) isAuthorizedChat(chat *tgbotapi.Chat) bool {
	return chat != nil && slices.Contains(d.cfg.TelegramConfig.ChatIDs, chat.ID)
}

func (d *dispatcher) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "dispatcher.handleCallback")
	defer span.Finish()
	span.LogKV("data", query.Data)

	if query.Message == nil || !d.isAuthorizedChat(query.Message.Chat) {
		d.answer(ctx, query.ID, "")
		return nil
	}

	cb, err := ParseCallbackData(query.Data)
	if err != nil {
		d.log.Warnf("ignoring callback: %v", err)
		d.answer(ctx, query.ID, "")
		return nil
	}

	h := &callbackHandler{
		dispatcher: d,
		chatID:     query.Message.Chat.ID,
		messageID:  query.Message.MessageID,
		queryID:    query.ID,
	}
	err = h.handle(ctx, cb)
	if err != nil {
		tracing.TraceErr(span, err)
		d.log.Errorf("callback %s failed: %v", query.Data, err)
		if h.ack == "" {
			h.ack = ackFailed
		}
	}

	// the callback is answered last unless the summary path already did
	if !h.answered {
		d.answer(ctx, query.ID, h.ack)
	}
	return err
}

func (d *dispatcher) answer(ctx context.Context, queryID, text string) {
	if err := d.deps.Telegram.AnswerCallbackQuery(ctx, queryID, text); err != nil {
		d.log.Warnf("answer callback %s: %v", queryID, err)
	}
}

func (d *dispatcher) edit(ctx context.Context, chatID int64, messageID int, view View) {
	if err := d.deps.Telegram.EditMessageText(ctx, chatID, messageID, view.Text, view.Markup); err != nil {
		d.log.Warnf("edit message %d in chat %d: %v", messageID, chatID, err)
	}
}

// callbackHandler carries the per-query state of one button press.
type callbackHandler struct {
	*dispatcher
	chatID    int64
	messageID int
	queryID   string
	ack       string
	answered  bool
}

func (h *callbackHandler) handle(ctx context.Context, cb Callback) error {
	switch cb.Action {
	case enum.ActionBlock, enum.ActionWhitelist:
		return h.handleSenderAction(ctx, cb)
	case enum.ActionUnblockList:
		return h.handleUnblockList(ctx, cb)
	case enum.ActionDelete:
		return h.handleDelete(ctx, cb)
	}

	view, ok := cb.Action.View()
	if !ok {
		return nil
	}
	return h.transition(ctx, view, cb.Target)
}

// transition re-renders the message for view. The state is fully described by
// the token, so nothing is kept between presses.
func (h *callbackHandler) transition(ctx context.Context, view enum.NotificationView, target Target) error {
	if target.IsAddress() {
		h.edit(ctx, h.chatID, h.messageID, h.renderer.render(enum.ViewNotFound, nil, nil))
		return nil
	}

	email, err := h.deps.EmailRepository.GetByID(ctx, target.Value)
	if err != nil {
		return errors.Wrap(err, "load email")
	}
	if email == nil {
		h.edit(ctx, h.chatID, h.messageID, h.renderer.render(enum.ViewNotFound, nil, nil))
		return nil
	}

	var attachments []*models.EmailAttachment
	switch view {
	case enum.ViewHeader:
		attachments, err = h.deps.AttachmentRepo.ListByEmail(ctx, email.ID)
		if err != nil {
			h.log.Warnf("list attachments of %s: %v", email.ID, err)
		}
	case enum.ViewSummary:
		h.ensureSummary(ctx, email)
	}

	h.edit(ctx, h.chatID, h.messageID, h.renderer.render(view, email, attachments))
	return nil
}

// ensureSummary fills email.Summary, calling the model only when nothing is cached.
func (h *callbackHandler) ensureSummary(ctx context.Context, email *models.Email) {
	if email.Summary != "" || h.deps.AIService == nil || !h.deps.AIService.Enabled() {
		return
	}

	h.answer(ctx, h.queryID, ackGeneratingSummary)
	h.answered = true

	summary, err := h.deps.AIService.Summarize(ctx, bodyText(email))
	if err != nil {
		h.log.Warnf("summarize %s: %v", email.ID, err)
		return
	}
	email.Summary = summary
	if err := h.deps.EmailRepository.UpdateSummary(ctx, email.ID, summary); err != nil {
		h.log.Warnf("cache summary of %s: %v", email.ID, err)
	}
}

func (h *callbackHandler) handleDelete(ctx context.Context, cb Callback) error {
	if cb.Target.IsAddress() {
		h.ack = ackEmailNotFound
		return nil
	}
	if err := h.deps.EmailDeleter.DeleteEmails(ctx, []string{cb.Target.Value}); err != nil {
		return errors.Wrap(err, "delete email")
	}
	h.edit(ctx, h.chatID, h.messageID, deletedView())
	return nil
}

func (h *callbackHandler) handleSenderAction(ctx context.Context, cb Callback) error {
	address, err := h.resolveAddress(ctx, cb.Target)
	if err != nil {
		return err
	}
	if address == "" {
		h.ack = ackEmailNotFound
		return nil
	}

	if cb.Action == enum.ActionBlock {
		if err := h.deps.BlocklistGuard.Add(ctx, address, blockReason); err != nil {
			return errors.Wrap(err, "block sender")
		}
		h.ack = "🚫 Blocked: " + address
		return nil
	}

	if err := h.deps.BlocklistGuard.Remove(ctx, address); err != nil {
		return errors.Wrap(err, "whitelist sender")
	}
	h.ack = "✅ Whitelisted: " + address
	return nil
}

func (h *callbackHandler) handleUnblockList(ctx context.Context, cb Callback) error {
	if err := h.deps.BlocklistGuard.Remove(ctx, cb.Target.Value); err != nil {
		return errors.Wrap(err, "unblock")
	}
	h.edit(ctx, h.chatID, h.messageID, View{Text: fmt.Sprintf("✅ Unblocked %s. List updated.", escape(cb.Target.Value))})
	return nil
}

// resolveAddress maps a target onto a sender address, "" when the email is gone.
func (h *callbackHandler) resolveAddress(ctx context.Context, target Target) (string, error) {
	if target.IsAddress() {
		return target.Value, nil
	}
	email, err := h.deps.EmailRepository.GetByID(ctx, target.Value)
	if err != nil {
		return "", errors.Wrap(err, "load email")
	}
	if email == nil {
		return "", nil
	}
	return utils.NormalizeAddress(email.MessageFrom), nil
}
