package interfaces

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/customeros/vmail/dto"
	"github.com/customeros/vmail/internal/models"
)

type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) (int, error)
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
}

type NotificationDispatcher interface {
	Enabled() bool
	NotifyEmailReceived(ctx context.Context, email *models.Email, attachments []*models.EmailAttachment, otp string) error
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

type WebhookService interface {
	Enabled() bool
	Send(ctx context.Context, payload dto.WebhookPayload) error
}

type EventsPublisher interface {
	PublishEmailReceived(ctx context.Context, event dto.EmailReceivedEvent) error
	Close() error
}

type Forwarder interface {
	Forward(ctx context.Context, from string, to []string, raw []byte) error
}
