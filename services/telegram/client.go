package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/vmail/interfaces"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/tracing"
)

type telegramClient struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramClient builds the bot without the getMe round trip NewBotAPI performs,
// so startup does not depend on Telegram being reachable.
func NewTelegramClient(token string, timeout time.Duration) interfaces.TelegramClient {
	return NewTelegramClientWithEndpoint(token, tgbotapi.APIEndpoint, timeout)
}

// NewTelegramClientWithEndpoint points the bot at a different Bot API server, e.g. a local one or a test fake.
// The endpoint is a format string taking the token and the method name.
func NewTelegramClientWithEndpoint(token, endpoint string, timeout time.Duration) interfaces.TelegramClient {
	bot := &tgbotapi.BotAPI{
		Token:  token,
		Client: &http.Client{Timeout: timeout},
		Buffer: 100,
	}
	bot.SetAPIEndpoint(endpoint)
	return &telegramClient{bot: bot}
}

func (c *telegramClient) SendMessage(ctx context.Context, chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "telegramClient.SendMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagComponentTelegram(span)
	span.LogKV("chatId", chatID)

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = *markup
	}

	resp, err := c.bot.Request(msg)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, vmailerrors.NewNotificationError("telegram", err)
	}

	var sent tgbotapi.Message
	if err := json.Unmarshal(resp.Result, &sent); err != nil {
		// delivered, only the echo is unreadable
		span.LogKV("decodeError", err.Error())
		return 0, nil
	}
	return sent.MessageID, nil
}

func (c *telegramClient) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "telegramClient.EditMessageText")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagComponentTelegram(span)
	span.LogKV("chatId", chatID, "messageId", messageID)

	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	// a nil markup removes the keyboard
	edit.ReplyMarkup = markup

	if _, err := c.bot.Request(edit); err != nil {
		tracing.TraceErr(span, err)
		return vmailerrors.NewNotificationError("telegram", err)
	}
	return nil
}

func (c *telegramClient) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "telegramClient.AnswerCallbackQuery")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagComponentTelegram(span)

	if _, err := c.bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		tracing.TraceErr(span, err)
		return vmailerrors.NewNotificationError("telegram", err)
	}
	return nil
}
