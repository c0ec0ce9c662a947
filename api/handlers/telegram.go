package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/vmail/config"
	"github.com/customeros/vmail/internal/logger"
	"github.com/customeros/vmail/internal/tracing"
)

const HeaderTelegramSecret = "X-Telegram-Bot-Api-Secret-Token"

type TelegramHandler struct {
	log    logger.Logger
	deps   Dependencies
	secret string
}

func NewTelegramHandler(cfg *config.Config, log logger.Logger, deps Dependencies) *TelegramHandler {
	return &TelegramHandler{log: log, deps: deps, secret: cfg.TelegramConfig.WebhookSecret}
}

// Webhook always answers 200 once the update is decoded, so Telegram does not redeliver it.
func (h *TelegramHandler) Webhook(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "TelegramHandler.Webhook")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)
	tracing.TagComponentTelegram(span)

	if h.secret != "" && subtle.ConstantTimeCompare([]byte(c.GetHeader(HeaderTelegramSecret)), []byte(h.secret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid secret token"})
		return
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid update"})
		return
	}
	span.LogKV("updateId", update.UpdateID)

	if h.deps.Notifier != nil {
		if err := h.deps.Notifier.HandleUpdate(ctx, update); err != nil {
			tracing.TraceErr(span, err)
			h.log.Warnf("Telegram update %d failed: %v", update.UpdateID, err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
