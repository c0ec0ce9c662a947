package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/customeros/vmail/config"
)

type HealthHandler struct {
	cfg  *config.Config
	deps Dependencies
}

func NewHealthHandler(cfg *config.Config, deps Dependencies) *HealthHandler {
	return &HealthHandler{cfg: cfg, deps: deps}
}

// HealthCheck provides a simple health check endpoint
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Status reports which optional integrations are configured.
func (h *HealthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"smtp":      h.cfg.SMTPConfig.ListenAddr != "",
		"telegram":  h.deps.Notifier != nil && h.deps.Notifier.Enabled(),
		"webhook":   h.cfg.WebhookConfig.URL != "",
		"events":    h.cfg.AppConfig.RabbitMQURL != "",
		"ai":        h.deps.AI != nil && h.deps.AI.Enabled(),
		"forward":   h.cfg.MailConfig.BackupEmail != "" && h.cfg.SMTPConfig.RelayAddr != "",
		"maxEmails": h.cfg.RetentionConfig.MaxEmails,
	})
}
