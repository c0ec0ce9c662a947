package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/vmail/api/handlers"
	"github.com/customeros/vmail/api/middleware"
	"github.com/customeros/vmail/config"
	"github.com/customeros/vmail/internal/logger"
	"github.com/customeros/vmail/internal/tracing"
)

const AppSourceAPI = "vmail-api"

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, cfg *config.Config, log logger.Logger, deps handlers.Dependencies) {
	if deps.Pipeline == nil || deps.Emails == nil {
		panic("pipeline and email repository are required")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))
	r.Use(middleware.CustomContextMiddleware(AppSourceAPI))
	r.Use(middleware.TracingMiddleware())

	h := handlers.InitHandlers(cfg, log, deps)

	r.GET("/health", h.Health.HealthCheck)
	r.GET("/status", h.Health.Status)

	// public
	r.GET("/view/:id", h.Public.View)
	r.POST("/api/telegram/webhook", h.Telegram.Webhook)

	apiKey := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  middleware.HeaderAPIKey,
		ValidAPIKey: cfg.AppConfig.APIKey,
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/attachments/:emailId/:filename", h.Public.Attachment)
		v1.GET("/domains", h.Public.Domains)

		mailboxes := v1.Group("/mailboxes")
		{
			mailboxes.POST("", h.Mailbox.Create)
			mailboxes.POST("/claim", h.Mailbox.Claim)
			mailboxes.POST("/login", h.Mailbox.Login)
		}

		mailbox := v1.Group("/mailbox")
		mailbox.Use(middleware.MailboxAuthMiddleware(deps.Mailboxes))
		{
			mailbox.GET("/emails", h.Mailbox.ListEmails)
			mailbox.GET("/emails/:id", h.Mailbox.GetEmail)
			mailbox.POST("/emails/:id/read", h.Mailbox.MarkRead)
			mailbox.POST("/read-all", h.Mailbox.MarkAllRead)
			mailbox.GET("/stats", h.Mailbox.Stats)
		}

		protected := v1.Group("")
		protected.Use(apiKey)
		{
			protected.POST("/inbound", h.Inbound.Receive)
			protected.GET("/cleanup", h.Admin.Cleanup)
			protected.POST("/send", h.Admin.Send)

			protected.GET("/inbox/:address", h.Automation.Inbox)
			protected.GET("/message/:id", h.Automation.Message)
			protected.GET("/latest/:address", h.Automation.Latest)
			protected.GET("/ai/summarize/:id", h.Automation.Summarize)

			admin := protected.Group("/admin")
			{
				admin.GET("/emails", h.Admin.ListEmails)
				admin.POST("/emails/delete", h.Admin.DeleteEmails)
				admin.DELETE("/email/:id", h.Admin.DeleteEmail)
				admin.GET("/stats", h.Admin.Stats)
				admin.GET("/export", h.Admin.Export)
				admin.GET("/blocklist", h.Admin.ListBlocklist)
				admin.POST("/blocklist", h.Admin.AddBlocklist)
				admin.DELETE("/blocklist", h.Admin.RemoveBlocklist)
				admin.POST("/ai/reply", h.Admin.AIReply)
			}
		}
	}
}
