package handlers

import (
	"github.com/customeros/vmail/config"
	"github.com/customeros/vmail/interfaces"
	"github.com/customeros/vmail/internal/logger"
)

// Dependencies are the services the HTTP surface calls into.
type Dependencies struct {
	Emails      interfaces.EmailRepository
	AttachRepo  interfaces.EmailAttachmentRepository
	Attachments interfaces.AttachmentStore
	Blocklist   interfaces.BlocklistGuard
	Deleter     interfaces.EmailDeleter
	Janitor     interfaces.RetentionJanitor
	Pipeline    interfaces.IngestionPipeline
	Forwarder   interfaces.Forwarder
	Notifier    interfaces.NotificationDispatcher
	Outbound    interfaces.OutboundMailer
	AI          interfaces.AIService
	Mailboxes   interfaces.MailboxService
}

type APIHandlers struct {
	Health     *HealthHandler
	Inbound    *InboundHandler
	Telegram   *TelegramHandler
	Admin      *AdminHandler
	Public     *PublicHandler
	Mailbox    *MailboxHandler
	Automation *AutomationHandler
}

func InitHandlers(cfg *config.Config, log logger.Logger, deps Dependencies) *APIHandlers {
	return &APIHandlers{
		Health:     NewHealthHandler(cfg, deps),
		Inbound:    NewInboundHandler(cfg, log, deps),
		Telegram:   NewTelegramHandler(cfg, log, deps),
		Admin:      NewAdminHandler(cfg, log, deps),
		Public:     NewPublicHandler(deps),
		Mailbox:    NewMailboxHandler(deps),
		Automation: NewAutomationHandler(deps),
	}
}
