package services

import (
	"github.com/customeros/vmail/config"
	"github.com/customeros/vmail/interfaces"
	"github.com/customeros/vmail/internal/logger"
	"github.com/customeros/vmail/internal/repository"
	"github.com/customeros/vmail/services/ai"
	"github.com/customeros/vmail/services/attachments"
	"github.com/customeros/vmail/services/blocklist"
	"github.com/customeros/vmail/services/events"
	"github.com/customeros/vmail/services/inbound"
	"github.com/customeros/vmail/services/ingestion"
	"github.com/customeros/vmail/services/mailbox"
	"github.com/customeros/vmail/services/notification"
	"github.com/customeros/vmail/services/outbound"
	"github.com/customeros/vmail/services/parser"
	"github.com/customeros/vmail/services/retention"
	"github.com/customeros/vmail/services/smtp"
	"github.com/customeros/vmail/services/storage"
	"github.com/customeros/vmail/services/telegram"
	"github.com/customeros/vmail/services/webhook"
)

type Services struct {
	StorageService         interfaces.StorageService
	AttachmentStore        interfaces.AttachmentStore
	BlocklistGuard         interfaces.BlocklistGuard
	EmailDeleter           interfaces.EmailDeleter
	RetentionJanitor       interfaces.RetentionJanitor
	AIService              interfaces.AIService
	NotificationDispatcher interfaces.NotificationDispatcher
	WebhookService         interfaces.WebhookService
	// EventsPublisher is nil when RABBITMQ_URL is not set.
	EventsPublisher        interfaces.EventsPublisher
	Forwarder              interfaces.Forwarder
	Pipeline               interfaces.IngestionPipeline
	OutboundMailer         interfaces.OutboundMailer
	MailboxService         interfaces.MailboxService
	// SMTPServer is nil when SMTP_LISTEN_ADDR is not set.
	SMTPServer             *inbound.SMTPServer
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	s := &Services{}

	s.StorageService = storage.NewR2StorageService(cfg.R2StorageConfig)
	s.AttachmentStore = attachments.NewAttachmentStore(s.StorageService, repos.EmailAttachmentRepository, cfg.AppConfig)
	s.BlocklistGuard = blocklist.NewBlocklistGuard(repos.BlockedSenderRepository)
	s.EmailDeleter = retention.NewEmailDeleter(repos.EmailRepository, repos.EmailAttachmentRepository, s.AttachmentStore)
	s.RetentionJanitor = retention.NewRetentionJanitor(log, repos.EmailRepository, s.EmailDeleter)
	s.AIService = ai.NewAIService(cfg.OpenAIConfig)

	var telegramClient interfaces.TelegramClient
	if cfg.TelegramConfig.Enabled() {
		telegramClient = telegram.NewTelegramClient(cfg.TelegramConfig.BotToken, cfg.AppConfig.HTTPTimeout)
	}
	s.NotificationDispatcher = notification.NewNotificationDispatcher(cfg, log, notification.Dependencies{
		Telegram:        telegramClient,
		EmailRepository: repos.EmailRepository,
		AttachmentRepo:  repos.EmailAttachmentRepository,
		AttachmentStore: s.AttachmentStore,
		BlocklistGuard:  s.BlocklistGuard,
		AIService:       s.AIService,
		EmailDeleter:    s.EmailDeleter,
	})
	s.WebhookService = webhook.NewWebhookService(cfg.WebhookConfig, cfg.AppConfig.HTTPTimeout)

	if cfg.AppConfig.RabbitMQURL != "" {
		publisher, err := events.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, log, events.DefaultPublisherConfig())
		if err != nil {
			return nil, err
		}
		s.EventsPublisher = publisher
	} else {
		log.Info("RABBITMQ_URL not set, email events are not published")
	}

	s.Forwarder = smtp.NewRelayForwarder(cfg.SMTPConfig)

	deps := ingestion.Dependencies{
		Parser:      parser.NewMimeParser(),
		Blocklist:   s.BlocklistGuard,
		Attachments: s.AttachmentStore,
		Emails:      repos.EmailRepository,
		Deleter:     s.EmailDeleter,
		Notifier:    s.NotificationDispatcher,
		Webhook:     s.WebhookService,
		Events:      s.EventsPublisher,
	}
	s.Pipeline = ingestion.NewIngestionPipeline(cfg, log, deps)

	s.OutboundMailer = outbound.NewOutboundMailer(cfg.MailConfig, log, cfg.AppConfig.HTTPTimeout)
	s.MailboxService = mailbox.NewMailboxService(cfg, repos.MailboxRepository)

	if cfg.SMTPConfig.ListenAddr != "" {
		s.SMTPServer = inbound.NewSMTPServer(cfg, log, s.Pipeline, s.Forwarder)
	}

	return s, nil
}

// Close releases connections held by optional services.
func (s *Services) Close() {
	if s.SMTPServer != nil {
		_ = s.SMTPServer.Close()
	}
	if s.EventsPublisher != nil {
		_ = s.EventsPublisher.Close()
	}
}
