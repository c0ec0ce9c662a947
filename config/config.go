package config

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/customeros/vmail/internal/enum"
	"github.com/customeros/vmail/internal/utils"
)

type AppConfig struct {
	APIPort     string        `env:"PORT,required" envDefault:"12222"`
	APIKey      string        `env:"API_KEY,required"`
	WorkerURL   string        `env:"WORKER_URL" envDefault:"http://localhost:12222"`
	RabbitMQURL string        `env:"RABBITMQ_URL"`
	HTTPTimeout time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"5s"`
	LocalDev    bool          `env:"LOCAL_DEV" envDefault:"false"`
}

// PublicURL joins WORKER_URL and path without doubling slashes.
func (c *AppConfig) PublicURL(path string) string {
	return strings.TrimRight(c.WorkerURL, "/") + "/" + strings.TrimLeft(path, "/")
}

type DatabaseConfig struct {
	Host            string `env:"VMAIL_POSTGRES_HOST,required"`
	Port            string `env:"VMAIL_POSTGRES_PORT,required" envDefault:"5432"`
	User            string `env:"VMAIL_POSTGRES_USER,required"`
	DBName          string `env:"VMAIL_POSTGRES_DB_NAME,required"`
	Password        string `env:"VMAIL_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"VMAIL_POSTGRES_DB_MAX_CONN" envDefault:"25"`
	MaxIdleConn     int    `env:"VMAIL_POSTGRES_DB_MAX_IDLE_CONN" envDefault:"10"`
	ConnMaxLifetime int    `env:"VMAIL_POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"3600"`
	LogLevel        string `env:"VMAIL_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"VMAIL_POSTGRES_SSL_MODE" envDefault:"require"`
}

type R2StorageConfig struct {
	AccountID             string `env:"CLOUDFLARE_R2_ACCOUNT_ID,required"`
	AccessKeyID           string `env:"CLOUDFLARE_R2_ACCESS_KEY_ID,required"`
	AccessKeySecret       string `env:"CLOUDFLARE_R2_ACCESS_KEY_SECRET,required"`
	EmailAttachmentBucket string `env:"BUCKET_NAME_EMAIL_ATTACHMENT" envDefault:"vmail-attachments"`
}

type TelegramConfig struct {
	BotToken string  `env:"TELEGRAM_BOT_TOKEN"`
	ChatIDs  []int64 `env:"TELEGRAM_ID" envSeparator:","`
	// Secret token Telegram echoes in X-Telegram-Bot-Api-Secret-Token.
	WebhookSecret string `env:"TELEGRAM_WEBHOOK_SECRET"`
}

func (c *TelegramConfig) Enabled() bool {
	return c.BotToken != "" && len(c.ChatIDs) > 0
}

type OpenAIConfig struct {
	APIKey            string        `env:"OPENAI_API_KEY"`
	BaseURL           string        `env:"OPENAI_BASE_URL"`
	Model             string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	SummaryTargetLang string        `env:"SUMMARY_TARGET_LANG" envDefault:"English"`
	Timeout           time.Duration `env:"OPENAI_TIMEOUT" envDefault:"25s"`
}

type MailConfig struct {
	Domains     []string `env:"MAIL_DOMAIN" envSeparator:","`
	SenderAddrs []string `env:"MAIL_SENDER" envSeparator:","`
	BackupEmail string   `env:"BACKUP_EMAIL"`
	// Outbound routing, JSON list of {domains, kind, url, key}.
	ProviderRoutes     ProviderRoutes `env:"MAIL_PROVIDER_ROUTES"`
	DefaultProviderURL string         `env:"SEND_PROVIDER_URL" envDefault:"https://api.resend.com/emails"`
	DefaultProviderKey string         `env:"SEND_PROVIDER_KEY"`
}

type SMTPConfig struct {
	ListenAddr      string        `env:"SMTP_LISTEN_ADDR"`
	ServerDomain    string        `env:"SMTP_SERVER_DOMAIN" envDefault:"localhost"`
	MaxMessageBytes int64         `env:"SMTP_MAX_MESSAGE_BYTES" envDefault:"26214400"`
	ReadTimeout     time.Duration `env:"SMTP_READ_TIMEOUT" envDefault:"30s"`
	RelayAddr       string        `env:"SMTP_RELAY_ADDR"`
	RelayUsername   string        `env:"SMTP_RELAY_USERNAME"`
	RelayPassword   string        `env:"SMTP_RELAY_PASSWORD"`
}

type WebhookConfig struct {
	URL    string `env:"WEBHOOK_URL"`
	Secret string `env:"WEBHOOK_SECRET"`
}

type RetentionConfig struct {
	MaxEmails int `env:"MAX_EMAILS" envDefault:"1000"`
}

type AuthConfig struct {
	JWTSecret     string        `env:"JWT_SECRET" envDefault:"change-me"`
	TokenTTL      time.Duration `env:"JWT_TTL" envDefault:"168h"`
	MailboxTTL    time.Duration `env:"MAILBOX_TTL" envDefault:"720h"`
	MinPasswordLn int           `env:"MAILBOX_MIN_PASSWORD_LENGTH" envDefault:"6"`
}

// ProviderRoute sends mail for the listed sender domains (or full addresses) through one provider.
type ProviderRoute struct {
	Domains []string          `json:"domains"`
	Kind    enum.ProviderKind `json:"kind"`
	URL     string            `json:"url"`
	Key     string            `json:"key"`
}

type ProviderRoutes []ProviderRoute

func (r *ProviderRoutes) UnmarshalText(text []byte) error {
	if len(strings.TrimSpace(string(text))) == 0 {
		*r = nil
		return nil
	}
	var routes []ProviderRoute
	if err := json.Unmarshal(text, &routes); err != nil {
		return errors.Wrap(err, "MAIL_PROVIDER_ROUTES")
	}
	for i := range routes {
		if routes[i].Kind == "" {
			routes[i].Kind = enum.ProviderKindHTTP
		}
		for j, d := range routes[i].Domains {
			routes[i].Domains[j] = utils.NormalizeAddress(d)
		}
	}
	*r = routes
	return nil
}

// Match picks the first route whose entry equals the sender address or its domain.
func (r ProviderRoutes) Match(sender string) (*ProviderRoute, bool) {
	sender = utils.NormalizeAddress(sender)
	domain := utils.ExtractDomainFromEmail(sender)
	for i := range r {
		for _, d := range r[i].Domains {
			if d == sender || d == domain {
				return &r[i], true
			}
		}
	}
	return nil, false
}

// Domains lists every route domain, used by the public domains endpoint.
func (r ProviderRoutes) Domains() []string {
	var out []string
	for _, route := range r {
		for _, d := range route.Domains {
			if !strings.Contains(d, "@") {
				out = append(out, d)
			}
		}
	}
	return out
}
