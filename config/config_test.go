package config

import (
	"testing"

	"github.com/caarlos0/env/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/vmail/internal/enum"
)

func TestProviderRoutes_UnmarshalText(t *testing.T) {
	var routes ProviderRoutes
	err := routes.UnmarshalText([]byte(`[
		{"domains":["Mail.Example.com"],"url":"https://api.resend.com/emails","key":"k1"},
		{"domains":["ops@other.io"],"kind":"sendgrid","key":"k2"}
	]`))
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, enum.ProviderKindHTTP, routes[0].Kind)
	assert.Equal(t, []string{"mail.example.com"}, routes[0].Domains)
	assert.Equal(t, enum.ProviderKindSendgrid, routes[1].Kind)
}

func TestProviderRoutes_UnmarshalTextInvalid(t *testing.T) {
	var routes ProviderRoutes
	assert.Error(t, routes.UnmarshalText([]byte(`{not json`)))
	assert.NoError(t, routes.UnmarshalText([]byte(`  `)))
	assert.Nil(t, routes)
}

func TestProviderRoutes_Match(t *testing.T) {
	routes := ProviderRoutes{
		{Domains: []string{"a.com"}, Key: "domain"},
		{Domains: []string{"vip@b.com"}, Key: "address"},
	}

	route, ok := routes.Match("Someone@A.com")
	require.True(t, ok)
	assert.Equal(t, "domain", route.Key)

	route, ok = routes.Match("vip@b.com")
	require.True(t, ok)
	assert.Equal(t, "address", route.Key)

	_, ok = routes.Match("other@b.com")
	assert.False(t, ok)

	assert.Equal(t, []string{"a.com"}, routes.Domains())
}

func TestInitConfig_FromEnv(t *testing.T) {
	t.Setenv("API_KEY", "secret")
	t.Setenv("VMAIL_POSTGRES_HOST", "localhost")
	t.Setenv("VMAIL_POSTGRES_USER", "vmail")
	t.Setenv("VMAIL_POSTGRES_DB_NAME", "vmail")
	t.Setenv("VMAIL_POSTGRES_PASSWORD", "pw")
	t.Setenv("CLOUDFLARE_R2_ACCOUNT_ID", "acc")
	t.Setenv("CLOUDFLARE_R2_ACCESS_KEY_ID", "id")
	t.Setenv("CLOUDFLARE_R2_ACCESS_KEY_SECRET", "secret")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_ID", "111,222")
	t.Setenv("MAIL_DOMAIN", "a.com,b.com")
	t.Setenv("MAIL_PROVIDER_ROUTES", `[{"domains":["a.com"],"key":"k"}]`)

	cfg := newEmptyConfig()
	require.NoError(t, env.Parse(cfg))

	assert.Equal(t, []int64{111, 222}, cfg.TelegramConfig.ChatIDs)
	assert.True(t, cfg.TelegramConfig.Enabled())
	assert.Equal(t, []string{"a.com", "b.com"}, cfg.MailConfig.Domains)
	assert.Len(t, cfg.MailConfig.ProviderRoutes, 1)
	assert.Equal(t, 1000, cfg.RetentionConfig.MaxEmails)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIConfig.Model)
	assert.Equal(t, "https://api.resend.com/emails", cfg.MailConfig.DefaultProviderURL)
}

func TestAppConfig_PublicURL(t *testing.T) {
	cfg := &AppConfig{WorkerURL: "https://mail.example.com/"}
	assert.Equal(t, "https://mail.example.com/view/abc", cfg.PublicURL("/view/abc"))
}
