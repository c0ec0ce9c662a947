package mailbox

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/vmail/config"
	"github.com/customeros/vmail/dto"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/fakes"
	"github.com/customeros/vmail/internal/utils"
)

func newTestService(domains ...string) (*mailboxService, *fakes.MailboxRepository) {
	repo := fakes.NewMailboxRepository()
	cfg := &config.Config{
		MailConfig: &config.MailConfig{Domains: domains},
		AuthConfig: &config.AuthConfig{
			JWTSecret:     "test-secret",
			TokenTTL:      168 * time.Hour,
			MailboxTTL:    720 * time.Hour,
			MinPasswordLn: 6,
		},
	}
	return NewMailboxService(cfg, repo).(*mailboxService), repo
}

func TestCreate_IssuesTokenForRandomAddress(t *testing.T) {
	svc, _ := newTestService("VMail.dev")

	session, err := svc.Create(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(session.Address, "@vmail.dev"))
	assert.WithinDuration(t, utils.Now().Add(168*time.Hour), session.ExpiresAt, time.Minute)

	address, err := svc.ValidateToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.Address, address)
}

func TestRandomAddress_NoDomain(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.RandomAddress()
	assert.Error(t, err)
}

func TestClaim_StoresHashedPassword(t *testing.T) {
	svc, repo := newTestService("vmail.dev")

	session, err := svc.Claim(context.Background(), dto.MailboxCredentials{Address: " Box@vmail.dev ", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "box@vmail.dev", session.Address)

	stored := repo.Mailboxes["box@vmail.dev"]
	require.NotNil(t, stored)
	assert.NotEqual(t, "secret123", stored.PasswordHash)
	assert.NotNil(t, stored.LastLoginAt)
	assert.WithinDuration(t, utils.Now().Add(720*time.Hour), stored.ExpiresAt, time.Minute)
}

func TestClaim_AlreadyClaimed(t *testing.T) {
	svc, _ := newTestService("vmail.dev")
	creds := dto.MailboxCredentials{Address: "box@vmail.dev", Password: "secret123"}

	_, err := svc.Claim(context.Background(), creds)
	require.NoError(t, err)

	_, err = svc.Claim(context.Background(), creds)
	assert.ErrorIs(t, err, vmailerrors.ErrMailboxExists)
}

func TestClaim_Validation(t *testing.T) {
	svc, repo := newTestService("vmail.dev")

	cases := []dto.MailboxCredentials{
		{Address: "not-an-address", Password: "secret123"},
		{Address: "box@gmail.com", Password: "secret123"},
		{Address: "box@vmail.dev", Password: "123"},
	}
	for _, creds := range cases {
		_, err := svc.Claim(context.Background(), creds)
		assert.True(t, vmailerrors.IsValidationError(err), creds.Address)
	}
	assert.Empty(t, repo.Mailboxes)
}

func TestLogin(t *testing.T) {
	svc, repo := newTestService("vmail.dev")
	_, err := svc.Claim(context.Background(), dto.MailboxCredentials{Address: "box@vmail.dev", Password: "secret123"})
	require.NoError(t, err)
	repo.Mailboxes["box@vmail.dev"].LastLoginAt = nil

	session, err := svc.Login(context.Background(), dto.MailboxCredentials{Address: "BOX@vmail.dev", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "box@vmail.dev", session.Address)
	assert.NotNil(t, repo.Mailboxes["box@vmail.dev"].LastLoginAt)

	_, err = svc.Login(context.Background(), dto.MailboxCredentials{Address: "box@vmail.dev", Password: "wrong-one"})
	assert.ErrorIs(t, err, vmailerrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), dto.MailboxCredentials{Address: "ghost@vmail.dev", Password: "secret123"})
	assert.ErrorIs(t, err, vmailerrors.ErrInvalidCredentials)
}

func TestLogin_Expired(t *testing.T) {
	svc, repo := newTestService("vmail.dev")
	_, err := svc.Claim(context.Background(), dto.MailboxCredentials{Address: "box@vmail.dev", Password: "secret123"})
	require.NoError(t, err)
	repo.Mailboxes["box@vmail.dev"].ExpiresAt = utils.Now().Add(-time.Hour)

	_, err = svc.Login(context.Background(), dto.MailboxCredentials{Address: "box@vmail.dev", Password: "secret123"})
	assert.ErrorIs(t, err, vmailerrors.ErrMailboxExpired)
}

func TestValidateToken_Rejects(t *testing.T) {
	svc, _ := newTestService("vmail.dev")

	_, err := svc.ValidateToken("garbage")
	assert.ErrorIs(t, err, vmailerrors.ErrInvalidCredentials)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, mailboxClaims{
		Mailbox: "box@vmail.dev",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	signed, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.ErrorIs(t, err, vmailerrors.ErrInvalidCredentials)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mailboxClaims{
		Mailbox: "box@vmail.dev",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.ErrorIs(t, err, vmailerrors.ErrInvalidCredentials)
}
