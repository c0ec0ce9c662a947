package mailbox

import (
	"context"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/customeros/vmail/config"
	"github.com/customeros/vmail/dto"
	"github.com/customeros/vmail/interfaces"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/models"
	"github.com/customeros/vmail/internal/tracing"
	"github.com/customeros/vmail/internal/utils"
)

var errNoDomain = errors.New("no mail domain configured")

type mailboxClaims struct {
	Mailbox string `json:"mailbox"`
	jwt.RegisteredClaims
}

type mailboxService struct {
	repo    interfaces.MailboxRepository
	auth    *config.AuthConfig
	domains []string
}

func NewMailboxService(cfg *config.Config, repo interfaces.MailboxRepository) interfaces.MailboxService {
	domains := make([]string, 0, len(cfg.MailConfig.Domains))
	for _, d := range cfg.MailConfig.Domains {
		if d = utils.NormalizeAddress(d); d != "" {
			domains = append(domains, d)
		}
	}
	return &mailboxService{
		repo:    repo,
		auth:    cfg.AuthConfig,
		domains: domains,
	}
}

func (s *mailboxService) RandomAddress() (string, error) {
	address := utils.RandomAddress(s.domains)
	if address == "" {
		return "", errNoDomain
	}
	return address, nil
}

// Create hands out an unclaimed random address with a token for it.
func (s *mailboxService) Create(ctx context.Context) (*dto.MailboxSession, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "MailboxService.Create")
	defer span.Finish()

	address, err := s.RandomAddress()
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	tracing.TagMailbox(span, address)
	return s.session(address, utils.Now())
}

func (s *mailboxService) Claim(ctx context.Context, creds dto.MailboxCredentials) (*dto.MailboxSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailboxService.Claim")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	address := utils.NormalizeAddress(creds.Address)
	tracing.TagMailbox(span, address)

	if err := s.validateCredentials(address, creds.Password); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByAddress(ctx, address)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, vmailerrors.NewStorageError("get mailbox", err)
	}
	if existing != nil {
		return nil, vmailerrors.ErrMailboxExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "hash password")
	}

	now := utils.Now()
	mailbox := &models.Mailbox{
		Address:      address,
		PasswordHash: string(hash),
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.auth.MailboxTTL),
		LastLoginAt:  &now,
	}
	if err = s.repo.Create(ctx, mailbox); err != nil {
		tracing.TraceErr(span, err)
		return nil, vmailerrors.NewStorageError("create mailbox", err)
	}

	return s.session(address, now)
}

// Login checks the password and slides the mailbox expiry forward.
// Unknown addresses and wrong passwords both answer ErrInvalidCredentials.
func (s *mailboxService) Login(ctx context.Context, creds dto.MailboxCredentials) (*dto.MailboxSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailboxService.Login")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	address := utils.NormalizeAddress(creds.Address)
	tracing.TagMailbox(span, address)

	mailbox, err := s.repo.GetByAddress(ctx, address)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, vmailerrors.NewStorageError("get mailbox", err)
	}
	if mailbox == nil {
		return nil, vmailerrors.ErrInvalidCredentials
	}

	now := utils.Now()
	if mailbox.IsExpired(now) {
		return nil, vmailerrors.ErrMailboxExpired
	}
	if err = bcrypt.CompareHashAndPassword([]byte(mailbox.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, vmailerrors.ErrInvalidCredentials
	}

	if err = s.repo.UpdateLastLogin(ctx, address, now); err != nil {
		tracing.TraceErr(span, err)
		return nil, vmailerrors.NewStorageError("update last login", err)
	}
	if err = s.repo.ExtendExpiration(ctx, address, now.Add(s.auth.MailboxTTL)); err != nil {
		tracing.TraceErr(span, err)
		return nil, vmailerrors.NewStorageError("extend expiration", err)
	}

	return s.session(address, now)
}

// ValidateToken returns the mailbox address the token was issued for.
func (s *mailboxService) ValidateToken(token string) (string, error) {
	claims := &mailboxClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.auth.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", errors.Wrap(vmailerrors.ErrInvalidCredentials, err.Error())
	}
	if claims.Mailbox == "" {
		return "", vmailerrors.ErrInvalidCredentials
	}
	return claims.Mailbox, nil
}

func (s *mailboxService) validateCredentials(address, password string) error {
	if !utils.IsValidAddress(address) {
		return vmailerrors.NewValidationError("address", "not a valid email address")
	}
	if len(s.domains) > 0 && !slices.Contains(s.domains, utils.ExtractDomainFromEmail(address)) {
		return vmailerrors.NewValidationError("address", "domain is not served here")
	}
	if len(password) < s.auth.MinPasswordLn {
		return vmailerrors.NewValidationError("password", "too short")
	}
	return nil
}

func (s *mailboxService) session(address string, now time.Time) (*dto.MailboxSession, error) {
	expiresAt := now.Add(s.auth.TokenTTL)
	claims := mailboxClaims{
		Mailbox: address,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.auth.JWTSecret))
	if err != nil {
		return nil, errors.Wrap(err, "sign token")
	}
	return &dto.MailboxSession{Address: address, Token: token, ExpiresAt: expiresAt}, nil
}
