package interfaces

import (
	"context"

	"github.com/customeros/vmail/dto"
)

type MailboxService interface {
	RandomAddress() (string, error)
	Create(ctx context.Context) (*dto.MailboxSession, error)
	Claim(ctx context.Context, creds dto.MailboxCredentials) (*dto.MailboxSession, error)
	Login(ctx context.Context, creds dto.MailboxCredentials) (*dto.MailboxSession, error)
	ValidateToken(token string) (string, error)
}

type OutboundMailer interface {
	Send(ctx context.Context, req dto.SendEmailRequest) error
	Domains() []string
}
