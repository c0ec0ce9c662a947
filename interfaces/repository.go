package interfaces

import (
	"context"
	"time"

	"github.com/customeros/vmail/dto"
	"github.com/customeros/vmail/internal/models"
)

type EmailRepository interface {
	Create(ctx context.Context, email *models.Email) error
	GetByID(ctx context.Context, id string) (*models.Email, error)
	ListByRecipient(ctx context.Context, address string) ([]*models.Email, error)
	ListByRecipientPaged(ctx context.Context, address string, filter dto.EmailListFilter) ([]*models.Email, int64, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*models.Email, int64, error)
	ListForExport(ctx context.Context) ([]*models.Email, error)
	ListIDsBeyond(ctx context.Context, keep int) ([]string, error)
	DeleteMany(ctx context.Context, ids []string) error
	UpdateSummary(ctx context.Context, id, summary string) error
	MarkAsRead(ctx context.Context, id string, at time.Time) error
	MarkAllAsRead(ctx context.Context, address string, at time.Time) (int64, error)
	CountByRecipient(ctx context.Context, address string) (*dto.MailboxStats, error)
	SenderStats(ctx context.Context, limit int) ([]dto.AddressCount, error)
	ReceiverStats(ctx context.Context, limit int) ([]dto.AddressCount, error)
}

type EmailAttachmentRepository interface {
	Create(ctx context.Context, attachment *models.EmailAttachment) error
	ListByEmail(ctx context.Context, emailID string) ([]*models.EmailAttachment, error)
	ListByEmails(ctx context.Context, emailIDs []string) ([]*models.EmailAttachment, error)
	GetByEmailAndFilename(ctx context.Context, emailID, filename string) (*models.EmailAttachment, error)
}

type BlockedSenderRepository interface {
	Add(ctx context.Context, entry *models.BlockedSender) error
	Remove(ctx context.Context, email string) error
	List(ctx context.Context) ([]*models.BlockedSender, error)
	ExistsAny(ctx context.Context, entries []string) (bool, error)
}

type MailboxRepository interface {
	Create(ctx context.Context, mailbox *models.Mailbox) error
	GetByAddress(ctx context.Context, address string) (*models.Mailbox, error)
	UpdateLastLogin(ctx context.Context, address string, at time.Time) error
	ExtendExpiration(ctx context.Context, address string, expiresAt time.Time) error
}
