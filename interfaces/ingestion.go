package interfaces

import (
	"context"

	"github.com/customeros/vmail/dto"
	"github.com/customeros/vmail/internal/models"
)

// InboundMessage is one received message for one recipient, as handed over by a transport.
type InboundMessage interface {
	EnvelopeFrom() string
	EnvelopeTo() string
	Raw() []byte
	// Forward relays the raw message verbatim to address.
	Forward(ctx context.Context, address string) error
	// SetReject tells the transport to refuse the message.
	SetReject(reason string)
}

type IngestionPipeline interface {
	Process(ctx context.Context, msg InboundMessage) (*models.Email, error)
}

type MimeParser interface {
	Parse(ctx context.Context, raw []byte) (*dto.ParsedMessage, error)
	PeekSender(raw []byte) string
}

type BlocklistGuard interface {
	IsBlocked(ctx context.Context, candidates ...string) (bool, error)
	Add(ctx context.Context, entry, reason string) error
	Remove(ctx context.Context, entry string) error
	List(ctx context.Context) ([]*models.BlockedSender, error)
}

type AttachmentStore interface {
	Store(ctx context.Context, emailID string, part dto.ParsedAttachment) (*models.EmailAttachment, error)
	RewriteInline(html string, refs []*models.EmailAttachment) string
	PublicURL(emailID, filename string) string
	Delete(ctx context.Context, refs []*models.EmailAttachment) error
	Open(ctx context.Context, emailID, filename string) (*models.EmailAttachment, *dto.BlobObject, error)
}

type RetentionJanitor interface {
	Run(ctx context.Context, maxRecords int) (*dto.CleanupResult, error)
}

// EmailDeleter removes emails together with their attachments and blobs.
type EmailDeleter interface {
	DeleteEmails(ctx context.Context, ids []string) error
}
