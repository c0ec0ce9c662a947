package dto

import (
	"time"

	"github.com/customeros/vmail/internal/enum"
	"github.com/customeros/vmail/internal/models"
)

// ParsedMessage is the structured form of a raw RFC 5322 message.
type ParsedMessage struct {
	From       models.Address
	Sender     *models.Address
	ReplyTo    models.AddressList
	To         models.AddressList
	Cc         models.AddressList
	Bcc        models.AddressList
	Subject    string
	MessageID  string
	InReplyTo  string
	References []string
	Date       *time.Time
	Text       string
	HTML       string
	Headers    models.HeaderList
	Priority   enum.EmailPriority

	Attachments []ParsedAttachment
}

type ParsedAttachment struct {
	Filename    string
	ContentType string
	ContentID   string
	Content     []byte
}

// BlobObject is a downloaded attachment body.
type BlobObject struct {
	Body        []byte
	ContentType string
}
