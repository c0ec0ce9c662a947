package repository

import (
	"gorm.io/gorm"

	"github.com/customeros/vmail/interfaces"
)

type Repositories struct {
	EmailRepository           interfaces.EmailRepository
	EmailAttachmentRepository interfaces.EmailAttachmentRepository
	BlockedSenderRepository   interfaces.BlockedSenderRepository
	MailboxRepository         interfaces.MailboxRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		EmailRepository:           NewEmailRepository(db),
		EmailAttachmentRepository: NewEmailAttachmentRepository(db),
		BlockedSenderRepository:   NewBlockedSenderRepository(db),
		MailboxRepository:         NewMailboxRepository(db),
	}
}
