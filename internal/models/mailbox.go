package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/vmail/internal/utils"
)

// Mailbox is a claimed burner address. Emails reference it by address only,
// an unclaimed address still receives mail.
type Mailbox struct {
	Address      string     `gorm:"column:address;type:varchar(320);primaryKey" json:"address"`
	PasswordHash string     `gorm:"column:password_hash;type:varchar(100);not null" json:"-"`
	CreatedAt    time.Time  `gorm:"column:created_at;type:timestamp" json:"createdAt"`
	ExpiresAt    time.Time  `gorm:"column:expires_at;type:timestamp;index" json:"expiresAt"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at;type:timestamp" json:"lastLoginAt"`
}

func (Mailbox) TableName() string {
	return "mailboxes"
}

func (m *Mailbox) BeforeCreate(tx *gorm.DB) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = utils.Now()
	}
	return nil
}

func (m *Mailbox) IsExpired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && now.After(m.ExpiresAt)
}
