package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/vmail/internal/utils"
)

// BlockedSender holds one blocklist entry: "user@domain", "@domain" or "*@domain".
type BlockedSender struct {
	Email     string    `gorm:"column:email;type:varchar(320);primaryKey" json:"email"`
	Reason    string    `gorm:"column:reason;type:text" json:"reason"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp" json:"createdAt"`
}

func (BlockedSender) TableName() string {
	return "blocked_senders"
}

func (b *BlockedSender) BeforeCreate(tx *gorm.DB) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = utils.Now()
	}
	return nil
}
