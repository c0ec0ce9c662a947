package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/vmail/internal/utils"
)

// EmailAttachment is the metadata row for one blob stored under R2Key.
type EmailAttachment struct {
	ID          string    `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	EmailID     string    `gorm:"column:email_id;type:varchar(50);index;not null" json:"emailId"`
	Filename    string    `gorm:"column:filename;type:varchar(500);not null" json:"filename"`
	ContentType string    `gorm:"column:content_type;type:varchar(255)" json:"contentType"`
	Size        int64     `gorm:"column:size" json:"size"`
	R2Key       string    `gorm:"column:r2_key;type:varchar(1000);not null" json:"r2Key"`
	ContentID   string    `gorm:"column:cid;type:varchar(255)" json:"cid,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamp" json:"createdAt"`
}

func (EmailAttachment) TableName() string {
	return "email_attachments"
}

func (e *EmailAttachment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("file", 12)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = utils.Now()
	}
	return nil
}

// SizeKB is the size rounded to one decimal for display.
func (e *EmailAttachment) SizeKB() float64 {
	return float64(int64(float64(e.Size)/1024*10+0.5)) / 10
}
