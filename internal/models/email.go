package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/customeros/vmail/internal/enum"
	"github.com/customeros/vmail/internal/utils"
)

// Email is one received message as delivered to a single recipient mailbox.
type Email struct {
	ID          string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	MessageFrom string `gorm:"column:message_from;type:varchar(320);index;not null" json:"messageFrom"`
	MessageTo   string `gorm:"column:message_to;type:varchar(320);index;not null" json:"messageTo"`

	// Parsed header addresses
	From    Address     `gorm:"column:from;type:jsonb;not null" json:"from"`
	Sender  *Address    `gorm:"column:sender;type:jsonb" json:"sender"`
	ReplyTo AddressList `gorm:"column:reply_to;type:jsonb" json:"replyTo"`
	To      AddressList `gorm:"column:to;type:jsonb" json:"to"`
	Cc      AddressList `gorm:"column:cc;type:jsonb" json:"cc"`
	Bcc     AddressList `gorm:"column:bcc;type:jsonb" json:"bcc"`
	Headers HeaderList  `gorm:"column:headers;type:jsonb" json:"headers"`

	Subject    string         `gorm:"column:subject;type:text" json:"subject"`
	MessageID  string         `gorm:"column:message_id;type:varchar(998)" json:"messageId"`
	InReplyTo  string         `gorm:"column:in_reply_to;type:varchar(998)" json:"inReplyTo"`
	References pq.StringArray `gorm:"column:references;type:text[]" json:"references"`
	Date       *time.Time     `gorm:"column:date;type:timestamp" json:"date"`

	Text     string             `gorm:"column:text;type:text" json:"text"`
	HTML     string             `gorm:"column:html;type:text" json:"html"`
	Summary  string             `gorm:"column:summary;type:text" json:"summary"`
	Priority enum.EmailPriority `gorm:"column:priority;type:varchar(10);not null" json:"priority"`

	IsRead bool       `gorm:"column:is_read;not null" json:"isRead"`
	ReadAt *time.Time `gorm:"column:read_at;type:timestamp" json:"readAt"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;index;<-:create" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp" json:"updatedAt"`
}

func (Email) TableName() string {
	return "emails"
}

func (e *Email) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = NewEmailID()
	}
	if e.Priority == "" {
		e.Priority = enum.EmailPriorityNormal
	}
	now := utils.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = e.CreatedAt
	return nil
}

func NewEmailID() string {
	return utils.GenerateNanoIDWithPrefix("mail", 16)
}
