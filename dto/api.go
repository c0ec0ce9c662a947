package dto

import "time"

type EmailListFilter struct {
	Limit      int
	Offset     int
	UnreadOnly bool
}

type AddressCount struct {
	Address string `json:"address"`
	Count   int64  `json:"count"`
}

type MailboxStats struct {
	Total  int64 `json:"total"`
	Unread int64 `json:"unread"`
	Read   int64 `json:"read"`
}

type CleanupResult struct {
	Candidates int      `json:"candidates"`
	Deleted    int      `json:"deleted"`
	Failed     []string `json:"failed,omitempty"`
}

type ExportedEmail struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"created_at"`
	IsRead    bool      `json:"is_read"`
}

type SendEmailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}

type AIReplyRequest struct {
	EmailID      string `json:"emailId"`
	Instructions string `json:"instructions"`
}

type BlocklistRequest struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

type DeleteEmailsRequest struct {
	IDs []string `json:"ids"`
}

type MailboxCredentials struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

type MailboxSession struct {
	Address   string    `json:"address"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type EmailListItem struct {
	ID          string    `json:"id"`
	From        string    `json:"from"`
	FromName    string    `json:"fromName"`
	Subject     string    `json:"subject"`
	TextPreview string    `json:"textPreview"`
	IsRead      bool      `json:"isRead"`
	Priority    string    `json:"priority"`
	CreatedAt   time.Time `json:"createdAt"`
}
