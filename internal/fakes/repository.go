// Package fakes holds in-memory implementations of the vmail interfaces for tests.
package fakes

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/customeros/vmail/dto"
	"github.com/customeros/vmail/internal/models"
)

var ErrInjected = errors.New("injected failure")

// EmailRepository keeps emails in insertion order. Set the *Err fields to force failures.
type EmailRepository struct {
	mu     sync.Mutex
	Emails []*models.Email

	CreateErr error
	DeleteErr error
	GetErr    error

	DeletedBatches [][]string
	// Attachments, when set, loses its rows for deleted emails like the real transaction does.
	Attachments *EmailAttachmentRepository
}

func NewEmailRepository() *EmailRepository {
	return &EmailRepository{}
}

func (r *EmailRepository) Create(_ context.Context, email *models.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return r.CreateErr
	}
	if email.CreatedAt.IsZero() {
		email.CreatedAt = time.Now().UTC().Add(time.Duration(len(r.Emails)) * time.Millisecond)
	}
	email.UpdatedAt = email.CreatedAt
	r.Emails = append(r.Emails, email)
	return nil
}

func (r *EmailRepository) GetByID(_ context.Context, id string) (*models.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.GetErr != nil {
		return nil, r.GetErr
	}
	for _, e := range r.Emails {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (r *EmailRepository) newestFirst(match func(*models.Email) bool) []*models.Email {
	var out []*models.Email
	for i := len(r.Emails) - 1; i >= 0; i-- {
		if match(r.Emails[i]) {
			out = append(out, r.Emails[i])
		}
	}
	return out
}

func (r *EmailRepository) ListByRecipient(_ context.Context, address string) ([]*models.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.newestFirst(func(e *models.Email) bool { return e.MessageTo == address }), nil
}

func (r *EmailRepository) ListByRecipientPaged(_ context.Context, address string, filter dto.EmailListFilter) ([]*models.Email, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.newestFirst(func(e *models.Email) bool {
		return e.MessageTo == address && (!filter.UnreadOnly || !e.IsRead)
	})
	return page(all, filter.Limit, filter.Offset), int64(len(all)), nil
}

func (r *EmailRepository) Search(_ context.Context, query string, limit, offset int) ([]*models.Email, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := strings.ToLower(query)
	all := r.newestFirst(func(e *models.Email) bool {
		return q == "" ||
			strings.Contains(strings.ToLower(e.MessageTo), q) ||
			strings.Contains(strings.ToLower(e.MessageFrom), q) ||
			strings.Contains(strings.ToLower(e.Subject), q)
	})
	return page(all, limit, offset), int64(len(all)), nil
}

func page(all []*models.Email, limit, offset int) []*models.Email {
	if limit <= 0 {
		limit = 50
	}
	if offset >= len(all) {
		return nil
	}
	return all[offset:min(offset+limit, len(all))]
}

func (r *EmailRepository) ListForExport(_ context.Context) ([]*models.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.newestFirst(func(*models.Email) bool { return true }), nil
}

func (r *EmailRepository) ListIDsBeyond(_ context.Context, keep int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	beyond := len(r.Emails) - keep
	if beyond <= 0 {
		return nil, nil
	}
	ids := make([]string, 0, beyond)
	for _, e := range r.Emails[:beyond] {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (r *EmailRepository) DeleteMany(_ context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}
	if r.DeleteErr != nil {
		return r.DeleteErr
	}
	r.DeletedBatches = append(r.DeletedBatches, ids)
	r.Emails = slices.DeleteFunc(r.Emails, func(e *models.Email) bool { return slices.Contains(ids, e.ID) })
	if r.Attachments != nil {
		r.Attachments.removeForEmails(ids)
	}
	return nil
}

func (r *EmailRepository) UpdateSummary(_ context.Context, id, summary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Emails {
		if e.ID == id {
			e.Summary = summary
		}
	}
	return nil
}

func (r *EmailRepository) MarkAsRead(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Emails {
		if e.ID == id && !e.IsRead {
			e.IsRead = true
			e.ReadAt = &at
		}
	}
	return nil
}

func (r *EmailRepository) MarkAllAsRead(_ context.Context, address string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, e := range r.Emails {
		if e.MessageTo == address && !e.IsRead {
			e.IsRead = true
			e.ReadAt = &at
			n++
		}
	}
	return n, nil
}

func (r *EmailRepository) CountByRecipient(_ context.Context, address string) (*dto.MailboxStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &dto.MailboxStats{}
	for _, e := range r.Emails {
		if e.MessageTo != address {
			continue
		}
		stats.Total++
		if !e.IsRead {
			stats.Unread++
		}
	}
	stats.Read = stats.Total - stats.Unread
	return stats, nil
}

func (r *EmailRepository) SenderStats(_ context.Context, limit int) ([]dto.AddressCount, error) {
	return r.groupCount(limit, func(e *models.Email) string { return e.MessageFrom }), nil
}

func (r *EmailRepository) ReceiverStats(_ context.Context, limit int) ([]dto.AddressCount, error) {
	return r.groupCount(limit, func(e *models.Email) string { return e.MessageTo }), nil
}

func (r *EmailRepository) groupCount(limit int, key func(*models.Email) string) []dto.AddressCount {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int64{}
	for _, e := range r.Emails {
		counts[key(e)]++
	}
	out := make([]dto.AddressCount, 0, len(counts))
	for address, count := range counts {
		out = append(out, dto.AddressCount{Address: address, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Address < out[j].Address
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type EmailAttachmentRepository struct {
	mu          sync.Mutex
	Attachments []*models.EmailAttachment

	CreateErr error
}

func NewEmailAttachmentRepository() *EmailAttachmentRepository {
	return &EmailAttachmentRepository{}
}

func (r *EmailAttachmentRepository) Create(_ context.Context, attachment *models.EmailAttachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return r.CreateErr
	}
	if attachment.ID == "" {
		_ = attachment.BeforeCreate(nil)
	}
	r.Attachments = append(r.Attachments, attachment)
	return nil
}

func (r *EmailAttachmentRepository) ListByEmail(_ context.Context, emailID string) ([]*models.EmailAttachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.EmailAttachment
	for _, a := range r.Attachments {
		if a.EmailID == emailID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *EmailAttachmentRepository) ListByEmails(_ context.Context, emailIDs []string) ([]*models.EmailAttachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.EmailAttachment
	for _, a := range r.Attachments {
		if slices.Contains(emailIDs, a.EmailID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *EmailAttachmentRepository) GetByEmailAndFilename(_ context.Context, emailID, filename string) (*models.EmailAttachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.Attachments {
		if a.EmailID == emailID && a.Filename == filename {
			return a, nil
		}
	}
	return nil, nil
}

func (r *EmailAttachmentRepository) removeForEmails(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Attachments = slices.DeleteFunc(r.Attachments, func(a *models.EmailAttachment) bool {
		return slices.Contains(ids, a.EmailID)
	})
}

type BlockedSenderRepository struct {
	mu      sync.Mutex
	Entries []*models.BlockedSender

	ExistsErr error
	Lookups   [][]string
}

func NewBlockedSenderRepository(entries ...string) *BlockedSenderRepository {
	r := &BlockedSenderRepository{}
	for _, e := range entries {
		r.Entries = append(r.Entries, &models.BlockedSender{Email: e, CreatedAt: time.Now().UTC()})
	}
	return r
}

func (r *BlockedSenderRepository) Add(_ context.Context, entry *models.BlockedSender) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Entries {
		if e.Email == entry.Email {
			return nil
		}
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	r.Entries = append(r.Entries, entry)
	return nil
}

func (r *BlockedSenderRepository) Remove(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = slices.DeleteFunc(r.Entries, func(e *models.BlockedSender) bool { return e.Email == email })
	return nil
}

func (r *BlockedSenderRepository) List(_ context.Context) ([]*models.BlockedSender, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := slices.Clone(r.Entries)
	slices.Reverse(out)
	return out, nil
}

func (r *BlockedSenderRepository) ExistsAny(_ context.Context, entries []string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Lookups = append(r.Lookups, entries)
	if r.ExistsErr != nil {
		return false, r.ExistsErr
	}
	for _, e := range r.Entries {
		if slices.Contains(entries, e.Email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *BlockedSenderRepository) Has(entry string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.ContainsFunc(r.Entries, func(e *models.BlockedSender) bool { return e.Email == entry })
}

type MailboxRepository struct {
	mu        sync.Mutex
	Mailboxes map[string]*models.Mailbox
}

func NewMailboxRepository() *MailboxRepository {
	return &MailboxRepository{Mailboxes: map[string]*models.Mailbox{}}
}

func (r *MailboxRepository) Create(_ context.Context, mailbox *models.Mailbox) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Mailboxes[mailbox.Address]; ok {
		return errors.New("duplicate key value violates unique constraint")
	}
	r.Mailboxes[mailbox.Address] = mailbox
	return nil
}

func (r *MailboxRepository) GetByAddress(_ context.Context, address string) (*models.Mailbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Mailboxes[address], nil
}

func (r *MailboxRepository) UpdateLastLogin(_ context.Context, address string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.Mailboxes[address]; ok {
		m.LastLoginAt = &at
	}
	return nil
}

func (r *MailboxRepository) ExtendExpiration(_ context.Context, address string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.Mailboxes[address]; ok {
		m.ExpiresAt = expiresAt
	}
	return nil
}
