package repository

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/vmail/dto"
	"github.com/customeros/vmail/interfaces"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/models"
	"github.com/customeros/vmail/internal/tracing"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

type emailRepository struct {
	db *gorm.DB
}

func NewEmailRepository(db *gorm.DB) interfaces.EmailRepository {
	return &emailRepository{
		db: db,
	}
}

func (r *emailRepository) Create(ctx context.Context, email *models.Email) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if err := validateEmail(email); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagEmail(span, email.ID)

	if err := r.db.WithContext(ctx).Create(email).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func validateEmail(email *models.Email) error {
	switch {
	case email == nil:
		return vmailerrors.NewValidationError("email", "is nil")
	case email.ID == "":
		return vmailerrors.NewValidationError("id", "is required")
	case strings.TrimSpace(email.MessageFrom) == "":
		return vmailerrors.NewValidationError("messageFrom", "is required")
	case strings.TrimSpace(email.MessageTo) == "":
		return vmailerrors.NewValidationError("messageTo", "is required")
	case strings.TrimSpace(email.From.Address) == "":
		return vmailerrors.NewValidationError("from", "is required")
	}
	return nil
}

func (r *emailRepository) GetByID(ctx context.Context, id string) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEmail(span, id)

	var email models.Email
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &email, nil
}

// ListByRecipient returns every email for the mailbox, newest first.
func (r *emailRepository) ListByRecipient(ctx context.Context, address string) ([]*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.ListByRecipient")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagMailbox(span, address)

	var emails []*models.Email
	err := r.db.WithContext(ctx).
		Where("message_to = ?", address).
		Order("created_at DESC").
		Find(&emails).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return emails, nil
}

func (r *emailRepository) ListByRecipientPaged(ctx context.Context, address string, filter dto.EmailListFilter) ([]*models.Email, int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.ListByRecipientPaged")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagMailbox(span, address)

	query := r.db.WithContext(ctx).Model(&models.Email{}).Where("message_to = ?", address)
	if filter.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	var emails []*models.Email
	err := query.
		Order("created_at DESC").
		Limit(clampLimit(filter.Limit)).
		Offset(max(filter.Offset, 0)).
		Find(&emails).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}
	return emails, total, nil
}

// Search matches query against recipient, sender and subject.
func (r *emailRepository) Search(ctx context.Context, query string, limit, offset int) ([]*models.Email, int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.Search")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("query", query)

	db := r.db.WithContext(ctx).Model(&models.Email{})
	if query = strings.TrimSpace(query); query != "" {
		pattern := "%" + query + "%"
		db = db.Where("message_to ILIKE ? OR message_from ILIKE ? OR subject ILIKE ?", pattern, pattern, pattern)
	}
	db = db.Session(&gorm.Session{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	var emails []*models.Email
	err := db.
		Order("created_at DESC").
		Limit(clampLimit(limit)).
		Offset(max(offset, 0)).
		Find(&emails).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}
	return emails, total, nil
}

func (r *emailRepository) ListForExport(ctx context.Context) ([]*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.ListForExport")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var emails []*models.Email
	err := r.db.WithContext(ctx).
		Select("id", "message_from", "message_to", "subject", "created_at", "is_read").
		Order("created_at DESC").
		Find(&emails).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return emails, nil
}

// ListIDsBeyond returns the ids of all but the newest keep emails, oldest first.
func (r *emailRepository) ListIDsBeyond(ctx context.Context, keep int) ([]string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.ListIDsBeyond")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("keep", keep)

	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Order("created_at DESC").
		Order("id DESC").
		Offset(max(keep, 0)).
		Pluck("id", &ids).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	slices.Reverse(ids)
	return ids, nil
}

// DeleteMany removes the emails and their attachment rows in one transaction.
// Blobs must already be gone.
func (r *emailRepository) DeleteMany(ctx context.Context, ids []string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.DeleteMany")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("count", len(ids))

	if len(ids) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email_id IN ?", ids).Delete(&models.EmailAttachment{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.Email{}).Error
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *emailRepository) UpdateSummary(ctx context.Context, id, summary string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.UpdateSummary")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEmail(span, id)

	err := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Where("id = ?", id).
		Update("summary", summary).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *emailRepository) MarkAsRead(ctx context.Context, id string, at time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.MarkAsRead")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEmail(span, id)

	err := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *emailRepository) MarkAllAsRead(ctx context.Context, address string, at time.Time) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.MarkAllAsRead")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagMailbox(span, address)

	result := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Where("message_to = ? AND is_read = ?", address, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *emailRepository) CountByRecipient(ctx context.Context, address string) (*dto.MailboxStats, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.CountByRecipient")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagMailbox(span, address)

	var stats dto.MailboxStats
	err := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Select("COUNT(*) AS total, COUNT(*) FILTER (WHERE NOT is_read) AS unread").
		Where("message_to = ?", address).
		Scan(&stats).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	stats.Read = stats.Total - stats.Unread
	return &stats, nil
}

func (r *emailRepository) SenderStats(ctx context.Context, limit int) ([]dto.AddressCount, error) {
	return r.groupCount(ctx, "emailRepository.SenderStats", "message_from", limit)
}

func (r *emailRepository) ReceiverStats(ctx context.Context, limit int) ([]dto.AddressCount, error) {
	return r.groupCount(ctx, "emailRepository.ReceiverStats", "message_to", limit)
}

func (r *emailRepository) groupCount(ctx context.Context, operation, column string, limit int) ([]dto.AddressCount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, operation)
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var out []dto.AddressCount
	err := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Select(column + " AS address, COUNT(*) AS count").
		Group(column).
		Order("count DESC").
		Limit(clampLimit(limit)).
		Scan(&out).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return out, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
