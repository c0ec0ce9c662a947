package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/customeros/vmail/interfaces"
	"github.com/customeros/vmail/internal/models"
	"github.com/customeros/vmail/internal/tracing"
)

type blockedSenderRepository struct {
	db *gorm.DB
}

func NewBlockedSenderRepository(db *gorm.DB) interfaces.BlockedSenderRepository {
	return &blockedSenderRepository{db: db}
}

// Add inserts the entry; an existing entry is left untouched.
func (r *blockedSenderRepository) Add(ctx context.Context, entry *models.BlockedSender) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "blockedSenderRepository.Add")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("entry", entry.Email)

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entry).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *blockedSenderRepository) Remove(ctx context.Context, email string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "blockedSenderRepository.Remove")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("entry", email)

	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		Delete(&models.BlockedSender{}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *blockedSenderRepository) List(ctx context.Context) ([]*models.BlockedSender, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "blockedSenderRepository.List")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var entries []*models.BlockedSender
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return entries, nil
}

// ExistsAny reports whether any of the literal entries is stored.
func (r *blockedSenderRepository) ExistsAny(ctx context.Context, entries []string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "blockedSenderRepository.ExistsAny")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("entries", entries)

	if len(entries) == 0 {
		return false, nil
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BlockedSender{}).
		Where("email IN ?", entries).
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return false, err
	}
	return count > 0, nil
}
