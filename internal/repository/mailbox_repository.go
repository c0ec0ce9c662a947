package repository

import (
	"context"
	"errors"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/vmail/interfaces"
	"github.com/customeros/vmail/internal/models"
	"github.com/customeros/vmail/internal/tracing"
)

type mailboxRepository struct {
	db *gorm.DB
}

func NewMailboxRepository(db *gorm.DB) interfaces.MailboxRepository {
	return &mailboxRepository{db: db}
}

func (r *mailboxRepository) Create(ctx context.Context, mailbox *models.Mailbox) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagMailbox(span, mailbox.Address)

	if err := r.db.WithContext(ctx).Create(mailbox).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *mailboxRepository) GetByAddress(ctx context.Context, address string) (*models.Mailbox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.GetByAddress")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagMailbox(span, address)

	var mailbox models.Mailbox
	err := r.db.WithContext(ctx).Where("address = ?", address).First(&mailbox).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &mailbox, nil
}

func (r *mailboxRepository) UpdateLastLogin(ctx context.Context, address string, at time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.UpdateLastLogin")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagMailbox(span, address)

	err := r.db.WithContext(ctx).
		Model(&models.Mailbox{}).
		Where("address = ?", address).
		Update("last_login_at", at).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *mailboxRepository) ExtendExpiration(ctx context.Context, address string, expiresAt time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.ExtendExpiration")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagMailbox(span, address)

	err := r.db.WithContext(ctx).
		Model(&models.Mailbox{}).
		Where("address = ?", address).
		Update("expires_at", expiresAt).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
