package retention

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/log"

	"github.com/customeros/vmail/dto"
	"github.com/customeros/vmail/interfaces"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/logger"
	"github.com/customeros/vmail/internal/models"
	"github.com/customeros/vmail/internal/tracing"
)

// emailDeleter removes blobs first, then attachment rows and the email in one transaction.
// A failure in the blob step leaves the rows in place so the delete can be retried.
type emailDeleter struct {
	emails      interfaces.EmailRepository
	attachRepo  interfaces.EmailAttachmentRepository
	attachments interfaces.AttachmentStore
}

func NewEmailDeleter(emails interfaces.EmailRepository, attachRepo interfaces.EmailAttachmentRepository, attachments interfaces.AttachmentStore) interfaces.EmailDeleter {
	return &emailDeleter{
		emails:      emails,
		attachRepo:  attachRepo,
		attachments: attachments,
	}
}

func (d *emailDeleter) DeleteEmails(ctx context.Context, ids []string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailDeleter.DeleteEmails")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogFields(log.Int("count", len(ids)))

	if len(ids) == 0 {
		return nil
	}

	var (
		refs []*models.EmailAttachment
		err  error
	)
	if len(ids) == 1 {
		refs, err = d.attachRepo.ListByEmail(ctx, ids[0])
	} else {
		refs, err = d.attachRepo.ListByEmails(ctx, ids)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return vmailerrors.NewStorageError("list attachments", err)
	}

	if err = d.attachments.Delete(ctx, refs); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if err = d.emails.DeleteMany(ctx, ids); err != nil {
		tracing.TraceErr(span, err)
		return vmailerrors.NewStorageError("delete emails", err)
	}
	return nil
}

type retentionJanitor struct {
	log     logger.Logger
	emails  interfaces.EmailRepository
	deleter interfaces.EmailDeleter
}

func NewRetentionJanitor(log logger.Logger, emails interfaces.EmailRepository, deleter interfaces.EmailDeleter) interfaces.RetentionJanitor {
	return &retentionJanitor{
		log:     log,
		emails:  emails,
		deleter: deleter,
	}
}

// Run keeps the newest maxRecords emails. Items that fail are logged, reported and
// left for the next run.
func (j *retentionJanitor) Run(ctx context.Context, maxRecords int) (*dto.CleanupResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RetentionJanitor.Run")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogFields(log.Int("maxRecords", maxRecords))

	if maxRecords < 1 {
		err := vmailerrors.NewValidationError("maxRecords", "must be at least 1")
		tracing.TraceErr(span, err)
		return nil, err
	}

	ids, err := j.emails.ListIDsBeyond(ctx, maxRecords)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, vmailerrors.NewStorageError("list expired emails", err)
	}

	result := &dto.CleanupResult{Candidates: len(ids)}
	for _, id := range ids {
		if ctx.Err() != nil {
			tracing.TraceErr(span, ctx.Err())
			return result, ctx.Err()
		}
		if err := j.deleter.DeleteEmails(ctx, []string{id}); err != nil {
			tracing.TraceErr(span, err, log.String("emailId", id))
			j.log.Errorf("Retention failed to delete email %s: %v", id, err)
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Deleted++
	}

	span.LogFields(log.Int("deleted", result.Deleted), log.Int("failed", len(result.Failed)))
	if result.Candidates > 0 {
		j.log.Infof("Retention removed %d of %d emails beyond the newest %d", result.Deleted, result.Candidates, maxRecords)
	}
	return result, nil
}
