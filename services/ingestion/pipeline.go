package ingestion

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/log"

	"github.com/customeros/vmail/config"
	"github.com/customeros/vmail/dto"
	"github.com/customeros/vmail/interfaces"
	"github.com/customeros/vmail/internal/enum"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/logger"
	"github.com/customeros/vmail/internal/models"
	"github.com/customeros/vmail/internal/tracing"
	"github.com/customeros/vmail/internal/utils"
	"github.com/customeros/vmail/services/webhook"
)

const DefaultSideEffectTimeout = 10 * time.Second

type Dependencies struct {
	Parser      interfaces.MimeParser
	Blocklist   interfaces.BlocklistGuard
	Attachments interfaces.AttachmentStore
	Emails      interfaces.EmailRepository
	Deleter     interfaces.EmailDeleter
	Notifier    interfaces.NotificationDispatcher
	Webhook     interfaces.WebhookService
	// Events is nil when RABBITMQ_URL is not set.
	Events interfaces.EventsPublisher
}

type pipeline struct {
	log               logger.Logger
	deps              Dependencies
	backupEmail       string
	sideEffectTimeout time.Duration
}

func NewIngestionPipeline(cfg *config.Config, log logger.Logger, deps Dependencies) interfaces.IngestionPipeline {
	return &pipeline{
		log:               log,
		deps:              deps,
		backupEmail:       utils.NormalizeAddress(cfg.MailConfig.BackupEmail),
		sideEffectTimeout: DefaultSideEffectTimeout,
	}
}

// Process runs one message for one recipient through block check, parse, store and notify.
// Only the outcome of the store decides the result; notifications are best effort.
func (p *pipeline) Process(ctx context.Context, msg interfaces.InboundMessage) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IngestionPipeline.Process")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagMailbox(span, msg.EnvelopeTo())
	span.LogFields(log.String("envelopeFrom", msg.EnvelopeFrom()), log.Int("size", len(msg.Raw())))

	raw := msg.Raw()
	headerFrom := p.deps.Parser.PeekSender(raw)

	blocked, err := p.deps.Blocklist.IsBlocked(ctx, msg.EnvelopeFrom(), headerFrom)
	if err != nil {
		// fail open
		tracing.TraceErr(span, err)
		p.log.Errorf("Blocklist lookup failed for %s, accepting message: %v", msg.EnvelopeFrom(), err)
	}
	if blocked {
		span.SetTag("outcome", enum.IngestionRejected.String())
		p.log.Infof("Rejected message from %s / %s to %s: sender is blocked", msg.EnvelopeFrom(), headerFrom, msg.EnvelopeTo())
		msg.SetReject(vmailerrors.ErrSenderBlocked.Reason)
		return nil, vmailerrors.ErrSenderBlocked
	}

	parsed, err := p.deps.Parser.Parse(ctx, raw)
	if err != nil {
		span.SetTag("outcome", enum.IngestionDropped.String())
		tracing.TraceErr(span, err)
		p.log.Warnf("Dropping unparseable message from %s to %s: %v", msg.EnvelopeFrom(), msg.EnvelopeTo(), err)
		if !vmailerrors.IsParseError(err) {
			err = vmailerrors.NewParseError(err)
		}
		return nil, err
	}

	email := p.buildEmail(msg, parsed)
	tracing.TagEmail(span, email.ID)

	refs := p.storeAttachments(ctx, email.ID, parsed.Attachments)
	email.HTML = p.deps.Attachments.RewriteInline(parsed.HTML, refs)
	email.Text = utils.DerivePlainText(parsed.Text, email.HTML)

	if err = p.deps.Emails.Create(ctx, email); err != nil {
		span.SetTag("outcome", enum.IngestionFailed.String())
		tracing.TraceErr(span, err)
		p.log.Errorf("Failed to store email %s for %s: %v", email.ID, email.MessageTo, err)
		p.discardAttachments(ctx, email.ID, refs)
		if vmailerrors.IsValidationError(err) || vmailerrors.IsStorageError(err) {
			return nil, err
		}
		return nil, vmailerrors.NewStorageError("create email", err)
	}

	span.SetTag("outcome", enum.IngestionStored.String())
	p.log.Infof("Stored email %s from %s to %s with %d attachments", email.ID, email.MessageFrom, email.MessageTo, len(refs))

	p.runSideEffects(ctx, msg, email, refs)
	return email, nil
}

func (p *pipeline) buildEmail(msg interfaces.InboundMessage, parsed *dto.ParsedMessage) *models.Email {
	messageFrom := utils.NormalizeAddress(parsed.From.Address)
	if messageFrom == "" || messageFrom == models.UnknownAddress.Address {
		messageFrom = utils.CleanText(utils.NormalizeAddress(msg.EnvelopeFrom()))
	}
	// null reverse-path bounces carry neither
	if messageFrom == "" {
		messageFrom = models.UnknownAddress.Address
	}

	from := parsed.From
	if from.Address == "" {
		from = models.UnknownAddress
	}

	return &models.Email{
		ID:          models.NewEmailID(),
		MessageFrom: messageFrom,
		MessageTo:   utils.CleanText(utils.NormalizeAddress(msg.EnvelopeTo())),
		From:        from,
		Sender:      parsed.Sender,
		ReplyTo:     parsed.ReplyTo,
		To:          parsed.To,
		Cc:          parsed.Cc,
		Bcc:         parsed.Bcc,
		Headers:     parsed.Headers,
		Subject:     parsed.Subject,
		MessageID:   parsed.MessageID,
		InReplyTo:   parsed.InReplyTo,
		References:  parsed.References,
		Date:        parsed.Date,
		Priority:    parsed.Priority,
	}
}

func (p *pipeline) storeAttachments(ctx context.Context, emailID string, parts []dto.ParsedAttachment) []*models.EmailAttachment {
	refs := make([]*models.EmailAttachment, 0, len(parts))
	for _, part := range parts {
		ref, err := p.deps.Attachments.Store(ctx, emailID, part)
		if err != nil {
			p.log.Warnf("Skipping attachment %q of email %s: %v", part.Filename, emailID, err)
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

// discardAttachments removes what was stored for an email whose row was never written.
func (p *pipeline) discardAttachments(ctx context.Context, emailID string, refs []*models.EmailAttachment) {
	if len(refs) == 0 || p.deps.Deleter == nil {
		return
	}
	if err := p.deps.Deleter.DeleteEmails(ctx, []string{emailID}); err != nil {
		p.log.Warnf("Failed to clean up attachments of unsaved email %s: %v", emailID, err)
	}
}

func (p *pipeline) runSideEffects(ctx context.Context, msg interfaces.InboundMessage, email *models.Email, refs []*models.EmailAttachment) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IngestionPipeline.runSideEffects")
	defer span.Finish()
	tracing.TagEmail(span, email.ID)

	// side effects outlive a cancelled transport context
	base := context.WithoutCancel(ctx)
	otp := utils.ExtractOTP(email.Subject, email.Text)

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer tracing.RecoverAndLogToJaeger(p.log)

			sideCtx, cancel := context.WithTimeout(base, p.sideEffectTimeout)
			defer cancel()
			if err := fn(sideCtx); err != nil {
				tracing.TraceErr(span, err, log.String("sideEffect", name))
				p.log.Warnf("Side effect %s failed for email %s: %v", name, email.ID, err)
			}
		}()
	}

	if p.backupEmail != "" {
		run("forward", func(ctx context.Context) error {
			return msg.Forward(ctx, p.backupEmail)
		})
	}
	if p.deps.Webhook != nil && p.deps.Webhook.Enabled() {
		run("webhook", func(ctx context.Context) error {
			return p.deps.Webhook.Send(ctx, webhook.BuildPayload(email, refs, p.deps.Attachments.PublicURL))
		})
	}
	if p.deps.Events != nil {
		run("events", func(ctx context.Context) error {
			return p.deps.Events.PublishEmailReceived(ctx, receivedEvent(email, refs, otp))
		})
	}
	if p.deps.Notifier != nil && p.deps.Notifier.Enabled() {
		run("telegram", func(ctx context.Context) error {
			return p.deps.Notifier.NotifyEmailReceived(ctx, email, refs, otp)
		})
	}

	wg.Wait()
}

func receivedEvent(email *models.Email, refs []*models.EmailAttachment, otp string) dto.EmailReceivedEvent {
	filenames := make([]string, 0, len(refs))
	for _, ref := range refs {
		filenames = append(filenames, ref.Filename)
	}
	return dto.EmailReceivedEvent{
		EmailId:     email.ID,
		MessageFrom: email.MessageFrom,
		MessageTo:   email.MessageTo,
		Subject:     email.Subject,
		Attachments: filenames,
		OTP:         otp,
	}
}
