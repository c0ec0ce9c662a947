package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/vmail/config"
	"github.com/customeros/vmail/dto"
	"github.com/customeros/vmail/interfaces"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/models"
	"github.com/customeros/vmail/internal/tracing"
)

const (
	HeaderSecret = "X-Webhook-Secret"

	// Bodies at or above this size are left out of the payload.
	MaxHTMLChars = 50000
)

type webhookService struct {
	cfg    *config.WebhookConfig
	client *http.Client
}

func NewWebhookService(cfg *config.WebhookConfig, timeout time.Duration) interfaces.WebhookService {
	return &webhookService{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *webhookService) Enabled() bool {
	return s.cfg != nil && s.cfg.URL != ""
}

func (s *webhookService) Send(ctx context.Context, payload dto.WebhookPayload) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "WebhookService.Send")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEmail(span, payload.ID)

	if !s.Enabled() {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		tracing.TraceErr(span, err)
		return vmailerrors.NewNotificationError("webhook", errors.Wrap(err, "failed to marshal payload"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		tracing.TraceErr(span, err)
		return vmailerrors.NewNotificationError("webhook", errors.Wrap(err, "failed to create request"))
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.Secret != "" {
		req.Header.Set(HeaderSecret, s.cfg.Secret)
	}
	tracing.InjectSpanContextIntoHTTPRequest(req, span)

	resp, err := s.client.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return vmailerrors.NewNotificationError("webhook", errors.Wrap(err, "request failed"))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	span.LogKV("statusCode", resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("unexpected status %d", resp.StatusCode)
		tracing.TraceErr(span, err)
		return vmailerrors.NewNotificationError("webhook", err)
	}
	return nil
}

// BuildPayload flattens a stored email for the webhook receiver.
func BuildPayload(email *models.Email, attachments []*models.EmailAttachment, attachmentURL func(emailID, filename string) string) dto.WebhookPayload {
	payload := dto.WebhookPayload{
		ID:          email.ID,
		From:        email.MessageFrom,
		To:          email.MessageTo,
		Subject:     email.Subject,
		Text:        email.Text,
		ReceivedAt:  email.CreatedAt.UTC().Format(time.RFC3339),
		Attachments: make([]dto.WebhookAttachment, 0, len(attachments)),
	}
	if len(email.HTML) < MaxHTMLChars {
		payload.HTML = email.HTML
	}
	for _, att := range attachments {
		payload.Attachments = append(payload.Attachments, dto.WebhookAttachment{
			Filename: att.Filename,
			URL:      attachmentURL(att.EmailID, att.Filename),
		})
	}
	return payload
}
