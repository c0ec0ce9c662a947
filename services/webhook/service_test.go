package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/vmail/config"
	"github.com/customeros/vmail/dto"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/models"
)

func TestSend_PostsJSONWithSecret(t *testing.T) {
	var received dto.WebhookPayload
	var secret, contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret = r.Header.Get(HeaderSecret)
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	svc := NewWebhookService(&config.WebhookConfig{URL: server.URL, Secret: "s3cret"}, time.Second)
	require.True(t, svc.Enabled())

	err := svc.Send(context.Background(), dto.WebhookPayload{ID: "mail_1", Subject: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "s3cret", secret)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "mail_1", received.ID)
	assert.Equal(t, "hi", received.Subject)
}

func TestSend_Non2xxIsNotificationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	svc := NewWebhookService(&config.WebhookConfig{URL: server.URL}, time.Second)
	err := svc.Send(context.Background(), dto.WebhookPayload{ID: "mail_1"})

	var notificationErr *vmailerrors.NotificationError
	require.ErrorAs(t, err, &notificationErr)
	assert.Equal(t, "webhook", notificationErr.Channel)
}

func TestSend_DisabledIsNoop(t *testing.T) {
	svc := NewWebhookService(&config.WebhookConfig{}, time.Second)
	assert.False(t, svc.Enabled())
	assert.NoError(t, svc.Send(context.Background(), dto.WebhookPayload{}))
}

func TestBuildPayload(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	email := &models.Email{
		ID:          "mail_1",
		MessageFrom: "a@x.com",
		MessageTo:   "box@vmail.dev",
		Subject:     "Invoice",
		Text:        "see attached",
		HTML:        "<p>see attached</p>",
		CreatedAt:   created,
	}
	atts := []*models.EmailAttachment{{EmailID: "mail_1", Filename: "inv.pdf"}}
	url := func(emailID, filename string) string { return "https://w/" + emailID + "/" + filename }

	payload := BuildPayload(email, atts, url)
	assert.Equal(t, "box@vmail.dev", payload.To)
	assert.Equal(t, "<p>see attached</p>", payload.HTML)
	assert.Equal(t, "2024-05-01T10:00:00Z", payload.ReceivedAt)
	require.Len(t, payload.Attachments, 1)
	assert.Equal(t, "https://w/mail_1/inv.pdf", payload.Attachments[0].URL)

	email.HTML = strings.Repeat("x", MaxHTMLChars)
	assert.Empty(t, BuildPayload(email, nil, url).HTML)
	assert.NotNil(t, BuildPayload(email, nil, url).Attachments)
}
