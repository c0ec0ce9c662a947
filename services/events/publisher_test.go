package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/vmail/dto"
	"github.com/customeros/vmail/internal/enum"
	"github.com/customeros/vmail/internal/utils"
)

func TestNewEvent_Envelope(t *testing.T) {
	span := opentracing.NoopTracer{}.StartSpan("test")
	payload := dto.EmailReceivedEvent{EmailId: "mail_1", MessageTo: "box@vmail.dev", OTP: "123456"}

	event := newEvent(context.Background(), span, "mail_1", enum.EMAIL, dto.EventTypeEmailReceived, payload)

	assert.NotEmpty(t, event.Event.Id)
	assert.Equal(t, "mail_1", event.Event.EntityId)
	assert.Equal(t, enum.EMAIL, event.Event.EntityType)
	assert.Equal(t, "EmailReceived", event.Event.EventType)
	assert.Equal(t, AppSourceVmail, event.Metadata.AppSource)
	assert.NotEmpty(t, event.Metadata.Timestamp)

	body, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"otp":"123456"`)
	assert.Contains(t, string(body), `"eventType":"EmailReceived"`)
}

func TestNewEvent_KeepsAppSourceFromContext(t *testing.T) {
	ctx := utils.SetAppSourceInContext(context.Background(), "smtp")
	span := opentracing.NoopTracer{}.StartSpan("test")

	event := newEvent(ctx, span, "mail_2", enum.EMAIL, dto.EventTypeEmailReceived, nil)
	assert.Equal(t, "smtp", event.Metadata.AppSource)
}

func TestDefaultPublisherConfig(t *testing.T) {
	cfg := DefaultPublisherConfig()
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultMessageTTL, cfg.MessageTTL)
}
