package inbound

import (
	"context"
	"sync"

	"github.com/customeros/vmail/interfaces"
	"github.com/customeros/vmail/internal/utils"
)

// Message is one raw message for one envelope recipient, shared by the SMTP and HTTP transports.
type Message struct {
	from      string
	to        string
	raw       []byte
	forwarder interfaces.Forwarder

	mu     sync.Mutex
	reject string
}

func NewMessage(from, to string, raw []byte, forwarder interfaces.Forwarder) *Message {
	return &Message{
		from:      utils.NormalizeAddress(from),
		to:        utils.NormalizeAddress(to),
		raw:       raw,
		forwarder: forwarder,
	}
}

func (m *Message) EnvelopeFrom() string { return m.from }
func (m *Message) EnvelopeTo() string   { return m.to }
func (m *Message) Raw() []byte          { return m.raw }

func (m *Message) Forward(ctx context.Context, address string) error {
	if m.forwarder == nil {
		return nil
	}
	return m.forwarder.Forward(ctx, m.from, []string{address}, m.raw)
}

func (m *Message) SetReject(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reject = reason
}

// RejectReason is empty unless the pipeline refused the message.
func (m *Message) RejectReason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reject
}

var _ interfaces.InboundMessage = (*Message)(nil)
