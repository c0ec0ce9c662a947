package fakes

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/customeros/vmail/dto"
	"github.com/customeros/vmail/internal/models"
)

type TelegramMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	Markup    *tgbotapi.InlineKeyboardMarkup
}

type CallbackAnswer struct {
	ID   string
	Text string
}

// TelegramClient records every bot call. FailChats makes SendMessage fail for those chats.
type TelegramClient struct {
	mu        sync.Mutex
	Sent      []TelegramMessage
	Edits     []TelegramMessage
	Answers   []CallbackAnswer
	FailChats map[int64]bool
	nextID    int
}

func NewTelegramClient() *TelegramClient {
	return &TelegramClient{FailChats: map[int64]bool{}}
}

func (c *TelegramClient) SendMessage(_ context.Context, chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailChats[chatID] {
		return 0, ErrInjected
	}
	c.nextID++
	c.Sent = append(c.Sent, TelegramMessage{ChatID: chatID, MessageID: c.nextID, Text: text, Markup: markup})
	return c.nextID, nil
}

func (c *TelegramClient) EditMessageText(_ context.Context, chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Edits = append(c.Edits, TelegramMessage{ChatID: chatID, MessageID: messageID, Text: text, Markup: markup})
	return nil
}

func (c *TelegramClient) AnswerCallbackQuery(_ context.Context, callbackID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Answers = append(c.Answers, CallbackAnswer{ID: callbackID, Text: text})
	return nil
}

func (c *TelegramClient) LastEdit() TelegramMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Edits) == 0 {
		return TelegramMessage{}
	}
	return c.Edits[len(c.Edits)-1]
}

// AIService returns fixed answers and counts calls.
type AIService struct {
	mu             sync.Mutex
	Disabled       bool
	Summary        string
	Reply          string
	Err            error
	SummarizeCalls int
	ReplyCalls     int
}

func (a *AIService) Enabled() bool {
	return !a.Disabled
}

func (a *AIService) Summarize(_ context.Context, _ string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.SummarizeCalls++
	if a.Err != nil {
		return "", a.Err
	}
	return a.Summary, nil
}

func (a *AIService) DraftReply(_ context.Context, _ *models.Email, _ string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ReplyCalls++
	if a.Err != nil {
		return "", a.Err
	}
	return a.Reply, nil
}

// Notifier records dispatched notifications.
type Notifier struct {
	mu       sync.Mutex
	Disabled bool
	Err      error
	Notified []*models.Email
	OTPs     []string
}

func (n *Notifier) Enabled() bool { return !n.Disabled }

func (n *Notifier) NotifyEmailReceived(_ context.Context, email *models.Email, _ []*models.EmailAttachment, otp string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Notified = append(n.Notified, email)
	n.OTPs = append(n.OTPs, otp)
	return n.Err
}

func (n *Notifier) HandleUpdate(context.Context, tgbotapi.Update) error { return nil }

func (n *Notifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Notified)
}

type Webhook struct {
	mu       sync.Mutex
	Disabled bool
	Err      error
	Payloads []dto.WebhookPayload
}

func (w *Webhook) Enabled() bool { return !w.Disabled }

func (w *Webhook) Send(_ context.Context, payload dto.WebhookPayload) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Payloads = append(w.Payloads, payload)
	return w.Err
}

type EventsPublisher struct {
	mu     sync.Mutex
	Err    error
	Events []dto.EmailReceivedEvent
}

func (p *EventsPublisher) PublishEmailReceived(_ context.Context, event dto.EmailReceivedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, event)
	return p.Err
}

func (p *EventsPublisher) Close() error { return nil }

type ForwardCall struct {
	From string
	To   []string
	Raw  []byte
}

type Forwarder struct {
	mu    sync.Mutex
	Err   error
	Calls []ForwardCall
}

func (f *Forwarder) Forward(_ context.Context, from string, to []string, raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, ForwardCall{From: from, To: to, Raw: raw})
	return f.Err
}

// EmailDeleter records deleted ids and forwards them to Repo when set.
type EmailDeleter struct {
	Repo    *EmailRepository
	Err     error
	Deleted []string
}

func (d *EmailDeleter) DeleteEmails(ctx context.Context, ids []string) error {
	if d.Err != nil {
		return d.Err
	}
	d.Deleted = append(d.Deleted, ids...)
	if d.Repo != nil {
		return d.Repo.DeleteMany(ctx, ids)
	}
	return nil
}

// InboundMessage is a transport-less message for pipeline tests.
type InboundMessage struct {
	mu         sync.Mutex
	From       string
	To         string
	Data       []byte
	ForwardErr error
	Forwarded  []string
	Rejected   string
}

func (m *InboundMessage) EnvelopeFrom() string { return m.From }
func (m *InboundMessage) EnvelopeTo() string   { return m.To }
func (m *InboundMessage) Raw() []byte          { return m.Data }

func (m *InboundMessage) Forward(_ context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Forwarded = append(m.Forwarded, address)
	return m.ForwardErr
}

func (m *InboundMessage) SetReject(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rejected = reason
}
