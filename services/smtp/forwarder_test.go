package smtp

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/vmail/config"
	vmailerrors "github.com/customeros/vmail/internal/errors"
)

type relayedMessage struct {
	from string
	to   []string
	data []byte
}

type recordingBackend struct {
	mu       sync.Mutex
	messages []relayedMessage
}

func (b *recordingBackend) NewSession(_ *gosmtp.Conn) (gosmtp.Session, error) {
	return &recordingSession{backend: b}, nil
}

func (b *recordingBackend) received() []relayedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]relayedMessage(nil), b.messages...)
}

type recordingSession struct {
	backend *recordingBackend
	current relayedMessage
}

func (s *recordingSession) Mail(from string, _ *gosmtp.MailOptions) error {
	s.current.from = from
	return nil
}

func (s *recordingSession) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	s.current.to = append(s.current.to, to)
	return nil
}

func (s *recordingSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.current.data = data
	s.backend.mu.Lock()
	s.backend.messages = append(s.backend.messages, s.current)
	s.backend.mu.Unlock()
	return nil
}

func (s *recordingSession) Reset()        { s.current = relayedMessage{} }
func (s *recordingSession) Logout() error { return nil }

func startRelay(t *testing.T) (*recordingBackend, string) {
	t.Helper()
	backend := &recordingBackend{}
	server := gosmtp.NewServer(backend)
	server.Domain = "relay.test"
	server.ReadTimeout = 5 * time.Second
	server.WriteTimeout = 5 * time.Second

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(func() { _ = server.Close() })

	return backend, listener.Addr().String()
}

func TestForward_RelaysRawBytesVerbatim(t *testing.T) {
	backend, addr := startRelay(t)
	raw := []byte("From: a@x.com\r\nTo: box@vmail.dev\r\nSubject: hi\r\n\r\nbody line\r\n")

	forwarder := NewRelayForwarder(&config.SMTPConfig{RelayAddr: addr, ServerDomain: "vmail.test"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := forwarder.Forward(ctx, "a@x.com", []string{"backup@example.com"}, raw)
	require.NoError(t, err)

	messages := backend.received()
	require.Len(t, messages, 1)
	assert.Equal(t, "a@x.com", messages[0].from)
	assert.Equal(t, []string{"backup@example.com"}, messages[0].to)
	assert.Equal(t, string(raw), string(messages[0].data))
}

func TestForward_NoRelayConfigured(t *testing.T) {
	forwarder := NewRelayForwarder(&config.SMTPConfig{})
	err := forwarder.Forward(context.Background(), "a@x.com", []string{"b@y.com"}, []byte("x"))

	var notificationErr *vmailerrors.NotificationError
	require.ErrorAs(t, err, &notificationErr)
	assert.Equal(t, "forward", notificationErr.Channel)
}

func TestForward_UnreachableRelay(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	forwarder := NewRelayForwarder(&config.SMTPConfig{RelayAddr: addr, ServerDomain: "vmail.test"})
	err = forwarder.Forward(context.Background(), "a@x.com", []string{"b@y.com"}, []byte("x"))
	assert.Error(t, err)
}

func TestForward_DialHonorsContextDeadline(t *testing.T) {
	// non-routable: the connect is neither accepted nor refused
	forwarder := NewRelayForwarder(&config.SMTPConfig{RelayAddr: "10.255.255.1:25", ServerDomain: "vmail.test"})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := forwarder.Forward(ctx, "a@x.com", []string{"b@y.com"}, []byte("x"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestForward_SilentRelayHonorsContextDeadline(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		defer conn.Close()
		_, _ = io.Copy(io.Discard, conn)
	}()

	forwarder := NewRelayForwarder(&config.SMTPConfig{RelayAddr: listener.Addr().String(), ServerDomain: "vmail.test"})
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = forwarder.Forward(ctx, "a@x.com", []string{"b@y.com"}, []byte("x"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
