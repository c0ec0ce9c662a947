package inbound

import (
	"context"
	"io"
	"net"
	"slices"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/pkg/errors"

	"github.com/customeros/vmail/config"
	"github.com/customeros/vmail/interfaces"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/logger"
	"github.com/customeros/vmail/internal/tracing"
	"github.com/customeros/vmail/internal/utils"
)

const (
	AppSourceSMTP = "smtp"

	defaultMaxRecipients = 50
	processTimeout       = 2 * time.Minute
)

var (
	errSMTPBlocked = &gosmtp.SMTPError{
		Code:         550,
		EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
		Message:      "Sender is blocked",
	}
	errSMTPStorage = &gosmtp.SMTPError{
		Code:         451,
		EnhancedCode: gosmtp.EnhancedCode{4, 3, 0},
		Message:      "Temporary storage failure, try again later",
	}
	errSMTPInvalid = &gosmtp.SMTPError{
		Code:         554,
		EnhancedCode: gosmtp.EnhancedCode{5, 6, 0},
		Message:      "Message cannot be stored",
	}
	errSMTPRcptDomain = &gosmtp.SMTPError{
		Code:         550,
		EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
		Message:      "Mailbox unavailable",
	}
	errSMTPRcptAddr = &gosmtp.SMTPError{
		Code:         501,
		EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
		Message:      "Invalid recipient address",
	}
	errSMTPSeq = &gosmtp.SMTPError{
		Code:         503,
		EnhancedCode: gosmtp.EnhancedCode{5, 5, 1},
		Message:      "No valid recipients",
	}
	errSMTPRead = &gosmtp.SMTPError{
		Code:         451,
		EnhancedCode: gosmtp.EnhancedCode{4, 0, 0},
		Message:      "Failed to read message",
	}
)

// SMTPServer accepts mail for MAIL_DOMAIN and hands each recipient copy to the pipeline.
type SMTPServer struct {
	server *gosmtp.Server
	log    logger.Logger
}

func NewSMTPServer(cfg *config.Config, log logger.Logger, pipeline interfaces.IngestionPipeline, forwarder interfaces.Forwarder) *SMTPServer {
	backend := &smtpBackend{
		log:       log,
		pipeline:  pipeline,
		forwarder: forwarder,
		domains:   normalizeDomains(cfg.MailConfig.Domains),
	}

	server := gosmtp.NewServer(backend)
	server.Addr = cfg.SMTPConfig.ListenAddr
	server.Domain = cfg.SMTPConfig.ServerDomain
	server.ReadTimeout = cfg.SMTPConfig.ReadTimeout
	server.WriteTimeout = cfg.SMTPConfig.ReadTimeout
	server.MaxMessageBytes = cfg.SMTPConfig.MaxMessageBytes
	server.MaxRecipients = defaultMaxRecipients

	return &SMTPServer{server: server, log: log}
}

func (s *SMTPServer) ListenAndServe() error {
	s.log.Infof("SMTP listener starting on %s", s.server.Addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, gosmtp.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *SMTPServer) Serve(listener net.Listener) error {
	err := s.server.Serve(listener)
	if errors.Is(err, gosmtp.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *SMTPServer) Close() error {
	return s.server.Close()
}

func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		if d = utils.NormalizeAddress(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

type smtpBackend struct {
	log       logger.Logger
	pipeline  interfaces.IngestionPipeline
	forwarder interfaces.Forwarder
	domains   []string
}

func (b *smtpBackend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	remote := ""
	if c != nil && c.Conn() != nil {
		remote = c.Conn().RemoteAddr().String()
	}
	return &smtpSession{backend: b, remote: remote}, nil
}

// acceptsDomain allows every domain when MAIL_DOMAIN is empty.
func (b *smtpBackend) acceptsDomain(domain string) bool {
	return len(b.domains) == 0 || slices.Contains(b.domains, domain)
}

type smtpSession struct {
	backend *smtpBackend
	remote  string
	from    string
	rcpts   []string
}

func (s *smtpSession) Mail(from string, _ *gosmtp.MailOptions) error {
	s.from = utils.NormalizeAddress(from)
	s.rcpts = nil
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	to = utils.NormalizeAddress(to)
	domain := utils.ExtractDomainFromEmail(to)
	if domain == "" {
		return errSMTPRcptAddr
	}
	if !s.backend.acceptsDomain(domain) {
		return errSMTPRcptDomain
	}
	if !slices.Contains(s.rcpts, to) {
		s.rcpts = append(s.rcpts, to)
	}
	return nil
}

// Data runs the pipeline once per recipient. A block ends the transaction with 550,
// a message that can never be stored with 554, a storage failure with 451 so the
// sending MTA retries. Parse failures are accepted.
func (s *smtpSession) Data(r io.Reader) error {
	if len(s.rcpts) == 0 {
		return errSMTPSeq
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		s.backend.log.Warnf("SMTP read from %s failed: %v", s.remote, err)
		return errSMTPRead
	}

	ctx := utils.SetAppSourceInContext(context.Background(), AppSourceSMTP)
	span, ctx := tracing.StartTracerSpan(ctx, "SMTPSession.Data")
	defer span.Finish()
	tracing.TagComponentSmtp(span)
	span.LogKV("remote", s.remote, "from", s.from, "recipients", len(s.rcpts), "size", len(raw))

	storageFailed := false
	for _, rcpt := range s.rcpts {
		msg := NewMessage(s.from, rcpt, raw, s.backend.forwarder)
		procCtx, cancel := context.WithTimeout(ctx, processTimeout)
		_, err := s.backend.pipeline.Process(procCtx, msg)
		cancel()
		switch {
		case err == nil:
		case vmailerrors.IsRejection(err) || msg.RejectReason() != "":
			return errSMTPBlocked
		case vmailerrors.IsParseError(err):
			// accepted and dropped
		case vmailerrors.IsValidationError(err):
			s.backend.log.Warnf("SMTP message from %s to %s rejected: %v", s.from, rcpt, err)
			return errSMTPInvalid
		default:
			tracing.TraceErr(span, err)
			storageFailed = true
		}
	}

	if storageFailed {
		return errSMTPStorage
	}
	return nil
}

func (s *smtpSession) Reset() {
	s.from = ""
	s.rcpts = nil
}

func (s *smtpSession) Logout() error {
	return nil
}
