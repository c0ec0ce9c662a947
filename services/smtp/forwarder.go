package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/vmail/config"
	"github.com/customeros/vmail/interfaces"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/tracing"
)

const defaultCommandTimeout = 30 * time.Second

// relayForwarder hands raw messages to SMTP_RELAY_ADDR unchanged.
type relayForwarder struct {
	cfg *config.SMTPConfig
}

func NewRelayForwarder(cfg *config.SMTPConfig) interfaces.Forwarder {
	return &relayForwarder{cfg: cfg}
}

func (f *relayForwarder) Forward(ctx context.Context, from string, to []string, raw []byte) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RelayForwarder.Forward")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagComponentSmtp(span)
	span.LogKV("relay", f.cfg.RelayAddr, "from", from, "recipients", len(to))

	if f.cfg.RelayAddr == "" {
		err := errors.New("SMTP_RELAY_ADDR is not configured")
		tracing.TraceErr(span, err)
		return vmailerrors.NewNotificationError("forward", err)
	}
	if len(to) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := f.send(ctx, from, to, raw); err != nil {
		tracing.TraceErr(span, err)
		return vmailerrors.NewNotificationError("forward", err)
	}
	return nil
}

func (f *relayForwarder) send(ctx context.Context, from string, to []string, raw []byte) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", f.cfg.RelayAddr)
	if err != nil {
		return errors.Wrap(err, "failed to connect to relay")
	}
	client := gosmtp.NewClient(conn)
	defer client.Close()

	timeout := defaultCommandTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	client.CommandTimeout = timeout
	client.SubmissionTimeout = timeout

	if err = client.Hello(f.cfg.ServerDomain); err != nil {
		return errors.Wrap(err, "EHLO failed")
	}

	if ok, _ := client.Extension("STARTTLS"); ok {
		host, _, splitErr := net.SplitHostPort(f.cfg.RelayAddr)
		if splitErr != nil {
			host = f.cfg.RelayAddr
		}
		if err = client.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return errors.Wrap(err, "STARTTLS failed")
		}
	}

	if f.cfg.RelayUsername != "" {
		auth := sasl.NewPlainClient("", f.cfg.RelayUsername, f.cfg.RelayPassword)
		if err = client.Auth(auth); err != nil {
			return errors.Wrap(err, "SMTP authentication failed")
		}
	}

	if err = client.SendMail(from, to, bytes.NewReader(raw)); err != nil {
		return errors.Wrap(err, "failed to relay message")
	}

	return client.Quit()
}
