package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/customeros/vmail/config"
	"github.com/customeros/vmail/dto"
	"github.com/customeros/vmail/interfaces"
	"github.com/customeros/vmail/internal/enum"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/logger"
	"github.com/customeros/vmail/internal/tracing"
	"github.com/customeros/vmail/internal/utils"
)

// httpProviderRequest is the body accepted by Resend-compatible APIs.
type httpProviderRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type outboundMailer struct {
	cfg    *config.MailConfig
	log    logger.Logger
	client *http.Client
	// sendgridHost is overridden in tests.
	sendgridHost string
}

func NewOutboundMailer(cfg *config.MailConfig, log logger.Logger, timeout time.Duration) interfaces.OutboundMailer {
	return &outboundMailer{
		cfg:          cfg,
		log:          log,
		client:       &http.Client{Timeout: timeout},
		sendgridHost: "https://api.sendgrid.com",
	}
}

// Domains lists every domain vmail can receive or send for, deduplicated in config order.
func (s *outboundMailer) Domains() []string {
	var domains []string
	for _, d := range s.cfg.Domains {
		domains = append(domains, utils.NormalizeAddress(d))
	}
	for _, sender := range s.cfg.SenderAddrs {
		if domain := utils.ExtractDomainFromEmail(sender); domain != "" {
			domains = append(domains, domain)
		} else {
			domains = append(domains, utils.NormalizeAddress(sender))
		}
	}
	domains = append(domains, s.cfg.ProviderRoutes.Domains()...)
	return utils.UniqueStrings(domains)
}

func (s *outboundMailer) Send(ctx context.Context, req dto.SendEmailRequest) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "OutboundMailer.Send")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("to", req.To, "subject", req.Subject)

	sender, err := parseSender(req.From)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if !utils.IsValidAddress(req.To) {
		err = vmailerrors.NewValidationError("to", "invalid recipient address")
		tracing.TraceErr(span, err)
		return err
	}
	if strings.TrimSpace(req.Subject) == "" {
		err = vmailerrors.NewValidationError("subject", "subject is required")
		tracing.TraceErr(span, err)
		return err
	}

	route := s.resolveRoute(sender.Address)
	if route == nil {
		tracing.TraceErr(span, vmailerrors.ErrNoProviderConfigured)
		return vmailerrors.ErrNoProviderConfigured
	}
	span.LogKV("provider", route.Kind.String(), "providerUrl", route.URL)

	switch route.Kind {
	case enum.ProviderKindSendgrid:
		err = s.sendViaSendgrid(ctx, route, sender, req)
	default:
		err = s.sendViaHTTP(ctx, route, req)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("Outbound send from %s via %s failed: %v", sender.Address, route.Kind, err)
		return vmailerrors.NewNotificationError("outbound", err)
	}
	return nil
}

// resolveRoute prefers a configured route for the sender, then the default provider.
func (s *outboundMailer) resolveRoute(sender string) *config.ProviderRoute {
	if route, ok := s.cfg.ProviderRoutes.Match(sender); ok {
		if route.Kind == enum.ProviderKindHTTP && route.URL == "" {
			withDefault := *route
			withDefault.URL = s.cfg.DefaultProviderURL
			return &withDefault
		}
		return route
	}
	if s.cfg.DefaultProviderKey == "" {
		return nil
	}
	return &config.ProviderRoute{
		Kind: enum.ProviderKindHTTP,
		URL:  s.cfg.DefaultProviderURL,
		Key:  s.cfg.DefaultProviderKey,
	}
}

func parseSender(from string) (*mail.Address, error) {
	if strings.TrimSpace(from) == "" {
		return nil, vmailerrors.NewValidationError("from", "sender is required")
	}
	address, err := mail.ParseAddress(from)
	if err != nil {
		return nil, vmailerrors.NewValidationError("from", "invalid sender address")
	}
	address.Address = utils.NormalizeAddress(address.Address)
	return address, nil
}

func (s *outboundMailer) sendViaHTTP(ctx context.Context, route *config.ProviderRoute, req dto.SendEmailRequest) error {
	body, err := json.Marshal(httpProviderRequest{
		From:    req.From,
		To:      []string{req.To},
		Subject: req.Subject,
		HTML:    req.Content,
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal provider request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, route.URL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create provider request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+route.Key)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "provider request failed")
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("provider returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}

func (s *outboundMailer) sendViaSendgrid(ctx context.Context, route *config.ProviderRoute, sender *mail.Address, req dto.SendEmailRequest) error {
	from := sgmail.NewEmail(sender.Name, sender.Address)
	to := sgmail.NewEmail("", req.To)
	message := sgmail.NewSingleEmail(from, req.Subject, to, utils.StripHTML(req.Content), req.Content)

	host := s.sendgridHost
	if route.URL != "" {
		host = route.URL
	}
	request := sendgrid.GetRequest(route.Key, "/v3/mail/send", host)
	request.Method = "POST"
	request.Body = sgmail.GetRequestBody(message)

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return errors.Wrap(err, "sendgrid request failed")
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("SendGrid API error: status %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}
