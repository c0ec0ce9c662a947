package parser

import (
	"bufio"
	"bytes"
	"context"
	"mime"
	netmail "net/mail"
	"sort"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/vmail/dto"
	"github.com/customeros/vmail/interfaces"
	"github.com/customeros/vmail/internal/enum"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/models"
	"github.com/customeros/vmail/internal/tracing"
	"github.com/customeros/vmail/internal/utils"
)

var headerDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

type mimeParser struct{}

func NewMimeParser() interfaces.MimeParser {
	return &mimeParser{}
}

func (p *mimeParser) Parse(ctx context.Context, raw []byte) (*dto.ParsedMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mimeParser.Parse")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("size", len(raw))

	if len(bytes.TrimSpace(raw)) == 0 {
		err := vmailerrors.NewParseError(errors.New("empty message"))
		tracing.TraceErr(span, err)
		return nil, err
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, vmailerrors.NewParseError(err)
	}
	if len(env.Errors) > 0 {
		span.LogKV("partErrors", len(env.Errors))
	}

	header, headerErr := readHeader(raw)

	msg := &dto.ParsedMessage{
		From:       singleAddress(env, "From"),
		ReplyTo:    addressList(env, "Reply-To"),
		To:         addressList(env, "To"),
		Cc:         addressList(env, "Cc"),
		Bcc:        addressList(env, "Bcc"),
		Subject:    strings.TrimSpace(env.GetHeader("Subject")),
		MessageID:  utils.NormalizeMessageID(env.GetHeader("Message-ID")),
		InReplyTo:  utils.NormalizeMessageID(env.GetHeader("In-Reply-To")),
		References: parseReferences(env.GetHeader("References")),
		HTML:       env.HTML,
		Priority:   parsePriority(env.GetHeader("X-Priority"), env.GetHeader("Importance")),
	}

	if strings.TrimSpace(env.GetHeader("Sender")) != "" {
		sender := singleAddress(env, "Sender")
		msg.Sender = &sender
	}

	// enmime down-converts HTML into Text when no text/plain part exists
	if hasPlainTextPart(env.Root) {
		msg.Text = env.Text
	}

	if headerErr == nil {
		msg.Headers = orderedHeaders(header)
		if date, err := newMailHeader(header).Date(); err == nil && !date.IsZero() {
			d := date.UTC()
			msg.Date = &d
		}
	} else {
		span.LogKV("headerError", headerErr.Error())
		msg.Headers = envelopeHeaders(env)
		if date, err := netmail.ParseDate(env.GetHeader("Date")); err == nil {
			d := date.UTC()
			msg.Date = &d
		}
	}

	msg.Attachments = collectAttachments(env)
	span.LogKV("attachments", len(msg.Attachments))

	cleanMessage(msg)
	return msg, nil
}

// cleanMessage makes every text field storable, whatever bytes the sender put on the wire.
func cleanMessage(msg *dto.ParsedMessage) {
	clean := utils.CleanText
	cleanAddress := func(a *models.Address) {
		a.Address = clean(a.Address)
		a.Name = clean(a.Name)
	}
	cleanList := func(list models.AddressList) {
		for i := range list {
			cleanAddress(&list[i])
		}
	}

	cleanAddress(&msg.From)
	if msg.Sender != nil {
		cleanAddress(msg.Sender)
	}
	cleanList(msg.ReplyTo)
	cleanList(msg.To)
	cleanList(msg.Cc)
	cleanList(msg.Bcc)

	msg.Subject = clean(msg.Subject)
	msg.MessageID = clean(msg.MessageID)
	msg.InReplyTo = clean(msg.InReplyTo)
	for i := range msg.References {
		msg.References[i] = clean(msg.References[i])
	}
	msg.Text = clean(msg.Text)
	msg.HTML = clean(msg.HTML)
	for i := range msg.Headers {
		msg.Headers[i].Key = clean(msg.Headers[i].Key)
		msg.Headers[i].Value = clean(msg.Headers[i].Value)
	}
	for i := range msg.Attachments {
		msg.Attachments[i].Filename = clean(msg.Attachments[i].Filename)
		msg.Attachments[i].ContentID = clean(msg.Attachments[i].ContentID)
	}
}

// PeekSender reads only the header block and returns the lower-cased From address, or "".
func (p *mimeParser) PeekSender(raw []byte) string {
	header, err := readHeader(raw)
	if err != nil {
		return utils.ExtractAngleAddress(scanFromLine(raw))
	}

	h := newMailHeader(header)
	if list, err := h.AddressList("From"); err == nil && len(list) > 0 && list[0].Address != "" {
		return utils.NormalizeAddress(list[0].Address)
	}
	return utils.ExtractAngleAddress(header.Get("From"))
}

func newMailHeader(header textproto.Header) *mail.Header {
	return &mail.Header{Header: message.Header{Header: header}}
}

func readHeader(raw []byte) (textproto.Header, error) {
	return textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
}

// scanFromLine finds the first From: line in the header block of a message
// the header reader refused.
func scanFromLine(raw []byte) string {
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			break
		}
		if len(line) > 5 && strings.EqualFold(line[:5], "from:") {
			return strings.TrimSpace(line[5:])
		}
	}
	return ""
}

func orderedHeaders(header textproto.Header) models.HeaderList {
	var out models.HeaderList
	fields := header.Fields()
	for fields.Next() {
		out = append(out, models.Header{Key: fields.Key(), Value: decodeHeader(fields.Value())})
	}
	return out
}

// envelopeHeaders is the unordered fallback, sorted by key for stable output.
func envelopeHeaders(env *enmime.Envelope) models.HeaderList {
	keys := env.GetHeaderKeys()
	sort.Strings(keys)

	var out models.HeaderList
	for _, key := range keys {
		for _, value := range env.GetHeaderValues(key) {
			out = append(out, models.Header{Key: key, Value: value})
		}
	}
	return out
}

func decodeHeader(value string) string {
	decoded, err := headerDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

func singleAddress(env *enmime.Envelope, key string) models.Address {
	list := addressList(env, key)
	if len(list) == 0 {
		return models.UnknownAddress
	}
	return list[0]
}

// addressList never fails: entries that cannot be resolved become UnknownAddress.
func addressList(env *enmime.Envelope, key string) models.AddressList {
	raw := strings.TrimSpace(env.GetHeader(key))
	if raw == "" {
		return nil
	}

	parsed, err := env.AddressList(key)
	if err == nil && len(parsed) > 0 {
		out := make(models.AddressList, 0, len(parsed))
		for _, a := range parsed {
			if a.Address == "" {
				continue
			}
			out = append(out, models.Address{Address: utils.NormalizeAddress(a.Address), Name: strings.TrimSpace(a.Name)})
		}
		if len(out) > 0 {
			return out
		}
	}

	var out models.AddressList
	for _, part := range strings.Split(raw, ",") {
		if address := utils.ExtractAngleAddress(part); address != "" {
			out = append(out, models.Address{Address: address})
		}
	}
	if len(out) == 0 {
		return models.AddressList{models.UnknownAddress}
	}
	return out
}

func parseReferences(value string) []string {
	var refs []string
	for _, ref := range strings.Fields(value) {
		if ref = utils.NormalizeMessageID(ref); ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}

func parsePriority(xPriority, importance string) enum.EmailPriority {
	xPriority = strings.TrimSpace(xPriority)
	if xPriority != "" {
		switch xPriority[0] {
		case '1', '2':
			return enum.EmailPriorityHigh
		case '4', '5':
			return enum.EmailPriorityLow
		case '3':
			return enum.EmailPriorityNormal
		}
	}
	switch strings.ToLower(strings.TrimSpace(importance)) {
	case "high":
		return enum.EmailPriorityHigh
	case "low":
		return enum.EmailPriorityLow
	}
	return enum.EmailPriorityNormal
}

func hasPlainTextPart(part *enmime.Part) bool {
	if part == nil {
		return false
	}
	contentType := strings.ToLower(part.ContentType)
	if part.FirstChild == nil {
		if part.Disposition == "attachment" {
			return false
		}
		return contentType == "text/plain" || contentType == ""
	}
	for child := part.FirstChild; child != nil; child = child.NextSibling {
		if hasPlainTextPart(child) {
			return true
		}
	}
	return false
}

// collectAttachments returns attachments, inlines and cid-addressed related parts, in that order.
func collectAttachments(env *enmime.Envelope) []dto.ParsedAttachment {
	var out []dto.ParsedAttachment
	add := func(part *enmime.Part) {
		out = append(out, dto.ParsedAttachment{
			Filename:    part.FileName,
			ContentType: part.ContentType,
			ContentID:   strings.Trim(strings.TrimSpace(part.ContentID), "<>"),
			Content:     part.Content,
		})
	}
	for _, part := range env.Attachments {
		add(part)
	}
	for _, part := range env.Inlines {
		add(part)
	}
	for _, part := range env.OtherParts {
		if part.ContentID != "" {
			add(part)
		}
	}
	return out
}
