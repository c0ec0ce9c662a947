package parser

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/vmail/internal/enum"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/models"
)

func crlf(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n"))
}

func TestParse_Multipart(t *testing.T) {
	raw := crlf(
		"Received: from relay-a",
		"Received: from relay-b",
		`From: "Alice Example" <Alice@Example.com>`,
		"To: bob@vmail.dev, Carol <carol@vmail.dev>",
		"Cc: dave@vmail.dev",
		"Reply-To: replies@example.com",
		"Subject: =?UTF-8?B?SGVsbG8gV29ybGQ=?=",
		"Message-ID: <abc123@example.com>",
		"In-Reply-To: <prev@example.com>",
		"References: <first@example.com> <prev@example.com>",
		"Date: Mon, 02 Jan 2006 15:04:05 +0000",
		"X-Priority: 1 (Highest)",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="outer"`,
		"",
		"--outer",
		`Content-Type: multipart/alternative; boundary="inner"`,
		"",
		"--inner",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Your code is 123456",
		"--inner",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>Your code is <b>123456</b></p>",
		"--inner--",
		"--outer",
		"Content-Type: text/plain; name=notes.txt",
		`Content-Disposition: attachment; filename="notes.txt"`,
		"Content-Transfer-Encoding: base64",
		"",
		"aGVsbG8gYXR0YWNobWVudA==",
		"--outer--",
		"",
	)

	msg, err := NewMimeParser().Parse(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, models.Address{Address: "alice@example.com", Name: "Alice Example"}, msg.From)
	assert.Nil(t, msg.Sender)
	assert.Equal(t, []string{"bob@vmail.dev", "carol@vmail.dev"}, msg.To.Addresses())
	assert.Equal(t, "Carol", msg.To[1].Name)
	assert.Equal(t, []string{"dave@vmail.dev"}, msg.Cc.Addresses())
	assert.Nil(t, msg.Bcc)
	assert.Equal(t, []string{"replies@example.com"}, msg.ReplyTo.Addresses())
	assert.Equal(t, "Hello World", msg.Subject)
	assert.Equal(t, "abc123@example.com", msg.MessageID)
	assert.Equal(t, "prev@example.com", msg.InReplyTo)
	assert.Equal(t, []string{"first@example.com", "prev@example.com"}, msg.References)
	require.NotNil(t, msg.Date)
	assert.Equal(t, 2006, msg.Date.Year())
	assert.Equal(t, enum.EmailPriorityHigh, msg.Priority)

	assert.Contains(t, msg.Text, "Your code is 123456")
	assert.Contains(t, msg.HTML, "<b>123456</b>")

	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "notes.txt", msg.Attachments[0].Filename)
	assert.Equal(t, []byte("hello attachment"), msg.Attachments[0].Content)

	require.GreaterOrEqual(t, len(msg.Headers), 2)
	assert.Equal(t, models.Header{Key: "Received", Value: "from relay-a"}, msg.Headers[0])
	assert.Equal(t, models.Header{Key: "Received", Value: "from relay-b"}, msg.Headers[1])
	assert.Equal(t, "Hello World", msg.Headers.Get("subject"))
}

func TestParse_HTMLOnlyHasNoSynthesizedText(t *testing.T) {
	raw := crlf(
		"From: a@example.com",
		"To: b@vmail.dev",
		"Subject: html",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<html><body><h1>Hi</h1></body></html>",
		"",
	)

	msg, err := NewMimeParser().Parse(context.Background(), raw)
	require.NoError(t, err)
	assert.Empty(t, msg.Text)
	assert.Contains(t, msg.HTML, "<h1>Hi</h1>")
}

func TestParse_InlineImageKeepsContentID(t *testing.T) {
	raw := crlf(
		"From: a@example.com",
		"To: b@vmail.dev",
		`Content-Type: multipart/related; boundary="rel"`,
		"",
		"--rel",
		"Content-Type: text/html",
		"",
		`<img src="cid:logo@example.com">`,
		"--rel",
		"Content-Type: image/png",
		"Content-ID: <logo@example.com>",
		`Content-Disposition: inline; filename="logo.png"`,
		"Content-Transfer-Encoding: base64",
		"",
		"iVBORw0KGgo=",
		"--rel--",
		"",
	)

	msg, err := NewMimeParser().Parse(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "logo@example.com", msg.Attachments[0].ContentID)
	assert.Equal(t, "image/png", msg.Attachments[0].ContentType)
	assert.Equal(t, "logo.png", msg.Attachments[0].Filename)
}

func TestParse_LenientAddresses(t *testing.T) {
	raw := crlf(
		"From: not an address",
		"Sender: ???",
		"To: b@vmail.dev",
		"Subject: broken",
		"",
		"body",
		"",
	)

	msg, err := NewMimeParser().Parse(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, models.UnknownAddress, msg.From)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, models.UnknownAddress, *msg.Sender)
	assert.Equal(t, "body", strings.TrimSpace(msg.Text))
	assert.Equal(t, enum.EmailPriorityNormal, msg.Priority)
}

func TestParse_MissingFromIsUnknown(t *testing.T) {
	msg, err := NewMimeParser().Parse(context.Background(), crlf("To: b@vmail.dev", "", "hi", ""))
	require.NoError(t, err)
	assert.Equal(t, models.UnknownAddress, msg.From)
}

func TestParse_CleansUnstorableBytes(t *testing.T) {
	raw := crlf(
		"From: Jos\xe9 <jose@example.com>",
		"To: box@vmail.dev",
		"Subject: caf\xe9 code",
		"Content-Type: text/plain",
		"",
		"hello\x00world",
		"",
	)
	msg, err := NewMimeParser().Parse(context.Background(), raw)
	require.NoError(t, err)

	fields := []string{msg.Subject, msg.Text, msg.HTML, msg.From.Name, msg.From.Address}
	for _, h := range msg.Headers {
		fields = append(fields, h.Key, h.Value)
	}
	for _, f := range fields {
		assert.True(t, utf8.ValidString(f), "invalid utf-8 in %q", f)
		assert.NotContains(t, f, "\x00")
	}
	assert.Contains(t, msg.Subject, "code")
	assert.Contains(t, msg.Text, "hello")
	assert.Contains(t, msg.Text, "world")
}

func TestParse_EmptyInput(t *testing.T) {
	_, err := NewMimeParser().Parse(context.Background(), []byte("  \r\n"))
	require.Error(t, err)
	assert.True(t, vmailerrors.IsParseError(err))
}

func TestParsePriority(t *testing.T) {
	assert.Equal(t, enum.EmailPriorityHigh, parsePriority("2", ""))
	assert.Equal(t, enum.EmailPriorityLow, parsePriority("5 (Lowest)", ""))
	assert.Equal(t, enum.EmailPriorityNormal, parsePriority("3", "high"))
	assert.Equal(t, enum.EmailPriorityHigh, parsePriority("", "High"))
	assert.Equal(t, enum.EmailPriorityLow, parsePriority("", "low"))
	assert.Equal(t, enum.EmailPriorityNormal, parsePriority("", ""))
}

func TestPeekSender(t *testing.T) {
	p := NewMimeParser()

	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{"display name", crlf(`From: "Bob" <Bob@Spam.io>`, "To: x@vmail.dev", "", "body"), "bob@spam.io"},
		{"bare", crlf("From: bob@spam.io", "", "body"), "bob@spam.io"},
		{"no address", crlf("From: nobody", "", "body"), ""},
		{"no from", crlf("To: x@vmail.dev", "", "body"), ""},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.PeekSender(tt.raw))
		})
	}
}
