package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{"nested tags", "<p>Hi <b>123456</b></p>", "Hi 123456"},
		{"block boundaries", "<div>one</div><div>two</div>", "one two"},
		{"script and style dropped", "<style>p{}</style><p>text</p><script>alert(1)</script>", "text"},
		{"full document", "<html><head><title>t</title></head><body>\n\n <p>a\n b</p></body></html>", "a b"},
		{"empty", "   ", ""},
		{"plain string", "no markup here", "no markup here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripHTML(tt.html))
		})
	}
}

func TestDerivePlainText(t *testing.T) {
	assert.Equal(t, "Hi 123456", DerivePlainText("", "<p>Hi <b>123456</b></p>"))
	assert.Equal(t, "hello", DerivePlainText("<div>hello</div>", "<p>ignored</p>"))
	assert.Equal(t, "x", DerivePlainText("<html><body>x</body></html>", ""))
	assert.Equal(t, "already text", DerivePlainText("already text", "<p>other</p>"))
}

func TestExtractOTP(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		body     string
		expected string
	}{
		{"keyword in body", "Welcome", "Your code is 123456", "123456"},
		{"keyword in subject", "Verification", "Use 8812 to continue", "8812"},
		{"case insensitive and multiline", "", "YOUR\nOTP:\n 99887766", "99887766"},
		{"vietnamese keyword", "", "Mã xác thực của bạn là 4321", "4321"},
		{"no keyword", "Hello", "Call me at 123456", ""},
		{"too short", "", "code 123", ""},
		{"too long digits", "", "code 1234567890", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractOTP(tt.subject, tt.body))
		})
	}
}

func TestExtractOTP_OnlySearchesPrefix(t *testing.T) {
	body := strings.Repeat("x ", 3000) + "code 123456"
	assert.Empty(t, ExtractOTP("", body))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "héllo", Truncate("héllo", 10))
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "ab...", TruncateWithEllipsis("abcdefgh", 5))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "helloworld", CleanText("hello\x00world"))
	assert.Equal(t, "caf\uFFFD", CleanText("caf\xe9"))
	assert.Equal(t, "café", CleanText("café"))
}

func TestExtractAngleAddress(t *testing.T) {
	assert.Equal(t, "spam@bad.com", ExtractAngleAddress("Spammer <Spam@Bad.com>"))
	assert.Equal(t, "a@b.com", ExtractAngleAddress(" A@B.com "))
	assert.Equal(t, "", ExtractAngleAddress("undisclosed-recipients"))
}

func TestExtractDomainFromEmail(t *testing.T) {
	assert.Equal(t, "example.com", ExtractDomainFromEmail("John <john@Example.com>"))
	assert.Equal(t, "", ExtractDomainFromEmail("nobody"))
	assert.Equal(t, "", ExtractDomainFromEmail("trailing@"))
}

func TestExtensionForContentType(t *testing.T) {
	assert.Equal(t, "png", ExtensionForContentType("image/png"))
	assert.Equal(t, "pdf", ExtensionForContentType("application/pdf; name=x.pdf"))
	assert.Equal(t, "", ExtensionForContentType("application/x-unknown-thing"))
	assert.Equal(t, DefaultContentType, ContentTypeOrDefault(""))
}

func TestGenerateNanoIDWithPrefix(t *testing.T) {
	id := GenerateNanoIDWithPrefix("mail", 12)
	require.True(t, strings.HasPrefix(id, "mail_"))
	assert.Len(t, id, len("mail_")+12)
}

func TestRandomAddress(t *testing.T) {
	assert.Equal(t, "", RandomAddress(nil))

	address := RandomAddress([]string{" Vmail.Dev "})
	assert.True(t, strings.HasSuffix(address, "@vmail.dev"))
	assert.Len(t, address, 8+len("@vmail.dev"))
}
