package notification

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/vmail/internal/enum"
	"github.com/customeros/vmail/internal/models"
)

func TestClip_DropsSplitEntity(t *testing.T) {
	r := renderer{}
	email := &models.Email{ID: "mail_1", Text: strings.Repeat("a<b ", 750)}

	view := r.render(enum.ViewFullText, email, nil)
	require.LessOrEqual(t, utf8.RuneCountInString(view.Text), maxMessageLength)

	amp := strings.LastIndexByte(view.Text, '&')
	require.GreaterOrEqual(t, amp, 0)
	assert.Contains(t, view.Text[amp:], ";", "cut inside %q", view.Text[amp:])
}

func TestClip_ShortTextUntouched(t *testing.T) {
	assert.Equal(t, "a &amp; b", clip("a &amp; b"))
}

func TestRender_NotFound(t *testing.T) {
	r := renderer{}
	email := &models.Email{ID: "mail_1", Text: "hello"}

	assert.Equal(t, textNotFound, r.render(enum.ViewNotFound, email, nil).Text)
	assert.Equal(t, textNotFound, r.render(enum.ViewPreview, nil, nil).Text)
	assert.Equal(t, textDeleted, r.render(enum.ViewDeleted, nil, nil).Text)
}
