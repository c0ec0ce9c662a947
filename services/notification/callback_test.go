package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/vmail/internal/enum"
)

func TestParseCallbackData(t *testing.T) {
	tests := []struct {
		data   string
		action enum.CallbackAction
		target Target
	}{
		{"preview:mail_abc", enum.ActionPreview, Target{Kind: TargetByID, Value: "mail_abc"}},
		{"blk:mail_abc", enum.ActionBlock, Target{Kind: TargetByID, Value: "mail_abc"}},
		{"wht:Bad@Spam.io", enum.ActionWhitelist, Target{Kind: TargetByAddress, Value: "bad@spam.io"}},
		{"unblock_list:*@spam.io", enum.ActionUnblockList, Target{Kind: TargetByAddress, Value: "*@spam.io"}},
		{"back:a:b", enum.ActionBack, Target{Kind: TargetByID, Value: "a:b"}},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			cb, err := ParseCallbackData(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.action, cb.Action)
			assert.Equal(t, tt.target, cb.Target)
		})
	}
}

func TestParseCallbackData_Invalid(t *testing.T) {
	for _, data := range []string{"", "preview", "preview:", "explode:mail_1"} {
		_, err := ParseCallbackData(data)
		assert.Error(t, err, data)
	}
}

func TestCallbackData_RoundTrip(t *testing.T) {
	cb, err := ParseCallbackData(CallbackData(enum.ActionSummary, "mail_1"))
	require.NoError(t, err)
	assert.Equal(t, "summary:mail_1", cb.Data())
}
