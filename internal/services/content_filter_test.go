package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentFilterCheck(t *testing.T) {
	f := NewContentFilter()

	tests := []struct {
		text   string
		ok     bool
		reason string
	}{
		{"The onboarding flow was clear.", true, ""},
		{"", true, ""},
		{"this is bullshit", false, "inappropriate_language"},
		{"see https://example.com for details", false, "url_not_allowed"},
		{"mail me at someone@example.com", false, "contact_info_not_allowed"},
		{"call 555-123-4567", false, "contact_info_not_allowed"},
		{"soooooo good", false, "spam_detected"},
		{"GREAT PRODUCT AMAZING SUPPORT", false, "excessive_caps"},
		{"Class assignments were fine", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			ok, reason := f.Check(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestRejectionMessage(t *testing.T) {
	assert.Equal(t, "URLs and web links are not allowed.", RejectionMessage("url_not_allowed"))
	assert.Equal(t, "Your response does not meet our content guidelines.", RejectionMessage("unknown"))
}
