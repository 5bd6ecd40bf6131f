package provider_test

import (
	"testing"

	"github.com/chanmux/chanmux/internal/provider"
)

func TestParseTemplateStatus(t *testing.T) {
	t.Parallel()
	cases := []struct {
		raw  string
		want provider.TemplateStatus
	}{
		{"APPROVED", provider.TemplateStatusApproved},
		{"approved", provider.TemplateStatusApproved},
		{"REJECTED", provider.TemplateStatusRejected},
		{"PAUSED", provider.TemplateStatusPaused},
		{"DISABLED", provider.TemplateStatusPaused},
		{"PENDING", provider.TemplateStatusPending},
		{"IN_APPEAL", provider.TemplateStatusPending},
		{"", provider.TemplateStatusPending},
	}
	for _, tc := range cases {
		if got := provider.ParseTemplateStatus(tc.raw); got != tc.want {
			t.Fatalf("ParseTemplateStatus(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestCallbackDataValue(t *testing.T) {
	t.Parallel()
	cb := provider.CallbackData{Values: map[string]string{"code": "  abc  "}}
	if got := cb.Value("code"); got != "abc" {
		t.Fatalf("Value(code) = %q, want abc", got)
	}
	if got := cb.Value("missing"); got != "" {
		t.Fatalf("Value(missing) = %q, want empty", got)
	}
	var empty provider.CallbackData
	if got := empty.Value("code"); got != "" {
		t.Fatalf("Value on empty data = %q, want empty", got)
	}
}
