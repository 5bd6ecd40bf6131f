package provider_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/chanmux/chanmux/internal/provider"
)

func TestErrorCodes(t *testing.T) {
	t.Parallel()
	err := provider.NewError("whatsapp", "sync_templates", provider.CodeRateLimited, "slow down")
	if !provider.IsCode(err, provider.CodeRateLimited) {
		t.Fatal("IsCode(rate_limited) = false, want true")
	}
	if provider.IsCode(err, provider.CodeAuthExpired) {
		t.Fatal("IsCode(auth_expired) = true, want false")
	}
	if provider.ErrCode(errors.New("plain")) != "" {
		t.Fatal("ErrCode(plain error) != \"\", want empty code")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !provider.IsCode(wrapped, provider.CodeRateLimited) {
		t.Fatal("IsCode through wrapping = false, want true")
	}
}

func TestErrorUnwrap(t *testing.T) {
	t.Parallel()
	cause := errors.New("connection refused")
	err := provider.WrapError("slack", "complete_claim", provider.CodeUnavailable, cause)
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is(err, cause) = false, want true")
	}
	if err.Error() == "" {
		t.Fatal("Error() = empty string")
	}
}

func TestTransient(t *testing.T) {
	t.Parallel()
	cases := []struct {
		code provider.Code
		want bool
	}{
		{provider.CodeUnavailable, true},
		{provider.CodeRateLimited, true},
		{provider.CodeInvalidConfig, false},
		{provider.CodeAuthRejected, false},
		{provider.CodeAuthExpired, false},
	}
	for _, tc := range cases {
		err := provider.NewError("x", "op", tc.code, "msg")
		if got := provider.Transient(err); got != tc.want {
			t.Fatalf("Transient(%s) = %v, want %v", tc.code, got, tc.want)
		}
	}
}
