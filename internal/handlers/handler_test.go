package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/chanmux/chanmux/internal/channels"
	"github.com/chanmux/chanmux/internal/claims"
	"github.com/chanmux/chanmux/internal/provider"
	"github.com/chanmux/chanmux/internal/templates"
)

func TestWriteErrorDomainMapping(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"channel not found", channels.ErrNotFound, http.StatusNotFound},
		{"session not found", claims.ErrSessionNotFound, http.StatusNotFound},
		{"already claimed", channels.ErrAlreadyClaimed, http.StatusConflict},
		{"session closed", claims.ErrSessionClosed, http.StatusConflict},
		{"session expired", claims.ErrSessionExpired, http.StatusGone},
		{"sync unsupported", templates.ErrSyncUnsupported, http.StatusUnprocessableEntity},
		{"wrapped not found", fmt.Errorf("lookup: %w", channels.ErrNotFound), http.StatusNotFound},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			if err := writeError(c, tc.err); err != nil {
				t.Fatalf("writeError() = %v, want nil", err)
			}
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestWriteErrorProviderMapping(t *testing.T) {
	t.Parallel()
	cases := []struct {
		code provider.Code
		want int
	}{
		{provider.CodeInvalidConfig, http.StatusBadRequest},
		{provider.CodeAuthRejected, http.StatusForbidden},
		{provider.CodeAuthExpired, http.StatusUnauthorized},
		{provider.CodeRateLimited, http.StatusTooManyRequests},
		{provider.CodeUnavailable, http.StatusBadGateway},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(string(tc.code), func(t *testing.T) {
			t.Parallel()
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			err := provider.NewError("whatsapp", "op", tc.code, "boom")
			if werr := writeError(c, err); werr != nil {
				t.Fatalf("writeError() = %v, want nil", werr)
			}
			if rec.Code != tc.want {
				t.Fatalf("status for %s = %d, want %d", tc.code, rec.Code, tc.want)
			}
		})
	}
}
