package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chanmux/chanmux/internal/auth"
)

func TestGenerateTokenRequiresSecret(t *testing.T) {
	t.Parallel()
	if _, _, err := auth.GenerateToken("svc", "  ", time.Hour); err == nil {
		t.Fatal("GenerateToken() with blank secret = nil error, want error")
	}
}

func TestMiddlewareAcceptsIssuedToken(t *testing.T) {
	t.Parallel()
	const secret = "test-secret"
	signed, expiresAt, err := auth.GenerateToken("svc", secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() = %v, want nil", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expiresAt = %v, want a future time", expiresAt)
	}

	e := echo.New()
	e.Use(auth.JWTMiddleware(secret, nil))
	e.GET("/protected", func(c echo.Context) error {
		subject, err := auth.SubjectFromContext(c)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, subject)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+signed)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "svc" {
		t.Fatalf("subject = %q, want svc", rec.Body.String())
	}
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	t.Parallel()
	e := echo.New()
	e.Use(auth.JWTMiddleware("test-secret", nil))
	e.GET("/protected", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestMiddlewareSkipper(t *testing.T) {
	t.Parallel()
	e := echo.New()
	e.Use(auth.JWTMiddleware("test-secret", func(c echo.Context) bool {
		return c.Path() == "/public"
	}))
	e.GET("/public", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 without a token", rec.Code)
	}
}
