package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chanmux/chanmux/internal/auth"
	"github.com/chanmux/chanmux/internal/boot"
)

// AuthHandler issues API tokens in exchange for the bootstrap service key.
type AuthHandler struct {
	runtime *boot.RuntimeConfig
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(runtime *boot.RuntimeConfig) *AuthHandler {
	return &AuthHandler{runtime: runtime}
}

func (h *AuthHandler) Register(e *echo.Echo) {
	e.POST("/auth/token", h.token)
}

type tokenRequest struct {
	ServiceKey string `json:"service_key"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *AuthHandler) token(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if subtle.ConstantTimeCompare([]byte(req.ServiceKey), []byte(h.runtime.ServiceKey)) != 1 {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid service key"})
	}
	signed, expiresAt, err := auth.GenerateToken("service", h.runtime.JwtSecret, h.runtime.JwtExpiresIn)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: signed, ExpiresAt: expiresAt})
}
