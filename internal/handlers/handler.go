// Package handlers contains the Echo HTTP handlers for the API.
package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chanmux/chanmux/internal/channels"
	"github.com/chanmux/chanmux/internal/claims"
	"github.com/chanmux/chanmux/internal/provider"
	"github.com/chanmux/chanmux/internal/templates"
)

// Handler registers routes on the Echo instance.
type Handler interface {
	Register(e *echo.Echo)
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError maps domain and adapter errors onto HTTP statuses.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, channels.ErrNotFound), errors.Is(err, claims.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, channels.ErrAlreadyClaimed), errors.Is(err, claims.ErrSessionClosed):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, claims.ErrSessionExpired):
		return c.JSON(http.StatusGone, ErrorResponse{Error: err.Error()})
	case errors.Is(err, templates.ErrSyncUnsupported):
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	}

	var provErr *provider.Error
	if errors.As(err, &provErr) {
		status := http.StatusInternalServerError
		switch provErr.Code {
		case provider.CodeInvalidConfig:
			status = http.StatusBadRequest
		case provider.CodeAuthRejected:
			status = http.StatusForbidden
		case provider.CodeAuthExpired:
			status = http.StatusUnauthorized
		case provider.CodeRateLimited:
			status = http.StatusTooManyRequests
		case provider.CodeUnavailable:
			status = http.StatusBadGateway
		}
		return c.JSON(status, ErrorResponse{Error: provErr.Error(), Code: string(provErr.Code)})
	}

	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}
