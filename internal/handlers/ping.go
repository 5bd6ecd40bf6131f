package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chanmux/chanmux/internal/version"
)

// PingHandler serves the health endpoint.
type PingHandler struct{}

// NewPingHandler creates the health handler.
func NewPingHandler() *PingHandler {
	return &PingHandler{}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.ping)
}

func (h *PingHandler) ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.GetInfo(),
	})
}
