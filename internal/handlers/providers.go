package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chanmux/chanmux/internal/provider"
)

// ProvidersHandler serves the provider catalog.
type ProvidersHandler struct {
	registry *provider.Registry
}

// NewProvidersHandler creates the provider catalog handler.
func NewProvidersHandler(registry *provider.Registry) *ProvidersHandler {
	return &ProvidersHandler{registry: registry}
}

func (h *ProvidersHandler) Register(e *echo.Echo) {
	e.GET("/providers", h.list)
}

func (h *ProvidersHandler) list(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"providers": h.registry.ListDescriptors(),
	})
}
