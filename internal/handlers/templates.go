package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chanmux/chanmux/internal/templates"
)

// TemplatesHandler exposes mirrored templates and the manual sync trigger.
type TemplatesHandler struct {
	store     *templates.Store
	scheduler *templates.Scheduler
}

// NewTemplatesHandler creates the templates handler.
func NewTemplatesHandler(store *templates.Store, scheduler *templates.Scheduler) *TemplatesHandler {
	return &TemplatesHandler{store: store, scheduler: scheduler}
}

func (h *TemplatesHandler) Register(e *echo.Echo) {
	e.GET("/channels/:id/templates", h.list)
	e.POST("/channels/:id/templates/sync", h.sync)
}

func (h *TemplatesHandler) list(c echo.Context) error {
	items, err := h.store.ListByChannel(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"templates": items})
}

func (h *TemplatesHandler) sync(c echo.Context) error {
	if err := h.scheduler.SyncChannel(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "synced"})
}
