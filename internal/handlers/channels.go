package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chanmux/chanmux/internal/channels"
)

// ChannelsHandler exposes the channel registry.
type ChannelsHandler struct {
	channels *channels.Service
}

// NewChannelsHandler creates the channels handler.
func NewChannelsHandler(channelSvc *channels.Service) *ChannelsHandler {
	return &ChannelsHandler{channels: channelSvc}
}

func (h *ChannelsHandler) Register(e *echo.Echo) {
	e.GET("/orgs/:org/channels", h.listByOrg)
	e.GET("/channels/:id", h.get)
	e.DELETE("/channels/:id", h.release)
}

func (h *ChannelsHandler) listByOrg(c echo.Context) error {
	items, err := h.channels.ListByOrg(c.Request().Context(), c.Param("org"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"channels": items})
}

func (h *ChannelsHandler) get(c echo.Context) error {
	ch, err := h.channels.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ch)
}

func (h *ChannelsHandler) release(c echo.Context) error {
	if err := h.channels.Deactivate(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
