package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chanmux/chanmux/internal/claims"
)

// ClaimsHandler exposes the claim/connect handshake.
type ClaimsHandler struct {
	claims *claims.Service
}

// NewClaimsHandler creates the claims handler.
func NewClaimsHandler(claimSvc *claims.Service) *ClaimsHandler {
	return &ClaimsHandler{claims: claimSvc}
}

func (h *ClaimsHandler) Register(e *echo.Echo) {
	e.POST("/orgs/:org/claims", h.start)
	e.GET("/claims/:token", h.status)
	// Providers deliver the OAuth leg with a GET redirect; embedded flows
	// post the same payload.
	e.GET("/claims/:token/callback", h.callback)
	e.POST("/claims/:token/callback", h.callback)
}

type startClaimRequest struct {
	Provider string         `json:"provider"`
	Params   map[string]any `json:"params"`
}

func (h *ClaimsHandler) start(c echo.Context) error {
	orgID := c.Param("org")
	var req startClaimRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	result, err := h.claims.Start(c.Request().Context(), orgID, req.Provider, req.Params)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *ClaimsHandler) status(c echo.Context) error {
	sess, err := h.claims.Get(c.Request().Context(), c.Param("token"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *ClaimsHandler) callback(c echo.Context) error {
	values := map[string]string{}
	for key, vals := range c.QueryParams() {
		if len(vals) > 0 {
			values[key] = vals[0]
		}
	}
	if form, err := c.FormParams(); err == nil {
		for key, vals := range form {
			if len(vals) > 0 {
				values[key] = vals[0]
			}
		}
	}
	sess, err := h.claims.Complete(c.Request().Context(), c.Param("token"), values)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}
