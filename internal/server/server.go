// Package server assembles the Echo HTTP server.
package server

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/chanmux/chanmux/internal/auth"
	"github.com/chanmux/chanmux/internal/boot"
	"github.com/chanmux/chanmux/internal/handlers"
)

// publicRoutes are served without a bearer token: health, token issuance,
// and the claim callback/status legs the provider redirect flow hits.
var publicRoutes = map[string]bool{
	"/ping":                   true,
	"/auth/token":             true,
	"/claims/:token":          true,
	"/claims/:token/callback": true,
}

// New builds the Echo instance with middleware and all routes registered.
func New(log *slog.Logger, runtime *boot.RuntimeConfig, hs []handlers.Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	e.Use(auth.JWTMiddleware(runtime.JwtSecret, func(c echo.Context) bool {
		return publicRoutes[c.Path()]
	}))

	for _, h := range hs {
		h.Register(e)
	}
	return e
}
