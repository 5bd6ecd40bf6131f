// Package auth provides JWT issuance and Echo middleware for the API.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// Claims is the JWT payload issued to API callers.
type Claims struct {
	jwt.RegisteredClaims
}

// GenerateToken signs a token for the given subject with the given secret and TTL.
func GenerateToken(subject, secret string, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(secret) == "" {
		return "", time.Time{}, errors.New("jwt secret is required")
	}
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// JWTMiddleware returns the Echo JWT middleware. Requests matched by skipper
// bypass authentication.
func JWTMiddleware(secret string, skipper func(c echo.Context) bool) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		Skipper: skipper,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return &Claims{}
		},
		SigningKey: []byte(secret),
	})
}

// SubjectFromContext extracts the token subject set by the JWT middleware.
func SubjectFromContext(c echo.Context) (string, error) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok || token == nil {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || strings.TrimSpace(claims.Subject) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
	}
	return claims.Subject, nil
}
