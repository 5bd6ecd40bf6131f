// Package rocketchat implements the Rocket.Chat provider adapter.
package rocketchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chanmux/chanmux/internal/provider"
)

// Type is the registered provider identifier for Rocket.Chat.
const Type provider.Type = "rocketchat"

// Adapter claims Rocket.Chat omnichannel apps with a personal access token
// supplied directly by the operator.
type Adapter struct {
	client *provider.Client
	logger *slog.Logger
}

// New creates the Rocket.Chat adapter.
func New(log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		client: provider.NewClient(Type, 30*time.Second, 10),
		logger: log.With(slog.String("adapter", "rocketchat")),
	}
}

func (a *Adapter) Type() provider.Type {
	return Type
}

func (a *Adapter) Descriptor() provider.Descriptor {
	return provider.Descriptor{
		Type:        Type,
		DisplayName: "Rocket.Chat",
		ClaimMode:   provider.ClaimModeDirect,
		Capabilities: provider.Capabilities{
			Attachments: true,
		},
		ConfigSchema: provider.ConfigSchema{
			Version: 1,
			Fields: map[string]provider.FieldSchema{
				"base_url": {
					Type:        provider.FieldString,
					Required:    true,
					Title:       "Base URL",
					Description: "The Rocket.Chat server URL, including scheme.",
					Example:     "https://chat.example.com",
				},
				"auth_token": {
					Type:     provider.FieldSecret,
					Required: true,
					Title:    "Auth Token",
				},
				"user_id": {
					Type:     provider.FieldString,
					Required: true,
					Title:    "User ID",
				},
			},
		},
	}
}

type meResponse struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Success  bool   `json:"success"`
}

// StartClaim validates the supplied token against /api/v1/me and yields the
// channel spec with a freshly generated webhook secret.
func (a *Adapter) StartClaim(ctx context.Context, req provider.StartClaimRequest) (provider.ClaimGrant, error) {
	baseURL := strings.TrimRight(provider.ReadString(req.Params, "base_url"), "/")
	authToken := provider.ReadString(req.Params, "auth_token")
	userID := provider.ReadString(req.Params, "user_id")
	if baseURL == "" || authToken == "" || userID == "" {
		return provider.ClaimGrant{}, provider.NewError(Type, "start_claim", provider.CodeInvalidConfig, "base_url, auth_token, and user_id are required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return provider.ClaimGrant{}, provider.NewError(Type, "start_claim", provider.CodeInvalidConfig, "base_url is not a valid URL")
	}

	me, err := a.fetchIdentity(ctx, baseURL, authToken, userID)
	if err != nil {
		return provider.ClaimGrant{}, err
	}
	if me.ID != userID {
		return provider.ClaimGrant{}, provider.NewError(Type, "start_claim", provider.CodeAuthRejected, "auth token does not belong to the supplied user")
	}

	secret, err := webhookSecret()
	if err != nil {
		return provider.ClaimGrant{}, provider.WrapError(Type, "start_claim", provider.CodeUnavailable, err)
	}
	a.logger.Debug("server verified", slog.String("username", me.Username))

	return provider.ClaimGrant{
		Mode: provider.ClaimModeDirect,
		Spec: &provider.ChannelSpec{
			Address: baseURL,
			Name:    me.Username,
			Credentials: map[string]any{
				"base_url":       baseURL,
				"auth_token":     authToken,
				"user_id":        userID,
				"webhook_secret": secret,
			},
			Capabilities: a.Descriptor().Capabilities,
		},
	}, nil
}

func (a *Adapter) fetchIdentity(ctx context.Context, baseURL, authToken, userID string) (meResponse, error) {
	headers := http.Header{}
	headers.Set("X-Auth-Token", authToken)
	headers.Set("X-User-Id", userID)
	var out meResponse
	if err := a.client.GetJSON(ctx, "fetch_identity", fmt.Sprintf("%s/api/v1/me", baseURL), headers, &out); err != nil {
		return meResponse{}, err
	}
	return out, nil
}

func webhookSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
