// Package teams implements the Microsoft Teams provider adapter.
package teams

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/chanmux/chanmux/internal/provider"
)

// Type is the registered provider identifier for Microsoft Teams.
const Type provider.Type = "teams"

// Bot Framework credentials are issued against the shared botframework.com
// tenant regardless of where the bot's Azure resources live.
const (
	defaultTokenURL = "https://login.microsoftonline.com/botframework.com/oauth2/v2.0/token"
	botScope        = "https://api.botframework.com/.default"

	// Bot Framework tokens live for an hour; refresh well inside that window.
	refreshInterval = 45 * time.Minute
)

// Options configures the Teams adapter.
type Options struct {
	// TokenURL overrides the Microsoft login endpoint, used by tests.
	TokenURL string
}

// Adapter claims Microsoft Teams bots with Azure app credentials supplied
// directly by the operator, and keeps the short-lived Bot Framework access
// token rotated.
type Adapter struct {
	opts   Options
	logger *slog.Logger
}

// New creates the Teams adapter.
func New(log *slog.Logger, opts Options) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	if opts.TokenURL == "" {
		opts.TokenURL = defaultTokenURL
	}
	return &Adapter{
		opts:   opts,
		logger: log.With(slog.String("adapter", "teams")),
	}
}

func (a *Adapter) Type() provider.Type {
	return Type
}

func (a *Adapter) Descriptor() provider.Descriptor {
	return provider.Descriptor{
		Type:        Type,
		DisplayName: "Microsoft Teams",
		ClaimMode:   provider.ClaimModeDirect,
		Capabilities: provider.Capabilities{
			Attachments: true,
			Buttons:     true,
		},
		ConfigSchema: provider.ConfigSchema{
			Version: 1,
			Fields: map[string]provider.FieldSchema{
				"app_id": {
					Type:        provider.FieldString,
					Required:    true,
					Title:       "App ID",
					Description: "The Azure application (client) ID of the bot registration.",
				},
				"app_password": {
					Type:     provider.FieldSecret,
					Required: true,
					Title:    "App Password",
				},
				"bot_name": {
					Type:     provider.FieldString,
					Required: false,
					Title:    "Bot Name",
				},
			},
		},
	}
}

func (a *Adapter) tokenConfig(appID, appPassword string) *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:     appID,
		ClientSecret: appPassword,
		TokenURL:     a.opts.TokenURL,
		Scopes:       []string{botScope},
	}
}

// StartClaim validates the app credentials by performing the client
// credentials grant and yields the channel spec with the first access token.
func (a *Adapter) StartClaim(ctx context.Context, req provider.StartClaimRequest) (provider.ClaimGrant, error) {
	appID := provider.ReadString(req.Params, "app_id")
	appPassword := provider.ReadString(req.Params, "app_password")
	if appID == "" || appPassword == "" {
		return provider.ClaimGrant{}, provider.NewError(Type, "start_claim", provider.CodeInvalidConfig, "app_id and app_password are required")
	}

	token, err := a.tokenConfig(appID, appPassword).Token(ctx)
	if err != nil {
		return provider.ClaimGrant{}, provider.WrapError(Type, "start_claim", provider.CodeAuthRejected, err)
	}

	name := provider.ReadString(req.Params, "bot_name")
	if name == "" {
		name = appID
	}
	return provider.ClaimGrant{
		Mode: provider.ClaimModeDirect,
		Spec: &provider.ChannelSpec{
			Address: appID,
			Name:    name,
			Credentials: map[string]any{
				"app_id":       appID,
				"app_password": appPassword,
				"access_token": token.AccessToken,
			},
			Capabilities: a.Descriptor().Capabilities,
		},
	}, nil
}

// RefreshCredentials re-runs the client credentials grant and returns the
// credential map with a fresh access token.
func (a *Adapter) RefreshCredentials(ctx context.Context, cfg provider.ChannelConfig) (map[string]any, error) {
	appID := provider.ReadString(cfg.Credentials, "app_id")
	appPassword := provider.ReadString(cfg.Credentials, "app_password")
	if appID == "" || appPassword == "" {
		return nil, provider.NewError(Type, "refresh_credentials", provider.CodeInvalidConfig, "channel credentials are incomplete")
	}

	token, err := a.tokenConfig(appID, appPassword).Token(ctx)
	if err != nil {
		return nil, provider.WrapError(Type, "refresh_credentials", provider.CodeAuthExpired, err)
	}

	a.logger.Debug("bot framework token rotated", slog.String("app_id", appID))
	return map[string]any{
		"app_id":       appID,
		"app_password": appPassword,
		"access_token": token.AccessToken,
	}, nil
}

// RefreshInterval reports how often the Bot Framework token should rotate.
func (a *Adapter) RefreshInterval() time.Duration {
	return refreshInterval
}
