// Package twilioflex implements the Twilio Flex provider adapter.
package twilioflex

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/chanmux/chanmux/internal/provider"
)

// Type is the registered provider identifier for Twilio Flex.
const Type provider.Type = "twilioflex"

// Options configures the Twilio Flex adapter.
type Options struct {
	// APIBaseURL overrides the Twilio REST host, used by tests.
	APIBaseURL string
	// ChatBaseURL overrides the Twilio Chat host, used by tests.
	ChatBaseURL string
}

// Adapter claims Twilio Flex workspaces with account credentials supplied
// directly by the operator. No redirect leg is involved.
type Adapter struct {
	opts   Options
	client *provider.Client
	logger *slog.Logger
}

// New creates the Twilio Flex adapter.
func New(log *slog.Logger, opts Options) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	if opts.APIBaseURL == "" {
		opts.APIBaseURL = "https://api.twilio.com"
	}
	if opts.ChatBaseURL == "" {
		opts.ChatBaseURL = "https://chat.twilio.com"
	}
	return &Adapter{
		opts:   opts,
		client: provider.NewClient(Type, 30*time.Second, 10),
		logger: log.With(slog.String("adapter", "twilioflex")),
	}
}

func (a *Adapter) Type() provider.Type {
	return Type
}

func (a *Adapter) Descriptor() provider.Descriptor {
	return provider.Descriptor{
		Type:        Type,
		DisplayName: "Twilio Flex",
		ClaimMode:   provider.ClaimModeDirect,
		Capabilities: provider.Capabilities{
			Attachments: true,
		},
		ConfigSchema: provider.ConfigSchema{
			Version: 1,
			Fields: map[string]provider.FieldSchema{
				"account_sid": {
					Type:        provider.FieldString,
					Required:    true,
					Title:       "Account SID",
					Description: "The Twilio account SID that hosts the Flex instance.",
				},
				"auth_token": {
					Type:     provider.FieldSecret,
					Required: true,
					Title:    "Auth Token",
				},
				"chat_service_sid": {
					Type:     provider.FieldString,
					Required: true,
					Title:    "Chat Service SID",
				},
				"flex_flow_sid": {
					Type:     provider.FieldString,
					Required: true,
					Title:    "Flex Flow SID",
				},
			},
		},
	}
}

type accountResponse struct {
	SID          string `json:"sid"`
	FriendlyName string `json:"friendly_name"`
	Status       string `json:"status"`
}

// StartClaim validates the supplied account credentials against the Twilio
// REST API and, when they hold, yields the channel spec immediately.
func (a *Adapter) StartClaim(ctx context.Context, req provider.StartClaimRequest) (provider.ClaimGrant, error) {
	accountSID := provider.ReadString(req.Params, "account_sid")
	authToken := provider.ReadString(req.Params, "auth_token")
	chatServiceSID := provider.ReadString(req.Params, "chat_service_sid")
	flexFlowSID := provider.ReadString(req.Params, "flex_flow_sid")
	if accountSID == "" || authToken == "" || chatServiceSID == "" || flexFlowSID == "" {
		return provider.ClaimGrant{}, provider.NewError(Type, "start_claim", provider.CodeInvalidConfig, "account_sid, auth_token, chat_service_sid, and flex_flow_sid are required")
	}

	account, err := a.fetchAccount(ctx, accountSID, authToken)
	if err != nil {
		return provider.ClaimGrant{}, err
	}
	if account.Status != "active" {
		return provider.ClaimGrant{}, provider.NewError(Type, "start_claim", provider.CodeAuthRejected, fmt.Sprintf("twilio account is %s", account.Status))
	}
	a.logger.Debug("account verified", slog.String("account_sid", accountSID))

	return provider.ClaimGrant{
		Mode: provider.ClaimModeDirect,
		Spec: &provider.ChannelSpec{
			Address: accountSID,
			Name:    account.FriendlyName,
			Credentials: map[string]any{
				"account_sid":      accountSID,
				"auth_token":       authToken,
				"chat_service_sid": chatServiceSID,
				"flex_flow_sid":    flexFlowSID,
			},
			Capabilities: a.Descriptor().Capabilities,
		},
	}, nil
}

func (a *Adapter) fetchAccount(ctx context.Context, accountSID, authToken string) (accountResponse, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s.json", a.opts.APIBaseURL, accountSID)
	headers := http.Header{}
	headers.Set("Authorization", basicAuth(accountSID, authToken))
	var out accountResponse
	if err := a.client.GetJSON(ctx, "fetch_account", endpoint, headers, &out); err != nil {
		return accountResponse{}, err
	}
	return out, nil
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}
