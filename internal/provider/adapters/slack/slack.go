// Package slack implements the Slack provider adapter.
package slack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/chanmux/chanmux/internal/provider"
)

// Type is the registered provider identifier for Slack.
const Type provider.Type = "slack"

const (
	authorizeURL  = "https://slack.com/oauth/v2/authorize"
	defaultAPIURL = "https://slack.com/api/"
)

// Options configures the Slack adapter with the Slack app it claims through.
type Options struct {
	ClientID     string
	ClientSecret string

	// APIURL overrides the Slack API base, used by tests. Must end with "/".
	APIURL string
}

// Adapter claims Slack workspaces via OAuth v2 and stores the bot token.
type Adapter struct {
	opts   Options
	http   *http.Client
	logger *slog.Logger
}

// New creates the Slack adapter.
func New(log *slog.Logger, opts Options) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	if opts.APIURL == "" {
		opts.APIURL = defaultAPIURL
	}
	return &Adapter{
		opts:   opts,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: log.With(slog.String("adapter", "slack")),
	}
}

func (a *Adapter) Type() provider.Type {
	return Type
}

func (a *Adapter) Descriptor() provider.Descriptor {
	return provider.Descriptor{
		Type:        Type,
		DisplayName: "Slack",
		ClaimMode:   provider.ClaimModeRedirect,
		Capabilities: provider.Capabilities{
			Attachments: true,
			Buttons:     true,
		},
		ConfigSchema: provider.ConfigSchema{
			Version: 1,
			Fields:  map[string]provider.FieldSchema{},
		},
	}
}

// StartClaim opens the Slack OAuth v2 consent flow.
func (a *Adapter) StartClaim(ctx context.Context, req provider.StartClaimRequest) (provider.ClaimGrant, error) {
	if a.opts.ClientID == "" || a.opts.ClientSecret == "" {
		return provider.ClaimGrant{}, provider.NewError(Type, "start_claim", provider.CodeInvalidConfig, "slack app credentials are not configured")
	}
	query := url.Values{}
	query.Set("client_id", a.opts.ClientID)
	query.Set("scope", "chat:write,channels:read,files:write")
	query.Set("redirect_uri", req.CallbackURL)
	query.Set("state", req.StateToken)
	return provider.ClaimGrant{
		Mode:        provider.ClaimModeRedirect,
		RedirectURL: authorizeURL + "?" + query.Encode(),
		Partial:     map[string]any{},
	}, nil
}

// CompleteClaim exchanges the callback code for a bot token and confirms the
// workspace identity with auth.test.
func (a *Adapter) CompleteClaim(ctx context.Context, sess provider.ClaimContext, cb provider.CallbackData) (provider.ChannelSpec, error) {
	code := cb.Value("code")
	if code == "" {
		return provider.ChannelSpec{}, provider.NewError(Type, "complete_claim", provider.CodeAuthRejected, "callback is missing the authorization code")
	}

	resp, err := a.exchangeCode(ctx, code, sess.CallbackURL)
	if err != nil {
		return provider.ChannelSpec{}, err
	}

	api := slackapi.New(resp.AccessToken,
		slackapi.OptionAPIURL(a.opts.APIURL),
		slackapi.OptionHTTPClient(a.http),
	)
	identity, err := api.AuthTestContext(ctx)
	if err != nil {
		return provider.ChannelSpec{}, provider.WrapError(Type, "complete_claim", provider.CodeAuthRejected, err)
	}
	a.logger.Debug("workspace claimed", slog.String("team_id", identity.TeamID))

	return provider.ChannelSpec{
		Address: identity.TeamID,
		Name:    identity.Team,
		Credentials: map[string]any{
			"bot_token":   resp.AccessToken,
			"team_id":     identity.TeamID,
			"bot_user_id": resp.BotUserID,
		},
		Capabilities: a.Descriptor().Capabilities,
	}, nil
}

// exchangeCode performs the oauth.v2.access leg. Slack reports failures with
// 200 and ok=false, so the body is checked rather than the status.
func (a *Adapter) exchangeCode(ctx context.Context, code, redirectURI string) (*slackapi.OAuthV2Response, error) {
	form := url.Values{}
	form.Set("client_id", a.opts.ClientID)
	form.Set("client_secret", a.opts.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.opts.APIURL+"oauth.v2.access", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, provider.WrapError(Type, "complete_claim", provider.CodeInvalidConfig, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := a.http.Do(req)
	if err != nil {
		return nil, provider.WrapError(Type, "complete_claim", provider.CodeUnavailable, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, provider.WrapError(Type, "complete_claim", provider.CodeUnavailable, err)
	}

	var resp slackapi.OAuthV2Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, provider.WrapError(Type, "complete_claim", provider.CodeUnavailable, err)
	}
	if !resp.Ok {
		return nil, provider.NewError(Type, "complete_claim", provider.CodeAuthRejected, resp.Err().Error())
	}
	if resp.AccessToken == "" {
		return nil, provider.NewError(Type, "complete_claim", provider.CodeAuthRejected, "slack oauth response is missing the bot token")
	}
	return &resp, nil
}
