// Package instagram implements the Instagram messaging provider adapter.
package instagram

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	fboauth "golang.org/x/oauth2/facebook"

	"github.com/chanmux/chanmux/internal/provider"
)

// Type is the registered provider identifier for Instagram.
const Type provider.Type = "instagram"

const defaultGraphVersion = "v18.0"

// Options configures the Instagram adapter with the Meta app it claims through.
type Options struct {
	AppID        string
	AppSecret    string
	GraphVersion string
	GraphBaseURL string
}

// Adapter claims Instagram business accounts through their linked Facebook
// page, mirroring the Messenger OAuth handshake.
type Adapter struct {
	opts   Options
	client *provider.Client
	logger *slog.Logger
}

// New creates the Instagram adapter.
func New(log *slog.Logger, opts Options) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	if opts.GraphVersion == "" {
		opts.GraphVersion = defaultGraphVersion
	}
	if opts.GraphBaseURL == "" {
		opts.GraphBaseURL = "https://graph.facebook.com"
	}
	return &Adapter{
		opts:   opts,
		client: provider.NewClient(Type, 30*time.Second, 10),
		logger: log.With(slog.String("adapter", "instagram")),
	}
}

func (a *Adapter) Type() provider.Type {
	return Type
}

func (a *Adapter) Descriptor() provider.Descriptor {
	return provider.Descriptor{
		Type:        Type,
		DisplayName: "Instagram",
		ClaimMode:   provider.ClaimModeRedirect,
		Capabilities: provider.Capabilities{
			Attachments: true,
		},
		ConfigSchema: provider.ConfigSchema{
			Version: 1,
			Fields: map[string]provider.FieldSchema{
				"page_id": {
					Type:        provider.FieldString,
					Required:    false,
					Title:       "Linked Page ID",
					Description: "The Facebook page linked to the Instagram business account.",
				},
			},
		},
	}
}

func (a *Adapter) oauthConfig(callbackURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.opts.AppID,
		ClientSecret: a.opts.AppSecret,
		Endpoint:     fboauth.Endpoint,
		RedirectURL:  callbackURL,
		Scopes:       []string{"instagram_basic", "instagram_manage_messages", "pages_manage_metadata"},
	}
}

// StartClaim opens the consent flow for the linked page.
func (a *Adapter) StartClaim(ctx context.Context, req provider.StartClaimRequest) (provider.ClaimGrant, error) {
	if a.opts.AppID == "" || a.opts.AppSecret == "" {
		return provider.ClaimGrant{}, provider.NewError(Type, "start_claim", provider.CodeInvalidConfig, "meta app credentials are not configured")
	}
	partial := map[string]any{}
	if pageID := provider.ReadString(req.Params, "page_id"); pageID != "" {
		partial["page_id"] = pageID
	}
	return provider.ClaimGrant{
		Mode:        provider.ClaimModeRedirect,
		RedirectURL: a.oauthConfig(req.CallbackURL).AuthCodeURL(req.StateToken),
		Partial:     partial,
	}, nil
}

type igPagesResponse struct {
	Data []struct {
		ID                       string `json:"id"`
		Name                     string `json:"name"`
		AccessToken              string `json:"access_token"`
		InstagramBusinessAccount *struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"instagram_business_account"`
	} `json:"data"`
}

// CompleteClaim exchanges the callback code and resolves the Instagram
// business account behind the selected page.
func (a *Adapter) CompleteClaim(ctx context.Context, sess provider.ClaimContext, cb provider.CallbackData) (provider.ChannelSpec, error) {
	code := cb.Value("code")
	if code == "" {
		return provider.ChannelSpec{}, provider.NewError(Type, "complete_claim", provider.CodeAuthRejected, "callback is missing the authorization code")
	}
	token, err := a.oauthConfig(sess.CallbackURL).Exchange(ctx, code)
	if err != nil {
		return provider.ChannelSpec{}, provider.WrapError(Type, "complete_claim", provider.CodeAuthRejected, err)
	}

	endpoint := fmt.Sprintf("%s/%s/me/accounts?fields=id,name,access_token,instagram_business_account{id,username}&access_token=%s",
		a.opts.GraphBaseURL, a.opts.GraphVersion, url.QueryEscape(token.AccessToken))
	var pages igPagesResponse
	if err := a.client.GetJSON(ctx, "fetch_pages", endpoint, nil, &pages); err != nil {
		return provider.ChannelSpec{}, err
	}

	wantPageID := provider.ReadString(sess.Partial, "page_id")
	for _, page := range pages.Data {
		if wantPageID != "" && page.ID != wantPageID {
			continue
		}
		if page.InstagramBusinessAccount == nil {
			continue
		}
		a.logger.Debug("business account resolved", slog.String("ig_account_id", page.InstagramBusinessAccount.ID))
		return provider.ChannelSpec{
			Address: page.InstagramBusinessAccount.ID,
			Name:    page.InstagramBusinessAccount.Username,
			Credentials: map[string]any{
				"ig_account_id":     page.InstagramBusinessAccount.ID,
				"page_id":           page.ID,
				"page_access_token": page.AccessToken,
			},
			Capabilities: a.Descriptor().Capabilities,
		}, nil
	}
	return provider.ChannelSpec{}, provider.NewError(Type, "complete_claim", provider.CodeInvalidConfig, "no page with a linked Instagram business account was authorized")
}
