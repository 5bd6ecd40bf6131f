// Package facebook implements the Facebook Messenger provider adapter.
package facebook

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

// Type is the registered provider identifier for Facebook Messenger.
const Type provider.Type = "facebook"

const defaultGraphVersion = "v18.0"

// Options configures the Facebook adapter with the Meta app it claims through.
type Options struct {
	AppID        string
	AppSecret    string
	GraphVersion string
	GraphBaseURL string
}

// Adapter claims Facebook pages for Messenger via OAuth and registers the
// app's webhook subscription on the claimed page.
type Adapter struct {
	opts   Options
	client *provider.Client
	logger *slog.Logger
}

// New creates the Facebook adapter.
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
		logger: log.With(slog.String("adapter", "facebook")),
	}
}

func (a *Adapter) Type() provider.Type {
	return Type
}

func (a *Adapter) Descriptor() provider.Descriptor {
	return provider.Descriptor{
		Type:        Type,
		DisplayName: "Facebook Messenger",
		ClaimMode:   provider.ClaimModeRedirect,
		Capabilities: provider.Capabilities{
			Attachments: true,
			Buttons:     true,
		},
		ConfigSchema: provider.ConfigSchema{
			Version: 1,
			Fields: map[string]provider.FieldSchema{
				"page_id": {
					Type:        provider.FieldString,
					Required:    false,
					Title:       "Page ID",
					Description: "Claim this page; defaults to the first page the user manages.",
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
		Scopes:       []string{"pages_messaging", "pages_manage_metadata", "pages_show_list"},
	}
}

// StartClaim opens the page-selection consent flow.
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

type pagesResponse struct {
	Data []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		AccessToken string `json:"access_token"`
	} `json:"data"`
}

// CompleteClaim exchanges the callback code, resolves the page token, and
// subscribes the app to the page's messaging webhooks.
func (a *Adapter) CompleteClaim(ctx context.Context, sess provider.ClaimContext, cb provider.CallbackData) (provider.ChannelSpec, error) {
	code := cb.Value("code")
	if code == "" {
		return provider.ChannelSpec{}, provider.NewError(Type, "complete_claim", provider.CodeAuthRejected, "callback is missing the authorization code")
	}
	token, err := a.oauthConfig(sess.CallbackURL).Exchange(ctx, code)
	if err != nil {
		return provider.ChannelSpec{}, provider.WrapError(Type, "complete_claim", provider.CodeAuthRejected, err)
	}

	pages, err := a.fetchPages(ctx, token.AccessToken)
	if err != nil {
		return provider.ChannelSpec{}, err
	}
	if len(pages.Data) == 0 {
		return provider.ChannelSpec{}, provider.NewError(Type, "complete_claim", provider.CodeInvalidConfig, "the authorizing user manages no pages")
	}

	wantPageID := provider.ReadString(sess.Partial, "page_id")
	page := pages.Data[0]
	if wantPageID != "" {
		found := false
		for _, candidate := range pages.Data {
			if candidate.ID == wantPageID {
				page = candidate
				found = true
				break
			}
		}
		if !found {
			return provider.ChannelSpec{}, provider.NewError(Type, "complete_claim", provider.CodeInvalidConfig, fmt.Sprintf("page %s is not managed by the authorizing user", wantPageID))
		}
	}

	if err := a.subscribePage(ctx, page.ID, page.AccessToken); err != nil {
		return provider.ChannelSpec{}, err
	}
	a.logger.Debug("page subscribed", slog.String("page_id", page.ID))

	return provider.ChannelSpec{
		Address: page.ID,
		Name:    page.Name,
		Credentials: map[string]any{
			"page_id":           page.ID,
			"page_access_token": page.AccessToken,
		},
		Capabilities: a.Descriptor().Capabilities,
	}, nil
}

func (a *Adapter) fetchPages(ctx context.Context, userToken string) (pagesResponse, error) {
	endpoint := fmt.Sprintf("%s/%s/me/accounts?access_token=%s",
		a.opts.GraphBaseURL, a.opts.GraphVersion, url.QueryEscape(userToken))
	var out pagesResponse
	if err := a.client.GetJSON(ctx, "fetch_pages", endpoint, nil, &out); err != nil {
		return pagesResponse{}, err
	}
	return out, nil
}

func (a *Adapter) subscribePage(ctx context.Context, pageID, pageToken string) error {
	endpoint := fmt.Sprintf("%s/%s/%s/subscribed_apps?subscribed_fields=messages,messaging_postbacks&access_token=%s",
		a.opts.GraphBaseURL, a.opts.GraphVersion, pageID, url.QueryEscape(pageToken))
	return a.client.PostJSON(ctx, "subscribe_page", endpoint, nil, map[string]any{}, nil)
}
