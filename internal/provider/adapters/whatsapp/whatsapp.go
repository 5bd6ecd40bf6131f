package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	"github.com/chanmux/chanmux/internal/provider"
)

const defaultGraphVersion = "v18.0"

// Options configures the WhatsApp Cloud adapter with the Meta app it claims through.
type Options struct {
	AppID        string
	AppSecret    string
	GraphVersion string

	// GraphBaseURL overrides the Graph API host, used by tests.
	GraphBaseURL string
}

// Adapter claims WhatsApp Cloud phone numbers via the embedded-signup OAuth
// flow and syncs their message templates from the Graph API.
type Adapter struct {
	opts   Options
	client *provider.Client
	logger *slog.Logger
}

// New creates the WhatsApp Cloud adapter.
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
		logger: log.With(slog.String("adapter", "whatsapp")),
	}
}

func (a *Adapter) Type() provider.Type {
	return Type
}

func (a *Adapter) Descriptor() provider.Descriptor {
	return descriptor()
}

func (a *Adapter) oauthConfig(callbackURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.opts.AppID,
		ClientSecret: a.opts.AppSecret,
		Endpoint:     facebook.Endpoint,
		RedirectURL:  callbackURL,
		Scopes:       []string{"whatsapp_business_management", "whatsapp_business_messaging"},
	}
}

// StartClaim opens the embedded-signup consent flow. The WABA and phone
// number identifiers arrive with the callback.
func (a *Adapter) StartClaim(ctx context.Context, req provider.StartClaimRequest) (provider.ClaimGrant, error) {
	if a.opts.AppID == "" || a.opts.AppSecret == "" {
		return provider.ClaimGrant{}, provider.NewError(Type, "start_claim", provider.CodeInvalidConfig, "meta app credentials are not configured")
	}
	authURL := a.oauthConfig(req.CallbackURL).AuthCodeURL(req.StateToken)
	return provider.ClaimGrant{
		Mode:        provider.ClaimModeRedirect,
		RedirectURL: authURL,
		Partial:     map[string]any{},
	}, nil
}

// CompleteClaim exchanges the callback code for a business token and resolves
// the claimed phone number.
func (a *Adapter) CompleteClaim(ctx context.Context, sess provider.ClaimContext, cb provider.CallbackData) (provider.ChannelSpec, error) {
	code := cb.Value("code")
	if code == "" {
		return provider.ChannelSpec{}, provider.NewError(Type, "complete_claim", provider.CodeAuthRejected, "callback is missing the authorization code")
	}
	wabaID := cb.Value("waba_id")
	phoneNumberID := cb.Value("phone_number_id")
	if wabaID == "" || phoneNumberID == "" {
		return provider.ChannelSpec{}, provider.NewError(Type, "complete_claim", provider.CodeInvalidConfig, "waba_id and phone_number_id are required")
	}

	token, err := a.oauthConfig(sess.CallbackURL).Exchange(ctx, code)
	if err != nil {
		return provider.ChannelSpec{}, provider.WrapError(Type, "complete_claim", provider.CodeAuthRejected, err)
	}

	phone, err := a.fetchPhoneNumber(ctx, phoneNumberID, token.AccessToken)
	if err != nil {
		return provider.ChannelSpec{}, err
	}

	return provider.ChannelSpec{
		Address: phoneNumberID,
		Name:    phone.VerifiedName,
		Credentials: map[string]any{
			"access_token":    token.AccessToken,
			"waba_id":         wabaID,
			"phone_number_id": phoneNumberID,
		},
		Capabilities: descriptor().Capabilities,
	}, nil
}

type phoneNumberResponse struct {
	VerifiedName       string `json:"verified_name"`
	DisplayPhoneNumber string `json:"display_phone_number"`
	ID                 string `json:"id"`
}

func (a *Adapter) fetchPhoneNumber(ctx context.Context, phoneNumberID, accessToken string) (phoneNumberResponse, error) {
	endpoint := fmt.Sprintf("%s/%s/%s?access_token=%s",
		a.opts.GraphBaseURL, a.opts.GraphVersion, phoneNumberID, url.QueryEscape(accessToken))
	var out phoneNumberResponse
	if err := a.client.GetJSON(ctx, "fetch_phone_number", endpoint, nil, &out); err != nil {
		return phoneNumberResponse{}, err
	}
	return out, nil
}
