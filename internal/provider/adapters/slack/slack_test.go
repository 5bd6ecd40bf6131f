package slack_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chanmux/chanmux/internal/provider"
	slackadapter "github.com/chanmux/chanmux/internal/provider/adapters/slack"
)

func newAdapter(t *testing.T, handler http.HandlerFunc) *slackadapter.Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return slackadapter.New(nil, slackadapter.Options{
		ClientID:     "client-1",
		ClientSecret: "secret",
		APIURL:       srv.URL + "/api/",
	})
}

func TestStartClaimRedirect(t *testing.T) {
	t.Parallel()
	adapter := slackadapter.New(nil, slackadapter.Options{ClientID: "client-1", ClientSecret: "secret"})
	grant, err := adapter.StartClaim(context.Background(), provider.StartClaimRequest{
		OrgID:       "org-1",
		StateToken:  "state-token",
		CallbackURL: "https://example.com/cb",
	})
	if err != nil {
		t.Fatalf("StartClaim() = %v, want nil", err)
	}
	if grant.Mode != provider.ClaimModeRedirect {
		t.Fatalf("grant mode = %s, want redirect", grant.Mode)
	}
	for _, fragment := range []string{"client_id=client-1", "state=state-token"} {
		if !strings.Contains(grant.RedirectURL, fragment) {
			t.Fatalf("redirect URL %q missing %q", grant.RedirectURL, fragment)
		}
	}
}

func TestStartClaimRequiresAppCredentials(t *testing.T) {
	t.Parallel()
	adapter := slackadapter.New(nil, slackadapter.Options{})
	_, err := adapter.StartClaim(context.Background(), provider.StartClaimRequest{StateToken: "s"})
	if !provider.IsCode(err, provider.CodeInvalidConfig) {
		t.Fatalf("StartClaim() error code = %v, want invalid_config", provider.ErrCode(err))
	}
}

func TestCompleteClaim(t *testing.T) {
	t.Parallel()
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "oauth.v2.access"):
			w.Write([]byte(`{
				"ok": true,
				"access_token": "xoxb-1",
				"token_type": "bot",
				"bot_user_id": "U123",
				"team": {"id": "T123", "name": "Acme"}
			}`))
		case strings.HasSuffix(r.URL.Path, "auth.test"):
			w.Write([]byte(`{
				"ok": true,
				"url": "https://acme.slack.com/",
				"team": "Acme",
				"user": "bot",
				"team_id": "T123",
				"user_id": "U123"
			}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	spec, err := adapter.CompleteClaim(context.Background(),
		provider.ClaimContext{OrgID: "org-1", Provider: slackadapter.Type, CallbackURL: "https://example.com/cb"},
		provider.CallbackData{Values: map[string]string{"code": "oauth-code"}},
	)
	if err != nil {
		t.Fatalf("CompleteClaim() = %v, want nil", err)
	}
	if spec.Address != "T123" || spec.Name != "Acme" {
		t.Fatalf("spec = %+v, want workspace identity", spec)
	}
	if spec.Credentials["bot_token"] != "xoxb-1" || spec.Credentials["bot_user_id"] != "U123" {
		t.Fatalf("credentials = %v, want bot token and user id", spec.Credentials)
	}
}

func TestCompleteClaimMissingCode(t *testing.T) {
	t.Parallel()
	adapter := slackadapter.New(nil, slackadapter.Options{ClientID: "client-1", ClientSecret: "secret"})
	_, err := adapter.CompleteClaim(context.Background(),
		provider.ClaimContext{OrgID: "org-1"},
		provider.CallbackData{Values: map[string]string{}},
	)
	if !provider.IsCode(err, provider.CodeAuthRejected) {
		t.Fatalf("CompleteClaim() error code = %v, want auth_rejected", provider.ErrCode(err))
	}
}

func TestCompleteClaimExchangeRejected(t *testing.T) {
	t.Parallel()
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": false, "error": "invalid_code"}`))
	})

	_, err := adapter.CompleteClaim(context.Background(),
		provider.ClaimContext{OrgID: "org-1"},
		provider.CallbackData{Values: map[string]string{"code": "bad"}},
	)
	if !provider.IsCode(err, provider.CodeAuthRejected) {
		t.Fatalf("CompleteClaim() error code = %v, want auth_rejected", provider.ErrCode(err))
	}
}
