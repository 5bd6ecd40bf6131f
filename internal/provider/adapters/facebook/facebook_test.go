package facebook_test

import (
	"context"
	"strings"
	"testing"

	"github.com/chanmux/chanmux/internal/provider"
	"github.com/chanmux/chanmux/internal/provider/adapters/facebook"
)

func TestStartClaimKeepsRequestedPage(t *testing.T) {
	t.Parallel()
	adapter := facebook.New(nil, facebook.Options{AppID: "app", AppSecret: "secret"})
	grant, err := adapter.StartClaim(context.Background(), provider.StartClaimRequest{
		OrgID:       "org-1",
		StateToken:  "state-token",
		CallbackURL: "https://example.com/cb",
		Params:      map[string]any{"page_id": "page-9"},
	})
	if err != nil {
		t.Fatalf("StartClaim() = %v, want nil", err)
	}
	if grant.Mode != provider.ClaimModeRedirect {
		t.Fatalf("grant mode = %s, want redirect", grant.Mode)
	}
	if grant.Partial["page_id"] != "page-9" {
		t.Fatalf("partial = %v, want the requested page carried to completion", grant.Partial)
	}
	if !strings.Contains(grant.RedirectURL, "state=state-token") {
		t.Fatalf("redirect URL %q missing state token", grant.RedirectURL)
	}
}

func TestStartClaimRequiresAppCredentials(t *testing.T) {
	t.Parallel()
	adapter := facebook.New(nil, facebook.Options{})
	_, err := adapter.StartClaim(context.Background(), provider.StartClaimRequest{StateToken: "s"})
	if !provider.IsCode(err, provider.CodeInvalidConfig) {
		t.Fatalf("StartClaim() error code = %v, want invalid_config", provider.ErrCode(err))
	}
}

func TestCompleteClaimMissingCode(t *testing.T) {
	t.Parallel()
	adapter := facebook.New(nil, facebook.Options{AppID: "app", AppSecret: "secret"})
	_, err := adapter.CompleteClaim(context.Background(),
		provider.ClaimContext{OrgID: "org-1"},
		provider.CallbackData{Values: map[string]string{}},
	)
	if !provider.IsCode(err, provider.CodeAuthRejected) {
		t.Fatalf("CompleteClaim() error code = %v, want auth_rejected", provider.ErrCode(err))
	}
}
