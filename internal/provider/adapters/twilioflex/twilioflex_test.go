package twilioflex_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chanmux/chanmux/internal/provider"
	"github.com/chanmux/chanmux/internal/provider/adapters/twilioflex"
)

func claimParams() map[string]any {
	return map[string]any{
		"account_sid":      "AC123",
		"auth_token":       "token",
		"chat_service_sid": "IS123",
		"flex_flow_sid":    "FO123",
	}
}

func TestStartClaimDirect(t *testing.T) {
	t.Parallel()
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"sid": "AC123", "friendly_name": "Acme Flex", "status": "active"}`))
	}))
	t.Cleanup(srv.Close)

	adapter := twilioflex.New(nil, twilioflex.Options{APIBaseURL: srv.URL})
	grant, err := adapter.StartClaim(context.Background(), provider.StartClaimRequest{
		OrgID:  "org-1",
		Params: claimParams(),
	})
	if err != nil {
		t.Fatalf("StartClaim() = %v, want nil", err)
	}
	if grant.Mode != provider.ClaimModeDirect {
		t.Fatalf("grant mode = %s, want direct", grant.Mode)
	}
	if grant.Spec == nil || grant.Spec.Address != "AC123" || grant.Spec.Name != "Acme Flex" {
		t.Fatalf("grant spec = %+v, want the validated account", grant.Spec)
	}
	if gotAuth == "" {
		t.Fatal("no Authorization header sent to the Twilio API")
	}
}

func TestStartClaimMissingParams(t *testing.T) {
	t.Parallel()
	adapter := twilioflex.New(nil, twilioflex.Options{})
	_, err := adapter.StartClaim(context.Background(), provider.StartClaimRequest{
		OrgID:  "org-1",
		Params: map[string]any{"account_sid": "AC123"},
	})
	if !provider.IsCode(err, provider.CodeInvalidConfig) {
		t.Fatalf("StartClaim() error code = %v, want invalid_config", provider.ErrCode(err))
	}
}

func TestStartClaimRejectsBadToken(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code": 20003, "message": "Authentication Error"}`))
	}))
	t.Cleanup(srv.Close)

	adapter := twilioflex.New(nil, twilioflex.Options{APIBaseURL: srv.URL})
	_, err := adapter.StartClaim(context.Background(), provider.StartClaimRequest{
		OrgID:  "org-1",
		Params: claimParams(),
	})
	if !provider.IsCode(err, provider.CodeAuthExpired) {
		t.Fatalf("StartClaim() error code = %v, want auth_expired", provider.ErrCode(err))
	}
}

func TestStartClaimRejectsSuspendedAccount(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sid": "AC123", "friendly_name": "Acme", "status": "suspended"}`))
	}))
	t.Cleanup(srv.Close)

	adapter := twilioflex.New(nil, twilioflex.Options{APIBaseURL: srv.URL})
	_, err := adapter.StartClaim(context.Background(), provider.StartClaimRequest{
		OrgID:  "org-1",
		Params: claimParams(),
	})
	if !provider.IsCode(err, provider.CodeAuthRejected) {
		t.Fatalf("StartClaim() error code = %v, want auth_rejected", provider.ErrCode(err))
	}
}
