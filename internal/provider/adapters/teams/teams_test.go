package teams_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chanmux/chanmux/internal/provider"
	"github.com/chanmux/chanmux/internal/provider/adapters/teams"
)

func newTokenServer(t *testing.T, accept bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !accept {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "invalid_client"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "fresh-token", "token_type": "Bearer", "expires_in": 3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStartClaimDirect(t *testing.T) {
	t.Parallel()
	srv := newTokenServer(t, true)
	adapter := teams.New(nil, teams.Options{TokenURL: srv.URL})

	grant, err := adapter.StartClaim(context.Background(), provider.StartClaimRequest{
		OrgID: "org-1",
		Params: map[string]any{
			"app_id":       "app-1",
			"app_password": "password",
			"bot_name":     "Helpdesk",
		},
	})
	if err != nil {
		t.Fatalf("StartClaim() = %v, want nil", err)
	}
	if grant.Mode != provider.ClaimModeDirect || grant.Spec == nil {
		t.Fatalf("grant = %+v, want a direct grant with a spec", grant)
	}
	if grant.Spec.Address != "app-1" || grant.Spec.Name != "Helpdesk" {
		t.Fatalf("spec = %+v, want app id address and bot name", grant.Spec)
	}
	if grant.Spec.Credentials["access_token"] != "fresh-token" {
		t.Fatalf("access_token = %v, want fresh-token", grant.Spec.Credentials["access_token"])
	}
}

func TestStartClaimRejectedCredentials(t *testing.T) {
	t.Parallel()
	srv := newTokenServer(t, false)
	adapter := teams.New(nil, teams.Options{TokenURL: srv.URL})

	_, err := adapter.StartClaim(context.Background(), provider.StartClaimRequest{
		OrgID: "org-1",
		Params: map[string]any{
			"app_id":       "app-1",
			"app_password": "wrong",
		},
	})
	if !provider.IsCode(err, provider.CodeAuthRejected) {
		t.Fatalf("StartClaim() error code = %v, want auth_rejected", provider.ErrCode(err))
	}
}

func TestRefreshCredentials(t *testing.T) {
	t.Parallel()
	srv := newTokenServer(t, true)
	adapter := teams.New(nil, teams.Options{TokenURL: srv.URL})

	rotated, err := adapter.RefreshCredentials(context.Background(), provider.ChannelConfig{
		ID:   "chan-1",
		Type: teams.Type,
		Credentials: map[string]any{
			"app_id":       "app-1",
			"app_password": "password",
			"access_token": "stale-token",
		},
	})
	if err != nil {
		t.Fatalf("RefreshCredentials() = %v, want nil", err)
	}
	if rotated["access_token"] != "fresh-token" {
		t.Fatalf("rotated access_token = %v, want fresh-token", rotated["access_token"])
	}
	if rotated["app_id"] != "app-1" || rotated["app_password"] != "password" {
		t.Fatalf("rotated credentials = %v, want app credentials preserved", rotated)
	}
}

func TestRefreshCredentialsIncomplete(t *testing.T) {
	t.Parallel()
	adapter := teams.New(nil, teams.Options{})
	_, err := adapter.RefreshCredentials(context.Background(), provider.ChannelConfig{
		Credentials: map[string]any{"app_id": "app-1"},
	})
	if !provider.IsCode(err, provider.CodeInvalidConfig) {
		t.Fatalf("RefreshCredentials() error code = %v, want invalid_config", provider.ErrCode(err))
	}
}

func TestRefreshInterval(t *testing.T) {
	t.Parallel()
	adapter := teams.New(nil, teams.Options{})
	if got := adapter.RefreshInterval(); got != 45*time.Minute {
		t.Fatalf("RefreshInterval() = %v, want 45m", got)
	}
}
