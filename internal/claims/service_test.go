package claims_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/chanmux/chanmux/internal/channels"
	"github.com/chanmux/chanmux/internal/claims"
	"github.com/chanmux/chanmux/internal/provider"
)

// memStore holds one claim session, mirroring the SQL store's compare-and-swap
// transition semantics.
type memStore struct {
	mu     sync.Mutex
	sess   claims.Session
	params []byte
}

func (m *memStore) Insert(_ context.Context, sess claims.Session, sealed []byte) (claims.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess.ID = "sess-1"
	sess.CreatedAt = time.Now()
	m.sess = sess
	m.params = sealed
	return sess, nil
}

func (m *memStore) GetByToken(_ context.Context, stateToken string) (claims.Session, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess.ID == "" || m.sess.StateToken != stateToken {
		return claims.Session{}, nil, claims.ErrSessionNotFound
	}
	return m.sess, m.params, nil
}

func (m *memStore) Transition(_ context.Context, id string, from, to claims.State, reason, channelID string) (claims.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess.ID != id || m.sess.State != from {
		return claims.Session{}, claims.ErrSessionClosed
	}
	m.sess.State = to
	m.sess.Reason = reason
	if channelID != "" {
		m.sess.ChannelID = channelID
	}
	return m.sess, nil
}

func (m *memStore) SetParams(_ context.Context, id string, sealed []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess.ID != id {
		return claims.ErrSessionNotFound
	}
	m.params = sealed
	return nil
}

func (m *memStore) ClearParams(ctx context.Context, id string) error {
	return m.SetParams(ctx, id, nil)
}

func (m *memStore) ExpireStale(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess.ID != "" && !m.sess.State.Terminal() && time.Now().After(m.sess.ExpiresAt) {
		m.sess.State = claims.StateExpired
		m.params = nil
		return 1, nil
	}
	return 0, nil
}

// stubAdapter drives both claim modes from canned results.
type stubAdapter struct {
	mode provider.ClaimMode
	spec provider.ChannelSpec

	mu          sync.Mutex
	seenPartial map[string]any
}

func (a *stubAdapter) Type() provider.Type { return "stub" }

func (a *stubAdapter) Descriptor() provider.Descriptor {
	return provider.Descriptor{Type: "stub", DisplayName: "Stub", ClaimMode: a.mode}
}

func (a *stubAdapter) StartClaim(_ context.Context, req provider.StartClaimRequest) (provider.ClaimGrant, error) {
	if a.mode == provider.ClaimModeDirect {
		spec := a.spec
		return provider.ClaimGrant{Mode: provider.ClaimModeDirect, Spec: &spec}, nil
	}
	return provider.ClaimGrant{
		Mode:        provider.ClaimModeRedirect,
		RedirectURL: "https://consent.example.com/authorize?state=" + req.StateToken,
		Partial:     map[string]any{"requested": "value"},
	}, nil
}

func (a *stubAdapter) CompleteClaim(_ context.Context, sess provider.ClaimContext, _ provider.CallbackData) (provider.ChannelSpec, error) {
	a.mu.Lock()
	a.seenPartial = sess.Partial
	a.mu.Unlock()
	return a.spec, nil
}

// stubRegistrar stands in for the channel registry; err simulates the unique
// index rejecting a duplicate active claim.
type stubRegistrar struct {
	mu         sync.Mutex
	err        error
	registered []channels.RegisterParams
}

func (r *stubRegistrar) Register(_ context.Context, params channels.RegisterParams) (channels.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return channels.Channel{}, r.err
	}
	r.registered = append(r.registered, params)
	return channels.Channel{
		ID:       "chan-1",
		OrgID:    params.OrgID,
		Provider: params.Provider,
		Address:  params.Address,
		Name:     params.Name,
		IsActive: true,
	}, nil
}

func newTestService(t *testing.T, store *memStore, adapter provider.Adapter, registrar *stubRegistrar, ttl time.Duration) *claims.Service {
	t.Helper()
	registry := provider.NewRegistry()
	registry.MustRegister(adapter)
	return claims.NewService(
		slog.New(slog.DiscardHandler),
		store,
		registry,
		registrar,
		channels.NewVault([32]byte{1}),
		claims.Options{BaseURL: "https://api.example.com", SessionTTL: ttl},
	)
}

func TestCompleteRejectsForgedState(t *testing.T) {
	t.Parallel()
	store := &memStore{}
	adapter := &stubAdapter{
		mode: provider.ClaimModeRedirect,
		spec: provider.ChannelSpec{Address: "addr-1", Name: "Workspace"},
	}
	registrar := &stubRegistrar{}
	svc := newTestService(t, store, adapter, registrar, time.Hour)

	started, err := svc.Start(context.Background(), "org-1", "stub", nil)
	if err != nil {
		t.Fatalf("Start() = %v, want nil", err)
	}
	token := started.Session.StateToken

	_, err = svc.Complete(context.Background(), token, map[string]string{"state": "forged", "code": "x"})
	if !provider.IsCode(err, provider.CodeAuthRejected) {
		t.Fatalf("Complete() error code = %v, want auth_rejected", provider.ErrCode(err))
	}

	sess, err := svc.Get(context.Background(), token)
	if err != nil {
		t.Fatalf("Get() = %v, want nil", err)
	}
	if sess.State != claims.StateAwaitingCallback {
		t.Fatalf("session state = %s, want the claim left open for the genuine callback", sess.State)
	}

	done, err := svc.Complete(context.Background(), token, map[string]string{"state": token, "code": "x"})
	if err != nil {
		t.Fatalf("Complete() after genuine callback = %v, want nil", err)
	}
	if done.State != claims.StateCompleted || done.ChannelID != "chan-1" {
		t.Fatalf("session = %+v, want completed with the registered channel", done)
	}
}

func TestCompleteRequiresStateEcho(t *testing.T) {
	t.Parallel()
	store := &memStore{}
	adapter := &stubAdapter{mode: provider.ClaimModeRedirect, spec: provider.ChannelSpec{Address: "addr-1"}}
	svc := newTestService(t, store, adapter, &stubRegistrar{}, time.Hour)

	started, err := svc.Start(context.Background(), "org-1", "stub", nil)
	if err != nil {
		t.Fatalf("Start() = %v, want nil", err)
	}

	_, err = svc.Complete(context.Background(), started.Session.StateToken, map[string]string{"code": "x"})
	if !provider.IsCode(err, provider.CodeAuthRejected) {
		t.Fatalf("Complete() without state error code = %v, want auth_rejected", provider.ErrCode(err))
	}
}

func TestCompleteAfterTTL(t *testing.T) {
	t.Parallel()
	store := &memStore{}
	adapter := &stubAdapter{mode: provider.ClaimModeRedirect, spec: provider.ChannelSpec{Address: "addr-1"}}
	svc := newTestService(t, store, adapter, &stubRegistrar{}, time.Nanosecond)

	started, err := svc.Start(context.Background(), "org-1", "stub", nil)
	if err != nil {
		t.Fatalf("Start() = %v, want nil", err)
	}
	token := started.Session.StateToken

	sess, err := svc.Complete(context.Background(), token, map[string]string{"state": token, "code": "x"})
	if !errors.Is(err, claims.ErrSessionExpired) {
		t.Fatalf("Complete() = %v, want ErrSessionExpired", err)
	}
	if sess.State != claims.StateExpired {
		t.Fatalf("session state = %s, want expired", sess.State)
	}
	if len(store.params) != 0 {
		t.Fatalf("sealed params still present after expiry, want wiped")
	}

	_, err = svc.Complete(context.Background(), token, map[string]string{"state": token, "code": "x"})
	if !errors.Is(err, claims.ErrSessionClosed) {
		t.Fatalf("Complete() on expired session = %v, want ErrSessionClosed", err)
	}
}

func TestCompleteDuplicateClaimFailsSession(t *testing.T) {
	t.Parallel()
	store := &memStore{}
	adapter := &stubAdapter{mode: provider.ClaimModeRedirect, spec: provider.ChannelSpec{Address: "addr-1"}}
	registrar := &stubRegistrar{err: channels.ErrAlreadyClaimed}
	svc := newTestService(t, store, adapter, registrar, time.Hour)

	started, err := svc.Start(context.Background(), "org-1", "stub", nil)
	if err != nil {
		t.Fatalf("Start() = %v, want nil", err)
	}
	token := started.Session.StateToken

	_, err = svc.Complete(context.Background(), token, map[string]string{"state": token, "code": "x"})
	if !errors.Is(err, channels.ErrAlreadyClaimed) {
		t.Fatalf("Complete() = %v, want ErrAlreadyClaimed", err)
	}

	sess, err := svc.Get(context.Background(), token)
	if err != nil {
		t.Fatalf("Get() = %v, want nil", err)
	}
	if sess.State != claims.StateFailed || sess.Reason == "" {
		t.Fatalf("session = %+v, want failed with a reason", sess)
	}
	if len(registrar.registered) != 0 {
		t.Fatalf("registered = %v, want the existing channel untouched", registrar.registered)
	}
}

func TestCompleteCarriesSealedPartial(t *testing.T) {
	t.Parallel()
	store := &memStore{}
	adapter := &stubAdapter{mode: provider.ClaimModeRedirect, spec: provider.ChannelSpec{Address: "addr-1", Name: "Workspace"}}
	registrar := &stubRegistrar{}
	svc := newTestService(t, store, adapter, registrar, time.Hour)

	started, err := svc.Start(context.Background(), "org-1", "stub", nil)
	if err != nil {
		t.Fatalf("Start() = %v, want nil", err)
	}
	token := started.Session.StateToken

	sess, err := svc.Complete(context.Background(), token, map[string]string{"state": token, "code": "x"})
	if err != nil {
		t.Fatalf("Complete() = %v, want nil", err)
	}
	if sess.State != claims.StateCompleted {
		t.Fatalf("session state = %s, want completed", sess.State)
	}
	if adapter.seenPartial["requested"] != "value" {
		t.Fatalf("partial = %v, want the sealed claim params opened for the adapter", adapter.seenPartial)
	}
	if len(registrar.registered) != 1 || registrar.registered[0].Address != "addr-1" {
		t.Fatalf("registered = %v, want one channel at addr-1", registrar.registered)
	}
	if len(store.params) != 0 {
		t.Fatalf("sealed params still present after completion, want wiped")
	}
}

func TestStartDirectClaimCompletes(t *testing.T) {
	t.Parallel()
	store := &memStore{}
	adapter := &stubAdapter{
		mode: provider.ClaimModeDirect,
		spec: provider.ChannelSpec{Address: "acct-1", Name: "Account", Credentials: map[string]any{"token": "t"}},
	}
	registrar := &stubRegistrar{}
	svc := newTestService(t, store, adapter, registrar, time.Hour)

	result, err := svc.Start(context.Background(), "org-1", "stub", nil)
	if err != nil {
		t.Fatalf("Start() = %v, want nil", err)
	}
	if result.Session.State != claims.StateCompleted || result.ChannelID == "" {
		t.Fatalf("result = %+v, want a completed session with its channel", result)
	}
	if len(registrar.registered) != 1 || registrar.registered[0].Address != "acct-1" {
		t.Fatalf("registered = %v, want one channel at acct-1", registrar.registered)
	}
}
