package claims

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chanmux/chanmux/internal/channels"
	"github.com/chanmux/chanmux/internal/provider"
)

// Options tunes the claim orchestrator.
type Options struct {
	// BaseURL is the externally reachable server root used to build
	// provider callback URLs.
	BaseURL string
	// SessionTTL bounds how long an open claim may wait for its callback.
	SessionTTL time.Duration
	// ReaperInterval is how often abandoned sessions are expired.
	ReaperInterval time.Duration
}

// SessionStore is the session persistence the orchestrator drives. *Store
// implements it over Postgres; tests substitute an in-memory double.
type SessionStore interface {
	Insert(ctx context.Context, sess Session, sealedParams []byte) (Session, error)
	GetByToken(ctx context.Context, stateToken string) (Session, []byte, error)
	Transition(ctx context.Context, id string, from, to State, reason, channelID string) (Session, error)
	SetParams(ctx context.Context, id string, sealed []byte) error
	ClearParams(ctx context.Context, id string) error
	ExpireStale(ctx context.Context) (int64, error)
}

// ChannelRegistrar is the slice of the channel registry a finished claim
// needs.
type ChannelRegistrar interface {
	Register(ctx context.Context, params channels.RegisterParams) (channels.Channel, error)
}

// Service runs the claim handshake across its states: a redirect claim opens,
// waits for the provider callback, and completes into a registered channel;
// a direct claim validates credentials and completes in one step.
type Service struct {
	log      *slog.Logger
	store    SessionStore
	registry *provider.Registry
	channels ChannelRegistrar
	vault    *channels.Vault
	opts     Options
}

// NewService creates the claim orchestrator.
func NewService(log *slog.Logger, store SessionStore, registry *provider.Registry, channelSvc ChannelRegistrar, vault *channels.Vault, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.ReaperInterval <= 0 {
		opts.ReaperInterval = time.Minute
	}
	return &Service{
		log:      log.With(slog.String("service", "claims")),
		store:    store,
		registry: registry,
		channels: channelSvc,
		vault:    vault,
		opts:     opts,
	}
}

// CallbackURL returns the provider callback endpoint for a state token.
func (s *Service) CallbackURL(stateToken string) string {
	return fmt.Sprintf("%s/claims/%s/callback", s.opts.BaseURL, stateToken)
}

// Start opens a claim for the given org and provider. Redirect providers get
// a session awaiting its callback plus the consent URL; direct providers are
// validated and registered immediately.
func (s *Service) Start(ctx context.Context, orgID, rawProvider string, params map[string]any) (StartResult, error) {
	providerType, err := s.registry.ParseType(rawProvider)
	if err != nil {
		return StartResult{}, provider.NewError(provider.Type(rawProvider), "start_claim", provider.CodeInvalidConfig, err.Error())
	}
	starter, ok := s.registry.GetClaimStarter(providerType)
	if !ok {
		return StartResult{}, provider.NewError(providerType, "start_claim", provider.CodeInvalidConfig, "provider does not support claims")
	}

	stateToken, err := newStateToken()
	if err != nil {
		return StartResult{}, fmt.Errorf("generate state token: %w", err)
	}

	sess, err := s.store.Insert(ctx, Session{
		OrgID:      orgID,
		Provider:   providerType,
		StateToken: stateToken,
		State:      StateStarted,
		ExpiresAt:  time.Now().Add(s.opts.SessionTTL),
	}, []byte{})
	if err != nil {
		return StartResult{}, err
	}

	grant, err := starter.StartClaim(ctx, provider.StartClaimRequest{
		OrgID:       orgID,
		Params:      params,
		StateToken:  stateToken,
		CallbackURL: s.CallbackURL(stateToken),
	})
	if err != nil {
		return StartResult{}, s.fail(ctx, sess, StateStarted, err)
	}

	if grant.Mode == provider.ClaimModeDirect {
		return s.completeDirect(ctx, sess, grant)
	}

	sealed, err := s.vault.Seal(grant.Partial)
	if err != nil {
		return StartResult{}, s.fail(ctx, sess, StateStarted, fmt.Errorf("seal claim params: %w", err))
	}
	if err := s.store.SetParams(ctx, sess.ID, sealed); err != nil {
		return StartResult{}, s.fail(ctx, sess, StateStarted, err)
	}
	sess, err = s.store.Transition(ctx, sess.ID, StateStarted, StateAwaitingCallback, "", "")
	if err != nil {
		return StartResult{}, err
	}

	s.log.Info("claim opened",
		slog.String("session_id", sess.ID),
		slog.String("org_id", orgID),
		slog.String("provider", providerType.String()),
	)
	return StartResult{Session: sess, RedirectURL: grant.RedirectURL}, nil
}

func (s *Service) completeDirect(ctx context.Context, sess Session, grant provider.ClaimGrant) (StartResult, error) {
	if grant.Spec == nil {
		return StartResult{}, s.fail(ctx, sess, StateStarted, errors.New("direct claim produced no channel spec"))
	}
	ch, err := s.register(ctx, sess, *grant.Spec)
	if err != nil {
		return StartResult{}, s.fail(ctx, sess, StateStarted, err)
	}
	sess, err = s.store.Transition(ctx, sess.ID, StateStarted, StateCompleted, "", ch.ID)
	if err != nil {
		return StartResult{}, err
	}
	s.log.Info("claim completed",
		slog.String("session_id", sess.ID),
		slog.String("channel_id", ch.ID),
		slog.String("provider", sess.Provider.String()),
	)
	return StartResult{Session: sess, ChannelID: ch.ID}, nil
}

// Get returns the session for a state token, for status polling.
func (s *Service) Get(ctx context.Context, stateToken string) (Session, error) {
	sess, _, err := s.store.GetByToken(ctx, stateToken)
	return sess, err
}

// Complete finishes a redirect claim from the provider callback. The
// callback must echo the session's state token; a missing or mismatched
// value is treated as a forged callback and leaves the session open for the
// genuine one.
func (s *Service) Complete(ctx context.Context, stateToken string, values map[string]string) (Session, error) {
	sess, sealedParams, err := s.store.GetByToken(ctx, stateToken)
	if err != nil {
		return Session{}, err
	}
	if sess.State.Terminal() {
		return sess, ErrSessionClosed
	}
	if time.Now().After(sess.ExpiresAt) {
		expired, terr := s.store.Transition(ctx, sess.ID, sess.State, StateExpired, "claim window elapsed", "")
		if terr == nil {
			sess = expired
			_ = s.store.ClearParams(ctx, sess.ID)
		}
		return sess, ErrSessionExpired
	}
	if sess.State != StateAwaitingCallback {
		return sess, ErrSessionClosed
	}

	cb := provider.CallbackData{Values: values}
	if subtle.ConstantTimeCompare([]byte(cb.Value("state")), []byte(stateToken)) != 1 {
		return sess, provider.NewError(sess.Provider, "complete_claim", provider.CodeAuthRejected, "callback state does not match the claim session")
	}

	completer, ok := s.registry.GetClaimCompleter(sess.Provider)
	if !ok {
		return sess, s.fail(ctx, sess, StateAwaitingCallback, errors.New("provider does not support callback completion"))
	}

	partial, err := s.vault.Open(sealedParams)
	if err != nil {
		return sess, s.fail(ctx, sess, StateAwaitingCallback, fmt.Errorf("open claim params: %w", err))
	}

	spec, err := completer.CompleteClaim(ctx, provider.ClaimContext{
		OrgID:       sess.OrgID,
		Provider:    sess.Provider,
		Partial:     partial,
		CallbackURL: s.CallbackURL(stateToken),
	}, cb)
	if err != nil {
		return sess, s.fail(ctx, sess, StateAwaitingCallback, err)
	}

	ch, err := s.register(ctx, sess, spec)
	if err != nil {
		return sess, s.fail(ctx, sess, StateAwaitingCallback, err)
	}

	sess, err = s.store.Transition(ctx, sess.ID, StateAwaitingCallback, StateCompleted, "", ch.ID)
	if err != nil {
		return sess, err
	}
	_ = s.store.ClearParams(ctx, sess.ID)

	s.log.Info("claim completed",
		slog.String("session_id", sess.ID),
		slog.String("channel_id", ch.ID),
		slog.String("provider", sess.Provider.String()),
	)
	return sess, nil
}

func (s *Service) register(ctx context.Context, sess Session, spec provider.ChannelSpec) (channels.Channel, error) {
	return s.channels.Register(ctx, channels.RegisterParams{
		OrgID:        sess.OrgID,
		Provider:     sess.Provider,
		Address:      spec.Address,
		Name:         spec.Name,
		Credentials:  spec.Credentials,
		Capabilities: spec.Capabilities,
	})
}

// fail moves the session to failed with the error as its reason and returns
// the original error for the caller.
func (s *Service) fail(ctx context.Context, sess Session, from State, cause error) error {
	if _, terr := s.store.Transition(ctx, sess.ID, from, StateFailed, cause.Error(), ""); terr != nil {
		s.log.Error("claim failure not recorded",
			slog.String("session_id", sess.ID),
			slog.String("error", terr.Error()),
		)
	} else {
		_ = s.store.ClearParams(ctx, sess.ID)
	}
	s.log.Warn("claim failed",
		slog.String("session_id", sess.ID),
		slog.String("provider", sess.Provider.String()),
		slog.String("reason", cause.Error()),
	)
	return cause
}

// RunReaper expires abandoned claim sessions until ctx is cancelled.
func (s *Service) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(s.opts.ReaperInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := s.store.ExpireStale(ctx)
			if err != nil {
				s.log.Error("claim reaper sweep failed", slog.String("error", err.Error()))
				continue
			}
			if expired > 0 {
				s.log.Info("claim sessions expired", slog.Int64("count", expired))
			}
		}
	}
}

func newStateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
