// Package claims orchestrates the claim/connect handshake: opening a claim
// session, completing it from the provider callback (or directly for
// credential providers), and expiring abandoned sessions.
package claims

import (
	"errors"
	"time"

	"github.com/chanmux/chanmux/internal/provider"
)

// State is a claim session's lifecycle state.
type State string

const (
	StateStarted          State = "started"
	StateAwaitingCallback State = "awaiting_callback"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
	StateExpired          State = "expired"
)

// Terminal reports whether a session can no longer change state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateExpired
}

var (
	// ErrSessionNotFound is returned when no session matches the state token.
	ErrSessionNotFound = errors.New("claim session not found")
	// ErrSessionClosed is returned when the session is already in a
	// terminal state.
	ErrSessionClosed = errors.New("claim session already closed")
	// ErrSessionExpired is returned when the session's TTL has elapsed.
	ErrSessionExpired = errors.New("claim session expired")
)

// Session is one claim handshake in flight.
type Session struct {
	ID         string        `json:"id"`
	OrgID      string        `json:"org_id"`
	Provider   provider.Type `json:"provider"`
	StateToken string        `json:"state_token"`
	State      State         `json:"state"`
	Reason     string        `json:"reason,omitempty"`
	ChannelID  string        `json:"channel_id,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	ExpiresAt  time.Time     `json:"expires_at"`
}

// StartResult is what the orchestrator hands back when a claim opens:
// redirect-mode claims carry the consent URL, direct-mode claims are already
// finished and carry the channel id.
type StartResult struct {
	Session     Session `json:"session"`
	RedirectURL string  `json:"redirect_url,omitempty"`
	ChannelID   string  `json:"channel_id,omitempty"`
}
