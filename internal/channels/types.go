// Package channels owns claimed-channel records: registration, lookup,
// deactivation, and the sealed credential vault.
package channels

import (
	"errors"
	"time"

	"github.com/chanmux/chanmux/internal/provider"
)

var (
	// ErrNotFound is returned when no active channel matches the lookup.
	ErrNotFound = errors.New("channel not found")
	// ErrAlreadyClaimed is returned when the org already has an active
	// channel on the same provider address.
	ErrAlreadyClaimed = errors.New("address already claimed")
)

// Channel is one claimed messaging channel.
type Channel struct {
	ID           string                `json:"id"`
	OrgID        string                `json:"org_id"`
	Provider     provider.Type         `json:"provider"`
	Address      string                `json:"address"`
	Name         string                `json:"name"`
	Capabilities provider.Capabilities `json:"capabilities"`
	NeedsReauth  bool                  `json:"needs_reauth"`
	IsActive     bool                  `json:"is_active"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// RegisterParams carries everything needed to persist a freshly claimed channel.
type RegisterParams struct {
	OrgID        string
	Provider     provider.Type
	Address      string
	Name         string
	Credentials  map[string]any
	Capabilities provider.Capabilities
}
