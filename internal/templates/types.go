// Package templates keeps each channel's provider-approved message templates
// mirrored locally and runs the hourly background sync that refreshes them.
package templates

import (
	"time"

	"github.com/chanmux/chanmux/internal/provider"
)

// Template is one locally mirrored message template.
type Template struct {
	ID         string                  `json:"id"`
	ChannelID  string                  `json:"channel_id"`
	ExternalID string                  `json:"external_id"`
	Name       string                  `json:"name"`
	Locale     string                  `json:"locale"`
	Status     provider.TemplateStatus `json:"status"`
	Category   string                  `json:"category"`
	Body       string                  `json:"body"`
	CreatedAt  time.Time               `json:"created_at"`
}

// SyncState is a channel's sync bookkeeping: when it last succeeded, how
// many times it has failed in a row, and when the next attempt is due.
type SyncState struct {
	ChannelID     string
	LastSyncedAt  time.Time
	Failures      int
	NextAttemptAt time.Time
}

// Sync outcomes recorded per attempt.
const (
	OutcomeSynced = "synced"
	OutcomeFailed = "failed"
)
