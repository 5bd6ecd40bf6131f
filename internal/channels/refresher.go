package channels

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chanmux/chanmux/internal/provider"
)

const refresherTick = 5 * time.Minute

// Refresher keeps short-lived provider credentials rotated for channels
// whose adapter implements provider.CredentialRefresher.
type Refresher struct {
	log      *slog.Logger
	channels *Service
	registry *provider.Registry

	mu          sync.Mutex
	lastRefresh map[string]time.Time
}

// NewRefresher creates the credential refresher.
func NewRefresher(log *slog.Logger, channelSvc *Service, registry *provider.Registry) *Refresher {
	return &Refresher{
		log:         log.With(slog.String("service", "credential-refresh")),
		channels:    channelSvc,
		registry:    registry,
		lastRefresh: make(map[string]time.Time),
	}
}

// Run rotates due credentials until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(refresherTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep refreshes every channel whose rotation interval has elapsed.
func (r *Refresher) Sweep(ctx context.Context) {
	chs, err := r.channels.ListSyncable(ctx)
	if err != nil {
		r.log.Error("refresh sweep aborted", slog.String("error", err.Error()))
		return
	}
	now := time.Now()
	for _, ch := range chs {
		refresher, ok := r.registry.GetCredentialRefresher(ch.Provider)
		if !ok {
			continue
		}
		if !r.due(ch.ID, refresher.RefreshInterval(), now) {
			continue
		}
		r.refreshOne(ctx, ch, refresher)
	}
}

func (r *Refresher) due(channelID string, interval time.Duration, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	last, ok := r.lastRefresh[channelID]
	if ok && now.Sub(last) < interval {
		return false
	}
	r.lastRefresh[channelID] = now
	return true
}

func (r *Refresher) refreshOne(ctx context.Context, ch Channel, refresher provider.CredentialRefresher) {
	cfg, err := r.channels.Config(ctx, ch)
	if err != nil {
		r.log.Error("credentials unavailable", slog.String("channel_id", ch.ID), slog.String("error", err.Error()))
		return
	}
	rotated, err := refresher.RefreshCredentials(ctx, cfg)
	if err != nil {
		r.log.Warn("credential rotation failed",
			slog.String("channel_id", ch.ID),
			slog.String("provider", ch.Provider.String()),
			slog.String("error", err.Error()),
		)
		if provider.IsCode(err, provider.CodeAuthExpired) || provider.IsCode(err, provider.CodeAuthRejected) {
			if err := r.channels.MarkNeedsReauth(ctx, ch.ID); err != nil {
				r.log.Error("re-auth flag not set", slog.String("channel_id", ch.ID), slog.String("error", err.Error()))
			}
		}
		return
	}
	if err := r.channels.UpdateCredentials(ctx, ch.ID, rotated); err != nil {
		r.log.Error("rotated credentials not stored", slog.String("channel_id", ch.ID), slog.String("error", err.Error()))
		return
	}
	r.log.Debug("credentials rotated", slog.String("channel_id", ch.ID), slog.String("provider", ch.Provider.String()))
}
