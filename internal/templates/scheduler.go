package templates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/robfig/cron/v3"

	"github.com/chanmux/chanmux/internal/channels"
	"github.com/chanmux/chanmux/internal/provider"
)

const (
	retryBaseDelay  = time.Minute
	retryMaxDelay   = 6 * time.Hour
	eventRetention  = 30 * 24 * time.Hour
	defaultWorkers  = 4
	defaultCronSpec = "0 * * * *"
)

// ErrSyncUnsupported is returned when a channel's provider publishes no
// template API.
var ErrSyncUnsupported = errors.New("provider does not support templates")

// Options tunes the sync scheduler.
type Options struct {
	// CronSpec is the refresh schedule, hourly by default.
	CronSpec string
	// Workers bounds how many channels sync concurrently per cycle.
	Workers int
}

// SyncStore is the template persistence the scheduler drives. *Store
// implements it over Postgres; tests substitute an in-memory double.
type SyncStore interface {
	ReplaceForChannel(ctx context.Context, channelID string, items []provider.Template) error
	SyncStates(ctx context.Context) (map[string]SyncState, error)
	SyncState(ctx context.Context, channelID string) (SyncState, bool, error)
	RecordSuccess(ctx context.Context, channelID string, at time.Time) error
	RecordFailure(ctx context.Context, channelID string, nextAttempt time.Time) (int, error)
	InsertEvent(ctx context.Context, channelID, outcome, detail string, duration time.Duration) error
	TrimEvents(ctx context.Context, retention time.Duration) (int64, error)
}

// ChannelDirectory is the slice of the channel service the scheduler needs.
type ChannelDirectory interface {
	Get(ctx context.Context, id string) (channels.Channel, error)
	ListSyncable(ctx context.Context) ([]channels.Channel, error)
	Config(ctx context.Context, ch channels.Channel) (provider.ChannelConfig, error)
	MarkNeedsReauth(ctx context.Context, id string) error
}

// Scheduler runs the periodic template refresh. Each cycle fans the eligible
// channels out over a bounded worker pool; one channel's failure never stops
// the rest, it only pushes that channel's next attempt out exponentially.
type Scheduler struct {
	log      *slog.Logger
	cron     *cron.Cron
	store    SyncStore
	channels ChannelDirectory
	registry *provider.Registry
	opts     Options
}

// NewScheduler creates the template sync scheduler.
func NewScheduler(log *slog.Logger, store SyncStore, channelSvc ChannelDirectory, registry *provider.Registry, opts Options) *Scheduler {
	if opts.CronSpec == "" {
		opts.CronSpec = defaultCronSpec
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	return &Scheduler{
		log:      log.With(slog.String("service", "template-sync")),
		cron:     cron.New(),
		store:    store,
		channels: channelSvc,
		registry: registry,
		opts:     opts,
	}
}

// Start registers the cron entry and begins the schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.opts.CronSpec, func() {
		s.RunCycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("register sync schedule %q: %w", s.opts.CronSpec, err)
	}
	s.cron.Start()
	s.log.Info("template sync scheduled", slog.String("cron", s.opts.CronSpec), slog.Int("workers", s.opts.Workers))
	return nil
}

// Stop halts the schedule and waits for any running cycle entry to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunCycle syncs every due channel once.
func (s *Scheduler) RunCycle(ctx context.Context) {
	chs, err := s.channels.ListSyncable(ctx)
	if err != nil {
		s.log.Error("sync cycle aborted", slog.String("error", err.Error()))
		return
	}
	states, err := s.store.SyncStates(ctx)
	if err != nil {
		s.log.Error("sync cycle aborted", slog.String("error", err.Error()))
		return
	}

	now := time.Now()
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.opts.Workers)
	dispatched := 0
	for _, ch := range chs {
		if _, ok := s.registry.GetTemplateSyncer(ch.Provider); !ok {
			continue
		}
		if st, ok := states[ch.ID]; ok && !st.NextAttemptAt.IsZero() && st.NextAttemptAt.After(now) {
			continue
		}
		dispatched++
		wg.Add(1)
		sem <- struct{}{}
		go func(ch channels.Channel) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.syncOne(ctx, ch); err != nil {
				s.log.Warn("channel sync failed",
					slog.String("channel_id", ch.ID),
					slog.String("provider", ch.Provider.String()),
					slog.String("error", err.Error()),
				)
			}
		}(ch)
	}
	wg.Wait()

	if trimmed, err := s.store.TrimEvents(ctx, eventRetention); err != nil {
		s.log.Error("event trim failed", slog.String("error", err.Error()))
	} else if trimmed > 0 {
		s.log.Debug("sync events trimmed", slog.Int64("count", trimmed))
	}
	s.log.Info("sync cycle finished", slog.Int("channels", dispatched))
}

// SyncChannel refreshes one channel immediately, outside the schedule.
func (s *Scheduler) SyncChannel(ctx context.Context, channelID string) error {
	ch, err := s.channels.Get(ctx, channelID)
	if err != nil {
		return err
	}
	if !ch.IsActive {
		return channels.ErrNotFound
	}
	if _, ok := s.registry.GetTemplateSyncer(ch.Provider); !ok {
		return ErrSyncUnsupported
	}
	return s.syncOne(ctx, ch)
}

func (s *Scheduler) syncOne(ctx context.Context, ch channels.Channel) error {
	started := time.Now()

	syncer, ok := s.registry.GetTemplateSyncer(ch.Provider)
	if !ok {
		return ErrSyncUnsupported
	}
	cfg, err := s.channels.Config(ctx, ch)
	if err != nil {
		return s.recordFailure(ctx, ch, err, started)
	}
	fetched, err := syncer.SyncTemplates(ctx, cfg)
	if err != nil {
		return s.recordFailure(ctx, ch, err, started)
	}
	if err := s.store.ReplaceForChannel(ctx, ch.ID, fetched); err != nil {
		return s.recordFailure(ctx, ch, err, started)
	}
	if err := s.store.RecordSuccess(ctx, ch.ID, time.Now()); err != nil {
		return err
	}
	if err := s.store.InsertEvent(ctx, ch.ID, OutcomeSynced, fmt.Sprintf("%d templates", len(fetched)), time.Since(started)); err != nil {
		s.log.Warn("sync event not recorded", slog.String("channel_id", ch.ID), slog.String("error", err.Error()))
	}
	s.log.Debug("channel synced", slog.String("channel_id", ch.ID), slog.Int("templates", len(fetched)))
	return nil
}

// recordFailure books the failed attempt: the failure streak grows, the next
// attempt backs off exponentially (or honors the provider's Retry-After),
// and credential errors flag the channel for re-authorization.
func (s *Scheduler) recordFailure(ctx context.Context, ch channels.Channel, cause error, started time.Time) error {
	st, _, stateErr := s.store.SyncState(ctx, ch.ID)
	if stateErr != nil {
		s.log.Error("sync state unavailable", slog.String("channel_id", ch.ID), slog.String("error", stateErr.Error()))
	}

	delay := RetryDelay(st.Failures + 1)
	var provErr *provider.Error
	if errors.As(cause, &provErr) && provErr.RetryAfter > 0 {
		delay = provErr.RetryAfter
	}

	if _, err := s.store.RecordFailure(ctx, ch.ID, time.Now().Add(delay)); err != nil {
		s.log.Error("sync failure not recorded", slog.String("channel_id", ch.ID), slog.String("error", err.Error()))
	}
	if err := s.store.InsertEvent(ctx, ch.ID, OutcomeFailed, cause.Error(), time.Since(started)); err != nil {
		s.log.Warn("sync event not recorded", slog.String("channel_id", ch.ID), slog.String("error", err.Error()))
	}

	if provider.IsCode(cause, provider.CodeAuthExpired) || provider.IsCode(cause, provider.CodeAuthRejected) {
		if err := s.channels.MarkNeedsReauth(ctx, ch.ID); err != nil {
			s.log.Error("re-auth flag not set", slog.String("channel_id", ch.ID), slog.String("error", err.Error()))
		}
	}
	return cause
}

// RetryDelay returns the backoff delay for the nth consecutive failure,
// starting at one minute and doubling up to a six hour ceiling.
func RetryDelay(failures int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryBaseDelay
	b.Multiplier = 2
	b.MaxInterval = retryMaxDelay
	b.RandomizationFactor = 0

	delay := b.NextBackOff()
	for i := 1; i < failures; i++ {
		delay = b.NextBackOff()
	}
	return delay
}
