package templates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chanmux/chanmux/internal/db"
	"github.com/chanmux/chanmux/internal/provider"
)

// Store persists mirrored templates, per-channel sync state, and the sync
// event log.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates the template store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ListByChannel returns a channel's mirrored templates ordered by name and locale.
func (s *Store) ListByChannel(ctx context.Context, channelID string) ([]Template, error) {
	pgID, err := db.ParseUUID(channelID)
	if err != nil {
		return nil, fmt.Errorf("invalid channel id: %w", err)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, channel_id, external_id, name, locale, status, category, body, created_at
		FROM templates
		WHERE channel_id = $1
		ORDER BY name, locale`,
		pgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	items := make([]Template, 0)
	for rows.Next() {
		var (
			t         Template
			id        pgtype.UUID
			channel   pgtype.UUID
			status    string
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &channel, &t.ExternalID, &t.Name, &t.Locale, &status, &t.Category, &t.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		t.ID = db.UUIDString(id)
		t.ChannelID = db.UUIDString(channel)
		t.Status = provider.TemplateStatus(status)
		t.CreatedAt = db.TimeFromPg(createdAt)
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return items, nil
}

// ReplaceForChannel swaps a channel's mirrored templates for the freshly
// fetched set in one transaction.
func (s *Store) ReplaceForChannel(ctx context.Context, channelID string, items []provider.Template) error {
	pgID, err := db.ParseUUID(channelID)
	if err != nil {
		return fmt.Errorf("invalid channel id: %w", err)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM templates WHERE channel_id = $1`, pgID); err != nil {
		return fmt.Errorf("clear templates: %w", err)
	}
	for _, item := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO templates (channel_id, external_id, name, locale, status, category, body)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			pgID, item.ExternalID, item.Name, item.Locale, string(item.Status), item.Category, item.Body,
		)
		if err != nil {
			return fmt.Errorf("insert template %s: %w", item.Name, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SyncStates returns the sync bookkeeping for all channels that have any.
func (s *Store) SyncStates(ctx context.Context) (map[string]SyncState, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT channel_id, last_synced_at, failures, next_attempt_at
		FROM template_sync_state`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sync states: %w", err)
	}
	defer rows.Close()

	states := make(map[string]SyncState)
	for rows.Next() {
		var (
			st          SyncState
			channel     pgtype.UUID
			lastSynced  pgtype.Timestamptz
			nextAttempt pgtype.Timestamptz
		)
		if err := rows.Scan(&channel, &lastSynced, &st.Failures, &nextAttempt); err != nil {
			return nil, fmt.Errorf("scan sync state: %w", err)
		}
		st.ChannelID = db.UUIDString(channel)
		st.LastSyncedAt = db.TimeFromPg(lastSynced)
		st.NextAttemptAt = db.TimeFromPg(nextAttempt)
		states[st.ChannelID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync states: %w", err)
	}
	return states, nil
}

// SyncState returns one channel's sync bookkeeping.
func (s *Store) SyncState(ctx context.Context, channelID string) (SyncState, bool, error) {
	pgID, err := db.ParseUUID(channelID)
	if err != nil {
		return SyncState{}, false, fmt.Errorf("invalid channel id: %w", err)
	}
	var (
		st          SyncState
		channel     pgtype.UUID
		lastSynced  pgtype.Timestamptz
		nextAttempt pgtype.Timestamptz
	)
	err = s.pool.QueryRow(ctx, `
		SELECT channel_id, last_synced_at, failures, next_attempt_at
		FROM template_sync_state WHERE channel_id = $1`,
		pgID,
	).Scan(&channel, &lastSynced, &st.Failures, &nextAttempt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SyncState{}, false, nil
		}
		return SyncState{}, false, fmt.Errorf("get sync state: %w", err)
	}
	st.ChannelID = db.UUIDString(channel)
	st.LastSyncedAt = db.TimeFromPg(lastSynced)
	st.NextAttemptAt = db.TimeFromPg(nextAttempt)
	return st, true, nil
}

// RecordSuccess resets a channel's failure streak and stamps the sync time.
func (s *Store) RecordSuccess(ctx context.Context, channelID string, at time.Time) error {
	pgID, err := db.ParseUUID(channelID)
	if err != nil {
		return fmt.Errorf("invalid channel id: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO template_sync_state (channel_id, last_synced_at, failures, next_attempt_at, updated_at)
		VALUES ($1, $2, 0, NULL, NOW())
		ON CONFLICT (channel_id) DO UPDATE
		SET last_synced_at = EXCLUDED.last_synced_at, failures = 0, next_attempt_at = NULL, updated_at = NOW()`,
		pgID, at,
	)
	if err != nil {
		return fmt.Errorf("record sync success: %w", err)
	}
	return nil
}

// RecordFailure bumps the failure streak and schedules the next attempt.
func (s *Store) RecordFailure(ctx context.Context, channelID string, nextAttempt time.Time) (int, error) {
	pgID, err := db.ParseUUID(channelID)
	if err != nil {
		return 0, fmt.Errorf("invalid channel id: %w", err)
	}
	var failures int
	err = s.pool.QueryRow(ctx, `
		INSERT INTO template_sync_state (channel_id, failures, next_attempt_at, updated_at)
		VALUES ($1, 1, $2, NOW())
		ON CONFLICT (channel_id) DO UPDATE
		SET failures = template_sync_state.failures + 1, next_attempt_at = $2, updated_at = NOW()
		RETURNING failures`,
		pgID, nextAttempt,
	).Scan(&failures)
	if err != nil {
		return 0, fmt.Errorf("record sync failure: %w", err)
	}
	return failures, nil
}

// InsertEvent appends one sync attempt to the event log.
func (s *Store) InsertEvent(ctx context.Context, channelID, outcome, detail string, duration time.Duration) error {
	pgID, err := db.ParseUUID(channelID)
	if err != nil {
		return fmt.Errorf("invalid channel id: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO sync_events (channel_id, outcome, detail, duration_ms)
		VALUES ($1, $2, $3, $4)`,
		pgID, outcome, detail, duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert sync event: %w", err)
	}
	return nil
}

// TrimEvents drops sync events older than the retention window.
func (s *Store) TrimEvents(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sync_events WHERE created_at < NOW() - $1::interval`,
		fmt.Sprintf("%d seconds", int(retention.Seconds())),
	)
	if err != nil {
		return 0, fmt.Errorf("trim sync events: %w", err)
	}
	return tag.RowsAffected(), nil
}
