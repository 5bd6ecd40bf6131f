package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chanmux/chanmux/internal/db"
	"github.com/chanmux/chanmux/internal/provider"
)

// Store persists channel rows.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates the channel store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const channelColumns = `id, org_id, provider, address, name, capabilities, needs_reauth, is_active, created_at, updated_at`

func scanChannel(row pgx.Row) (Channel, error) {
	var (
		ch           Channel
		id           pgtype.UUID
		providerType string
		capabilities []byte
		createdAt    pgtype.Timestamptz
		updatedAt    pgtype.Timestamptz
	)
	err := row.Scan(&id, &ch.OrgID, &providerType, &ch.Address, &ch.Name, &capabilities, &ch.NeedsReauth, &ch.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return Channel{}, err
	}
	ch.ID = db.UUIDString(id)
	ch.Provider = provider.Type(providerType)
	ch.CreatedAt = db.TimeFromPg(createdAt)
	ch.UpdatedAt = db.TimeFromPg(updatedAt)
	if len(capabilities) > 0 {
		if err := json.Unmarshal(capabilities, &ch.Capabilities); err != nil {
			return Channel{}, fmt.Errorf("decode capabilities: %w", err)
		}
	}
	return ch, nil
}

// Insert persists a new channel row. Unique violations on the active
// provider/address index surface as ErrAlreadyClaimed.
func (s *Store) Insert(ctx context.Context, params RegisterParams, sealed []byte) (Channel, error) {
	capabilities, err := json.Marshal(params.Capabilities)
	if err != nil {
		return Channel{}, fmt.Errorf("encode capabilities: %w", err)
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO channels (org_id, provider, address, name, credentials, capabilities)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+channelColumns,
		params.OrgID, params.Provider.String(), params.Address, params.Name, sealed, capabilities,
	)
	ch, err := scanChannel(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Channel{}, ErrAlreadyClaimed
		}
		return Channel{}, fmt.Errorf("insert channel: %w", err)
	}
	return ch, nil
}

// GetByID returns one channel by id, active or not.
func (s *Store) GetByID(ctx context.Context, id string) (Channel, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return Channel{}, ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = $1`, pgID)
	ch, err := scanChannel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Channel{}, ErrNotFound
		}
		return Channel{}, fmt.Errorf("get channel: %w", err)
	}
	return ch, nil
}

// ListByOrg returns an org's active channels, newest first.
func (s *Store) ListByOrg(ctx context.Context, orgID string) ([]Channel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+channelColumns+`
		FROM channels
		WHERE org_id = $1 AND is_active
		ORDER BY created_at DESC`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()
	return collectChannels(rows)
}

// ListSyncable returns active channels that have not been flagged for
// re-authorization, for the template sync cycle.
func (s *Store) ListSyncable(ctx context.Context) ([]Channel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+channelColumns+`
		FROM channels
		WHERE is_active AND NOT needs_reauth
		ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list syncable channels: %w", err)
	}
	defer rows.Close()
	return collectChannels(rows)
}

func collectChannels(rows pgx.Rows) ([]Channel, error) {
	items := make([]Channel, 0)
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		items = append(items, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return items, nil
}

// Credentials returns the sealed credential blob for an active channel.
func (s *Store) Credentials(ctx context.Context, id string) ([]byte, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var sealed []byte
	err = s.pool.QueryRow(ctx, `SELECT credentials FROM channels WHERE id = $1 AND is_active`, pgID).Scan(&sealed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get credentials: %w", err)
	}
	return sealed, nil
}

// UpdateCredentials replaces the sealed credential blob and clears the
// re-auth flag.
func (s *Store) UpdateCredentials(ctx context.Context, id string, sealed []byte) error {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE channels
		SET credentials = $2, needs_reauth = FALSE, updated_at = NOW()
		WHERE id = $1 AND is_active`,
		pgID, sealed,
	)
	if err != nil {
		return fmt.Errorf("update credentials: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetNeedsReauth flags a channel whose credentials stopped working.
func (s *Store) SetNeedsReauth(ctx context.Context, id string) error {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE channels SET needs_reauth = TRUE, updated_at = NOW()
		WHERE id = $1 AND is_active`,
		pgID,
	)
	if err != nil {
		return fmt.Errorf("flag channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate releases a channel and wipes its stored credentials, freeing
// the address for a future claim.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE channels
		SET is_active = FALSE, credentials = ''::bytea, updated_at = NOW()
		WHERE id = $1 AND is_active`,
		pgID,
	)
	if err != nil {
		return fmt.Errorf("deactivate channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
