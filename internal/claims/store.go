package claims

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chanmux/chanmux/internal/db"
	"github.com/chanmux/chanmux/internal/provider"
)

// Store persists claim sessions.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates the claim session store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const sessionColumns = `id, org_id, provider, state_token, state, reason, channel_id, created_at, expires_at`

func scanSession(row pgx.Row) (Session, error) {
	var (
		sess         Session
		id           pgtype.UUID
		providerType string
		state        string
		channelID    pgtype.UUID
		createdAt    pgtype.Timestamptz
		expiresAt    pgtype.Timestamptz
	)
	err := row.Scan(&id, &sess.OrgID, &providerType, &sess.StateToken, &state, &sess.Reason, &channelID, &createdAt, &expiresAt)
	if err != nil {
		return Session{}, err
	}
	sess.ID = db.UUIDString(id)
	sess.Provider = provider.Type(providerType)
	sess.State = State(state)
	sess.ChannelID = db.UUIDString(channelID)
	sess.CreatedAt = db.TimeFromPg(createdAt)
	sess.ExpiresAt = db.TimeFromPg(expiresAt)
	return sess, nil
}

// Insert opens a new claim session row.
func (s *Store) Insert(ctx context.Context, sess Session, sealedParams []byte) (Session, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO claim_sessions (org_id, provider, state_token, state, params, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+sessionColumns,
		sess.OrgID, sess.Provider.String(), sess.StateToken, string(sess.State), sealedParams, sess.ExpiresAt,
	)
	created, err := scanSession(row)
	if err != nil {
		return Session{}, fmt.Errorf("insert claim session: %w", err)
	}
	return created, nil
}

// GetByToken returns the session matching the state token, plus its sealed
// partial-claim parameters.
func (s *Store) GetByToken(ctx context.Context, stateToken string) (Session, []byte, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`, params FROM claim_sessions WHERE state_token = $1`,
		stateToken,
	)
	var (
		sess         Session
		id           pgtype.UUID
		providerType string
		state        string
		channelID    pgtype.UUID
		createdAt    pgtype.Timestamptz
		expiresAt    pgtype.Timestamptz
		params       []byte
	)
	err := row.Scan(&id, &sess.OrgID, &providerType, &sess.StateToken, &state, &sess.Reason, &channelID, &createdAt, &expiresAt, &params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, nil, ErrSessionNotFound
		}
		return Session{}, nil, fmt.Errorf("get claim session: %w", err)
	}
	sess.ID = db.UUIDString(id)
	sess.Provider = provider.Type(providerType)
	sess.State = State(state)
	sess.ChannelID = db.UUIDString(channelID)
	sess.CreatedAt = db.TimeFromPg(createdAt)
	sess.ExpiresAt = db.TimeFromPg(expiresAt)
	return sess, params, nil
}

// Transition moves a session from one state to another. The move only
// applies when the session is still in the expected state, which keeps
// concurrent callbacks from double-completing a claim.
func (s *Store) Transition(ctx context.Context, id string, from, to State, reason, channelID string) (Session, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return Session{}, ErrSessionNotFound
	}
	var pgChannelID pgtype.UUID
	if channelID != "" {
		pgChannelID, err = db.ParseUUID(channelID)
		if err != nil {
			return Session{}, fmt.Errorf("invalid channel id: %w", err)
		}
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE claim_sessions
		SET state = $3, reason = $4, channel_id = COALESCE($5, channel_id)
		WHERE id = $1 AND state = $2
		RETURNING `+sessionColumns,
		pgID, string(from), string(to), reason, pgChannelID,
	)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrSessionClosed
		}
		return Session{}, fmt.Errorf("transition claim session: %w", err)
	}
	return sess, nil
}

// ExpireStale marks overdue open sessions expired and returns how many moved.
func (s *Store) ExpireStale(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE claim_sessions
		SET state = $1, params = ''::bytea
		WHERE state IN ($2, $3) AND expires_at < NOW()`,
		string(StateExpired), string(StateStarted), string(StateAwaitingCallback),
	)
	if err != nil {
		return 0, fmt.Errorf("expire claim sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SetParams replaces a session's sealed parameters.
func (s *Store) SetParams(ctx context.Context, id string, sealed []byte) error {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return ErrSessionNotFound
	}
	_, err = s.pool.Exec(ctx, `UPDATE claim_sessions SET params = $2 WHERE id = $1`, pgID, sealed)
	if err != nil {
		return fmt.Errorf("set claim params: %w", err)
	}
	return nil
}

// ClearParams wipes a closed session's sealed parameters.
func (s *Store) ClearParams(ctx context.Context, id string) error {
	return s.SetParams(ctx, id, []byte{})
}
