package channels

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chanmux/chanmux/internal/provider"
)

// Service is the channel registry: it seals credentials into the vault,
// enforces the one-active-claim-per-address rule, and hands adapters their
// channel view.
type Service struct {
	log   *slog.Logger
	store *Store
	vault *Vault
}

// NewService creates the channel service.
func NewService(log *slog.Logger, store *Store, vault *Vault) *Service {
	return &Service{
		log:   log.With(slog.String("service", "channels")),
		store: store,
		vault: vault,
	}
}

// Register persists a claimed channel. The partial unique index on active
// (org, provider, address) rows makes the availability check and insert one
// atomic step; a conflicting active claim surfaces as ErrAlreadyClaimed.
func (s *Service) Register(ctx context.Context, params RegisterParams) (Channel, error) {
	sealed, err := s.vault.Seal(params.Credentials)
	if err != nil {
		return Channel{}, fmt.Errorf("seal credentials: %w", err)
	}
	ch, err := s.store.Insert(ctx, params, sealed)
	if err != nil {
		return Channel{}, err
	}
	s.log.Info("channel registered",
		slog.String("channel_id", ch.ID),
		slog.String("org_id", ch.OrgID),
		slog.String("provider", ch.Provider.String()),
		slog.String("address", ch.Address),
	)
	return ch, nil
}

// Get returns one channel by id.
func (s *Service) Get(ctx context.Context, id string) (Channel, error) {
	return s.store.GetByID(ctx, id)
}

// ListByOrg returns an org's active channels.
func (s *Service) ListByOrg(ctx context.Context, orgID string) ([]Channel, error) {
	return s.store.ListByOrg(ctx, orgID)
}

// ListSyncable returns the channels eligible for background work.
func (s *Service) ListSyncable(ctx context.Context) ([]Channel, error) {
	return s.store.ListSyncable(ctx)
}

// Config opens the channel's sealed credentials into the adapter-facing view.
func (s *Service) Config(ctx context.Context, ch Channel) (provider.ChannelConfig, error) {
	sealed, err := s.store.Credentials(ctx, ch.ID)
	if err != nil {
		return provider.ChannelConfig{}, err
	}
	credentials, err := s.vault.Open(sealed)
	if err != nil {
		return provider.ChannelConfig{}, fmt.Errorf("open credentials for channel %s: %w", ch.ID, err)
	}
	return provider.ChannelConfig{
		ID:          ch.ID,
		OrgID:       ch.OrgID,
		Type:        ch.Provider,
		Address:     ch.Address,
		Credentials: credentials,
	}, nil
}

// UpdateCredentials reseals a rotated credential map and clears the re-auth flag.
func (s *Service) UpdateCredentials(ctx context.Context, id string, credentials map[string]any) error {
	sealed, err := s.vault.Seal(credentials)
	if err != nil {
		return fmt.Errorf("seal credentials: %w", err)
	}
	return s.store.UpdateCredentials(ctx, id, sealed)
}

// MarkNeedsReauth flags a channel whose provider rejected its credentials.
// The channel stays active but is excluded from background work until the
// org re-claims it.
func (s *Service) MarkNeedsReauth(ctx context.Context, id string) error {
	if err := s.store.SetNeedsReauth(ctx, id); err != nil {
		return err
	}
	s.log.Warn("channel flagged for re-authorization", slog.String("channel_id", id))
	return nil
}

// Deactivate releases a channel and wipes its credentials.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	if err := s.store.Deactivate(ctx, id); err != nil {
		return err
	}
	s.log.Info("channel released", slog.String("channel_id", id))
	return nil
}
