// Package service coordinates the accounting core with the persistence and
// caching collaborators. The registry remains authoritative for all balances;
// this layer mirrors its state outward for indexing and fast reads.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/wagerpool/internal/domain"
	"github.com/alanyoungcy/wagerpool/internal/pool"
)

// MarketArchiver uploads settled markets to durable storage. The s3blob
// Archiver satisfies this.
type MarketArchiver interface {
	ArchiveMarket(ctx context.Context, m domain.Market) error
}

// MarketService fronts the pool registry and fans every state transition out
// to the snapshot store, the stats cache, and the archiver. All collaborators
// except the registry are optional; a nil collaborator is skipped, which is
// how the lighter run modes operate.
//
// Persistence failures are logged, never propagated: once the registry has
// committed an operation, value has moved, and there is no undoing that
// because a snapshot write failed.
type MarketService struct {
	registry *pool.Registry
	markets  domain.MarketStore
	events   domain.EventStore
	stats    domain.StatsCache
	archiver MarketArchiver
	logger   *slog.Logger
}

// NewMarketService creates a MarketService. registry and logger are required.
func NewMarketService(
	registry *pool.Registry,
	markets domain.MarketStore,
	events domain.EventStore,
	stats domain.StatsCache,
	archiver MarketArchiver,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		registry: registry,
		markets:  markets,
		events:   events,
		stats:    stats,
		archiver: archiver,
		logger:   logger,
	}
}

// CreateMarket registers a new market and mirrors the initial snapshot.
func (s *MarketService) CreateMarket(ctx context.Context, caller common.Address, p pool.CreateParams) (domain.Market, error) {
	m, err := s.registry.CreateMarket(ctx, caller, p)
	if err != nil {
		return domain.Market{}, err
	}
	s.persist(ctx, m)
	return m, nil
}

// RecordVote records a stake and mirrors the updated snapshot and statistics.
func (s *MarketService) RecordVote(ctx context.Context, voter common.Address, marketID uint64, side domain.Side, amount uint64) (domain.Market, error) {
	m, err := s.registry.RecordVote(ctx, voter, marketID, side, amount)
	if err != nil {
		return domain.Market{}, err
	}
	s.persist(ctx, m)
	s.cacheStats(ctx, m)
	return m, nil
}

// Resolve settles a market, mirrors the final snapshot, and archives it.
func (s *MarketService) Resolve(ctx context.Context, caller common.Address, marketID uint64, outcome domain.Outcome, details string) (domain.Market, error) {
	m, err := s.registry.Resolve(ctx, caller, marketID, outcome, details)
	if err != nil {
		return domain.Market{}, err
	}
	s.persist(ctx, m)
	s.invalidateStats(ctx, m.ID)
	s.archive(ctx, m)
	return m, nil
}

// Cancel voids a market, mirrors the final snapshot, and archives it.
func (s *MarketService) Cancel(ctx context.Context, caller common.Address, marketID uint64, reason string) (domain.Market, error) {
	m, err := s.registry.Cancel(ctx, caller, marketID, reason)
	if err != nil {
		return domain.Market{}, err
	}
	s.persist(ctx, m)
	s.invalidateStats(ctx, m.ID)
	s.archive(ctx, m)
	return m, nil
}

// Claim pays out a participant's reward and refreshes the stored snapshot.
func (s *MarketService) Claim(ctx context.Context, claimant common.Address, marketID uint64) (reward, fee uint64, err error) {
	reward, fee, err = s.registry.Claim(ctx, claimant, marketID)
	if err != nil {
		return 0, 0, err
	}
	if m, mErr := s.registry.Market(ctx, marketID); mErr == nil {
		s.persist(ctx, m)
	}
	return reward, fee, nil
}

// SetMarketFee updates one market's fee and mirrors the snapshot.
func (s *MarketService) SetMarketFee(ctx context.Context, caller common.Address, marketID uint64, bps uint32) error {
	if err := s.registry.SetMarketFee(ctx, caller, marketID, bps); err != nil {
		return err
	}
	if m, err := s.registry.Market(ctx, marketID); err == nil {
		s.persist(ctx, m)
	}
	return nil
}

// SetDefaultFee updates the fee applied to markets created without one.
func (s *MarketService) SetDefaultFee(ctx context.Context, caller common.Address, bps uint32) error {
	return s.registry.SetDefaultFee(ctx, caller, bps)
}

// SetFeeRecipient updates the address fee cuts are paid to.
func (s *MarketService) SetFeeRecipient(ctx context.Context, caller common.Address, recipient common.Address) error {
	return s.registry.SetFeeRecipient(ctx, caller, recipient)
}

// GetMarket returns the live snapshot for one market.
func (s *MarketService) GetMarket(ctx context.Context, marketID uint64) (domain.Market, error) {
	return s.registry.Market(ctx, marketID)
}

// ListMarkets returns live snapshots ordered by id.
func (s *MarketService) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, int64, error) {
	return s.registry.Markets(ctx, opts), s.registry.Count(ctx), nil
}

// GetStats returns a market's statistics, preferring the cache.
func (s *MarketService) GetStats(ctx context.Context, marketID uint64) (domain.Stats, error) {
	if s.stats != nil {
		if st, err := s.stats.Get(ctx, marketID); err == nil {
			return st, nil
		}
	}

	st, err := s.registry.Stats(ctx, marketID)
	if err != nil {
		return domain.Stats{}, err
	}

	if s.stats != nil {
		if cacheErr := s.stats.Set(ctx, marketID, st); cacheErr != nil {
			s.logger.WarnContext(ctx, "market_service: stats cache set failed",
				slog.Uint64("market_id", marketID),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	return st, nil
}

// GetPosition returns one participant's position in a market.
func (s *MarketService) GetPosition(ctx context.Context, marketID uint64, addr common.Address) (domain.Position, error) {
	return s.registry.Position(ctx, marketID, addr)
}

// ListEvents returns a market's persisted event history. It requires the
// event store; lighter run modes return an error.
func (s *MarketService) ListEvents(ctx context.Context, marketID uint64, opts domain.ListOpts) ([]domain.Event, error) {
	if s.events == nil {
		return nil, fmt.Errorf("market_service: event history: %w", domain.ErrNotFound)
	}
	if _, err := s.registry.Market(ctx, marketID); err != nil {
		return nil, err
	}
	return s.events.ListByMarket(ctx, marketID, opts)
}

// DefaultFeeBps returns the current default fee.
func (s *MarketService) DefaultFeeBps() uint32 {
	return s.registry.DefaultFeeBps()
}

// FeeRecipient returns the current fee recipient.
func (s *MarketService) FeeRecipient() common.Address {
	return s.registry.FeeRecipient()
}

func (s *MarketService) persist(ctx context.Context, m domain.Market) {
	if s.markets == nil {
		return
	}
	if err := s.markets.Upsert(ctx, m); err != nil {
		s.logger.ErrorContext(ctx, "market_service: snapshot upsert failed",
			slog.Uint64("market_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) cacheStats(ctx context.Context, m domain.Market) {
	if s.stats == nil {
		return
	}
	if err := s.stats.Set(ctx, m.ID, m.Stats); err != nil {
		s.logger.WarnContext(ctx, "market_service: stats cache set failed",
			slog.Uint64("market_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) invalidateStats(ctx context.Context, marketID uint64) {
	if s.stats == nil {
		return
	}
	if err := s.stats.Invalidate(ctx, marketID); err != nil {
		s.logger.WarnContext(ctx, "market_service: stats cache invalidate failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) archive(ctx context.Context, m domain.Market) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.ArchiveMarket(ctx, m); err != nil {
		s.logger.ErrorContext(ctx, "market_service: archive failed",
			slog.Uint64("market_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}
