package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/wagerpool/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL. Each row is
// the latest snapshot of a market; rows are upserted on every lifecycle
// transition and never deleted.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// Upsert inserts or updates a market snapshot.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	statsJSON, err := json.Marshal(m.Stats)
	if err != nil {
		return fmt.Errorf("postgres: marshal stats for market %d: %w", m.ID, err)
	}

	const query = `
		INSERT INTO markets (
			id, title, description, resolution_source, category, tags,
			token, fee_bps, start_time, end_time,
			outcome, resolution_details, resolved_at,
			total_yes_amount, total_no_amount, stats, fee_claimed,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13,
			$14, $15, $16, $17,
			$18, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			fee_bps            = EXCLUDED.fee_bps,
			outcome            = EXCLUDED.outcome,
			resolution_details = EXCLUDED.resolution_details,
			resolved_at        = EXCLUDED.resolved_at,
			total_yes_amount   = EXCLUDED.total_yes_amount,
			total_no_amount    = EXCLUDED.total_no_amount,
			stats              = EXCLUDED.stats,
			fee_claimed        = EXCLUDED.fee_claimed,
			updated_at         = NOW()`

	_, err = s.pool.Exec(ctx, query,
		int64(m.ID), m.Metadata.Title, m.Metadata.Description,
		m.Metadata.ResolutionSource, string(m.Metadata.Category), m.Metadata.Tags,
		m.Token.Hex(), int32(m.FeeBps), m.Window.StartTime, m.Window.EndTime,
		m.Outcome.String(), m.ResolutionDetails, m.ResolvedAt,
		int64(m.TotalYesAmount), int64(m.TotalNoAmount), statsJSON, m.FeeClaimed,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %d: %w", m.ID, err)
	}
	return nil
}

// GetByID retrieves a market snapshot by its id.
func (s *MarketStore) GetByID(ctx context.Context, id uint64) (domain.Market, error) {
	const query = `
		SELECT id, title, description, resolution_source, category, tags,
		       token, fee_bps, start_time, end_time,
		       outcome, resolution_details, resolved_at,
		       total_yes_amount, total_no_amount, stats, fee_claimed,
		       created_at
		FROM markets
		WHERE id = $1`

	m, err := scanMarket(s.pool.QueryRow(ctx, query, int64(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %d: %w", id, err)
	}
	return m, nil
}

// List returns market snapshots ordered by id.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT id, title, description, resolution_source, category, tags,
		       token, fee_bps, start_time, end_time,
		       outcome, resolution_details, resolved_at,
		       total_yes_amount, total_no_amount, stats, fee_claimed,
		       created_at
		FROM markets
		ORDER BY id
		LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var out []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	return out, nil
}

// Count returns the total number of stored market snapshots.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

// scanMarket reads one market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m         domain.Market
		id        int64
		category  string
		token     string
		feeBps    int32
		outcome   string
		statsJSON []byte
	)

	err := row.Scan(
		&id, &m.Metadata.Title, &m.Metadata.Description,
		&m.Metadata.ResolutionSource, &category, &m.Metadata.Tags,
		&token, &feeBps, &m.Window.StartTime, &m.Window.EndTime,
		&outcome, &m.ResolutionDetails, &m.ResolvedAt,
		&m.TotalYesAmount, &m.TotalNoAmount, &statsJSON, &m.FeeClaimed,
		&m.CreatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}

	m.ID = uint64(id)
	m.Metadata.Category = domain.Category(category)
	m.Token = common.HexToAddress(token)
	m.FeeBps = uint32(feeBps)

	switch outcome {
	case "yes":
		m.Outcome = domain.OutcomeYes
	case "no":
		m.Outcome = domain.OutcomeNo
	case "draw":
		m.Outcome = domain.OutcomeDraw
	default:
		m.Outcome = domain.OutcomeUndecided
	}

	if len(statsJSON) > 0 {
		if err := json.Unmarshal(statsJSON, &m.Stats); err != nil {
			return domain.Market{}, fmt.Errorf("unmarshal stats: %w", err)
		}
	}
	return m, nil
}

// Compile-time interface check.
var _ domain.MarketStore = (*MarketStore)(nil)
