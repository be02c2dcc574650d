package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/wagerpool/internal/domain"
)

// EventStore implements domain.EventStore as an append-only log of pool
// events, the off-chain indexing surface for every state change the core
// emits.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates an EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Insert appends one event. Duplicate event ids are ignored so a replayed
// stream never double-indexes.
func (s *EventStore) Insert(ctx context.Context, ev domain.Event) error {
	fieldsJSON, err := json.Marshal(ev.Fields)
	if err != nil {
		return fmt.Errorf("postgres: marshal event %s fields: %w", ev.ID, err)
	}

	const query = `
		INSERT INTO pool_events (id, type, market_id, actor, at, fields)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`

	_, err = s.pool.Exec(ctx, query,
		ev.ID, string(ev.Type), int64(ev.MarketID), ev.Actor.Hex(), ev.At, fieldsJSON,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert event %s: %w", ev.ID, err)
	}
	return nil
}

// ListByMarket returns a market's events in chronological order.
func (s *EventStore) ListByMarket(ctx context.Context, marketID uint64, opts domain.ListOpts) ([]domain.Event, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	const query = `
		SELECT id, type, market_id, actor, at, fields
		FROM pool_events
		WHERE market_id = $1
		ORDER BY at, id
		LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, int64(marketID), limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events for market %d: %w", marketID, err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var (
			ev         domain.Event
			typ        string
			id         int64
			actor      string
			fieldsJSON []byte
		)
		if err := rows.Scan(&ev.ID, &typ, &id, &actor, &ev.At, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		ev.Type = domain.EventType(typ)
		ev.MarketID = uint64(id)
		ev.Actor = common.HexToAddress(actor)
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &ev.Fields); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal event %s fields: %w", ev.ID, err)
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list events for market %d: %w", marketID, err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.EventStore = (*EventStore)(nil)
