package domain

import (
	"context"
	"io"

	"github.com/ethereum/go-ethereum/common"
)

// AssetLedger is the external value-transfer collaborator. Both calls are
// synchronous and all-or-nothing: an error means no value moved, and the
// enclosing operation must abort without partial effect.
type AssetLedger interface {
	// TransferIn moves amount from the participant into the pool.
	TransferIn(ctx context.Context, from common.Address, amount uint64) error
	// TransferOut moves amount from the pool to the recipient.
	TransferOut(ctx context.Context, to common.Address, amount uint64) error
}

// Authorizer is the external capability check consulted before every
// administrative operation.
type Authorizer interface {
	IsAuthorizedAdmin(ctx context.Context, caller common.Address) bool
}

// EventSink receives structured notification records. The core treats
// emission as fire-and-forget: sink errors are logged, never propagated into
// the operation result.
type EventSink interface {
	Emit(ctx context.Context, ev Event) error
}

// EventStore persists an append-only log of emitted events for indexing.
type EventStore interface {
	Insert(ctx context.Context, ev Event) error
	ListByMarket(ctx context.Context, marketID uint64, opts ListOpts) ([]Event, error)
}

// MarketStore persists market snapshots. Markets are never deleted; the
// store is the audit trail that outlives the process.
type MarketStore interface {
	Upsert(ctx context.Context, m Market) error
	GetByID(ctx context.Context, id uint64) (Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// StatsCache caches per-market aggregate statistics for the read API.
type StatsCache interface {
	Set(ctx context.Context, marketID uint64, stats Stats) error
	Get(ctx context.Context, marketID uint64) (Stats, error)
	Invalidate(ctx context.Context, marketID uint64) error
}

// SignalBus carries serialized events between processes (redis pub/sub plus
// a capped stream for replay).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// BlobWriter writes archive objects to durable object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
