package notify

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/wagerpool/internal/domain"
)

// StoreSink adapts a domain.EventStore into an EventSink so every emitted
// event lands in the persistent log.
type StoreSink struct {
	store domain.EventStore
}

// NewStoreSink creates a StoreSink on the given store.
func NewStoreSink(store domain.EventStore) *StoreSink {
	return &StoreSink{store: store}
}

// Emit inserts the event into the store.
func (s *StoreSink) Emit(ctx context.Context, ev domain.Event) error {
	if err := s.store.Insert(ctx, ev); err != nil {
		return fmt.Errorf("notify: store event %s: %w", ev.ID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.EventSink = (*StoreSink)(nil)
