package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EventType identifies one of the structured records the core emits on every
// state change. Consumers (the event store, the redis bus, the websocket hub)
// observe these for off-chain indexing; delivery is fire-and-forget.
type EventType string

const (
	EventMarketCreated      EventType = "market_created"
	EventVoteCast           EventType = "vote_cast"
	EventMarketResolved     EventType = "market_resolved"
	EventMarketCancelled    EventType = "market_cancelled"
	EventRewardClaimed      EventType = "reward_claimed"
	EventFeeUpdated         EventType = "fee_updated"
	EventFeeCollectorUpdate EventType = "fee_collector_updated"
)

// Event is a single structured notification record.
type Event struct {
	ID       string         `json:"id"`
	Type     EventType      `json:"type"`
	MarketID uint64         `json:"market_id,omitempty"`
	Actor    common.Address `json:"actor"`
	At       time.Time      `json:"at"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// NewEvent builds an Event with a fresh identifier.
func NewEvent(typ EventType, marketID uint64, actor common.Address, at time.Time, fields map[string]any) Event {
	return Event{
		ID:       uuid.NewString(),
		Type:     typ,
		MarketID: marketID,
		Actor:    actor,
		At:       at,
		Fields:   fields,
	}
}
