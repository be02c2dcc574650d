package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/wagerpool/internal/domain"
)

// EventChannel is the pub/sub channel pool events are published on.
const EventChannel = "pool:events"

// EventStream is the capped stream pool events are appended to for replay.
const EventStream = "stream:pool:events"

// defaultStreamMaxLen caps the event stream via XADD MAXLEN ~.
const defaultStreamMaxLen int64 = 10000

// EventBus implements domain.SignalBus on Redis: pub/sub for ephemeral
// delivery to live subscribers (the websocket hub), plus a capped stream for
// durable ordered replay by indexers.
type EventBus struct {
	rdb          *redis.Client
	streamMaxLen int64
}

// NewEventBus creates an EventBus backed by the given Client.
func NewEventBus(c *Client) *EventBus {
	return &EventBus{rdb: c.Underlying(), streamMaxLen: defaultStreamMaxLen}
}

// NewEventBusWithMaxLen creates an EventBus with a custom stream cap.
func NewEventBusWithMaxLen(c *Client, maxLen int64) *EventBus {
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &EventBus{rdb: c.Underlying(), streamMaxLen: maxLen}
}

// Publish sends a raw payload to a pub/sub channel.
func (b *EventBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe creates a pub/sub subscription and returns a read-only channel
// of raw payloads. The subscription closes when the context is cancelled.
func (b *EventBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := b.rdb.Subscribe(ctx, channel)

	// Receive the confirmation so a broken connection surfaces here rather
	// than as a silent dead channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// StreamAppend appends a payload to a capped stream using XADD MAXLEN ~.
func (b *EventBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: stream,
		MaxLen: b.streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"payload": payload,
		},
	}
	if err := b.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SignalBus = (*EventBus)(nil)

// BusSink adapts the EventBus into a domain.EventSink: every emitted pool
// event goes out as JSON on the pub/sub channel and onto the replay stream.
type BusSink struct {
	bus domain.SignalBus
}

// NewBusSink creates a BusSink on the given bus.
func NewBusSink(bus domain.SignalBus) *BusSink {
	return &BusSink{bus: bus}
}

// Emit serializes the event and delivers it to both transports. The stream
// append happens first so an indexer replaying the stream never misses an
// event a live subscriber saw.
func (s *BusSink) Emit(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis: marshal event %s: %w", ev.ID, err)
	}
	if err := s.bus.StreamAppend(ctx, EventStream, payload); err != nil {
		return err
	}
	return s.bus.Publish(ctx, EventChannel, payload)
}

// Compile-time interface check.
var _ domain.EventSink = (*BusSink)(nil)
