// Package ws bridges the pool event channel on the signal bus to connected
// WebSocket clients. Every event the core emits is fanned out as a JSON text
// frame; clients can narrow the feed to specific event types or markets.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/wagerpool/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin filtering happens in the CORS middleware.
		return true
	},
}

// client represents a single WebSocket connection and its event filter.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu      sync.RWMutex
	types   map[domain.EventType]bool // empty means all types
	markets map[uint64]bool           // empty means all markets
}

// filterMsg is the JSON message a client sends to narrow or widen its feed.
// Omitted or empty lists clear the corresponding filter.
type filterMsg struct {
	Action    string   `json:"action"` // "filter"
	Types     []string `json:"types"`
	MarketIDs []uint64 `json:"market_ids"`
}

// Hub manages the set of connected WebSocket clients and forwards events
// from the signal bus to every client whose filter matches.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	bus        domain.SignalBus
	channel    string
	mu         sync.RWMutex
	logger     *slog.Logger
	mode       string
	startedAt  time.Time
}

// Config captures the bus channel to bridge and runtime metadata reported to
// clients on connect.
type Config struct {
	// Channel is the signal-bus channel carrying serialized pool events.
	Channel string
	// Mode is the run mode reported in the connect envelope.
	Mode      string
	StartedAt time.Time
}

// NewHub creates a Hub that bridges the given signal bus channel to
// connected WebSocket clients.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	mode := cfg.Mode
	if mode == "" {
		mode = "unknown"
	}

	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		bus:        bus,
		channel:    cfg.Channel,
		logger:     logger,
		mode:       mode,
		startedAt:  startedAt,
	}
}

// Run starts the hub's main event loop. It should be called in a goroutine.
// The loop exits when the provided context is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	go h.pumpBus(ctx)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Info("ws: client connected",
				slog.Int("total_clients", h.clientCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected",
				slog.Int("total_clients", h.clientCount()),
			)

		case data := <-h.broadcast:
			var ev domain.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				h.logger.Warn("ws: dropping malformed event payload",
					slog.String("error", err.Error()),
				)
				continue
			}

			h.mu.RLock()
			for c := range h.clients {
				if !c.matches(ev) {
					continue
				}
				select {
				case c.send <- data:
				default:
					// Client's send buffer is full; drop the message.
					h.logger.Warn("ws: dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// pumpBus subscribes to the event channel and forwards received payloads to
// the broadcast loop.
func (h *Hub) pumpBus(ctx context.Context) {
	msgCh, err := h.bus.Subscribe(ctx, h.channel)
	if err != nil {
		h.logger.Error("ws: failed to subscribe to event channel",
			slog.String("channel", h.channel),
			slog.String("error", err.Error()),
		)
		return
	}

	h.logger.Info("ws: subscribed to event channel", slog.String("channel", h.channel))

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("ws: event channel subscription closed",
					slog.String("channel", h.channel),
				)
				return
			}
			h.broadcast <- data
		}
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		types:   make(map[domain.EventType]bool),
		markets: make(map[uint64]bool),
	}

	h.register <- c
	c.sendConnectEnvelope()

	go c.writePump()
	go c.readPump()
}

// clientCount returns the number of currently connected clients.
func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// matches reports whether an event passes the client's filter. Empty filter
// sets pass everything.
func (c *client) matches(ev domain.Event) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.types) > 0 && !c.types[ev.Type] {
		return false
	}
	if len(c.markets) > 0 && !c.markets[ev.MarketID] {
		return false
	}
	return true
}

// readPump reads filter messages from the WebSocket connection.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var msg filterMsg
		if jsonErr := json.Unmarshal(message, &msg); jsonErr == nil && msg.Action == "filter" {
			c.applyFilter(msg)
		}
	}
}

// applyFilter replaces the client's filter with the requested one.
func (c *client) applyFilter(msg filterMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.types = make(map[domain.EventType]bool, len(msg.Types))
	for _, t := range msg.Types {
		c.types[domain.EventType(t)] = true
	}
	c.markets = make(map[uint64]bool, len(msg.MarketIDs))
	for _, id := range msg.MarketIDs {
		c.markets[id] = true
	}
}

// sendConnectEnvelope pushes a small JSON envelope so clients can immediately
// mark the connection as healthy even when no pool events are flowing yet.
func (c *client) sendConnectEnvelope() {
	uptime := int64(time.Since(c.hub.startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}

	msg, err := json.Marshal(map[string]any{
		"type": "connected",
		"payload": map[string]any{
			"mode":           c.hub.mode,
			"channel":        c.hub.channel,
			"uptime_seconds": uptime,
		},
	})
	if err != nil {
		return
	}

	select {
	case c.send <- msg:
	default:
	}
}

// writePump pumps messages from the hub to the WebSocket connection as JSON
// text frames, with periodic ping frames for keepalive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
