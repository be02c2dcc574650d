package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/wagerpool/internal/domain"
	"github.com/alanyoungcy/wagerpool/internal/pool"
)

// MarketService defines the methods the market handler requires from the
// service layer.
type MarketService interface {
	CreateMarket(ctx context.Context, caller common.Address, p pool.CreateParams) (domain.Market, error)
	GetMarket(ctx context.Context, marketID uint64) (domain.Market, error)
	ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, int64, error)
	GetStats(ctx context.Context, marketID uint64) (domain.Stats, error)
	GetPosition(ctx context.Context, marketID uint64, addr common.Address) (domain.Position, error)
	ListEvents(ctx context.Context, marketID uint64, opts domain.ListOpts) ([]domain.Event, error)
}

// MarketHandler serves market discovery and creation endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logHandler(logger, "market"),
	}
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets returns market snapshots with pagination.
// GET /api/markets?limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	markets, total, err := h.markets.ListMarkets(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}
	if markets == nil {
		markets = []domain.Market{}
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	market, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// createMarketRequest is the body of POST /api/markets. Caller must be an
// administrator address.
type createMarketRequest struct {
	Caller           string    `json:"caller"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	ResolutionSource string    `json:"resolution_source"`
	Category         string    `json:"category"`
	Tags             []string  `json:"tags"`
	Token            string    `json:"token"`
	FeeBps           uint32    `json:"fee_bps"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
}

// CreateMarket opens a new market.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	token, err := parseAddress(req.Token)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	market, err := h.markets.CreateMarket(r.Context(), caller, pool.CreateParams{
		Metadata: domain.Metadata{
			Title:            req.Title,
			Description:      req.Description,
			ResolutionSource: req.ResolutionSource,
			Category:         domain.Category(req.Category),
			Tags:             req.Tags,
		},
		Window: domain.Window{StartTime: req.StartTime, EndTime: req.EndTime},
		Token:  token,
		FeeBps: req.FeeBps,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, market)
}

// GetStats returns a market's aggregate statistics.
// GET /api/markets/{id}/stats
func (h *MarketHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	stats, err := h.markets.GetStats(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetPosition returns one participant's position in a market.
// GET /api/markets/{id}/positions/{address}
func (h *MarketHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	addr, err := parseAddress(r.PathValue("address"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	position, err := h.markets.GetPosition(r.Context(), id, addr)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, position)
}

// ListEvents returns a market's persisted event history.
// GET /api/markets/{id}/events
func (h *MarketHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	events, err := h.markets.ListEvents(r.Context(), id, parseListOpts(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
