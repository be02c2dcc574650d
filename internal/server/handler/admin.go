package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/wagerpool/internal/domain"
)

// AdminService defines the methods the admin handler requires from the
// service layer.
type AdminService interface {
	Resolve(ctx context.Context, caller common.Address, marketID uint64, outcome domain.Outcome, details string) (domain.Market, error)
	Cancel(ctx context.Context, caller common.Address, marketID uint64, reason string) (domain.Market, error)
	SetMarketFee(ctx context.Context, caller common.Address, marketID uint64, bps uint32) error
	SetDefaultFee(ctx context.Context, caller common.Address, bps uint32) error
	SetFeeRecipient(ctx context.Context, caller common.Address, recipient common.Address) error
	DefaultFeeBps() uint32
	FeeRecipient() common.Address
}

// AdminHandler serves the administrative lifecycle and fee endpoints. The
// address-level capability check happens in the core; these handlers only
// parse and forward.
type AdminHandler struct {
	admin  AdminService
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler with the given service and logger.
func NewAdminHandler(admin AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:  admin,
		logger: logHandler(logger, "admin"),
	}
}

// resolveRequest is the body of POST /api/markets/{id}/resolve.
type resolveRequest struct {
	Caller  string `json:"caller"`
	Outcome string `json:"outcome"`
	Details string `json:"details"`
}

// Resolve sets a market's final outcome.
// POST /api/markets/{id}/resolve
func (h *AdminHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	outcome, err := domain.ParseOutcome(req.Outcome)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	market, err := h.admin.Resolve(r.Context(), caller, id, outcome, req.Details)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "handler: market resolved",
		slog.Uint64("market_id", id),
		slog.String("outcome", outcome.String()),
	)
	writeJSON(w, http.StatusOK, market)
}

// cancelRequest is the body of POST /api/markets/{id}/cancel.
type cancelRequest struct {
	Caller string `json:"caller"`
	Reason string `json:"reason"`
}

// Cancel voids a market so every staker recovers principal.
// POST /api/markets/{id}/cancel
func (h *AdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req cancelRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	market, err := h.admin.Cancel(r.Context(), caller, id, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// setFeeRequest is the body of the fee update endpoints.
type setFeeRequest struct {
	Caller string `json:"caller"`
	FeeBps uint32 `json:"fee_bps"`
}

// SetMarketFee updates one market's fee.
// PUT /api/markets/{id}/fee
func (h *AdminHandler) SetMarketFee(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req setFeeRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.admin.SetMarketFee(r.Context(), caller, id, req.FeeBps); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"market_id": id, "fee_bps": req.FeeBps})
}

// SetDefaultFee updates the fee applied to markets created without one.
// PUT /api/config/fee
func (h *AdminHandler) SetDefaultFee(w http.ResponseWriter, r *http.Request) {
	var req setFeeRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.admin.SetDefaultFee(r.Context(), caller, req.FeeBps); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fee_bps": req.FeeBps})
}

// setFeeCollectorRequest is the body of PUT /api/config/fee-collector.
type setFeeCollectorRequest struct {
	Caller    string `json:"caller"`
	Collector string `json:"collector"`
}

// SetFeeRecipient updates the address fee cuts are paid to.
// PUT /api/config/fee-collector
func (h *AdminHandler) SetFeeRecipient(w http.ResponseWriter, r *http.Request) {
	var req setFeeCollectorRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	collector, err := parseAddress(req.Collector)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.admin.SetFeeRecipient(r.Context(), caller, collector); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collector": collector.Hex()})
}

// GetConfig reports the current fee configuration.
// GET /api/config
func (h *AdminHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"default_fee_bps": h.admin.DefaultFeeBps(),
		"fee_collector":   h.admin.FeeRecipient().Hex(),
	})
}
