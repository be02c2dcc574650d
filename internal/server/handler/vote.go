package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/wagerpool/internal/domain"
)

// VoteService defines the methods the vote handler requires from the service
// layer.
type VoteService interface {
	RecordVote(ctx context.Context, voter common.Address, marketID uint64, side domain.Side, amount uint64) (domain.Market, error)
	Claim(ctx context.Context, claimant common.Address, marketID uint64) (reward, fee uint64, err error)
}

// VoteHandler serves the participant-facing stake and claim endpoints.
type VoteHandler struct {
	votes  VoteService
	logger *slog.Logger
}

// NewVoteHandler creates a VoteHandler with the given service and logger.
func NewVoteHandler(votes VoteService, logger *slog.Logger) *VoteHandler {
	return &VoteHandler{
		votes:  votes,
		logger: logHandler(logger, "vote"),
	}
}

// castVoteRequest is the body of POST /api/markets/{id}/votes.
type castVoteRequest struct {
	Voter  string `json:"voter"`
	Side   string `json:"side"`
	Amount uint64 `json:"amount"`
}

// CastVote stakes an amount on one side of a market.
// POST /api/markets/{id}/votes
func (h *VoteHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req castVoteRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	voter, err := parseAddress(req.Voter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	market, err := h.votes.RecordVote(r.Context(), voter, id, side, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "handler: vote recorded",
		slog.Uint64("market_id", id),
		slog.String("voter", voter.Hex()),
		slog.String("side", side.String()),
		slog.Uint64("amount", req.Amount),
	)
	writeJSON(w, http.StatusCreated, market)
}

// claimRequest is the body of POST /api/markets/{id}/claims.
type claimRequest struct {
	Claimant string `json:"claimant"`
}

// claimResponse reports the settled amounts of a successful claim.
type claimResponse struct {
	MarketID uint64 `json:"market_id"`
	Claimant string `json:"claimant"`
	Reward   uint64 `json:"reward"`
	Fee      uint64 `json:"fee"`
}

// Claim pays out a participant's share of a resolved market.
// POST /api/markets/{id}/claims
func (h *VoteHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	claimant, err := parseAddress(req.Claimant)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	reward, fee, err := h.votes.Claim(r.Context(), claimant, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, claimResponse{
		MarketID: id,
		Claimant: claimant.Hex(),
		Reward:   reward,
		Fee:      fee,
	})
}
