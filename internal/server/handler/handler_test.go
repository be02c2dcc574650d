package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/wagerpool/internal/domain"
	"github.com/alanyoungcy/wagerpool/internal/pool"
)

var (
	hAdmin = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	hAlice = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	hToken = common.HexToAddress("0x000000000000000000000000000000000000beef")
)

// fakeService backs every handler interface with canned responses.
type fakeService struct {
	markets map[uint64]domain.Market

	voteErr    error
	resolveErr error
	claimErr   error

	lastVoteSide   domain.Side
	lastVoteAmount uint64
}

func newFakeService() *fakeService {
	return &fakeService{markets: map[uint64]domain.Market{
		1: {
			ID:       1,
			Metadata: domain.Metadata{Title: "first", Category: domain.CategorySports},
			Token:    hToken,
			FeeBps:   250,
			Stats:    domain.Stats{UniqueVoters: 2, TotalTransactions: 3},
		},
	}}
}

func (f *fakeService) CreateMarket(_ context.Context, caller common.Address, p pool.CreateParams) (domain.Market, error) {
	if caller != hAdmin {
		return domain.Market{}, fmt.Errorf("%w: %s is not an administrator", domain.ErrUnauthorized, caller)
	}
	if p.Metadata.Title == "" {
		return domain.Market{}, fmt.Errorf("%w: market title is required", domain.ErrValidation)
	}
	m := domain.Market{ID: uint64(len(f.markets) + 1), Metadata: p.Metadata, Token: p.Token, FeeBps: p.FeeBps}
	f.markets[m.ID] = m
	return m, nil
}

func (f *fakeService) GetMarket(_ context.Context, id uint64) (domain.Market, error) {
	m, ok := f.markets[id]
	if !ok {
		return domain.Market{}, fmt.Errorf("%w: market %d", domain.ErrNotFound, id)
	}
	return m, nil
}

func (f *fakeService) ListMarkets(_ context.Context, _ domain.ListOpts) ([]domain.Market, int64, error) {
	var out []domain.Market
	for _, m := range f.markets {
		out = append(out, m)
	}
	return out, int64(len(out)), nil
}

func (f *fakeService) GetStats(ctx context.Context, id uint64) (domain.Stats, error) {
	m, err := f.GetMarket(ctx, id)
	if err != nil {
		return domain.Stats{}, err
	}
	return m.Stats, nil
}

func (f *fakeService) GetPosition(ctx context.Context, id uint64, _ common.Address) (domain.Position, error) {
	if _, err := f.GetMarket(ctx, id); err != nil {
		return domain.Position{}, err
	}
	return domain.Position{YesAmount: 100, HasVoted: true}, nil
}

func (f *fakeService) ListEvents(ctx context.Context, id uint64, _ domain.ListOpts) ([]domain.Event, error) {
	if _, err := f.GetMarket(ctx, id); err != nil {
		return nil, err
	}
	return []domain.Event{domain.NewEvent(domain.EventVoteCast, id, hAlice, time.Now(), nil)}, nil
}

func (f *fakeService) RecordVote(ctx context.Context, _ common.Address, id uint64, side domain.Side, amount uint64) (domain.Market, error) {
	if f.voteErr != nil {
		return domain.Market{}, f.voteErr
	}
	f.lastVoteSide = side
	f.lastVoteAmount = amount
	return f.GetMarket(ctx, id)
}

func (f *fakeService) Claim(_ context.Context, _ common.Address, _ uint64) (uint64, uint64, error) {
	if f.claimErr != nil {
		return 0, 0, f.claimErr
	}
	return 195, 5, nil
}

func (f *fakeService) Resolve(ctx context.Context, caller common.Address, id uint64, outcome domain.Outcome, _ string) (domain.Market, error) {
	if f.resolveErr != nil {
		return domain.Market{}, f.resolveErr
	}
	if caller != hAdmin {
		return domain.Market{}, fmt.Errorf("%w: %s is not an administrator", domain.ErrUnauthorized, caller)
	}
	m, err := f.GetMarket(ctx, id)
	if err != nil {
		return domain.Market{}, err
	}
	m.Outcome = outcome
	f.markets[id] = m
	return m, nil
}

func (f *fakeService) Cancel(ctx context.Context, caller common.Address, id uint64, _ string) (domain.Market, error) {
	return f.Resolve(ctx, caller, id, domain.OutcomeDraw, "")
}

func (f *fakeService) SetMarketFee(context.Context, common.Address, uint64, uint32) error {
	return nil
}

func (f *fakeService) SetDefaultFee(context.Context, common.Address, uint32) error { return nil }
func (f *fakeService) SetFeeRecipient(context.Context, common.Address, common.Address) error {
	return nil
}
func (f *fakeService) DefaultFeeBps() uint32        { return 100 }
func (f *fakeService) FeeRecipient() common.Address { return hAdmin }

func testRouter(svc *fakeService) *http.ServeMux {
	logger := slog.New(slog.DiscardHandler)
	markets := NewMarketHandler(svc, logger)
	votes := NewVoteHandler(svc, logger)
	admin := NewAdminHandler(svc, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/markets/{id}", markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/stats", markets.GetStats)
	mux.HandleFunc("GET /api/markets/{id}/positions/{address}", markets.GetPosition)
	mux.HandleFunc("POST /api/markets", markets.CreateMarket)
	mux.HandleFunc("POST /api/markets/{id}/votes", votes.CastVote)
	mux.HandleFunc("POST /api/markets/{id}/claims", votes.Claim)
	mux.HandleFunc("POST /api/markets/{id}/resolve", admin.Resolve)
	mux.HandleFunc("PUT /api/config/fee", admin.SetDefaultFee)
	mux.HandleFunc("GET /api/config", admin.GetConfig)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestGetMarket(t *testing.T) {
	mux := testRouter(newFakeService())

	rec := doJSON(t, mux, http.MethodGet, "/api/markets/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var m domain.Market
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	require.Equal(t, "first", m.Metadata.Title)

	rec = doJSON(t, mux, http.MethodGet, "/api/markets/99", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/markets/abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCastVote(t *testing.T) {
	svc := newFakeService()
	mux := testRouter(svc)

	body := fmt.Sprintf(`{"voter":%q,"side":"yes","amount":500}`, hAlice.Hex())
	rec := doJSON(t, mux, http.MethodPost, "/api/markets/1/votes", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, domain.SideYes, svc.lastVoteSide)
	require.Equal(t, uint64(500), svc.lastVoteAmount)
}

func TestCastVoteRejectsBadSide(t *testing.T) {
	mux := testRouter(newFakeService())

	body := fmt.Sprintf(`{"voter":%q,"side":"maybe","amount":500}`, hAlice.Hex())
	rec := doJSON(t, mux, http.MethodPost, "/api/markets/1/votes", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCastVoteMapsTransferFailure(t *testing.T) {
	svc := newFakeService()
	svc.voteErr = fmt.Errorf("%w: stake transfer", domain.ErrTransfer)
	mux := testRouter(svc)

	body := fmt.Sprintf(`{"voter":%q,"side":"no","amount":500}`, hAlice.Hex())
	rec := doJSON(t, mux, http.MethodPost, "/api/markets/1/votes", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestClaim(t *testing.T) {
	mux := testRouter(newFakeService())

	body := fmt.Sprintf(`{"claimant":%q}`, hAlice.Hex())
	rec := doJSON(t, mux, http.MethodPost, "/api/markets/1/claims", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp claimResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, uint64(195), resp.Reward)
	require.Equal(t, uint64(5), resp.Fee)
}

func TestClaimBeforeResolution(t *testing.T) {
	svc := newFakeService()
	svc.claimErr = fmt.Errorf("%w: market 1 is not resolved", domain.ErrState)
	mux := testRouter(svc)

	body := fmt.Sprintf(`{"claimant":%q}`, hAlice.Hex())
	rec := doJSON(t, mux, http.MethodPost, "/api/markets/1/claims", body)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestResolveRequiresAdmin(t *testing.T) {
	mux := testRouter(newFakeService())

	body := fmt.Sprintf(`{"caller":%q,"outcome":"yes"}`, hAlice.Hex())
	rec := doJSON(t, mux, http.MethodPost, "/api/markets/1/resolve", body)
	require.Equal(t, http.StatusForbidden, rec.Code)

	body = fmt.Sprintf(`{"caller":%q,"outcome":"yes"}`, hAdmin.Hex())
	rec = doJSON(t, mux, http.MethodPost, "/api/markets/1/resolve", body)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestResolveRejectsUndecided(t *testing.T) {
	mux := testRouter(newFakeService())

	body := fmt.Sprintf(`{"caller":%q,"outcome":"undecided"}`, hAdmin.Hex())
	rec := doJSON(t, mux, http.MethodPost, "/api/markets/1/resolve", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateMarketValidation(t *testing.T) {
	mux := testRouter(newFakeService())

	body := fmt.Sprintf(`{"caller":%q,"title":"","category":"sports","token":%q}`, hAdmin.Hex(), hToken.Hex())
	rec := doJSON(t, mux, http.MethodPost, "/api/markets", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body = fmt.Sprintf(`{"caller":%q,"title":"new","category":"sports","token":%q}`, hAdmin.Hex(), hToken.Hex())
	rec = doJSON(t, mux, http.MethodPost, "/api/markets", body)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestGetPositionRejectsBadAddress(t *testing.T) {
	mux := testRouter(newFakeService())

	rec := doJSON(t, mux, http.MethodGet, "/api/markets/1/positions/nothex", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/markets/1/positions/"+hAlice.Hex(), "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetConfig(t *testing.T) {
	mux := testRouter(newFakeService())

	rec := doJSON(t, mux, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"default_fee_bps":100`)
}

func TestSetDefaultFee(t *testing.T) {
	mux := testRouter(newFakeService())

	body := fmt.Sprintf(`{"caller":%q,"fee_bps":500}`, hAdmin.Hex())
	rec := doJSON(t, mux, http.MethodPut, "/api/config/fee", body)
	require.Equal(t, http.StatusOK, rec.Code)
}
