// Package pool implements the accounting core of the wagering pool: the
// market registry, the per-market lifecycle state machine, and the pro-rata
// reward computation. Value transfer, admin capability checks, and event
// delivery are collaborators injected through the domain interfaces.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/wagerpool/internal/domain"
)

// CreateParams carries everything needed to open a new market.
type CreateParams struct {
	Metadata domain.Metadata
	Window   domain.Window
	Token    common.Address
	// FeeBps overrides the registry default when nonzero.
	FeeBps uint32
}

// Options configures a Registry at construction time.
type Options struct {
	DefaultFeeBps uint32
	FeeRecipient  common.Address
	// Now overrides the wall clock; nil means time.Now. Tests use this to
	// pin the vote window gates.
	Now func() time.Time
}

// Registry owns the collection of markets, allocates identifiers, and holds
// the process-wide fee defaults. All operations run through it; there is no
// other path to market state.
type Registry struct {
	mu            sync.RWMutex
	markets       map[uint64]*market
	nextID        uint64
	defaultFeeBps uint32
	feeRecipient  common.Address

	ledger domain.AssetLedger
	auth   domain.Authorizer
	sink   domain.EventSink
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry creates a Registry wired to its external collaborators.
func NewRegistry(ledger domain.AssetLedger, auth domain.Authorizer, sink domain.EventSink, logger *slog.Logger, opts Options) (*Registry, error) {
	if ledger == nil {
		return nil, fmt.Errorf("pool: asset ledger is required")
	}
	if auth == nil {
		return nil, fmt.Errorf("pool: authorizer is required")
	}
	if opts.DefaultFeeBps > domain.MaxFeeBps {
		return nil, fmt.Errorf("pool: default fee %d bps exceeds ceiling %d", opts.DefaultFeeBps, domain.MaxFeeBps)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		markets:       make(map[uint64]*market),
		defaultFeeBps: opts.DefaultFeeBps,
		feeRecipient:  opts.FeeRecipient,
		ledger:        ledger,
		auth:          auth,
		sink:          sink,
		logger:        logger.With(slog.String("component", "pool")),
		now:           now,
	}, nil
}

// emit delivers an event to the sink. Delivery is fire-and-forget: a sink
// failure is logged and the operation that produced the event still commits.
func (r *Registry) emit(ctx context.Context, ev domain.Event) {
	if r.sink == nil {
		return
	}
	if err := r.sink.Emit(ctx, ev); err != nil {
		r.logger.WarnContext(ctx, "pool: event emission failed",
			slog.String("event", string(ev.Type)),
			slog.Uint64("market_id", ev.MarketID),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Registry) requireAdmin(ctx context.Context, caller common.Address, op string) error {
	if !r.auth.IsAuthorizedAdmin(ctx, caller) {
		return fmt.Errorf("%w: %s is not an administrator (%s)", domain.ErrUnauthorized, caller, op)
	}
	return nil
}

func (r *Registry) market(id uint64) (*market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markets[id]
	if !ok {
		return nil, fmt.Errorf("%w: market %d", domain.ErrNotFound, id)
	}
	return m, nil
}

// CreateMarket allocates the next sequential id and stores a new market in
// its initial state. Admin-only. A zero FeeBps falls back to the registry's
// current default; existing markets are never affected.
func (r *Registry) CreateMarket(ctx context.Context, caller common.Address, p CreateParams) (domain.Market, error) {
	if err := r.requireAdmin(ctx, caller, "create market"); err != nil {
		return domain.Market{}, err
	}
	if p.Metadata.Title == "" {
		return domain.Market{}, fmt.Errorf("%w: market title is required", domain.ErrValidation)
	}
	if !p.Metadata.Category.Valid() {
		return domain.Market{}, fmt.Errorf("%w: unknown category %q", domain.ErrValidation, p.Metadata.Category)
	}
	if p.Token == (common.Address{}) {
		return domain.Market{}, fmt.Errorf("%w: staking token handle is required", domain.ErrValidation)
	}
	if p.FeeBps > domain.MaxFeeBps {
		return domain.Market{}, fmt.Errorf("%w: fee %d bps exceeds ceiling %d", domain.ErrValidation, p.FeeBps, domain.MaxFeeBps)
	}

	now := r.now()
	if p.Window.StartTime.Before(now) {
		return domain.Market{}, fmt.Errorf("%w: start time %s is in the past", domain.ErrValidation, p.Window.StartTime.UTC().Format(time.RFC3339))
	}
	if !p.Window.StartTime.Before(p.Window.EndTime) {
		return domain.Market{}, fmt.Errorf("%w: window duration must be positive", domain.ErrValidation)
	}

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	feeBps := p.FeeBps
	if feeBps == 0 {
		feeBps = r.defaultFeeBps
	}
	m := newMarket(id, p.Metadata, p.Window, p.Token, feeBps, now)
	r.markets[id] = m
	r.mu.Unlock()

	snap := m.snapshot()
	r.emit(ctx, domain.NewEvent(domain.EventMarketCreated, id, caller, now, map[string]any{
		"title":      p.Metadata.Title,
		"category":   string(p.Metadata.Category),
		"start_time": p.Window.StartTime.UTC(),
		"end_time":   p.Window.EndTime.UTC(),
		"token":      p.Token.Hex(),
		"fee_bps":    feeBps,
	}))

	r.logger.InfoContext(ctx, "pool: market created",
		slog.Uint64("market_id", id),
		slog.String("title", p.Metadata.Title),
	)
	return snap, nil
}

// SetDefaultFee updates the fee applied to future markets created without an
// explicit override. Admin-only; no retroactive effect.
func (r *Registry) SetDefaultFee(ctx context.Context, caller common.Address, bps uint32) error {
	if err := r.requireAdmin(ctx, caller, "set default fee"); err != nil {
		return err
	}
	if bps > domain.MaxFeeBps {
		return fmt.Errorf("%w: fee %d bps exceeds ceiling %d", domain.ErrValidation, bps, domain.MaxFeeBps)
	}

	r.mu.Lock()
	r.defaultFeeBps = bps
	r.mu.Unlock()

	r.emit(ctx, domain.NewEvent(domain.EventFeeUpdated, 0, caller, r.now(), map[string]any{
		"scope":   "default",
		"fee_bps": bps,
	}))
	return nil
}

// SetFeeRecipient updates the address protocol fees are paid to. Admin-only.
func (r *Registry) SetFeeRecipient(ctx context.Context, caller common.Address, recipient common.Address) error {
	if err := r.requireAdmin(ctx, caller, "set fee recipient"); err != nil {
		return err
	}
	if recipient == (common.Address{}) {
		return fmt.Errorf("%w: fee recipient cannot be the zero address", domain.ErrValidation)
	}

	r.mu.Lock()
	r.feeRecipient = recipient
	r.mu.Unlock()

	r.emit(ctx, domain.NewEvent(domain.EventFeeCollectorUpdate, 0, caller, r.now(), map[string]any{
		"collector": recipient.Hex(),
	}))
	return nil
}

// SetMarketFee updates one market's fee. Admin-only, and only while the
// market is unresolved: the fee freezes once resolution begins so payouts
// implied by accumulated stakes cannot be changed after the fact.
func (r *Registry) SetMarketFee(ctx context.Context, caller common.Address, marketID uint64, bps uint32) error {
	if err := r.requireAdmin(ctx, caller, "set market fee"); err != nil {
		return err
	}
	if bps > domain.MaxFeeBps {
		return fmt.Errorf("%w: fee %d bps exceeds ceiling %d", domain.ErrValidation, bps, domain.MaxFeeBps)
	}

	m, err := r.market(marketID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.outcome != domain.OutcomeUndecided {
		m.mu.Unlock()
		return fmt.Errorf("%w: market %d is resolved, fee is frozen", domain.ErrState, marketID)
	}
	m.feeBps = bps
	m.mu.Unlock()

	r.emit(ctx, domain.NewEvent(domain.EventFeeUpdated, marketID, caller, r.now(), map[string]any{
		"scope":   "market",
		"fee_bps": bps,
	}))
	return nil
}

// RecordVote stakes amount on one side of a market. The transfer into the
// pool happens after all checks pass and before the ledger mutation commits;
// a failed transfer aborts with no state change.
func (r *Registry) RecordVote(ctx context.Context, voter common.Address, marketID uint64, side domain.Side, amount uint64) (domain.Market, error) {
	m, err := r.market(marketID)
	if err != nil {
		return domain.Market{}, err
	}

	if err := m.begin(); err != nil {
		return domain.Market{}, err
	}
	defer m.end()

	now := r.now()

	m.mu.Lock()
	err = m.checkVote(now, amount)
	m.mu.Unlock()
	if err != nil {
		return domain.Market{}, err
	}

	// Interaction before commit: pull the stake in. busy blocks a re-entrant
	// vote from the transfer callback; nothing has mutated yet, so a failure
	// leaves no trace.
	if err := r.ledger.TransferIn(ctx, voter, amount); err != nil {
		return domain.Market{}, fmt.Errorf("%w: stake transfer from %s: %v", domain.ErrTransfer, voter, err)
	}

	m.mu.Lock()
	m.applyVote(voter, side, amount, now)
	snap := m.snapshot()
	m.mu.Unlock()

	r.emit(ctx, domain.NewEvent(domain.EventVoteCast, marketID, voter, now, map[string]any{
		"side":   side.String(),
		"amount": amount,
	}))
	return snap, nil
}

// Resolve sets a market's final outcome. Admin-only, only after the window
// has closed, and exactly once.
func (r *Registry) Resolve(ctx context.Context, caller common.Address, marketID uint64, outcome domain.Outcome, details string) (domain.Market, error) {
	if err := r.requireAdmin(ctx, caller, "resolve market"); err != nil {
		return domain.Market{}, err
	}
	if !outcome.Terminal() {
		return domain.Market{}, fmt.Errorf("%w: cannot resolve to %s", domain.ErrValidation, outcome)
	}

	m, err := r.market(marketID)
	if err != nil {
		return domain.Market{}, err
	}

	// Resolution takes the same per-market operation guard as votes and
	// claims: it must not land while a vote's stake transfer is outstanding,
	// or the late stake would commit onto a resolved market.
	if err := m.begin(); err != nil {
		return domain.Market{}, err
	}
	defer m.end()

	now := r.now()

	m.mu.Lock()
	if m.outcome != domain.OutcomeUndecided {
		m.mu.Unlock()
		return domain.Market{}, fmt.Errorf("%w: market %d already resolved to %s", domain.ErrState, marketID, m.outcome)
	}
	if now.Before(m.window.EndTime) {
		m.mu.Unlock()
		return domain.Market{}, fmt.Errorf("%w: market %d is open until %s", domain.ErrState, marketID, m.window.EndTime.UTC().Format(time.RFC3339))
	}
	m.outcome = outcome
	m.resolutionDetails = details
	m.resolvedAt = &now
	snap := m.snapshot()
	m.mu.Unlock()

	r.emit(ctx, domain.NewEvent(domain.EventMarketResolved, marketID, caller, now, map[string]any{
		"outcome": outcome.String(),
		"details": details,
	}))

	r.logger.InfoContext(ctx, "pool: market resolved",
		slog.Uint64("market_id", marketID),
		slog.String("outcome", outcome.String()),
	)
	return snap, nil
}

// Cancel force-resolves a market to Draw so every staker recovers principal.
// Admin-only; unlike Resolve it is callable at any time before resolution.
func (r *Registry) Cancel(ctx context.Context, caller common.Address, marketID uint64, reason string) (domain.Market, error) {
	if err := r.requireAdmin(ctx, caller, "cancel market"); err != nil {
		return domain.Market{}, err
	}

	m, err := r.market(marketID)
	if err != nil {
		return domain.Market{}, err
	}

	if err := m.begin(); err != nil {
		return domain.Market{}, err
	}
	defer m.end()

	now := r.now()

	m.mu.Lock()
	if m.outcome != domain.OutcomeUndecided {
		m.mu.Unlock()
		return domain.Market{}, fmt.Errorf("%w: market %d already resolved to %s", domain.ErrState, marketID, m.outcome)
	}
	m.outcome = domain.OutcomeDraw
	m.resolutionDetails = reason
	m.resolvedAt = &now
	snap := m.snapshot()
	m.mu.Unlock()

	r.emit(ctx, domain.NewEvent(domain.EventMarketCancelled, marketID, caller, now, map[string]any{
		"reason": reason,
	}))
	return snap, nil
}

// Claim pays out a participant's share of a resolved market. The claimed
// flag is set before the external transfers (checks-effects-interactions);
// if either transfer fails the flag and any moved value are rolled back and
// the claim fails as a whole.
func (r *Registry) Claim(ctx context.Context, claimant common.Address, marketID uint64) (reward, fee uint64, err error) {
	m, err := r.market(marketID)
	if err != nil {
		return 0, 0, err
	}

	if err := m.begin(); err != nil {
		return 0, 0, err
	}
	defer m.end()

	r.mu.RLock()
	feeRecipient := r.feeRecipient
	r.mu.RUnlock()

	m.mu.Lock()
	reward, fee, err = m.computeReward(claimant)
	if err != nil {
		m.mu.Unlock()
		return 0, 0, err
	}
	if fee > 0 && feeRecipient == (common.Address{}) {
		m.mu.Unlock()
		return 0, 0, fmt.Errorf("%w: fee recipient is not configured", domain.ErrState)
	}
	// Effect before interaction: a re-entrant claim from the transfer
	// callback sees hasClaimed and is rejected.
	m.positions[claimant].hasClaimed = true
	m.mu.Unlock()

	rollback := func() {
		m.mu.Lock()
		m.positions[claimant].hasClaimed = false
		m.mu.Unlock()
	}

	if err := r.ledger.TransferOut(ctx, claimant, reward); err != nil {
		rollback()
		return 0, 0, fmt.Errorf("%w: payout to %s: %v", domain.ErrTransfer, claimant, err)
	}

	if fee > 0 {
		if err := r.ledger.TransferOut(ctx, feeRecipient, fee); err != nil {
			// Best-effort compensation: pull the payout back so the claim
			// fails atomically.
			if revertErr := r.ledger.TransferIn(ctx, claimant, reward); revertErr != nil {
				rollback()
				return 0, 0, fmt.Errorf("%w: fee transfer failed and payout revert failed: %v (revert: %v)", domain.ErrTransfer, err, revertErr)
			}
			rollback()
			return 0, 0, fmt.Errorf("%w: fee transfer to %s: %v", domain.ErrTransfer, feeRecipient, err)
		}
	}

	now := r.now()
	r.emit(ctx, domain.NewEvent(domain.EventRewardClaimed, marketID, claimant, now, map[string]any{
		"reward": reward,
		"fee":    fee,
	}))

	r.logger.InfoContext(ctx, "pool: reward claimed",
		slog.Uint64("market_id", marketID),
		slog.String("claimant", claimant.Hex()),
		slog.Uint64("reward", reward),
		slog.Uint64("fee", fee),
	)
	return reward, fee, nil
}

// Market returns a snapshot of one market.
func (r *Registry) Market(_ context.Context, marketID uint64) (domain.Market, error) {
	m, err := r.market(marketID)
	if err != nil {
		return domain.Market{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot(), nil
}

// Stats returns the aggregate statistics of one market.
func (r *Registry) Stats(_ context.Context, marketID uint64) (domain.Stats, error) {
	m, err := r.market(marketID)
	if err != nil {
		return domain.Stats{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats, nil
}

// Position returns one participant's ledger entry in one market.
func (r *Registry) Position(_ context.Context, marketID uint64, addr common.Address) (domain.Position, error) {
	m, err := r.market(marketID)
	if err != nil {
		return domain.Position{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positionOf(addr), nil
}

// Markets returns snapshots ordered by id, paginated.
func (r *Registry) Markets(_ context.Context, opts domain.ListOpts) []domain.Market {
	r.mu.RLock()
	ids := make([]uint64, 0, len(r.markets))
	for id := range r.markets {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if opts.Offset > 0 {
		if opts.Offset >= len(ids) {
			return nil
		}
		ids = ids[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(ids) {
		ids = ids[:opts.Limit]
	}

	out := make([]domain.Market, 0, len(ids))
	for _, id := range ids {
		r.mu.RLock()
		m := r.markets[id]
		r.mu.RUnlock()
		m.mu.Lock()
		out = append(out, m.snapshot())
		m.mu.Unlock()
	}
	return out
}

// Count returns the number of markets ever created.
func (r *Registry) Count(_ context.Context) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.markets))
}

// DefaultFeeBps returns the current default fee for new markets.
func (r *Registry) DefaultFeeBps() uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultFeeBps
}

// FeeRecipient returns the configured protocol-fee recipient.
func (r *Registry) FeeRecipient() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feeRecipient
}
