package pool

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/wagerpool/internal/domain"
)

// position is one participant's mutable ledger entry.
type position struct {
	yesAmount  uint64
	noAmount   uint64
	hasVoted   bool
	hasClaimed bool
}

// market is the authoritative mutable state of one proposition.
//
// Locking: mu guards every field access; busy is the per-market re-entrancy
// lock. An operation sets busy under mu, releases mu while it talks to the
// external asset ledger, and commits its mutations under mu again. A second
// RecordVote/Claim arriving while busy is held (including one triggered by a
// re-entrant transfer callback) is rejected instead of deadlocking. busy is
// cleared unconditionally on exit.
type market struct {
	mu   sync.Mutex
	busy bool

	id       uint64
	metadata domain.Metadata
	window   domain.Window
	token    common.Address
	feeBps   uint32

	outcome           domain.Outcome
	resolutionDetails string
	resolvedAt        *time.Time

	totalYes uint64
	totalNo  uint64

	stats     domain.Stats
	positions map[common.Address]*position

	feeClaimed bool
	createdAt  time.Time
}

func newMarket(id uint64, md domain.Metadata, w domain.Window, token common.Address, feeBps uint32, createdAt time.Time) *market {
	return &market{
		id:        id,
		metadata:  md,
		window:    w,
		token:     token,
		feeBps:    feeBps,
		outcome:   domain.OutcomeUndecided,
		positions: make(map[common.Address]*position),
		createdAt: createdAt,
	}
}

// begin acquires the re-entrancy lock.
func (m *market) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return fmt.Errorf("%w: market %d has an operation in progress", domain.ErrState, m.id)
	}
	m.busy = true
	return nil
}

// end releases the re-entrancy lock. Safe to defer on every path.
func (m *market) end() {
	m.mu.Lock()
	m.busy = false
	m.mu.Unlock()
}

// checkVote validates a vote without mutating anything. Caller holds mu.
func (m *market) checkVote(now time.Time, amount uint64) error {
	if m.outcome != domain.OutcomeUndecided {
		return fmt.Errorf("%w: market %d already resolved to %s", domain.ErrState, m.id, m.outcome)
	}
	if now.Before(m.window.StartTime) {
		return fmt.Errorf("%w: market %d voting opens at %s", domain.ErrState, m.id, m.window.StartTime.UTC().Format(time.RFC3339))
	}
	if !now.Before(m.window.EndTime) {
		return fmt.Errorf("%w: market %d voting closed at %s", domain.ErrState, m.id, m.window.EndTime.UTC().Format(time.RFC3339))
	}
	if amount == 0 {
		return fmt.Errorf("%w: vote amount must be positive", domain.ErrValidation)
	}
	if amount > math.MaxUint64-m.totalYes-m.totalNo {
		return fmt.Errorf("%w: vote amount would overflow the pool total", domain.ErrValidation)
	}
	return nil
}

// applyVote commits a validated vote to the ledger and statistics.
// Caller holds mu; the external transfer has already succeeded.
func (m *market) applyVote(voter common.Address, side domain.Side, amount uint64, now time.Time) {
	pos, ok := m.positions[voter]
	if !ok {
		pos = &position{}
		m.positions[voter] = pos
	}

	switch side {
	case domain.SideYes:
		pos.yesAmount += amount
		m.totalYes += amount
	case domain.SideNo:
		pos.noAmount += amount
		m.totalNo += amount
	}

	if !pos.hasVoted {
		pos.hasVoted = true
		m.stats.UniqueVoters++
	}
	m.stats.TotalTransactions++
	m.stats.AvgVoteAmount = nextRunningAvg(m.stats.AvgVoteAmount, m.stats.TotalTransactions, amount)
	if amount > m.stats.LargestVote {
		m.stats.LargestVote = amount
		m.stats.LargestVoter = voter
	}
	m.stats.LastUpdateTime = now
}

// computeReward determines the payout and fee for a claimant. Caller holds
// mu. It mutates nothing; claims commit separately once the amounts are
// known.
func (m *market) computeReward(claimant common.Address) (reward, fee uint64, err error) {
	if !m.outcome.Terminal() {
		return 0, 0, fmt.Errorf("%w: market %d is not resolved", domain.ErrState, m.id)
	}

	// No position is a no-reward claim, the same state failure as holding
	// only losing-side stake.
	pos, ok := m.positions[claimant]
	if !ok || !pos.hasVoted {
		return 0, 0, fmt.Errorf("%w: no position for %s in market %d", domain.ErrState, claimant, m.id)
	}
	if pos.hasClaimed {
		return 0, 0, fmt.Errorf("%w: %s already claimed market %d", domain.ErrState, claimant, m.id)
	}

	if m.outcome == domain.OutcomeDraw {
		// Push: full refund of both-side stake, no fee. A cancellation is
		// semantically a Draw, so principal always round-trips intact.
		refund := pos.yesAmount + pos.noAmount
		if refund == 0 {
			return 0, 0, fmt.Errorf("%w: nothing staked, nothing to refund", domain.ErrState)
		}
		return refund, 0, nil
	}

	var winningStake, winningTotal uint64
	if m.outcome == domain.OutcomeYes {
		winningStake, winningTotal = pos.yesAmount, m.totalYes
	} else {
		winningStake, winningTotal = pos.noAmount, m.totalNo
	}
	if winningStake == 0 {
		return 0, 0, fmt.Errorf("%w: %s holds no winning-side stake in market %d", domain.ErrState, claimant, m.id)
	}

	reward, err = proRataReward(winningStake, winningTotal, m.totalYes+m.totalNo)
	if err != nil {
		return 0, 0, err
	}
	if reward == 0 {
		return 0, 0, fmt.Errorf("%w: computed reward is zero", domain.ErrState)
	}

	fee = feeCut(reward, m.feeBps)
	return reward - fee, fee, nil
}

// snapshot renders the market as an immutable domain value. Caller holds mu.
func (m *market) snapshot() domain.Market {
	md := m.metadata
	md.Tags = append([]string(nil), m.metadata.Tags...)

	snap := domain.Market{
		ID:                m.id,
		Metadata:          md,
		Window:            m.window,
		Token:             m.token,
		FeeBps:            m.feeBps,
		Outcome:           m.outcome,
		ResolutionDetails: m.resolutionDetails,
		TotalYesAmount:    m.totalYes,
		TotalNoAmount:     m.totalNo,
		Stats:             m.stats,
		FeeClaimed:        m.feeClaimed,
		CreatedAt:         m.createdAt,
	}
	if m.resolvedAt != nil {
		at := *m.resolvedAt
		snap.ResolvedAt = &at
	}
	return snap
}

// positionOf renders a participant's ledger entry. Caller holds mu.
// Unknown participants read as the zero position, matching a ledger that
// treats absence as zero balances.
func (m *market) positionOf(addr common.Address) domain.Position {
	pos, ok := m.positions[addr]
	if !ok {
		return domain.Position{}
	}
	return domain.Position{
		YesAmount:  pos.yesAmount,
		NoAmount:   pos.noAmount,
		HasVoted:   pos.hasVoted,
		HasClaimed: pos.hasClaimed,
	}
}
