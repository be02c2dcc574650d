package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MaxFeeBps is the protocol-wide fee ceiling: 3000 basis points (30%).
const MaxFeeBps uint32 = 3000

// FeeDenominator converts basis points into a fraction (10000 bps = 100%).
const FeeDenominator uint64 = 10000

// Side is one of the two positions a participant can stake on.
type Side uint8

const (
	SideYes Side = iota
	SideNo
)

func (s Side) String() string {
	switch s {
	case SideYes:
		return "yes"
	case SideNo:
		return "no"
	default:
		return fmt.Sprintf("unknown_side:%d", uint8(s))
	}
}

// ParseSide converts a wire-level side string into a Side.
func ParseSide(s string) (Side, error) {
	switch s {
	case "yes":
		return SideYes, nil
	case "no":
		return SideNo, nil
	default:
		return 0, fmt.Errorf("%w: side must be \"yes\" or \"no\", got %q", ErrValidation, s)
	}
}

// Outcome is the resolution value of a market. It starts Undecided and
// transitions exactly once to Yes, No, or Draw.
type Outcome uint8

const (
	OutcomeUndecided Outcome = iota
	OutcomeYes
	OutcomeNo
	OutcomeDraw
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUndecided:
		return "undecided"
	case OutcomeYes:
		return "yes"
	case OutcomeNo:
		return "no"
	case OutcomeDraw:
		return "draw"
	default:
		return fmt.Sprintf("unknown_outcome:%d", uint8(o))
	}
}

// Terminal reports whether o is a final resolution value.
func (o Outcome) Terminal() bool {
	return o == OutcomeYes || o == OutcomeNo || o == OutcomeDraw
}

// MarshalJSON renders the outcome as its string form so snapshots and events
// stay readable for indexers.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return []byte(`"` + o.String() + `"`), nil
}

// UnmarshalJSON accepts the string forms produced by MarshalJSON, plus
// "undecided" for round-tripping unresolved snapshots.
func (o *Outcome) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "undecided" {
		*o = OutcomeUndecided
		return nil
	}
	parsed, err := ParseOutcome(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ParseOutcome converts a wire-level outcome string into an Outcome. Only
// terminal outcomes parse; "undecided" is never a valid resolution request.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "yes":
		return OutcomeYes, nil
	case "no":
		return OutcomeNo, nil
	case "draw":
		return OutcomeDraw, nil
	default:
		return 0, fmt.Errorf("%w: outcome must be \"yes\", \"no\", or \"draw\", got %q", ErrValidation, s)
	}
}

// Category classifies a market for discovery and filtering.
type Category string

const (
	CategoryGeneral    Category = "general"
	CategorySports     Category = "sports"
	CategoryPolitics   Category = "politics"
	CategoryFinance    Category = "finance"
	CategoryTechnology Category = "technology"
	CategoryOther      Category = "other"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryGeneral, CategorySports, CategoryPolitics,
		CategoryFinance, CategoryTechnology, CategoryOther:
		return true
	default:
		return false
	}
}

// Metadata is the immutable descriptive payload attached to a market at
// creation time.
type Metadata struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	ResolutionSource string   `json:"resolution_source"`
	Category         Category `json:"category"`
	Tags             []string `json:"tags,omitempty"`
}

// Window is the absolute time interval during which votes are accepted.
// Votes are valid in [StartTime, EndTime).
type Window struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Stats holds the aggregate statistics maintained incrementally on every
// successful vote.
type Stats struct {
	UniqueVoters      uint64         `json:"unique_voters"`
	TotalTransactions uint64         `json:"total_transactions"`
	AvgVoteAmount     uint64         `json:"avg_vote_amount"`
	LargestVote       uint64         `json:"largest_vote"`
	LargestVoter      common.Address `json:"largest_voter"`
	LastUpdateTime    time.Time      `json:"last_update_time"`
}

// Position is one participant's ledger entry in a single market.
type Position struct {
	YesAmount  uint64 `json:"yes_amount"`
	NoAmount   uint64 `json:"no_amount"`
	HasVoted   bool   `json:"has_voted"`
	HasClaimed bool   `json:"has_claimed"`
}

// Market is the externally visible snapshot of one wagering proposition.
// The authoritative mutable state lives inside the pool package; handlers,
// stores, caches, and archives all work with this value.
type Market struct {
	ID       uint64         `json:"id"`
	Metadata Metadata       `json:"metadata"`
	Window   Window         `json:"window"`
	Token    common.Address `json:"token"` // external asset handle staked into the pool
	FeeBps   uint32         `json:"fee_bps"`

	Outcome           Outcome    `json:"outcome"`
	ResolutionDetails string     `json:"resolution_details,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`

	TotalYesAmount uint64 `json:"total_yes_amount"`
	TotalNoAmount  uint64 `json:"total_no_amount"`

	Stats Stats `json:"stats"`

	FeeClaimed bool      `json:"fee_claimed"`
	CreatedAt  time.Time `json:"created_at"`
}

// Pool returns the combined stake on both sides.
func (m Market) Pool() uint64 {
	return m.TotalYesAmount + m.TotalNoAmount
}

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}
