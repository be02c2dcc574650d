package pool

import (
	"fmt"
	"math/bits"

	"github.com/alanyoungcy/wagerpool/internal/domain"
)

// proRataReward computes the winner's share of the entire pool:
//
//	reward = winningStake * pool / winningTotal
//
// The multiplication runs at full 128-bit width before dividing so precision
// is never lost to intermediate truncation. The quotient always fits in a
// uint64 when winningStake <= winningTotal (the share can never exceed the
// pool); stakes that violate that are corrupted state and are rejected.
func proRataReward(winningStake, winningTotal, pool uint64) (uint64, error) {
	if winningTotal == 0 {
		return 0, fmt.Errorf("%w: winning side has no stake", domain.ErrState)
	}
	if winningStake > winningTotal {
		return 0, fmt.Errorf("%w: stake %d exceeds winning side total %d", domain.ErrState, winningStake, winningTotal)
	}
	hi, lo := bits.Mul64(winningStake, pool)
	if hi >= winningTotal {
		// Unreachable given the stake check above; guards Div64's panic.
		return 0, fmt.Errorf("%w: reward computation overflows", domain.ErrState)
	}
	quo, _ := bits.Div64(hi, lo, winningTotal)
	return quo, nil
}

// feeCut returns the protocol fee on a reward in basis points, truncating
// toward zero. Safe at full range: feeBps < 10000 keeps the 128-bit quotient
// strictly below reward.
func feeCut(reward uint64, feeBps uint32) uint64 {
	if feeBps == 0 {
		return 0
	}
	hi, lo := bits.Mul64(reward, uint64(feeBps))
	quo, _ := bits.Div64(hi, lo, domain.FeeDenominator)
	return quo
}

// nextRunningAvg folds one more vote amount into the integer-truncated
// running mean. n is the transaction count after the new vote. The exact
// incremental form avg=(avg*(n-1)+amount)/n is deliberate: it matches the
// historical accumulator bit-for-bit, including its truncation drift on
// non-uniform amounts, and must not be "fixed" to a full recomputation.
func nextRunningAvg(avg, n, amount uint64) uint64 {
	if n == 0 {
		return 0
	}
	return (avg*(n-1) + amount) / n
}
