package pool

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/wagerpool/internal/domain"
)

func TestProRataRewardBasic(t *testing.T) {
	reward, err := proRataReward(30, 100, 200)
	require.NoError(t, err)
	require.Equal(t, uint64(60), reward)

	// Sole winner takes the whole pool.
	reward, err = proRataReward(100, 100, 250)
	require.NoError(t, err)
	require.Equal(t, uint64(250), reward)

	// Truncates toward zero.
	reward, err = proRataReward(1, 3, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(3), reward)
}

func TestProRataRewardMultiplyBeforeDivide(t *testing.T) {
	// Dividing first would truncate 7/9 to 0; the 128-bit product must
	// survive even when stake*pool exceeds 64 bits.
	reward, err := proRataReward(7, 9, 27)
	require.NoError(t, err)
	require.Equal(t, uint64(21), reward)

	big := uint64(math.MaxUint64 / 2)
	reward, err = proRataReward(big, big, math.MaxUint64)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), reward)
}

func TestProRataRewardGuards(t *testing.T) {
	_, err := proRataReward(10, 0, 100)
	require.ErrorIs(t, err, domain.ErrState)

	_, err = proRataReward(11, 10, 100)
	require.ErrorIs(t, err, domain.ErrState)
}

func TestFeeCut(t *testing.T) {
	require.Zero(t, feeCut(1000, 0))
	require.Equal(t, uint64(25), feeCut(1000, 250))
	require.Equal(t, uint64(300), feeCut(1000, 3000))

	// Truncates: 99 * 250 / 10000 = 2.475 -> 2.
	require.Equal(t, uint64(2), feeCut(99, 250))

	// No overflow near the top of the range.
	require.Equal(t, uint64(math.MaxUint64)/domain.FeeDenominator*3000+
		uint64(math.MaxUint64)%domain.FeeDenominator*3000/domain.FeeDenominator,
		feeCut(math.MaxUint64, 3000))
}

func TestNextRunningAvgMatchesIncrementalFormula(t *testing.T) {
	amounts := []uint64{5, 5, 5, 5}
	var avg uint64
	for i, a := range amounts {
		avg = nextRunningAvg(avg, uint64(i+1), a)
	}
	require.Equal(t, uint64(5), avg)

	// Non-uniform distributions accumulate truncation drift; that drift is
	// part of the contract, not something to correct.
	avg = 0
	avg = nextRunningAvg(avg, 1, 10) // 10
	avg = nextRunningAvg(avg, 2, 1)  // (10+1)/2 = 5
	avg = nextRunningAvg(avg, 3, 1)  // (5*2+1)/3 = 3, while floor((10+1+1)/3) = 4
	require.Equal(t, uint64(3), avg)

	require.Zero(t, nextRunningAvg(0, 0, 99))
}
