package ledger

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x0000000000000000000000000000000000000001")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

func TestTransferInAndOut(t *testing.T) {
	ctx := context.Background()
	l := NewMemory()
	require.NoError(t, l.Credit(alice, 1000))

	require.NoError(t, l.TransferIn(ctx, alice, 400))
	require.Equal(t, uint64(600), l.Balance(alice))
	require.Equal(t, uint64(400), l.Escrowed())

	require.NoError(t, l.TransferOut(ctx, bob, 150))
	require.Equal(t, uint64(150), l.Balance(bob))
	require.Equal(t, uint64(250), l.Escrowed())
}

func TestTransferInInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	l := NewMemory()
	require.NoError(t, l.Credit(alice, 100))

	err := l.TransferIn(ctx, alice, 101)
	require.Error(t, err)

	// Failed transfer moved nothing.
	require.Equal(t, uint64(100), l.Balance(alice))
	require.Zero(t, l.Escrowed())
}

func TestTransferOutInsufficientEscrow(t *testing.T) {
	ctx := context.Background()
	l := NewMemory()
	require.NoError(t, l.Credit(alice, 100))
	require.NoError(t, l.TransferIn(ctx, alice, 100))

	require.Error(t, l.TransferOut(ctx, bob, 101))
	require.Equal(t, uint64(100), l.Escrowed())
	require.Zero(t, l.Balance(bob))
}

func TestZeroAmountRejected(t *testing.T) {
	ctx := context.Background()
	l := NewMemory()
	require.Error(t, l.TransferIn(ctx, alice, 0))
	require.Error(t, l.TransferOut(ctx, alice, 0))
}
