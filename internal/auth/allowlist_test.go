package auth

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestAllowlist(t *testing.T) {
	a, err := NewAllowlist([]string{
		"0x00000000000000000000000000000000000000a1",
		"0x00000000000000000000000000000000000000A2", // case-insensitive hex
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.True(t, a.IsAuthorizedAdmin(ctx, common.HexToAddress("0xa1")))
	require.True(t, a.IsAuthorizedAdmin(ctx, common.HexToAddress("0xA2")))
	require.False(t, a.IsAuthorizedAdmin(ctx, common.HexToAddress("0xa3")))
	require.False(t, a.IsAuthorizedAdmin(ctx, common.Address{}))
}

func TestAllowlistRejectsBadInput(t *testing.T) {
	_, err := NewAllowlist([]string{"not-an-address"})
	require.Error(t, err)

	_, err = NewAllowlist([]string{"0x0000000000000000000000000000000000000000"})
	require.Error(t, err)
}
