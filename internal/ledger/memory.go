// Package ledger provides asset-transfer collaborators for the pool core.
// The in-memory implementation backs dev mode and tests; production
// deployments plug a custody or chain adapter behind the same interface.
package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/wagerpool/internal/domain"
)

// Memory is an in-process balance ledger. Transfers are all-or-nothing:
// a failed call leaves every balance untouched.
type Memory struct {
	mu       sync.Mutex
	balances map[common.Address]uint64
	escrowed uint64 // value currently held by the pool
}

// NewMemory creates an empty ledger.
func NewMemory() *Memory {
	return &Memory{balances: make(map[common.Address]uint64)}
}

// Credit mints amount into an address, used to seed dev-mode balances.
func (l *Memory) Credit(addr common.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount > math.MaxUint64-l.balances[addr] {
		return fmt.Errorf("ledger: credit overflows balance of %s", addr)
	}
	l.balances[addr] += amount
	return nil
}

// Balance returns the free (non-escrowed) balance of an address.
func (l *Memory) Balance(addr common.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr]
}

// Escrowed returns the value currently held by the pool.
func (l *Memory) Escrowed() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.escrowed
}

// TransferIn moves amount from the participant into the pool escrow.
func (l *Memory) TransferIn(_ context.Context, from common.Address, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("ledger: transfer amount cannot be zero")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balances[from]
	if balance < amount {
		return fmt.Errorf("ledger: insufficient balance for %s: has %d, needs %d", from, balance, amount)
	}
	if amount > math.MaxUint64-l.escrowed {
		return fmt.Errorf("ledger: escrow overflow")
	}

	l.balances[from] = balance - amount
	l.escrowed += amount
	return nil
}

// TransferOut moves amount from the pool escrow to the recipient.
func (l *Memory) TransferOut(_ context.Context, to common.Address, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("ledger: transfer amount cannot be zero")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.escrowed < amount {
		return fmt.Errorf("ledger: insufficient escrow: has %d, needs %d", l.escrowed, amount)
	}
	if amount > math.MaxUint64-l.balances[to] {
		return fmt.Errorf("ledger: payout overflows balance of %s", to)
	}

	l.escrowed -= amount
	l.balances[to] += amount
	return nil
}

// Compile-time interface check.
var _ domain.AssetLedger = (*Memory)(nil)
