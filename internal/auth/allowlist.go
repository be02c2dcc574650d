// Package auth implements the authorization collaborator consulted before
// every administrative pool operation.
package auth

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/wagerpool/internal/domain"
)

// Allowlist authorizes a fixed set of administrator addresses loaded from
// configuration. Membership is immutable after construction; rotating admins
// is a config change plus restart, never a runtime mutation.
type Allowlist struct {
	admins map[common.Address]struct{}
}

// NewAllowlist parses hex addresses into an Allowlist. Invalid or zero
// addresses are rejected rather than silently skipped.
func NewAllowlist(addrs []string) (*Allowlist, error) {
	admins := make(map[common.Address]struct{}, len(addrs))
	for _, raw := range addrs {
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("auth: invalid admin address %q", raw)
		}
		addr := common.HexToAddress(raw)
		if addr == (common.Address{}) {
			return nil, fmt.Errorf("auth: zero address cannot be an admin")
		}
		admins[addr] = struct{}{}
	}
	return &Allowlist{admins: admins}, nil
}

// IsAuthorizedAdmin reports whether caller is on the allowlist.
func (a *Allowlist) IsAuthorizedAdmin(_ context.Context, caller common.Address) bool {
	_, ok := a.admins[caller]
	return ok
}

// Compile-time interface check.
var _ domain.Authorizer = (*Allowlist)(nil)
