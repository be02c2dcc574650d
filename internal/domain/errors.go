package domain

import "errors"

// Error taxonomy for the accounting core. Every operation failure wraps
// exactly one of these sentinels together with a human-readable reason, so
// callers can branch on errors.Is while operators still get the full story.
// A failed operation never leaves partial state behind.
var (
	// ErrValidation covers bad parameters: timing, fee out of range, zero
	// amounts, invalid outcome or side values.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized is returned when the caller lacks the administrative
	// capability required by the operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrState marks operations that are invalid for the current lifecycle
	// state: voting outside the window, resolving twice, claiming an
	// unresolved or already-claimed market, a computed zero reward.
	ErrState = errors.New("invalid state")

	// ErrTransfer is returned when the external asset collaborator fails to
	// move value; the enclosing operation aborts with no partial effect.
	ErrTransfer = errors.New("transfer failed")

	// ErrNotFound is returned for lookups of unknown markets or positions.
	ErrNotFound = errors.New("not found")
)
