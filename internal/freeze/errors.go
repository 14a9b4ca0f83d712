package freeze

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/dreamware/glacier/internal/ledger"
)

// ErrPaused is returned while the global pause flag is set
var ErrPaused = errors.New("system is paused")

// ErrKeyZero is returned when an operation carries the zero key
var ErrKeyZero = errors.New("operation key must not be zero")

// ErrAmountInvalid is returned for a missing or negative amount
var ErrAmountInvalid = errors.New("amount must be a non-negative integer")

// UnauthorizedError reports the offending account and the capability it
// would have needed.
type UnauthorizedError struct {
	Account    string
	Capability string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("account %q does not hold capability %q", e.Account, e.Capability)
}

// AmountExcessError carries the offending value for diagnostics: the
// amount does not fit the configured bit width.
type AmountExcessError struct {
	Amount *big.Int
	Bits   uint
}

func (e *AmountExcessError) Error() string {
	return fmt.Sprintf("amount %s exceeds %d-bit bound", e.Amount, e.Bits)
}

// AlreadyExecutedError reports an idempotency conflict: the key was
// applied before. Distinct from generic failures so callers can treat
// retries as benign.
type AlreadyExecutedError struct {
	Key ledger.Key
}

func (e *AlreadyExecutedError) Error() string {
	return fmt.Sprintf("operation %s already executed", e.Key)
}

// ShardError wraps an unrecognized registry failure with the shard index
// and key for forensics. Never swallowed.
type ShardError struct {
	Err   error
	Key   ledger.Key
	Shard int
}

func (e *ShardError) Error() string {
	return fmt.Sprintf("shard %d rejected operation %s: %v", e.Shard, e.Key, e.Err)
}

func (e *ShardError) Unwrap() error { return e.Err }
