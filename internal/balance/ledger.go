// Package balance defines the contract glacier requires from the
// external frozen-balance accounting ledger, plus the in-memory
// implementation used by the server and tests. Token semantics and
// numeric precision beyond uint64 belong to the external system.
package balance

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// ErrInsufficientFrozen is returned when a decrease or transfer exceeds
// the account's frozen balance
var ErrInsufficientFrozen = errors.New("insufficient frozen balance")

// ErrBalanceOverflow is returned when an increase would wrap uint64
var ErrBalanceOverflow = errors.New("frozen balance overflow")

// Ledger is the consumed interface. Every mutator returns the account's
// new and old frozen balance; for transfers the pair refers to the
// recipient. Implementations must be safe for concurrent use.
type Ledger interface {
	SetFrozen(account string, amount uint64) (newBalance, oldBalance uint64, err error)
	IncreaseFrozen(account string, amount uint64) (newBalance, oldBalance uint64, err error)
	DecreaseFrozen(account string, amount uint64) (newBalance, oldBalance uint64, err error)
	TransferFrozen(from, to string, amount uint64) (newBalance, oldBalance uint64, err error)
	QueryFrozen(account string) uint64
}

// Memory is an in-process Ledger backed by a map.
type Memory struct {
	mu       sync.RWMutex
	balances map[string]uint64
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{balances: make(map[string]uint64)}
}

// SetFrozen replaces the account's frozen balance.
func (m *Memory) SetFrozen(account string, amount uint64) (uint64, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.balances[account]
	m.balances[account] = amount
	return amount, old, nil
}

// IncreaseFrozen adds amount to the account's frozen balance.
func (m *Memory) IncreaseFrozen(account string, amount uint64) (uint64, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.balances[account]
	if amount > math.MaxUint64-old {
		return 0, 0, fmt.Errorf("increase %q by %d: %w", account, amount, ErrBalanceOverflow)
	}
	m.balances[account] = old + amount
	return old + amount, old, nil
}

// DecreaseFrozen subtracts amount from the account's frozen balance.
func (m *Memory) DecreaseFrozen(account string, amount uint64) (uint64, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.balances[account]
	if amount > old {
		return 0, 0, fmt.Errorf("decrease %q by %d (have %d): %w",
			account, amount, old, ErrInsufficientFrozen)
	}
	m.balances[account] = old - amount
	return old - amount, old, nil
}

// TransferFrozen moves amount from one frozen balance to another. The
// returned pair is the recipient's new and old balance.
func (m *Memory) TransferFrozen(from, to string, amount uint64) (uint64, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fromOld := m.balances[from]
	if amount > fromOld {
		return 0, 0, fmt.Errorf("transfer %d from %q (have %d): %w",
			amount, from, fromOld, ErrInsufficientFrozen)
	}
	toOld := m.balances[to]
	if amount > math.MaxUint64-toOld {
		return 0, 0, fmt.Errorf("transfer %d to %q: %w", amount, to, ErrBalanceOverflow)
	}
	m.balances[from] = fromOld - amount
	m.balances[to] = toOld + amount
	return toOld + amount, toOld, nil
}

// QueryFrozen returns the account's frozen balance, zero if unknown.
func (m *Memory) QueryFrozen(account string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[account]
}
