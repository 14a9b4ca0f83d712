// Package access is the capability store gating the facade layer. It
// tracks named capability grants per account and the global pause flag.
package access

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dreamware/glacier/internal/event"
)

// Capability names used by glacier. The store itself is generic; these
// are the three the facade and coordinator check.
const (
	CapFreezer = "freezer"
	CapOwner   = "owner"
	CapPauser  = "pauser"
)

// ErrNotOwner is returned when a grant/revoke caller lacks owner
var ErrNotOwner = errors.New("caller does not hold owner capability")

// ErrNotPauser is returned when a pause/unpause caller lacks pauser
var ErrNotPauser = errors.New("caller does not hold pauser capability")

// ErrAccountZero is returned when a grant targets the empty account
var ErrAccountZero = errors.New("account must not be empty")

// Store holds capability grants and the pause flag. All methods are safe
// for concurrent use.
type Store struct {
	mu     sync.RWMutex
	grants map[string]map[string]bool // capability -> account -> granted
	bus    *event.Bus
	paused bool
}

// NewStore creates a capability store with owner seeded to rootAccount.
// The owner capability administrates all others, including itself.
func NewStore(rootAccount string, bus *event.Bus) *Store {
	return &Store{
		grants: map[string]map[string]bool{
			CapOwner: {rootAccount: true},
		},
		bus: bus,
	}
}

// Has reports whether account holds capability.
func (s *Store) Has(capability, account string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grants[capability][account]
}

// Grant gives capability to account. Idempotent: granting what is already
// granted is a no-op and emits no event. Only owners may grant.
func (s *Store) Grant(caller, capability, account string) error {
	return s.set(caller, capability, account, true)
}

// Revoke removes capability from account. Idempotent like Grant.
func (s *Store) Revoke(caller, capability, account string) error {
	return s.set(caller, capability, account, false)
}

func (s *Store) set(caller, capability, account string, granted bool) error {
	if account == "" {
		return ErrAccountZero
	}

	s.mu.Lock()
	if !s.grants[CapOwner][caller] {
		s.mu.Unlock()
		return fmt.Errorf("%s %q for %q: %w", verb(granted), capability, caller, ErrNotOwner)
	}
	if s.grants[capability][account] == granted {
		s.mu.Unlock()
		return nil
	}
	if s.grants[capability] == nil {
		s.grants[capability] = make(map[string]bool)
	}
	if granted {
		s.grants[capability][account] = true
	} else {
		delete(s.grants[capability], account)
	}
	s.mu.Unlock()

	s.bus.Publish(event.RoleChanged{Account: account, Capability: capability, Granted: granted})
	return nil
}

func verb(granted bool) string {
	if granted {
		return "grant"
	}
	return "revoke"
}

// IsPaused reports the global pause flag. The facade checks this before
// admitting any operation.
func (s *Store) IsPaused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

// Pause sets the global pause flag. Pauser-only.
func (s *Store) Pause(caller string) error {
	return s.setPaused(caller, true)
}

// Unpause clears the global pause flag. Pauser-only.
func (s *Store) Unpause(caller string) error {
	return s.setPaused(caller, false)
}

func (s *Store) setPaused(caller string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.grants[CapPauser][caller] && !s.grants[CapOwner][caller] {
		return fmt.Errorf("pause by %q: %w", caller, ErrNotPauser)
	}
	s.paused = paused
	return nil
}
