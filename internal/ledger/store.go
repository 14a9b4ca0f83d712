package ledger

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dreamware/glacier/internal/event"
)

// ErrAlreadyRegistered is returned when a record for the key already
// exists. This is the at-most-once guarantee: the first insert wins and
// every later attempt fails without mutating anything.
var ErrAlreadyRegistered = errors.New("operation already registered")

// ErrNotAdmin is returned when the caller is not in the shard's admin set
var ErrNotAdmin = errors.New("caller is not a shard admin")

// ErrInvalidStatus is returned when an insert carries a non-terminal status
var ErrInvalidStatus = errors.New("operation status must be terminal")

// ErrVersionZero is returned when an upgrade targets the empty version
var ErrVersionZero = errors.New("shard version must not be empty")

// ErrAccountZero is returned when an admin change targets the empty account
var ErrAccountZero = errors.New("account must not be empty")

// Store is one shard of the operation registry. It owns its records and
// its admin set exclusively; the root coordinator reaches them only
// through these methods.
//
// All methods are safe for concurrent use. RegisterOperation serializes
// the check-then-insert under the shard mutex so that concurrent callers
// with the same key are linearized and exactly one succeeds.
type Store struct {
	mu      sync.RWMutex
	records map[Key]Operation
	admins  map[string]bool
	version string
	bus     *event.Bus
	stats   StoreStats
	id      int
}

// StoreStats tracks operation counts for a shard
type StoreStats struct {
	Registers uint64 // successful inserts
	Conflicts uint64 // inserts rejected as already registered
	Lookups   uint64 // record reads
}

// StoreInfo contains metadata about a shard
type StoreInfo struct {
	Version     string // active code version pointer
	ID          int    // shard identifier
	RecordCount int    // number of registered operations
}

// NewStore creates a shard store. The root account is seeded as the first
// admin so the coordinator can always reach its own shards.
func NewStore(id int, rootAccount, version string, bus *event.Bus) *Store {
	return &Store{
		id:      id,
		records: make(map[Key]Operation),
		admins:  map[string]bool{rootAccount: true},
		version: version,
		bus:     bus,
	}
}

// RegisterOperation performs the atomic check-and-insert. If a record for
// op.Key exists it returns ErrAlreadyRegistered and mutates nothing.
// Only admins may insert.
func (s *Store) RegisterOperation(caller string, op Operation) error {
	if !op.Status.Terminal() {
		return fmt.Errorf("register %s: %w", op.Key, ErrInvalidStatus)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.admins[caller] {
		return fmt.Errorf("register %s by %q: %w", op.Key, caller, ErrNotAdmin)
	}
	if existing, ok := s.records[op.Key]; ok && existing.Status.Terminal() {
		atomic.AddUint64(&s.stats.Conflicts, 1)
		return fmt.Errorf("register %s: %w", op.Key, ErrAlreadyRegistered)
	}

	s.records[op.Key] = op
	atomic.AddUint64(&s.stats.Registers, 1)
	return nil
}

// Operation returns the record for key, or the zero-value Nonexistent
// record if the key was never registered. Never errors.
func (s *Store) Operation(key Key) Operation {
	atomic.AddUint64(&s.stats.Lookups, 1)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if op, ok := s.records[key]; ok {
		return op
	}
	return Nonexistent(key)
}

// ConfigureAdmin grants or revokes shard-admin on account. Idempotent:
// setting the value it already has is a no-op and emits no event. The
// caller must itself be an admin.
func (s *Store) ConfigureAdmin(caller, account string, granted bool) error {
	if account == "" {
		return ErrAccountZero
	}

	s.mu.Lock()
	if !s.admins[caller] {
		s.mu.Unlock()
		return fmt.Errorf("configure admin %q by %q: %w", account, caller, ErrNotAdmin)
	}
	if s.admins[account] == granted {
		s.mu.Unlock()
		return nil
	}
	if granted {
		s.admins[account] = true
	} else {
		delete(s.admins, account)
	}
	id := s.id
	s.mu.Unlock()

	// Publish outside the lock: subscribers may read back into the store.
	s.bus.Publish(event.AdminChanged{Account: account, Shard: id, Granted: granted})
	return nil
}

// IsAdmin reports whether account is in the shard's admin set.
func (s *Store) IsAdmin(account string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admins[account]
}

// Upgrade swaps the shard's code version pointer.
func (s *Store) Upgrade(version string) error {
	if version == "" {
		return ErrVersionZero
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = version
	return nil
}

// Version returns the active code version pointer.
func (s *Store) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// ID returns the shard identifier assigned at construction.
func (s *Store) ID() int { return s.id }

// Stats returns current operation counts.
func (s *Store) Stats() StoreStats {
	return StoreStats{
		Registers: atomic.LoadUint64(&s.stats.Registers),
		Conflicts: atomic.LoadUint64(&s.stats.Conflicts),
		Lookups:   atomic.LoadUint64(&s.stats.Lookups),
	}
}

// Info returns metadata about the shard.
func (s *Store) Info() StoreInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StoreInfo{
		ID:          s.id,
		Version:     s.version,
		RecordCount: len(s.records),
	}
}
