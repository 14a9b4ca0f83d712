// Package router maps operation keys onto an ordered set of shard
// handles. The routing digest is part of glacier's external contract:
// any client holding a key and the shard count can re-derive placement
// without asking the coordinator, which is what audit and repair tooling
// relies on.
package router

import (
	"crypto/sha256"
	"errors"
	"math/big"
	"sync"

	"github.com/dreamware/glacier/internal/event"
	"github.com/dreamware/glacier/internal/ledger"
)

// DefaultMaxShards bounds the shard set so administrative fan-out stays
// cheap. Matches the deployed configuration.
const DefaultMaxShards = 100

// ErrNoShardsConfigured is returned when routing against an empty set.
// Fatal to any operation attempt: nothing can be placed.
var ErrNoShardsConfigured = errors.New("no shards configured")

// ErrShardCountExceeded is returned when an append would grow the set
// past its configured maximum. Nothing is appended.
var ErrShardCountExceeded = errors.New("shard count exceeded")

// ErrReplacementCountExceeded is returned by ReplaceExact when more
// handles are supplied than the caller's stated intent.
var ErrReplacementCountExceeded = errors.New("replacement count exceeded")

// Shard is the capability set the router requires from a shard handle.
// *ledger.Store is the concrete implementation; the indirection keeps the
// set free to hold mixed code versions during an upgrade.
type Shard interface {
	RegisterOperation(caller string, op ledger.Operation) error
	Operation(key ledger.Key) ledger.Operation
	ConfigureAdmin(caller, account string, granted bool) error
	IsAdmin(account string) bool
	Upgrade(version string) error
	Version() string
	Info() ledger.StoreInfo
}

// Index is the deterministic routing function: the SHA-256 digest of the
// raw key bytes, read as a big-endian unsigned integer, modulo n.
// Exported so clients can re-derive placement themselves.
func Index(key ledger.Key, n int) int {
	digest := sha256.Sum256(key[:])
	v := new(big.Int).SetBytes(digest[:])
	return int(v.Mod(v, big.NewInt(int64(n))).Int64())
}

// Set is the ordered, append-mostly shard list. Index stability is the
// core invariant: once a handle occupies slot i, only Replace may change
// it; slots are never reordered, compacted or removed.
type Set struct {
	mu     sync.RWMutex
	shards []Shard
	bus    *event.Bus
	max    int
}

// NewSet creates an empty set bounded at max handles. max <= 0 selects
// DefaultMaxShards.
func NewSet(max int, bus *event.Bus) *Set {
	if max <= 0 {
		max = DefaultMaxShards
	}
	return &Set{max: max, bus: bus}
}

// Route returns the shard index for key.
func (s *Set) Route(key ledger.Key) (int, error) {
	s.mu.RLock()
	n := len(s.shards)
	s.mu.RUnlock()

	if n == 0 {
		return 0, ErrNoShardsConfigured
	}
	return Index(key, n), nil
}

// ByKey routes key and returns the owning handle.
func (s *Set) ByKey(key ledger.Key) (Shard, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.shards) == 0 {
		return nil, 0, ErrNoShardsConfigured
	}
	i := Index(key, len(s.shards))
	return s.shards[i], i, nil
}

// Add appends handles in order. If the result would exceed the maximum
// nothing is appended. One ShardAdded event per handle, in order.
func (s *Set) Add(handles ...Shard) error {
	s.mu.Lock()
	if len(s.shards)+len(handles) > s.max {
		s.mu.Unlock()
		return ErrShardCountExceeded
	}
	base := len(s.shards)
	s.shards = append(s.shards, handles...)
	s.mu.Unlock()

	for i := range handles {
		s.bus.Publish(event.ShardAdded{Index: base + i})
	}
	return nil
}

// Replace overwrites up to len(handles) consecutive slots starting at
// from. A from at or past the end is a silent no-op: replacement requests
// can race a concurrent reconfiguration, and a late arrival is not an
// error. Excess handles beyond the remaining slots are silently ignored;
// growing the set is only ever done through Add.
func (s *Set) Replace(from int, handles []Shard) error {
	s.mu.Lock()
	if from < 0 || from >= len(s.shards) || len(handles) == 0 {
		s.mu.Unlock()
		return nil
	}
	n := len(handles)
	if remaining := len(s.shards) - from; n > remaining {
		n = remaining
	}
	for i := 0; i < n; i++ {
		s.shards[from+i] = handles[i]
	}
	s.mu.Unlock()

	for i := 0; i < n; i++ {
		s.bus.Publish(event.ShardReplaced{Index: from + i})
	}
	return nil
}

// ReplaceExact is the loud variant: the caller states how many slots it
// intends to replace, and supplying more handles than that intent fails
// with ErrReplacementCountExceeded before anything is touched.
func (s *Set) ReplaceExact(from, count int, handles []Shard) error {
	if len(handles) > count {
		return ErrReplacementCountExceeded
	}
	return s.Replace(from, handles)
}

// Range returns up to limit handles starting at index. Out-of-range index
// or zero limit yields an empty slice; never errors.
func (s *Set) Range(index, limit int) []Shard {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.shards) || limit <= 0 {
		return nil
	}
	end := index + limit
	if end > len(s.shards) {
		end = len(s.shards)
	}
	out := make([]Shard, end-index)
	copy(out, s.shards[index:end])
	return out
}

// Get returns the handle at index, or nil if out of range.
func (s *Set) Get(index int) Shard {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.shards) {
		return nil
	}
	return s.shards[index]
}

// Len returns the current shard count.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shards)
}

// Max returns the configured maximum shard count.
func (s *Set) Max() int { return s.max }
