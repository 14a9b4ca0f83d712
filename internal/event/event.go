// Package event carries state-change notifications between glacier
// components. Every irreversible mutation (operation registered, balance
// moved, shard set changed, capability changed) publishes one event on a
// Bus; subscribers receive events synchronously on the publishing
// goroutine.
package event

import "sync"

// Event is implemented by every notification type in this package.
// Kind returns a stable, dot-separated name for logging and filtering.
type Event interface {
	Kind() string
}

// ShardAdded is published once per handle appended to the shard set,
// in append order.
type ShardAdded struct {
	Index int // position the new shard occupies
}

func (ShardAdded) Kind() string { return "shard.added" }

// ShardReplaced is published once per slot overwritten by a replacement,
// in slot order. Index is stable: the slot keeps its position.
type ShardReplaced struct {
	Index int
}

func (ShardReplaced) Kind() string { return "shard.replaced" }

// AdminChanged is published by a shard when an account's admin grant
// actually changes. Idempotent re-grants and re-revokes emit nothing.
type AdminChanged struct {
	Account string
	Shard   int
	Granted bool
}

func (AdminChanged) Kind() string { return "shard.admin" }

// CapabilityConfigured is the root coordinator's aggregate notification
// after a capability change has been fanned out to every shard.
type CapabilityConfigured struct {
	Account    string
	ShardCount int
	Granted    bool
}

func (CapabilityConfigured) Kind() string { return "root.capability" }

// RoleChanged is published by the capability store when a named
// capability grant actually changes at the facade layer.
type RoleChanged struct {
	Account    string
	Capability string
	Granted    bool
}

func (RoleChanged) Kind() string { return "access.role" }

// FrozenBalanceUpdated is published after every successful frozen-balance
// mutation, carrying the operation key so auditors can join it back to
// the registry record.
type FrozenBalanceUpdated struct {
	Account    string
	Key        string // hex operation key
	NewBalance uint64
	OldBalance uint64
}

func (FrozenBalanceUpdated) Kind() string { return "frozen.updated" }

// FrozenTransfer is published for transfer operations, before the
// recipient's FrozenBalanceUpdated.
type FrozenTransfer struct {
	From   string
	To     string
	Key    string
	Amount uint64
}

func (FrozenTransfer) Kind() string { return "frozen.transfer" }

// Bus fans events out to subscribers. Publish is synchronous: it returns
// after every subscriber has run, so a subscriber observes state in the
// order it was mutated. Safe for concurrent use.
type Bus struct {
	mu   sync.RWMutex
	subs []func(Event)
}

// NewBus returns an empty bus. A nil *Bus is also valid: Publish on nil
// is a no-op, which lets leaf components run without wiring.
func NewBus() *Bus { return &Bus{} }

// Subscribe registers fn for all future events. Subscribers cannot be
// removed; create a new bus instead.
func (b *Bus) Subscribe(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

// Publish delivers e to every subscriber in subscription order.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(e)
	}
}

// Recorder is a test helper that collects published events.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns a Recorder already subscribed to b.
func NewRecorder(b *Bus) *Recorder {
	r := &Recorder{}
	b.Subscribe(r.record)
	return r
}

func (r *Recorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the Kind of each recorded event, in order.
func (r *Recorder) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind()
	}
	return kinds
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
