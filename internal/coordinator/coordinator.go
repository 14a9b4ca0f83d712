package coordinator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dreamware/glacier/internal/access"
	"github.com/dreamware/glacier/internal/event"
	"github.com/dreamware/glacier/internal/ledger"
	"github.com/dreamware/glacier/internal/router"
)

// ContractID is the answer every valid implementation must give to the
// upgrade probe. An implementation that cannot identify itself as a
// frozen-ledger facade is rejected before the version pointer moves.
const ContractID = "glacier/frozen-ledger/v1"

// ErrImplementationInvalid is returned when an upgrade candidate is
// unknown or fails the contract probe. No version pointer is mutated.
var ErrImplementationInvalid = errors.New("implementation failed contract probe")

// ErrRootVersionZero is returned when a root upgrade targets the empty name
var ErrRootVersionZero = errors.New("root version must not be empty")

// ErrShardVersionZero is returned when a shard upgrade targets the empty version
var ErrShardVersionZero = errors.New("shard version must not be empty")

// Implementation is the capability-check surface of an upgrade candidate.
type Implementation interface {
	ContractID() string
}

// PropagationError reports a fan-out that stopped partway. Applied counts
// the shards already mutated before the failure; those are NOT rolled
// back, so the caller must reconcile (retry to completion or replace the
// affected shards) before trusting cross-shard state again.
type PropagationError struct {
	Err     error
	Applied int
	Index   int
}

func (e *PropagationError) Error() string {
	return fmt.Sprintf("fan-out stopped at shard %d after %d applied: %v",
		e.Index, e.Applied, e.Err)
}

func (e *PropagationError) Unwrap() error { return e.Err }

// Root is the coordinator owning the shard set. All cross-shard
// administration (capability fan-out, shard growth and replacement,
// version upgrades) goes through it; nothing else may touch shard-local
// admin sets or version pointers.
type Root struct {
	set     *router.Set
	access  *access.Store
	bus     *event.Bus
	impls   map[string]Implementation
	account string

	mu           sync.Mutex // guards the fields below and serializes fan-out
	version      string     // active root implementation name
	shardVersion string     // version stamped onto newly created shards
	nextShardID  int
}

// NewRoot creates a coordinator around an existing shard set. account is
// the root identity seeded as admin on every shard the root creates.
func NewRoot(account, version string, set *router.Set, acl *access.Store, bus *event.Bus) *Root {
	return &Root{
		account:      account,
		version:      version,
		shardVersion: version,
		set:          set,
		access:       acl,
		bus:          bus,
		impls:        make(map[string]Implementation),
	}
}

// Account returns the root identity.
func (r *Root) Account() string { return r.account }

// Set returns the shard set the root owns.
func (r *Root) Set() *router.Set { return r.set }

// AddShards creates count fresh shard stores and appends them to the set.
// Owner-only. Fails without appending anything if the set would exceed
// its maximum.
func (r *Root) AddShards(caller string, count int) error {
	if !r.access.Has(access.CapOwner, caller) {
		return fmt.Errorf("add shards by %q: %w", caller, access.ErrNotOwner)
	}
	if count <= 0 {
		return fmt.Errorf("add shards: count %d must be positive", count)
	}

	r.mu.Lock()
	handles := make([]router.Shard, count)
	for i := range handles {
		handles[i] = ledger.NewStore(r.nextShardID+i, r.account, r.shardVersion, r.bus)
	}
	err := r.set.Add(handles...)
	if err == nil {
		r.nextShardID += count
	}
	r.mu.Unlock()
	return err
}

// ReplaceShards swaps count consecutive slots starting at from for fresh
// empty stores. Owner-only. Out-of-range from is a silent no-op, matching
// the set's tolerance of racing reconfigurations.
func (r *Root) ReplaceShards(caller string, from, count int) error {
	if !r.access.Has(access.CapOwner, caller) {
		return fmt.Errorf("replace shards by %q: %w", caller, access.ErrNotOwner)
	}
	if count <= 0 {
		return fmt.Errorf("replace shards: count %d must be positive", count)
	}

	r.mu.Lock()
	handles := make([]router.Shard, count)
	for i := range handles {
		handles[i] = ledger.NewStore(r.nextShardID+i, r.account, r.shardVersion, r.bus)
	}
	err := r.set.Replace(from, handles)
	if err == nil {
		r.nextShardID += count
	}
	r.mu.Unlock()
	return err
}

// ConfigureCapability fans an admin grant or revoke out to every shard,
// then emits one aggregate CapabilityConfigured event. Owner-only; the
// account must be non-empty. A shard failure aborts the fan-out and is
// reported as a *PropagationError so the caller can distinguish
// "half-applied" from "not applied": shards already mutated stay mutated.
func (r *Root) ConfigureCapability(caller, account string, granted bool) error {
	if !r.access.Has(access.CapOwner, caller) {
		return fmt.Errorf("configure capability by %q: %w", caller, access.ErrNotOwner)
	}
	if account == "" {
		return ledger.ErrAccountZero
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	shards := r.set.Range(0, r.set.Len())
	for i, shard := range shards {
		if err := shard.ConfigureAdmin(r.account, account, granted); err != nil {
			return &PropagationError{Applied: i, Index: i, Err: err}
		}
	}

	r.bus.Publish(event.CapabilityConfigured{
		Account:    account,
		Granted:    granted,
		ShardCount: len(shards),
	})
	return nil
}

// RegisterImplementation adds an upgrade candidate under name. Candidates
// are registered at deployment; Upgrade only ever selects among them.
func (r *Root) RegisterImplementation(name string, impl Implementation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.impls[name] = impl
}

// Upgrade validates the named candidate with the contract probe and, only
// on success, moves the root version pointer. Owner-only.
func (r *Root) Upgrade(caller, name string) error {
	if !r.access.Has(access.CapOwner, caller) {
		return fmt.Errorf("upgrade by %q: %w", caller, access.ErrNotOwner)
	}
	if name == "" {
		return ErrRootVersionZero
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upgradeLocked(name)
}

func (r *Root) upgradeLocked(name string) error {
	impl, ok := r.impls[name]
	if !ok {
		return fmt.Errorf("implementation %q not registered: %w", name, ErrImplementationInvalid)
	}
	if impl.ContractID() != ContractID {
		return fmt.Errorf("implementation %q answered %q: %w",
			name, impl.ContractID(), ErrImplementationInvalid)
	}
	r.version = name
	return nil
}

// UpgradeShards asks every shard to swap its version pointer. Owner-only;
// no contract probe, since shard versions are opaque to the root and the
// audit path is reading back shard Info. A mid-fan-out failure is reported as
// a *PropagationError; already-upgraded shards keep the new version.
func (r *Root) UpgradeShards(caller, version string) error {
	if !r.access.Has(access.CapOwner, caller) {
		return fmt.Errorf("upgrade shards by %q: %w", caller, access.ErrNotOwner)
	}
	if version == "" {
		return ErrShardVersionZero
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upgradeShardsLocked(version)
}

func (r *Root) upgradeShardsLocked(version string) error {
	shards := r.set.Range(0, r.set.Len())
	for i, shard := range shards {
		if err := shard.Upgrade(version); err != nil {
			return &PropagationError{Applied: i, Index: i, Err: err}
		}
	}
	r.shardVersion = version
	return nil
}

// UpgradeAll composes Upgrade and UpgradeShards, failing fast on either
// empty target before mutating anything.
func (r *Root) UpgradeAll(caller, rootName, shardVersion string) error {
	if !r.access.Has(access.CapOwner, caller) {
		return fmt.Errorf("upgrade by %q: %w", caller, access.ErrNotOwner)
	}
	if rootName == "" {
		return ErrRootVersionZero
	}
	if shardVersion == "" {
		return ErrShardVersionZero
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.upgradeLocked(rootName); err != nil {
		return err
	}
	return r.upgradeShardsLocked(shardVersion)
}

// RootVersion returns the active root implementation name.
func (r *Root) RootVersion() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// ShardVersion returns the version stamped onto newly created shards.
func (r *Root) ShardVersion() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shardVersion
}
