package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
)

// snapshotSchemaVersion is the layout version written by this build.
// The layout is additive: new fields are appended to the record struct,
// never inserted or reordered, and readers zero-fill fields they do not
// know. A newer snapshot therefore loads on an older build and vice
// versa, which is what makes shard code-version upgrades safe against
// the persisted state.
const snapshotSchemaVersion = 1

// ErrSnapshotSchema is returned when a snapshot predates schema version 1
var ErrSnapshotSchema = errors.New("unsupported snapshot schema version")

// ErrStoreNotEmpty is returned when restoring into a shard that already
// holds records. Records are write-once, so a restore never merges.
var ErrStoreNotEmpty = errors.New("cannot restore into a non-empty store")

type snapshotRecord struct {
	Key     string `json:"key"`
	Account string `json:"account"`
	Status  Status `json:"status"`
	Amount  uint64 `json:"amount"`
}

type snapshot struct {
	Version string           `json:"version"`
	Records []snapshotRecord `json:"records"`
	Admins  []string         `json:"admins"`
	Schema  int              `json:"schema"`
	ShardID int              `json:"shard_id"`
}

// Snapshot serializes the shard's records, admin set and version pointer.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		Schema:  snapshotSchemaVersion,
		ShardID: s.id,
		Version: s.version,
		Records: make([]snapshotRecord, 0, len(s.records)),
		Admins:  make([]string, 0, len(s.admins)),
	}
	for _, op := range s.records {
		snap.Records = append(snap.Records, snapshotRecord{
			Key:     op.Key.String(),
			Account: op.Account,
			Status:  op.Status,
			Amount:  op.Amount,
		})
	}
	for account := range s.admins {
		snap.Admins = append(snap.Admins, account)
	}
	return json.Marshal(snap)
}

// Restore loads a snapshot into an empty shard. Snapshots with a newer
// schema load too: unknown appended fields are ignored, missing ones
// default to zero.
func (s *Store) Restore(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Schema < 1 {
		return fmt.Errorf("schema %d: %w", snap.Schema, ErrSnapshotSchema)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) > 0 {
		return ErrStoreNotEmpty
	}

	for _, rec := range snap.Records {
		key, err := ParseKey(rec.Key)
		if err != nil {
			return fmt.Errorf("restore shard %d: %w", s.id, err)
		}
		s.records[key] = Operation{
			Key:     key,
			Status:  rec.Status,
			Account: rec.Account,
			Amount:  rec.Amount,
		}
	}
	for _, account := range snap.Admins {
		s.admins[account] = true
	}
	if snap.Version != "" {
		s.version = snap.Version
	}
	return nil
}
