package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	src := NewStore(5, root, "v3", nil)
	require.NoError(t, src.ConfigureAdmin(root, "alice", true))

	ops := []Operation{
		{Key: testKey(1), Status: StatusUpdateReplacementExecuted, Account: "alice", Amount: 100},
		{Key: testKey(2), Status: StatusTransferExecuted, Account: "bob", Amount: 7},
	}
	for _, op := range ops {
		require.NoError(t, src.RegisterOperation(root, op))
	}

	data, err := src.Snapshot()
	require.NoError(t, err)

	dst := NewStore(5, root, "v1", nil)
	require.NoError(t, dst.Restore(data))

	for _, op := range ops {
		assert.Equal(t, op, dst.Operation(op.Key))
	}
	assert.True(t, dst.IsAdmin("alice"))
	assert.Equal(t, "v3", dst.Version(), "version pointer travels with the snapshot")

	// The restored records keep their insert-once semantics.
	err = dst.RegisterOperation(root, ops[0])
	require.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRestoreRejectsBadSchema(t *testing.T) {
	dst := NewStore(0, root, "v1", nil)

	err := dst.Restore([]byte(`{"schema":0,"records":[]}`))
	require.ErrorIs(t, err, ErrSnapshotSchema)
}

// A snapshot written by a later build carries fields this build has never
// seen. Appended unknown fields must be ignored, not rejected.
func TestRestoreToleratesAppendedFields(t *testing.T) {
	dst := NewStore(0, root, "v1", nil)

	data := []byte(`{
		"schema": 2,
		"shard_id": 0,
		"version": "v9",
		"admins": ["root"],
		"records": [{
			"key": "0100000000000000000000000000000000000000000000000000000000000000",
			"status": 1,
			"account": "alice",
			"amount": 3,
			"recorded_at": "2026-01-01T00:00:00Z"
		}],
		"checksum": "not-in-this-schema"
	}`)
	require.NoError(t, dst.Restore(data))

	op := dst.Operation(testKey(1))
	assert.Equal(t, StatusTransferExecuted, op.Status)
	assert.Equal(t, "alice", op.Account)
	assert.Equal(t, uint64(3), op.Amount)
}

func TestRestoreRefusesNonEmptyStore(t *testing.T) {
	src := NewStore(0, root, "v1", nil)
	require.NoError(t, src.RegisterOperation(root, Operation{
		Key: testKey(1), Status: StatusTransferExecuted, Account: "a", Amount: 1,
	}))
	data, err := src.Snapshot()
	require.NoError(t, err)

	require.NoError(t, src.RegisterOperation(root, Operation{
		Key: testKey(2), Status: StatusTransferExecuted, Account: "b", Amount: 2,
	}))
	require.ErrorIs(t, src.Restore(data), ErrStoreNotEmpty)
}
