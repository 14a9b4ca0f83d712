package ledger

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/glacier/internal/event"
)

const root = "root"

func testKey(b byte) Key {
	var k Key
	k[0] = b
	return k
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:  "valid 32-byte hex key",
			input: "0101010101010101010101010101010101010101010101010101010101010101",
		},
		{
			name:    "too short",
			input:   "0101",
			wantErr: true,
		},
		{
			name:    "not hex",
			input:   "zz01010101010101010101010101010101010101010101010101010101010101",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseKey(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, key.String())
			assert.False(t, key.IsZero())
		})
	}
}

func TestRegisterOperationInsertOnce(t *testing.T) {
	store := NewStore(0, root, "v1", nil)
	key := testKey(1)

	op := Operation{
		Key:     key,
		Status:  StatusUpdateReplacementExecuted,
		Account: "alice",
		Amount:  100,
	}
	require.NoError(t, store.RegisterOperation(root, op))

	// Second insert must fail and leave the record untouched, whatever
	// status it carries.
	dup := op
	dup.Status = StatusTransferExecuted
	dup.Amount = 999
	err := store.RegisterOperation(root, dup)
	require.ErrorIs(t, err, ErrAlreadyRegistered)

	got := store.Operation(key)
	assert.Equal(t, op, got)

	stats := store.Stats()
	assert.Equal(t, uint64(1), stats.Registers)
	assert.Equal(t, uint64(1), stats.Conflicts)
}

func TestRegisterOperationValidation(t *testing.T) {
	store := NewStore(0, root, "v1", nil)

	t.Run("non-terminal status rejected", func(t *testing.T) {
		err := store.RegisterOperation(root, Operation{Key: testKey(1)})
		require.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("non-admin caller rejected", func(t *testing.T) {
		err := store.RegisterOperation("mallory", Operation{
			Key:    testKey(2),
			Status: StatusTransferExecuted,
		})
		require.ErrorIs(t, err, ErrNotAdmin)
		assert.Equal(t, StatusNonexistent, store.Operation(testKey(2)).Status)
	})
}

func TestOperationAbsentIsNonexistent(t *testing.T) {
	store := NewStore(0, root, "v1", nil)
	key := testKey(9)

	got := store.Operation(key)
	assert.Equal(t, Nonexistent(key), got)
	assert.Equal(t, key, got.Key)
	assert.Equal(t, StatusNonexistent, got.Status)
	assert.Empty(t, got.Account)
	assert.Zero(t, got.Amount)
}

// TestRegisterOperationLinearized races many writers on one key: exactly
// one registration may win.
func TestRegisterOperationLinearized(t *testing.T) {
	store := NewStore(0, root, "v1", nil)
	key := testKey(7)

	const writers = 32
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.RegisterOperation(root, Operation{
				Key:     key,
				Status:  StatusUpdateIncreaseExecuted,
				Account: fmt.Sprintf("acct-%d", i),
				Amount:  uint64(i),
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, ErrAlreadyRegistered)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, uint64(1), store.Stats().Registers)
}

func TestConfigureAdmin(t *testing.T) {
	bus := event.NewBus()
	rec := event.NewRecorder(bus)
	store := NewStore(3, root, "v1", bus)

	require.NoError(t, store.ConfigureAdmin(root, "alice", true))
	assert.True(t, store.IsAdmin("alice"))

	// Re-grant is a no-op and must not notify.
	require.NoError(t, store.ConfigureAdmin(root, "alice", true))
	assert.Equal(t, 1, rec.Len())

	require.NoError(t, store.ConfigureAdmin(root, "alice", false))
	assert.False(t, store.IsAdmin("alice"))

	// Re-revoke is a no-op too.
	require.NoError(t, store.ConfigureAdmin(root, "alice", false))

	require.Equal(t, []string{"shard.admin", "shard.admin"}, rec.Kinds())
	events := rec.Events()
	assert.Equal(t, event.AdminChanged{Account: "alice", Shard: 3, Granted: true}, events[0])
	assert.Equal(t, event.AdminChanged{Account: "alice", Shard: 3, Granted: false}, events[1])
}

func TestConfigureAdminAccessControl(t *testing.T) {
	store := NewStore(0, root, "v1", nil)

	err := store.ConfigureAdmin("mallory", "mallory", true)
	require.ErrorIs(t, err, ErrNotAdmin)
	assert.False(t, store.IsAdmin("mallory"))

	err = store.ConfigureAdmin(root, "", true)
	require.ErrorIs(t, err, ErrAccountZero)
}

func TestUpgrade(t *testing.T) {
	store := NewStore(0, root, "v1", nil)
	require.Equal(t, "v1", store.Version())

	require.NoError(t, store.Upgrade("v2"))
	assert.Equal(t, "v2", store.Version())

	require.ErrorIs(t, store.Upgrade(""), ErrVersionZero)
	assert.Equal(t, "v2", store.Version())
}

func TestStoreInfo(t *testing.T) {
	store := NewStore(42, root, "v1", nil)
	require.NoError(t, store.RegisterOperation(root, Operation{
		Key:     testKey(1),
		Status:  StatusTransferExecuted,
		Account: "alice",
		Amount:  10,
	}))

	info := store.Info()
	assert.Equal(t, 42, info.ID)
	assert.Equal(t, "v1", info.Version)
	assert.Equal(t, 1, info.RecordCount)
}
