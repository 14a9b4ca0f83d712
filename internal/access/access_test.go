package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/glacier/internal/event"
)

const root = "root"

func TestGrantRevoke(t *testing.T) {
	bus := event.NewBus()
	rec := event.NewRecorder(bus)
	store := NewStore(root, bus)

	require.NoError(t, store.Grant(root, CapFreezer, "alice"))
	assert.True(t, store.Has(CapFreezer, "alice"))
	assert.False(t, store.Has(CapOwner, "alice"))

	require.NoError(t, store.Revoke(root, CapFreezer, "alice"))
	assert.False(t, store.Has(CapFreezer, "alice"))

	require.Equal(t, []string{"access.role", "access.role"}, rec.Kinds())
	events := rec.Events()
	assert.Equal(t, event.RoleChanged{Account: "alice", Capability: CapFreezer, Granted: true}, events[0])
	assert.Equal(t, event.RoleChanged{Account: "alice", Capability: CapFreezer, Granted: false}, events[1])
}

func TestGrantIdempotent(t *testing.T) {
	bus := event.NewBus()
	rec := event.NewRecorder(bus)
	store := NewStore(root, bus)

	require.NoError(t, store.Grant(root, CapFreezer, "alice"))
	require.NoError(t, store.Grant(root, CapFreezer, "alice"))
	assert.Equal(t, 1, rec.Len(), "re-grant must not notify")

	require.NoError(t, store.Revoke(root, CapFreezer, "alice"))
	require.NoError(t, store.Revoke(root, CapFreezer, "alice"))
	assert.Equal(t, 2, rec.Len(), "re-revoke must not notify")

	// Revoking something never granted is also silent.
	require.NoError(t, store.Revoke(root, CapPauser, "bob"))
	assert.Equal(t, 2, rec.Len())
}

func TestGrantAccessControl(t *testing.T) {
	store := NewStore(root, nil)

	err := store.Grant("mallory", CapFreezer, "mallory")
	require.ErrorIs(t, err, ErrNotOwner)
	assert.False(t, store.Has(CapFreezer, "mallory"))

	require.ErrorIs(t, store.Grant(root, CapFreezer, ""), ErrAccountZero)
}

func TestOwnerCanDelegateOwner(t *testing.T) {
	store := NewStore(root, nil)

	require.NoError(t, store.Grant(root, CapOwner, "alice"))
	require.NoError(t, store.Grant("alice", CapFreezer, "bob"))
	assert.True(t, store.Has(CapFreezer, "bob"))
}

func TestPause(t *testing.T) {
	store := NewStore(root, nil)
	require.NoError(t, store.Grant(root, CapPauser, "ops"))

	assert.False(t, store.IsPaused())
	require.NoError(t, store.Pause("ops"))
	assert.True(t, store.IsPaused())
	require.NoError(t, store.Unpause("ops"))
	assert.False(t, store.IsPaused())

	// Owner may pause too; strangers may not.
	require.NoError(t, store.Pause(root))
	require.ErrorIs(t, store.Unpause("mallory"), ErrNotPauser)
	assert.True(t, store.IsPaused())
}
