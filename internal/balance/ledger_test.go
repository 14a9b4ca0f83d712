package balance

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetFrozen(t *testing.T) {
	m := NewMemory()

	newBal, oldBal, err := m.SetFrozen("alice", 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), newBal)
	assert.Equal(t, uint64(0), oldBal)

	newBal, oldBal, err = m.SetFrozen("alice", 40)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), newBal)
	assert.Equal(t, uint64(100), oldBal)
	assert.Equal(t, uint64(40), m.QueryFrozen("alice"))
}

func TestIncreaseDecrease(t *testing.T) {
	m := NewMemory()

	newBal, oldBal, err := m.IncreaseFrozen("alice", 30)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), newBal)
	assert.Equal(t, uint64(0), oldBal)

	newBal, oldBal, err = m.DecreaseFrozen("alice", 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), newBal)
	assert.Equal(t, uint64(30), oldBal)

	_, _, err = m.DecreaseFrozen("alice", 21)
	require.ErrorIs(t, err, ErrInsufficientFrozen)
	assert.Equal(t, uint64(20), m.QueryFrozen("alice"))

	_, _, err = m.IncreaseFrozen("alice", math.MaxUint64)
	require.ErrorIs(t, err, ErrBalanceOverflow)
}

func TestTransferFrozen(t *testing.T) {
	m := NewMemory()
	_, _, err := m.SetFrozen("alice", 100)
	require.NoError(t, err)

	newBal, oldBal, err := m.TransferFrozen("alice", "bob", 60)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), newBal, "pair refers to the recipient")
	assert.Equal(t, uint64(0), oldBal)
	assert.Equal(t, uint64(40), m.QueryFrozen("alice"))
	assert.Equal(t, uint64(60), m.QueryFrozen("bob"))

	_, _, err = m.TransferFrozen("alice", "bob", 41)
	require.ErrorIs(t, err, ErrInsufficientFrozen)
	assert.Equal(t, uint64(40), m.QueryFrozen("alice"))
	assert.Equal(t, uint64(60), m.QueryFrozen("bob"))
}

func TestConcurrentIncrease(t *testing.T) {
	m := NewMemory()

	const goroutines = 20
	const perGoroutine = 100

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				_, _, err := m.IncreaseFrozen("alice", 1)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(goroutines*perGoroutine), m.QueryFrozen("alice"))
}
