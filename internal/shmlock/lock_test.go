package shmlock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockUnlock(t *testing.T) {
	var word uint32
	m := At(&word)

	m.Lock()
	assert.Equal(t, locked, atomic.LoadUint32(&word))
	m.Unlock()
	assert.Equal(t, unlocked, atomic.LoadUint32(&word))
}

func TestTryLock(t *testing.T) {
	var word uint32
	m := At(&word)

	require.True(t, m.TryLock())
	assert.False(t, m.TryLock())
	m.Unlock()
	assert.True(t, m.TryLock())
	m.Unlock()
}

func TestMutualExclusion(t *testing.T) {
	var word uint32
	m := At(&word)

	const goroutines = 16
	const iterations = 1000

	counter := 0
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				m.Lock()
				counter++
				m.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*iterations, counter)
	assert.Equal(t, unlocked, atomic.LoadUint32(&word))
}

func TestContendedWaiterIsWoken(t *testing.T) {
	var word uint32
	m := At(&word)

	m.Lock()

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
		m.Unlock()
	}()

	// Give the waiter time to reach the slow path before releasing.
	time.Sleep(50 * time.Millisecond)
	m.Unlock()

	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("waiter was never woken")
	}
}

// The lock state must work across independent Mutex values over the same
// word, since every attached process builds its own views.
func TestIndependentViewsShareState(t *testing.T) {
	var word uint32
	a := At(&word)
	b := At(&word)

	a.Lock()
	assert.False(t, b.TryLock())
	a.Unlock()
	require.True(t, b.TryLock())
	b.Unlock()
}
