// Package shmlock implements a mutex whose entire state is a single uint32
// living inside a shared memory mapping, so that unrelated processes
// attached to the same segment contend on it correctly. A pthread mutex
// placed in shared memory needs the process-shared attribute and is
// undefined otherwise; a futex word sidesteps that entirely because the
// kernel keys waiters by the physical page backing the word.
package shmlock

import (
	"runtime"
	"sync/atomic"
)

// Lock word states.
const (
	unlocked  uint32 = 0
	locked    uint32 = 1
	contended uint32 = 2
)

// Number of CAS attempts before parking on the futex. Critical sections
// are fixed-size memory copies, so short spins usually avoid the syscall.
const spinAttempts = 100

// Mutex is a cross-process mutual exclusion lock over a word in mapped
// memory. The zero value of the word is the unlocked state, which is what
// a freshly ftruncated segment contains, so no explicit initialization is
// needed. Not reentrant, not robust: a process that dies while holding it
// leaves it held.
type Mutex struct {
	word *uint32
}

// At returns a Mutex over the given word.
func At(word *uint32) Mutex {
	return Mutex{word: word}
}

// Lock acquires the mutex, blocking until it is available.
func (m Mutex) Lock() {
	if atomic.CompareAndSwapUint32(m.word, unlocked, locked) {
		return
	}
	for i := 0; i < spinAttempts; i++ {
		runtime.Gosched()
		if atomic.CompareAndSwapUint32(m.word, unlocked, locked) {
			return
		}
	}
	// Slow path: mark the lock contended and park. After a wakeup we must
	// re-acquire with the contended value, because other waiters may still
	// be parked and the eventual unlock has to wake them.
	for atomic.SwapUint32(m.word, contended) != unlocked {
		futexWait(m.word, contended)
	}
}

// TryLock acquires the mutex without blocking and reports whether it
// succeeded.
func (m Mutex) TryLock() bool {
	return atomic.CompareAndSwapUint32(m.word, unlocked, locked)
}

// Unlock releases the mutex and wakes one parked waiter if there was
// contention.
func (m Mutex) Unlock() {
	if atomic.SwapUint32(m.word, unlocked) == contended {
		futexWake(m.word, 1)
	}
}
