//go:build linux

package shmlock

import (
	"unsafe"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// The shared (non-PRIVATE) futex opcodes are required here: the lock words
// live in a MAP_SHARED file mapping and waiters in other processes must be
// found through the page, not the per-process address.
//
// golang.org/x/sys/unix does not export the futex opcodes, so they are
// defined here with their values from <linux/futex.h>.
const (
	_FUTEX_WAIT = 0
	_FUTEX_WAKE = 1
)

// futexWait parks the caller until the word changes from val or a wake is
// posted. Spurious returns are expected; callers loop on the lock state.
func futexWait(addr *uint32, val uint32) {
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(_FUTEX_WAIT),
		uintptr(val),
		0, // no timeout
		0,
		0,
	)
	switch errno {
	case 0, unix.EAGAIN, unix.EINTR:
		// EAGAIN: word changed before we parked. EINTR: signal. Both mean
		// "re-check the lock state".
	default:
		log.Error().Msgf("futex wait failed: %v", errno)
	}
}

// futexWake wakes up to n processes parked on the word.
func futexWake(addr *uint32, n int) {
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(_FUTEX_WAKE),
		uintptr(n),
		0,
		0,
		0,
	)
	if errno != 0 {
		log.Error().Msgf("futex wake failed: %v", errno)
	}
}
