package irq

import (
	"runtime"
	"sync/atomic"
)

// SpinLock is a test-and-set spinlock. The teacher's interrupt path
// (mazboot/golang/main/goroutine.go, SimpleChannel.receive) busy-waits
// on a plain counter with a bare `for cond {}` spin rather than parking
// on a scheduler primitive, because bare-metal code below the scheduler
// cannot assume one is available yet. This generalizes that idiom into
// the one spinlock type used throughout the package (spec §5: "one
// global spinlock... all operations critical-section").
//
// The zero value is an unlocked SpinLock, ready to use.
type SpinLock struct {
	held atomic.Bool
}

// Lock spins until the lock is acquired. Between attempts it calls
// runtime.Gosched, the hosted-Go equivalent of the "may yield the CPU
// (design-level, not mandated)" note in spec §5 for disable_irq's busy
// wait on IN_PROGRESS.
func (s *SpinLock) Lock() {
	for !s.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

// TryLock attempts to acquire the lock without blocking.
func (s *SpinLock) TryLock() bool {
	return s.held.CompareAndSwap(false, true)
}

// Unlock releases the lock. Unlocking an already-unlocked SpinLock is a
// programming error but is not checked, matching the teacher's
// preference for cheap primitives over defensive bookkeeping in the
// hot path.
func (s *SpinLock) Unlock() {
	s.held.Store(false)
}

// spinUntil busy-waits, yielding between polls, until cond returns true.
// Used by DisableIRQ to wait out StatusInProgress (spec §4.2).
func spinUntil(cond func() bool) {
	for !cond() {
		runtime.Gosched()
	}
}
