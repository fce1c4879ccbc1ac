// Package spinlock implements the global scheduler lock "S" described in
// spec.md §4.1: acquisition disables interrupts on the calling core first,
// release re-enables them after the critical section ends. Every queue
// mutation and every Thread._state transition anywhere in kernel must run
// under this lock.
package spinlock

import (
	"sync"

	"github.com/orbitos/mcore/cpu"
)

// Lock is the test-and-set + interrupt-masking spin lock "S". The embedded
// mutex provides mutual exclusion while IntDisable/IntEnable bracket it on
// the acquiring core. The mutex is taken on every Acquire whatever the core
// count; on a single core the lock does not reduce to interrupt masking
// alone.
type Lock struct {
	hw cpu.Interface
	mu sync.Mutex

	heldMu sync.Mutex
	heldBy *cpu.ID
}

// New returns a Lock bound to the given CPU hardware block.
func New(hw cpu.Interface) *Lock {
	return &Lock{hw: hw}
}

// Acquire disables interrupts on core c, then takes the mutex.
func (l *Lock) Acquire(c cpu.ID) {
	l.hw.IntDisable(c)
	l.mu.Lock()
	l.heldMu.Lock()
	l.heldBy = &c
	l.heldMu.Unlock()
}

// Release drops the mutex, then re-enables interrupts on core c.
//
// Dispatch is special-cased: the contract in spec.md §4.1 requires S to be
// released immediately before the actual context switch, with interrupts
// re-enabled only after the switch returns. Callers that are about to
// switch context use ReleaseBeforeSwitch + EnableAfterSwitch instead of
// Release so the two halves can straddle the handoff.
func (l *Lock) Release(c cpu.ID) {
	l.clearHolder()
	l.mu.Unlock()
	l.hw.IntEnable(c)
}

// ReleaseBeforeSwitch drops the mutex without re-enabling interrupts. The
// caller must call EnableAfterSwitch on the same core once the context
// switch completes.
func (l *Lock) ReleaseBeforeSwitch() {
	l.clearHolder()
	l.mu.Unlock()
}

// EnableAfterSwitch re-enables interrupts on core c. See ReleaseBeforeSwitch.
func (l *Lock) EnableAfterSwitch(c cpu.ID) {
	l.hw.IntEnable(c)
}

func (l *Lock) clearHolder() {
	l.heldMu.Lock()
	l.heldBy = nil
	l.heldMu.Unlock()
}

// Held reports whether core c currently holds the lock. MustBeHeld builds
// an assertion on it; kernel's *Locked helpers do not call either.
func (l *Lock) Held(c cpu.ID) bool {
	l.heldMu.Lock()
	defer l.heldMu.Unlock()
	return l.heldBy != nil && *l.heldBy == c
}

// MustBeHeld panics if core c does not hold the lock. It is the Go stand-in
// for the original's debug-mode assertion on internal invariants.
func (l *Lock) MustBeHeld(c cpu.ID) {
	if !l.Held(c) {
		panic("spinlock: S must be held by the calling core")
	}
}
