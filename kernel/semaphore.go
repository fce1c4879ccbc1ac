package kernel

import (
	"github.com/orbitos/mcore/cpu"
	"github.com/orbitos/mcore/rankqueue"
)

// Semaphore is a counting semaphore built on suspend/wakeup, per spec.md
// §5.2. A zero-initialized count with no upper bound behaves as a
// classic counting semaphore; Capacity, if set, turns V into a
// best-effort bounded post that returns ErrNoCapacity instead of growing
// count past the bound.
type Semaphore struct {
	count    int
	capacity int // 0 means unbounded
	wait     *rankqueue.Queue[*Thread]
}

// NewSemaphore returns a Semaphore initialized to count, unbounded.
func NewSemaphore(count int) *Semaphore {
	return &Semaphore{count: count, wait: rankqueue.New[*Thread]()}
}

// NewBoundedSemaphore returns a Semaphore initialized to count with an
// upper bound enforced on V.
func NewBoundedSemaphore(count, capacity int) *Semaphore {
	return &Semaphore{count: count, capacity: capacity, wait: rankqueue.New[*Thread]()}
}

// P (a.k.a. Down/Wait/Acquire) decrements the count, blocking self if it
// would go negative.
func (s *Semaphore) P(self *Thread) {
	k := self.k
	c := self.core
	k.s.Acquire(c)
	s.count--
	if s.count >= 0 {
		k.s.Release(c)
		return
	}
	k.suspendSelfLocked(self, s.wait)
}

// V (a.k.a. Up/Signal/Release) increments the count, waking the
// highest-ranked waiter if the count was negative. Returns ErrNoCapacity
// if a configured capacity would be exceeded; the count is left unchanged
// in that case.
func (s *Semaphore) V(self *Thread) error {
	k := self.k
	c := self.core
	k.s.Acquire(c)
	if s.capacity > 0 && s.count >= s.capacity {
		k.s.Release(c)
		return ErrNoCapacity
	}
	s.count++
	if s.count <= 0 {
		next, ok := s.wait.PopHead()
		if ok {
			k.wakeOneLocked(c, next)
			return nil
		}
	}
	k.s.Release(c)
	return nil
}

// ReleaseFromOutside increments s from a goroutine that is not running as
// any Thread's Body — an alarm handler firing on the timer's own ticker
// goroutine, typically. Unlike V, it never dispatches synchronously: a
// woken waiter is only admitted and nudged via IPI, the same
// acquire-mutate-release-then-interrupt sequence admitFromOutside uses.
// coreHint addresses which core's S-bookkeeping to touch; since S is one
// global lock in this simulation any core id serves the mutual-exclusion
// half, so callers pass whatever core the releasing event is naturally
// associated with (e.g. a periodic thread's home core) for traceability.
func (s *Semaphore) ReleaseFromOutside(k *Kernel, coreHint cpu.ID) {
	k.s.Acquire(coreHint)
	s.count++
	var woken *Thread
	if s.count <= 0 {
		woken, _ = s.wait.PopHead()
		if woken != nil {
			k.admitLocked(woken)
		}
	}
	k.s.Release(coreHint)
	if woken != nil && k.cfg.Preemptive {
		k.ic.IPI(woken.core, cpu.IntReschedule)
	}
}

// Count returns the current (possibly negative) count. Negative means
// -Count() threads are parked waiting.
func (s *Semaphore) Count() int { return s.count }
