package kernel

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/orbitos/mcore/cpu"
	"github.com/orbitos/mcore/rankqueue"
)

// Condition is a condition variable paired with an external Mutex, per
// spec.md §5.3: Wait atomically releases the mutex and parks the caller,
// re-acquiring it only once woken.
type Condition struct {
	wait *rankqueue.Queue[*Thread]
}

// NewCondition returns an empty Condition.
func NewCondition() *Condition {
	return &Condition{wait: rankqueue.New[*Thread]()}
}

// Wait releases m and blocks self until a Signal or Broadcast wakes it,
// then re-acquires m before returning — the caller must already hold m.
func (cv *Condition) Wait(self *Thread, m *Mutex) {
	k := self.k
	c := self.core
	k.s.Acquire(c)
	if next := m.unlockLocked(); next != nil {
		k.admitLocked(next)
	}
	k.suspendSelfLocked(self, cv.wait)
	m.Lock(self)
}

// Signal wakes the single highest-ranked waiter, if any.
func (cv *Condition) Signal(self *Thread) {
	k := self.k
	c := self.core
	k.s.Acquire(c)
	next, ok := cv.wait.PopHead()
	if !ok {
		k.s.Release(c)
		return
	}
	k.wakeOneLocked(c, next)
}

// Broadcast wakes every waiter. Waiters may be homed on several different
// cores; affected cores are tracked in a bitmap so exactly one reschedule
// or IPI is issued per distinct core rather than one per thread, matching
// spec.md's wakeup_all note that the fan-out cost should scale with
// affected queues, not affected threads.
func (cv *Condition) Broadcast(self *Thread) {
	k := self.k
	c := self.core
	k.s.Acquire(c)

	affected := roaring.New()
	for {
		w, ok := cv.wait.PopHead()
		if !ok {
			break
		}
		k.admitLocked(w)
		affected.Add(uint32(w.core))
	}

	if !k.cfg.Preemptive {
		k.s.Release(c)
		return
	}

	sameCore := affected.Contains(uint32(c))
	affected.Remove(uint32(c))

	if sameCore {
		k.rescheduleLocked(c)
	} else {
		k.s.Release(c)
	}

	it := affected.Iterator()
	for it.HasNext() {
		k.ic.IPI(cpu.ID(it.Next()), cpu.IntReschedule)
	}
}
