package kernel

import "github.com/orbitos/mcore/rankqueue"

// Mutex is a non-recursive mutual-exclusion lock built directly on
// suspend/wakeup, per spec.md §5.1: Lock never busy-waits past the first
// failed test, instead parking the calling thread in a rank-ordered wait
// queue until Unlock hands the lock straight to it.
type Mutex struct {
	owner *Thread
	wait  *rankqueue.Queue[*Thread]
}

// NewMutex returns an unlocked Mutex.
func NewMutex() *Mutex {
	return &Mutex{wait: rankqueue.New[*Thread]()}
}

// Lock acquires m for self, blocking if another thread currently holds it.
func (m *Mutex) Lock(self *Thread) {
	k := self.k
	c := self.core
	k.s.Acquire(c)
	if m.owner == nil {
		m.owner = self
		k.s.Release(c)
		return
	}
	if m.owner == self {
		k.s.Release(c) // non-recursive: caller already owns it, Lock is a no-op rather than a self-deadlock
		return
	}
	k.suspendSelfLocked(self, m.wait)
	// self resumes here only once Unlock has made it the new owner.
}

// Unlock releases m, held by self, handing ownership directly to the
// highest-ranked waiter if any, or leaving m free otherwise.
func (m *Mutex) Unlock(self *Thread) {
	k := self.k
	c := self.core
	k.s.Acquire(c)
	if m.owner != self {
		k.s.Release(c)
		return
	}
	next := m.unlockLocked()
	if next == nil {
		k.s.Release(c)
		return
	}
	k.wakeOneLocked(c, next)
}

// unlockLocked must be called with S already held by the caller. It clears
// ownership and, if a waiter exists, hands it ownership and returns it for
// the caller to admit/reschedule itself — used by Condition.Wait, which
// needs to release m and park self in the same S critical section.
func (m *Mutex) unlockLocked() *Thread {
	next, ok := m.wait.PopHead()
	if !ok {
		m.owner = nil
		return nil
	}
	m.owner = next
	return next
}

// TryLock attempts to acquire m without blocking, reporting success.
func (m *Mutex) TryLock(self *Thread) bool {
	k := self.k
	c := self.core
	k.s.Acquire(c)
	defer k.s.Release(c)
	if m.owner == nil {
		m.owner = self
		return true
	}
	return m.owner == self
}
