package kernel

import (
	"github.com/orbitos/mcore/cpu"
	"github.com/orbitos/mcore/criterion"
)

// Suspend removes t from scheduling eligibility, regardless of its current
// state (other than FINISHING, which is terminal). Safe to call from
// outside any thread body — e.g. a monitor or supervisor goroutine
// suspending a misbehaving thread. If t happens to be RUNNING on its own
// core, t's own goroutine notices at its next checkpoint (CheckPreempt or
// a dispatch return) via the same IPI path external wakeups use; there is
// no way to forcibly halt a running goroutine's Go call stack any sooner
// than that in a pure userspace simulation.
func (t *Thread) Suspend() {
	k := t.k
	c := t.core
	k.s.Acquire(c)
	if t.state == Finishing || t.state == Suspended {
		k.s.Release(c)
		return
	}
	if t.state == Waiting {
		// t is linked into some synchronizer's private wait queue, not the
		// scheduler's — flag it and leave that link alone. admitLocked
		// checks the flag when the synchronizer eventually wakes t.
		t.suspendedWhileWaiting = true
		t.state = Suspended
		k.s.Release(c)
		return
	}
	wasRunning := t.state == Running
	k.sched.Suspend(t)
	t.state = Suspended
	k.s.Release(c)
	if wasRunning {
		k.ic.IPI(c, cpu.IntReschedule)
	}
}

// Resume makes a SUSPENDED thread eligible again. Safe to call from
// outside any thread body.
func (t *Thread) Resume() {
	k := t.k
	c := t.core
	k.s.Acquire(c)
	if t.state != Suspended {
		k.s.Release(c)
		return
	}
	if t.woken {
		// The synchronizer t was blocked on already handed it a wakeup
		// while it was suspended; it was never re-linked into the
		// scheduler's suspended set, so go straight to READY.
		t.woken = false
		t.state = Ready
		k.sched.Insert(t)
	} else if t.suspendedWhileWaiting {
		// Never actually woken: still parked in the synchronizer's own
		// wait queue exactly as it was before Suspend, so just lift the
		// flag and hand it back its WAITING state.
		t.suspendedWhileWaiting = false
		t.state = Waiting
		k.s.Release(c)
		return
	} else {
		k.sched.Resume(t)
		t.state = Ready
	}
	k.s.Release(c)
	if k.cfg.Preemptive {
		k.ic.IPI(c, cpu.IntReschedule)
	}
}

// SetCriterion installs a new scheduling criterion for t, re-admitting it
// to the scheduler under its new rank if it is currently schedulable.
// Spec.md's Open Question (a) — what happens when a remote core's
// currently RUNNING thread is re-prioritized — is resolved the same way as
// Suspend/Resume: the state change and re-insertion happen immediately
// under S, and an IPI (always, not just when the rank improved — this
// stays simple and the receiving core's reschedule is a cheap no-op if
// nothing actually changed) nudges t's home core to reconsider at its next
// checkpoint, rather than pretending to preempt mid-instruction.
func (t *Thread) SetCriterion(c criterion.Criterion) {
	k := t.k
	oldCore := t.core
	k.s.Acquire(oldCore)

	if t.state == Finishing {
		k.s.Release(oldCore)
		return
	}

	if t.state == Running {
		// A thread can't migrate cores mid-dispatch without a context
		// switch; pin the new criterion to the core it is actually running
		// on and let the next suspend/insert cycle pick up any queue
		// change the caller asked for.
		t.criterion = c.WithQueue(int(oldCore))
		k.s.Release(oldCore)
		if k.cfg.Preemptive {
			k.ic.IPI(oldCore, cpu.IntReschedule)
		}
		return
	}

	// A WAITING thread is linked into a synchronizer's own wait queue, not
	// the scheduler's, so only a Ready thread gets the remove/re-insert
	// dance below; a blocked thread's rank takes effect the next time it is
	// actually queued (its wait queue itself is not re-sorted here).
	if t.state == Ready {
		k.sched.Remove(t)
	}
	t.criterion = c
	t.core = cpu.ID(c.Queue())
	if t.state == Ready {
		k.sched.Insert(t)
	}
	newCore := t.core
	k.s.Release(oldCore)

	if k.cfg.Preemptive {
		k.ic.IPI(oldCore, cpu.IntReschedule)
		if newCore != oldCore {
			k.ic.IPI(newCore, cpu.IntReschedule)
		}
	}
}
