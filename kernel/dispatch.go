package kernel

import (
	"github.com/orbitos/mcore/cpu"
	"github.com/orbitos/mcore/rankqueue"
)

// dispatch performs the actual context switch on core c, handing the CPU
// from prev to next. It must be called by prev's own goroutine (or, for
// the very first dispatch on a core, with prev == nil) with S held; it
// returns once prev has been granted the core again — except when prev is
// FINISHING, in which case there is nothing to wait for and dispatch
// returns immediately after handing off, exactly like the original
// kernel's switch_context never returning into an exiting thread.
//
// next's goroutine is always already alive and parked on <-next.gate: every
// Thread's run loop is started at construction time (newThread), so no
// goroutine is ever launched from inside dispatch itself.
func (k *Kernel) dispatch(c cpu.ID, prev, next *Thread) {
	if k.sampler != nil {
		k.sampler.RecordDispatch(c, prev, next)
	}

	if prev == next {
		k.s.Release(c)
		return
	}

	switchTask(prev, next)

	next.state = Running
	next.core = c
	k.setCurrentOn(c, next)
	k.armQuantum(c, next)
	k.s.ReleaseBeforeSwitch()

	next.gate <- struct{}{}

	if prev != nil && prev.state != Finishing {
		<-prev.gate // parked here until some future dispatch re-grants prev the core
	}

	k.s.EnableAfterSwitch(c)
	k.hw.Dispatch(c) // drain any IPI that arrived on c while this goroutine was off-CPU
}

// switchTask implements spec.md §4.6's context-switch step: next's task
// address space is activated before the handoff whenever it differs from
// prev's, and prev's task space is deactivated once no other thread of
// prev's task is still RUNNING on some other core. A bare (non-multitask)
// thread's task is nil, so ordinary single-task builds never pay for this
// at all — the nil/nil comparison below short-circuits immediately.
func switchTask(prev, next *Thread) {
	var prevTask, nextTask *Task
	if prev != nil {
		prevTask = prev.task
	}
	if next != nil {
		nextTask = next.task
	}
	if prevTask == nextTask {
		return
	}
	if nextTask != nil {
		nextTask.space.Activate()
	}
	if prevTask != nil && !prevTask.hasRunningThread(prev) {
		prevTask.space.Deactivate()
	}
}

// suspendSelfLocked must be called with S held on self's home core. It
// removes self from the ready set, links it into q in rank order, marks it
// WAITING, and dispatches away — the calling goroutine does not return
// from this function until some other thread moves self back to READY and
// a dispatch grants it the core again.
func (k *Kernel) suspendSelfLocked(self *Thread, q *rankqueue.Queue[*Thread]) {
	c := self.core
	k.sched.Remove(self)
	self.state = Waiting
	q.Insert(self, self.Link())
	next, ok := k.sched.Choose(int(c))
	if !ok {
		next = k.idleFor(c)
	}
	k.dispatch(c, self, next)
}

// wakeOneLocked must be called with S held on caller's core c. It admits w
// to the ready set and, under preemptive scheduling, triggers spec.md
// §4.5's reschedule — synchronously if w's home core is c (the caller may
// itself be preempted in place by the time this call returns), otherwise
// by IPI. This releases S exactly as reschedule does; callers that need to
// do more bookkeeping under S after waking a single waiter should use
// admitLocked + their own single reschedule call instead.
func (k *Kernel) wakeOneLocked(c cpu.ID, w *Thread) {
	k.admitLocked(w)
	if !k.cfg.Preemptive {
		k.s.Release(c)
		return
	}
	k.reschedule(c, w.core)
}

// admitLocked must be called with S held. It moves w into the ready set
// without triggering any reschedule, for callers (Condition.Broadcast,
// exit's joiner fan-out) that need to admit several threads before
// deciding how to reschedule.
func (k *Kernel) admitLocked(w *Thread) {
	if w.suspendedWhileWaiting {
		w.suspendedWhileWaiting = false
		w.woken = true
		return
	}
	w.state = Ready
	k.sched.Insert(w)
}

// admitFromOutside is the safe primitive for waking a thread from a
// goroutine that is not itself running as any Thread's Body — an alarm's
// ticker goroutine, or kernel-level code like Spawn. Unlike wakeOneLocked,
// it never calls dispatch synchronously: since the caller's own goroutine
// has no Thread identity to park, the only safe handoff is the same
// acquire-mutate-release-then-IPI sequence a real interrupt handler uses,
// letting whichever goroutine actually owns the target core process the
// reschedule at its own next checkpoint.
func (k *Kernel) admitFromOutside(target cpu.ID, w *Thread) {
	k.s.Acquire(target)
	k.admitLocked(w)
	k.s.Release(target)
	if k.cfg.Preemptive {
		k.ic.IPI(target, cpu.IntReschedule)
	}
}

// CheckPreempt drains any pending reschedule IPI for t's core. Cooperative
// (non-preemptive) builds must call this explicitly at safe points
// (spec.md §6); preemptive builds call it implicitly whenever a thread
// regains the core (see dispatch's trailing hw.Dispatch call), but long
// tight loops may still call it directly to bound worst-case latency to a
// higher-ranked arrival on another core.
func (t *Thread) CheckPreempt() {
	t.k.hw.Dispatch(t.core)
}

// Yield voluntarily gives up the core, re-entering the ready queue behind
// any other thread of equal rank — the cooperative counterpart to
// preemption, always available regardless of build.
func (t *Thread) Yield() {
	k := t.k
	c := t.core
	k.s.Acquire(c)
	if t.state == Finishing {
		k.s.Release(c)
		return
	}
	k.sched.Remove(t)
	t.state = Ready
	k.sched.Insert(t)
	k.rescheduleLocked(c)
}

// exit transitions t to FINISHING, wakes every thread parked in Join(t),
// and hands the core to the next-best ready entry. It is called exactly
// once, by Thread.run after Body returns.
func (t *Thread) exit(code int) {
	t.exitCode = code
	k := t.k
	c := t.core

	k.s.Acquire(c)
	t.state = Finishing
	k.sched.Remove(t)

	foreign := map[cpu.ID]bool{}
	for {
		j, ok := t.joiners.PopHead()
		if !ok {
			break
		}
		k.admitLocked(j)
		if j.core != c {
			foreign[j.core] = true
		}
	}

	k.threadExited()
	ch := t.finishedCh()
	close(ch)

	next, ok := k.sched.Choose(int(c))
	if !ok {
		next = k.idleFor(c)
	}
	k.dispatch(c, t, next)

	for fc := range foreign {
		k.ic.IPI(fc, cpu.IntReschedule)
	}
}

// Exit ends the calling thread immediately with the given code, short-
// circuiting the rest of Body. Body itself still returns normally in the
// common case; Exit exists for early-return call sites (error paths deep
// in a thread's own call stack) that need FINISHING semantics without
// unwinding by hand.
func (t *Thread) Exit(code int) {
	t.exit(code)
	<-t.gate // never granted again; blocks the (already-finishing) goroutine forever, harmlessly, since dispatch already returned control to whoever was switched to
}
