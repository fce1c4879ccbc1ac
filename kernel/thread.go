package kernel

import (
	"github.com/orbitos/mcore/cpu"
	"github.com/orbitos/mcore/criterion"
	"github.com/orbitos/mcore/rankqueue"
)

// State is a Thread's position in the lifecycle described in spec.md §2.1.
type State int

const (
	Ready State = iota
	Running
	Suspended
	Waiting
	Finishing
)

func (st State) String() string {
	switch st {
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Suspended:
		return "SUSPENDED"
	case Waiting:
		return "WAITING"
	case Finishing:
		return "FINISHING"
	default:
		return "UNKNOWN"
	}
}

// Thread is the single unified abstraction spec.md §2 describes: every
// schedulable flow of control, periodic or aperiodic, user or kernel, is a
// *Thread. Its "context" is the goroutine stack running Body, parked on
// gate whenever another thread occupies its core.
type Thread struct {
	id   ID
	k    *Kernel
	name string

	criterion criterion.Criterion
	link      rankqueue.Link[*Thread]

	core cpu.ID // home core, mirrors criterion.Queue() while RUNNING

	state State
	body  func(t *Thread)

	gate chan struct{} // one-slot handoff: receiving means "you are now RUNNING"

	isIdle   bool
	joiners  *rankqueue.Queue[*Thread] // threads parked in Join(), woken on exit
	exitCode int
	done     chan struct{} // closed once, at exit; lazily allocated by finishedCh

	task *Task // nil for bare (non-multitask) threads

	// suspendedWhileWaiting and woken together let Suspend/Resume interact
	// safely with a thread parked in a synchronizer's own wait queue
	// (Mutex.wait, Semaphore.wait, Condition.wait) instead of the
	// scheduler's ready/suspended sets. Suspend on a WAITING thread must
	// never call scheduler.Suspend — the thread isn't linked into either of
	// the scheduler's queues, only the synchronizer's — so it just flags
	// the thread and leaves it exactly where it is. When the synchronizer
	// later wakes it (Unlock, V, Signal/Broadcast), admitLocked sees the
	// flag and, instead of readying the thread, flips it to woken and
	// leaves it SUSPENDED; Resume then promotes it straight to READY
	// without ever touching the scheduler's suspended set, since it was
	// never inserted there either.
	suspendedWhileWaiting bool
	woken                 bool
}

// newThread allocates a Thread and its goroutine but does not make it
// ready; callers insert it into the scheduler themselves (Boot does this
// directly; Spawn below does it for user code).
func (k *Kernel) newThread(crit criterion.Criterion, name string, body func(t *Thread)) *Thread {
	t := &Thread{
		id:        k.allocID(),
		k:         k,
		name:      name,
		criterion: crit,
		core:      cpu.ID(crit.Queue()),
		state:     Ready,
		body:      body,
		gate:      make(chan struct{}, 1),
		joiners:   rankqueue.New[*Thread](),
	}
	k.threadCount.Add(1)
	go t.run()
	return t
}

// Spawn creates a new aperiodic Thread under crit and admits it to the
// ready queue, matching spec.md §4.4's "creation implies immediate
// READY" rule (no separate activate() step for plain Thread, unlike Task).
//
// Spawn is meant to be called from outside any Thread body (boot code, an
// HTTP handler in cmd/boot). There is no "self" goroutine to synchronously
// hand off to here — even if the new thread outranks whatever core c is
// currently running, the handoff can only happen when that core's own
// goroutine next reaches a checkpoint, so this always goes through the
// IPI path. A thread spawning a child from within its own Body should call
// (*Thread).Spawn instead, which reschedules synchronously when the child
// lands on the spawner's own core.
func (k *Kernel) Spawn(crit criterion.Criterion, name string, body func(t *Thread)) *Thread {
	t := k.newThread(crit, name, body)
	c := t.core
	k.s.Acquire(c)
	k.sched.Insert(t)
	if k.cfg.Preemptive {
		k.s.Release(c)
		k.ic.IPI(c, cpu.IntReschedule)
		return t
	}
	k.s.Release(c)
	return t
}

// spawnSuspended creates a thread exactly like Spawn but leaves it
// SUSPENDED instead of admitting it to the ready queue, for callers
// (NewPeriodic, NewRT) whose spec.md §4.7/§4.8 contract requires the first
// activation to align with an alarm rather than with construction. The
// caller must Resume the thread once it is ready for the alarm to matter.
func (k *Kernel) spawnSuspended(crit criterion.Criterion, name string, body func(t *Thread)) *Thread {
	t := k.newThread(crit, name, body)
	c := t.core
	k.s.Acquire(c)
	t.state = Suspended
	k.sched.Suspend(t)
	k.s.Release(c)
	return t
}

// Spawn, called from within a running Thread, admits a child and triggers
// the same-core synchronous preemption path spec.md's testable property 3
// requires when the child outranks the parent.
func (t *Thread) Spawn(crit criterion.Criterion, name string, body func(tt *Thread)) *Thread {
	k := t.k
	child := k.newThread(crit, name, body)
	c := child.core
	k.s.Acquire(c)
	k.sched.Insert(child)
	if k.cfg.Preemptive {
		k.reschedule(t.core, c)
	} else {
		k.s.Release(c)
	}
	return child
}

// ID returns the thread's identity.
func (t *Thread) ID() ID { return t.id }

// Equal reports whether t and other name the same thread. Two nil
// receivers/arguments compare equal; comparing against a BootPseudoID
// value (which no real Thread ever carries as t.id) always reports false,
// resolving spec.md §9(b)'s id-conflation Open Question the same way
// CurrentID avoids ever minting a real Thread for a pseudo-id in the first
// place.
func (t *Thread) Equal(other *Thread) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.id == other.id
}

// Name returns the thread's human-readable label.
func (t *Thread) Name() string { return t.name }

// State returns the thread's current lifecycle state. Reading it outside
// of S is racy by nature (the value can change the instant it's read) but
// matches how the corpus exposes best-effort status for logging/metrics.
func (t *Thread) State() State { return t.state }

// Criterion returns the thread's current scheduling criterion.
func (t *Thread) Criterion() criterion.Criterion { return t.criterion }

// Link implements scheduler.Entry.
func (t *Thread) Link() *rankqueue.Link[*Thread] { return &t.link }

// Less implements rankqueue.Ranked by delegating to Criterion order.
func (t *Thread) Less(other *Thread) bool { return t.criterion.Less(other.criterion) }

// Core reports the thread's home queue (cpu.ID), authoritative while
// RUNNING or READY.
func (t *Thread) Core() cpu.ID { return t.core }

// IsIdle reports whether t is the per-core IDLE thread Boot creates, the
// one monitor.Recorder excludes from run-time accounting and treats as the
// core's idle signal for hyperperiod statistics.
func (t *Thread) IsIdle() bool { return t.isIdle }

// run is the goroutine entry point newThread starts once per Thread at
// construction. It waits to be let through the gate by the first dispatch
// that grants it the core, runs Body, and on return performs the FINISHING
// handoff.
func (t *Thread) run() {
	<-t.gate
	t.body(t)
	t.exit(0)
}

// Wait blocks the calling goroutine (only ever Boot's) until t reaches
// FINISHING. Used solely to keep Boot from returning while MAIN is alive.
func (t *Thread) Wait() {
	<-t.finishedCh()
}

func (t *Thread) finishedCh() chan struct{} {
	// main's own completion is observed by closing a channel at exit time;
	// reuse gate's closing semantics is unsafe (gate is reused per resume),
	// so a dedicated channel is allocated lazily the first time Wait/exit
	// needs it.
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	if t.done == nil {
		t.done = make(chan struct{})
	}
	return t.done
}
