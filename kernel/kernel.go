// Package kernel implements the unified thread abstraction and SMP
// scheduler core described in spec.md §1-§5: thread lifecycle, the
// per-core ready/suspended queues, the global spin lock handoff, blocking
// synchronizers built on suspend/wakeup, and the periodic/real-time thread
// flavors layered on top of a single Thread type.
//
// A Kernel owns one scheduler.Scheduler[*Thread] domain per logical core.
// There is no real register file to save on a context switch — the "CPU
// context" of a Thread is simply the call stack of the goroutine running
// its Body, parked on a private gate channel whenever it is not the
// current core's chosen thread. See dispatch.go for the handoff protocol.
package kernel

import (
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orbitos/mcore/cpu"
	"github.com/orbitos/mcore/criterion"
	"github.com/orbitos/mcore/scheduler"
	"github.com/orbitos/mcore/spinlock"
)

// Sampler is the narrow observation hook a *Kernel drives at dispatch time
// and at each periodic release. It is defined here, not in monitor, so
// this package stays independent of monitor's prometheus/rate-limiter
// stack — monitor.Recorder implements it.
type Sampler interface {
	RecordDispatch(core cpu.ID, prev, next *Thread)
	RecordRelease(t *Thread, missed bool)
	RegisterPeriod(core cpu.ID, period time.Duration)
	Flush()
}

// Kernel wires together the hardware block, the spin lock, and the
// scheduler into the runnable system spec.md §1 describes.
type Kernel struct {
	cfg Config
	hw  *cpu.Simulated
	ic  cpu.IC
	s   *spinlock.Lock

	sched *scheduler.Scheduler[*Thread]

	mu      sync.Mutex
	running []*Thread // currently dispatched thread per core
	idle    []*Thread // per-core IDLE thread, always non-nil once Boot returns

	threadCount atomic.Int64
	nextID      atomic.Int64

	quantumTimers []*time.Timer // per-core round-robin timer, touched only under that core's S

	sampler Sampler
	log     *log.Logger

	halting atomic.Bool
}

// New constructs a Kernel from cfg but does not start any threads; call
// Boot to bring up the per-core IDLE threads before admitting user work.
func New(cfg Config) *Kernel {
	hw := cpu.NewSimulated(cfg.Cores)
	k := &Kernel{
		cfg:           cfg,
		hw:            hw,
		ic:            hw,
		s:             spinlock.New(hw),
		sched:         scheduler.New[*Thread](cfg.Cores),
		running:       make([]*Thread, cfg.Cores),
		idle:          make([]*Thread, cfg.Cores),
		quantumTimers: make([]*time.Timer, cfg.Cores),
		log:           log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds),
	}
	k.ic.IntVector(cpu.IntReschedule, k.onRescheduleIPI)
	k.ic.IntVector(cpu.IntQuantum, k.onQuantumIPI)
	return k
}

// SetSampler installs the statistics hook used by monitor.Recorder. Must be
// called before Boot.
func (k *Kernel) SetSampler(s Sampler) { k.sampler = s }

// Cores reports the configured core count.
func (k *Kernel) Cores() int { return k.cfg.Cores }

// Config returns the kernel's resolved configuration.
func (k *Kernel) Config() Config { return k.cfg }

func (k *Kernel) allocID() ID {
	return ID(k.nextID.Add(1))
}

// Boot creates and releases the per-core IDLE threads, then the single MAIN
// thread on core 0 running fn. Boot blocks until the MAIN thread reaches
// FINISHING and then returns; other threads may still be live (ready,
// blocked, or running on other cores) at that point.
func (k *Kernel) Boot(fn func(*Thread)) {
	for c := 0; c < k.cfg.Cores; c++ {
		idleThread := k.newThread(criterion.Idle(c), fmt.Sprintf("idle/%d", c), func(t *Thread) {
			k.idleLoop(t)
		})
		idleThread.isIdle = true
		k.mu.Lock()
		k.idle[c] = idleThread
		k.mu.Unlock()
		k.sched.Insert(idleThread)
	}

	main := k.newThread(criterion.Main(0), "main", fn)
	k.sched.Insert(main)

	for c := 0; c < k.cfg.Cores; c++ {
		go k.runCore(cpu.ID(c))
	}

	main.Wait()
}

// runCore starts goroutine-side execution for core c: it acquires S,
// chooses the highest-ranked ready entry, and dispatches into it. Every
// subsequent dispatch on this core happens inline inside Thread bodies
// via CheckPreempt/Yield/Sleep/Exit — runCore itself only seeds the very
// first thread.
func (k *Kernel) runCore(c cpu.ID) {
	k.s.Acquire(c)
	first, ok := k.sched.Choose(int(c))
	if !ok {
		first = k.idleFor(c)
	}
	k.dispatch(c, nil, first)
}

func (k *Kernel) idleFor(c cpu.ID) *Thread {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.idle[c]
}

func (k *Kernel) currentOn(c cpu.ID) *Thread {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.running[c]
}

func (k *Kernel) setCurrentOn(c cpu.ID, t *Thread) {
	k.mu.Lock()
	k.running[c] = t
	k.mu.Unlock()
}

// onRescheduleIPI is the reschedule interrupt handler registered at
// construction time. It always runs synchronously on the calling core's
// own currently-running goroutine — there is no foreign-goroutine
// injection in Go, so the handler simply re-derives "self" and, if a
// higher-ranked ready entry now exists, hands off to it right here.
func (k *Kernel) onRescheduleIPI(c cpu.ID) {
	k.s.Acquire(c)
	k.rescheduleLocked(c)
}

// rescheduleLocked must be called with S held on core c. It chooses the
// best ready entry for c's domain and, if different from the thread
// currently occupying c, performs the handoff via dispatch. If the chosen
// entry is the same thread already running, S is simply released.
func (k *Kernel) rescheduleLocked(c cpu.ID) {
	self := k.currentOn(c)
	next, ok := k.sched.Choose(int(c))
	if !ok {
		next = k.idleFor(c)
	}
	if self != nil && next == self {
		k.s.Release(c)
		return
	}
	k.dispatch(c, self, next)
}

// reschedule is the spec.md §4.5 primitive: if target is the calling core,
// the handoff runs synchronously in the same call; otherwise an IPI is
// sent and S is released so the remote core can process it at its own
// next checkpoint.
func (k *Kernel) reschedule(caller cpu.ID, target cpu.ID) {
	if target == caller {
		k.rescheduleLocked(caller)
		return
	}
	k.s.Release(caller)
	k.ic.IPI(target, cpu.IntReschedule)
}

// threadExited is called once a Thread's Body returns, decrementing the
// live count and triggering shutdown policy once only IDLE threads remain:
// per spec.md §4.9, the sampler flushes its pending batch, the event is
// announced, and every core's idle loop is woken so it can notice halting
// has begun and park for good instead of spinning through Halt forever.
func (k *Kernel) threadExited() {
	if k.threadCount.Add(-1) <= int64(k.cfg.Cores) {
		k.mu.Lock()
		halting := k.halting.Swap(true)
		k.mu.Unlock()
		if !halting {
			if k.sampler != nil {
				k.sampler.Flush()
			}
			k.log.Printf("kernel: last user thread exited, %s", haltVerb(k.cfg.Reboot))
			for c := 0; c < k.cfg.Cores; c++ {
				k.ic.IPI(cpu.ID(c), cpu.IntReschedule)
			}
		}
	}
}

// armQuantum (re)arms core c's round-robin timer so that, per spec.md
// §5's QUANTUM config, next is requeued behind any ready peer of equal
// rank after Quantum elapses — but only sends an IPI when it fires, never
// calling dispatch directly: a goroutine can only switch itself away at
// its own checkpoint (see dispatch's doc comment), so the timer merely
// marks the reschedule pending exactly like any other interrupt source,
// and onQuantumIPI performs the actual rotation once next's own goroutine
// drains it.
func (k *Kernel) armQuantum(c cpu.ID, next *Thread) {
	if old := k.quantumTimers[c]; old != nil {
		old.Stop()
		k.quantumTimers[c] = nil
	}
	if k.cfg.Quantum <= 0 || !k.cfg.Preemptive || next.isIdle {
		return
	}
	if !k.sched.TiedWith(int(c), next) {
		return
	}
	k.quantumTimers[c] = time.AfterFunc(k.cfg.Quantum, func() {
		k.ic.IPI(c, cpu.IntQuantum)
	})
}

// onQuantumIPI is QUANTUM's interrupt handler, registered at construction
// time. Like onRescheduleIPI it always runs synchronously on whichever
// goroutine currently occupies core c, so it is free to perform the same
// remove/reinsert-at-tail dance Yield does on its own thread — it just
// re-derives "the currently running thread" instead of being handed one,
// which makes a late-firing timer self-correcting: if the core's occupant
// changed (or no longer ties with anything) since the timer was armed,
// this is a harmless no-op.
func (k *Kernel) onQuantumIPI(c cpu.ID) {
	k.s.Acquire(c)
	self := k.currentOn(c)
	if self == nil || self.state != Running || !k.sched.TiedWith(int(c), self) {
		k.s.Release(c)
		return
	}
	k.sched.Remove(self)
	k.sched.Insert(self)
	k.rescheduleLocked(c)
}

// ReadyLen reports the number of ready (schedulable) threads on core c.
func (k *Kernel) ReadyLen(c cpu.ID) int {
	return k.sched.ReadyLen(int(c))
}

// ThreadCount reports the number of currently live threads (all states).
func (k *Kernel) ThreadCount() int64 {
	return k.threadCount.Load()
}

func haltVerb(reboot bool) string {
	if reboot {
		return "rebooting"
	}
	return "halting"
}
