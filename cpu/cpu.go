// Package cpu defines the narrow hardware contract the kernel core consumes:
// atomic interrupt enable/disable, per-core identity, halt, and
// inter-processor interrupt delivery. It is the leaf dependency of the
// whole core — nothing in this package imports anything above it.
package cpu

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// ID identifies a logical core. Cores are numbered 0..Cores()-1.
type ID int

func (id ID) String() string {
	return strconv.Itoa(int(id))
}

// Interface is the per-core hardware surface consumed by spinlock.Lock and
// by the kernel dispatcher. A single process hosts Cores() virtual cores;
// there is no real register file to save, so "context" lives entirely in
// the goroutine stack of whichever Thread is currently granted the core.
type Interface interface {
	Cores() int
	IntEnable(c ID)
	IntDisable(c ID)
	IntDisabled(c ID) bool
	Halt(c ID)
}

// Reserved interrupt vector ids, matching spec.md §6's IC contract.
const (
	IntReschedule = iota
	IntSysTimer
	IntQuantum
)

// IC is the interrupt controller contract: IPI send plus vector
// registration. Handlers run synchronously on whatever goroutine later
// calls Dispatch for that core — there is no asynchronous signal delivery
// in a pure Go process, so delivery is checkpoint-based (see
// kernel.Thread.CheckPreempt and kernel's idle loop, which poll Dispatch
// at every safe point).
type IC interface {
	IPI(target ID, intID int)
	IntVector(intID int, handler func(ID))
	Dispatch(c ID)
}

// Simulated is an in-process stand-in for real CPU/IC hardware: Cores()
// independent goroutine-scheduling domains sharing one OS process.
type Simulated struct {
	cores    int
	disabled []atomic.Bool

	mu       sync.Mutex
	pending  []chan int // one pending-IPI mailbox per core, carrying each IPI's vector id
	handlers map[int]func(ID)
}

// NewSimulated constructs a Simulated hardware block with the given core
// count. cores must be >= 1.
func NewSimulated(cores int) *Simulated {
	if cores < 1 {
		cores = 1
	}
	s := &Simulated{
		cores:    cores,
		disabled: make([]atomic.Bool, cores),
		pending:  make([]chan int, cores),
		handlers: make(map[int]func(ID)),
	}
	for i := range s.pending {
		s.pending[i] = make(chan int, 8)
	}
	return s
}

func (s *Simulated) Cores() int { return s.cores }

func (s *Simulated) IntEnable(c ID)  { s.disabled[c].Store(false) }
func (s *Simulated) IntDisable(c ID) { s.disabled[c].Store(true) }
func (s *Simulated) IntDisabled(c ID) bool {
	return s.disabled[c].Load()
}

// Halt parks the calling goroutine until an IPI targets its core. Used by
// the idle thread: it is the only body allowed to block indefinitely,
// since every other Thread must reach a checkpoint on its own. The IPI that
// ends Halt is consumed by it; its handler is not run.
func (s *Simulated) Halt(c ID) {
	<-s.pending[c]
}

func (s *Simulated) IPI(target ID, intID int) {
	select {
	case s.pending[target] <- intID:
	default:
		// mailbox full: an IPI is already outstanding for this core, which is
		// sufficient — reschedule is idempotent (it just re-evaluates choose()).
	}
}

func (s *Simulated) IntVector(intID int, handler func(ID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[intID] = handler
}

// Dispatch drains and runs any pending interrupt handlers for core c. The
// kernel calls this at every checkpoint (CheckPreempt, idle loop wakeup,
// blocking-primitive return) to emulate asynchronous IPI delivery.
func (s *Simulated) Dispatch(c ID) {
	for {
		select {
		case intID := <-s.pending[c]:
			s.mu.Lock()
			h := s.handlers[intID]
			s.mu.Unlock()
			if h != nil {
				h(c)
			}
		default:
			return
		}
	}
}
