// Package criterion implements the comparable ranks described in spec.md
// §3/§4.2/§4.3: static disciplines (fixed priority, rate monotonic) and
// dynamic disciplines (EDF, global EDF, partitioned EDF), each declaring
// whether it is preemptive, timed, and dynamic, plus the reserved ranks
// ISR/MAIN/IDLE.
package criterion

import "time"

// Discipline names the scheduling policy a Criterion was built from,
// matching the Traits<Build>::Criterion build option in spec.md §6.
type Discipline int

const (
	FixedPriority Discipline = iota
	RateMonotonic
	EDF
	GlobalEDF
	PartitionedEDF
)

func (d Discipline) String() string {
	switch d {
	case FixedPriority:
		return "FCFS/FP"
	case RateMonotonic:
		return "RM"
	case EDF:
		return "EDF"
	case GlobalEDF:
		return "G-EDF"
	case PartitionedEDF:
		return "P-EDF"
	default:
		return "unknown"
	}
}

// Reserved ranks. ISR is biased further by the interrupt id so nested ISR
// criteria still order correctly among themselves; MAIN and IDLE bound the
// ordinary priority space from above and below respectively.
const (
	rankISR  = -1_000_000
	rankMain = 0
	rankIdle = 1 << 30
)

// Criterion is a policy-specific rank: a total order plus the home queue
// it targets and the flags a scheduler/thread need to decide preemption
// and periodic update behavior.
type Criterion struct {
	discipline Discipline
	queue      int // target CPU/domain; authoritative per spec.md §4.2
	value      int64
	deadline   time.Time // absolute deadline, set by timed/dynamic disciplines
	period     time.Duration
	seq        uint64 // monotonically increasing at construction, used as a last-resort FIFO tiebreak across disciplines sharing a value
}

var seqCounter uint64

func nextSeq() uint64 {
	seqCounter++
	return seqCounter
}

// FP constructs a fixed-priority criterion targeting the given queue.
// Lower value is higher priority, matching spec.md's "0 (Critical) to 10
// (Background)" convention seen across the corpus.
func FP(queue int, priority int) Criterion {
	return Criterion{discipline: FixedPriority, queue: queue, value: int64(priority), seq: nextSeq()}
}

// RM constructs a rate-monotonic criterion: priority is derived from
// period (shorter period => higher priority), computed once at admission.
func RM(queue int, period time.Duration) Criterion {
	return Criterion{discipline: RateMonotonic, queue: queue, value: int64(period), period: period, seq: nextSeq()}
}

// NewEDF constructs a per-queue (partitioned by construction) earliest
// deadline first criterion whose rank is the absolute deadline.
func NewEDF(queue int, deadline time.Time, period time.Duration) Criterion {
	return Criterion{discipline: EDF, queue: queue, deadline: deadline, period: period, seq: nextSeq()}
}

// NewGEDF constructs a global-EDF criterion. Unlike EDF and P-EDF, Update
// adopts whatever queue the caller passes, so the owning thread can move to
// another core's queue; this package does not choose that queue itself.
func NewGEDF(queue int, deadline time.Time, period time.Duration) Criterion {
	return Criterion{discipline: GlobalEDF, queue: queue, deadline: deadline, period: period, seq: nextSeq()}
}

// NewPEDF constructs a partitioned-EDF criterion: like EDF, but the queue
// is fixed for the lifetime of the thread (no migration across Update()).
func NewPEDF(queue int, deadline time.Time, period time.Duration) Criterion {
	return Criterion{discipline: PartitionedEDF, queue: queue, deadline: deadline, period: period, seq: nextSeq()}
}

// ISR constructs the highest-possible rank, biased by interrupt id so that
// nested/multiple ISR-context criteria still order deterministically.
func ISR(queue int, intID int) Criterion {
	return Criterion{discipline: FixedPriority, queue: queue, value: int64(rankISR - intID), seq: nextSeq()}
}

// Main constructs the criterion assigned to each core's boot/MAIN thread.
func Main(queue int) Criterion {
	return Criterion{discipline: FixedPriority, queue: queue, value: rankMain, seq: nextSeq()}
}

// Idle constructs the lowest-possible rank, used by the per-core IDLE
// thread described in spec.md §4.9.
func Idle(queue int) Criterion {
	return Criterion{discipline: FixedPriority, queue: queue, value: rankIdle, seq: nextSeq()}
}

// Queue returns the target CPU/domain, authoritative for scheduler
// affinity per spec.md §4.2.
func (c Criterion) Queue() int { return c.queue }

// WithQueue returns a copy of c retargeted to a different queue — the
// mechanism by which a thread migrates (spec.md §4.2: "a thread migrates
// by changing its criterion and being re-inserted").
func (c Criterion) WithQueue(queue int) Criterion {
	c.queue = queue
	return c
}

// Discipline reports which policy produced c.
func (c Criterion) Discipline() Discipline { return c.discipline }

// Preemptive reports whether threads under this criterion may be
// preempted by a higher-ranked arrival. All disciplines here are
// preemptive; the build-time cooperative/preemptive choice in spec.md §6
// is a kernel-wide flag, not per-criterion; Criterion has no per-instance
// preemptive field, and this method returns true for every discipline.
func (c Criterion) Preemptive() bool { return true }

// Timed reports whether the rank carries wall-clock semantics (deadline or
// period), i.e. every discipline except plain fixed priority.
func (c Criterion) Timed() bool {
	return c.discipline != FixedPriority
}

// Dynamic reports whether Update must be called once per job, i.e. the EDF
// family.
func (c Criterion) Dynamic() bool {
	switch c.discipline {
	case EDF, GlobalEDF, PartitionedEDF:
		return true
	default:
		return false
	}
}

// Deadline returns the absolute deadline for timed disciplines.
func (c Criterion) Deadline() time.Time { return c.deadline }

// Period returns the configured period, if any.
func (c Criterion) Period() time.Duration { return c.period }

// Update recomputes a dynamic criterion's rank for its next job, given the
// job's new absolute deadline and (for G-EDF only) a freshly chosen home
// queue. Static disciplines return c unchanged.
func (c Criterion) Update(nextDeadline time.Time, nextQueue int) Criterion {
	if !c.Dynamic() {
		return c
	}
	c.deadline = nextDeadline
	c.seq = nextSeq()
	if c.discipline == GlobalEDF {
		c.queue = nextQueue
	}
	return c
}

// rank reduces a Criterion to a single comparable magnitude: for dynamic
// (EDF-family) disciplines this is the absolute deadline; for static
// disciplines, rate monotonic included, it is the priority value. Reserved criteria (ISR/MAIN/IDLE) always use the
// static branch with sentinel values far outside any real deadline's
// nanosecond range, so they compare correctly against timed criteria too
// without special-casing every comparison.
func (c Criterion) rank() int64 {
	if c.Dynamic() {
		return c.deadline.UnixNano()
	}
	return c.value << 32 // shifted well clear of UnixNano()'s range for ISR/MAIN/IDLE's small sentinel values
}

// Less implements rankqueue.Ranked: lower rank wins; among exactly equal
// ranks, the earlier-constructed (or earlier Update()d) criterion wins,
// which is what preserves FIFO order among threads of identical priority —
// spec.md's testable property 4.
func (c Criterion) Less(other Criterion) bool {
	if r, or := c.rank(), other.rank(); r != or {
		return r < or
	}
	return c.seq < other.seq
}

// String renders the criterion for structured logging, mirroring the
// compact %v conventions used across the corpus's decision logs.
func (c Criterion) String() string {
	if c.Dynamic() {
		return c.discipline.String() + "@" + c.deadline.Format(time.RFC3339Nano)
	}
	return c.discipline.String()
}
