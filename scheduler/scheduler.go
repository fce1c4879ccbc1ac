// Package scheduler implements the QUEUES-ordered-queue scheduler core
// described in spec.md §3/§4.2: one rank-ordered queue per scheduling
// domain (typically one per CPU), with insert/remove/suspend/resume/choose
// operations. It is generic over the entry type so that this package has
// no dependency on kernel.Thread — kernel depends on scheduler, not the
// other way around, which is how a C++ Scheduler<Thread> template
// specializes without Go import cycles.
package scheduler

import (
	"github.com/orbitos/mcore/criterion"
	"github.com/orbitos/mcore/rankqueue"
)

// Entry is anything a Scheduler can order: it must carry a Criterion
// (its rank plus home queue) and expose the Link rankqueue uses to track
// queue membership.
type Entry[T rankqueue.Ranked[T]] interface {
	rankqueue.Ranked[T]
	Criterion() criterion.Criterion
	Link() *rankqueue.Link[T]
}

// Scheduler owns QUEUES independent ready queues plus one suspended set
// per queue. All operations assume the caller holds the kernel's spin
// lock S; Scheduler itself performs no locking.
type Scheduler[T Entry[T]] struct {
	ready     []*rankqueue.Queue[T]
	suspended []*rankqueue.Queue[T]
}

// New builds a Scheduler with the given number of domains (QUEUES).
func New[T Entry[T]](queues int) *Scheduler[T] {
	if queues < 1 {
		queues = 1
	}
	s := &Scheduler[T]{
		ready:     make([]*rankqueue.Queue[T], queues),
		suspended: make([]*rankqueue.Queue[T], queues),
	}
	for i := range s.ready {
		s.ready[i] = rankqueue.New[T]()
		s.suspended[i] = rankqueue.New[T]()
	}
	return s
}

// Queues reports the number of scheduling domains.
func (s *Scheduler[T]) Queues() int { return len(s.ready) }

func (s *Scheduler[T]) domain(t T) int {
	q := t.Criterion().Queue()
	if q < 0 || q >= len(s.ready) {
		q = 0
	}
	return q
}

// Insert places t in its home queue's ready set, per t.Criterion().Queue().
func (s *Scheduler[T]) Insert(t T) {
	s.ready[s.domain(t)].Insert(t, t.Link())
}

// Remove unlinks t from whichever ready or suspended queue currently holds
// it.
func (s *Scheduler[T]) Remove(t T) {
	if q := t.Link().Queue(); q != nil {
		q.Remove(t.Link())
	}
}

// Suspend moves t from its ready queue to the suspended set for the same
// domain, without losing its criterion.
func (s *Scheduler[T]) Suspend(t T) {
	d := s.domain(t)
	if t.Link().Queue() == s.ready[d] {
		s.ready[d].Remove(t.Link())
	}
	s.suspended[d].Insert(t, t.Link())
}

// Resume moves t from the suspended set back into its ready queue.
func (s *Scheduler[T]) Resume(t T) {
	d := s.domain(t)
	if t.Link().Queue() == s.suspended[d] {
		s.suspended[d].Remove(t.Link())
	}
	s.ready[d].Insert(t, t.Link())
}

// Choose returns the highest-ranked entry in domain's ready queue without
// removing it. The boolean is false only if the ready queue is genuinely
// empty — callers (kernel) guarantee an IDLE entry is always present once
// booted, matching spec.md's "IDLE always exists" guarantee.
func (s *Scheduler[T]) Choose(domain int) (T, bool) {
	return s.ready[domain].Head()
}

// ChooseOther returns the highest-ranked entry in domain's ready queue
// that is not cur, or false if none exists.
func (s *Scheduler[T]) ChooseOther(domain int, cur T) (T, bool) {
	var result T
	found := false
	s.ready[domain].Each(func(v T) {
		if found {
			return
		}
		if !sameEntry(v, cur) {
			result = v
			found = true
		}
	})
	return result, found
}

// sameEntry compares by link identity: two Entry values denote the same
// underlying thread iff they share a Link pointer.
func sameEntry[T Entry[T]](a, b T) bool {
	return a.Link() == b.Link()
}

// TiedWith reports whether domain's ready queue holds an entry other than
// cur whose rank neither precedes nor follows cur's — i.e. an equal-rank
// peer cur could round-robin against once its QUANTUM elapses.
func (s *Scheduler[T]) TiedWith(domain int, cur T) bool {
	other, ok := s.ChooseOther(domain, cur)
	if !ok {
		return false
	}
	return !cur.Less(other) && !other.Less(cur)
}

// ReadyLen reports the number of schedulable entries in domain's ready
// queue.
func (s *Scheduler[T]) ReadyLen(domain int) int {
	return s.ready[domain].Len()
}
