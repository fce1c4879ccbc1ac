package scheduler

import (
	"testing"

	"github.com/orbitos/mcore/criterion"
	"github.com/orbitos/mcore/rankqueue"
)

type entry struct {
	name string
	crit criterion.Criterion
	link rankqueue.Link[*entry]
}

func newEntry(name string, crit criterion.Criterion) *entry {
	return &entry{name: name, crit: crit}
}

func (e *entry) Less(other *entry) bool        { return e.crit.Less(other.crit) }
func (e *entry) Criterion() criterion.Criterion { return e.crit }
func (e *entry) Link() *rankqueue.Link[*entry]  { return &e.link }

func TestInsertAndChoosePicksHighestRank(t *testing.T) {
	s := New[*entry](1)
	low := newEntry("low", criterion.FP(0, 9))
	high := newEntry("high", criterion.FP(0, 1))
	s.Insert(low)
	s.Insert(high)

	chosen, ok := s.Choose(0)
	if !ok || chosen != high {
		t.Fatalf("Choose() = %v, want high", chosen)
	}
}

func TestInsertRoutesToHomeQueue(t *testing.T) {
	s := New[*entry](2)
	onZero := newEntry("zero", criterion.FP(0, 1))
	onOne := newEntry("one", criterion.FP(1, 1))
	s.Insert(onZero)
	s.Insert(onOne)

	if s.ReadyLen(0) != 1 || s.ReadyLen(1) != 1 {
		t.Fatalf("ReadyLen(0)=%d ReadyLen(1)=%d, want 1 and 1", s.ReadyLen(0), s.ReadyLen(1))
	}
}

func TestSuspendAndResumeRoundTrip(t *testing.T) {
	s := New[*entry](1)
	e := newEntry("e", criterion.FP(0, 1))
	s.Insert(e)
	s.Suspend(e)
	if s.ReadyLen(0) != 0 {
		t.Fatalf("ReadyLen(0) = %d after Suspend, want 0", s.ReadyLen(0))
	}
	s.Resume(e)
	if s.ReadyLen(0) != 1 {
		t.Fatalf("ReadyLen(0) = %d after Resume, want 1", s.ReadyLen(0))
	}
}

func TestChooseOtherSkipsCurrent(t *testing.T) {
	s := New[*entry](1)
	a := newEntry("a", criterion.FP(0, 1))
	b := newEntry("b", criterion.FP(0, 2))
	s.Insert(a)
	s.Insert(b)

	other, ok := s.ChooseOther(0, a)
	if !ok || other != b {
		t.Fatalf("ChooseOther() = %v, want b", other)
	}
}

func TestChooseOnEmptyDomainReportsFalse(t *testing.T) {
	s := New[*entry](1)
	_, ok := s.Choose(0)
	if ok {
		t.Fatalf("Choose() on an empty domain reported ok")
	}
}

func TestOutOfRangeQueueFallsBackToDomainZero(t *testing.T) {
	s := New[*entry](2)
	e := newEntry("e", criterion.FP(5, 1)) // queue 5 doesn't exist
	s.Insert(e)
	if s.ReadyLen(0) != 1 {
		t.Fatalf("entry with out-of-range queue should land on domain 0")
	}
}
