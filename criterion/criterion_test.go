package criterion

import (
	"testing"
	"time"
)

func TestFixedPriorityLowerValueWins(t *testing.T) {
	high := FP(0, 1)
	low := FP(0, 9)
	if !high.Less(low) {
		t.Fatalf("higher-priority (lower value) criterion should sort first")
	}
	if low.Less(high) {
		t.Fatalf("lower-priority criterion should not sort before higher-priority")
	}
}

func TestFIFOTiebreakAmongEqualRank(t *testing.T) {
	a := FP(0, 5)
	b := FP(0, 5)
	if !a.Less(b) {
		t.Fatalf("earlier-constructed equal-rank criterion should sort first")
	}
}

func TestReservedRanksBoundOrdinarySpace(t *testing.T) {
	isr := ISR(0, 1)
	main := Main(0)
	normal := FP(0, 5)
	idle := Idle(0)

	if !isr.Less(main) {
		t.Fatalf("ISR must outrank MAIN")
	}
	if !main.Less(normal) {
		t.Fatalf("MAIN must outrank an ordinary priority-5 thread")
	}
	if !normal.Less(idle) {
		t.Fatalf("an ordinary thread must outrank IDLE")
	}
}

func TestEDFOrdersByAbsoluteDeadline(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	soon := NewEDF(0, now.Add(10*time.Millisecond), time.Second)
	later := NewEDF(0, now.Add(100*time.Millisecond), time.Second)
	if !soon.Less(later) {
		t.Fatalf("earlier deadline must sort first under EDF")
	}
}

func TestUpdateRecomputesDynamicDeadlineOnly(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewPEDF(2, now.Add(time.Millisecond), 10*time.Millisecond)
	next := c.Update(now.Add(20*time.Millisecond), 5)
	if !next.Deadline().Equal(now.Add(20 * time.Millisecond)) {
		t.Fatalf("Update did not advance deadline")
	}
	if next.Queue() != 2 {
		t.Fatalf("P-EDF Update must not migrate queue, got %d", next.Queue())
	}

	gedf := NewGEDF(2, now.Add(time.Millisecond), 10*time.Millisecond)
	moved := gedf.Update(now.Add(20*time.Millisecond), 5)
	if moved.Queue() != 5 {
		t.Fatalf("G-EDF Update must migrate to the supplied queue, got %d", moved.Queue())
	}
}

func TestUpdateIsNoOpForStaticDisciplines(t *testing.T) {
	c := FP(0, 3)
	updated := c.Update(time.Now(), 9)
	if updated != c {
		t.Fatalf("Update on a static criterion must be a no-op")
	}
}

func TestDynamicReportsEDFFamilyOnly(t *testing.T) {
	if FP(0, 1).Dynamic() {
		t.Fatalf("FP must not be dynamic")
	}
	if RM(0, time.Millisecond).Dynamic() {
		t.Fatalf("RM must not be dynamic")
	}
	if !NewEDF(0, time.Now(), time.Millisecond).Dynamic() {
		t.Fatalf("EDF must be dynamic")
	}
}

func TestWithQueueRetargetsWithoutMutatingOriginal(t *testing.T) {
	orig := FP(0, 1)
	moved := orig.WithQueue(3)
	if orig.Queue() != 0 {
		t.Fatalf("WithQueue must not mutate the receiver")
	}
	if moved.Queue() != 3 {
		t.Fatalf("WithQueue() = %d, want 3", moved.Queue())
	}
}
