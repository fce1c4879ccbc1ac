package alarm

import (
	"container/heap"
	"sync"
	"testing"
	"time"
)

type countingHandler struct {
	mu    sync.Mutex
	fires int
	last  time.Time
}

func (h *countingHandler) OnExpire(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fires++
	h.last = now
}

func (h *countingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fires
}

func TestOneShotFiresExactlyOnce(t *testing.T) {
	l := NewList(time.Millisecond)
	go l.Run()
	defer l.Stop()

	h := &countingHandler{}
	l.Schedule(5*time.Millisecond, 0, 1, h)

	deadline := time.Now().Add(200 * time.Millisecond)
	for h.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond) // give any spurious re-fire a chance to land

	if got := h.count(); got != 1 {
		t.Fatalf("fires = %d, want exactly 1", got)
	}
}

func TestInfiniteAlarmRearmsRepeatedly(t *testing.T) {
	l := NewList(time.Millisecond)
	go l.Run()
	defer l.Stop()

	h := &countingHandler{}
	l.Schedule(2*time.Millisecond, 5*time.Millisecond, Infinite, h)

	deadline := time.Now().Add(200 * time.Millisecond)
	for h.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := h.count(); got < 3 {
		t.Fatalf("fires = %d, want at least 3 within the wait window", got)
	}
}

func TestCancelPreventsFiring(t *testing.T) {
	l := NewList(time.Millisecond)
	go l.Run()
	defer l.Stop()

	h := &countingHandler{}
	a := l.Schedule(20*time.Millisecond, 0, 1, h)
	l.Cancel(a)

	time.Sleep(60 * time.Millisecond)
	if got := h.count(); got != 0 {
		t.Fatalf("fires = %d after cancel, want 0", got)
	}
}

func TestLenReflectsPendingAlarms(t *testing.T) {
	l := NewList(time.Millisecond)
	h := &countingHandler{}
	l.Schedule(time.Hour, 0, 1, h)
	l.Schedule(time.Hour, 0, 1, h)
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}
}

func TestFiresInDeadlineOrder(t *testing.T) {
	l := NewList(time.Millisecond)
	go l.Run()
	defer l.Stop()

	var mu sync.Mutex
	var order []string
	record := func(name string) HandlerFunc {
		return func(now time.Time) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	l.Schedule(30*time.Millisecond, 0, 1, record("second"))
	l.Schedule(5*time.Millisecond, 0, 1, record("first"))

	deadline := time.Now().Add(200 * time.Millisecond)
	for {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("fire order = %v, want [first second]", order)
	}
}

// TestFiresInFIFOOrderOnDeadlineTie forces three alarms to share the exact
// same deadline (not achievable through Schedule's time.Now()-derived
// timestamps alone) by pushing them onto the heap directly, white-box
// style, with seq assigned in the order they were "scheduled". Without a
// secondary tie-break key, container/heap offers no ordering guarantee
// among equal Less() elements.
func TestFiresInFIFOOrderOnDeadlineTie(t *testing.T) {
	l := NewList(time.Millisecond)
	go l.Run()
	defer l.Stop()

	var mu sync.Mutex
	var order []string
	record := func(name string) HandlerFunc {
		return func(now time.Time) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	tie := time.Now().Add(20 * time.Millisecond)
	names := []string{"first", "second", "third"}

	l.mu.Lock()
	for _, name := range names {
		a := &Alarm{deadline: tie, times: 1, handler: record(name), seq: l.nextSeq}
		l.nextSeq++
		heap.Push(&l.h, a)
	}
	l.mu.Unlock()

	deadline := time.Now().Add(200 * time.Millisecond)
	for {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n >= len(names) || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != len(names) {
		t.Fatalf("fired %d alarms, want %d", len(order), len(names))
	}
	for i, name := range names {
		if order[i] != name {
			t.Fatalf("fire order = %v, want %v", order, names)
		}
	}
}
