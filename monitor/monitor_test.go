package monitor

import (
	"log"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/orbitos/mcore/cpu"
)

func TestRecordDispatchIncrementsCounterPerCore(t *testing.T) {
	r := NewRecorder(log.Default(), 5)

	before := testutil.ToFloat64(dispatchTotal.WithLabelValues("0"))
	r.RecordDispatch(cpu.ID(0), nil, nil)
	after := testutil.ToFloat64(dispatchTotal.WithLabelValues("0"))

	if after != before+1 {
		t.Fatalf("dispatchTotal{core=0} = %v, want %v", after, before+1)
	}
}

func TestRecordReleaseOnlyCountsMissedDeadlines(t *testing.T) {
	r := NewRecorder(log.Default(), 5)

	before := testutil.ToFloat64(missedDeadlines.WithLabelValues("never-misses"))
	r.RecordRelease(nil, false)
	after := testutil.ToFloat64(missedDeadlines.WithLabelValues("never-misses"))
	if after != before {
		t.Fatalf("missedDeadlines should not change on a non-missed release")
	}
}

func TestSampleReadyQueuesSetsPerCoreGauge(t *testing.T) {
	SampleReadyQueues([]int{3, 7})

	if got := testutil.ToFloat64(readyQueueDepth.WithLabelValues("0")); got != 3 {
		t.Fatalf("readyQueueDepth{core=0} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(readyQueueDepth.WithLabelValues("1")); got != 7 {
		t.Fatalf("readyQueueDepth{core=1} = %v, want 7", got)
	}
}

func TestRegisterPeriodFoldsIntoHyperperiodLCM(t *testing.T) {
	r := NewRecorder(log.Default(), 5)

	r.RegisterPeriod(cpu.ID(3), 10*time.Millisecond)
	r.RegisterPeriod(cpu.ID(3), 15*time.Millisecond)

	h := r.hyperperiodLocked(cpu.ID(3))
	if h.hyper != 30*time.Millisecond {
		t.Fatalf("hyperperiod = %v, want 30ms (LCM of 10ms and 15ms)", h.hyper)
	}
}

func TestHyperperiodRolloverIncrementsCounter(t *testing.T) {
	r := NewRecorder(log.Default(), 5)
	r.RegisterPeriod(cpu.ID(2), time.Millisecond)

	before := testutil.ToFloat64(hyperperiodRollovers.WithLabelValues("2"))

	r.mu.Lock()
	h := r.hyperperiodLocked(cpu.ID(2))
	h.start = time.Now().Add(-2 * time.Millisecond) // force the next dispatch past the hyperperiod boundary
	r.mu.Unlock()

	r.RecordDispatch(cpu.ID(2), nil, nil)

	after := testutil.ToFloat64(hyperperiodRollovers.WithLabelValues("2"))
	if after != before+1 {
		t.Fatalf("hyperperiodRollovers{core=2} = %v, want %v", after, before+1)
	}
}

func TestFlushDoesNotPanicWithNoPriorActivity(t *testing.T) {
	r := NewRecorder(log.Default(), 5)
	r.Flush() // only observable effect is a log line; just must not panic
}

func TestSetThreadCountUpdatesGauge(t *testing.T) {
	SetThreadCount(42)
	if got := testutil.ToFloat64(threadCount); got != 42 {
		t.Fatalf("threadCount = %v, want 42", got)
	}
}
