// Package monitor implements the deadline-aware observation side channel
// described in spec.md §8: dispatch counts, per-thread run time, missed
// deadlines, and a rate-limited log of the events that matter, without the
// observed kernel package depending on any of this. kernel defines a
// narrow Sampler interface locally; Recorder here implements it, the same
// inversion scheduler/kernel and alarm/kernel already use to avoid cycles.
//
// Metrics follow control_plane/observability/metrics.go's promauto
// var-block convention; missed-deadline log lines are throttled with
// golang.org/x/time/rate the way control_plane/scheduler/limiter.go
// throttles per-key admission, repurposed here as a single global
// token bucket so a thundering herd of missed deadlines doesn't flood
// stdout.
package monitor

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/orbitos/mcore/cpu"
	"github.com/orbitos/mcore/kernel"
)

var (
	dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcore_dispatch_total",
		Help: "Total number of context switches performed, by core.",
	}, []string{"core"})

	hyperperiodRollovers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcore_hyperperiod_rollovers_total",
		Help: "Number of times a core's hyperperiod (LCM of its periodic threads' periods) has elapsed.",
	}, []string{"core"})

	hyperperiodIdleSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mcore_hyperperiod_idle_seconds",
		Help: "Idle (IDLE-thread) time accumulated during the current hyperperiod, by core.",
	}, []string{"core"})

	readyQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mcore_ready_queue_depth",
		Help: "Number of schedulable threads currently ready per core.",
	}, []string{"core"})

	missedDeadlines = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcore_missed_deadlines_total",
		Help: "Total number of periodic/RT releases a thread failed to consume before the next one arrived.",
	}, []string{"thread"})

	dispatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mcore_dispatch_latency_seconds",
		Help:    "Wall-clock time a thread spent RUNNING between consecutive dispatches.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us .. ~2.6s
	})

	threadCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mcore_thread_count",
		Help: "Current number of live threads (all states).",
	})
)

// hyperperiodState tracks one core's rollover bookkeeping: the current
// hyperperiod (LCM of every periodic thread's period registered on that
// core so far), when the current hyperperiod started, and how much idle
// time has accumulated within it.
type hyperperiodState struct {
	hyper     time.Duration
	start     time.Time
	idle      time.Duration
	idleSince time.Time
	idleOpen  bool
}

// gcd and lcm compute over time.Duration treated as plain integer
// nanosecond counts; used to fold a newly registered period into a core's
// running hyperperiod exactly as _Statistics::hyperperiod does in
// real-time.h, just with durations standing in for tick counts.
func gcd(a, b time.Duration) time.Duration {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b time.Duration) time.Duration {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	return a / gcd(a, b) * b
}

// Recorder implements kernel.Sampler, recording prometheus metrics and
// emitting a rate-limited structured log line for missed deadlines.
type Recorder struct {
	mu        sync.Mutex
	lastStart map[*kernel.Thread]time.Time
	hyper     map[cpu.ID]*hyperperiodState

	limiter *rate.Limiter
	log     *log.Logger
}

// decision is the JSON shape written for every dispatch, for missed
// deadlines (rate limited), and for the final shutdown marker, mirroring the teacher's
// scheduler.logDecision line-per-event convention exactly, just re-targeted
// at this kernel's own event set.
type decision struct {
	Event string `json:"event"`
	Core  string `json:"core"`
	Prev  string `json:"prev,omitempty"`
	Next  string `json:"next,omitempty"`
}

func (r *Recorder) logDecision(d decision) {
	b, err := json.Marshal(d)
	if err != nil {
		return
	}
	r.log.Println(string(b))
}

// NewRecorder returns a Recorder that logs at most logsPerSecond missed-
// deadline lines per second (burst 1), following FluxForge's
// TokenBucketLimiter shape but as a single global bucket rather than one
// per key, since missed deadlines are a kernel-wide health signal rather
// than something to rate-limit per caller.
func NewRecorder(logger *log.Logger, logsPerSecond float64) *Recorder {
	return &Recorder{
		lastStart: make(map[*kernel.Thread]time.Time),
		hyper:     make(map[cpu.ID]*hyperperiodState),
		limiter:   rate.NewLimiter(rate.Limit(logsPerSecond), 1),
		log:       logger,
	}
}

// RegisterPeriod folds a newly created periodic/real-time thread's period
// into core's running hyperperiod (the LCM of every period registered on
// that core so far). Call once per Periodic/RT thread, right after
// creation; a hyperperiod with no periods registered never rolls over.
func (r *Recorder) RegisterPeriod(core cpu.ID, period time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.hyperperiodLocked(core)
	h.hyper = lcm(h.hyper, period)
}

func (r *Recorder) hyperperiodLocked(core cpu.ID) *hyperperiodState {
	h, ok := r.hyper[core]
	if !ok {
		h = &hyperperiodState{start: time.Now()}
		r.hyper[core] = h
	}
	return h
}

// RecordDispatch implements kernel.Sampler.
func (r *Recorder) RecordDispatch(core cpu.ID, prev, next *kernel.Thread) {
	coreLabel := core.String()
	dispatchTotal.WithLabelValues(coreLabel).Inc()

	now := time.Now()
	r.mu.Lock()
	if prev != nil {
		if start, ok := r.lastStart[prev]; ok {
			dispatchLatency.Observe(now.Sub(start).Seconds())
		}
		delete(r.lastStart, prev)
	}
	r.lastStart[next] = now

	h := r.hyperperiodLocked(core)
	if prev != nil && prev.IsIdle() && h.idleOpen {
		h.idle += now.Sub(h.idleSince)
		h.idleOpen = false
	}
	if next != nil && next.IsIdle() {
		h.idleSince = now
		h.idleOpen = true
	}
	if h.hyper > 0 && now.Sub(h.start) >= h.hyper {
		hyperperiodRollovers.WithLabelValues(coreLabel).Inc()
		h.start = now
		h.idle = 0
		if h.idleOpen {
			// idle is still running across the boundary; keep its clock going
			// rather than crediting the elapsed-so-far span to the next window.
			h.idleSince = now
		}
	}
	hyperperiodIdleSeconds.WithLabelValues(coreLabel).Set(h.idle.Seconds())
	r.mu.Unlock()

	prevName, nextName := "", ""
	if prev != nil {
		prevName = prev.Name()
	}
	if next != nil {
		nextName = next.Name()
	}
	r.logDecision(decision{Event: "dispatch", Core: coreLabel, Prev: prevName, Next: nextName})
}

// RecordRelease implements kernel.Sampler.
func (r *Recorder) RecordRelease(t *kernel.Thread, missed bool) {
	if !missed {
		return
	}
	missedDeadlines.WithLabelValues(t.Name()).Inc()
	if r.limiter.Allow() {
		r.logDecision(decision{Event: "missed_deadline", Core: t.Core().String(), Next: t.Name()})
	}
}

// Flush implements kernel.Sampler. threadExited calls it exactly once,
// when the kernel's shutdown policy fires: prometheus counters/gauges need
// no explicit flush (promauto registers them against the default global
// registry, which stays readable after this call), but the JSON decision
// log gets one final marker line so a tailing log aggregator sees an
// explicit end to the stream rather than it simply going quiet.
func (r *Recorder) Flush() {
	r.logDecision(decision{Event: "shutdown"})
}

// SampleReadyQueues updates the ready-queue-depth gauge for each core.
// kernel.Kernel does not expose a push-based hook for queue depth — only
// the per-event Sampler callbacks above — so the gauge changes only when a
// caller invokes this; nothing in this module calls it on a schedule.
func SampleReadyQueues(depths []int) {
	for core, depth := range depths {
		readyQueueDepth.WithLabelValues(cpu.ID(core).String()).Set(float64(depth))
	}
}

// SetThreadCount updates the live-thread-count gauge.
func SetThreadCount(n int) {
	threadCount.Set(float64(n))
}
