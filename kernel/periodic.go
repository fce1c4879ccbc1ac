package kernel

import (
	"sync/atomic"
	"time"

	"github.com/orbitos/mcore/alarm"
	"github.com/orbitos/mcore/criterion"
)

// Periodic wraps a Thread whose job releases are driven by an alarm
// instead of the thread looping on its own, per spec.md §4.7: the body
// calls WaitNext once per job, which blocks until the alarm's next
// release, then runs. If a release arrives before the previous job called
// WaitNext again, it counts as a missed deadline. Every release still posts
// the semaphore, so releases the thread has not yet consumed stay pending
// (there is no cap of one) and later WaitNext calls return for them
// without blocking.
type Periodic struct {
	thread *Thread
	sem    *Semaphore
	alarms *alarm.List
	a      *alarm.Alarm
	period time.Duration

	released atomic.Int64
	consumed atomic.Int64
	missed   atomic.Int64
}

type periodicHandler struct {
	p *Periodic
}

func (h *periodicHandler) OnExpire(now time.Time) {
	p := h.p
	missed := p.released.Add(1)-p.consumed.Load() > 0
	if missed {
		p.missed.Add(1)
	}
	if p.thread.Criterion().Dynamic() {
		p.thread.SetCriterion(p.thread.Criterion().Update(now.Add(p.period), int(p.thread.core)))
	}
	p.sem.ReleaseFromOutside(p.thread.k, p.thread.core)
	if s := p.thread.k.sampler; s != nil {
		s.RecordRelease(p.thread, missed)
	}
}

// NewPeriodic creates a periodic thread under crit (typically built via
// criterion.RM or criterion.NewEDF/NewPEDF with crit.Period() == period),
// arms an alarm that releases it every period starting after the first
// period elapses, and returns it SUSPENDED per spec.md §4.7: "the thread is
// created SUSPENDED and must be explicitly resumed so its first activation
// aligns with the alarm rather than with construction." Call Resume once
// the caller is ready for the periodic workload to actually run — a
// release that arrives before Resume is simply counted as missed, same as
// any other release the thread doesn't consume in time. body is called
// once per job; it must call t.WaitNext(p) at the top of its own loop
// rather than sleeping itself.
func (k *Kernel) NewPeriodic(alarms *alarm.List, crit criterion.Criterion, name string, body func(t *Thread, p *Periodic)) *Periodic {
	period := crit.Period()
	if period <= 0 {
		period = time.Millisecond // degenerate guard; callers should always pass a real period
	}
	p := &Periodic{sem: NewSemaphore(0), alarms: alarms, period: period}
	t := k.spawnSuspended(crit, name, func(tt *Thread) {
		body(tt, p)
	})
	p.thread = t
	if k.sampler != nil {
		k.sampler.RegisterPeriod(t.core, period)
	}
	p.a = alarms.Schedule(period, period, alarm.Infinite, &periodicHandler{p: p})
	return p
}

// Resume admits the periodic thread to scheduling for the first time,
// completing the two-step creation spec.md §4.7 requires.
func (p *Periodic) Resume() { p.thread.Resume() }

// Thread returns the underlying periodic/real-time thread.
func (p *Periodic) Thread() *Thread { return p.thread }

// WaitNext blocks the calling thread until the periodic alarm's next
// release and records that the thread has consumed one more release. The
// missed-deadline check itself runs in the alarm handler at each release,
// not here.
func (t *Thread) WaitNext(p *Periodic) {
	p.consumed.Add(1)
	p.sem.P(t)
}

// Missed reports how many releases arrived before the thread consumed the
// previous one.
func (p *Periodic) Missed() int64 { return p.missed.Load() }

// Period returns the configured release period.
func (p *Periodic) Period() time.Duration { return p.period }

// Cancel stops future releases. The thread itself is left to exit on its
// own (typically by observing a cancellation channel or an iteration
// bound inside body).
func (p *Periodic) Cancel() { p.alarms.Cancel(p.a) }
