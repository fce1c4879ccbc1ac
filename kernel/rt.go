package kernel

import (
	"time"

	"github.com/orbitos/mcore/alarm"
	"github.com/orbitos/mcore/criterion"
)

// NewRT creates a real-time periodic thread that first waits startDelay
// before its first release, then behaves exactly like Periodic — a
// one-shot activation alarm that, once it fires, rearms the ordinary
// periodic alarm for the rest of the thread's life. This matches spec.md
// §4.8's two-phase RT_Thread construction (an initial absolute activation
// time distinct from steady-state period) without needing a second Thread
// type: RT_Thread is a Periodic whose first alarm is special-cased. Like
// NewPeriodic, the returned thread is created SUSPENDED per spec.md §4.7's
// "must be explicitly resumed" rule and needs an explicit Resume call.
func (k *Kernel) NewRT(alarms *alarm.List, crit criterion.Criterion, startDelay time.Duration, name string, body func(t *Thread, p *Periodic)) *Periodic {
	period := crit.Period()
	if period <= 0 {
		period = time.Millisecond
	}
	p := &Periodic{sem: NewSemaphore(0), alarms: alarms, period: period}
	t := k.spawnSuspended(crit, name, func(tt *Thread) {
		body(tt, p)
	})
	p.thread = t
	if k.sampler != nil {
		k.sampler.RegisterPeriod(t.core, period)
	}

	p.a = alarms.Schedule(startDelay, 0, 1, alarm.HandlerFunc(func(now time.Time) {
		p.released.Add(1)
		if t.Criterion().Dynamic() {
			t.SetCriterion(t.Criterion().Update(now.Add(period), int(t.core)))
		}
		p.sem.ReleaseFromOutside(t.k, t.core)
		p.a = alarms.Schedule(period, period, alarm.Infinite, &periodicHandler{p: p})
	}))

	return p
}
