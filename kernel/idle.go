package kernel

// idleLoop is the body of every per-core IDLE thread, per spec.md §4.9: it
// enables interrupts, halts the core until some event makes it worth
// looking again, drains any pending reschedule, and repeats. Halt is the
// one place in the whole kernel allowed to block indefinitely — every
// other Thread reaches a checkpoint on its own via a blocking call or an
// explicit CheckPreempt.
//
// Once threadExited's shutdown policy has fired, every core gets one more
// wakeup IPI (to unstick Halt) and the loop parks for good instead of
// looping back through Dispatch — there is no real power plane to cut or
// firmware to hand off to in a simulated kernel, so REBOOT and HALT both
// converge on the same terminal park; haltVerb's log line is the only
// place the two configurations still read differently.
func (k *Kernel) idleLoop(t *Thread) {
	for {
		k.hw.IntEnable(t.core)
		k.hw.Halt(t.core)
		if k.halting.Load() {
			<-make(chan struct{})
		}
		k.onRescheduleIPI(t.core) // Halt consumed the IPI that woke it without running its handler
		k.hw.Dispatch(t.core)
	}
}
