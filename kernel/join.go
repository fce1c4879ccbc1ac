package kernel

import "fmt"

// Join blocks the calling thread self until t reaches FINISHING, returning
// t's exit code. Calling Join on an already-finished thread returns
// immediately; a thread joining itself gets ErrWouldDeadlock instead of
// hanging forever. spec.md §3/§4.3: a thread may have at most one joiner at
// a time — a second concurrent Join on the same still-running t is a
// contract violation, not a queueable wait, and panics instead.
func (t *Thread) Join(self *Thread) (int, error) {
	if t == self {
		return 0, ErrWouldDeadlock
	}

	k := t.k
	c := self.core
	k.s.Acquire(c)
	if t.state == Finishing {
		k.s.Release(c)
		return t.exitCode, nil
	}
	if t.joiners.Len() > 0 {
		k.s.Release(c)
		panic(fmt.Sprintf("kernel: double joiner: thread %s already has a thread blocked in Join(%s)", self.name, t.name))
	}
	k.suspendSelfLocked(self, t.joiners)
	return t.exitCode, nil
}
