package kernel

import (
	"strconv"

	"github.com/orbitos/mcore/cpu"
)

// ID identifies a Thread for the lifetime of the process. 0 is reserved
// and never assigned to a real thread — this resolves spec.md's Open
// Question (b) ("what does a thread's id read as before its constructor
// completes?") the same way FluxForge's incident IDs treat 0 as "no
// incident yet": newThread allocates the id before any state is
// observable from outside the constructor, so no live Thread ever carries
// the zero value.
//
// Real ids only ever count upward from 1 (allocID), so the entire range at
// or below 0 is free for BootPseudoID's disjoint reserved range.
type ID int64

// String renders the id for structured logging.
func (id ID) String() string {
	if id == 0 {
		return "none"
	}
	return strconv.FormatInt(int64(id), 10)
}

// BootPseudoID returns the placeholder identity This_Thread::id() reports
// for core c before that core's own Thread object exists yet — during the
// window in Boot between a core's goroutine starting and its first
// dispatch landing. Pseudo-ids occupy a disjoint non-positive range
// (-(core+1)) that no real allocID() value can ever land on, so a pseudo-id
// never compares Equal to a real thread's id; it exists only to answer "who
// is running here right now" with something printable, not to name a
// Thread.
func BootPseudoID(c cpu.ID) ID {
	return ID(-(int64(c) + 1))
}

// CurrentID reports the identity currently associated with core c: the
// real id of whichever Thread last took the core via dispatch, or c's boot
// pseudo-id if nothing has been dispatched there yet.
func (k *Kernel) CurrentID(c cpu.ID) ID {
	if t := k.currentOn(c); t != nil {
		return t.id
	}
	return BootPseudoID(c)
}
