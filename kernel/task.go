package kernel

import (
	"fmt"
	"sync"

	"github.com/orbitos/mcore/addrspace"
	"github.com/orbitos/mcore/cpu"
	"github.com/orbitos/mcore/criterion"
)

// Task groups one AddressSpace with the Threads that run inside it, per
// spec.md §4.6. It exists only when Config.Multitask is enabled; bare
// Spawn still works in a multitask build for threads that don't need their
// own address space (they simply have a nil Task).
type Task struct {
	k     *Kernel
	space addrspace.AddressSpace

	mu      sync.Mutex
	threads []*Thread
	active  bool
}

// NewTask creates a Task over the given address space (addrspace.New() for
// the default in-process implementation, or one built from
// addrspace.SandboxSegment-backed segments for isolated work).
func (k *Kernel) NewTask(space addrspace.AddressSpace) *Task {
	return &Task{k: k, space: space}
}

// Space returns the task's address space.
func (task *Task) Space() addrspace.AddressSpace { return task.space }

// Spawn creates a Thread that belongs to task: the thread's task field is
// set before it is admitted, so anything the body does that inspects
// t.Task() sees it immediately.
func (task *Task) Spawn(crit criterion.Criterion, name string, body func(t *Thread)) *Thread {
	k := task.k
	t := k.newThread(crit, name, body)
	t.task = task
	task.mu.Lock()
	task.threads = append(task.threads, t)
	task.mu.Unlock()

	c := t.core
	k.s.Acquire(c)
	k.sched.Insert(t)
	if k.cfg.Preemptive {
		k.s.Release(c)
		k.ic.IPI(c, cpu.IntReschedule)
		return t
	}
	k.s.Release(c)
	return t
}

// SpawnWithStack is Spawn plus a dedicated stack segment attached to the
// task's address space before the thread is admitted, reproducing
// thread.cc's constructor_prologue/constructor_epilogue split: newThread
// allocates the goroutine+gate pair and bumps the thread count first, and
// the thread is only inserted into the scheduler once the stack segment is
// attached as well. If Attach fails (most commonly a duplicate name), the
// thread count is rolled back and the
// half-built thread is abandoned rather than scheduled — its goroutine sits
// parked on <-t.gate forever, same as Exit's trailing receive, since a
// goroutine that already started can't be un-started in Go the way a
// stack allocation can simply not happen in C++. Once the kernel's
// shutdown policy has fired (spec.md §4.9), new spawns are rejected with
// ErrShutdown before anything is allocated.
func (task *Task) SpawnWithStack(crit criterion.Criterion, name string, stackSize int, body func(t *Thread)) (*Thread, error) {
	k := task.k
	if k.halting.Load() {
		return nil, ErrShutdown
	}
	t := k.newThread(crit, name, body)
	t.task = task

	seg := addrspace.NewSegment(fmt.Sprintf("stack-%s-%d", name, t.id), stackSize)
	if err := task.space.Attach(seg); err != nil {
		k.threadCount.Add(-1)
		return nil, fmt.Errorf("task: spawn %q: attach stack segment: %w", name, err)
	}

	task.mu.Lock()
	task.threads = append(task.threads, t)
	task.mu.Unlock()

	c := t.core
	k.s.Acquire(c)
	k.sched.Insert(t)
	if k.cfg.Preemptive {
		k.s.Release(c)
		k.ic.IPI(c, cpu.IntReschedule)
		return t, nil
	}
	k.s.Release(c)
	return t, nil
}

// Activate brings the task's address space online, suspending nothing.
// Spawn and SpawnWithStack do not consult the active flag: threads are
// admitted whether or not Activate has run.
func (task *Task) Activate() error {
	task.mu.Lock()
	defer task.mu.Unlock()
	if task.active {
		return nil
	}
	if err := task.space.Activate(); err != nil {
		return fmt.Errorf("task: activate: %w", err)
	}
	task.active = true
	return nil
}

// Deactivate suspends every thread currently belonging to the task and
// deactivates its address space. Threads are not destroyed — a later
// Activate leaves them Suspended until individually Resumed.
func (task *Task) Deactivate() error {
	task.mu.Lock()
	threads := append([]*Thread(nil), task.threads...)
	task.active = false
	task.mu.Unlock()

	for _, t := range threads {
		t.Suspend()
	}
	return task.space.Deactivate()
}

// hasRunningThread reports whether some member thread other than except is
// currently RUNNING, used by dispatch's switchTask to decide whether a
// task's address space can be safely deactivated on a context switch away
// from one of its threads — another of its threads may still be RUNNING on
// a different core.
func (task *Task) hasRunningThread(except *Thread) bool {
	task.mu.Lock()
	defer task.mu.Unlock()
	for _, t := range task.threads {
		if t != except && t.state == Running {
			return true
		}
	}
	return false
}

// Threads returns a snapshot of the task's member threads.
func (task *Task) Threads() []*Thread {
	task.mu.Lock()
	defer task.mu.Unlock()
	return append([]*Thread(nil), task.threads...)
}

// Task returns the Task t belongs to, or nil for a bare thread.
func (t *Thread) Task() *Task { return t.task }
