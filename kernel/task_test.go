package kernel

import (
	"fmt"
	"sync"
	"testing"

	"github.com/orbitos/mcore/addrspace"
	"github.com/orbitos/mcore/criterion"
)

func TestTaskSpawnAssociatesThreadWithTask(t *testing.T) {
	k := New(testConfig(1))
	var sawTask *Task

	k.Boot(func(main *Thread) {
		task := k.NewTask(addrspace.New())
		if err := task.Activate(); err != nil {
			t.Fatalf("Activate() error: %v", err)
		}

		sem := NewSemaphore(0)
		task.Spawn(criterion.FP(0, 5), "worker", func(tt *Thread) {
			sawTask = tt.Task()
			sem.V(tt)
		})
		sem.P(main)

		if len(task.Threads()) != 1 {
			t.Errorf("Threads() len = %d, want 1", len(task.Threads()))
		}
	})

	if sawTask == nil {
		t.Fatalf("spawned thread's Task() was nil")
	}
}

// TestTaskDeactivateSuspendsMemberThreads spawns a child under a task
// without ever letting it run: main's own criterion always outranks an
// ordinary FP thread, so the freshly spawned child sits READY until main
// blocks. This keeps the child out of any other wait queue while Suspend
// moves it from READY straight to SUSPENDED.
func TestTaskDeactivateSuspendsMemberThreads(t *testing.T) {
	k := New(testConfig(1))
	ran := false

	k.Boot(func(main *Thread) {
		task := k.NewTask(addrspace.New())
		task.Activate()

		done := NewSemaphore(0)
		child := task.Spawn(criterion.FP(0, 5), "worker", func(tt *Thread) {
			ran = true
			done.V(tt)
		})

		if child.State() != Ready {
			t.Fatalf("child state = %v, want Ready before main ever blocks", child.State())
		}

		if err := task.Deactivate(); err != nil {
			t.Fatalf("Deactivate() error: %v", err)
		}
		if child.State() != Suspended {
			t.Errorf("child state = %v, want Suspended after task Deactivate", child.State())
		}

		child.Resume()
		done.P(main)
	})

	if !ran {
		t.Fatalf("child thread never ran after Resume")
	}
}

func TestSpawnWithStackAttachesDedicatedSegment(t *testing.T) {
	k := New(testConfig(1))
	var sawStack string

	k.Boot(func(main *Thread) {
		task := k.NewTask(addrspace.New())
		task.Activate()

		sem := NewSemaphore(0)
		child, err := task.SpawnWithStack(criterion.FP(0, 5), "worker", 4096, func(tt *Thread) {
			sem.V(tt)
		})
		if err != nil {
			t.Fatalf("SpawnWithStack() error: %v", err)
		}
		sem.P(main)

		for _, seg := range task.Space().Segments() {
			if seg.Size() == 4096 {
				sawStack = seg.Name()
			}
		}
		if child == nil {
			t.Fatalf("SpawnWithStack returned nil thread")
		}
	})

	if sawStack == "" {
		t.Fatalf("no 4096-byte stack segment found attached to the task's address space")
	}
}

// TestSpawnWithStackRollsBackOnAttachFailure pre-attaches a segment under
// the exact name the next SpawnWithStack call will derive (predicted by
// reading the kernel's own id counter), forcing Attach to fail and
// exercising the constructor-rollback path: the thread count must return to
// its pre-call value and the task must gain no new member thread.
func TestSpawnWithStackRollsBackOnAttachFailure(t *testing.T) {
	k := New(testConfig(1))

	k.Boot(func(main *Thread) {
		task := k.NewTask(addrspace.New())
		task.Activate()

		nextID := k.allocID() + 1
		collideName := fmt.Sprintf("stack-collide-%d", nextID)
		if err := task.Space().Attach(addrspace.NewSegment(collideName, 64)); err != nil {
			t.Fatalf("pre-attach error: %v", err)
		}

		before := k.ThreadCount()
		threadsBefore := len(task.Threads())

		_, err := task.SpawnWithStack(criterion.FP(0, 5), "collide", 64, func(tt *Thread) {})
		if err == nil {
			t.Fatalf("expected Attach collision error, got nil")
		}
		if k.ThreadCount() != before {
			t.Fatalf("ThreadCount() = %d after failed spawn, want %d (rolled back)", k.ThreadCount(), before)
		}
		if len(task.Threads()) != threadsBefore {
			t.Fatalf("task.Threads() len = %d after failed spawn, want %d (not appended)", len(task.Threads()), threadsBefore)
		}
	})
}

// fakeSpace is a minimal addrspace.AddressSpace fake that just counts
// Activate/Deactivate calls, used to observe dispatch's switchTask step
// without depending on addrspace.Space's own internal bookkeeping.
type fakeSpace struct {
	mu            sync.Mutex
	activations   int
	deactivations int
}

func (f *fakeSpace) Attach(seg addrspace.Segment) error { return nil }
func (f *fakeSpace) Detach(name string) error           { return nil }
func (f *fakeSpace) Segments() []addrspace.Segment      { return nil }
func (f *fakeSpace) Activate() error {
	f.mu.Lock()
	f.activations++
	f.mu.Unlock()
	return nil
}
func (f *fakeSpace) Deactivate() error {
	f.mu.Lock()
	f.deactivations++
	f.mu.Unlock()
	return nil
}

func (f *fakeSpace) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activations, f.deactivations
}

// TestDispatchActivatesAndDeactivatesTaskAddressSpaceOnSwitch spawns an
// ISR-ranked child under a task: Task.Spawn only posts a reschedule IPI,
// so the child first runs when main blocks on done.P, and since
// criterion.ISR always outranks MAIN it keeps the core until it finishes,
// exercising dispatch's switchTask step on the way in (main has no task,
// so the switch into the child must Activate the task's space) and again
// on the way back out once the child finishes and main resumes (no other
// thread of the task is RUNNING, so the space must Deactivate).
func TestDispatchActivatesAndDeactivatesTaskAddressSpaceOnSwitch(t *testing.T) {
	k := New(testConfig(1))
	space := &fakeSpace{}

	k.Boot(func(main *Thread) {
		task := k.NewTask(space)
		done := NewSemaphore(0)
		task.Spawn(criterion.ISR(0, 1), "isr-child", func(tt *Thread) {
			done.V(tt)
		})
		done.P(main)
	})

	activations, deactivations := space.counts()
	if activations == 0 {
		t.Fatalf("task address space was never activated on switch into it")
	}
	if deactivations == 0 {
		t.Fatalf("task address space was never deactivated on switch away from it")
	}
}

func TestSpawnWithStackRejectedAfterShutdown(t *testing.T) {
	k := New(testConfig(1))

	k.Boot(func(main *Thread) {
		task := k.NewTask(addrspace.New())
		task.Activate()
		k.halting.Store(true)

		_, err := task.SpawnWithStack(criterion.FP(0, 5), "too-late", 64, func(tt *Thread) {})
		if err != ErrShutdown {
			t.Fatalf("SpawnWithStack() after shutdown = %v, want ErrShutdown", err)
		}
	})
}

func TestBareThreadHasNilTask(t *testing.T) {
	k := New(testConfig(1))
	var task *Task

	k.Boot(func(main *Thread) {
		sem := NewSemaphore(0)
		main.Spawn(criterion.FP(0, 5), "bare", func(tt *Thread) {
			task = tt.Task()
			sem.V(tt)
		})
		sem.P(main)
	})

	if task != nil {
		t.Fatalf("bare thread's Task() = %v, want nil", task)
	}
}
