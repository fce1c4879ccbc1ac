package kernel

import "errors"

var (
	// ErrFinished is returned by any operation attempted against a thread
	// that has already reached FINISHING.
	ErrFinished = errors.New("kernel: thread has already finished")

	// ErrWouldDeadlock is returned when a thread attempts to join itself.
	ErrWouldDeadlock = errors.New("kernel: a thread cannot join itself")

	// ErrNoCapacity is returned by a counting semaphore configured with a
	// hard upper bound once that bound would be exceeded.
	ErrNoCapacity = errors.New("kernel: semaphore capacity exceeded")

	// ErrShutdown is returned by operations attempted after the kernel has
	// begun its halt/reboot sequence.
	ErrShutdown = errors.New("kernel: shutting down")

	// ErrDetached marks a Task method called against an address space that
	// has already been detached.
	ErrDetached = errors.New("kernel: address space already detached")
)
