package kernel

import (
	"fmt"
	"os"
	"time"

	"github.com/orbitos/mcore/criterion"
)

// Config holds the build-time options enumerated in spec.md §6. Unlike a
// real embedded build, these are resolved at process start from the
// environment rather than compiled in, following control_plane/main.go's
// os.Getenv + fmt.Sscanf convention rather than reaching for a config-file
// parser — spec.md's Non-goals explicitly exclude build/config loading as
// a feature, and the teacher itself never parses a config file either.
type Config struct {
	Cores            int                  // CPUS
	Multithread      bool                 // reserved for parity with spec.md §6; this package only exists when multithread is conceptually on
	Multicore        bool                 // recorded for parity with spec.md §6; the spin lock and IPI path are used whatever its value
	Multitask        bool                 // enables Task/address-space isolation
	MultitaskSandbox bool                 // if Multitask, Tasks requiring isolation may use addrspace.SandboxSegment instead of a plain in-process segment
	Preemptive       bool                 // timer-driven preemption + priority preemption on resume/wakeup
	Discipline       criterion.Discipline // scheduling criterion
	Quantum          time.Duration        // round-robin time slice among equal ranks
	Monitored        bool                 // statistics recording at dispatch and wait_next
	Reboot           bool                 // on last-thread exit: reboot vs halt
	TimerFrequency   int                  // Traits<Timer>::FREQUENCY, default 1000 Hz
}

// DefaultConfig returns sensible defaults, mirroring
// scheduler.DefaultSchedulerConfig's role in the teacher.
func DefaultConfig() Config {
	return Config{
		Cores:          1,
		Multicore:      false,
		Multitask:      false,
		Preemptive:     true,
		Discipline:     criterion.FixedPriority,
		Quantum:        10 * time.Millisecond,
		Monitored:      true,
		Reboot:         false,
		TimerFrequency: 1000,
	}
}

// ConfigFromEnv layers environment overrides onto DefaultConfig, exactly
// the way control_plane/main.go layers SCHEDULER_CONCURRENCY and
// CIRCUIT_BREAKER_THRESHOLD onto scheduler.DefaultSchedulerConfig.
func ConfigFromEnv() Config {
	c := DefaultConfig()

	if v := os.Getenv("CORES"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if n > 0 {
			c.Cores = n
		}
	}
	if v := os.Getenv("MULTICORE"); v != "" {
		c.Multicore = v == "true"
	}
	if v := os.Getenv("MULTITASK"); v != "" {
		c.Multitask = v == "true"
	}
	if v := os.Getenv("MULTITASK_SANDBOX"); v != "" {
		c.MultitaskSandbox = v == "true"
	}
	if v := os.Getenv("PREEMPTIVE"); v != "" {
		c.Preemptive = v == "true"
	}
	if v := os.Getenv("MONITORED"); v != "" {
		c.Monitored = v == "true"
	}
	if v := os.Getenv("REBOOT"); v != "" {
		c.Reboot = v == "true"
	}
	if v := os.Getenv("QUANTUM_US"); v != "" {
		var us int
		fmt.Sscanf(v, "%d", &us)
		if us > 0 {
			c.Quantum = time.Duration(us) * time.Microsecond
		}
	}
	if v := os.Getenv("CRITERION"); v != "" {
		switch v {
		case "FP":
			c.Discipline = criterion.FixedPriority
		case "RM":
			c.Discipline = criterion.RateMonotonic
		case "EDF":
			c.Discipline = criterion.EDF
		case "GEDF":
			c.Discipline = criterion.GlobalEDF
		case "PEDF":
			c.Discipline = criterion.PartitionedEDF
		}
	}
	if c.Cores > 1 {
		c.Multicore = true
	}
	return c
}
