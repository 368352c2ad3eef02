package sweep

import (
	"runtime"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/sarchlab/cachesweep/hooking"
)

// Builder can be used to build a Runner.
type Builder struct {
	executor          Executor
	workers           int
	force             bool
	timeout           time.Duration
	completeThreshold int64
	timeTeller        hooking.TimeTeller
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		workers:           DefaultWorkers(),
		completeThreshold: DefaultCompleteThreshold,
		timeTeller:        hooking.WallClock(),
	}
}

// DefaultWorkers returns the number of logical cores of the host.
func DefaultWorkers() int {
	if cpuid.CPU.LogicalCores > 0 {
		return cpuid.CPU.LogicalCores
	}

	return runtime.NumCPU()
}

// WithExecutor sets how the simulator is invoked.
func (b Builder) WithExecutor(e Executor) Builder {
	b.executor = e
	return b
}

// WithWorkers sets the size of the worker pool. The pool never grows beyond
// the number of jobs.
func (b Builder) WithWorkers(n int) Builder {
	b.workers = n
	return b
}

// WithForce makes the runner rerun configurations that already have
// complete statistics.
func (b Builder) WithForce(force bool) Builder {
	b.force = force
	return b
}

// WithTimeout bounds the wall time of a single simulator run. Zero means no
// limit.
func (b Builder) WithTimeout(d time.Duration) Builder {
	b.timeout = d
	return b
}

// WithCompleteThreshold sets the size in bytes a statistics file must exceed
// to count as complete.
func (b Builder) WithCompleteThreshold(bytes int64) Builder {
	b.completeThreshold = bytes
	return b
}

// WithTimeTeller replaces the wall clock used to stamp results.
func (b Builder) WithTimeTeller(t hooking.TimeTeller) Builder {
	b.timeTeller = t
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.executor == nil {
		panic("executor is not set")
	}

	if b.workers < 1 {
		panic("worker count must be positive")
	}

	if b.timeout < 0 {
		panic("timeout cannot be negative")
	}

	if b.completeThreshold < 0 {
		panic("complete threshold cannot be negative")
	}
}

// Build creates the runner.
func (b Builder) Build() *Runner {
	b.parametersMustBeValid()

	timeTeller := b.timeTeller
	if timeTeller == nil {
		timeTeller = hooking.WallClock()
	}

	return &Runner{
		executor:          b.executor,
		workers:           b.workers,
		force:             b.force,
		timeout:           b.timeout,
		completeThreshold: b.completeThreshold,
		timeTeller:        timeTeller,
	}
}
