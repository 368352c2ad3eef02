package sweep

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ErrMissingPrerequisite is returned when an input the sweep depends on, such
// as the simulator binary, a workload or a results directory, does not exist.
var ErrMissingPrerequisite = errors.New("missing prerequisite")

// StatsFileName is the file the simulator leaves in each run directory.
const StatsFileName = "stats.txt"

// DefaultCompleteThreshold is the size in bytes above which an existing
// statistics file is considered the product of a finished run. Aborted runs
// leave behind a stub of a few hundred bytes at most.
const DefaultCompleteThreshold = 1024

// A Job is one configuration bound to its workload and run directory.
type Job struct {
	Config  Config
	Variant Variant
	Dir     string
}

// RunName identifies the job in hooks, journals and monitors.
func (j Job) RunName() string {
	return j.Config.Name()
}

// StatsPath is where the simulator is expected to write its statistics.
func (j Job) StatsPath() string {
	return filepath.Join(j.Dir, StatsFileName)
}

// MakeJobs binds every configuration of the space to a run directory under
// root.
func MakeJobs(space Space, root string) []Job {
	configs := space.Enumerate()
	jobs := make([]Job, len(configs))

	for i, c := range configs {
		v, found := space.FindVariant(c.Variant)
		if !found {
			v = Variant{Name: c.Variant}
		}

		jobs[i] = Job{
			Config:  c,
			Variant: v,
			Dir:     filepath.Join(root, c.Name()),
		}
	}

	return jobs
}

// An Executor runs the simulator for a single job. A returned error means the
// simulator could not be run at all; a run that ends without statistics is not
// an executor error.
type Executor interface {
	Execute(ctx context.Context, job Job) error
}

// Outcome classifies how a job ended.
type Outcome int

// Possible outcomes.
const (
	OutcomeCompleted Outcome = iota
	OutcomeSkipped
	OutcomeFailed
	OutcomeErrored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "Completed"
	case OutcomeSkipped:
		return "Skipped"
	case OutcomeFailed:
		return "Failed"
	case OutcomeErrored:
		return "Error"
	default:
		return "Unknown"
	}
}

// Result records what happened to a job.
type Result struct {
	Job        Job
	Outcome    Outcome
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunName identifies the job in hooks, journals and monitors.
func (r Result) RunName() string {
	return r.Job.RunName()
}

// WallTime is how long the job occupied its worker.
func (r Result) WallTime() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// HasStats tells whether the job left a statistics file to extract.
func (r Result) HasStats() bool {
	return r.Outcome == OutcomeCompleted || r.Outcome == OutcomeSkipped
}

// StatsComplete tells whether dir holds a statistics file larger than
// threshold bytes.
func StatsComplete(dir string, threshold int64) bool {
	info, err := os.Stat(filepath.Join(dir, StatsFileName))
	if err != nil {
		return false
	}

	return !info.IsDir() && info.Size() > threshold
}
