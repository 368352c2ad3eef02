package hooking

import (
	"sync"
	"time"
)

// TimeTeller can tell the current wall-clock time.
type TimeTeller interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time {
	return time.Now()
}

// WallClock returns a TimeTeller backed by time.Now.
func WallClock() TimeTeller {
	return wallClock{}
}

// Named is implemented by the items that the sweep passes to hooks.
type Named interface {
	RunName() string
}

// RunFilter decides whether a finished run is counted. A nil filter counts
// every run.
type RunFilter func(item Named) bool

// RunTimeTracer collects the total and average wall time spent on simulator
// runs. If two runs overlap, their times are simply added together.
type RunTimeTracer struct {
	timeTeller TimeTeller
	filter     RunFilter

	lock         sync.Mutex
	inflightRuns map[string]time.Time
	totalTime    time.Duration
	runCount     uint64
}

// NewRunTimeTracer creates a new RunTimeTracer.
func NewRunTimeTracer(timeTeller TimeTeller, filter RunFilter) *RunTimeTracer {
	if timeTeller == nil {
		timeTeller = WallClock()
	}

	return &RunTimeTracer{
		timeTeller:   timeTeller,
		filter:       filter,
		inflightRuns: make(map[string]time.Time),
	}
}

// Func records the start and the end of runs.
func (t *RunTimeTracer) Func(ctx HookCtx) {
	item, ok := ctx.Item.(Named)
	if !ok {
		return
	}

	switch ctx.Pos {
	case HookPosRunStart:
		t.StartRun(item)
	case HookPosRunEnd:
		t.EndRun(item)
	}
}

// StartRun records the run start time.
func (t *RunTimeTracer) StartRun(item Named) {
	now := t.timeTeller.Now()

	t.lock.Lock()
	t.inflightRuns[item.RunName()] = now
	t.lock.Unlock()
}

// EndRun records the end of the run.
func (t *RunTimeTracer) EndRun(item Named) {
	now := t.timeTeller.Now()

	t.lock.Lock()
	defer t.lock.Unlock()

	start, found := t.inflightRuns[item.RunName()]
	if !found {
		return
	}

	delete(t.inflightRuns, item.RunName())

	if t.filter != nil && !t.filter(item) {
		return
	}

	t.totalTime += now.Sub(start)
	t.runCount++
}

// TotalTime returns the total wall time spent on counted runs.
func (t *RunTimeTracer) TotalTime() time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.totalTime
}

// TotalCount returns the number of counted runs.
func (t *RunTimeTracer) TotalCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.runCount
}

// AverageTime returns the average wall time of counted runs, or zero when
// nothing has finished yet.
func (t *RunTimeTracer) AverageTime() time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.runCount == 0 {
		return 0
	}

	return t.totalTime / time.Duration(t.runCount)
}

// InFlight returns the number of runs that started but have not ended.
func (t *RunTimeTracer) InFlight() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.inflightRuns)
}

// EstimateRemaining gives a rough time-to-completion for the given number of
// outstanding runs spread over a number of workers.
func (t *RunTimeTracer) EstimateRemaining(outstanding, workers int) time.Duration {
	avg := t.AverageTime()
	if avg == 0 || outstanding <= 0 {
		return 0
	}

	if workers < 1 {
		workers = 1
	}

	waves := (outstanding + workers - 1) / workers

	return avg * time.Duration(waves)
}
