package sweep

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sarchlab/cachesweep/hooking"
)

// Runner executes jobs on a fixed number of workers. Jobs are independent and
// write only to their own directories, so the runner imposes no order among
// them.
type Runner struct {
	hooking.HookableBase

	executor          Executor
	workers           int
	force             bool
	timeout           time.Duration
	completeThreshold int64
	timeTeller        hooking.TimeTeller
}

// Workers returns the pool size the runner uses for n jobs.
func (r *Runner) Workers(n int) int {
	w := r.workers
	if w > n {
		w = n
	}

	if w < 1 {
		w = 1
	}

	return w
}

// Run executes all jobs and blocks until every worker returns. The returned
// results are in the order of jobs. If ctx is cancelled, jobs that have not
// been picked up are reported as errored without being run.
func (r *Runner) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	indices := make(chan int)
	wg := sync.WaitGroup{}

	for w := 0; w < r.Workers(len(jobs)); w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range indices {
				results[i] = r.runOne(ctx, jobs[i])
			}
		}()
	}

	next := 0

feed:
	for next < len(jobs) && ctx.Err() == nil {
		select {
		case indices <- next:
			next++
		case <-ctx.Done():
			break feed
		}
	}

	close(indices)

	for i := next; i < len(jobs); i++ {
		now := r.timeTeller.Now()
		results[i] = Result{
			Job:        jobs[i],
			Outcome:    OutcomeErrored,
			Err:        fmt.Errorf("not started: %w", ctx.Err()),
			StartedAt:  now,
			FinishedAt: now,
		}
	}

	wg.Wait()

	return results
}

func (r *Runner) runOne(ctx context.Context, job Job) Result {
	r.InvokeHook(hooking.HookCtx{
		Domain: r,
		Pos:    hooking.HookPosRunStart,
		Item:   job,
	})

	result := Result{
		Job:       job,
		StartedAt: r.timeTeller.Now(),
	}

	result.Outcome, result.Err = r.execute(ctx, job)
	result.FinishedAt = r.timeTeller.Now()

	r.InvokeHook(hooking.HookCtx{
		Domain: r,
		Pos:    hooking.HookPosRunEnd,
		Item:   result,
	})

	return result
}

func (r *Runner) execute(ctx context.Context, job Job) (outcome Outcome, err error) {
	if err := os.MkdirAll(job.Dir, 0o755); err != nil {
		return OutcomeErrored, fmt.Errorf("creating run directory: %w", err)
	}

	if !r.force && StatsComplete(job.Dir, r.completeThreshold) {
		return OutcomeSkipped, nil
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			outcome = OutcomeErrored
			err = fmt.Errorf("panic while running %s: %v", job.RunName(), p)
		}
	}()

	// Statistics left by an earlier run must not count for this one.
	if err := os.Remove(job.StatsPath()); err != nil && !os.IsNotExist(err) {
		return OutcomeErrored, fmt.Errorf("removing old statistics: %w", err)
	}

	if err := r.executor.Execute(ctx, job); err != nil {
		return OutcomeErrored, err
	}

	if !StatsComplete(job.Dir, r.completeThreshold) {
		return OutcomeFailed, nil
	}

	return OutcomeCompleted, nil
}

// Summary counts results by outcome.
type Summary struct {
	Completed int
	Skipped   int
	Failed    int
	Errored   int
}

// Summarize counts the outcomes of results.
func Summarize(results []Result) Summary {
	s := Summary{}

	for _, r := range results {
		switch r.Outcome {
		case OutcomeCompleted:
			s.Completed++
		case OutcomeSkipped:
			s.Skipped++
		case OutcomeFailed:
			s.Failed++
		case OutcomeErrored:
			s.Errored++
		}
	}

	return s
}

// Total is the number of results summarized.
func (s Summary) Total() int {
	return s.Completed + s.Skipped + s.Failed + s.Errored
}
