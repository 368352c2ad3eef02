package sweep

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/cachesweep/hooking"
	"go.uber.org/mock/gomock"
)

func writeStats(dir string, size int) {
	content := strings.Repeat("x", size)
	err := os.WriteFile(filepath.Join(dir, StatsFileName), []byte(content), 0o644)
	Expect(err).NotTo(HaveOccurred())
}

var _ = Describe("Runner", func() {
	var (
		mockCtrl *gomock.Controller
		executor *MockExecutor
		root     string
		jobs     []Job
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		executor = NewMockExecutor(mockCtrl)
		root = GinkgoT().TempDir()

		jobs = MakeJobs(Space{
			L1Sizes:  []string{"32kB", "64kB"},
			L2Sizes:  []string{"256kB"},
			L1Assocs: []int{4},
			L2Assocs: []int{8},
			Variants: []Variant{{Name: "Simple"}, {Name: "Chunked"}},
		}, root)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	build := func() Builder {
		return MakeBuilder().WithExecutor(executor).WithWorkers(2)
	}

	It("should run every job and report them in input order", func() {
		executor.EXPECT().
			Execute(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, job Job) error {
				writeStats(job.Dir, 2048)
				return nil
			}).
			Times(len(jobs))

		results := build().Build().Run(context.Background(), jobs)

		Expect(results).To(HaveLen(len(jobs)))
		for i, r := range results {
			Expect(r.Job).To(Equal(jobs[i]))
			Expect(r.Outcome).To(Equal(OutcomeCompleted))
			Expect(r.Err).NotTo(HaveOccurred())
			Expect(r.HasStats()).To(BeTrue())
		}
	})

	It("should create the run directory before invoking the simulator", func() {
		executor.EXPECT().
			Execute(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, job Job) error {
				Expect(job.Dir).To(BeADirectory())
				return nil
			}).
			Times(len(jobs))

		build().Build().Run(context.Background(), jobs)
	})

	It("should mark runs without statistics as failed", func() {
		executor.EXPECT().
			Execute(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, job Job) error {
				if job.Config.Variant == "Simple" {
					writeStats(job.Dir, 2048)
				}
				return nil
			}).
			Times(len(jobs))

		results := build().Build().Run(context.Background(), jobs)

		for _, r := range results {
			if r.Job.Config.Variant == "Simple" {
				Expect(r.Outcome).To(Equal(OutcomeCompleted))
			} else {
				Expect(r.Outcome).To(Equal(OutcomeFailed))
				Expect(r.HasStats()).To(BeFalse())
			}
		}
	})

	It("should keep going when one job errors", func() {
		executor.EXPECT().
			Execute(gomock.Any(), jobs[0]).
			Return(errors.New("simulator not found"))
		executor.EXPECT().
			Execute(gomock.Any(), gomock.Not(jobs[0])).
			DoAndReturn(func(_ context.Context, job Job) error {
				writeStats(job.Dir, 2048)
				return nil
			}).
			Times(len(jobs) - 1)

		results := build().Build().Run(context.Background(), jobs)

		Expect(results[0].Outcome).To(Equal(OutcomeErrored))
		Expect(results[0].Err).To(MatchError("simulator not found"))

		s := Summarize(results)
		Expect(s.Errored).To(Equal(1))
		Expect(s.Completed).To(Equal(len(jobs) - 1))
		Expect(s.Total()).To(Equal(len(jobs)))
	})

	It("should turn a panicking executor into an errored job", func() {
		executor.EXPECT().
			Execute(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, job Job) error {
				panic("boom")
			}).
			Times(len(jobs))

		results := build().Build().Run(context.Background(), jobs)

		for _, r := range results {
			Expect(r.Outcome).To(Equal(OutcomeErrored))
			Expect(r.Err.Error()).To(ContainSubstring("boom"))
		}
	})

	It("should skip configurations with complete statistics", func() {
		for _, j := range jobs {
			Expect(os.MkdirAll(j.Dir, 0o755)).To(Succeed())
			writeStats(j.Dir, 4096)
		}

		results := build().Build().Run(context.Background(), jobs)

		for _, r := range results {
			Expect(r.Outcome).To(Equal(OutcomeSkipped))
			Expect(r.HasStats()).To(BeTrue())
		}
	})

	It("should rerun truncated statistics", func() {
		for _, j := range jobs {
			Expect(os.MkdirAll(j.Dir, 0o755)).To(Succeed())
			writeStats(j.Dir, DefaultCompleteThreshold)
		}

		executor.EXPECT().
			Execute(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, job Job) error {
				writeStats(job.Dir, 4096)
				return nil
			}).
			Times(len(jobs))

		results := build().Build().Run(context.Background(), jobs)

		Expect(Summarize(results).Completed).To(Equal(len(jobs)))
	})

	It("should fail reruns that write no statistics", func() {
		for _, j := range jobs {
			Expect(os.MkdirAll(j.Dir, 0o755)).To(Succeed())
			writeStats(j.Dir, DefaultCompleteThreshold)
		}

		executor.EXPECT().
			Execute(gomock.Any(), gomock.Any()).
			Return(nil).
			Times(len(jobs))

		results := build().Build().Run(context.Background(), jobs)

		for _, r := range results {
			Expect(r.Outcome).To(Equal(OutcomeFailed))
			Expect(r.Job.StatsPath()).NotTo(BeAnExistingFile())
		}
	})

	It("should rerun complete statistics when forced", func() {
		for _, j := range jobs {
			Expect(os.MkdirAll(j.Dir, 0o755)).To(Succeed())
			writeStats(j.Dir, 4096)
		}

		executor.EXPECT().
			Execute(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, job Job) error {
				Expect(job.StatsPath()).NotTo(BeAnExistingFile())
				writeStats(job.Dir, 2048)
				return nil
			}).
			Times(len(jobs))

		results := build().WithForce(true).Build().Run(context.Background(), jobs)

		Expect(Summarize(results).Completed).To(Equal(len(jobs)))
	})

	It("should not keep old statistics of a forced rerun that wrote none", func() {
		for _, j := range jobs {
			Expect(os.MkdirAll(j.Dir, 0o755)).To(Succeed())
			writeStats(j.Dir, 4096)
		}

		executor.EXPECT().
			Execute(gomock.Any(), gomock.Any()).
			Return(nil).
			Times(len(jobs))

		results := build().WithForce(true).Build().Run(context.Background(), jobs)

		for _, r := range results {
			Expect(r.Outcome).To(Equal(OutcomeFailed))
			Expect(r.HasStats()).To(BeFalse())
			Expect(StatsComplete(r.Job.Dir, DefaultCompleteThreshold)).To(BeFalse())
		}
	})

	It("should bound each run with the timeout", func() {
		executor.EXPECT().
			Execute(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, job Job) error {
				<-ctx.Done()
				return ctx.Err()
			}).
			Times(len(jobs))

		results := build().
			WithTimeout(10 * time.Millisecond).
			Build().
			Run(context.Background(), jobs)

		for _, r := range results {
			Expect(r.Outcome).To(Equal(OutcomeErrored))
			Expect(r.Err).To(MatchError(context.DeadlineExceeded))
		}
	})

	It("should not start jobs after cancellation", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		results := build().Build().Run(ctx, jobs)

		Expect(results).To(HaveLen(len(jobs)))
		for i, r := range results {
			Expect(r.Job).To(Equal(jobs[i]))
			Expect(r.Outcome).To(Equal(OutcomeErrored))
			Expect(r.Err).To(MatchError(context.Canceled))
		}
	})

	It("should invoke hooks around every job", func() {
		var (
			lock   sync.Mutex
			starts []string
			ends   []Outcome
		)

		executor.EXPECT().
			Execute(gomock.Any(), gomock.Any()).
			Return(nil).
			Times(len(jobs))

		runner := build().Build()
		runner.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			lock.Lock()
			defer lock.Unlock()

			switch ctx.Pos {
			case hooking.HookPosRunStart:
				starts = append(starts, ctx.Item.(Job).RunName())
			case hooking.HookPosRunEnd:
				ends = append(ends, ctx.Item.(Result).Outcome)
			}
		}))

		runner.Run(context.Background(), jobs)

		Expect(starts).To(HaveLen(len(jobs)))
		Expect(ends).To(HaveLen(len(jobs)))
		Expect(ends).To(HaveEach(OutcomeFailed))
	})

	It("should never use more workers than jobs", func() {
		runner := MakeBuilder().WithExecutor(executor).WithWorkers(16).Build()

		Expect(runner.Workers(3)).To(Equal(3))
		Expect(runner.Workers(100)).To(Equal(16))
		Expect(runner.Workers(0)).To(Equal(1))
	})

	It("should return no results for no jobs", func() {
		Expect(build().Build().Run(context.Background(), nil)).To(BeEmpty())
	})

	It("should refuse to build without an executor", func() {
		Expect(func() { MakeBuilder().Build() }).To(Panic())
		Expect(func() {
			MakeBuilder().WithExecutor(executor).WithWorkers(0).Build()
		}).To(Panic())
	})
})

var _ = Describe("Outcome", func() {
	It("should print the table status words", func() {
		Expect(OutcomeCompleted.String()).To(Equal("Completed"))
		Expect(OutcomeErrored.String()).To(Equal("Error"))
		Expect(Outcome(42).String()).To(Equal("Unknown"))
	})
})
