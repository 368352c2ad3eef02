package table

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/cachesweep/stats"
	"github.com/sarchlab/cachesweep/sweep"
)

// statsDump renders a statistics file large enough to count as complete.
func statsDump(simSeconds, l1Miss, l2Miss, ipc string) string {
	var b strings.Builder

	b.WriteString("---------- Begin Simulation Statistics ----------\n")
	fmt.Fprintf(&b, "simSeconds %s # seconds\n", simSeconds)
	b.WriteString("simTicks 1234000 # ticks\n")
	b.WriteString("hostSeconds 1.50 # host\n")
	if ipc != "" {
		fmt.Fprintf(&b, "system.cpu.ipc %s # ipc\n", ipc)
	}
	fmt.Fprintf(&b, "system.cpu.dcache.overallMissRate::total %s # rate\n", l1Miss)
	fmt.Fprintf(&b, "system.l2cache.overallMissRate::total %s # rate\n", l2Miss)
	b.WriteString("system.cpu.dcache.overallHits::total 900 # hits\n")
	b.WriteString("system.cpu.dcache.overallMisses::total 100 # misses\n")
	for b.Len() <= sweep.DefaultCompleteThreshold {
		b.WriteString("system.cpu.numCycles 1234 # padding\n")
	}

	return b.String()
}

func makeRun(root string, c sweep.Config, content string) string {
	dir := filepath.Join(root, c.Name())
	Expect(os.MkdirAll(dir, 0o755)).To(Succeed())

	if content != "" {
		path := filepath.Join(dir, sweep.StatsFileName)
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
	}

	return dir
}

func config(variant, l1, l2 string, a1, a2 int) sweep.Config {
	return sweep.Config{
		L1Size: l1, L2Size: l2, L1Assoc: a1, L2Assoc: a2, Variant: variant,
	}
}

var _ = Describe("Table", func() {
	It("should order rows numerically", func() {
		t := FromRows([]Row{
			{Config: config("", "128kB", "256kB", 4, 4)},
			{Config: config("", "32kB", "1024kB", 4, 4)},
			{Config: config("", "32kB", "256kB", 16, 4)},
			{Config: config("", "32kB", "256kB", 4, 4)},
		})

		var names []string
		for _, r := range t.Rows() {
			names = append(names, r.Config.Name())
		}

		Expect(names).To(Equal([]string{
			"L1_32kB_L2_256kB_A1_4_A2_4",
			"L1_32kB_L2_256kB_A1_16_A2_4",
			"L1_32kB_L2_1024kB_A1_4_A2_4",
			"L1_128kB_L2_256kB_A1_4_A2_4",
		}))
	})

	It("should replace rows of the same configuration", func() {
		t := New()
		t.Put(Row{Config: config("Simple", "32kB", "256kB", 4, 4), Status: StatusFailed})
		t.Put(Row{Config: config("Simple", "32kB", "256kB", 4, 4), Status: StatusOK})

		Expect(t.Len()).To(Equal(1))

		r, found := t.Get(Row{Config: config("Simple", "32kB", "256kB", 4, 4)})
		Expect(found).To(BeTrue())
		Expect(r.Status).To(Equal(StatusOK))
	})

	It("should list variants", func() {
		t := FromRows([]Row{
			{Config: config("Simple", "32kB", "256kB", 4, 4)},
			{Config: config("Chunked", "32kB", "256kB", 4, 4)},
			{Config: config("Simple", "64kB", "256kB", 4, 4)},
		})

		Expect(t.Variants()).To(Equal([]string{"Chunked", "Simple"}))
		Expect(t.HasVariants()).To(BeTrue())
		Expect(New().HasVariants()).To(BeFalse())
		Expect(t.Filter(func(r Row) bool {
			return r.Config.Variant == "Simple"
		})).To(HaveLen(2))
	})

	It("should derive metrics", func() {
		r := Row{
			Config: config("", "64kB", "512kB", 8, 16),
			Metrics: stats.Stats{
				stats.KeyL1DMissRate: stats.ParseValue("0.25"),
			},
		}

		Expect(r.Metric(MetricL1HitRate).Num).To(Equal(0.75))
		Expect(r.Metric(MetricL2HitRate).Present).To(BeFalse())
		Expect(r.Metric(MetricTotalCacheKB).Raw).To(Equal("576"))
		Expect(r.Metric("Bogus").Present).To(BeFalse())
	})
})

var _ = Describe("Extract", func() {
	var root string

	BeforeEach(func() {
		root = GinkgoT().TempDir()
	})

	It("should report a missing results directory", func() {
		_, err := Extract(filepath.Join(root, "missing"))

		Expect(errors.Is(err, sweep.ErrMissingPrerequisite)).To(BeTrue())
	})

	It("should give sentinel rows for broken runs and keep the others", func() {
		good := config("Simple", "64kB", "512kB", 8, 16)
		noIPC := config("Simple", "128kB", "512kB", 8, 16)
		missing := config("Chunked", "64kB", "512kB", 8, 16)
		truncated := config("Chunked", "128kB", "512kB", 8, 16)

		makeRun(root, good, statsDump("0.001", "0.1", "0.5", "0.7"))
		makeRun(root, noIPC, statsDump("0.002", "0.2", "0.4", ""))
		makeRun(root, missing, "")
		makeRun(root, truncated, "simSeconds 0.5\n")
		Expect(os.MkdirAll(filepath.Join(root, "plots"), 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(root, "results.csv"), nil, 0o644)).To(Succeed())

		e := NewExtractor()
		e.Quiet = true
		t, err := e.Extract(root)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Len()).To(Equal(4))

		row, _ := t.Get(Row{Config: good})
		Expect(row.Status).To(Equal(StatusOK))
		Expect(row.Metric(MetricTime).Raw).To(Equal("0.001"))

		row, _ = t.Get(Row{Config: noIPC})
		Expect(row.Status).To(Equal(StatusOK))
		Expect(row.Metric(MetricIPC).Present).To(BeFalse())
		Expect(row.Metric(MetricTime).Raw).To(Equal("0.002"))

		row, _ = t.Get(Row{Config: missing})
		Expect(row.Status).To(Equal(StatusFailed))

		row, _ = t.Get(Row{Config: truncated})
		Expect(row.Status).To(Equal(StatusFailed))
		Expect(row.Metric(MetricTime).Present).To(BeFalse())
	})

	It("should omit failed runs when asked to", func() {
		makeRun(root, config("", "64kB", "512kB", 8, 16), "")
		makeRun(root, config("", "32kB", "512kB", 8, 16), statsDump("1", "0", "0", "1"))

		e := NewExtractor()
		e.SkipMissing = true
		t, err := e.Extract(root)

		Expect(err).NotTo(HaveOccurred())
		Expect(t.Len()).To(Equal(1))
	})

	It("should extract the same bytes every time", func() {
		for _, c := range []sweep.Config{
			config("Simple", "32kB", "256kB", 4, 4),
			config("Simple", "32kB", "1024kB", 16, 8),
			config("Chunked", "128kB", "512kB", 8, 4),
		} {
			makeRun(root, c, statsDump("0.00123", "0.0456", "0.789", "0.5"))
		}
		makeRun(root, config("Chunked", "32kB", "256kB", 4, 4), "")

		render := func() []byte {
			t, err := Extract(root)
			Expect(err).NotTo(HaveOccurred())

			var buf bytes.Buffer
			Expect(t.WriteCSV(&buf)).To(Succeed())

			return buf.Bytes()
		}

		first := render()
		Expect(render()).To(Equal(first))

		reloaded, err := ReadCSV(bytes.NewReader(first))
		Expect(err).NotTo(HaveOccurred())

		var again bytes.Buffer
		Expect(reloaded.WriteCSV(&again)).To(Succeed())
		Expect(again.Bytes()).To(Equal(first))
	})

	It("should build the table of a finished sweep", func() {
		ok := sweep.Job{Config: config("", "32kB", "256kB", 4, 4)}
		ok.Dir = makeRun(root, ok.Config, statsDump("0.1", "0.1", "0.1", "1"))
		failed := sweep.Job{Config: config("", "64kB", "256kB", 4, 4)}
		failed.Dir = makeRun(root, failed.Config, "")
		errored := sweep.Job{Config: config("", "128kB", "256kB", 4, 4)}

		t := NewExtractor().FromResults([]sweep.Result{
			{Job: ok, Outcome: sweep.OutcomeCompleted},
			{Job: failed, Outcome: sweep.OutcomeFailed},
			{Job: errored, Outcome: sweep.OutcomeErrored, Err: errors.New("no simulator")},
		})

		rows := t.Rows()
		Expect(rows).To(HaveLen(3))
		Expect(rows[0].Status).To(Equal(StatusOK))
		Expect(rows[1].Status).To(Equal(StatusFailed))
		Expect(rows[2].Status).To(Equal(StatusError))
		Expect(rows[2].Label).To(Equal("no simulator"))
	})
})

var _ = Describe("CSV", func() {
	It("should write the fixed header", func() {
		Expect(strings.Join(Header(true), ",")).To(Equal(
			"L1_Size,L2_Size,L1_Assoc,L2_Assoc,Type,Status,Time,Cycles," +
				"HostSeconds,L1_MissRate,L2_MissRate,L1_HitRate,L2_HitRate," +
				"L1_Hits,L1_Misses,IPC,TotalCacheKB"))
		Expect(Header(false)).NotTo(ContainElement("Type"))
	})

	It("should render absent values as N/A", func() {
		var buf bytes.Buffer
		t := FromRows([]Row{{
			Config:  config("", "64kB", "512kB", 8, 16),
			Status:  StatusFailed,
			Metrics: stats.Stats{},
		}})

		Expect(t.WriteCSV(&buf)).To(Succeed())

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		Expect(lines).To(HaveLen(2))
		Expect(lines[1]).To(Equal(
			"64kB,512kB,8,16,Failed,N/A,N/A,N/A,N/A,N/A,N/A,N/A,N/A,N/A,N/A,576"))
	})

	It("should read tables without a status column", func() {
		csv := "L1_Size,L2_Size,L1_Assoc,L2_Assoc,Type,Time,Cycles,L1_MissRate,L2_MissRate,IPC\n" +
			"32kB,256kB,4,4,Simple,0.001,1000,0.1,0.2,0.9\n" +
			"64kB,256kB,4,4,Simple,Failed,0,0,0,0\n"

		t, err := ReadCSV(strings.NewReader(csv))
		Expect(err).NotTo(HaveOccurred())

		rows := t.Rows()
		Expect(rows).To(HaveLen(2))
		Expect(rows[0].Status).To(Equal(StatusOK))
		Expect(rows[0].Metric(MetricIPC).Num).To(Equal(0.9))
		Expect(rows[0].Metric(MetricHostSeconds).Present).To(BeFalse())
		Expect(rows[1].Status).To(Equal(StatusFailed))
		Expect(rows[1].Metric(MetricTime).Present).To(BeFalse())
	})

	It("should reject tables without configuration columns", func() {
		_, err := ReadCSV(strings.NewReader("Time,IPC\n1,2\n"))
		Expect(err).To(HaveOccurred())

		_, err = ReadCSV(strings.NewReader(
			"L1_Size,L2_Size,L1_Assoc,L2_Assoc\n32kB,256kB,four,4\n"))
		Expect(err).To(HaveOccurred())

		_, err = ReadCSV(strings.NewReader(""))
		Expect(err).To(HaveOccurred())
	})

	It("should write and read files", func() {
		path := filepath.Join(GinkgoT().TempDir(), "results.csv")
		t := FromRows([]Row{{
			Config:  config("", "64kB", "512kB", 8, 16),
			Status:  StatusOK,
			Metrics: stats.Stats{stats.KeySimSeconds: stats.ParseValue("0.5")},
		}})

		Expect(t.WriteCSVFile(path)).To(Succeed())

		loaded, err := ReadCSVFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Rows()[0].Metric(MetricTime).Raw).To(Equal("0.5"))

		_, err = ReadCSVFile(path + ".missing")
		Expect(errors.Is(err, sweep.ErrMissingPrerequisite)).To(BeTrue())
	})
})
