package analysis

import (
	"bytes"
	"math"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/cachesweep/stats"
	"github.com/sarchlab/cachesweep/sweep"
	"github.com/sarchlab/cachesweep/table"
)

func row(variant, l1, l2 string, a1, a2 int, time, ipc, l1Miss string) table.Row {
	return table.Row{
		Config: sweep.Config{
			L1Size: l1, L2Size: l2, L1Assoc: a1, L2Assoc: a2, Variant: variant,
		},
		Status: table.StatusOK,
		Metrics: stats.Stats{
			stats.KeySimSeconds:  stats.ParseValue(time),
			stats.KeySimTicks:    stats.ParseValue(time + "0"),
			stats.KeyIPC:         stats.ParseValue(ipc),
			stats.KeyL1DMissRate: stats.ParseValue(l1Miss),
		},
	}
}

func sampleRows() []table.Row {
	return []table.Row{
		row("Simple", "32kB", "512kB", 8, 16, "4", "0.5", "0.4"),
		row("Simple", "64kB", "512kB", 8, 16, "3", "0.6", "0.3"),
		row("Simple", "128kB", "512kB", 8, 16, "2", "0.7", "0.2"),
		row("Simple", "64kB", "256kB", 8, 16, "5", "0.4", "0.3"),
		row("Simple", "64kB", "512kB", 4, 16, "3.5", "0.55", "0.35"),
		row("Chunked", "64kB", "512kB", 8, 16, "1", "0.9", "0.1"),
		row("Chunked", "64kB", "0.5MB", 8, 4, "6", "0.3", "0.1"),
		{
			Config: sweep.Config{
				L1Size: "32kB", L2Size: "256kB", L1Assoc: 4, L2Assoc: 4,
				Variant: "Chunked",
			},
			Status:  table.StatusFailed,
			Metrics: stats.Stats{},
		},
	}
}

var _ = Describe("Baseline", func() {
	It("should find the baseline of every variant", func() {
		rows := Filter(sampleRows(), DefaultBaseline())

		Expect(rows).To(HaveLen(2))
		Expect(rows[0].Config.Variant).To(Equal("Simple"))
		Expect(rows[1].Config.Variant).To(Equal("Chunked"))
	})

	It("should compare sizes by capacity", func() {
		b := DefaultBaseline()
		b.L2Size = "0.5MB"

		Expect(b.Matches(sweep.Config{
			L1Size: "64kB", L2Size: "512kB", L1Assoc: 8, L2Assoc: 16,
		})).To(BeTrue())
	})

	It("should slice along one axis", func() {
		rows := Slice(sampleRows(), DefaultBaseline(), AxisL1Size)

		var labels []string
		for _, r := range rows {
			labels = append(labels, r.Config.Variant+":"+AxisL1Size.Label(r.Config))
		}

		Expect(labels).To(Equal([]string{
			"Simple:32kB", "Simple:64kB", "Simple:128kB", "Chunked:64kB",
		}))
	})

	It("should reject unparsable baselines", func() {
		Expect(DefaultBaseline().Validate()).To(Succeed())
		Expect(Baseline{L1Size: "x", L2Size: "1MB"}.Validate()).NotTo(Succeed())
	})
})

var _ = Describe("TopN", func() {
	It("should rank the fastest configurations per variant", func() {
		rankings := TopN(sampleRows(), table.MetricTime, 3, true)

		Expect(rankings).To(HaveLen(2))
		Expect(rankings[0].Variant).To(Equal("Chunked"))
		Expect(rankings[0].Rows).To(HaveLen(2))
		Expect(rankings[1].Variant).To(Equal("Simple"))
		Expect(rankings[1].Rows).To(HaveLen(3))

		var times []string
		for _, r := range rankings[1].Rows {
			times = append(times, r.Metric(table.MetricTime).Raw)
		}
		Expect(times).To(Equal([]string{"2", "3", "3.5"}))
	})

	It("should rank the highest values first when descending", func() {
		rankings := TopN(sampleRows(), table.MetricL1HitRate, 1, false)

		Expect(rankings[1].Rows[0].Config.L1Size).To(Equal("128kB"))
	})

	It("should keep no rows when n is zero or negative", func() {
		for _, n := range []int{0, -1} {
			rankings := TopN(sampleRows(), table.MetricTime, n, true)

			Expect(rankings).To(HaveLen(2))
			for _, r := range rankings {
				Expect(r.Rows).To(BeEmpty())
			}
		}
	})
})

var _ = Describe("Summarize", func() {
	It("should compute mean, min and max per variant", func() {
		summaries := Summarize(sampleRows(), []string{table.MetricIPC, table.MetricHostSeconds})

		Expect(summaries).To(HaveLen(4))

		simpleIPC := summaries[2]
		Expect(simpleIPC.Variant).To(Equal("Simple"))
		Expect(simpleIPC.Metric).To(Equal(table.MetricIPC))
		Expect(simpleIPC.Count).To(Equal(5))
		Expect(simpleIPC.Mean).To(BeNumerically("~", 0.55, 1e-9))
		Expect(simpleIPC.Min).To(Equal(0.4))
		Expect(simpleIPC.Max).To(Equal(0.7))

		Expect(summaries[3].Count).To(BeZero())
		Expect(math.IsNaN(summaries[3].Mean)).To(BeTrue())
	})

	It("should print and export summaries", func() {
		summaries := Summarize(sampleRows(), []string{table.MetricIPC})

		var console, csv bytes.Buffer
		Expect(PrintSummaries(&console, summaries)).To(Succeed())
		Expect(WriteSummariesCSV(&csv, summaries)).To(Succeed())

		Expect(console.String()).To(ContainSubstring("Chunked"))
		Expect(strings.Split(strings.TrimSpace(csv.String()), "\n")).To(HaveLen(3))
		Expect(csv.String()).To(HavePrefix("Type,Metric,Count,Mean,Min,Max\n"))
	})
})

var _ = Describe("GroupMean", func() {
	It("should average the metric at every axis position", func() {
		series := GroupMean(sampleRows(), AxisL2Size, table.MetricTime)

		Expect(series).To(HaveLen(2))

		simple := series[1]
		Expect(simple.Variant).To(Equal("Simple"))
		Expect(simple.Points).To(HaveLen(2))
		Expect(simple.Points[0].Label).To(Equal("256kB"))
		Expect(simple.Points[0].Y).To(Equal(5.0))
		Expect(simple.Points[1].Label).To(Equal("512kB"))
		Expect(simple.Points[1].Count).To(Equal(4))
		Expect(simple.Points[1].Y).To(BeNumerically("~", 3.125, 1e-9))
	})

	It("should build the size grid", func() {
		g := MeanGrid(sampleRows(), "Simple", table.MetricTime)

		Expect(g.L1KB).To(Equal([]int{32, 64, 128}))
		Expect(g.L2KB).To(Equal([]int{256, 512}))
		Expect(g.Values[1][1]).To(BeNumerically("~", 3.25, 1e-9))
		Expect(math.IsNaN(g.Values[0][0])).To(BeTrue())
	})
})

var _ = Describe("ParetoFront", func() {
	It("should keep only non-dominated configurations", func() {
		rows := []table.Row{
			row("", "16kB", "128kB", 2, 4, "9", "1", "0"),  // 144 kB
			row("", "32kB", "128kB", 2, 4, "7", "1", "0"),  // 160 kB
			row("", "32kB", "256kB", 2, 4, "8", "1", "0"),  // 288 kB, dominated
			row("", "64kB", "256kB", 2, 4, "5", "1", "0"),  // 320 kB
			row("", "64kB", "512kB", 2, 4, "5", "1", "0"),  // 576 kB, dominated
			row("", "16kB", "512kB", 2, 4, "10", "1", "0"), // 528 kB, dominated
		}

		front := ParetoFront(rows, table.MetricTotalCacheKB, table.MetricCycles)

		var sizes []string
		for _, r := range front {
			sizes = append(sizes, r.Metric(table.MetricTotalCacheKB).Raw)
		}

		Expect(sizes).To(Equal([]string{"144", "160", "320"}))
	})

	It("should compute a front per variant", func() {
		fronts := ParetoByVariant(sampleRows(), table.MetricTotalCacheKB, table.MetricTime)

		Expect(fronts).To(HaveKey("Simple"))
		Expect(fronts).To(HaveKey("Chunked"))
		Expect(fronts["Chunked"]).To(HaveLen(1))
	})

	It("should print rows", func() {
		var buf bytes.Buffer

		Expect(PrintRows(&buf, sampleRows()[:1], []string{table.MetricTime})).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("Simple"))
		Expect(buf.String()).To(ContainSubstring("32kB"))
	})
})
