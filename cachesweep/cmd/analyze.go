package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesweep/analysis"
	"github.com/sarchlab/cachesweep/table"
)

var summaryMetrics = []string{
	table.MetricTime,
	table.MetricCycles,
	table.MetricIPC,
	table.MetricL1HitRate,
	table.MetricL2HitRate,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compare configurations against the baseline and rank them.",
	Run: func(cmd *cobra.Command, args []string) {
		s := loadSettings(cmd)

		top, err := topFlag(cmd)
		if err != nil {
			fail(err)
		}

		t, _ := loadTable(cmd, s)

		rows := t.Rows()
		w := os.Stdout

		baseline := analysis.DefaultBaseline()
		okColor.Fprintln(w, "Baseline configuration")
		mustPrint(analysis.PrintRows(w, analysis.Filter(rows, baseline),
			summaryMetrics))

		rankings := []struct {
			title     string
			metric    string
			ascending bool
		}{
			{"Fastest configurations", table.MetricTime, true},
			{"Highest IPC", table.MetricIPC, false},
			{"Best L1 hit rate", table.MetricL1HitRate, false},
		}

		for _, r := range rankings {
			fmt.Fprintln(w)
			mustPrint(analysis.PrintRankings(w, r.title,
				analysis.TopN(rows, r.metric, top, r.ascending)))
		}

		summaries := analysis.Summarize(rows, summaryMetrics)

		fmt.Fprintln(w)
		okColor.Fprintln(w, "Summary statistics")
		mustPrint(analysis.PrintSummaries(w, summaries))

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			return
		}

		f, err := os.Create(out)
		if err != nil {
			fail(err)
		}
		defer f.Close()

		if err := analysis.WriteSummariesCSV(f, summaries); err != nil {
			fail(err)
		}

		fmt.Printf("Summary written to %s\n", out)
	},
}

func topFlag(cmd *cobra.Command) (int, error) {
	top, err := cmd.Flags().GetInt("top")
	if err != nil {
		return 0, err
	}

	if top < 0 {
		return 0, fmt.Errorf("--top must not be negative, got %d", top)
	}

	return top, nil
}

func mustPrint(err error) {
	if err != nil {
		fail(err)
	}
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	addTableFlags(analyzeCmd)
	analyzeCmd.Flags().Int("top", 3, "Configurations listed per ranking")
	analyzeCmd.Flags().String("out", "", "CSV file for the summary statistics")
}
