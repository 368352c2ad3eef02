package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesweep/analysis"
	"github.com/sarchlab/cachesweep/plotting"
	"github.com/sarchlab/cachesweep/table"
)

var paretoCmd = &cobra.Command{
	Use:   "pareto",
	Short: "Find the configurations no other one beats on size and time.",
	Long: "`pareto` keeps the configurations for which no other configuration " +
		"is both smaller and faster, writes them to a CSV file and plots them.",
	Run: func(cmd *cobra.Command, args []string) {
		s := loadSettings(cmd)
		t, csv := loadTable(cmd, s)

		rows := t.Rows()
		fronts := analysis.ParetoByVariant(rows,
			table.MetricTotalCacheKB, table.MetricCycles)

		var front []table.Row
		for _, v := range table.Variants(rows) {
			front = append(front, fronts[v]...)
		}

		metrics := []string{table.MetricTotalCacheKB, table.MetricCycles,
			table.MetricTime}
		mustPrint(analysis.PrintRows(os.Stdout, front, metrics))

		out := strings.TrimSuffix(csv, filepath.Ext(csv)) + "_pareto.csv"

		f, err := os.Create(out)
		if err != nil {
			fail(err)
		}
		defer f.Close()

		if err := table.WriteRows(f, front, t.HasVariants()); err != nil {
			fail(err)
		}

		r := plotting.NewRenderer(filepath.Dir(csv))

		chart, err := r.RenderPareto(rows)
		switch {
		case errors.Is(err, plotting.ErrNoData):
			warnColor.Println("No configuration has both size and ticks")
		case err != nil:
			fail(err)
		default:
			fmt.Println(chart)
		}

		okColor.Printf("%d Pareto-optimal configurations written to %s\n",
			len(front), out)
	},
}

func init() {
	rootCmd.AddCommand(paretoCmd)

	addTableFlags(paretoCmd)
}
