package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesweep/table"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Rebuild the results table from the run directories.",
	Long: "`extract` parses the statistics of every run directory and " +
		"writes the CSV table. It does not run the simulator.",
	Run: func(cmd *cobra.Command, args []string) {
		s := loadSettings(cmd)

		dir, _ := cmd.Flags().GetString("dir")
		out, _ := cmd.Flags().GetString("out")

		if dir == "" || out == "" {
			name := resolveSweep(cmd).Name
			if dir == "" {
				dir = runRoot(s, name)
			}

			if out == "" {
				out = csvPath(s, name)
			}
		}

		e := table.NewExtractor()
		e.CompleteThreshold = s.CompleteThreshold
		e.SkipMissing, _ = cmd.Flags().GetBool("skip-missing")

		t, err := e.Extract(dir)
		if err != nil {
			fail(err)
		}

		if err := t.WriteCSVFile(out); err != nil {
			fail(err)
		}

		failed := len(t.Filter(func(r table.Row) bool { return !r.OK() }))
		if failed > 0 {
			warnColor.Printf("%d of %d configurations have no statistics\n",
				failed, t.Len())
		}

		okColor.Printf("Extracted %d configurations", t.Len())
		fmt.Printf(" into %s\n", out)
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	addSweepFlags(extractCmd)
	extractCmd.Flags().String("dir", "", "Directory holding the run directories")
	extractCmd.Flags().String("out", "", "CSV file to write")
	extractCmd.Flags().Bool("skip-missing", false,
		"Leave out configurations without statistics")
}
