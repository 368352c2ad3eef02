package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesweep/datarecording"
	"github.com/sarchlab/cachesweep/journal"
	"github.com/sarchlab/cachesweep/sweep"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the journal knows about the runs of a sweep.",
	Long: "`status` lists the runs recorded in the journal of a sweep. Runs " +
		"that were still running when their process stopped are reported " +
		"as interrupted. With --db it also prints the invocation recorded " +
		"in a SQLite database.",
	Run: func(cmd *cobra.Command, args []string) {
		s := loadSettings(cmd)
		root := runRoot(s, resolveSweep(cmd).Name)

		if db, _ := cmd.Flags().GetString("db"); db != "" {
			printDatabase(db)
		}

		j, err := openJournal(root)
		if err != nil {
			fail(err)
		}
		defer j.Close()

		entries, err := j.List()
		if err != nil {
			fail(err)
		}

		all, _ := cmd.Flags().GetBool("all")

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, e := range entries {
			interrupted := e.Interrupted(j.Session())
			if !all && !interrupted && e.Outcome != sweep.OutcomeErrored.String() {
				continue
			}

			state := string(e.State)
			if interrupted {
				state = "Interrupted"
			} else if e.Outcome != "" {
				state = e.Outcome
			}

			fmt.Fprintf(w, "%s\t%s\t%.1fs\t%s\n",
				e.Name, state, e.WallSeconds, e.Error)
		}
		w.Flush()

		tally, err := j.Tally()
		if err != nil {
			fail(err)
		}

		printTally(len(entries), tally)
	},
}

func printTally(n int, t journal.Tally) {
	outcomes := make([]string, 0, len(t.Outcomes))
	for o := range t.Outcomes {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)

	fmt.Printf("%d runs in the journal:", n)
	for _, o := range outcomes {
		fmt.Printf(" %d %s,", t.Outcomes[o], o)
	}

	if t.Interrupted > 0 {
		warnColor.Printf(" %d interrupted", t.Interrupted)
	} else {
		fmt.Printf(" 0 interrupted")
	}

	fmt.Println()
}

func printDatabase(path string) {
	ctx := context.Background()

	reader, err := datarecording.OpenReader(path)
	if err != nil {
		fail(err)
	}
	defer reader.Close()

	info, err := datarecording.LoadExecInfo(ctx, reader)
	if err != nil {
		fail(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, i := range info {
		fmt.Fprintf(w, "%s\t%s\n", i.Property, i.Value)
	}
	w.Flush()

	runs, total, err := datarecording.LoadRuns(ctx, reader,
		datarecording.QueryParams{OrderBy: "WallSeconds DESC", Limit: 1})
	if err != nil {
		// Databases of extract-only invocations have no runs.
		return
	}

	if total > 0 {
		slowest := runs[0]
		fmt.Printf("%d runs recorded, slowest %s in %s\n\n", total, slowest.Name,
			(time.Duration(slowest.WallSeconds * float64(time.Second))).
				Round(time.Millisecond))
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)

	addSweepFlags(statusCmd)
	statusCmd.Flags().Bool("all", false, "List every run, not only the troubled ones")
	statusCmd.Flags().String("db", "", "SQLite database of an earlier invocation")
}
