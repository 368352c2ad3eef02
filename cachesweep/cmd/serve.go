package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesweep/journal"
	"github.com/sarchlab/cachesweep/monitoring"
	"github.com/sarchlab/cachesweep/sweep"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the journaled runs of a sweep over HTTP.",
	Long: "`serve` starts the monitor on the journal of a finished or " +
		"interrupted sweep and keeps it up until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		s := loadSettings(cmd)
		root := runRoot(s, resolveSweep(cmd).Name)

		j, err := openJournal(root)
		if err != nil {
			fail(err)
		}

		entries, err := j.List()
		if err != nil {
			fail(err)
		}

		session := j.Session()
		if err := j.Close(); err != nil {
			fail(err)
		}

		port, _ := cmd.Flags().GetInt("port")
		open, _ := cmd.Flags().GetBool("open")

		m := monitoring.NewMonitor().
			WithPortNumber(port).
			WithBrowser(open)

		for _, e := range entries {
			m.Restore(statusOf(e, session))
		}

		m.StartServer()
		fmt.Printf("Serving %d runs, press Ctrl-C to stop\n", len(entries))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		<-ctx.Done()
	},
}

// statusOf converts a journal entry. Runs an earlier process left running are
// shown as errored.
func statusOf(e journal.Entry, session string) monitoring.RunStatus {
	status := monitoring.RunStatus{
		Name:        e.Name,
		State:       string(e.State),
		Outcome:     e.Outcome,
		StartedAt:   e.StartedAt,
		FinishedAt:  e.FinishedAt,
		WallSeconds: e.WallSeconds,
		Error:       e.Error,
	}

	if c, err := sweep.ParseName(e.Name); err == nil {
		status.Variant = c.Variant
	}

	if e.Interrupted(session) {
		status.State = monitoring.StateDone
		status.Outcome = sweep.OutcomeErrored.String()
		status.Error = "interrupted"
	}

	return status
}

func init() {
	rootCmd.AddCommand(serveCmd)

	addSweepFlags(serveCmd)
	serveCmd.Flags().Int("port", 0, "Port to listen on, random when below 1000")
	serveCmd.Flags().Bool("open", false, "Open the monitor in a browser")
}
