package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesweep/config"
	"github.com/sarchlab/cachesweep/datarecording"
	"github.com/sarchlab/cachesweep/hooking"
	"github.com/sarchlab/cachesweep/journal"
	"github.com/sarchlab/cachesweep/monitoring"
	"github.com/sarchlab/cachesweep/simulator"
	"github.com/sarchlab/cachesweep/sweep"
	"github.com/sarchlab/cachesweep/table"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the simulator over every configuration of a sweep.",
	Long: "`sweep` runs every configuration that has no complete statistics " +
		"yet, then writes the results table next to the run directories.",
	Run: func(cmd *cobra.Command, args []string) {
		s := loadSettings(cmd)
		applySweepFlags(cmd, &s)

		if err := s.Validate(); err != nil {
			fail(err)
		}

		sw := resolveSweep(cmd)
		root := runRoot(s, sw.Name)

		if err := os.MkdirAll(root, 0o755); err != nil {
			fail(err)
		}

		extractOnly, _ := cmd.Flags().GetBool("extract-only")

		var results []sweep.Result

		backend, session := openDatabase(cmd, root, sw.Name)
		recorder := datarecording.NewSweepRecorder(backend)
		defer func() {
			if err := recorder.Close(); err != nil {
				log.Printf("closing database: %v", err)
			}
		}()

		execRecorder := datarecording.NewExecRecorder(backend)
		execRecorder.Start()
		execRecorder.Set("Sweep", sw.Name)
		execRecorder.Set("Session", session)
		execRecorder.Set("Host", config.HostInfo().String())

		if !extractOnly {
			results = runSweep(cmd, s, sw, root, recorder)
		}

		t := buildTable(s, root, results)

		path := csvPath(s, sw.Name)
		if err := t.WriteCSVFile(path); err != nil {
			fail(err)
		}

		recorder.RecordTable(t)
		execRecorder.End()

		okColor.Printf("Results written to %s\n", path)
	},
}

// openDatabase creates the SQLite database of this invocation. Without --db
// it is named after the sweep and a new session id.
func openDatabase(
	cmd *cobra.Command,
	root, name string,
) (datarecording.DataRecorder, string) {
	session := xid.New().String()

	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		path = filepath.Join(root, name+"_"+session)
	}

	backend, err := datarecording.Create(path)
	if err != nil {
		fail(err)
	}

	return backend, session
}

func applySweepFlags(cmd *cobra.Command, s *config.Settings) {
	if cmd.Flags().Changed("workers") {
		s.Workers, _ = cmd.Flags().GetInt("workers")
	}

	if cmd.Flags().Changed("force") {
		s.Force, _ = cmd.Flags().GetBool("force")
	}

	if cmd.Flags().Changed("timeout") {
		s.Timeout, _ = cmd.Flags().GetDuration("timeout")
	}

	if cmd.Flags().Changed("capture-output") {
		s.CaptureOutput, _ = cmd.Flags().GetBool("capture-output")
	}
}

func runSweep(
	cmd *cobra.Command,
	s config.Settings,
	sw config.Sweep,
	root string,
	recorder *datarecording.SweepRecorder,
) []sweep.Result {
	verbose, _ := cmd.Flags().GetBool("verbose")

	if compile, _ := cmd.Flags().GetBool("compile"); compile {
		compileWorkloads(s, sw)
	}

	err := simulator.CheckPrerequisites(
		s.SimulatorBinary, s.ConfigScript, s.WorkDir, sw.Workloads())
	if err != nil {
		fail(err)
	}

	jobs := sw.Jobs(root)

	runner := sweep.MakeBuilder().
		WithExecutor(&simulator.ProcessExecutor{
			Binary:        s.SimulatorBinary,
			ConfigScript:  s.ConfigScript,
			WorkDir:       s.WorkDir,
			CaptureOutput: s.CaptureOutput,
			Verbose:       verbose,
		}).
		WithWorkers(s.Workers).
		WithForce(s.Force).
		WithTimeout(s.Timeout).
		WithCompleteThreshold(s.CompleteThreshold).
		Build()

	j, err := journal.Open(journalDir(root))
	if err != nil {
		fail(err)
	}
	defer j.Close()

	runner.AcceptHook(j)
	runner.AcceptHook(recorder)
	runner.AcceptHook(consoleHook(verbose))

	if monitor, _ := cmd.Flags().GetBool("monitor"); monitor {
		m := startMonitor(cmd, runner.Workers(len(jobs)))
		bar := m.Watch(sw.Name, jobs)
		defer m.CompleteProgressBar(bar)

		runner.AcceptHook(m)
	}

	fmt.Printf("Running %d configurations of %s on %d workers (%s)\n",
		len(jobs), sw.Name, runner.Workers(len(jobs)), config.HostInfo())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results := runner.Run(ctx, jobs)

	printSummary(sweep.Summarize(results))

	return results
}

func startMonitor(cmd *cobra.Command, workers int) *monitoring.Monitor {
	port, _ := cmd.Flags().GetInt("monitor-port")
	open, _ := cmd.Flags().GetBool("open")

	m := monitoring.NewMonitor().
		WithPortNumber(port).
		WithBrowser(open).
		WithWorkers(workers)
	m.StartServer()

	return m
}

// consoleHook prints one line per finished run. Runs that did not produce
// statistics are always reported.
func consoleHook(verbose bool) hooking.Hook {
	return hooking.HookFunc(func(ctx hooking.HookCtx) {
		if ctx.Pos != hooking.HookPosRunEnd {
			return
		}

		r, ok := ctx.Item.(sweep.Result)
		if !ok {
			return
		}

		switch r.Outcome {
		case sweep.OutcomeErrored:
			errColor.Printf("%s: %v\n", r.RunName(), r.Err)
		case sweep.OutcomeFailed:
			warnColor.Printf("%s: no statistics\n", r.RunName())
		default:
			if verbose {
				fmt.Printf("%s: %s in %s\n", r.RunName(), r.Outcome,
					r.WallTime().Round(time.Millisecond))
			}
		}
	})
}

func buildTable(s config.Settings, root string, results []sweep.Result) *table.Table {
	e := table.NewExtractor()
	e.CompleteThreshold = s.CompleteThreshold

	if results != nil {
		return e.FromResults(results)
	}

	t, err := e.Extract(root)
	if err != nil {
		fail(err)
	}

	return t
}

func compileWorkloads(s config.Settings, sw config.Sweep) {
	c := simulator.NewCompiler(s.Compiler, s.WorkDir)

	for _, w := range sw.Workloads() {
		if err := c.Build(context.Background(), w); err != nil {
			fail(err)
		}

		if w.Source != "" {
			fmt.Printf("Compiled %s\n", w.Binary)
		}
	}
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	addSweepFlags(sweepCmd)

	flags := sweepCmd.Flags()
	flags.Bool("force", false, "Rerun configurations with complete statistics")
	flags.Int("workers", sweep.DefaultWorkers(), "Number of parallel simulations")
	flags.Duration("timeout", 0, "Wall time limit of one run, 0 for none")
	flags.Bool("capture-output", false, "Keep the simulator stdout and stderr")
	flags.Bool("extract-only", false, "Only rebuild the table from existing runs")
	flags.Bool("compile", false, "Compile the workloads first")
	flags.Bool("monitor", false, "Serve the sweep progress over HTTP")
	flags.Int("monitor-port", 0, "Port of the monitor, random when below 1000")
	flags.Bool("open", false, "Open the monitor in a browser")
	flags.String("db", "", "SQLite database to record results into")
}
