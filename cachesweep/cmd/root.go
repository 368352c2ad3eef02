// Package cmd provides the command-line interface of cachesweep.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/cachesweep/config"
	"github.com/sarchlab/cachesweep/datarecording"
	"github.com/sarchlab/cachesweep/journal"
	"github.com/sarchlab/cachesweep/sweep"
	"github.com/sarchlab/cachesweep/table"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cachesweep",
	Short: "cachesweep runs cache design sweeps on gem5 and analyzes them.",
	Long: `cachesweep enumerates L1 and L2 cache configurations, runs the ` +
		`simulator once per configuration in a worker pool, scrapes the ` +
		`statistics into a CSV table and plots the results.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func init() {
	addSettingsFlags(rootCmd.PersistentFlags())
}

func addSettingsFlags(flags *pflag.FlagSet) {
	flags.String("env", config.EnvFile, "File with CACHESWEEP_* settings")
	flags.String("results", "", "Results directory")
	flags.String("sim", "", "Simulator binary")
	flags.String("config-script", "", "Simulator configuration script")
	flags.String("workdir", "", "Directory workload paths are relative to")
	flags.BoolP("verbose", "v", false, "Report every run")
}

// loadSettings reads the env file and the environment, then applies the
// flags that were set on the command line.
func loadSettings(cmd *cobra.Command) config.Settings {
	envFile, _ := cmd.Flags().GetString("env")

	s, err := config.Load(envFile)
	if err != nil {
		fail(err)
	}

	overrides := map[string]*string{
		"results":       &s.ResultsDir,
		"sim":           &s.SimulatorBinary,
		"config-script": &s.ConfigScript,
		"workdir":       &s.WorkDir,
	}

	for name, field := range overrides {
		if cmd.Flags().Changed(name) {
			*field, _ = cmd.Flags().GetString(name)
		}
	}

	return s
}

// resolveSweep picks the sweep from --sweep-file or --preset. A non-zero
// --size restricts the matmul preset to one matrix size.
func resolveSweep(cmd *cobra.Command) config.Sweep {
	file, _ := cmd.Flags().GetString("sweep-file")
	if file != "" {
		s, err := config.LoadSweep(file)
		if err != nil {
			fail(err)
		}

		return s
	}

	preset, _ := cmd.Flags().GetString("preset")
	size, _ := cmd.Flags().GetInt("size")

	if size != 0 {
		if preset != config.PresetMatMul {
			fail(fmt.Errorf("--size only applies to the %s preset",
				config.PresetMatMul))
		}

		return config.MatMul(size)
	}

	s, err := config.Preset(preset)
	if err != nil {
		fail(err)
	}

	return s
}

func addSweepFlags(cmd *cobra.Command) {
	cmd.Flags().String("preset", config.PresetMergeSort,
		fmt.Sprintf("Predefined sweep, one of %v", config.Presets()))
	cmd.Flags().String("sweep-file", "", "JSON file describing a custom sweep")
	cmd.Flags().Int("size", 0, "Matrix size of the matmul preset")
}

// runRoot is the directory that holds one run directory per configuration.
func runRoot(s config.Settings, name string) string {
	return filepath.Join(s.ResultsDir, name)
}

func csvPath(s config.Settings, name string) string {
	return filepath.Join(runRoot(s, name), name+"_results.csv")
}

func journalDir(root string) string {
	return filepath.Join(root, ".journal")
}

// openJournal opens the journal of an existing run tree. It does not create
// one for a sweep that never ran.
func openJournal(root string) (*journal.Journal, error) {
	if _, err := os.Stat(journalDir(root)); err != nil {
		return nil, fmt.Errorf("%w: no journal under %s: %v",
			sweep.ErrMissingPrerequisite, root, err)
	}

	return journal.Open(journalDir(root))
}

// csvFromFlags returns --csv, or the table of the selected sweep.
func csvFromFlags(cmd *cobra.Command, s config.Settings) string {
	path, _ := cmd.Flags().GetString("csv")
	if path != "" {
		return path
	}

	return csvPath(s, resolveSweep(cmd).Name)
}

// loadTable reads the results of the selected sweep, from the SQLite file
// named by --from-db when given and from the CSV table otherwise. The CSV path
// is returned either way since outputs are placed next to it.
func loadTable(cmd *cobra.Command, s config.Settings) (*table.Table, string) {
	csv := csvFromFlags(cmd, s)

	var (
		t   *table.Table
		err error
	)

	db, _ := cmd.Flags().GetString("from-db")
	if db != "" {
		t, err = datarecording.LoadTable(context.Background(), db)
	} else {
		t, err = table.ReadCSVFile(csv)
	}

	if err != nil {
		fail(err)
	}

	return t, csv
}

func addTableFlags(cmd *cobra.Command) {
	addSweepFlags(cmd)
	cmd.Flags().String("csv", "", "Results table to read")
	cmd.Flags().String("from-db", "", "Read the results from a SQLite database instead")
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
)

// fail reports err and exits with status 1 after the registered flushes run.
func fail(err error) {
	if errors.Is(err, sweep.ErrMissingPrerequisite) {
		errColor.Fprintf(os.Stderr, "Missing prerequisite: ")
	} else {
		errColor.Fprintf(os.Stderr, "Error: ")
	}

	fmt.Fprintln(os.Stderr, err)
	atexit.Exit(1)
}

func printSummary(s sweep.Summary) {
	okColor.Printf("%d completed", s.Completed)
	fmt.Printf(", %d skipped", s.Skipped)

	if s.Failed > 0 {
		warnColor.Printf(", %d failed", s.Failed)
	} else {
		fmt.Printf(", 0 failed")
	}

	if s.Errored > 0 {
		errColor.Printf(", %d errors", s.Errored)
	} else {
		fmt.Printf(", 0 errors")
	}

	fmt.Printf(" (%d configurations)\n", s.Total())
}
