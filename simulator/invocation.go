// Package simulator invokes the external architectural simulator and prepares
// what it needs: the configuration script and the guest binaries.
package simulator

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sarchlab/cachesweep/sweep"
)

// Output files written next to the statistics of every run.
const (
	StdoutFileName = "sim_out.txt"
	StderrFileName = "sim_err.txt"
)

// Invocation is one command line of the simulator.
type Invocation struct {
	Binary       string
	ConfigScript string
	OutputDir    string
	WorkDir      string
	Args         []string
}

// Command returns the argument vector, with the simulator binary first.
func (i Invocation) Command() []string {
	argv := []string{i.Binary, "-d", i.OutputDir, i.ConfigScript}
	return append(argv, i.Args...)
}

// InvocationFor builds the command line that runs job.
func InvocationFor(
	binary, configScript, workDir string,
	job sweep.Job,
) (Invocation, error) {
	outputDir, err := filepath.Abs(job.Dir)
	if err != nil {
		return Invocation{}, fmt.Errorf("resolving run directory: %w", err)
	}

	return Invocation{
		Binary:       binary,
		ConfigScript: configScript,
		OutputDir:    outputDir,
		WorkDir:      workDir,
		Args:         job.Config.Flags(job.Variant.Binary),
	}, nil
}

// CheckPrerequisites makes sure the simulator, its configuration script and
// the workload binaries exist before a sweep starts. Workload paths are
// resolved against workDir when relative.
func CheckPrerequisites(
	binary, configScript, workDir string,
	variants []sweep.Variant,
) error {
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("%w: simulator %q: %v",
			sweep.ErrMissingPrerequisite, binary, err)
	}

	if err := mustExist(configScript, ""); err != nil {
		return err
	}

	for _, v := range variants {
		if v.Binary == "" {
			continue
		}

		if err := mustExist(v.Binary, workDir); err != nil {
			return err
		}
	}

	return nil
}

func mustExist(path, base string) error {
	if !filepath.IsAbs(path) && base != "" {
		path = filepath.Join(base, path)
	}

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", sweep.ErrMissingPrerequisite, path)
	}

	return nil
}
