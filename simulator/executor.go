package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sarchlab/cachesweep/sweep"
)

// ProcessExecutor runs the simulator as a child process.
type ProcessExecutor struct {
	Binary       string
	ConfigScript string

	// WorkDir is the working directory of the simulator. Workload paths are
	// relative to it. Empty means the current directory.
	WorkDir string

	// CaptureOutput keeps the simulator's stdout and stderr in the run
	// directory. Otherwise both go to the null device.
	CaptureOutput bool

	// Verbose logs the exit status of every run that does not exit cleanly.
	Verbose bool
}

// Execute runs the simulator for job and waits for it. The exit status of the
// simulator is not an error: whether the run produced statistics decides its
// outcome. Errors mean the process could not be started or was cut off.
func (e *ProcessExecutor) Execute(ctx context.Context, job sweep.Job) error {
	inv, err := InvocationFor(e.Binary, e.ConfigScript, e.WorkDir, job)
	if err != nil {
		return err
	}

	argv := inv.Command()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = inv.WorkDir

	stdout, stderr, closeOutputs, err := e.outputs(inv.OutputDir)
	if err != nil {
		return err
	}
	defer closeOutputs()

	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err = cmd.Run()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if e.Verbose {
			log.Printf("%s exited with status %d", job.RunName(), exitErr.ExitCode())
		}

		return nil
	}

	if err != nil {
		return fmt.Errorf("running simulator: %w", err)
	}

	return nil
}

func (e *ProcessExecutor) outputs(
	dir string,
) (stdout, stderr io.Writer, closeAll func(), err error) {
	if !e.CaptureOutput {
		return nil, nil, func() {}, nil
	}

	outFile, err := os.Create(filepath.Join(dir, StdoutFileName))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating stdout file: %w", err)
	}

	errFile, err := os.Create(filepath.Join(dir, StderrFileName))
	if err != nil {
		outFile.Close()
		return nil, nil, nil, fmt.Errorf("creating stderr file: %w", err)
	}

	return outFile, errFile, func() {
		outFile.Close()
		errFile.Close()
	}, nil
}
