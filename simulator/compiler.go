package simulator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sarchlab/cachesweep/sweep"
)

// DefaultCompiler is the cross compiler used to build guest programs.
const DefaultCompiler = "riscv64-unknown-linux-gnu-gcc"

// Compiler builds workload binaries from their C sources.
type Compiler struct {
	CC      string
	Flags   []string
	WorkDir string
}

// NewCompiler creates a compiler that produces optimized static binaries.
func NewCompiler(cc, workDir string) *Compiler {
	if cc == "" {
		cc = DefaultCompiler
	}

	return &Compiler{
		CC:      cc,
		Flags:   []string{"-O2", "-static"},
		WorkDir: workDir,
	}
}

// Command returns the compiler argument vector for v.
func (c *Compiler) Command(v sweep.Variant) []string {
	argv := append([]string{c.CC}, c.Flags...)

	for _, d := range v.Defines {
		argv = append(argv, "-D"+d)
	}

	return append(argv, v.Source, "-o", v.Binary)
}

// Build compiles the variant. Variants without a source are left alone. A
// missing source or a failing compiler leaves the sweep without a workload,
// so both are reported as missing prerequisites.
func (c *Compiler) Build(ctx context.Context, v sweep.Variant) error {
	if v.Source == "" {
		return nil
	}

	if err := mustExist(v.Source, c.WorkDir); err != nil {
		return err
	}

	binary := v.Binary
	if !filepath.IsAbs(binary) && c.WorkDir != "" {
		binary = filepath.Join(c.WorkDir, binary)
	}

	if err := os.MkdirAll(filepath.Dir(binary), 0o755); err != nil {
		return fmt.Errorf("creating binary directory: %w", err)
	}

	argv := c.Command(v)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = c.WorkDir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: compiling %s: %v: %s",
			sweep.ErrMissingPrerequisite, v.Name, err, stderr.String())
	}

	return nil
}
