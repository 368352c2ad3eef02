// Package config holds the harness settings and the predefined sweeps.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/klauspost/cpuid/v2"

	"github.com/sarchlab/cachesweep/simulator"
	"github.com/sarchlab/cachesweep/sweep"
)

// EnvFile is read from the working directory when present.
const EnvFile = ".env"

// Environment keys.
const (
	EnvSimulator         = "CACHESWEEP_SIMULATOR"
	EnvConfigScript      = "CACHESWEEP_CONFIG_SCRIPT"
	EnvResultsDir        = "CACHESWEEP_RESULTS_DIR"
	EnvWorkDir           = "CACHESWEEP_WORK_DIR"
	EnvWorkers           = "CACHESWEEP_WORKERS"
	EnvForce             = "CACHESWEEP_FORCE"
	EnvCaptureOutput     = "CACHESWEEP_CAPTURE_OUTPUT"
	EnvTimeout           = "CACHESWEEP_TIMEOUT"
	EnvCompleteThreshold = "CACHESWEEP_COMPLETE_THRESHOLD"
	EnvCompiler          = "CACHESWEEP_CC"
)

// Settings are the knobs of the harness that do not describe the sweep
// itself.
type Settings struct {
	SimulatorBinary   string
	ConfigScript      string
	ResultsDir        string
	WorkDir           string
	Workers           int
	Force             bool
	CaptureOutput     bool
	Timeout           time.Duration
	CompleteThreshold int64
	Compiler          string
}

// DefaultSettings returns settings that expect gem5 on the PATH and the
// configuration script in configs/.
func DefaultSettings() Settings {
	return Settings{
		SimulatorBinary:   "gem5.opt",
		ConfigScript:      "configs/cache_config.py",
		ResultsDir:        "results",
		WorkDir:           ".",
		Workers:           sweep.DefaultWorkers(),
		CompleteThreshold: sweep.DefaultCompleteThreshold,
		Compiler:          simulator.DefaultCompiler,
	}
}

// Load starts from the defaults and applies the given env files, then the
// process environment. Missing env files are ignored. With no files, .env is
// tried.
func Load(envFiles ...string) (Settings, error) {
	if len(envFiles) == 0 {
		envFiles = []string{EnvFile}
	}

	s := DefaultSettings()

	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}

		env, err := godotenv.Read(f)
		if err != nil {
			return s, fmt.Errorf("reading %s: %w", f, err)
		}

		if s, err = s.Apply(env); err != nil {
			return s, fmt.Errorf("%s: %w", f, err)
		}
	}

	return s.Apply(processEnv())
}

func processEnv() map[string]string {
	env := make(map[string]string)

	for _, key := range []string{
		EnvSimulator, EnvConfigScript, EnvResultsDir, EnvWorkDir, EnvWorkers,
		EnvForce, EnvCaptureOutput, EnvTimeout, EnvCompleteThreshold,
		EnvCompiler,
	} {
		if v, found := os.LookupEnv(key); found {
			env[key] = v
		}
	}

	return env
}

// Apply overrides the settings with the CACHESWEEP_* keys of env.
func (s Settings) Apply(env map[string]string) (Settings, error) {
	strs := map[string]*string{
		EnvSimulator:    &s.SimulatorBinary,
		EnvConfigScript: &s.ConfigScript,
		EnvResultsDir:   &s.ResultsDir,
		EnvWorkDir:      &s.WorkDir,
		EnvCompiler:     &s.Compiler,
	}

	for key, field := range strs {
		if v, found := env[key]; found {
			*field = v
		}
	}

	bools := map[string]*bool{
		EnvForce:         &s.Force,
		EnvCaptureOutput: &s.CaptureOutput,
	}

	for key, field := range bools {
		v, found := env[key]
		if !found {
			continue
		}

		b, err := strconv.ParseBool(v)
		if err != nil {
			return s, fmt.Errorf("%s: %w", key, err)
		}

		*field = b
	}

	if v, found := env[EnvWorkers]; found {
		n, err := strconv.Atoi(v)
		if err != nil {
			return s, fmt.Errorf("%s: %w", EnvWorkers, err)
		}

		s.Workers = n
	}

	if v, found := env[EnvTimeout]; found {
		d, err := time.ParseDuration(v)
		if err != nil {
			return s, fmt.Errorf("%s: %w", EnvTimeout, err)
		}

		s.Timeout = d
	}

	if v, found := env[EnvCompleteThreshold]; found {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return s, fmt.Errorf("%s: %w", EnvCompleteThreshold, err)
		}

		s.CompleteThreshold = n
	}

	return s, nil
}

// Validate checks the settings before a sweep.
func (s Settings) Validate() error {
	if s.SimulatorBinary == "" {
		return fmt.Errorf("no simulator binary")
	}

	if s.ResultsDir == "" {
		return fmt.Errorf("no results directory")
	}

	if s.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", s.Workers)
	}

	if s.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	if s.CompleteThreshold < 0 {
		return fmt.Errorf("complete threshold cannot be negative")
	}

	return nil
}

// Host describes the machine the sweep runs on.
type Host struct {
	Brand         string
	LogicalCores  int
	PhysicalCores int
}

// HostInfo reads the processor description.
func HostInfo() Host {
	return Host{
		Brand:         cpuid.CPU.BrandName,
		LogicalCores:  cpuid.CPU.LogicalCores,
		PhysicalCores: cpuid.CPU.PhysicalCores,
	}
}

func (h Host) String() string {
	brand := h.Brand
	if brand == "" {
		brand = "unknown CPU"
	}

	return fmt.Sprintf("%s, %d cores, %d threads",
		brand, h.PhysicalCores, h.LogicalCores)
}
