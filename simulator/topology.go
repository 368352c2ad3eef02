package simulator

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"text/template"

	"github.com/sarchlab/cachesweep/sweep"
)

//go:embed cache_config.py.tmpl
var configScriptTemplate string

var configScript = template.Must(
	template.New("cache_config.py").Parse(configScriptTemplate))

// CacheParams describes one cache of the hierarchy.
type CacheParams struct {
	Size            string `json:"size"`
	Assoc           int    `json:"assoc"`
	TagLatency      int    `json:"tag_latency"`
	DataLatency     int    `json:"data_latency"`
	ResponseLatency int    `json:"response_latency"`
	MSHRs           int    `json:"mshrs"`
	TargetsPerMSHR  int    `json:"tgts_per_mshr"`
}

// Topology is the single-core system the simulator is asked to model: one CPU
// with split L1 caches behind a shared L2 and a DRAM controller. The L1D and
// L2 size and associativity are the defaults the sweep overrides per run.
type Topology struct {
	Clock   string      `json:"clock"`
	MemSize string      `json:"mem_size"`
	MemMode string      `json:"mem_mode"`
	CPU     string      `json:"cpu"`
	DRAM    string      `json:"dram"`
	L1I     CacheParams `json:"l1i"`
	L1D     CacheParams `json:"l1d"`
	L2      CacheParams `json:"l2"`
}

// DefaultTopology returns a 1 GHz RISC-V timing CPU with 16 kB 2-way L1
// caches, a 256 kB 8-way L2 and 512 MB of DDR3.
func DefaultTopology() Topology {
	l1 := CacheParams{
		Size:            "16kB",
		Assoc:           2,
		TagLatency:      2,
		DataLatency:     2,
		ResponseLatency: 2,
		MSHRs:           4,
		TargetsPerMSHR:  20,
	}

	return Topology{
		Clock:   "1GHz",
		MemSize: "512MB",
		MemMode: "timing",
		CPU:     "RiscvTimingSimpleCPU",
		DRAM:    "DDR3_1600_8x8",
		L1I:     l1,
		L1D:     l1,
		L2: CacheParams{
			Size:            "256kB",
			Assoc:           8,
			TagLatency:      20,
			DataLatency:     20,
			ResponseLatency: 20,
			MSHRs:           20,
			TargetsPerMSHR:  12,
		},
	}
}

// Validate checks that every cache is fully described.
func (t Topology) Validate() error {
	if !clockPattern.MatchString(t.Clock) {
		return fmt.Errorf("clock %q is not a frequency such as 1GHz", t.Clock)
	}

	if !identifierPattern.MatchString(t.CPU) {
		return fmt.Errorf("CPU model %q is not a simulator class name", t.CPU)
	}

	if !identifierPattern.MatchString(t.DRAM) {
		return fmt.Errorf("DRAM model %q is not a simulator class name", t.DRAM)
	}

	if err := validateSize(t.MemSize); err != nil {
		return fmt.Errorf("memory size: %w", err)
	}

	if t.MemMode != "timing" && t.MemMode != "atomic" {
		return fmt.Errorf("memory mode %q is neither timing nor atomic", t.MemMode)
	}

	caches := map[string]CacheParams{"l1i": t.L1I, "l1d": t.L1D, "l2": t.L2}
	for name, c := range caches {
		if err := c.validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	return nil
}

// Values end up in the generated script verbatim, so they must be plain
// tokens.
var (
	clockPattern      = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?[kMG]?Hz$`)
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

func validateSize(size string) error {
	if strings.TrimSpace(size) != size {
		return fmt.Errorf("size %q has surrounding whitespace", size)
	}

	_, err := sweep.ParseSizeKB(size)

	return err
}

func (c CacheParams) validate() error {
	if err := validateSize(c.Size); err != nil {
		return err
	}

	if c.Assoc <= 0 || c.MSHRs <= 0 || c.TargetsPerMSHR <= 0 {
		return fmt.Errorf("associativity, MSHRs and targets must be positive")
	}

	if c.TagLatency < 0 || c.DataLatency < 0 || c.ResponseLatency < 0 {
		return fmt.Errorf("latencies cannot be negative")
	}

	return nil
}

// WriteConfigScript renders the simulator configuration script for t.
func WriteConfigScript(w io.Writer, t Topology) error {
	if err := t.Validate(); err != nil {
		return err
	}

	return configScript.Execute(w, t)
}

// WriteConfigScriptFile renders the configuration script into path.
func WriteConfigScriptFile(path string, t Topology) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := WriteConfigScript(f, t); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
