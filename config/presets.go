package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/sarchlab/cachesweep/sweep"
)

// Preset names.
const (
	PresetMergeSort = "mergesort"
	PresetMatMul    = "matmul"
	PresetL1        = "l1"
)

// MatMulSizes are the matrix sizes of the matmul preset.
var MatMulSizes = []int{64, 128, 256}

// Sweep is a named space together with the workload used when the space has
// no variants.
type Sweep struct {
	Name     string        `json:"name"`
	Space    sweep.Space   `json:"space"`
	Workload sweep.Variant `json:"workload"`
}

var presets = map[string]func() Sweep{
	PresetMergeSort: MergeSort,
	PresetMatMul:    func() Sweep { return MatMul(MatMulSizes...) },
	PresetL1:        L1,
}

// Presets lists the preset names.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Preset returns the named preset.
func Preset(name string) (Sweep, error) {
	p, found := presets[name]
	if !found {
		return Sweep{}, fmt.Errorf("unknown preset %q, want one of %v",
			name, Presets())
	}

	return p(), nil
}

// MergeSort compares the simple and the chunked merge sort over 81 cache
// configurations each.
func MergeSort() Sweep {
	return Sweep{
		Name: PresetMergeSort,
		Space: sweep.Space{
			L1Sizes:  []string{"32kB", "64kB", "128kB"},
			L2Sizes:  []string{"256kB", "512kB", "1024kB"},
			L1Assocs: []int{4, 8, 16},
			L2Assocs: []int{4, 8, 16},
			Variants: []sweep.Variant{
				{
					Name:   "Simple",
					Binary: "mergesort/mergesort_s",
					Source: "mergesort/mergesort_simple.c",
				},
				{
					Name:   "Chunked",
					Binary: "mergesort/mergesort_c",
					Source: "mergesort/mergesort_chunked.c",
				},
			},
		},
	}
}

// MatMul sweeps the matrix multiplication benchmark, one variant per matrix
// size.
func MatMul(sizes ...int) Sweep {
	variants := make([]sweep.Variant, len(sizes))
	for i, n := range sizes {
		variants[i] = sweep.Variant{
			Name:    fmt.Sprintf("MM%d", n),
			Binary:  fmt.Sprintf("benchmarks/matrix_multiply_%dx%d", n, n),
			Source:  "benchmarks/matrix_multiply.c",
			Defines: []string{fmt.Sprintf("MATRIX_SIZE=%d", n)},
		}
	}

	return Sweep{
		Name: PresetMatMul,
		Space: sweep.Space{
			L1Sizes:  []string{"16kB", "32kB", "64kB"},
			L2Sizes:  []string{"128kB", "256kB", "512kB"},
			L1Assocs: []int{2, 4, 8},
			L2Assocs: []int{4, 8, 16},
			Variants: variants,
		},
	}
}

// L1 varies only the L1 data cache size. The other axes stay at the
// simulator's defaults.
func L1() Sweep {
	return Sweep{
		Name: PresetL1,
		Space: sweep.Space{
			L1Sizes:  []string{"16kB", "32kB", "64kB", "128kB", "256kB"},
			L2Sizes:  []string{"256kB"},
			L1Assocs: []int{2},
			L2Assocs: []int{8},
		},
		Workload: sweep.Variant{
			Name:   "matmul",
			Binary: "benchmarks/matrix_multiply",
			Source: "benchmarks/matrix_multiply.c",
		},
	}
}

// Workloads returns the binaries the sweep runs.
func (s Sweep) Workloads() []sweep.Variant {
	if len(s.Space.Variants) > 0 {
		return s.Space.Variants
	}

	return []sweep.Variant{s.Workload}
}

// Jobs binds the configurations to run directories under root. Spaces
// without variants run the sweep's workload.
func (s Sweep) Jobs(root string) []sweep.Job {
	jobs := sweep.MakeJobs(s.Space, root)

	if len(s.Space.Variants) == 0 {
		for i := range jobs {
			jobs[i].Variant = s.Workload
		}
	}

	return jobs
}

// Validate checks the space and the workloads.
func (s Sweep) Validate() error {
	if err := s.Space.Validate(); err != nil {
		return err
	}

	for _, w := range s.Workloads() {
		if w.Binary == "" {
			return fmt.Errorf("workload %q has no binary", w.Name)
		}
	}

	return nil
}

// LoadSweep reads a sweep from a JSON file.
func LoadSweep(path string) (Sweep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Sweep{}, fmt.Errorf("%w: %v", sweep.ErrMissingPrerequisite, err)
	}

	var s Sweep
	if err := json.Unmarshal(data, &s); err != nil {
		return Sweep{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	if s.Name == "" {
		s.Name = "custom"
	}

	if err := s.Validate(); err != nil {
		return Sweep{}, fmt.Errorf("%s: %w", path, err)
	}

	return s, nil
}

// SaveSweep writes s as indented JSON.
func SaveSweep(path string, s Sweep) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, append(data, '\n'), 0o644)
}
