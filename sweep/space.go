// Package sweep enumerates cache design points and runs the simulator over
// them with a fixed-size worker pool.
package sweep

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedName is returned when a run directory name does not describe a
// configuration.
var ErrMalformedName = errors.New("malformed configuration name")

// A Variant is one workload that every cache configuration is run against,
// such as one of the merge sort implementations.
type Variant struct {
	// Name labels the variant in directory names and tables. It may not
	// contain underscores.
	Name string `json:"name"`

	// Binary is the guest program handed to the simulator.
	Binary string `json:"binary"`

	// Source is the C file the binary is compiled from. Optional.
	Source string `json:"source,omitempty"`

	// Defines are preprocessor definitions such as "MATRIX_SIZE=64".
	Defines []string `json:"defines,omitempty"`
}

// Space is the set of values swept on every axis.
type Space struct {
	L1Sizes  []string  `json:"l1_sizes"`
	L2Sizes  []string  `json:"l2_sizes"`
	L1Assocs []int     `json:"l1_assocs"`
	L2Assocs []int     `json:"l2_assocs"`
	Variants []Variant `json:"variants,omitempty"`
}

// Config is one point of the space.
type Config struct {
	L1Size  string
	L2Size  string
	L1Assoc int
	L2Assoc int
	Variant string
}

// Count returns the number of configurations in the space.
func (s Space) Count() int {
	variants := len(s.Variants)
	if variants == 0 {
		variants = 1
	}

	return len(s.L1Sizes) * len(s.L2Sizes) *
		len(s.L1Assocs) * len(s.L2Assocs) * variants
}

// Enumerate returns the Cartesian product of all axes. The variant changes
// fastest and the L1 size slowest.
func (s Space) Enumerate() []Config {
	variants := s.variantNames()
	configs := make([]Config, 0, s.Count())

	for _, l1 := range s.L1Sizes {
		for _, l2 := range s.L2Sizes {
			for _, a1 := range s.L1Assocs {
				for _, a2 := range s.L2Assocs {
					for _, v := range variants {
						configs = append(configs, Config{
							L1Size:  l1,
							L2Size:  l2,
							L1Assoc: a1,
							L2Assoc: a2,
							Variant: v,
						})
					}
				}
			}
		}
	}

	return configs
}

func (s Space) variantNames() []string {
	if len(s.Variants) == 0 {
		return []string{""}
	}

	names := make([]string, len(s.Variants))
	for i, v := range s.Variants {
		names[i] = v.Name
	}

	return names
}

// FindVariant returns the variant with the given name. The unlabeled variant
// of a space without variants is found under the empty name.
func (s Space) FindVariant(name string) (Variant, bool) {
	for _, v := range s.Variants {
		if v.Name == name {
			return v, true
		}
	}

	return Variant{}, false
}

// Validate checks that the space can be enumerated and named.
func (s Space) Validate() error {
	if len(s.L1Sizes) == 0 || len(s.L2Sizes) == 0 ||
		len(s.L1Assocs) == 0 || len(s.L2Assocs) == 0 {
		return fmt.Errorf("every axis of the sweep needs at least one value")
	}

	for _, size := range append(append([]string{}, s.L1Sizes...), s.L2Sizes...) {
		if _, err := ParseSizeKB(size); err != nil {
			return err
		}

		if strings.Contains(size, "_") {
			return fmt.Errorf("cache size %q may not contain '_'", size)
		}
	}

	for _, a := range append(append([]int{}, s.L1Assocs...), s.L2Assocs...) {
		if a <= 0 {
			return fmt.Errorf("associativity %d must be positive", a)
		}
	}

	seen := make(map[string]bool)
	for _, v := range s.Variants {
		if v.Name == "" {
			return fmt.Errorf("variant without a name")
		}

		if strings.Contains(v.Name, "_") {
			return fmt.Errorf("variant name %q may not contain '_'", v.Name)
		}

		if seen[v.Name] {
			return fmt.Errorf("duplicated variant %q", v.Name)
		}

		seen[v.Name] = true
	}

	return nil
}

// Name returns the run directory name of the configuration, for example
// "Simple_L1_64kB_L2_512kB_A1_8_A2_16".
func (c Config) Name() string {
	name := fmt.Sprintf("L1_%s_L2_%s_A1_%d_A2_%d",
		c.L1Size, c.L2Size, c.L1Assoc, c.L2Assoc)

	if c.Variant == "" {
		return name
	}

	return c.Variant + "_" + name
}

// ParseName reverses Config.Name.
func ParseName(name string) (Config, error) {
	parts := strings.Split(name, "_")

	var c Config
	switch len(parts) {
	case 8:
	case 9:
		c.Variant = parts[0]
		parts = parts[1:]
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrMalformedName, name)
	}

	if parts[0] != "L1" || parts[2] != "L2" ||
		parts[4] != "A1" || parts[6] != "A2" {
		return Config{}, fmt.Errorf("%w: %q", ErrMalformedName, name)
	}

	c.L1Size = parts[1]
	c.L2Size = parts[3]

	var err error
	c.L1Assoc, err = strconv.Atoi(parts[5])
	if err != nil {
		return Config{}, fmt.Errorf("%w: %q", ErrMalformedName, name)
	}

	c.L2Assoc, err = strconv.Atoi(parts[7])
	if err != nil {
		return Config{}, fmt.Errorf("%w: %q", ErrMalformedName, name)
	}

	if _, err := ParseSizeKB(c.L1Size); err != nil {
		return Config{}, fmt.Errorf("%w: %q", ErrMalformedName, name)
	}

	if _, err := ParseSizeKB(c.L2Size); err != nil {
		return Config{}, fmt.Errorf("%w: %q", ErrMalformedName, name)
	}

	return c, nil
}

// Flags returns the command-line parameters that pass the configuration to
// the simulator configuration script.
func (c Config) Flags(binary string) []string {
	flags := []string{
		"--l1d_size=" + c.L1Size,
		"--l2_size=" + c.L2Size,
		"--l1_assoc=" + strconv.Itoa(c.L1Assoc),
		"--l2_assoc=" + strconv.Itoa(c.L2Assoc),
	}

	if binary != "" {
		flags = append(flags, "--binary="+binary)
	}

	return flags
}

// L1KB returns the L1 data cache size in kB.
func (c Config) L1KB() int {
	kb, _ := ParseSizeKB(c.L1Size)
	return kb
}

// L2KB returns the L2 cache size in kB.
func (c Config) L2KB() int {
	kb, _ := ParseSizeKB(c.L2Size)
	return kb
}

// TotalCacheKB returns the combined L1D and L2 capacity in kB.
func (c Config) TotalCacheKB() (int, error) {
	l1, err := ParseSizeKB(c.L1Size)
	if err != nil {
		return 0, err
	}

	l2, err := ParseSizeKB(c.L2Size)
	if err != nil {
		return 0, err
	}

	return l1 + l2, nil
}

// Less orders configurations by variant, then numerically by L1 size, L2
// size, L1 associativity and L2 associativity.
func (c Config) Less(o Config) bool {
	if c.Variant != o.Variant {
		return c.Variant < o.Variant
	}

	if c.L1KB() != o.L1KB() {
		return c.L1KB() < o.L1KB()
	}

	if c.L2KB() != o.L2KB() {
		return c.L2KB() < o.L2KB()
	}

	if c.L1Assoc != o.L1Assoc {
		return c.L1Assoc < o.L1Assoc
	}

	if c.L2Assoc != o.L2Assoc {
		return c.L2Assoc < o.L2Assoc
	}

	return c.Name() < o.Name()
}
