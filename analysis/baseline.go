// Package analysis compares the configurations of a sweep: it slices the
// table around a baseline, ranks and summarizes configurations, and finds the
// ones that trade cache capacity against run time best.
package analysis

import (
	"fmt"
	"strconv"

	"github.com/sarchlab/cachesweep/sweep"
	"github.com/sarchlab/cachesweep/table"
)

// Axis is one swept cache parameter.
type Axis int

// Swept axes.
const (
	AxisL1Size Axis = iota
	AxisL2Size
	AxisL1Assoc
	AxisL2Assoc
)

func (a Axis) String() string {
	switch a {
	case AxisL1Size:
		return "L1 Size"
	case AxisL2Size:
		return "L2 Size"
	case AxisL1Assoc:
		return "L1 Associativity"
	case AxisL2Assoc:
		return "L2 Associativity"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Value returns the numeric position of c on the axis: kB for sizes, ways for
// associativities.
func (a Axis) Value(c sweep.Config) float64 {
	switch a {
	case AxisL1Size:
		return float64(c.L1KB())
	case AxisL2Size:
		return float64(c.L2KB())
	case AxisL1Assoc:
		return float64(c.L1Assoc)
	case AxisL2Assoc:
		return float64(c.L2Assoc)
	default:
		panic("unknown axis")
	}
}

// Label renders the position of c on the axis the way it is swept.
func (a Axis) Label(c sweep.Config) string {
	switch a {
	case AxisL1Size:
		return sweep.FormatSizeKB(c.L1KB())
	case AxisL2Size:
		return sweep.FormatSizeKB(c.L2KB())
	default:
		return strconv.Itoa(int(a.Value(c)))
	}
}

// Baseline is the configuration the others are compared with.
type Baseline struct {
	L1Size  string
	L1Assoc int
	L2Size  string
	L2Assoc int
}

// DefaultBaseline is a 64 kB 8-way L1 in front of a 512 kB 16-way L2.
func DefaultBaseline() Baseline {
	return Baseline{
		L1Size:  "64kB",
		L1Assoc: 8,
		L2Size:  "512kB",
		L2Assoc: 16,
	}
}

// Config returns the baseline as an unlabeled configuration.
func (b Baseline) Config() sweep.Config {
	return sweep.Config{
		L1Size:  b.L1Size,
		L2Size:  b.L2Size,
		L1Assoc: b.L1Assoc,
		L2Assoc: b.L2Assoc,
	}
}

// Validate checks that the baseline sizes parse.
func (b Baseline) Validate() error {
	if _, err := b.Config().TotalCacheKB(); err != nil {
		return fmt.Errorf("baseline: %w", err)
	}

	return nil
}

// Matches tells whether c equals the baseline on every axis. Sizes compare by
// capacity, so 1MB matches 1024kB.
func (b Baseline) Matches(c sweep.Config) bool {
	return b.matchesExcept(c, -1)
}

func (b Baseline) matchesExcept(c sweep.Config, free Axis) bool {
	base := b.Config()

	for _, a := range []Axis{AxisL1Size, AxisL2Size, AxisL1Assoc, AxisL2Assoc} {
		if a == free {
			continue
		}

		if a.Value(c) != a.Value(base) {
			return false
		}
	}

	return true
}

// Filter returns the rows of the baseline configuration, one per variant.
func Filter(rows []table.Row, b Baseline) []table.Row {
	var matched []table.Row

	for _, r := range rows {
		if b.Matches(r.Config) {
			matched = append(matched, r)
		}
	}

	return matched
}

// Slice returns the rows that equal the baseline on every axis except free.
func Slice(rows []table.Row, b Baseline, free Axis) []table.Row {
	var matched []table.Row

	for _, r := range rows {
		if b.matchesExcept(r.Config, free) {
			matched = append(matched, r)
		}
	}

	return matched
}
