package analysis

import (
	"math"
	"sort"

	"github.com/sarchlab/cachesweep/table"
)

// Point is the mean of a metric at one position of an axis.
type Point struct {
	X     float64
	Label string
	Y     float64
	Count int
}

// Series is the trend of one variant along an axis.
type Series struct {
	Variant string
	Points  []Point
}

// GroupMean averages metric over the rows that share a position on axis,
// separately for every variant. Points are ordered along the axis.
func GroupMean(rows []table.Row, axis Axis, metric string) []Series {
	variants, groups := GroupByVariant(rows)
	series := make([]Series, 0, len(variants))

	for _, v := range variants {
		byX := make(map[float64]*Point)

		for _, r := range withMetric(groups[v], metric) {
			x := axis.Value(r.Config)

			p, found := byX[x]
			if !found {
				p = &Point{X: x, Label: axis.Label(r.Config)}
				byX[x] = p
			}

			p.Y += r.Metric(metric).Num
			p.Count++
		}

		s := Series{Variant: v}
		for _, p := range byX {
			p.Y /= float64(p.Count)
			s.Points = append(s.Points, *p)
		}

		sort.Slice(s.Points, func(i, j int) bool {
			return s.Points[i].X < s.Points[j].X
		})

		series = append(series, s)
	}

	return series
}

// Grid holds the mean of a metric for every combination of L1 and L2 size.
// Cells without data are NaN.
type Grid struct {
	L1KB   []int
	L2KB   []int
	Values [][]float64 // indexed by L2 then L1
}

// MeanGrid builds the L1 by L2 grid of metric for one variant.
func MeanGrid(rows []table.Row, variant, metric string) Grid {
	sums := make(map[[2]int]float64)
	counts := make(map[[2]int]int)
	l1s := make(map[int]bool)
	l2s := make(map[int]bool)

	for _, r := range withMetric(rows, metric) {
		if r.Config.Variant != variant {
			continue
		}

		key := [2]int{r.Config.L1KB(), r.Config.L2KB()}
		sums[key] += r.Metric(metric).Num
		counts[key]++
		l1s[key[0]] = true
		l2s[key[1]] = true
	}

	g := Grid{L1KB: sortedKeys(l1s), L2KB: sortedKeys(l2s)}
	g.Values = make([][]float64, len(g.L2KB))

	for j, l2 := range g.L2KB {
		g.Values[j] = make([]float64, len(g.L1KB))

		for i, l1 := range g.L1KB {
			key := [2]int{l1, l2}
			if counts[key] == 0 {
				g.Values[j][i] = math.NaN()
				continue
			}

			g.Values[j][i] = sums[key] / float64(counts[key])
		}
	}

	return g
}

func sortedKeys(set map[int]bool) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}

	sort.Ints(keys)

	return keys
}
