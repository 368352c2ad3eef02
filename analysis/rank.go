package analysis

import (
	"math"
	"sort"

	"github.com/sarchlab/cachesweep/table"
)

// Ranking lists the best configurations of one variant.
type Ranking struct {
	Variant string
	Metric  string
	Rows    []table.Row
}

// TopN ranks the rows of every variant by metric and keeps the first n.
// Ascending ranks small values first, as for run time. Rows without the
// metric are left out. A negative n keeps nothing.
func TopN(rows []table.Row, metric string, n int, ascending bool) []Ranking {
	n = max(n, 0)

	variants, groups := GroupByVariant(rows)
	rankings := make([]Ranking, 0, len(variants))

	for _, v := range variants {
		candidates := withMetric(groups[v], metric)

		sort.SliceStable(candidates, func(i, j int) bool {
			a := candidates[i].Metric(metric).Num
			b := candidates[j].Metric(metric).Num

			if a == b {
				return candidates[i].Config.Less(candidates[j].Config)
			}

			if ascending {
				return a < b
			}

			return a > b
		})

		if len(candidates) > n {
			candidates = candidates[:n]
		}

		rankings = append(rankings, Ranking{
			Variant: v,
			Metric:  metric,
			Rows:    candidates,
		})
	}

	return rankings
}

// Summary describes the distribution of one metric over the configurations
// of one variant.
type Summary struct {
	Variant string
	Metric  string
	Count   int
	Mean    float64
	Min     float64
	Max     float64
}

// Summarize computes the mean, minimum and maximum of every metric for every
// variant. Rows without a metric do not count towards it.
func Summarize(rows []table.Row, metrics []string) []Summary {
	variants, groups := GroupByVariant(rows)

	var summaries []Summary
	for _, v := range variants {
		for _, m := range metrics {
			s := Summary{
				Variant: v,
				Metric:  m,
				Min:     math.Inf(1),
				Max:     math.Inf(-1),
			}

			sum := 0.0
			for _, r := range withMetric(groups[v], m) {
				x := r.Metric(m).Num
				sum += x
				s.Count++
				s.Min = math.Min(s.Min, x)
				s.Max = math.Max(s.Max, x)
			}

			if s.Count == 0 {
				s.Min, s.Max = math.NaN(), math.NaN()
				s.Mean = math.NaN()
			} else {
				s.Mean = sum / float64(s.Count)
			}

			summaries = append(summaries, s)
		}
	}

	return summaries
}

// GroupByVariant splits rows by variant. The variant names are sorted and
// the rows keep their order.
func GroupByVariant(rows []table.Row) ([]string, map[string][]table.Row) {
	groups := make(map[string][]table.Row)
	for _, r := range rows {
		groups[r.Config.Variant] = append(groups[r.Config.Variant], r)
	}

	return table.Variants(rows), groups
}

func withMetric(rows []table.Row, metric string) []table.Row {
	var kept []table.Row

	for _, r := range rows {
		if r.OK() && r.Metric(metric).Present {
			kept = append(kept, r)
		}
	}

	return kept
}
