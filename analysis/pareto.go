package analysis

import (
	"sort"

	"github.com/sarchlab/cachesweep/table"
)

// ParetoFront returns the rows that no other row beats on both metrics, with
// smaller being better on each. The front is ordered by costX. Rows without
// either metric are ignored.
func ParetoFront(rows []table.Row, costX, costY string) []table.Row {
	candidates := withMetric(withMetric(rows, costX), costY)

	var front []table.Row
	for i, r := range candidates {
		x, y := r.Metric(costX).Num, r.Metric(costY).Num
		dominated := false

		for j, o := range candidates {
			if i == j {
				continue
			}

			ox, oy := o.Metric(costX).Num, o.Metric(costY).Num
			if ox <= x && oy <= y && (ox < x || oy < y) {
				dominated = true
				break
			}
		}

		if !dominated {
			front = append(front, r)
		}
	}

	sort.SliceStable(front, func(i, j int) bool {
		xi, xj := front[i].Metric(costX).Num, front[j].Metric(costX).Num
		if xi != xj {
			return xi < xj
		}

		return front[i].Metric(costY).Num < front[j].Metric(costY).Num
	})

	return front
}

// ParetoByVariant computes the front of every variant separately.
func ParetoByVariant(rows []table.Row, costX, costY string) map[string][]table.Row {
	variants, groups := GroupByVariant(rows)
	fronts := make(map[string][]table.Row, len(variants))

	for _, v := range variants {
		fronts[v] = ParetoFront(groups[v], costX, costY)
	}

	return fronts
}
