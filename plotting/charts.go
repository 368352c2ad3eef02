// Package plotting renders the comparison charts of a sweep as PNG files.
package plotting

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/sarchlab/cachesweep/analysis"
	"github.com/sarchlab/cachesweep/table"
)

// Labels are the captions of a chart.
type Labels struct {
	Title string
	X     string
	Y     string
}

func newPlot(l Labels) *plot.Plot {
	p := plot.New()
	p.Title.Text = l.Title
	p.X.Label.Text = l.X
	p.Y.Label.Text = l.Y
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	return p
}

func seriesName(variant string) string {
	if variant == "" {
		return "all"
	}

	return variant
}

// positionTicks labels the axis positions the series were measured at.
func positionTicks(series []analysis.Series) plot.ConstantTicks {
	labels := make(map[float64]string)
	for _, s := range series {
		for _, pt := range s.Points {
			labels[pt.X] = pt.Label
		}
	}

	xs := make([]float64, 0, len(labels))
	for x := range labels {
		xs = append(xs, x)
	}
	sort.Float64s(xs)

	ticks := make(plot.ConstantTicks, len(xs))
	for i, x := range xs {
		ticks[i] = plot.Tick{Value: x, Label: labels[x]}
	}

	return ticks
}

func hasPoints(series []analysis.Series) bool {
	for _, s := range series {
		if len(s.Points) > 0 {
			return true
		}
	}

	return false
}

// LineChart draws one line per variant. With logX the positions are spread on
// a logarithmic scale, which suits capacities that double at every step.
func LineChart(series []analysis.Series, l Labels, logX bool) (*plot.Plot, error) {
	if !hasPoints(series) {
		return nil, fmt.Errorf("%s: no data", l.Title)
	}

	p := newPlot(l)

	for i, s := range series {
		if len(s.Points) == 0 {
			continue
		}

		xys := make(plotter.XYs, len(s.Points))
		for j, pt := range s.Points {
			xys[j] = plotter.XY{X: pt.X, Y: pt.Y}
		}

		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return nil, err
		}

		line.Color = plotutil.Color(i)
		line.Width = vg.Points(2)
		points.Color = plotutil.Color(i)
		points.Shape = plotutil.Shape(i)
		points.Radius = vg.Points(4)

		p.Add(line, points)
		p.Legend.Add(seriesName(s.Variant), line, points)
	}

	if logX {
		p.X.Scale = plot.LogScale{}
	}
	p.X.Tick.Marker = positionTicks(series)

	return p, nil
}

// BarChart draws a group of bars per axis position with one bar per variant.
func BarChart(series []analysis.Series, l Labels) (*plot.Plot, error) {
	if !hasPoints(series) {
		return nil, fmt.Errorf("%s: no data", l.Title)
	}

	p := newPlot(l)

	ticks := positionTicks(series)
	categories := make([]string, len(ticks))
	index := make(map[float64]int, len(ticks))
	for i, t := range ticks {
		categories[i] = t.Label
		index[t.Value] = i
	}

	width := vg.Points(18)
	n := float64(len(series))

	for i, s := range series {
		values := make(plotter.Values, len(categories))
		for _, pt := range s.Points {
			values[index[pt.X]] = pt.Y
		}

		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return nil, err
		}

		bars.Color = plotutil.Color(i)
		bars.LineStyle.Width = vg.Length(0)
		bars.Offset = vg.Length(float64(i)-(n-1)/2) * width

		p.Add(bars)
		p.Legend.Add(seriesName(s.Variant), bars)
	}

	p.NominalX(categories...)

	return p, nil
}

type gridXYZ struct {
	g analysis.Grid
}

func (g gridXYZ) Dims() (c, r int)   { return len(g.g.L1KB), len(g.g.L2KB) }
func (g gridXYZ) Z(c, r int) float64 { return g.g.Values[r][c] }
func (g gridXYZ) X(c int) float64    { return float64(c) }
func (g gridXYZ) Y(r int) float64    { return float64(r) }

func sizeTicks(kbs []int) plot.ConstantTicks {
	ticks := make(plot.ConstantTicks, len(kbs))
	for i, kb := range kbs {
		ticks[i] = plot.Tick{Value: float64(i), Label: fmt.Sprintf("%dkB", kb)}
	}

	return ticks
}

// Heatmap colors every L1 by L2 size cell of the grid and prints its value.
// Empty cells stay white.
func Heatmap(g analysis.Grid, l Labels) (*plot.Plot, error) {
	if len(g.L1KB) == 0 || len(g.L2KB) == 0 {
		return nil, fmt.Errorf("%s: no data", l.Title)
	}

	p := newPlot(l)

	hm := plotter.NewHeatMap(gridXYZ{g: g}, palette.Heat(16, 1))
	hm.NaN = color.White
	p.Add(hm)

	var (
		xys    plotter.XYs
		labels []string
	)

	for r := range g.L2KB {
		for c := range g.L1KB {
			v := g.Values[r][c]
			if math.IsNaN(v) {
				continue
			}

			xys = append(xys, plotter.XY{X: float64(c), Y: float64(r)})
			labels = append(labels, fmt.Sprintf("%.4g", v))
		}
	}

	if len(xys) > 0 {
		text, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
		if err != nil {
			return nil, err
		}

		for i := range text.TextStyle {
			text.TextStyle[i].XAlign = draw.XCenter
			text.TextStyle[i].YAlign = draw.YCenter
		}

		p.Add(text)
	}

	p.X.Tick.Marker = sizeTicks(g.L1KB)
	p.Y.Tick.Marker = sizeTicks(g.L2KB)
	p.X.Min, p.X.Max = -0.5, float64(len(g.L1KB))-0.5
	p.Y.Min, p.Y.Max = -0.5, float64(len(g.L2KB))-0.5

	return p, nil
}

// ParetoChart scatters every configuration by the two costs and connects the
// front of each variant.
func ParetoChart(
	rows []table.Row,
	costX, costY string,
	l Labels,
) (*plot.Plot, error) {
	variants, groups := analysis.GroupByVariant(rows)
	fronts := analysis.ParetoByVariant(rows, costX, costY)

	p := newPlot(l)
	drawn := false

	for i, v := range variants {
		var all plotter.XYs
		for _, r := range groups[v] {
			x, y := r.Metric(costX), r.Metric(costY)
			if r.OK() && x.Present && y.Present {
				all = append(all, plotter.XY{X: x.Num, Y: y.Num})
			}
		}

		if len(all) == 0 {
			continue
		}

		scatter, err := plotter.NewScatter(all)
		if err != nil {
			return nil, err
		}

		scatter.Color = fade(plotutil.Color(i))
		scatter.Shape = plotutil.Shape(i)

		front := make(plotter.XYs, len(fronts[v]))
		for j, r := range fronts[v] {
			front[j] = plotter.XY{X: r.Metric(costX).Num, Y: r.Metric(costY).Num}
		}

		line, points, err := plotter.NewLinePoints(front)
		if err != nil {
			return nil, err
		}

		line.Color = plotutil.Color(i)
		line.Width = vg.Points(2)
		points.Color = plotutil.Color(i)
		points.Shape = plotutil.Shape(i)

		p.Add(scatter, line, points)
		p.Legend.Add(seriesName(v)+" front", line, points)
		drawn = true
	}

	if !drawn {
		return nil, fmt.Errorf("%s: no data", l.Title)
	}

	return p, nil
}

func fade(c color.Color) color.Color {
	r, g, b, _ := c.RGBA()

	return color.NRGBA{
		R: uint8(r >> 8),
		G: uint8(g >> 8),
		B: uint8(b >> 8),
		A: 80,
	}
}
