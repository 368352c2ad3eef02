package plotting

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/sarchlab/cachesweep/analysis"
	"github.com/sarchlab/cachesweep/table"
)

// File name of the Pareto chart.
const ParetoFileName = "pareto_frontier.png"

// Renderer writes charts into a directory.
type Renderer struct {
	Dir    string
	Width  vg.Length
	Height vg.Length

	// Baseline fixes the axes a chart does not vary.
	Baseline analysis.Baseline

	// LogSizes puts cache sizes on a logarithmic axis.
	LogSizes bool
}

// NewRenderer creates a renderer for 30 by 20 cm charts around the default
// baseline.
func NewRenderer(dir string) Renderer {
	return Renderer{
		Dir:      dir,
		Width:    30 * vg.Centimeter,
		Height:   20 * vg.Centimeter,
		Baseline: analysis.DefaultBaseline(),
		LogSizes: true,
	}
}

// Save writes p as a PNG file named name and returns its path.
func (r Renderer) Save(p *plot.Plot, name string) (string, error) {
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(r.Dir, name)
	if err := p.Save(r.Width, r.Height, path); err != nil {
		return "", fmt.Errorf("saving %s: %w", name, err)
	}

	return path, nil
}

type trendChart struct {
	file   string
	axis   analysis.Axis
	metric string
	labels Labels
	bars   bool
}

var trendCharts = []trendChart{
	{
		file: "plot_time_vs_l1_size.png", axis: analysis.AxisL1Size,
		metric: table.MetricTime,
		labels: Labels{Title: "Execution Time vs L1 Size", X: "L1D Size", Y: "Time (s)"},
	},
	{
		file: "plot_time_vs_l2_size.png", axis: analysis.AxisL2Size,
		metric: table.MetricTime,
		labels: Labels{Title: "Execution Time vs L2 Size", X: "L2 Size", Y: "Time (s)"},
	},
	{
		file: "plot_l1_hitrate_vs_l1_size.png", axis: analysis.AxisL1Size,
		metric: table.MetricL1HitRate,
		labels: Labels{Title: "L1D Hit Rate vs L1 Size", X: "L1D Size", Y: "L1D Hit Rate"},
	},
	{
		file: "plot_l1_hitrate_vs_l1_assoc.png", axis: analysis.AxisL1Assoc,
		metric: table.MetricL1HitRate,
		labels: Labels{Title: "L1D Hit Rate vs L1 Associativity", X: "L1 Associativity", Y: "L1D Hit Rate"},
	},
	{
		file: "plot_l2_hitrate_vs_l2_size.png", axis: analysis.AxisL2Size,
		metric: table.MetricL2HitRate,
		labels: Labels{Title: "L2 Hit Rate vs L2 Size", X: "L2 Size", Y: "L2 Hit Rate"},
	},
	{
		file: "plot_l2_hitrate_vs_l2_assoc.png", axis: analysis.AxisL2Assoc,
		metric: table.MetricL2HitRate,
		labels: Labels{Title: "L2 Hit Rate vs L2 Associativity", X: "L2 Associativity", Y: "L2 Hit Rate"},
	},
	{
		file: "plot_ipc_vs_l2_size.png", axis: analysis.AxisL2Size,
		metric: table.MetricIPC, bars: true,
		labels: Labels{Title: "IPC vs L2 Size", X: "L2 Size", Y: "IPC"},
	},
	{
		file: "plot_l2_missrate_vs_l2_size.png", axis: analysis.AxisL2Size,
		metric: table.MetricL2MissRate, bars: true,
		labels: Labels{Title: "L2 Miss Rate vs L2 Size", X: "L2 Size", Y: "L2 Miss Rate"},
	},
}

// ErrNoData marks charts skipped because the table has nothing to show.
var ErrNoData = errors.New("no data")

// RenderAll writes the standard chart set and returns the paths written.
// Charts without data are skipped.
func (r Renderer) RenderAll(rows []table.Row) ([]string, error) {
	var written []string

	for _, c := range trendCharts {
		path, err := r.renderTrend(rows, c)
		if errors.Is(err, ErrNoData) {
			log.Printf("skipping %s: no data", c.file)
			continue
		}

		if err != nil {
			return written, err
		}

		written = append(written, path)
	}

	heatmaps, err := r.RenderHeatmaps(rows)
	written = append(written, heatmaps...)
	if err != nil {
		return written, err
	}

	path, err := r.RenderPareto(rows)
	if errors.Is(err, ErrNoData) {
		log.Printf("skipping %s: no data", ParetoFileName)
		return written, nil
	}

	if err != nil {
		return written, err
	}

	return append(written, path), nil
}

// slice keeps the rows at the baseline on every axis but the charted one.
// Sweeps that do not contain the baseline are averaged instead.
func (r Renderer) slice(rows []table.Row, axis analysis.Axis) []table.Row {
	sliced := analysis.Slice(rows, r.Baseline, axis)
	if len(sliced) == 0 {
		return rows
	}

	return sliced
}

func (r Renderer) renderTrend(rows []table.Row, c trendChart) (string, error) {
	series := analysis.GroupMean(r.slice(rows, c.axis), c.axis, c.metric)
	if !hasPoints(series) {
		return "", ErrNoData
	}

	var (
		p   *plot.Plot
		err error
	)

	if c.bars {
		p, err = BarChart(series, c.labels)
	} else {
		logX := r.LogSizes &&
			(c.axis == analysis.AxisL1Size || c.axis == analysis.AxisL2Size)
		p, err = LineChart(series, c.labels, logX)
	}

	if err != nil {
		return "", err
	}

	return r.Save(p, c.file)
}

// HeatmapFileName names the heatmap of a variant.
func HeatmapFileName(variant string) string {
	return fmt.Sprintf("plot_heatmap_time_%s.png", seriesName(variant))
}

// RenderHeatmaps writes the mean run time over L1 and L2 sizes for every
// variant.
func (r Renderer) RenderHeatmaps(rows []table.Row) ([]string, error) {
	var written []string

	for _, v := range table.Variants(rows) {
		g := analysis.MeanGrid(rows, v, table.MetricTime)
		if len(g.L1KB) == 0 {
			continue
		}

		p, err := Heatmap(g, Labels{
			Title: fmt.Sprintf("Mean Execution Time (s), %s", seriesName(v)),
			X:     "L1D Size",
			Y:     "L2 Size",
		})
		if err != nil {
			return written, err
		}

		path, err := r.Save(p, HeatmapFileName(v))
		if err != nil {
			return written, err
		}

		written = append(written, path)
	}

	return written, nil
}

// RenderPareto writes the Pareto chart of total cache capacity against
// simulated ticks.
func (r Renderer) RenderPareto(rows []table.Row) (string, error) {
	if len(analysis.ParetoFront(rows, table.MetricTotalCacheKB, table.MetricCycles)) == 0 {
		return "", ErrNoData
	}

	p, err := ParetoChart(rows, table.MetricTotalCacheKB, table.MetricCycles, Labels{
		Title: "Pareto Front: Cache Capacity vs Simulated Ticks",
		X:     "Total Cache Size (kB)",
		Y:     "Simulated Ticks",
	})
	if err != nil {
		return "", err
	}

	return r.Save(p, ParetoFileName)
}
