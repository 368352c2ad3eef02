// Package table assembles the results of a sweep into a table with one row per
// configuration and persists it as CSV.
package table

import (
	"github.com/sarchlab/cachesweep/stats"
	"github.com/sarchlab/cachesweep/sweep"
)

// Status tells whether a row carries statistics.
type Status string

// Row statuses.
const (
	StatusOK     Status = "OK"
	StatusFailed Status = "Failed"
	StatusError  Status = "Error"
)

// Row is the outcome of one configuration.
type Row struct {
	Config  sweep.Config
	Status  Status
	Metrics stats.Stats

	// Label explains a status other than OK. It is not persisted.
	Label string
}

// Metric names, as they appear in the CSV header.
const (
	MetricTime         = "Time"
	MetricCycles       = "Cycles"
	MetricHostSeconds  = "HostSeconds"
	MetricL1MissRate   = "L1_MissRate"
	MetricL2MissRate   = "L2_MissRate"
	MetricL1HitRate    = "L1_HitRate"
	MetricL2HitRate    = "L2_HitRate"
	MetricL1Hits       = "L1_Hits"
	MetricL1Misses     = "L1_Misses"
	MetricIPC          = "IPC"
	MetricTotalCacheKB = "TotalCacheKB"
)

type metric struct {
	name  string
	key   string
	value func(r Row) stats.Value
}

func stored(name, key string) metric {
	return metric{
		name: name,
		key:  key,
		value: func(r Row) stats.Value {
			return r.Metrics.Get(key)
		},
	}
}

func derived(name string, value func(r Row) stats.Value) metric {
	return metric{name: name, value: value}
}

var metrics = []metric{
	stored(MetricTime, stats.KeySimSeconds),
	stored(MetricCycles, stats.KeySimTicks),
	stored(MetricHostSeconds, stats.KeyHostSeconds),
	stored(MetricL1MissRate, stats.KeyL1DMissRate),
	stored(MetricL2MissRate, stats.KeyL2MissRate),
	derived(MetricL1HitRate, func(r Row) stats.Value {
		return r.Metrics.HitRate(stats.KeyL1DMissRate)
	}),
	derived(MetricL2HitRate, func(r Row) stats.Value {
		return r.Metrics.HitRate(stats.KeyL2MissRate)
	}),
	stored(MetricL1Hits, stats.KeyL1DHits),
	stored(MetricL1Misses, stats.KeyL1DMisses),
	stored(MetricIPC, stats.KeyIPC),
	derived(MetricTotalCacheKB, func(r Row) stats.Value {
		kb, err := r.Config.TotalCacheKB()
		if err != nil {
			return stats.Absent()
		}

		return stats.FromFloat(float64(kb))
	}),
}

// MetricNames lists every metric a row can report, in CSV column order.
func MetricNames() []string {
	names := make([]string, len(metrics))
	for i, m := range metrics {
		names[i] = m.name
	}

	return names
}

func findMetric(name string) (metric, bool) {
	for _, m := range metrics {
		if m.name == name {
			return m, true
		}
	}

	return metric{}, false
}

// Metric returns the named metric of the row. Unknown names are absent.
func (r Row) Metric(name string) stats.Value {
	m, found := findMetric(name)
	if !found {
		return stats.Absent()
	}

	return m.value(r)
}

// OK tells whether the row carries statistics.
func (r Row) OK() bool {
	return r.Status == StatusOK
}
