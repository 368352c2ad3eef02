package datarecording

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sarchlab/cachesweep/hooking"
	"github.com/sarchlab/cachesweep/stats"
	"github.com/sarchlab/cachesweep/sweep"
	"github.com/sarchlab/cachesweep/table"
)

// Table names used by a sweep database.
const (
	ResultTable = "results"
	RunTable    = "runs"
)

// ResultEntry is one row of the results table. Metrics are kept as the text
// the simulator printed, with N/A for absent values.
type ResultEntry struct {
	Variant      string
	L1Size       string
	L2Size       string
	L1Assoc      int
	L2Assoc      int
	Status       string
	Time         string
	Cycles       string
	HostSeconds  string
	L1MissRate   string
	L2MissRate   string
	L1HitRate    string
	L2HitRate    string
	L1Hits       string
	L1Misses     string
	IPC          string
	TotalCacheKB string
}

// RunEntry is one simulator run.
type RunEntry struct {
	Name        string
	Variant     string
	Outcome     string
	StartedAt   string
	FinishedAt  string
	WallSeconds float64
	Error       string
}

// EntryFromRow converts a table row into a results entry.
func EntryFromRow(r table.Row) ResultEntry {
	m := func(name string) string {
		return r.Metric(name).Render(stats.NotAvailable)
	}

	return ResultEntry{
		Variant:      r.Config.Variant,
		L1Size:       r.Config.L1Size,
		L2Size:       r.Config.L2Size,
		L1Assoc:      r.Config.L1Assoc,
		L2Assoc:      r.Config.L2Assoc,
		Status:       string(r.Status),
		Time:         m(table.MetricTime),
		Cycles:       m(table.MetricCycles),
		HostSeconds:  m(table.MetricHostSeconds),
		L1MissRate:   m(table.MetricL1MissRate),
		L2MissRate:   m(table.MetricL2MissRate),
		L1HitRate:    m(table.MetricL1HitRate),
		L2HitRate:    m(table.MetricL2HitRate),
		L1Hits:       m(table.MetricL1Hits),
		L1Misses:     m(table.MetricL1Misses),
		IPC:          m(table.MetricIPC),
		TotalCacheKB: m(table.MetricTotalCacheKB),
	}
}

// Row converts the entry back into a table row.
func (e ResultEntry) Row() (table.Row, error) {
	fields := map[string]string{
		table.ColumnL1Size:       e.L1Size,
		table.ColumnL2Size:       e.L2Size,
		table.ColumnL1Assoc:      fmt.Sprint(e.L1Assoc),
		table.ColumnL2Assoc:      fmt.Sprint(e.L2Assoc),
		table.ColumnType:         e.Variant,
		table.ColumnStatus:       e.Status,
		table.MetricTime:         e.Time,
		table.MetricCycles:       e.Cycles,
		table.MetricHostSeconds:  e.HostSeconds,
		table.MetricL1MissRate:   e.L1MissRate,
		table.MetricL2MissRate:   e.L2MissRate,
		table.MetricL1HitRate:    e.L1HitRate,
		table.MetricL2HitRate:    e.L2HitRate,
		table.MetricL1Hits:       e.L1Hits,
		table.MetricL1Misses:     e.L1Misses,
		table.MetricIPC:          e.IPC,
		table.MetricTotalCacheKB: e.TotalCacheKB,
	}

	header := table.Header(true)
	record := make([]string, len(header))

	for i, name := range header {
		record[i] = fields[name]
	}

	return table.ParseRecord(header, record)
}

// RunEntryFromResult converts the result of one run.
func RunEntryFromResult(r sweep.Result) RunEntry {
	e := RunEntry{
		Name:        r.RunName(),
		Variant:     r.Job.Variant.Name,
		Outcome:     r.Outcome.String(),
		StartedAt:   formatTime(r.StartedAt),
		FinishedAt:  formatTime(r.FinishedAt),
		WallSeconds: r.WallTime().Seconds(),
	}

	if r.Err != nil {
		e.Error = r.Err.Error()
	}

	return e
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format(time.RFC3339Nano)
}

// SweepRecorder writes sweep results and runs into a DataRecorder. Tables are
// created on first use. It is safe to use from the runner's workers.
type SweepRecorder struct {
	lock     sync.Mutex
	recorder DataRecorder
	created  map[string]bool
}

// NewSweepRecorder wraps a recorder.
func NewSweepRecorder(recorder DataRecorder) *SweepRecorder {
	return &SweepRecorder{
		recorder: recorder,
		created:  make(map[string]bool),
	}
}

func (s *SweepRecorder) insert(tableName string, entry any) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.created[tableName] {
		s.recorder.CreateTable(tableName, entry)
		s.created[tableName] = true
	}

	s.recorder.InsertData(tableName, entry)
}

// RecordRow adds one row to the results table.
func (s *SweepRecorder) RecordRow(r table.Row) {
	s.insert(ResultTable, EntryFromRow(r))
}

// RecordTable adds every row of t in table order.
func (s *SweepRecorder) RecordTable(t *table.Table) {
	for _, r := range t.Rows() {
		s.RecordRow(r)
	}
}

// RecordResult adds one run to the runs table.
func (s *SweepRecorder) RecordResult(r sweep.Result) {
	s.insert(RunTable, RunEntryFromResult(r))
}

// Func records every finished run.
func (s *SweepRecorder) Func(ctx hooking.HookCtx) {
	if ctx.Pos != hooking.HookPosRunEnd {
		return
	}

	if r, ok := ctx.Item.(sweep.Result); ok {
		s.RecordResult(r)
	}
}

// Flush writes buffered entries.
func (s *SweepRecorder) Flush() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.recorder.Flush()
}

// Close flushes and closes the database.
func (s *SweepRecorder) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.recorder.Close()
}

// LoadRows reads the results table back as rows. Where and Args of params
// filter the entries. Rows come back in table order.
func LoadRows(
	ctx context.Context,
	reader DataReader,
	params QueryParams,
) ([]table.Row, error) {
	reader.MapTable(ResultTable, ResultEntry{})

	entries, _, err := reader.Query(ctx, ResultTable, params)
	if err != nil {
		return nil, err
	}

	rows := make([]table.Row, 0, len(entries))

	for _, e := range entries {
		r, err := e.(*ResultEntry).Row()
		if err != nil {
			return nil, err
		}

		rows = append(rows, r)
	}

	return table.FromRows(rows).Rows(), nil
}

// LoadRuns reads the runs table.
func LoadRuns(
	ctx context.Context,
	reader DataReader,
	params QueryParams,
) ([]RunEntry, int, error) {
	reader.MapTable(RunTable, RunEntry{})

	entries, total, err := reader.Query(ctx, RunTable, params)
	if err != nil {
		return nil, 0, err
	}

	runs := make([]RunEntry, len(entries))
	for i, e := range entries {
		runs[i] = *e.(*RunEntry)
	}

	return runs, total, nil
}

// LoadTable opens the database at path and reads its results table.
func LoadTable(ctx context.Context, path string) (*table.Table, error) {
	reader, err := OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sweep.ErrMissingPrerequisite, err)
	}
	defer reader.Close()

	rows, err := LoadRows(ctx, reader, QueryParams{})
	if err != nil {
		return nil, err
	}

	return table.FromRows(rows), nil
}
