package table

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/sarchlab/cachesweep/stats"
	"github.com/sarchlab/cachesweep/sweep"
)

// Extractor builds tables out of a tree of run directories.
type Extractor struct {
	Parser stats.Parser

	// CompleteThreshold is the size in bytes a statistics file must exceed
	// for its run to count as finished.
	CompleteThreshold int64

	// SkipMissing omits configurations without statistics instead of
	// reporting them as failed.
	SkipMissing bool

	// Quiet silences warnings about directories that are not runs.
	Quiet bool
}

// NewExtractor creates an extractor for the default fields.
func NewExtractor() Extractor {
	return Extractor{
		Parser:            stats.NewParser(),
		CompleteThreshold: sweep.DefaultCompleteThreshold,
	}
}

// Extract reads every run directory under dir with the default settings.
func Extract(dir string) (*Table, error) {
	return NewExtractor().Extract(dir)
}

// Extract reads every run directory under dir. Directories whose names do not
// describe a configuration are skipped. The result depends only on the
// content of dir.
func (e Extractor) Extract(dir string) (*Table, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: results directory %s: %v",
			sweep.ErrMissingPrerequisite, dir, err)
	}

	t := New()

	for _, entry := range entries {
		// Hidden directories hold bookkeeping such as the run journal.
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		config, err := sweep.ParseName(entry.Name())
		if err != nil {
			if !e.Quiet {
				log.Printf("skipping %s: %v", entry.Name(), err)
			}
			continue
		}

		row := e.rowFromDir(config, filepath.Join(dir, entry.Name()))
		if row.Status == StatusFailed && e.SkipMissing {
			continue
		}

		t.Put(row)
	}

	return t, nil
}

// FromResults builds the table of a sweep that just ran. Jobs that errored
// get an error row; the others are read back from their directories the same
// way Extract reads them.
func (e Extractor) FromResults(results []sweep.Result) *Table {
	t := New()

	for _, r := range results {
		if r.Outcome == sweep.OutcomeErrored {
			label := ""
			if r.Err != nil {
				label = r.Err.Error()
			}

			t.Put(Row{
				Config:  r.Job.Config,
				Status:  StatusError,
				Metrics: stats.Stats{},
				Label:   label,
			})

			continue
		}

		row := e.rowFromDir(r.Job.Config, r.Job.Dir)
		if row.Status == StatusFailed && e.SkipMissing {
			continue
		}

		t.Put(row)
	}

	return t
}

func (e Extractor) rowFromDir(config sweep.Config, dir string) Row {
	if !sweep.StatsComplete(dir, e.CompleteThreshold) {
		return Row{
			Config:  config,
			Status:  StatusFailed,
			Metrics: stats.Stats{},
			Label:   "no complete statistics",
		}
	}

	s, err := e.Parser.ParseFile(filepath.Join(dir, sweep.StatsFileName))
	if err != nil {
		return Row{
			Config:  config,
			Status:  StatusError,
			Metrics: stats.Stats{},
			Label:   err.Error(),
		}
	}

	return Row{Config: config, Status: StatusOK, Metrics: s}
}
