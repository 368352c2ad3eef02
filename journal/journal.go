// Package journal keeps a durable record of every simulator run, so that the
// state of a sweep survives the harness and can be inspected while it runs.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/rs/xid"

	"github.com/sarchlab/cachesweep/hooking"
	"github.com/sarchlab/cachesweep/sweep"
)

// State is where a run is in its life cycle.
type State string

// Run states.
const (
	StateRunning State = "Running"
	StateDone    State = "Done"
)

// Entry is the journaled state of one configuration.
type Entry struct {
	Name        string    `json:"name"`
	Session     string    `json:"session"`
	State       State     `json:"state"`
	Outcome     string    `json:"outcome,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
	WallSeconds float64   `json:"wall_seconds"`
	Error       string    `json:"error,omitempty"`
}

// Interrupted tells whether the entry belongs to an earlier session that
// stopped before the run finished.
func (e Entry) Interrupted(session string) bool {
	return e.State == StateRunning && e.Session != session
}

const keyPrefix = "run/"

func key(name string) []byte {
	return []byte(keyPrefix + name)
}

// prefixUpperBound is the smallest key after every key with the prefix.
func prefixUpperBound() []byte {
	b := []byte(keyPrefix)
	b[len(b)-1]++

	return b
}

// Journal stores entries in a Pebble database. Each process that opens it
// starts a new session. It is safe for concurrent use.
type Journal struct {
	db         *pebble.DB
	session    string
	timeTeller hooking.TimeTeller
}

// Open opens or creates the journal in dir.
func Open(dir string) (*Journal, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}

	return &Journal{
		db:         db,
		session:    xid.New().String(),
		timeTeller: hooking.WallClock(),
	}, nil
}

// Session identifies the process that writes to the journal.
func (j *Journal) Session() string {
	return j.session
}

// Close flushes and closes the journal.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Put stores e under its name.
func (j *Journal) Put(e Entry) error {
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}

	if err := j.db.Set(key(e.Name), value, pebble.Sync); err != nil {
		return fmt.Errorf("journal: put %s: %w", e.Name, err)
	}

	return nil
}

// Get returns the entry of a configuration.
func (j *Journal) Get(name string) (Entry, bool, error) {
	value, closer, err := j.db.Get(key(name))
	if errors.Is(err, pebble.ErrNotFound) {
		return Entry{}, false, nil
	}

	if err != nil {
		return Entry{}, false, fmt.Errorf("journal: get %s: %w", name, err)
	}
	defer closer.Close()

	var e Entry
	if err := json.Unmarshal(value, &e); err != nil {
		return Entry{}, false, fmt.Errorf("journal: decode %s: %w", name, err)
	}

	return e, true, nil
}

// List returns every entry, ordered by name.
func (j *Journal) List() ([]Entry, error) {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: prefixUpperBound(),
	})
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer iter.Close()

	var entries []Entry
	for valid := iter.First(); valid; valid = iter.Next() {
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, fmt.Errorf("journal: decode %s: %w", iter.Key(), err)
		}

		entries = append(entries, e)
	}

	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}

	sort.Slice(entries, func(a, b int) bool {
		return entries[a].Name < entries[b].Name
	})

	return entries, nil
}

// Func records the start and the end of runs. It makes the journal a hook of
// the sweep runner.
func (j *Journal) Func(ctx hooking.HookCtx) {
	var err error

	switch ctx.Pos {
	case hooking.HookPosRunStart:
		job, ok := ctx.Item.(sweep.Job)
		if !ok {
			return
		}

		err = j.Put(Entry{
			Name:      job.RunName(),
			Session:   j.session,
			State:     StateRunning,
			StartedAt: j.timeTeller.Now(),
		})
	case hooking.HookPosRunEnd:
		result, ok := ctx.Item.(sweep.Result)
		if !ok {
			return
		}

		err = j.Put(j.entryOf(result))
	default:
		return
	}

	if err != nil {
		log.Printf("journal: %v", err)
	}
}

func (j *Journal) entryOf(r sweep.Result) Entry {
	e := Entry{
		Name:        r.RunName(),
		Session:     j.session,
		State:       StateDone,
		Outcome:     r.Outcome.String(),
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		WallSeconds: r.WallTime().Seconds(),
	}

	if r.Err != nil {
		e.Error = r.Err.Error()
	}

	return e
}

// Tally counts entries by what they tell about the run.
type Tally struct {
	Running     int
	Interrupted int
	Outcomes    map[string]int
}

// Tally counts the entries of the journal, taking the current session into
// account.
func (j *Journal) Tally() (Tally, error) {
	entries, err := j.List()
	if err != nil {
		return Tally{}, err
	}

	t := Tally{Outcomes: make(map[string]int)}
	for _, e := range entries {
		switch {
		case e.Interrupted(j.session):
			t.Interrupted++
		case e.State == StateRunning:
			t.Running++
		default:
			t.Outcomes[e.Outcome]++
		}
	}

	return t, nil
}
