package datarecording

import (
	"context"
	"os"
	"strings"
	"time"
)

// ExecTable holds one property per row about the harness invocation.
const ExecTable = "exec_info"

const execTimeLayout = "2006-01-02 15:04:05.000000000"

// ExecInfo is one property of the harness invocation.
type ExecInfo struct {
	Property string
	Value    string
}

// ExecRecorder records when and how the harness was invoked.
type ExecRecorder struct {
	tablename string
	recorder  DataRecorder
	entries   []ExecInfo
	now       func() time.Time
}

// NewExecRecorder creates the exec_info table in recorder.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	e := &ExecRecorder{
		tablename: ExecTable,
		recorder:  recorder,
		now:       time.Now,
	}

	e.recorder.CreateTable(e.tablename, ExecInfo{})

	return e
}

// Start notes the start time, the command line and the working directory.
func (e *ExecRecorder) Start() {
	e.Set("Start Time", e.now().Format(execTimeLayout))
	e.Set("Command", strings.Join(os.Args, " "))

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "unknown"
	}

	e.Set("Working Directory", cwd)
}

// Set notes an extra property, such as the sweep name or the session.
func (e *ExecRecorder) Set(property, value string) {
	e.entries = append(e.entries, ExecInfo{property, value})
}

// End writes the noted properties along with the end time.
func (e *ExecRecorder) End() {
	for _, entry := range e.entries {
		e.recorder.InsertData(e.tablename, entry)
	}

	endEntry := ExecInfo{"End Time", e.now().Format(execTimeLayout)}
	e.recorder.InsertData(e.tablename, endEntry)

	e.entries = nil

	e.recorder.Flush()
}

// LoadExecInfo reads the exec_info table in insertion order.
func LoadExecInfo(ctx context.Context, reader DataReader) ([]ExecInfo, error) {
	reader.MapTable(ExecTable, ExecInfo{})

	entries, _, err := reader.Query(ctx, ExecTable, QueryParams{})
	if err != nil {
		return nil, err
	}

	infos := make([]ExecInfo, len(entries))
	for i, entry := range entries {
		infos[i] = *entry.(*ExecInfo)
	}

	return infos, nil
}
