// Package monitoring serves the live state of a sweep over HTTP: progress,
// per-run status, and the resources taken by the harness and its simulators.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/cachesweep/hooking"
	"github.com/sarchlab/cachesweep/monitoring/web"
	"github.com/sarchlab/cachesweep/sweep"
)

// Run states.
const (
	StateRunning = "Running"
	StateDone    = "Done"
)

// RunStatus is what the monitor knows about one configuration.
type RunStatus struct {
	Name        string    `json:"name"`
	Variant     string    `json:"variant"`
	State       string    `json:"state"`
	Outcome     string    `json:"outcome,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
	WallSeconds float64   `json:"wall_seconds"`
	Error       string    `json:"error,omitempty"`
}

// Monitor turns a running sweep into a server that can be watched from a
// browser. It learns about runs through the runner's hooks.
type Monitor struct {
	portNumber  int
	openBrowser bool
	workers     int
	timeTeller  hooking.TimeTeller
	tracer      *hooking.RunTimeTracer
	startTime   time.Time

	lock    sync.Mutex
	runs    map[string]*RunStatus
	order   []string
	summary sweep.Summary
	total   int

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	m := &Monitor{
		timeTeller: hooking.WallClock(),
		runs:       make(map[string]*RunStatus),
		workers:    1,
	}

	m.tracer = hooking.NewRunTimeTracer(m.timeTeller, executed)
	m.startTime = m.timeTeller.Now()

	return m
}

// executed leaves skipped runs out of the timing statistics.
func executed(item hooking.Named) bool {
	r, ok := item.(sweep.Result)
	return !ok || r.Outcome != sweep.OutcomeSkipped
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser opens the monitoring page once the server is up.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// WithWorkers tells the monitor how many runs proceed in parallel, for the
// remaining time estimate.
func (m *Monitor) WithWorkers(n int) *Monitor {
	if n < 1 {
		n = 1
	}

	m.workers = n

	return m
}

// WithTimeTeller replaces the wall clock.
func (m *Monitor) WithTimeTeller(t hooking.TimeTeller) *Monitor {
	m.timeTeller = t
	m.tracer = hooking.NewRunTimeTracer(t, executed)
	m.startTime = t.Now()

	return m
}

// Watch registers the jobs of a sweep and creates its progress bar. The
// returned bar is completed by the caller when the sweep ends.
func (m *Monitor) Watch(name string, jobs []sweep.Job) *ProgressBar {
	m.lock.Lock()
	m.total += len(jobs)
	m.lock.Unlock()

	return m.CreateProgressBar(name, uint64(len(jobs)))
}

// Func tracks runs as the runner starts and finishes them.
func (m *Monitor) Func(ctx hooking.HookCtx) {
	m.tracer.Func(ctx)

	switch ctx.Pos {
	case hooking.HookPosRunStart:
		if job, ok := ctx.Item.(sweep.Job); ok {
			m.startRun(job)
		}
	case hooking.HookPosRunEnd:
		if result, ok := ctx.Item.(sweep.Result); ok {
			m.endRun(result)
		}
	}
}

func (m *Monitor) startRun(job sweep.Job) {
	m.lock.Lock()
	defer m.lock.Unlock()

	name := job.RunName()
	if _, found := m.runs[name]; !found {
		m.order = append(m.order, name)
	}

	m.runs[name] = &RunStatus{
		Name:      name,
		Variant:   job.Variant.Name,
		State:     StateRunning,
		StartedAt: m.timeTeller.Now(),
	}

	for _, b := range m.bars() {
		b.IncrementInProgress(1)
	}
}

func (m *Monitor) endRun(r sweep.Result) {
	m.lock.Lock()
	defer m.lock.Unlock()

	name := r.RunName()

	status, found := m.runs[name]
	if !found {
		status = &RunStatus{Name: name, Variant: r.Job.Variant.Name}
		m.runs[name] = status
		m.order = append(m.order, name)
	}

	status.State = StateDone
	status.Outcome = r.Outcome.String()
	status.StartedAt = r.StartedAt
	status.FinishedAt = r.FinishedAt
	status.WallSeconds = r.WallTime().Seconds()

	if r.Err != nil {
		status.Error = r.Err.Error()
	}

	m.summary = addOutcome(m.summary, r.Outcome)

	for _, b := range m.bars() {
		if found {
			b.MoveInProgressToFinished(1)
		} else {
			b.IncrementFinished(1)
		}
	}
}

// Restore adds a run recorded by an earlier process, such as one read back
// from the journal.
func (m *Monitor) Restore(status RunStatus) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, found := m.runs[status.Name]; !found {
		m.order = append(m.order, status.Name)
		m.total++
	}

	m.runs[status.Name] = &status

	if status.State != StateDone {
		return
	}

	switch status.Outcome {
	case sweep.OutcomeCompleted.String():
		m.summary.Completed++
	case sweep.OutcomeSkipped.String():
		m.summary.Skipped++
	case sweep.OutcomeFailed.String():
		m.summary.Failed++
	case sweep.OutcomeErrored.String():
		m.summary.Errored++
	}
}

func addOutcome(s sweep.Summary, o sweep.Outcome) sweep.Summary {
	switch o {
	case sweep.OutcomeCompleted:
		s.Completed++
	case sweep.OutcomeSkipped:
		s.Skipped++
	case sweep.OutcomeFailed:
		s.Failed++
	case sweep.OutcomeErrored:
		s.Errored++
	}

	return s
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: m.timeTeller.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

func (m *Monitor) bars() []*ProgressBar {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	return append([]*ProgressBar(nil), m.progressBars...)
}

// Handler returns the router of the monitoring API and page.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	fs := web.GetAssets()
	fServer := http.FileServer(fs)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/summary", m.reportSummary)
	r.HandleFunc("/api/runs", m.listRuns)
	r.HandleFunc("/api/run/{name}", m.runDetails)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(fServer)

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring sweep with %s\n", url)

	handler := m.Handler()

	go func() {
		err := http.Serve(listener, handler)
		dieOnErr(err)
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			log.Printf("cannot open browser: %v", err)
		}
	}

	return url
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.bars())
}

type summaryRsp struct {
	Total            int     `json:"total"`
	Finished         int     `json:"finished"`
	InFlight         int     `json:"in_flight"`
	Completed        int     `json:"completed"`
	Skipped          int     `json:"skipped"`
	Failed           int     `json:"failed"`
	Errored          int     `json:"errored"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
	AverageSeconds   float64 `json:"average_seconds"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}

func (m *Monitor) summarize() summaryRsp {
	m.lock.Lock()
	s := m.summary
	total := m.total
	m.lock.Unlock()

	finished := s.Total()
	inFlight := m.tracer.InFlight()
	outstanding := total - finished

	return summaryRsp{
		Total:            total,
		Finished:         finished,
		InFlight:         inFlight,
		Completed:        s.Completed,
		Skipped:          s.Skipped,
		Failed:           s.Failed,
		Errored:          s.Errored,
		ElapsedSeconds:   m.timeTeller.Now().Sub(m.startTime).Seconds(),
		AverageSeconds:   m.tracer.AverageTime().Seconds(),
		RemainingSeconds: m.tracer.EstimateRemaining(outstanding, m.workers).Seconds(),
	}
}

func (m *Monitor) reportSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.summarize())
}

func (m *Monitor) listRuns(w http.ResponseWriter, r *http.Request) {
	params, err := runsParseParams(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	writeJSON(w, m.sortAndSelectRuns(params))
}

type runsParams struct {
	sort   string
	state  string
	limit  int
	offset int
}

func runsParseParams(r *http.Request) (runsParams, error) {
	query := r.URL.Query()
	params := runsParams{
		sort:  query.Get("sort"),
		state: query.Get("state"),
	}

	if params.sort == "" {
		params.sort = "start"
	}

	switch params.sort {
	case "start", "name", "wall":
	default:
		return params, fmt.Errorf(
			"invalid sort method: %s. Allowed values are `start`, `name` "+
				"and `wall`", params.sort)
	}

	switch params.state {
	case "", StateRunning, StateDone:
	default:
		return params, fmt.Errorf("invalid state: %s", params.state)
	}

	var err error

	if params.limit, err = intParam(query.Get("limit")); err != nil {
		return params, err
	}

	if params.offset, err = intParam(query.Get("offset")); err != nil {
		return params, err
	}

	return params, nil
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}

	if n < 0 {
		return 0, errors.New("negative numbers are not allowed")
	}

	return n, nil
}

func (m *Monitor) sortAndSelectRuns(params runsParams) []RunStatus {
	m.lock.Lock()

	runs := make([]RunStatus, 0, len(m.order))
	for _, name := range m.order {
		status := m.runs[name]
		if params.state == "" || status.State == params.state {
			runs = append(runs, *status)
		}
	}

	m.lock.Unlock()

	switch params.sort {
	case "name":
		sort.SliceStable(runs, func(i, j int) bool {
			return runs[i].Name < runs[j].Name
		})
	case "wall":
		sort.SliceStable(runs, func(i, j int) bool {
			return runs[i].WallSeconds > runs[j].WallSeconds
		})
	}

	if params.offset >= len(runs) {
		return []RunStatus{}
	}

	runs = runs[params.offset:]

	if params.limit > 0 && params.limit < len(runs) {
		runs = runs[:params.limit]
	}

	return runs
}

func (m *Monitor) runDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	m.lock.Lock()
	status, found := m.runs[name]
	var snapshot RunStatus
	if found {
		snapshot = *status
	}
	m.lock.Unlock()

	if !found {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Run not found"))
		dieOnErr(err)

		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snapshot)
	serializer.SetMaxDepth(1)

	if field := r.URL.Query().Get("field"); field != "" {
		err := serializer.SetEntryPoint(strings.Split(field, "."))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Error: %s", err)

			return
		}
	}

	err := serializer.Serialize(w)
	dieOnErr(err)
}

// ProcessResource is the usage of one process.
type ProcessResource struct {
	PID        int32   `json:"pid"`
	Name       string  `json:"name"`
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

// ResourceReport is the usage of the harness and its child processes.
type ResourceReport struct {
	CPUPercent float64           `json:"cpu_percent"`
	MemorySize uint64            `json:"memory_size"`
	Children   []ProcessResource `json:"children"`
}

func processResource(p *process.Process) (ProcessResource, error) {
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return ProcessResource{}, err
	}

	memory, err := p.MemoryInfo()
	if err != nil {
		return ProcessResource{}, err
	}

	name, err := p.Name()
	if err != nil {
		name = "unknown"
	}

	return ProcessResource{
		PID:        p.Pid,
		Name:       name,
		CPUPercent: cpuPercent,
		MemorySize: memory.RSS,
	}, nil
}

// Resources reports the usage of the harness and of its simulator processes.
func Resources() (ResourceReport, error) {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return ResourceReport{}, err
	}

	own, err := processResource(self)
	if err != nil {
		return ResourceReport{}, err
	}

	rsp := ResourceReport{
		CPUPercent: own.CPUPercent,
		MemorySize: own.MemorySize,
		Children:   []ProcessResource{},
	}

	// A child can exit between listing and sampling; it is left out.
	children, err := self.Children()
	if err != nil {
		return rsp, nil
	}

	for _, c := range children {
		res, err := processResource(c)
		if err != nil {
			continue
		}

		rsp.Children = append(rsp.Children, res)
	}

	return rsp, nil
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	rsp, err := Resources()
	dieOnErr(err)

	writeJSON(w, rsp)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
