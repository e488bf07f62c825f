// Package monitoring serves a running simulation over HTTP, so that it can be
// inspected and controlled from a browser.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"

	"github.com/sarchlab/flowsim/monitoring/web"
	"github.com/sarchlab/flowsim/sim/id"
	"github.com/sarchlab/flowsim/sim/kernel"
	"github.com/sarchlab/flowsim/sim/queueing"
	"github.com/sarchlab/flowsim/sim/realtime"
	"github.com/sarchlab/flowsim/sim/resource"
)

// Monitor can turn a simulation into a server and allows external monitoring
// and controlling of the simulation.
type Monitor struct {
	kernel     *kernel.Kernel
	pacer      *realtime.Pacer
	pools      []*resource.Manager
	buffers    []queueing.Buffer
	portNumber int
	logger     *logrus.Logger

	server   *http.Server
	listener net.Listener

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
	barIDs           id.IDGenerator

	profileDuration time.Duration
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		logger:          logrus.StandardLogger(),
		barIDs:          id.NewPrefixedIDGenerator("bar"),
		profileDuration: time.Second,
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.WithField("port", portNumber).
			Warn("monitor port not allowed, using a random port instead")

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the logger of the monitor.
func (m *Monitor) WithLogger(logger *logrus.Logger) *Monitor {
	m.logger = logger
	return m
}

// RegisterKernel registers the kernel that runs the simulation.
func (m *Monitor) RegisterKernel(k *kernel.Kernel) {
	m.kernel = k
}

// RegisterPacer registers the pacer that drives the kernel in real time.
func (m *Monitor) RegisterPacer(p *realtime.Pacer) {
	m.pacer = p
}

// RegisterResourceManager registers a resource pool to be reported.
func (m *Monitor) RegisterResourceManager(pool *resource.Manager) {
	m.pools = append(m.pools, pool)
}

// RegisterBuffer registers a buffer to be reported.
func (m *Monitor) RegisterBuffer(b queueing.Buffer) {
	m.buffers = append(m.buffers, b)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bar := &ProgressBar{
		ID:        m.barIDs.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

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

// Router returns the HTTP routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pause).Methods(http.MethodPost)
	r.HandleFunc("/api/interrupt", m.interrupt).Methods(http.MethodPost)
	r.HandleFunc("/api/continue", m.continueKernel).Methods(http.MethodPost)
	r.HandleFunc("/api/stop", m.stop).Methods(http.MethodPost)
	r.HandleFunc("/api/run/{target}", m.run).Methods(http.MethodPost)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/state", m.state)
	r.HandleFunc("/api/entities", m.listEntities)
	r.HandleFunc("/api/entity/{id}", m.entityDetails)
	r.HandleFunc("/api/field/{json}", m.fieldValue)
	r.HandleFunc("/api/buffers", m.listBuffers)
	r.HandleFunc("/api/pools", m.listPools)
	r.HandleFunc("/api/pacer", m.pacerStats)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	r.PathPrefix("/").
		MatcherFunc(func(req *http.Request, _ *mux.RouteMatch) bool {
			return !strings.HasPrefix(req.URL.Path, "/api/")
		}).
		Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns the port it
// listens on.
func (m *Monitor) StartServer() (int, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return 0, err
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	port := listener.Addr().(*net.TCPAddr).Port
	m.logger.WithField("url", m.URL()).Info("monitoring simulation")

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.WithError(err).Error("monitor server failed")
		}
	}()

	return port, nil
}

// URL returns the address of the web page, or an empty string if the server
// is not running.
func (m *Monitor) URL() string {
	if m.listener == nil {
		return ""
	}

	port := m.listener.Addr().(*net.TCPAddr).Port

	return fmt.Sprintf("http://localhost:%d", port)
}

// StopServer shuts the web server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	err := m.server.Shutdown(ctx)
	m.server = nil
	m.listener = nil

	return err
}

// quiescent tells if nothing is driving the kernel, so that its entities can
// be read from the HTTP goroutines.
func (m *Monitor) quiescent() bool {
	if m.pacer != nil && m.pacer.Running() {
		return false
	}

	return m.kernel.State() != kernel.Running
}

func (m *Monitor) requireQuiescent(w http.ResponseWriter) bool {
	if m.quiescent() {
		return true
	}

	http.Error(w, "pause the simulation first", http.StatusConflict)

	return false
}

func (m *Monitor) pause(w http.ResponseWriter, _ *http.Request) {
	if m.pacer != nil {
		m.pacer.Stop()
	}

	m.kernel.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) interrupt(w http.ResponseWriter, _ *http.Request) {
	m.kernel.Interrupt()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) stop(w http.ResponseWriter, _ *http.Request) {
	if m.pacer != nil {
		m.pacer.Stop()
	}

	m.kernel.Stop()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueKernel(w http.ResponseWriter, _ *http.Request) {
	if !m.kernel.State().Resumable() {
		http.Error(w, "simulation cannot be continued from state "+
			m.kernel.State().String(), http.StatusConflict)

		return
	}

	m.drive(m.kernel.Continue)
	w.WriteHeader(http.StatusAccepted)
}

func (m *Monitor) run(w http.ResponseWriter, r *http.Request) {
	target, err := strconv.ParseFloat(mux.Vars(r)["target"], 64)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !m.requireQuiescent(w) {
		return
	}

	m.drive(func() error { return m.kernel.Run(target) })
	w.WriteHeader(http.StatusAccepted)
}

func (m *Monitor) drive(fn func() error) {
	go func() {
		if err := fn(); err != nil {
			m.logger.WithError(err).Warn("run requested by monitor failed")
		}
	}()
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]float64{"now": m.kernel.Now()})
}

type stateRsp struct {
	Name            string   `json:"name"`
	State           string   `json:"state"`
	Now             float64  `json:"now"`
	ProcessedEvents uint64   `json:"processed_events"`
	NextEvent       *float64 `json:"next_event,omitempty"`
}

func (m *Monitor) state(w http.ResponseWriter, _ *http.Request) {
	rsp := stateRsp{
		Name:            m.kernel.Name(),
		State:           m.kernel.State().String(),
		Now:             m.kernel.Now(),
		ProcessedEvents: m.kernel.ProcessedEvents(),
	}

	if m.quiescent() {
		if next, ok := m.kernel.TimeOfNextEvent(); ok {
			rsp.NextEvent = &next
		}
	}

	writeJSON(w, rsp)
}

func (m *Monitor) listEntities(w http.ResponseWriter, _ *http.Request) {
	if !m.requireQuiescent(w) {
		return
	}

	ids := []string{}
	for _, e := range m.kernel.Entities() {
		ids = append(ids, e.ID())
	}

	writeJSON(w, ids)
}

func (m *Monitor) entityDetails(w http.ResponseWriter, r *http.Request) {
	if !m.requireQuiescent(w) {
		return
	}

	entity := m.findEntityOr404(w, mux.Vars(r)["id"])
	if entity == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(entity)
	serializer.SetMaxDepth(1)

	if err := serializer.Serialize(w); err != nil {
		m.logger.WithError(err).Warn("failed to serialize entity")
	}
}

type fieldReq struct {
	EntityID  string `json:"entity_id,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) fieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !m.requireQuiescent(w) {
		return
	}

	entity := m.findEntityOr404(w, req.EntityID)
	if entity == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(entity)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := serializer.Serialize(w); err != nil {
		m.logger.WithError(err).Warn("failed to serialize field")
	}
}

func (m *Monitor) findEntityOr404(
	w http.ResponseWriter,
	entityID string,
) kernel.Entity {
	entity, ok := m.kernel.Entity(entityID)
	if !ok {
		http.Error(w, "entity not found", http.StatusNotFound)
		return nil
	}

	return entity
}

type bufferRsp struct {
	Buffer string `json:"buffer"`
	Level  int    `json:"level"`
	Cap    int    `json:"cap"`
}

func (m *Monitor) listBuffers(w http.ResponseWriter, r *http.Request) {
	sortMethod, limit, offset, err := parseBufferParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !m.requireQuiescent(w) {
		return
	}

	rsp := []bufferRsp{}
	for _, b := range sortAndSelectBuffers(m.buffers, sortMethod, limit, offset) {
		rsp = append(rsp, bufferRsp{b.ID(), b.Size(), b.Capacity()})
	}

	writeJSON(w, rsp)
}

func parseBufferParams(
	r *http.Request,
) (sortMethod string, limit, offset int, err error) {
	query := r.URL.Query()

	sortMethod = query.Get("sort")
	if sortMethod == "" {
		sortMethod = "percent"
	}

	if sortMethod != "level" && sortMethod != "percent" {
		return "", 0, 0, fmt.Errorf(
			"invalid sort method %s, allowed values are level and percent",
			sortMethod)
	}

	if s := query.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil {
			return "", 0, 0, err
		}
	}

	if s := query.Get("offset"); s != "" {
		if offset, err = strconv.Atoi(s); err != nil {
			return "", 0, 0, err
		}
	}

	if limit < 0 || offset < 0 {
		return "", 0, 0, errors.New("limit and offset must not be negative")
	}

	return sortMethod, limit, offset, nil
}

// bufferPercent returns how full a buffer is. Unbounded buffers are never
// full.
func bufferPercent(b queueing.Buffer) float64 {
	if b.Capacity() <= 0 {
		return 0
	}

	return float64(b.Size()) / float64(b.Capacity())
}

// sortAndSelectBuffers orders the buffers by level or fill ratio, highest
// first, and returns one page of them. A zero limit returns every buffer after
// the offset.
func sortAndSelectBuffers(
	buffers []queueing.Buffer,
	sortMethod string,
	limit, offset int,
) []queueing.Buffer {
	sorted := make([]queueing.Buffer, len(buffers))
	copy(sorted, buffers)

	sort.SliceStable(sorted, func(i, j int) bool {
		sizeI, sizeJ := sorted[i].Size(), sorted[j].Size()
		percentI, percentJ := bufferPercent(sorted[i]), bufferPercent(sorted[j])

		if sortMethod == "level" {
			if sizeI != sizeJ {
				return sizeI > sizeJ
			}

			return percentI > percentJ
		}

		if percentI != percentJ {
			return percentI > percentJ
		}

		return sizeI > sizeJ
	})

	if offset >= len(sorted) {
		return nil
	}

	sorted = sorted[offset:]

	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}

	return sorted
}

type poolRsp struct {
	Name         string `json:"name"`
	Resources    int    `json:"resources"`
	Free         int    `json:"free"`
	Reservations int    `json:"reservations"`
}

func (m *Monitor) listPools(w http.ResponseWriter, _ *http.Request) {
	if !m.requireQuiescent(w) {
		return
	}

	rsp := []poolRsp{}

	for _, pool := range m.pools {
		p := poolRsp{
			Name:         pool.Name(),
			Resources:    len(pool.Resources()),
			Reservations: len(pool.Reservations()),
		}

		for _, r := range pool.Resources() {
			if r.IsFree() {
				p.Free++
			}
		}

		rsp = append(rsp, p)
	}

	writeJSON(w, rsp)
}

func (m *Monitor) pacerStats(w http.ResponseWriter, _ *http.Request) {
	if m.pacer == nil {
		http.Error(w, "no pacer registered", http.StatusNotFound)
		return
	}

	writeJSON(w, m.pacer.Stats())
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		logrus.WithError(err).Warn("failed to write response")
	}
}
