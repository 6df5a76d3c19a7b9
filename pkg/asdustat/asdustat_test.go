package asdustat_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/asdustat/pkg/asdustat"
)

// =============================================================================
// Test Utilities
// =============================================================================

// testLogger implements asdustat.Logger for capturing log output in tests.
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, fields ...asdustat.LogField) { l.log("DEBUG", msg) }
func (l *testLogger) Info(msg string, fields ...asdustat.LogField)  { l.log("INFO", msg) }
func (l *testLogger) Warn(msg string, fields ...asdustat.LogField)  { l.log("WARN", msg) }
func (l *testLogger) Error(msg string, fields ...asdustat.LogField) { l.log("ERROR", msg) }

func (l *testLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("[%s] %s", level, msg))
}

// memorySink records the category totals of every published report.
type memorySink struct {
	mu          sync.Mutex
	reports     int
	occurrences map[string]uint64
	closed      bool
}

func newMemorySink() *memorySink {
	return &memorySink{occurrences: make(map[string]uint64)}
}

func (s *memorySink) Name() string { return "memory" }

func (s *memorySink) Publish(_ context.Context, r *asdustat.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports++
	for _, c := range r.Categories {
		s.occurrences[c.Label] += c.Occurrences
	}
	return nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memorySink) Occurrences(label string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.occurrences[label]
}

func (s *memorySink) Reports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reports
}

func (s *memorySink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// trackingPlugin records initialization and shutdown order.
type trackingPlugin struct {
	name      string
	order     *[]string
	mu        *sync.Mutex
	initError error
	cfg       asdustat.PluginConfig
}

func (p *trackingPlugin) Name() string { return p.name }

func (p *trackingPlugin) Initialize(ctx context.Context, cfg asdustat.PluginConfig) error {
	if p.initError != nil {
		return p.initError
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	*p.order = append(*p.order, "init:"+p.name)
	p.cfg = cfg
	return nil
}

func (p *trackingPlugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	*p.order = append(*p.order, "shutdown:"+p.name)
	return nil
}

// eventTracker records every event it receives.
type eventTracker struct {
	asdustat.BaseEventHandler
	mu           sync.Mutex
	stateChanges []asdustat.StateChangeEvent
	connEvents   []asdustat.ConnectionEvent
	reports      int
}

func (e *eventTracker) OnStateChange(event asdustat.StateChangeEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stateChanges = append(e.stateChanges, event)
}

func (e *eventTracker) OnReport(event asdustat.ReportEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reports++
}

func (e *eventTracker) OnConnectionEvent(event asdustat.ConnectionChangeEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connEvents = append(e.connEvents, event.Event)
}

func (e *eventTracker) snapshot() ([]asdustat.StateChangeEvent, []asdustat.ConnectionEvent, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]asdustat.StateChangeEvent(nil), e.stateChanges...),
		append([]asdustat.ConnectionEvent(nil), e.connEvents...),
		e.reports
}

// refusingConn is a connection whose Connect always fails.
type refusingConn struct{}

func (refusingConn) Connect(ctx context.Context) error {
	return errors.New("connection refused")
}
func (refusingConn) StartDataTransfer(ctx context.Context) error               { return nil }
func (refusingConn) SendInterrogation(ctx context.Context, ca uint16) error    { return nil }
func (refusingConn) SendTestFrame(ctx context.Context, ca uint16) error        { return nil }
func (refusingConn) SendCommand(ctx context.Context, a *asdustat.ASDU) error   { return nil }
func (refusingConn) SetASDUHandler(h asdustat.ASDUHandler)                     {}
func (refusingConn) SetEventHandler(h asdustat.ConnectionEventHandler)         {}
func (refusingConn) Close() error                                              { return nil }

// flakyConn refuses its first Connect. Every later Connect succeeds and
// delivers one single-point ASDU.
type flakyConn struct {
	mu       sync.Mutex
	connects int
	handler  asdustat.ASDUHandler
}

func (c *flakyConn) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.connects++
	first := c.connects == 1
	h := c.handler
	c.mu.Unlock()
	if first {
		return errors.New("connection refused")
	}
	if h != nil {
		h.HandleASDU(0, &asdustat.ASDU{Type: 1, CommonAddress: 1})
	}
	return nil
}

func (c *flakyConn) SetASDUHandler(h asdustat.ASDUHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

func (c *flakyConn) StartDataTransfer(ctx context.Context) error             { return nil }
func (c *flakyConn) SendInterrogation(ctx context.Context, ca uint16) error  { return nil }
func (c *flakyConn) SendTestFrame(ctx context.Context, ca uint16) error      { return nil }
func (c *flakyConn) SendCommand(ctx context.Context, a *asdustat.ASDU) error { return nil }
func (c *flakyConn) SetEventHandler(h asdustat.ConnectionEventHandler)       {}
func (c *flakyConn) Close() error                                            { return nil }

// restartOnCrash restarts the pipeline from inside the Crashed notification.
type restartOnCrash struct {
	asdustat.BaseEventHandler
	a        *asdustat.Asdustat
	once     sync.Once
	mu       sync.Mutex
	startErr error
	restarts int
}

func (h *restartOnCrash) OnStateChange(event asdustat.StateChangeEvent) {
	if event.Current != asdustat.StateCrashed {
		return
	}
	h.once.Do(func() {
		err := h.a.Start(context.Background())
		h.mu.Lock()
		defer h.mu.Unlock()
		h.startErr = err
		h.restarts++
	})
}

func (h *restartOnCrash) result() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.restarts, h.startErr
}

func testConfig() asdustat.Config {
	return asdustat.Config{
		ReportInterval: 50 * time.Millisecond,
		Sim: asdustat.SimConfig{
			YXCount: 5,
			YCCount: 3,
		},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// =============================================================================
// Pipeline Tests
// =============================================================================

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = -1

	_, err := asdustat.New(cfg)
	if !errors.Is(err, asdustat.ErrInvalidConfig) {
		t.Fatalf("New() error = %v, want ErrInvalidConfig", err)
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	a, err := asdustat.New(asdustat.Config{})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	cfg := a.Config()
	if cfg.QueueCapacity != 1000 || cfg.Workers != 10 || cfg.ReportInterval != time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.DequeueWait != 100*time.Millisecond || cfg.DropLogThreshold != 100 {
		t.Errorf("unexpected queue defaults: %+v", cfg)
	}
	if a.Status() != asdustat.StateStopped {
		t.Errorf("Status = %v, want Stopped", a.Status())
	}
}

func TestAsdustat_ReportsSimulatedTraffic(t *testing.T) {
	sink := newMemorySink()
	a, err := asdustat.New(testConfig(), asdustat.WithSink(sink), asdustat.WithLogger(&testLogger{}))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if a.Status() != asdustat.StateRunning {
		t.Errorf("Status = %v, want Running", a.Status())
	}

	waitFor(t, "interrogation reply in reports", func() bool {
		return sink.Occurrences("M_SP_NA_1(1)") == 5 && sink.Occurrences("M_ME_NB_1(11)") == 3
	})
	waitFor(t, "test frame confirmation in reports", func() bool {
		return sink.Occurrences("C_TS_TA_1(107)") == 1
	})

	counters := a.Counters()
	// ActCon, 5 yx, 3 yc, ActTerm, test frame ActCon.
	if counters.Received < 11 {
		t.Errorf("Received = %d, want at least 11", counters.Received)
	}
	if counters.Dropped != 0 {
		t.Errorf("Dropped = %d, want 0", counters.Dropped)
	}
	if a.SessionID() == "" {
		t.Error("SessionID() is empty while running")
	}

	if err := a.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if a.Status() != asdustat.StateStopped {
		t.Errorf("Status = %v, want Stopped", a.Status())
	}
	if sink.Closed() {
		t.Error("Stop() closed the sink")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if !sink.Closed() {
		t.Error("Close() did not close the sink")
	}
}

func TestAsdustat_StartStopErrors(t *testing.T) {
	a, err := asdustat.New(testConfig())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if err := a.Stop(); !errors.Is(err, asdustat.ErrNotRunning) {
		t.Errorf("Stop() before Start = %v, want ErrNotRunning", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := a.Start(context.Background()); !errors.Is(err, asdustat.ErrAlreadyRunning) {
		t.Errorf("second Start() = %v, want ErrAlreadyRunning", err)
	}
	if err := a.Close(); err == nil {
		t.Error("Close() while running should fail")
	}
	if err := a.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if err := a.Stop(); !errors.Is(err, asdustat.ErrNotRunning) {
		t.Errorf("second Stop() = %v, want ErrNotRunning", err)
	}
}

func TestAsdustat_RestartAfterStop(t *testing.T) {
	sink := newMemorySink()
	a, err := asdustat.New(testConfig(), asdustat.WithSink(sink))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := a.Start(context.Background()); err != nil {
			t.Fatalf("Start() #%d failed: %v", i+1, err)
		}
		want := uint64(5 * (i + 1))
		waitFor(t, "interrogation reply", func() bool {
			return sink.Occurrences("M_SP_NA_1(1)") == want
		})
		if err := a.Stop(); err != nil {
			t.Fatalf("Stop() #%d failed: %v", i+1, err)
		}
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := a.Start(context.Background()); !errors.Is(err, asdustat.ErrNotRunning) {
		t.Errorf("Start() after Close = %v, want ErrNotRunning", err)
	}
}

func TestAsdustat_Dispatch(t *testing.T) {
	a, err := asdustat.New(testConfig())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	ctx := context.Background()

	cmd := asdustat.Command{Kind: asdustat.CommandSingle, IOA: 5000, Value: 1}
	if err := a.Dispatch(ctx, cmd); !errors.Is(err, asdustat.ErrNotConnected) {
		t.Errorf("Dispatch() before Start = %v, want ErrNotConnected", err)
	}

	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer func() { _ = a.Stop() }()
	waitFor(t, "connection", a.Connected)

	if err := a.Dispatch(ctx, cmd); err != nil {
		t.Errorf("Dispatch() failed: %v", err)
	}
	setpoint := asdustat.Command{Kind: asdustat.CommandSetpointScaled, IOA: 5000, Value: -1200, Select: true}
	if err := a.Dispatch(ctx, setpoint); err != nil {
		t.Errorf("Dispatch(setpoint) failed: %v", err)
	}
	bad := asdustat.Command{Kind: asdustat.CommandSingle, IOA: 5000, Value: 2}
	if err := a.Dispatch(ctx, bad); !errors.Is(err, asdustat.ErrInvalidCommand) {
		t.Errorf("Dispatch(bad) = %v, want ErrInvalidCommand", err)
	}
	if err := a.Interrogate(ctx); err != nil {
		t.Errorf("Interrogate() failed: %v", err)
	}
	if err := a.TestFrame(ctx); err != nil {
		t.Errorf("TestFrame() failed: %v", err)
	}
}

func TestAsdustat_RuntimeTunables(t *testing.T) {
	a, err := asdustat.New(testConfig())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if a.Detail() {
		t.Error("Detail() = true, want false by default")
	}
	a.SetDetail(true)
	if !a.Detail() {
		t.Error("SetDetail(true) not applied")
	}
	a.SetDropLogThreshold(7)
	if got := a.DropLogThreshold(); got != 7 {
		t.Errorf("DropLogThreshold() = %d, want 7", got)
	}
	if err := a.SetReportInterval(0); !errors.Is(err, asdustat.ErrInvalidConfig) {
		t.Errorf("SetReportInterval(0) = %v, want ErrInvalidConfig", err)
	}
	if err := a.SetReportInterval(time.Hour); err != nil {
		t.Fatalf("SetReportInterval() while stopped failed: %v", err)
	}
	if got := a.ReportInterval(); got != time.Hour {
		t.Errorf("ReportInterval() = %v, want 1h", got)
	}
}

func TestAsdustat_ReportIntervalChangesWhileRunning(t *testing.T) {
	sink := newMemorySink()
	cfg := testConfig()
	cfg.ReportInterval = time.Hour
	a, err := asdustat.New(cfg, asdustat.WithSink(sink))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if n := sink.Reports(); n != 0 {
		t.Fatalf("Reports() = %d before the interval changed, want 0", n)
	}

	if err := a.SetReportInterval(50 * time.Millisecond); err != nil {
		t.Fatalf("SetReportInterval() failed: %v", err)
	}
	waitFor(t, "reports at the new interval", func() bool { return sink.Reports() >= 2 })

	if err := a.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
}

func TestAsdustat_EventHandler(t *testing.T) {
	tracker := &eventTracker{}
	a, err := asdustat.New(testConfig(), asdustat.WithEventHandler(tracker))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	waitFor(t, "report events", func() bool {
		_, _, reports := tracker.snapshot()
		return reports >= 2
	})
	if err := a.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	states, conns, _ := tracker.snapshot()
	want := []asdustat.State{
		asdustat.StateStarting,
		asdustat.StateRunning,
		asdustat.StateStopping,
		asdustat.StateStopped,
	}
	if len(states) != len(want) {
		t.Fatalf("got %d state changes, want %d: %v", len(states), len(want), states)
	}
	for i, s := range want {
		if states[i].Current != s {
			t.Errorf("state change %d = %v, want %v", i, states[i].Current, s)
		}
	}
	if len(conns) < 3 || conns[0] != asdustat.ConnectionOpened || conns[1] != asdustat.StartDTConReceived {
		t.Errorf("unexpected connection events: %v", conns)
	}
	if conns[len(conns)-1] != asdustat.ConnectionClosed {
		t.Errorf("last connection event = %v, want closed", conns[len(conns)-1])
	}
}

func TestAsdustat_SessionFailureCrashes(t *testing.T) {
	a, err := asdustat.New(testConfig(), asdustat.WithConnection(refusingConn{}))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	waitFor(t, "crashed state", func() bool { return a.Status() == asdustat.StateCrashed })

	if err := a.Stop(); !errors.Is(err, asdustat.ErrNotRunning) {
		t.Errorf("Stop() after crash = %v, want ErrNotRunning", err)
	}
}

func TestAsdustat_RestartAfterCrash(t *testing.T) {
	sink := newMemorySink()
	handler := &restartOnCrash{}
	a, err := asdustat.New(testConfig(),
		asdustat.WithConnection(&flakyConn{}),
		asdustat.WithSink(sink),
		asdustat.WithEventHandler(handler),
	)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	handler.a = a

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	waitFor(t, "restart", func() bool {
		n, _ := handler.result()
		return n == 1
	})
	if _, err := handler.result(); err != nil {
		t.Fatalf("Start() after crash failed: %v", err)
	}
	waitFor(t, "running state", func() bool { return a.Status() == asdustat.StateRunning })

	before := sink.Reports()
	waitFor(t, "reports after restart", func() bool { return sink.Reports() >= before+3 })
	waitFor(t, "ASDU from the restarted session", func() bool {
		return sink.Occurrences("M_SP_NA_1(1)") == 1
	})
	if a.Status() != asdustat.StateRunning {
		t.Errorf("Status() = %v, want Running", a.Status())
	}

	if err := a.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
}

// =============================================================================
// Plugin Tests
// =============================================================================

func TestPlugin_OrderAndController(t *testing.T) {
	var mu sync.Mutex
	var order []string
	p1 := &trackingPlugin{name: "p1", order: &order, mu: &mu}
	p2 := &trackingPlugin{name: "p2", order: &order, mu: &mu}

	cfg := testConfig()
	cfg.ConfigPath = "/etc/asdustat/config.toml"
	a, err := asdustat.New(cfg, asdustat.WithPlugin(p1), asdustat.WithPlugin(p2))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	mu.Lock()
	pc := p1.cfg
	mu.Unlock()
	if pc.ConfigPath != cfg.ConfigPath {
		t.Errorf("ConfigPath = %q, want %q", pc.ConfigPath, cfg.ConfigPath)
	}
	pc.Controller.SetDetail(true)
	if !a.Detail() {
		t.Error("controller SetDetail did not reach the pipeline")
	}

	if err := a.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"init:p1", "init:p2", "shutdown:p2", "shutdown:p1"}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestPlugin_InitializationFailure_PreventsStart(t *testing.T) {
	var mu sync.Mutex
	var order []string
	p1 := &trackingPlugin{name: "p1", order: &order, mu: &mu}
	p2 := &trackingPlugin{name: "p2", order: &order, mu: &mu, initError: errors.New("intentional init failure")}
	p3 := &trackingPlugin{name: "p3", order: &order, mu: &mu}

	a, err := asdustat.New(testConfig(), asdustat.WithPlugin(p1), asdustat.WithPlugin(p2), asdustat.WithPlugin(p3))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if err := a.Start(context.Background()); err == nil {
		t.Fatal("Start() should have failed due to plugin init error")
	}
	if a.Status() != asdustat.StateCrashed {
		t.Errorf("Status = %v, want Crashed", a.Status())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 1 || order[0] != "init:p1" {
		t.Errorf("expected only p1 to initialize, got %v", order)
	}
}
