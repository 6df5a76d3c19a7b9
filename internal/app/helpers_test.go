package app

import (
	"context"
	"errors"
	"sync"

	"github.com/bft-labs/asdustat/internal/domain"
	"github.com/bft-labs/asdustat/internal/ports"
	"github.com/bft-labs/asdustat/internal/report"
)

// mockLogger implements ports.Logger for testing.
type mockLogger struct{}

func (mockLogger) Debug(msg string, fields ...ports.Field) {}
func (mockLogger) Info(msg string, fields ...ports.Field)  {}
func (mockLogger) Warn(msg string, fields ...ports.Field)  {}
func (mockLogger) Error(msg string, fields ...ports.Field) {}

// fakeConn records the calls the pipeline makes on the protocol layer.
type fakeConn struct {
	mu           sync.Mutex
	calls        []string
	sent         []domain.ASDU
	connectErr   error
	sendErr      error
	connects     int
	asduHandler  ports.ASDUHandler
	eventHandler ports.ConnectionEventHandler
}

func (c *fakeConn) record(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *fakeConn) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *fakeConn) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

func (c *fakeConn) Sent() []domain.ASDU {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.ASDU(nil), c.sent...)
}

func (c *fakeConn) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.connects++
	err := c.connectErr
	c.mu.Unlock()
	c.record("connect")
	return err
}

func (c *fakeConn) StartDataTransfer(ctx context.Context) error {
	c.record("startdt")
	return nil
}

func (c *fakeConn) SendInterrogation(ctx context.Context, ca uint16) error {
	c.record("interrogation")
	return nil
}

func (c *fakeConn) SendTestFrame(ctx context.Context, ca uint16) error {
	c.record("test")
	return nil
}

func (c *fakeConn) SendCommand(ctx context.Context, a *domain.ASDU) error {
	c.record("command")
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	cp := *a
	cp.Objects = append([]domain.InformationObject(nil), a.Objects...)
	c.sent = append(c.sent, cp)
	return nil
}

func (c *fakeConn) SetASDUHandler(h ports.ASDUHandler) { c.asduHandler = h }

func (c *fakeConn) SetEventHandler(h ports.ConnectionEventHandler) { c.eventHandler = h }

func (c *fakeConn) Close() error {
	c.record("close")
	return nil
}

// emit delivers a connection event as the protocol layer would.
func (c *fakeConn) emit(ev ports.ConnectionEvent) {
	if c.eventHandler != nil {
		c.eventHandler(ev)
	}
}

// memorySink keeps published reports.
type memorySink struct {
	mu      sync.Mutex
	name    string
	reports []*report.Report
	fail    bool
	closed  bool
}

func (s *memorySink) Name() string { return s.name }

func (s *memorySink) Publish(ctx context.Context, r *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.reports = append(s.reports, r)
	return nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memorySink) Reports() []*report.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*report.Report(nil), s.reports...)
}

func (s *memorySink) SetFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}
