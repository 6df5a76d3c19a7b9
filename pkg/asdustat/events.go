package asdustat

import (
	"context"

	"github.com/bft-labs/asdustat/internal/app"
	"github.com/bft-labs/asdustat/internal/report"
)

// State is the lifecycle state of an Asdustat instance.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// ReportEvent carries a freshly built report. Report must not be retained
// after the handler returns.
type ReportEvent struct {
	Report *Report
}

// ConnectionChangeEvent is emitted for every protocol connection event.
type ConnectionChangeEvent struct {
	Event     ConnectionEvent
	SessionID string
}

// EventHandler receives pipeline notifications. Embed BaseEventHandler to
// implement only the methods you need.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnReport(event ReportEvent)
	OnConnectionEvent(event ConnectionChangeEvent)
}

// BaseEventHandler implements EventHandler with no-op methods.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)          {}
func (BaseEventHandler) OnReport(ReportEvent)                    {}
func (BaseEventHandler) OnConnectionEvent(ConnectionChangeEvent) {}

// eventEmitterWrapper adapts EventHandler to the internal observers.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

// eventSink forwards each report to the event handler.
type eventSink struct {
	handler EventHandler
}

func (eventSink) Name() string { return "events" }

func (s eventSink) Publish(_ context.Context, r *report.Report) error {
	s.handler.OnReport(ReportEvent{Report: r})
	return nil
}

func (eventSink) Close() error { return nil }

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}
