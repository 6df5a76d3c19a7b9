package asdustat

import (
	"github.com/bft-labs/asdustat/internal/domain"
	"github.com/bft-labs/asdustat/internal/ports"
	"github.com/bft-labs/asdustat/internal/report"
	"github.com/bft-labs/asdustat/pkg/log"
)

// Logger is the interface for structured logging.
type Logger = log.Logger

// LogField represents a structured log field.
type LogField = log.Field

// Re-export the types callers need to plug in their own protocol layer and
// report sinks.
type (
	// Connection is the protocol session the pipeline attaches to.
	Connection = ports.Connection

	// ASDUHandler receives ASDUs from a Connection.
	ASDUHandler = ports.ASDUHandler

	// ConnectionEvent is a session state notification.
	ConnectionEvent = ports.ConnectionEvent

	// ConnectionEventHandler receives connection events from a Connection.
	ConnectionEventHandler = ports.ConnectionEventHandler

	// ReportSink publishes interval reports.
	ReportSink = ports.ReportSink

	// Report is one interval report.
	Report = report.Report

	// ASDU is an application service data unit.
	ASDU = domain.ASDU

	// Command is a typed control request.
	Command = domain.Command

	// CommandKind selects the outbound command type.
	CommandKind = domain.CommandKind

	// Counters are cumulative ingestion counters.
	Counters = domain.PipelineCounters
)

// Command kinds.
const (
	CommandSingle         = domain.CommandSingle
	CommandSetpointScaled = domain.CommandSetpointScaled
)

// Connection events.
const (
	ConnectionOpened   = ports.ConnectionOpened
	ConnectionClosed   = ports.ConnectionClosed
	ConnectionFailed   = ports.ConnectionFailed
	StartDTConReceived = ports.StartDTConReceived
	StopDTConReceived  = ports.StopDTConReceived
)

// Errors returned by the public API. Check them with errors.Is.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrInvalidCommand  = domain.ErrInvalidCommand
	ErrNotConnected    = domain.ErrNotConnected
)

// Option configures optional behavior of an Asdustat instance.
type Option func(*options)

type options struct {
	logger       Logger
	conn         Connection
	sinks        []ReportSink
	eventHandler EventHandler
	plugins      []Plugin
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithConnection attaches the pipeline to conn instead of the built-in
// simulated station. The pipeline registers its own handlers on conn.
func WithConnection(conn Connection) Option {
	return func(o *options) {
		o.conn = conn
	}
}

// WithSink adds a report sink. Sinks are published to in registration order
// and closed by Close.
func WithSink(sink ReportSink) Option {
	return func(o *options) {
		o.sinks = append(o.sinks, sink)
	}
}

// WithEventHandler sets a handler for pipeline events.
// Events are called synchronously; implementations should return quickly.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the pipeline starts.
// Plugins are initialized in registration order and shutdown in reverse order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}
