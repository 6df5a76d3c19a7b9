package ports

import (
	"context"

	"github.com/bft-labs/asdustat/internal/domain"
)

// ASDUHandler receives decoded ASDUs from the protocol layer.
// HandleASDU is invoked serially on the protocol layer's receive path and
// must return quickly. The ASDU is only valid for the duration of the call.
type ASDUHandler interface {
	HandleASDU(address int, asdu *domain.ASDU) bool
}

// ConnectionEvent is a session state notification from the protocol layer.
type ConnectionEvent int

const (
	ConnectionOpened ConnectionEvent = iota
	ConnectionClosed
	ConnectionFailed
	StartDTConReceived
	StopDTConReceived
)

// String returns a human-readable representation of the event.
func (e ConnectionEvent) String() string {
	switch e {
	case ConnectionOpened:
		return "opened"
	case ConnectionClosed:
		return "closed"
	case ConnectionFailed:
		return "failed"
	case StartDTConReceived:
		return "startdt_con"
	case StopDTConReceived:
		return "stopdt_con"
	default:
		return "unknown"
	}
}

// ConnectionEventHandler is notified of session state changes.
type ConnectionEventHandler func(event ConnectionEvent)

// Connection is the protocol session the pipeline is attached to.
// Send operations are serialized by the implementation.
type Connection interface {
	// Connect opens the session.
	Connect(ctx context.Context) error

	// StartDataTransfer sends STARTDT act.
	StartDataTransfer(ctx context.Context) error

	// SendInterrogation sends a station interrogation (QOI 20) to the common address.
	SendInterrogation(ctx context.Context, commonAddress uint16) error

	// SendTestFrame sends a test command with time tag.
	SendTestFrame(ctx context.Context, commonAddress uint16) error

	// SendCommand sends a control direction ASDU. The caller keeps ownership.
	SendCommand(ctx context.Context, asdu *domain.ASDU) error

	// SetASDUHandler registers the receive callback. Must be called before Connect.
	SetASDUHandler(handler ASDUHandler)

	// SetEventHandler registers the connection event callback.
	SetEventHandler(handler ConnectionEventHandler)

	// Close terminates the session.
	Close() error
}
