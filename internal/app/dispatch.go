package app

import (
	"context"
	"fmt"

	"github.com/bft-labs/asdustat/internal/domain"
	"github.com/bft-labs/asdustat/internal/ports"
)

// Dispatcher translates typed command requests into control ASDUs on the
// shared connection.
type Dispatcher struct {
	conn          ports.Connection
	commonAddress uint16
	originator    uint8
	logger        ports.Logger
}

// NewDispatcher creates a dispatcher. commonAddress is used for commands
// that leave it zero.
func NewDispatcher(conn ports.Connection, commonAddress uint16, originator uint8, logger ports.Logger) *Dispatcher {
	return &Dispatcher{
		conn:          conn,
		commonAddress: commonAddress,
		originator:    originator,
		logger:        logger,
	}
}

// Dispatch validates cmd, builds its ASDU, sends it and releases it.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd domain.Command) error {
	if cmd.CommonAddress == 0 {
		cmd.CommonAddress = d.commonAddress
	}
	if err := cmd.Validate(); err != nil {
		return err
	}

	a := cmd.ASDU(d.originator)
	defer a.Release()

	if err := d.conn.SendCommand(ctx, a); err != nil {
		d.logger.Error("command send failed",
			ports.String("kind", cmd.Kind.String()),
			ports.Uint64("ioa", uint64(cmd.IOA)),
			ports.Err(err),
		)
		return fmt.Errorf("send %s command to ioa %d: %w", cmd.Kind, cmd.IOA, err)
	}

	d.logger.Info("command sent",
		ports.String("kind", cmd.Kind.String()),
		ports.Int("common_address", int(cmd.CommonAddress)),
		ports.Uint64("ioa", uint64(cmd.IOA)),
		ports.Int("value", int(cmd.Value)),
		ports.Bool("select", cmd.Select),
	)
	return nil
}
