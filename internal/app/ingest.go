package app

import (
	"github.com/bft-labs/asdustat/internal/domain"
	"github.com/bft-labs/asdustat/internal/metrics"
	"github.com/bft-labs/asdustat/internal/ports"
	"github.com/bft-labs/asdustat/internal/queue"
)

// Ingestor is the receive callback registered with the protocol layer. It
// takes an owned copy of each ASDU and hands it to the queue; it never
// aggregates.
type Ingestor struct {
	queue   *queue.Queue
	metrics *metrics.Pipeline
	logger  ports.Logger
}

// NewIngestor creates the receive callback.
func NewIngestor(q *queue.Queue, m *metrics.Pipeline, logger ports.Logger) *Ingestor {
	return &Ingestor{queue: q, metrics: m, logger: logger}
}

// HandleASDU clones a and enqueues the clone. The protocol layer keeps
// ownership of a.
func (i *Ingestor) HandleASDU(address int, a *domain.ASDU) bool {
	if a == nil {
		return false
	}
	i.metrics.Received()

	if a.IsConfirmation() && isControl(a.Type) {
		i.logger.Info("command confirmation",
			ports.String("type", a.Type.String()),
			ports.String("cot", a.COT.String()),
			ports.Bool("negative", a.Negative),
			ports.Int("address", address),
		)
	}

	if i.queue.Enqueue(a.Clone()) {
		i.metrics.Enqueued()
	} else {
		i.metrics.Dropped()
	}
	return true
}

// isControl reports whether t belongs to the control or system direction.
func isControl(t domain.TypeID) bool {
	return t >= domain.C_SC_NA_1 && t <= domain.C_TS_TA_1 && t != domain.M_EI_NA_1
}

var _ ports.ASDUHandler = (*Ingestor)(nil)
