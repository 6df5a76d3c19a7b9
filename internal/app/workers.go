package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/asdustat/internal/domain"
	"github.com/bft-labs/asdustat/internal/metrics"
	"github.com/bft-labs/asdustat/internal/ports"
	"github.com/bft-labs/asdustat/internal/queue"
	"github.com/bft-labs/asdustat/internal/stats"
)

// DefaultWorkers is the default pool size.
const DefaultWorkers = 10

// WorkerPool drains the queue into the aggregation table with a fixed
// number of symmetric workers.
type WorkerPool struct {
	size    int
	queue   *queue.Queue
	table   *stats.Table
	metrics *metrics.Pipeline
	logger  ports.Logger
}

// NewWorkerPool creates a pool of size workers. size <= 0 uses DefaultWorkers.
func NewWorkerPool(size int, q *queue.Queue, t *stats.Table, m *metrics.Pipeline, logger ports.Logger) *WorkerPool {
	if size <= 0 {
		size = DefaultWorkers
	}
	return &WorkerPool{size: size, queue: q, table: t, metrics: m, logger: logger}
}

// Size returns the number of workers.
func (p *WorkerPool) Size() int {
	return p.size
}

// Run blocks until ctx is done and every worker has returned, then
// releases whatever is still queued.
func (p *WorkerPool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.size; i++ {
		g.Go(func() error {
			p.work(gctx)
			return nil
		})
	}
	p.logger.Info("worker pool started", ports.Int("workers", p.size))

	err := g.Wait()

	if n := p.queue.Drain(); n > 0 {
		p.logger.Info("discarded queued messages on shutdown", ports.Int("count", n))
	}
	p.logger.Info("worker pool stopped")
	return err
}

func (p *WorkerPool) work(ctx context.Context) {
	for ctx.Err() == nil {
		a, ok := p.queue.Dequeue(ctx)
		if !ok {
			continue
		}
		p.process(a)
	}
}

// process folds a into the table and releases it.
func (p *WorkerPool) process(a *domain.ASDU) {
	if p.table.Fold(a) {
		p.metrics.Processed()
	} else {
		p.metrics.Invalid()
		p.logger.Debug("skipping asdu with out-of-range category",
			ports.Int("type", int(a.Type)),
			ports.Int("max_categories", p.table.MaxCategories()),
		)
	}
	a.Release()
}
