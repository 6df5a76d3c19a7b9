package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/asdustat/internal/metrics"
	"github.com/bft-labs/asdustat/internal/ports"
	"github.com/bft-labs/asdustat/internal/queue"
	"github.com/bft-labs/asdustat/internal/report"
	"github.com/bft-labs/asdustat/internal/scheduler"
	"github.com/bft-labs/asdustat/internal/stats"
)

// Reporter defaults.
const (
	DefaultReportInterval = time.Second
	DefaultRetryDelay     = 200 * time.Millisecond

	reportJobName = "report"
)

// ReporterConfig holds reporter tunables.
type ReporterConfig struct {
	Interval   time.Duration
	RetryDelay time.Duration
	Detail     bool
}

// Reporter drains the aggregation table once per interval and publishes the
// report to every sink. Rendering happens outside the table lock.
type Reporter struct {
	table   *stats.Table
	queue   *queue.Queue
	metrics *metrics.Pipeline
	sinks   []ports.ReportSink
	logger  ports.Logger

	interval atomic.Int64
	detail   atomic.Bool

	mu        sync.Mutex // serializes cycles
	retry     *backoff
	sessionID atomic.Value

	jobMu  sync.Mutex
	jobCtx context.Context
}

// NewReporter creates a reporter publishing to sinks.
func NewReporter(cfg ReporterConfig, t *stats.Table, q *queue.Queue, m *metrics.Pipeline, sinks []ports.ReportSink, logger ports.Logger) *Reporter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultReportInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	r := &Reporter{
		table:    t,
		queue:    q,
		metrics:  m,
		sinks:    sinks,
		logger:   logger,
		retry:    newBackoff(cfg.RetryDelay, cfg.Interval),
	}
	r.interval.Store(int64(cfg.Interval))
	r.detail.Store(cfg.Detail)
	r.sessionID.Store("")
	return r
}

// SetDetail toggles per-IOA lines in subsequent reports.
func (r *Reporter) SetDetail(on bool) {
	r.detail.Store(on)
}

// Detail reports whether per-IOA lines are enabled.
func (r *Reporter) Detail() bool {
	return r.detail.Load()
}

// SetSessionID stamps subsequent reports with the current session.
func (r *Reporter) SetSessionID(id string) {
	r.sessionID.Store(id)
}

// Interval returns the reporting period.
func (r *Reporter) Interval() time.Duration {
	return time.Duration(r.interval.Load())
}

// Schedule registers the periodic cycle on s. Cycles stop when ctx is done.
func (r *Reporter) Schedule(ctx context.Context, s *scheduler.Scheduler) error {
	r.jobMu.Lock()
	r.jobCtx = ctx
	r.jobMu.Unlock()
	return s.Every(reportJobName, r.Interval(), func() { r.tick(ctx) })
}

// SetInterval changes the reporting period. When s is non-nil and carries
// the report job, the job is rescheduled at the new period; otherwise the
// period applies from the next Schedule.
func (r *Reporter) SetInterval(s *scheduler.Scheduler, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("report interval must be positive, got %s", interval)
	}
	if s != nil && s.Has(reportJobName) {
		r.jobMu.Lock()
		ctx := r.jobCtx
		r.jobMu.Unlock()
		if err := s.Reschedule(reportJobName, interval, func() { r.tick(ctx) }); err != nil {
			return err
		}
	}
	r.interval.Store(int64(interval))
	return nil
}

// tick runs one cycle. A failed cycle is skipped and the next one is
// delayed by a short backoff.
func (r *Reporter) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := r.Cycle(ctx); err != nil {
		delay := r.retry.Current()
		r.logger.Warn("report cycle failed, skipping",
			ports.Err(err),
			ports.Duration("retry_in", delay),
		)
		_ = r.retry.Wait(ctx)
		return
	}
	r.retry.Reset()
}

// Cycle takes a snapshot-and-reset of the table, builds the report and
// publishes it. Every sink is attempted; the joined sink errors are returned.
func (r *Reporter) Cycle(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.table.SnapshotAndReset()
	rep := report.Build(snap, r.metrics.Counters(r.queue.Len()), report.Options{
		SessionID: r.sessionID.Load().(string),
		Interval:  r.Interval(),
		Detail:    r.detail.Load(),
	})

	var errs []error
	for _, sink := range r.sinks {
		if err := sink.Publish(ctx, rep); err != nil {
			r.metrics.PublishFailed()
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		r.metrics.Published()
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (r *Reporter) Close() {
	for _, sink := range r.sinks {
		if err := sink.Close(); err != nil {
			r.logger.Warn("sink close failed", ports.String("sink", sink.Name()), ports.Err(err))
		}
	}
}
