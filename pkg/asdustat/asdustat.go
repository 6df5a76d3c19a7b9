package asdustat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/asdustat/internal/adapters/sim"
	"github.com/bft-labs/asdustat/internal/app"
	"github.com/bft-labs/asdustat/internal/domain"
	"github.com/bft-labs/asdustat/internal/metrics"
	"github.com/bft-labs/asdustat/internal/ports"
	"github.com/bft-labs/asdustat/internal/queue"
	"github.com/bft-labs/asdustat/internal/scheduler"
	"github.com/bft-labs/asdustat/internal/stats"
	"github.com/bft-labs/asdustat/pkg/log"
)

// Asdustat is an ASDU statistics pipeline that can be embedded in other
// applications. Use New() to create an instance, then Start() to attach it
// to its connection.
type Asdustat struct {
	config    Config
	lifecycle *app.Lifecycle
	logger    ports.Logger

	queue      *queue.Queue
	metrics    *metrics.Pipeline
	pool       *app.WorkerPool
	reporter   *app.Reporter
	session    *app.Session
	dispatcher *app.Dispatcher

	plugins []Plugin

	mu        sync.Mutex
	scheduler *scheduler.Scheduler
	cancel    context.CancelFunc
	poolDone  chan struct{}
	closed    bool
}

// New creates a pipeline with the given configuration.
// The instance is created in StateStopped; call Start() to begin ingesting.
func New(cfg Config, opts ...Option) (*Asdustat, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var logger ports.Logger = log.NewNoopLogger()
	if o.logger != nil {
		logger = o.logger
	}

	lifecycle := app.NewLifecycle(logger, &eventEmitterWrapper{handler: o.eventHandler})

	q, err := queue.New(queue.Config{
		Capacity:         cfg.QueueCapacity,
		Wait:             cfg.DequeueWait,
		DropLogThreshold: cfg.DropLogThreshold,
	}, logger)
	if err != nil {
		return nil, err
	}
	table, err := stats.NewTable(stats.Config{
		MaxCategories:  cfg.MaxCategories,
		MaxIdentifiers: cfg.MaxIdentifiers,
	})
	if err != nil {
		return nil, err
	}

	conn := o.conn
	if conn == nil {
		station, err := sim.New(cfg.simConfig(), logger)
		if err != nil {
			return nil, err
		}
		conn = station
	}

	m := metrics.NewPipeline()
	conn.SetASDUHandler(app.NewIngestor(q, m, logger))

	sinks := append([]ReportSink(nil), o.sinks...)
	if o.eventHandler != nil {
		sinks = append(sinks, eventSink{handler: o.eventHandler})
	}
	reporter := app.NewReporter(app.ReporterConfig{
		Interval:   cfg.ReportInterval,
		RetryDelay: cfg.RetryDelay,
		Detail:     cfg.Detail,
	}, table, q, m, sinks, logger)

	session := app.NewSession(conn, app.SessionConfig{
		CommonAddress:      cfg.CommonAddress,
		StartDTDelay:       cfg.StartDTDelay,
		InterrogationDelay: cfg.InterrogationDelay,
		Reconnect:          cfg.Reconnect,
		ReconnectMax:       cfg.ReconnectMax,
	}, logger, reporter.SetSessionID)

	a := &Asdustat{
		config:     cfg,
		lifecycle:  lifecycle,
		logger:     logger,
		queue:      q,
		metrics:    m,
		pool:       app.NewWorkerPool(cfg.Workers, q, table, m, logger),
		reporter:   reporter,
		session:    session,
		dispatcher: app.NewDispatcher(conn, cfg.CommonAddress, cfg.Originator, logger),
		plugins:    o.plugins,
	}
	if o.eventHandler != nil {
		session.SetObserver(func(ev ports.ConnectionEvent) {
			o.eventHandler.OnConnectionEvent(ConnectionChangeEvent{Event: ev, SessionID: session.ID()})
		})
	}
	return a, nil
}

// Start attaches the pipeline to its connection and starts the workers and
// the reporting job in the background. It returns once they are running.
// The provided context bounds the lifetime of the pipeline.
func (a *Asdustat) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrNotRunning
	}
	if !a.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	// Workers of a crashed run drain the queue on exit; they must be gone
	// before the new run enqueues.
	if err := a.waitPool(app.ShutdownTimeout); err != nil {
		return err
	}
	if err := a.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.lifecycle.SetCancel(cancel)

	pluginCfg := PluginConfig{
		ConfigPath: a.config.ConfigPath,
		Logger:     a.logger,
		Controller: a,
	}
	for _, p := range a.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			a.logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			cancel()
			_ = a.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		a.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}

	sched, err := scheduler.New(a.logger)
	if err == nil {
		err = a.reporter.Schedule(runCtx, sched)
	}
	if err != nil {
		cancel()
		_ = a.lifecycle.TransitionTo(app.StateCrashed, "scheduler: "+err.Error())
		return fmt.Errorf("schedule reporter: %w", err)
	}
	a.scheduler = sched

	poolDone := make(chan struct{})
	a.poolDone = poolDone
	a.lifecycle.Go(func() {
		defer close(poolDone)
		if err := a.pool.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("worker pool error", ports.Err(err))
		}
	})
	a.lifecycle.Go(func() {
		err := a.session.Run(runCtx)
		if err == nil || runCtx.Err() != nil {
			return
		}
		a.logger.Error("session error", ports.Err(err))
		cancel()
		a.stopScheduler(sched)
		_ = a.lifecycle.TransitionTo(app.StateCrashed, err.Error())
	})
	sched.Start()

	if err := a.lifecycle.TransitionTo(app.StateRunning, "pipeline started"); err != nil {
		a.logger.Warn("pipeline did not reach running", ports.Err(err))
	}
	a.logger.Info("pipeline started",
		ports.Int("workers", a.pool.Size()),
		ports.Int("queue_capacity", a.queue.Cap()),
		ports.Duration("report_interval", a.reporter.Interval()),
	)
	return nil
}

// Stop cancels the pipeline, joins its goroutines and shuts plugins down.
// Messages still queued are released. Waits up to app.ShutdownTimeout.
// Returns nil on graceful shutdown, ErrShutdownTimeout if forced.
func (a *Asdustat) Stop() error {
	a.mu.Lock()
	if !a.lifecycle.CanStop() {
		a.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := a.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		a.mu.Unlock()
		return err
	}
	if a.cancel != nil {
		a.cancel()
	}
	sched := a.scheduler
	a.mu.Unlock()

	a.stopScheduler(sched)
	err := a.lifecycle.WaitWithTimeout(app.ShutdownTimeout)

	shutdownCtx := context.Background()
	for i := len(a.plugins) - 1; i >= 0; i-- {
		p := a.plugins[i]
		if shutdownErr := p.Shutdown(shutdownCtx); shutdownErr != nil {
			a.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(shutdownErr))
		} else {
			a.logger.Info("plugin shutdown complete", ports.String("plugin", p.Name()))
		}
	}

	if err != nil {
		_ = a.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = a.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// Close releases the sinks and the metrics registry. Call it after Stop;
// the instance cannot be started again.
func (a *Asdustat) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	if a.lifecycle.CanStop() {
		return fmt.Errorf("close while %s: %w", a.lifecycle.State(), domain.ErrAlreadyRunning)
	}
	a.closed = true
	a.reporter.Close()
	a.metrics.Close()
	return nil
}

// stopScheduler stops sched if it is still the current scheduler. Whoever
// clears a.scheduler owns the shutdown, so a scheduler installed by a later
// Start is never stopped by an earlier run.
func (a *Asdustat) stopScheduler(sched *scheduler.Scheduler) {
	if sched == nil {
		return
	}
	a.mu.Lock()
	owned := a.scheduler == sched
	if owned {
		a.scheduler = nil
	}
	a.mu.Unlock()
	if !owned {
		return
	}
	if err := sched.Stop(); err != nil {
		a.logger.Warn("scheduler shutdown failed", ports.Err(err))
	}
}

// waitPool waits for the worker pool of the previous run. Called with a.mu
// held; the pool never takes a.mu.
func (a *Asdustat) waitPool(timeout time.Duration) error {
	if a.poolDone == nil {
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-a.poolDone:
		a.poolDone = nil
		return nil
	case <-timer.C:
		a.logger.Warn("previous worker pool still running", ports.Duration("timeout", timeout))
		return domain.ErrShutdownTimeout
	}
}

// Status returns the current lifecycle state.
func (a *Asdustat) Status() State {
	return convertState(a.lifecycle.State())
}

// SetDetail toggles per-IOA lines in subsequent reports.
func (a *Asdustat) SetDetail(on bool) {
	a.reporter.SetDetail(on)
	a.logger.Info("detail mode changed", ports.Bool("detail", on))
}

// Detail reports whether per-IOA lines are enabled.
func (a *Asdustat) Detail() bool {
	return a.reporter.Detail()
}

// SetDropLogThreshold changes how many drops are folded into one log line.
func (a *Asdustat) SetDropLogThreshold(n int) {
	a.queue.SetDropLogThreshold(n)
}

// DropLogThreshold returns the current drop log threshold.
func (a *Asdustat) DropLogThreshold() int {
	return a.queue.DropLogThreshold()
}

// SetReportInterval changes the reporting period. A running pipeline
// reschedules its report job; a stopped one uses the period on next Start.
func (a *Asdustat) SetReportInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("report interval %s: %w", d, domain.ErrInvalidConfig)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.reporter.SetInterval(a.scheduler, d); err != nil {
		return err
	}
	a.logger.Info("report interval changed", ports.Duration("report_interval", d))
	return nil
}

// ReportInterval returns the current reporting period.
func (a *Asdustat) ReportInterval() time.Duration {
	return a.reporter.Interval()
}

// Dispatch sends a control command on the live session.
func (a *Asdustat) Dispatch(ctx context.Context, cmd Command) error {
	if !a.session.Connected() {
		return domain.ErrNotConnected
	}
	return a.dispatcher.Dispatch(ctx, cmd)
}

// Interrogate sends a station interrogation on the live session.
func (a *Asdustat) Interrogate(ctx context.Context) error {
	return a.session.Interrogate(ctx)
}

// TestFrame sends a test command on the live session.
func (a *Asdustat) TestFrame(ctx context.Context) error {
	return a.session.TestFrame(ctx)
}

// Connected reports whether the protocol link is up.
func (a *Asdustat) Connected() bool {
	return a.session.Connected()
}

// SessionID returns the ID of the current connection session.
func (a *Asdustat) SessionID() string {
	return a.session.ID()
}

// Counters returns the cumulative ingestion counters.
func (a *Asdustat) Counters() Counters {
	return a.metrics.Counters(a.queue.Len())
}

// Config returns the effective configuration after defaults.
func (a *Asdustat) Config() Config {
	return a.config
}
