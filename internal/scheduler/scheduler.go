// Package scheduler runs the fixed-interval jobs of the pipeline on a
// shared gocron scheduler.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/bft-labs/asdustat/internal/ports"
)

// Scheduler owns named interval jobs.
type Scheduler struct {
	mu        sync.Mutex
	scheduler gocron.Scheduler
	jobs      map[string]gocron.Job
	logger    ports.Logger
}

// New creates a stopped scheduler.
func New(logger ports.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{
		scheduler: s,
		jobs:      make(map[string]gocron.Job),
		logger:    logger,
	}, nil
}

// Every registers fn to run every interval. A run that overlaps the next
// tick delays that tick instead of running concurrently.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("scheduled job already exists: %s", name)
	}

	j, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("create scheduled job %s: %w", name, err)
	}

	s.jobs[name] = j
	s.logger.Debug("scheduled job added",
		ports.String("name", name),
		ports.Duration("interval", interval),
	)
	return nil
}

// Remove stops and removes a named job. No-op if the job doesn't exist.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return
	}
	if err := s.scheduler.RemoveJob(j.ID()); err != nil {
		s.logger.Warn("failed to remove scheduled job", ports.String("name", name), ports.Err(err))
	}
	delete(s.jobs, name)
}

// Reschedule replaces a job with a new interval.
func (s *Scheduler) Reschedule(name string, interval time.Duration, fn func()) error {
	s.Remove(name)
	return s.Every(name, interval, fn)
}

// Has reports whether a job is registered.
func (s *Scheduler) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[name]
	return ok
}

// Start begins executing registered jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
	s.mu.Lock()
	n := len(s.jobs)
	s.mu.Unlock()
	s.logger.Debug("scheduler started", ports.Int("jobs", n))
}

// Stop shuts the scheduler down and waits for running jobs to finish.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}
