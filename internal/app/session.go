package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/asdustat/internal/domain"
	"github.com/bft-labs/asdustat/internal/ports"
	"github.com/bft-labs/asdustat/pkg/log"
)

// SessionConfig drives the connection start sequence.
type SessionConfig struct {
	CommonAddress uint16

	// StartDTDelay is the pause between STARTDT and the station interrogation.
	StartDTDelay time.Duration

	// InterrogationDelay is the pause between the interrogation and the test frame.
	InterrogationDelay time.Duration

	// Reconnect re-runs the start sequence after the connection drops.
	Reconnect    bool
	ReconnectMax time.Duration
}

// Session owns the protocol connection: it runs the start sequence, tracks
// whether the link is up and optionally reconnects.
type Session struct {
	conn   ports.Connection
	cfg    SessionConfig
	logger ports.Logger

	connected atomic.Bool
	lost      chan struct{}

	mu        sync.RWMutex
	id        string
	onSession func(id string)
	observer  ports.ConnectionEventHandler
}

// NewSession wires the connection event handler. onSession, if set, is
// called with each new session ID.
func NewSession(conn ports.Connection, cfg SessionConfig, logger ports.Logger, onSession func(id string)) *Session {
	s := &Session{
		conn:      conn,
		cfg:       cfg,
		logger:    logger,
		lost:      make(chan struct{}, 1),
		onSession: onSession,
	}
	conn.SetEventHandler(s.onEvent)
	return s
}

// ID returns the current session ID, empty before the first connect.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Connected reports whether the link is up.
func (s *Session) Connected() bool {
	return s.connected.Load()
}

// SetObserver registers a callback invoked after each connection event is
// applied to the session state.
func (s *Session) SetObserver(fn ports.ConnectionEventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

func (s *Session) onEvent(ev ports.ConnectionEvent) {
	s.logger.Info("connection event", ports.String("event", ev.String()), ports.String("session_id", s.ID()))
	switch ev {
	case ports.ConnectionOpened, ports.StartDTConReceived:
		s.connected.Store(true)
	case ports.ConnectionClosed, ports.ConnectionFailed:
		if s.connected.Swap(false) {
			select {
			case s.lost <- struct{}{}:
			default:
			}
		}
	}

	s.mu.RLock()
	observer := s.observer
	s.mu.RUnlock()
	if observer != nil {
		observer(ev)
	}
}

// Run connects and runs the start sequence, then waits for ctx to end or the
// link to drop. Without Reconnect a failure or drop is returned to the caller.
func (s *Session) Run(ctx context.Context) error {
	retry := newBackoff(DefaultBackoffInitial, s.reconnectMax())
	defer s.conn.Close()

	for {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if !s.cfg.Reconnect {
			return err
		}
		// A session that was up before dropping starts the backoff over.
		if errors.Is(err, domain.ErrNotConnected) {
			retry.Reset()
		}
		s.logger.Warn("session ended", ports.Err(err), ports.Duration("retry_in", retry.Current()))
		if retry.Wait(ctx) != nil {
			return nil
		}
	}
}

func (s *Session) reconnectMax() time.Duration {
	if s.cfg.ReconnectMax > 0 {
		return s.cfg.ReconnectMax
	}
	return DefaultBackoffMax
}

func (s *Session) runOnce(ctx context.Context) error {
	id := uuid.NewString()
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
	if s.onSession != nil {
		s.onSession(id)
	}
	logger := log.With(s.logger, ports.String("session_id", id))

	// Drain a stale loss signal from the previous attempt.
	select {
	case <-s.lost:
	default:
	}

	if err := s.conn.Connect(ctx); err != nil {
		logger.Error("connect failed", ports.Err(err))
		return fmt.Errorf("connect: %w", err)
	}
	s.connected.Store(true)
	logger.Info("connected")

	if err := s.start(ctx, logger); err != nil {
		s.connected.Store(false)
		_ = s.conn.Close()
		return err
	}

	select {
	case <-ctx.Done():
		return nil
	case <-s.lost:
		logger.Warn("connection lost")
		_ = s.conn.Close()
		return domain.ErrNotConnected
	}
}

// start runs STARTDT, station interrogation and the test frame.
func (s *Session) start(ctx context.Context, logger ports.Logger) error {
	if err := s.conn.StartDataTransfer(ctx); err != nil {
		return fmt.Errorf("startdt: %w", err)
	}
	if err := sleepCtx(ctx, s.cfg.StartDTDelay); err != nil {
		return nil
	}

	if err := s.conn.SendInterrogation(ctx, s.cfg.CommonAddress); err != nil {
		return fmt.Errorf("station interrogation: %w", err)
	}
	logger.Info("station interrogation sent", ports.Int("common_address", int(s.cfg.CommonAddress)))
	if err := sleepCtx(ctx, s.cfg.InterrogationDelay); err != nil {
		return nil
	}

	if err := s.conn.SendTestFrame(ctx, s.cfg.CommonAddress); err != nil {
		return fmt.Errorf("test frame: %w", err)
	}
	logger.Info("test frame sent")
	return nil
}

// Interrogate sends a station interrogation on the live session.
func (s *Session) Interrogate(ctx context.Context) error {
	if !s.Connected() {
		return domain.ErrNotConnected
	}
	return s.conn.SendInterrogation(ctx, s.cfg.CommonAddress)
}

// TestFrame sends a test command on the live session.
func (s *Session) TestFrame(ctx context.Context) error {
	if !s.Connected() {
		return domain.ErrNotConnected
	}
	return s.conn.SendTestFrame(ctx, s.cfg.CommonAddress)
}
