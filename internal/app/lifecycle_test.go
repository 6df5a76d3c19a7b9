package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/asdustat/internal/domain"
)

// recordingObserver tracks state change events for testing.
type recordingObserver struct {
	mu     sync.Mutex
	events []stateChange
}

type stateChange struct {
	previous State
	current  State
	reason   string
}

func (o *recordingObserver) OnStateChange(previous, current State, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, stateChange{previous, current, reason})
}

func (o *recordingObserver) Events() []stateChange {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]stateChange{}, o.events...)
}

func TestNewLifecycle(t *testing.T) {
	l := NewLifecycle(mockLogger{}, nil)
	require.NotNil(t, l)
	assert.Equal(t, StateStopped, l.State())
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStopped, "Stopped"},
		{StateStarting, "Starting"},
		{StateRunning, "Running"},
		{StateStopping, "Stopping"},
		{StateCrashed, "Crashed"},
		{State(99), "Unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestLifecycle_TransitionTo_Valid(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
	}{
		{"stopped to starting", StateStopped, StateStarting},
		{"starting to running", StateStarting, StateRunning},
		{"starting to stopping", StateStarting, StateStopping},
		{"starting to crashed", StateStarting, StateCrashed},
		{"running to stopping", StateRunning, StateStopping},
		{"running to crashed", StateRunning, StateCrashed},
		{"stopping to stopped", StateStopping, StateStopped},
		{"stopping to crashed", StateStopping, StateCrashed},
		{"crashed to starting", StateCrashed, StateStarting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLifecycle(mockLogger{}, nil)
			l.state = tt.from

			require.NoError(t, l.TransitionTo(tt.to, "test"))
			assert.Equal(t, tt.to, l.State())
		})
	}
}

func TestLifecycle_TransitionTo_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		to      State
		wantErr error
	}{
		{"stopped to running", StateStopped, StateRunning, domain.ErrNotRunning},
		{"stopped to stopping", StateStopped, StateStopping, domain.ErrNotRunning},
		{"starting to stopped", StateStarting, StateStopped, domain.ErrAlreadyRunning},
		{"running to starting", StateRunning, StateStarting, domain.ErrAlreadyRunning},
		{"running to stopped", StateRunning, StateStopped, domain.ErrAlreadyRunning},
		{"stopping to running", StateStopping, StateRunning, domain.ErrAlreadyRunning},
		{"crashed to running", StateCrashed, StateRunning, domain.ErrNotRunning},
		{"crashed to stopped", StateCrashed, StateStopped, domain.ErrNotRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLifecycle(mockLogger{}, nil)
			l.state = tt.from

			assert.ErrorIs(t, l.TransitionTo(tt.to, "test"), tt.wantErr)
			assert.Equal(t, tt.from, l.State(), "state must not change")
		})
	}
}

func TestLifecycle_TransitionTo_NotifiesObserver(t *testing.T) {
	obs := &recordingObserver{}
	l := NewLifecycle(mockLogger{}, obs)

	require.NoError(t, l.TransitionTo(StateStarting, "start"))
	require.NoError(t, l.TransitionTo(StateRunning, "running"))
	require.Error(t, l.TransitionTo(StateStarting, "again"))

	events := obs.Events()
	require.Len(t, events, 2)
	assert.Equal(t, stateChange{StateStopped, StateStarting, "start"}, events[0])
	assert.Equal(t, stateChange{StateStarting, StateRunning, "running"}, events[1])
}

func TestLifecycle_CanStartCanStop(t *testing.T) {
	tests := []struct {
		state    State
		canStart bool
		canStop  bool
	}{
		{StateStopped, true, false},
		{StateStarting, false, true},
		{StateRunning, false, true},
		{StateStopping, false, false},
		{StateCrashed, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			l := NewLifecycle(mockLogger{}, nil)
			l.state = tt.state
			assert.Equal(t, tt.canStart, l.CanStart())
			assert.Equal(t, tt.canStop, l.CanStop())
		})
	}
}

func TestLifecycle_Cancel(t *testing.T) {
	l := NewLifecycle(mockLogger{}, nil)
	l.Cancel() // nil-safe

	ctx, cancel := context.WithCancel(context.Background())
	l.SetCancel(cancel)
	assert.NoError(t, ctx.Err())

	l.Cancel()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestLifecycle_GoAndWait(t *testing.T) {
	l := NewLifecycle(mockLogger{}, nil)

	for i := 0; i < 3; i++ {
		l.Go(func() { time.Sleep(10 * time.Millisecond) })
	}

	assert.NoError(t, l.WaitWithTimeout(time.Second))
}

func TestLifecycle_WaitWithTimeout_Expires(t *testing.T) {
	l := NewLifecycle(mockLogger{}, nil)

	release := make(chan struct{})
	l.Go(func() { <-release })

	assert.ErrorIs(t, l.WaitWithTimeout(10*time.Millisecond), domain.ErrShutdownTimeout)
	close(release)
	assert.NoError(t, l.WaitWithTimeout(time.Second))
}

func TestLifecycle_ConcurrentTransitions(t *testing.T) {
	l := NewLifecycle(mockLogger{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = l.State()
				_ = l.CanStart()
				_ = l.CanStop()
			}
		}()
	}

	var started sync.WaitGroup
	wins := make(chan struct{}, 5)
	for i := 0; i < 5; i++ {
		started.Add(1)
		go func() {
			defer started.Done()
			if l.TransitionTo(StateStarting, "race") == nil {
				wins <- struct{}{}
			}
		}()
	}
	started.Wait()
	wg.Wait()
	close(wins)

	assert.Len(t, wins, 1, "exactly one goroutine leaves Stopped")
	assert.Equal(t, StateStarting, l.State())
}
