// Package queue implements the bounded hand-off between the protocol
// receive path and the worker pool.
//
// Enqueue never blocks: when the ring is full the ASDU is released and
// counted as dropped. Dequeue waits a bounded time for work so consumers
// stay responsive to cancellation without spinning.
package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/asdustat/internal/domain"
	"github.com/bft-labs/asdustat/internal/ports"
)

// Default tunables.
const (
	DefaultCapacity         = 1000
	DefaultWait             = 100 * time.Millisecond
	DefaultDropLogThreshold = 100
)

// Config holds queue tunables.
type Config struct {
	// Capacity is the fixed number of slots.
	Capacity int

	// Wait bounds how long Dequeue waits on an empty queue.
	Wait time.Duration

	// DropLogThreshold is the number of drops folded into one diagnostic line.
	DropLogThreshold int
}

// Queue is a fixed-capacity FIFO ring of owned ASDUs.
type Queue struct {
	mu    sync.Mutex
	slots []*domain.ASDU
	head  int
	tail  int
	count int

	// occupied mirrors count for lock-free empty/full checks. It may be
	// stale; count is authoritative under mu.
	occupied atomic.Int64
	capacity int
	wait     time.Duration
	ready    chan struct{}

	dropped    atomic.Uint64
	suppressed atomic.Int64
	threshold  atomic.Int64
	logger     ports.Logger
}

// New allocates the ring. It fails only on invalid tunables.
func New(cfg Config, logger ports.Logger) (*Queue, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("%w: queue capacity must be positive, got %d", domain.ErrInvalidConfig, cfg.Capacity)
	}
	if cfg.Wait <= 0 {
		cfg.Wait = DefaultWait
	}
	if cfg.DropLogThreshold <= 0 {
		cfg.DropLogThreshold = DefaultDropLogThreshold
	}

	q := &Queue{
		slots:    make([]*domain.ASDU, cfg.Capacity),
		capacity: cfg.Capacity,
		wait:     cfg.Wait,
		ready:    make(chan struct{}, 1),
		logger:   logger,
	}
	q.threshold.Store(int64(cfg.DropLogThreshold))
	return q, nil
}

// Enqueue places a into the next free slot and transfers ownership to the
// queue. On a full queue a is released, the drop is counted and false is
// returned.
func (q *Queue) Enqueue(a *domain.ASDU) bool {
	if a == nil {
		return false
	}
	if q.occupied.Load() >= int64(q.capacity) {
		q.drop(a)
		return false
	}

	q.mu.Lock()
	if q.count == q.capacity {
		q.mu.Unlock()
		q.drop(a)
		return false
	}
	q.slots[q.tail] = a
	q.tail = (q.tail + 1) % q.capacity
	q.count++
	q.occupied.Store(int64(q.count))
	q.mu.Unlock()

	q.signal()
	return true
}

// Dequeue removes the oldest ASDU. When the queue is empty it waits up to
// the configured bound and returns false if nothing arrived or ctx ended.
// The caller owns the returned ASDU and must Release it.
func (q *Queue) Dequeue(ctx context.Context) (*domain.ASDU, bool) {
	if a, ok := q.tryDequeue(); ok {
		return a, true
	}

	timer := time.NewTimer(q.wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-q.ready:
			if a, ok := q.tryDequeue(); ok {
				return a, true
			}
		case <-timer.C:
			return q.tryDequeue()
		}
	}
}

func (q *Queue) tryDequeue() (*domain.ASDU, bool) {
	if q.occupied.Load() == 0 {
		return nil, false
	}

	q.mu.Lock()
	if q.count == 0 {
		q.mu.Unlock()
		return nil, false
	}
	a := q.slots[q.head]
	q.slots[q.head] = nil
	q.head = (q.head + 1) % q.capacity
	q.count--
	q.occupied.Store(int64(q.count))
	remaining := q.count
	q.mu.Unlock()

	// Pass the wakeup on so other waiting consumers see the backlog.
	if remaining > 0 {
		q.signal()
	}
	return a, true
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *Queue) drop(a *domain.ASDU) {
	a.Release()
	total := q.dropped.Add(1)

	n := q.suppressed.Add(1)
	if n < q.threshold.Load() {
		return
	}
	if q.suppressed.CompareAndSwap(n, 0) {
		q.logger.Warn("queue full, dropping messages",
			ports.Int64("dropped", n),
			ports.Uint64("total_dropped", total),
			ports.Int("capacity", q.capacity),
		)
	}
}

// Drain releases every queued ASDU and returns how many were discarded.
func (q *Queue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.count
	for q.count > 0 {
		q.slots[q.head].Release()
		q.slots[q.head] = nil
		q.head = (q.head + 1) % q.capacity
		q.count--
	}
	q.occupied.Store(0)
	return n
}

// Len returns the current occupancy.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the fixed capacity.
func (q *Queue) Cap() int {
	return q.capacity
}

// Dropped returns the total number of ASDUs dropped since creation.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// SetDropLogThreshold changes how many drops are folded into one log line.
func (q *Queue) SetDropLogThreshold(n int) {
	if n <= 0 {
		n = DefaultDropLogThreshold
	}
	q.threshold.Store(int64(n))
}

// DropLogThreshold returns the current threshold.
func (q *Queue) DropLogThreshold() int {
	return int(q.threshold.Load())
}
