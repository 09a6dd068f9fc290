// Package queue holds the bounded FIFO that sits between submitters and
// the flush scheduler of a single aggregator.
package queue

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// Queue errors
var (
	ErrQueueFull       = errors.New("task queue full")
	ErrQueueClosed     = errors.New("task queue closed")
	ErrInvalidCapacity = errors.New("task queue capacity must be > 0")
)

// TaskQueue is a threadsafe, fixed-size queue of opaque operations.
// Submitters block while it is full; the owning aggregator removes items
// with DrainUpTo.
type TaskQueue struct {
	ch       chan any
	capacity int

	// guards closed against submitters registering in inFlight
	mu       sync.RWMutex
	closed   bool
	done     chan struct{}
	inFlight sync.WaitGroup

	// only one drain proceeds at a time
	drainMu sync.Mutex

	submitted uint64
	drained   uint64
	rejected  uint64
}

// New creates a bounded TaskQueue of given capacity (>0).
func New(capacity int) (*TaskQueue, error) {
	if capacity <= 0 {
		return nil, errors.Wrapf(ErrInvalidCapacity, "got %d", capacity)
	}
	return &TaskQueue{
		ch:       make(chan any, capacity),
		capacity: capacity,
		done:     make(chan struct{}),
	}, nil
}

// enter registers a submitter unless the queue is closed.
func (q *TaskQueue) enter() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	q.inFlight.Add(1)
	return true
}

// Submit appends op, blocking while the queue is at capacity. It returns
// ctx.Err() if the context ends first and ErrQueueClosed once Close has
// been called. An op is never dropped after Submit returned nil.
func (q *TaskQueue) Submit(ctx context.Context, op any) error {
	if !q.enter() {
		atomic.AddUint64(&q.rejected, 1)
		return ErrQueueClosed
	}
	defer q.inFlight.Done()

	// fast path keeps a closed-but-not-full race from accepting work
	select {
	case <-q.done:
		atomic.AddUint64(&q.rejected, 1)
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- op:
		atomic.AddUint64(&q.submitted, 1)
		return nil
	case <-ctx.Done():
		atomic.AddUint64(&q.rejected, 1)
		return ctx.Err()
	case <-q.done:
		atomic.AddUint64(&q.rejected, 1)
		return ErrQueueClosed
	}
}

// TrySubmit appends op without blocking; returns ErrQueueFull if full.
func (q *TaskQueue) TrySubmit(op any) error {
	if !q.enter() {
		atomic.AddUint64(&q.rejected, 1)
		return ErrQueueClosed
	}
	defer q.inFlight.Done()

	select {
	case q.ch <- op:
		atomic.AddUint64(&q.submitted, 1)
		return nil
	default:
		atomic.AddUint64(&q.rejected, 1)
		return ErrQueueFull
	}
}

// DrainUpTo removes and returns at most n items in submission order. It
// never waits for more items to arrive and returns an empty slice when
// the queue is empty.
func (q *TaskQueue) DrainUpTo(n int) []any {
	if n <= 0 {
		return []any{}
	}
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	size := len(q.ch)
	if size > n {
		size = n
	}
	out := make([]any, 0, size)
collect:
	for len(out) < n {
		select {
		case op := <-q.ch:
			out = append(out, op)
		default:
			break collect
		}
	}
	atomic.AddUint64(&q.drained, uint64(len(out)))
	return out
}

// Close stops accepting submissions. Blocked submitters return
// ErrQueueClosed; Close returns once none of them can still enqueue.
// Items already queued remain available to DrainUpTo.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()
	q.inFlight.Wait()
}

func (q *TaskQueue) Len() int { return len(q.ch) }
func (q *TaskQueue) Cap() int { return q.capacity }

// Closed reports whether Close has been called.
func (q *TaskQueue) Closed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Counters returns the number of accepted, drained and rejected submissions.
func (q *TaskQueue) Counters() (submitted, drained, rejected uint64) {
	return atomic.LoadUint64(&q.submitted), atomic.LoadUint64(&q.drained), atomic.LoadUint64(&q.rejected)
}
