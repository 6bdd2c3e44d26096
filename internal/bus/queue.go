package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"main/internal/schema"
	"main/pkg/exception"
)

// TickQueue is the bounded handoff between the feed read loop and the
// dispatcher. Market data is latest-value-wins: when the queue is full the
// oldest tick is dropped and the backpressure counter increments.
type TickQueue struct {
	mu     sync.RWMutex
	ch     chan schema.Tick
	drops  uint64
	closed bool
}

// NewTickQueue allocates a queue with the given capacity.
func NewTickQueue(capacity int) *TickQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &TickQueue{ch: make(chan schema.Tick, capacity)}
}

// Publish enqueues a tick without ever blocking the read loop. A full queue
// sheds its oldest tick to make room. Safe against a concurrent Close: the
// closed flag and the channel close happen under the write lock, so no send
// can hit a closed channel.
func (q *TickQueue) Publish(tick schema.Tick) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return exception.ErrQueueClosed
	}
	for {
		select {
		case q.ch <- tick:
			return nil
		default:
		}
		select {
		case <-q.ch:
			atomic.AddUint64(&q.drops, 1)
		default:
		}
	}
}

// Drops returns the number of ticks shed under backpressure.
func (q *TickQueue) Drops() uint64 {
	return atomic.LoadUint64(&q.drops)
}

// Len returns the number of buffered ticks.
func (q *TickQueue) Len() int {
	return len(q.ch)
}

// Close stops the queue from accepting new ticks.
func (q *TickQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Run consumes ticks until the context is done or the queue is closed.
func (q *TickQueue) Run(ctx context.Context, handler func(schema.Tick)) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-q.ch:
			if !ok {
				return
			}
			handler(tick)
		}
	}
}
