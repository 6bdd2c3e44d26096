package dispatch

import (
	"context"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/obs"
	"main/internal/schema"
)

type tokenKey struct {
	exchange schema.ExchangeType
	token    string
}

type seqState struct {
	lastSeq int64
	lastTs  int64
}

// Dispatcher owns the only consumer loop of the tick queue and fans decoded
// ticks out to its handlers. Sequence numbers are per-token monotonic;
// out-of-order or repeated values are a protocol anomaly, not an error: the
// anomaly is counted and the newest-timestamp value wins.
type Dispatcher struct {
	queue    *bus.TickQueue
	metrics  *obs.Metrics
	handlers []func(schema.Tick)
	seen     map[tokenKey]seqState
}

// NewDispatcher creates a dispatcher over the queue.
func NewDispatcher(queue *bus.TickQueue, metrics *obs.Metrics) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		metrics: metrics,
		seen:    make(map[tokenKey]seqState),
	}
}

// Attach registers a handler. All handlers must be attached before Run;
// fan-out is synchronous in the dispatch goroutine.
func (d *Dispatcher) Attach(handler func(schema.Tick)) {
	d.handlers = append(d.handlers, handler)
}

// Run consumes the queue until the context is done or the queue closes.
func (d *Dispatcher) Run(ctx context.Context) {
	d.queue.Run(ctx, d.dispatch)
}

func (d *Dispatcher) dispatch(tick schema.Tick) {
	d.metrics.SetQueueDrops(d.queue.Drops())

	key := tokenKey{exchange: tick.Exchange, token: tick.Token}
	prev, seen := d.seen[key]
	if seen && tick.Seq <= prev.lastSeq {
		d.metrics.IncSeqAnomaly()
		logs.Warnf("tick seq anomaly on %s: got %d after %d", tick.Token, tick.Seq, prev.lastSeq)
		if tick.ExchangeTsMillis <= prev.lastTs {
			// stale by timestamp as well: keep the value we already have
			return
		}
	}
	next := seqState{lastSeq: tick.Seq, lastTs: tick.ExchangeTsMillis}
	if seen && prev.lastSeq > next.lastSeq {
		next.lastSeq = prev.lastSeq
	}
	if seen && prev.lastTs > next.lastTs {
		next.lastTs = prev.lastTs
	}
	d.seen[key] = next

	d.metrics.IncTickDispatched()
	for _, handler := range d.handlers {
		handler(tick)
	}
}
