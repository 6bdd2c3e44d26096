package obs

import (
	"sync/atomic"

	"main/internal/schema"
)

const maxRiskReason = int(schema.RiskReasonDrawdown)

// Metrics collects lightweight counters for the feed and order pipeline.
// Everything is atomic; the hot decode path never logs, it counts here.
type Metrics struct {
	decodeErrors    uint64
	queueDrops      uint64
	seqAnomalies    uint64
	reconnects      uint64
	heartbeatGaps   uint64
	coherenceDrift  uint64
	duplicateAcks   uint64
	ticksDispatched uint64
	ordersPlaced    uint64
	ordersFilled    uint64

	riskReasonCounts [maxRiskReason + 1]uint64
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	DecodeErrors     uint64
	QueueDrops       uint64
	SeqAnomalies     uint64
	Reconnects       uint64
	HeartbeatGaps    uint64
	CoherenceDrift   uint64
	DuplicateAcks    uint64
	TicksDispatched  uint64
	OrdersPlaced     uint64
	OrdersFilled     uint64
	RiskReasonCounts map[schema.RiskReason]uint64
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncDecodeError counts a dropped protocol frame.
func (m *Metrics) IncDecodeError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.decodeErrors, 1)
}

// SetQueueDrops records the backpressure counter from the tick queue.
func (m *Metrics) SetQueueDrops(drops uint64) {
	if m == nil {
		return
	}
	atomic.StoreUint64(&m.queueDrops, drops)
}

// IncSeqAnomaly counts an out-of-order or repeated sequence number.
func (m *Metrics) IncSeqAnomaly() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.seqAnomalies, 1)
}

// IncReconnect counts a transition into CONNECTED after a drop.
func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.reconnects, 1)
}

// IncHeartbeatGap counts a pong gap beyond the allowed window.
func (m *Metrics) IncHeartbeatGap() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.heartbeatGaps, 1)
}

// IncCoherenceDrift counts a mark price diverging from the position average
// beyond the configured ratio. Data is kept; only health degrades.
func (m *Metrics) IncCoherenceDrift() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.coherenceDrift, 1)
}

// IncDuplicateAck counts a broker callback for an already-terminal order.
func (m *Metrics) IncDuplicateAck() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.duplicateAcks, 1)
}

// IncTickDispatched counts a tick delivered to handlers.
func (m *Metrics) IncTickDispatched() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ticksDispatched, 1)
}

// IncOrderPlaced counts an order acknowledged by the broker.
func (m *Metrics) IncOrderPlaced() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersPlaced, 1)
}

// IncOrderFilled counts a terminal fill.
func (m *Metrics) IncOrderFilled() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersFilled, 1)
}

// IncRiskReason counts a denied intent by reason.
func (m *Metrics) IncRiskReason(reason schema.RiskReason) {
	if m == nil {
		return
	}
	idx := int(reason)
	if idx >= 0 && idx < len(m.riskReasonCounts) {
		atomic.AddUint64(&m.riskReasonCounts[idx], 1)
	}
}

// DecodeErrors returns the dropped-frame count.
func (m *Metrics) DecodeErrors() uint64 {
	if m == nil {
		return 0
	}
	return atomic.LoadUint64(&m.decodeErrors)
}

// Capture returns a snapshot of all counters.
func (m *Metrics) Capture() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	snap := Snapshot{
		DecodeErrors:     atomic.LoadUint64(&m.decodeErrors),
		QueueDrops:       atomic.LoadUint64(&m.queueDrops),
		SeqAnomalies:     atomic.LoadUint64(&m.seqAnomalies),
		Reconnects:       atomic.LoadUint64(&m.reconnects),
		HeartbeatGaps:    atomic.LoadUint64(&m.heartbeatGaps),
		CoherenceDrift:   atomic.LoadUint64(&m.coherenceDrift),
		DuplicateAcks:    atomic.LoadUint64(&m.duplicateAcks),
		TicksDispatched:  atomic.LoadUint64(&m.ticksDispatched),
		OrdersPlaced:     atomic.LoadUint64(&m.ordersPlaced),
		OrdersFilled:     atomic.LoadUint64(&m.ordersFilled),
		RiskReasonCounts: make(map[schema.RiskReason]uint64),
	}
	for i := range m.riskReasonCounts {
		if count := atomic.LoadUint64(&m.riskReasonCounts[i]); count > 0 {
			snap.RiskReasonCounts[schema.RiskReason(i)] = count
		}
	}
	return snap
}
