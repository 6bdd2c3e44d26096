package og

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"

	"main/internal/schema"
)

// SimBroker is a paper-trading execution stub: every placed order fills
// immediately at the order price through the async update path, so the
// pipeline behaves the same as with a live broker.
type SimBroker struct {
	mu      sync.Mutex
	handler func(schema.OrderUpdate)
	orders  map[string]schema.Order
	// RejectFn, when set, turns matching placements into broker errors.
	RejectFn func(order schema.Order) error
	// Latency delays the fill callback.
	Latency time.Duration
}

// NewSimBroker creates a sim broker with no update handler attached.
func NewSimBroker() *SimBroker {
	return &SimBroker{orders: make(map[string]schema.Order)}
}

// Subscribe attaches the update callback, normally Manager.OnUpdate.
func (s *SimBroker) Subscribe(handler func(schema.OrderUpdate)) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

// Place acknowledges immediately and schedules the fill callback.
func (s *SimBroker) Place(_ context.Context, order schema.Order) (string, error) {
	if s.RejectFn != nil {
		if err := s.RejectFn(order); err != nil {
			return "", err
		}
	}
	brokerID := "SIM-" + uuid.NewString()

	s.mu.Lock()
	s.orders[brokerID] = order
	handler := s.handler
	s.mu.Unlock()

	if handler == nil {
		return brokerID, nil
	}
	go func() {
		if s.Latency > 0 {
			time.Sleep(s.Latency)
		}
		handler(schema.OrderUpdate{
			BrokerID:    brokerID,
			Status:      schema.OrderStatusFilled,
			FilledQty:   order.Qty,
			FilledPrice: order.Price,
		})
	}()
	return brokerID, nil
}

// Cancel reports whether the order was still known. The fill callback may
// already be in flight; as with a live broker, the callback wins.
func (s *SimBroker) Cancel(_ context.Context, brokerID string) (bool, error) {
	s.mu.Lock()
	_, ok := s.orders[brokerID]
	delete(s.orders, brokerID)
	s.mu.Unlock()
	if !ok {
		return false, errors.New("sim: unknown broker id")
	}
	return true, nil
}

// Emit pushes a raw update through the handler. Tests drive duplicate and
// out-of-band callbacks with it.
func (s *SimBroker) Emit(update schema.OrderUpdate) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler != nil {
		handler(update)
	}
}
