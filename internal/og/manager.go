package og

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/obs"
	"main/internal/schema"
	"main/internal/state"
	"main/pkg/exception"
)

// earlyBufferLimit caps how many unmatched broker callbacks are held
// waiting for Submit to register their ids. A flood of spurious ids must
// not grow the buffer without bound.
const earlyBufferLimit = 64

// Broker is the execution collaborator contract. Place returns the broker
// order id; terminal state arrives only through async update callbacks.
type Broker interface {
	Place(ctx context.Context, order schema.Order) (string, error)
	Cancel(ctx context.Context, brokerID string) (bool, error)
}

// Sink consumes terminal order records. Implementations must not block the
// caller.
type Sink interface {
	OfferOrder(order schema.Order)
}

// Manager owns the per-order state machine:
//
//	PENDING -> OPEN -> {FILLED, CANCELLED, REJECTED}
//
// PENDING is set before any network call; OPEN only after the broker
// acknowledges with an order id; terminal states only from callbacks.
type Manager struct {
	mu       sync.Mutex
	broker   Broker
	book     *state.Book
	sink     Sink
	metrics  *obs.Metrics
	orders   map[string]*schema.Order
	byBroker map[string]string
	// callbacks that raced ahead of broker id registration
	early map[string]schema.OrderUpdate
}

// NewManager creates a lifecycle manager. sink may be nil.
func NewManager(broker Broker, book *state.Book, sink Sink, metrics *obs.Metrics) *Manager {
	return &Manager{
		broker:   broker,
		book:     book,
		sink:     sink,
		metrics:  metrics,
		orders:   make(map[string]*schema.Order),
		byBroker: make(map[string]string),
		early:    make(map[string]schema.OrderUpdate),
	}
}

// Submit turns an accepted intent into an order and places it with the
// broker. A placement failure before OPEN reverts the order to REJECTED.
func (m *Manager) Submit(ctx context.Context, intent schema.OrderIntent) (string, error) {
	if intent.Symbol == "" || intent.Qty <= 0 {
		return "", exception.ErrInvalidIntent
	}

	now := time.Now()
	order := &schema.Order{
		ID:        uuid.NewString(),
		Symbol:    intent.Symbol,
		Side:      intent.Side,
		Type:      intent.Type,
		Qty:       intent.Qty,
		Price:     intent.Price,
		Status:    schema.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.orders[order.ID] = order
	m.mu.Unlock()

	brokerID, err := m.broker.Place(ctx, *order)

	m.mu.Lock()
	if err != nil {
		// never reached OPEN
		var rejected *schema.Order
		if !order.Status.Terminal() {
			order.Status = schema.OrderStatusRejected
			order.UpdatedAt = time.Now()
			copied := *order
			rejected = &copied
		}
		m.mu.Unlock()
		if rejected != nil {
			m.offerTerminal(*rejected)
		}
		return order.ID, errors.Wrap(exception.ErrBrokerPlace, err.Error())
	}
	order.BrokerID = brokerID
	m.byBroker[brokerID] = order.ID
	if order.Status == schema.OrderStatusPending {
		order.Status = schema.OrderStatusOpen
		order.UpdatedAt = time.Now()
	}
	buffered, raced := m.early[brokerID]
	delete(m.early, brokerID)
	m.mu.Unlock()

	m.metrics.IncOrderPlaced()
	logs.Infof("order open: %s %s %d %s (broker %s)", intent.Side, intent.Symbol, intent.Qty, order.ID, brokerID)
	if raced {
		m.OnUpdate(buffered)
	}
	return order.ID, nil
}

// OnUpdate applies an async broker callback. Updates for already-terminal
// orders are discarded idempotently so fills hit the position book at most
// once.
func (m *Manager) OnUpdate(update schema.OrderUpdate) {
	m.mu.Lock()
	id, ok := m.byBroker[update.BrokerID]
	if !ok {
		// the broker acked faster than Submit could register the id;
		// hold the update until registration completes
		if _, held := m.early[update.BrokerID]; !held && len(m.early) >= earlyBufferLimit {
			m.mu.Unlock()
			logs.Warnf("early update buffer full, dropping callback for broker id %s", update.BrokerID)
			return
		}
		m.early[update.BrokerID] = update
		m.mu.Unlock()
		return
	}
	order := m.orders[id]
	if order.Status.Terminal() {
		m.mu.Unlock()
		m.metrics.IncDuplicateAck()
		return
	}
	if !update.Status.Terminal() {
		m.mu.Unlock()
		return
	}

	order.Status = update.Status
	order.UpdatedAt = time.Now()
	if update.Status == schema.OrderStatusFilled {
		order.FilledQty = update.FilledQty
		if order.FilledQty == 0 {
			order.FilledQty = order.Qty
		}
		order.FilledPrice = update.FilledPrice
		if order.FilledPrice.IsZero() {
			order.FilledPrice = order.Price
		}
	}
	terminal := *order
	m.mu.Unlock()

	if terminal.Status == schema.OrderStatusFilled {
		m.book.ApplyFill(terminal.Symbol, terminal.Side, terminal.FilledQty, terminal.FilledPrice)
		m.metrics.IncOrderFilled()
	}
	m.offerTerminal(terminal)
	logs.Infof("order %s -> %s", terminal.ID, terminal.Status)
}

// Cancel is best-effort: the broker may fill before the cancel lands and
// the resulting callback wins regardless of local intent. Cancelling an
// order not in OPEN is a no-op returning false.
func (m *Manager) Cancel(ctx context.Context, orderID string) bool {
	m.mu.Lock()
	order, ok := m.orders[orderID]
	if !ok || order.Status != schema.OrderStatusOpen {
		m.mu.Unlock()
		return false
	}
	brokerID := order.BrokerID
	m.mu.Unlock()

	ok, err := m.broker.Cancel(ctx, brokerID)
	if err != nil {
		logs.Warnf("cancel %s failed, err: %+v", orderID, err)
		return false
	}
	return ok
}

// Order returns a copy of the order record.
func (m *Manager) Order(orderID string) (schema.Order, bool) {
	m.mu.Lock()
	order, ok := m.orders[orderID]
	var out schema.Order
	if ok {
		out = *order
	}
	m.mu.Unlock()
	return out, ok
}

// ActiveOrders returns copies of all non-terminal orders.
func (m *Manager) ActiveOrders() []schema.Order {
	m.mu.Lock()
	out := make([]schema.Order, 0, len(m.orders))
	for _, order := range m.orders {
		if !order.Status.Terminal() {
			out = append(out, *order)
		}
	}
	m.mu.Unlock()
	return out
}

func (m *Manager) offerTerminal(order schema.Order) {
	if m.sink == nil {
		return
	}
	m.sink.OfferOrder(order)
}
