package persist

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
)

func TestOfferOrderMapsFields(t *testing.T) {
	s := &Sink{orders: make(chan OrderRecord, 4), closed: make(chan struct{})}

	now := time.Now()
	s.OfferOrder(schema.Order{
		ID:          "ord-1",
		BrokerID:    "SIM-1",
		Symbol:      "NIFTY24SEP19500CE",
		Side:        schema.OrderSideBuy,
		Type:        schema.OrderTypeLimit,
		Qty:         50,
		Price:       decimal.RequireFromString("19500.25"),
		Status:      schema.OrderStatusFilled,
		FilledQty:   50,
		FilledPrice: decimal.RequireFromString("19500.30"),
		CreatedAt:   now,
		UpdatedAt:   now,
	})

	require.Len(t, s.orders, 1)
	record := <-s.orders
	assert.Equal(t, "ord-1", record.OrderID)
	assert.Equal(t, "BUY", record.Side)
	assert.Equal(t, "LIMIT", record.Type)
	assert.Equal(t, "FILLED", record.Status)
	assert.Equal(t, int64(50), record.Qty)
	assert.Equal(t, "19500.25", record.Price)
	assert.Equal(t, "19500.3", record.FilledPrice)
}

func TestOfferOrderDropsOnOverflow(t *testing.T) {
	s := &Sink{orders: make(chan OrderRecord, 1), closed: make(chan struct{})}

	s.OfferOrder(schema.Order{ID: "a"})
	s.OfferOrder(schema.Order{ID: "b"})
	s.OfferOrder(schema.Order{ID: "c"})

	assert.Equal(t, uint64(2), s.Dropped())
	record := <-s.orders
	assert.Equal(t, "a", record.OrderID)
}
