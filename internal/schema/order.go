package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide describes order direction.
type OrderSide uint8

const (
	OrderSideUnknown OrderSide = iota
	OrderSideBuy
	OrderSideSell
)

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "BUY"
	case OrderSideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// OrderType describes order pricing behavior.
type OrderType uint8

const (
	OrderTypeUnknown OrderType = iota
	OrderTypeMarket
	OrderTypeLimit
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "MARKET"
	case OrderTypeLimit:
		return "LIMIT"
	default:
		return "UNKNOWN"
	}
}

// OrderStatus tracks the lifecycle of an order. Transitions are monotonic:
// Pending -> Open -> {Filled, Cancelled, Rejected}.
type OrderStatus uint8

const (
	OrderStatusUnknown OrderStatus = iota
	OrderStatusPending
	OrderStatusOpen
	OrderStatusFilled
	OrderStatusCancelled
	OrderStatusRejected
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPending:
		return "PENDING"
	case OrderStatusOpen:
		return "OPEN"
	case OrderStatusFilled:
		return "FILLED"
	case OrderStatusCancelled:
		return "CANCELLED"
	case OrderStatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the status can no longer change.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// OrderIntent is a candidate trade produced by a signal source. A zero
// Price with OrderTypeMarket means price discovery happens at the broker.
type OrderIntent struct {
	Symbol string
	Side   OrderSide
	Qty    Quantity
	Price  decimal.Decimal
	Type   OrderType
}

// Order is the lifecycle manager's record of a submitted intent.
type Order struct {
	ID          string
	BrokerID    string
	Symbol      string
	Side        OrderSide
	Type        OrderType
	Qty         Quantity
	Price       decimal.Decimal
	Status      OrderStatus
	FilledQty   Quantity
	FilledPrice decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrderUpdate is an async broker callback for one order.
type OrderUpdate struct {
	BrokerID    string
	Status      OrderStatus
	FilledQty   Quantity
	FilledPrice decimal.Decimal
}
