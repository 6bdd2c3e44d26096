package schema

import "github.com/shopspring/decimal"

// Price is a scaled integer as carried on the wire. The scale is defined
// per venue by configuration.
type Price int64

// Decimal converts a wire price into a decimal using the venue scale.
func (p Price) Decimal(scale int32) decimal.Decimal {
	return decimal.New(int64(p), -scale)
}

// Quantity is a signed instrument quantity.
type Quantity int64
