package state

import (
	"sync"

	"github.com/shopspring/decimal"

	"main/internal/schema"
)

// Position is the authoritative exposure for one symbol. Quantity sign
// encodes net long/short; a flat position has a zero average price.
type Position struct {
	Symbol        string
	Qty           schema.Quantity
	AvgPrice      decimal.Decimal
	RealizedPnl   decimal.Decimal
	UnrealizedPnl decimal.Decimal
	LastMark      decimal.Decimal
}

// Book aggregates fills into per-symbol positions and marks them to market.
// Risk evaluation and fill application share the same lock so a check never
// reads state mid-update.
type Book struct {
	mu             sync.Mutex
	positions      map[string]*Position
	realizedToday  decimal.Decimal
	equityPeak     decimal.Decimal
	unrealizedHigh decimal.Decimal
	coherenceRatio decimal.Decimal
}

// NewBook creates an empty book. coherenceRatio bounds the allowed
// mark-vs-average divergence before a drift is reported; zero disables the
// check.
func NewBook(coherenceRatio decimal.Decimal) *Book {
	return &Book{
		positions:      make(map[string]*Position),
		coherenceRatio: coherenceRatio,
	}
}

// ApplyFill folds one fill into the symbol's position. Same-direction fills
// recompute the weighted average entry price; reducing or flipping fills
// realize P&L on the closed portion at the old average first.
func (b *Book) ApplyFill(symbol string, side schema.OrderSide, qty schema.Quantity, price decimal.Decimal) Position {
	signed := int64(qty)
	if side == schema.OrderSideSell {
		signed = -signed
	}

	b.mu.Lock()
	pos, ok := b.positions[symbol]
	if !ok {
		pos = &Position{Symbol: symbol}
		b.positions[symbol] = pos
	}

	old := int64(pos.Qty)
	switch {
	case old == 0:
		pos.Qty = schema.Quantity(signed)
		pos.AvgPrice = price
	case sameSign(old, signed):
		oldDec := decimal.NewFromInt(old)
		signedDec := decimal.NewFromInt(signed)
		total := oldDec.Add(signedDec)
		pos.AvgPrice = oldDec.Mul(pos.AvgPrice).Add(signedDec.Mul(price)).Div(total)
		pos.Qty = schema.Quantity(old + signed)
	default:
		closed := min64(abs64(signed), abs64(old))
		perUnit := price.Sub(pos.AvgPrice)
		if old < 0 {
			perUnit = perUnit.Neg()
		}
		realized := perUnit.Mul(decimal.NewFromInt(closed))
		pos.RealizedPnl = pos.RealizedPnl.Add(realized)
		b.realizedToday = b.realizedToday.Add(realized)

		next := old + signed
		pos.Qty = schema.Quantity(next)
		switch {
		case next == 0:
			pos.AvgPrice = decimal.Zero
		case !sameSign(old, next):
			// flipped through flat: the remainder was opened at the fill price
			pos.AvgPrice = price
		}
	}

	b.remark(pos)
	b.raiseUnrealizedHigh()
	out := *pos
	b.mu.Unlock()
	return out
}

// Mark revalues the symbol's unrealized P&L against the tick price. No-op
// for flat symbols. Returns true when the price drifted from the average
// beyond the coherence ratio; the data is still applied.
func (b *Book) Mark(symbol string, price decimal.Decimal) bool {
	b.mu.Lock()
	pos, ok := b.positions[symbol]
	if !ok || pos.Qty == 0 {
		b.mu.Unlock()
		return false
	}
	pos.LastMark = price
	b.remark(pos)
	b.raiseUnrealizedHigh()

	drift := false
	if b.coherenceRatio.IsPositive() && pos.AvgPrice.IsPositive() {
		ratio := price.Sub(pos.AvgPrice).Abs().Div(pos.AvgPrice)
		drift = ratio.GreaterThan(b.coherenceRatio)
	}
	b.mu.Unlock()
	return drift
}

// Position returns a copy of the symbol's position.
func (b *Book) Position(symbol string) (Position, bool) {
	b.mu.Lock()
	pos, ok := b.positions[symbol]
	var out Position
	if ok {
		out = *pos
	}
	b.mu.Unlock()
	return out, ok
}

// Snapshot returns copies of every non-flat position.
func (b *Book) Snapshot() []Position {
	b.mu.Lock()
	out := make([]Position, 0, len(b.positions))
	for _, pos := range b.positions {
		if pos.Qty != 0 {
			out = append(out, *pos)
		}
	}
	b.mu.Unlock()
	return out
}

// ResetDay clears the daily realized P&L accumulator.
func (b *Book) ResetDay() {
	b.mu.Lock()
	b.realizedToday = decimal.Zero
	b.mu.Unlock()
}

func (b *Book) remark(pos *Position) {
	if pos.Qty == 0 {
		pos.UnrealizedPnl = decimal.Zero
		return
	}
	mark := pos.LastMark
	if mark.IsZero() {
		mark = pos.AvgPrice
	}
	pos.UnrealizedPnl = mark.Sub(pos.AvgPrice).Mul(decimal.NewFromInt(int64(pos.Qty)))
}

// raiseUnrealizedHigh advances the session high-water mark of total
// unrealized P&L. Called with the lock held on every fill and mark so
// equity peaks reached between risk evaluations still count toward
// drawdown.
func (b *Book) raiseUnrealizedHigh() {
	total := decimal.Zero
	for _, pos := range b.positions {
		if pos.Qty != 0 {
			total = total.Add(pos.UnrealizedPnl)
		}
	}
	if total.GreaterThan(b.unrealizedHigh) {
		b.unrealizedHigh = total
	}
}

func sameSign(a, b int64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
