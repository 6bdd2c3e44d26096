package state

import "github.com/shopspring/decimal"

// RiskView is a snapshot-consistent read of the book for one risk
// evaluation: one lock acquisition, no further reads mid-check.
type RiskView struct {
	Equity         decimal.Decimal
	TotalExposure  decimal.Decimal
	SymbolExposure map[string]decimal.Decimal
	DailyPnl       decimal.Decimal
	Drawdown       decimal.Decimal // fraction of the equity peak
}

// RiskView computes the current exposure and equity picture given the
// cached account balance. The equity high-water mark is maintained here so
// drawdown reflects the peak across the session.
func (b *Book) RiskView(balance decimal.Decimal) RiskView {
	b.mu.Lock()
	view := RiskView{
		SymbolExposure: make(map[string]decimal.Decimal, len(b.positions)),
		DailyPnl:       b.realizedToday,
	}
	unrealized := decimal.Zero
	for symbol, pos := range b.positions {
		if pos.Qty == 0 {
			continue
		}
		mark := pos.LastMark
		if mark.IsZero() {
			mark = pos.AvgPrice
		}
		exposure := mark.Mul(decimal.NewFromInt(abs64(int64(pos.Qty))))
		view.SymbolExposure[symbol] = exposure
		view.TotalExposure = view.TotalExposure.Add(exposure)
		unrealized = unrealized.Add(pos.UnrealizedPnl)
	}
	view.DailyPnl = view.DailyPnl.Add(unrealized)
	view.Equity = balance.Add(unrealized)

	// peak equity includes highs reached by marks between evaluations
	peakCandidate := balance.Add(b.unrealizedHigh)
	if peakCandidate.GreaterThan(b.equityPeak) {
		b.equityPeak = peakCandidate
	}
	if view.Equity.GreaterThan(b.equityPeak) {
		b.equityPeak = view.Equity
	}
	if b.equityPeak.IsPositive() {
		view.Drawdown = b.equityPeak.Sub(view.Equity).Div(b.equityPeak)
	}
	b.mu.Unlock()
	return view
}
