package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/obs"
	"main/internal/schema"
	"main/internal/state"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newGate(t *testing.T, limits Limits, book *state.Book, balance string) *Gate {
	t.Helper()
	cache := NewAccountCache(AccountSnapshot{Balance: dec(balance)})
	return NewGate(limits, book, cache, obs.NewMetrics())
}

func limitIntent(symbol string, qty int64, price string) schema.OrderIntent {
	return schema.OrderIntent{
		Symbol: symbol,
		Side:   schema.OrderSideBuy,
		Qty:    schema.Quantity(qty),
		Price:  dec(price),
		Type:   schema.OrderTypeLimit,
	}
}

func TestTradeSizeLimit(t *testing.T) {
	limits := Limits{MaxTradeValue: dec("100000")}
	g := newGate(t, limits, state.NewBook(decimal.Zero), "1000000")

	denied := g.Evaluate(limitIntent("NIFTY", 100, "1500")) // 150000
	require.False(t, denied.Allowed())
	assert.Equal(t, "TRADE_SIZE_EXCEEDED", denied.Reason.String())

	allowed := g.Evaluate(limitIntent("NIFTY", 60, "1500")) // 90000
	assert.True(t, allowed.Allowed())
}

func TestPositionValueLimit(t *testing.T) {
	book := state.NewBook(decimal.Zero)
	book.ApplyFill("NIFTY", schema.OrderSideBuy, 10, dec("19500")) // 195000 exposure

	limits := Limits{MaxPositionValue: dec("200000")}
	g := newGate(t, limits, book, "1000000")

	denied := g.Evaluate(limitIntent("BANKNIFTY", 1, "45600"))
	require.False(t, denied.Allowed())
	assert.Equal(t, schema.RiskReasonPositionSize, denied.Reason)

	allowed := g.Evaluate(limitIntent("BANKNIFTY", 1, "4000"))
	assert.True(t, allowed.Allowed())
}

func TestConcentrationLimit(t *testing.T) {
	book := state.NewBook(decimal.Zero)
	book.ApplyFill("NIFTY", schema.OrderSideBuy, 10, dec("19500"))

	limits := Limits{MaxConcentration: dec("0.3")}
	g := newGate(t, limits, book, "500000")

	// equity 500000, existing NIFTY exposure 195000: another 30000 breaches 30%
	denied := g.Evaluate(limitIntent("NIFTY", 2, "15000"))
	require.False(t, denied.Allowed())
	assert.Equal(t, schema.RiskReasonConcentration, denied.Reason)

	// a different symbol only carries its own trade value
	allowed := g.Evaluate(limitIntent("BANKNIFTY", 2, "15000"))
	assert.True(t, allowed.Allowed())
}

func TestDailyLossLimit(t *testing.T) {
	book := state.NewBook(decimal.Zero)
	book.ApplyFill("NIFTY", schema.OrderSideBuy, 100, dec("19500"))
	book.ApplyFill("NIFTY", schema.OrderSideSell, 100, dec("18900")) // -60000 realized

	limits := Limits{MaxDailyLoss: dec("50000")}
	g := newGate(t, limits, book, "1000000")

	denied := g.Evaluate(limitIntent("NIFTY", 1, "19000"))
	require.False(t, denied.Allowed())
	assert.Equal(t, schema.RiskReasonDailyLoss, denied.Reason)
}

func TestDrawdownLimit(t *testing.T) {
	book := state.NewBook(decimal.Zero)
	book.ApplyFill("NIFTY", schema.OrderSideBuy, 100, dec("20000"))
	book.Mark("NIFTY", dec("20000"))

	limits := Limits{MaxDrawdown: dec("0.10")}
	cache := NewAccountCache(AccountSnapshot{Balance: dec("1000000")})
	g := NewGate(limits, book, cache, obs.NewMetrics())

	// establish the equity peak, then crash the mark 25%
	require.True(t, g.Evaluate(limitIntent("NIFTY", 1, "100")).Allowed())
	book.Mark("NIFTY", dec("15000"))

	denied := g.Evaluate(limitIntent("NIFTY", 1, "100"))
	require.False(t, denied.Allowed())
	assert.Equal(t, schema.RiskReasonDrawdown, denied.Reason)
}

func TestDrawdownSeesPeakBetweenEvaluations(t *testing.T) {
	book := state.NewBook(decimal.Zero)
	book.ApplyFill("NIFTY", schema.OrderSideBuy, 10, dec("100"))

	limits := Limits{MaxDrawdown: dec("0.05")}
	g := newGate(t, limits, book, "1000000")

	// the equity peak is reached and lost between two evaluations
	book.Mark("NIFTY", dec("10100"))
	book.Mark("NIFTY", dec("100"))

	denied := g.Evaluate(limitIntent("NIFTY", 1, "100"))
	require.False(t, denied.Allowed())
	assert.Equal(t, schema.RiskReasonDrawdown, denied.Reason)
}

func TestCheckOrderShortCircuits(t *testing.T) {
	// trade size fires before concentration even though both would fail
	limits := Limits{MaxTradeValue: dec("1000"), MaxConcentration: dec("0.01")}
	g := newGate(t, limits, state.NewBook(decimal.Zero), "100")

	denied := g.Evaluate(limitIntent("NIFTY", 100, "1500"))
	require.False(t, denied.Allowed())
	assert.Equal(t, schema.RiskReasonTradeSize, denied.Reason)
}

func TestOrderRateLimit(t *testing.T) {
	limits := Limits{OrderRateLimit: 2, OrderRateWindowSeconds: 3600}
	g := newGate(t, limits, state.NewBook(decimal.Zero), "1000000")

	intent := limitIntent("NIFTY", 1, "100")
	assert.True(t, g.Evaluate(intent).Allowed())
	assert.True(t, g.Evaluate(intent).Allowed())

	denied := g.Evaluate(intent)
	require.False(t, denied.Allowed())
	assert.Equal(t, "RATE_LIMITED", denied.Reason.String())
}

func TestMarketIntentUsesLastMark(t *testing.T) {
	book := state.NewBook(decimal.Zero)
	book.ApplyFill("NIFTY", schema.OrderSideBuy, 1, dec("19500"))
	book.Mark("NIFTY", dec("20000"))

	limits := Limits{MaxTradeValue: dec("100000")}
	g := newGate(t, limits, book, "1000000")

	market := schema.OrderIntent{
		Symbol: "NIFTY",
		Side:   schema.OrderSideBuy,
		Qty:    6,
		Type:   schema.OrderTypeMarket,
	}
	// 6 * 20000 = 120000 > 100000
	denied := g.Evaluate(market)
	require.False(t, denied.Allowed())
	assert.Equal(t, schema.RiskReasonTradeSize, denied.Reason)
}
