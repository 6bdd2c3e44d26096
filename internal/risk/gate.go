package risk

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"main/internal/obs"
	"main/internal/schema"
	"main/internal/state"
)

// Limits is the immutable risk configuration loaded once at startup.
type Limits struct {
	MaxTradeValue          decimal.Decimal `json:"maxTradeValue"`
	MaxPositionValue       decimal.Decimal `json:"maxPositionValue"`
	MaxConcentration       decimal.Decimal `json:"maxConcentration"`
	MaxDailyLoss           decimal.Decimal `json:"maxDailyLoss"`
	MaxDrawdown            decimal.Decimal `json:"maxDrawdown"`
	OrderRateLimit         int             `json:"orderRateLimit"`
	OrderRateWindowSeconds int             `json:"orderRateWindowSeconds"`
}

// Gate is the single choke point every intent passes before becoming an
// order. Evaluation is synchronous and never touches the network: position
// state comes from the book under one lock, account state from the cache.
type Gate struct {
	limits  Limits
	book    *state.Book
	account *AccountCache
	limiter *rate.Limiter
	metrics *obs.Metrics
}

// NewGate builds a gate. The rate limiter is off when OrderRateLimit is
// zero.
func NewGate(limits Limits, book *state.Book, account *AccountCache, metrics *obs.Metrics) *Gate {
	g := &Gate{
		limits:  limits,
		book:    book,
		account: account,
		metrics: metrics,
	}
	if limits.OrderRateLimit > 0 {
		window := time.Duration(limits.OrderRateWindowSeconds) * time.Second
		if window <= 0 {
			window = time.Second
		}
		interval := rate.Every(window / time.Duration(limits.OrderRateLimit))
		g.limiter = rate.NewLimiter(interval, limits.OrderRateLimit)
	}
	return g
}

// Evaluate checks the intent against the limits. The first failed check
// short-circuits and becomes the reported reason. The intent is never
// resized or mutated; sizing happens upstream in the signal source.
func (g *Gate) Evaluate(intent schema.OrderIntent) schema.RiskDecision {
	if g.limiter != nil && !g.limiter.Allow() {
		return g.deny(schema.RiskReasonRateLimited)
	}

	price := g.referencePrice(intent)
	tradeValue := price.Mul(decimal.NewFromInt(int64(intent.Qty)))

	if g.limits.MaxTradeValue.IsPositive() && tradeValue.GreaterThan(g.limits.MaxTradeValue) {
		return g.deny(schema.RiskReasonTradeSize)
	}

	view := g.book.RiskView(g.account.Get().Balance)

	if g.limits.MaxPositionValue.IsPositive() &&
		view.TotalExposure.Add(tradeValue).GreaterThan(g.limits.MaxPositionValue) {
		return g.deny(schema.RiskReasonPositionSize)
	}

	if g.limits.MaxConcentration.IsPositive() && view.Equity.IsPositive() {
		concentration := view.SymbolExposure[intent.Symbol].Add(tradeValue).Div(view.Equity)
		if concentration.GreaterThan(g.limits.MaxConcentration) {
			return g.deny(schema.RiskReasonConcentration)
		}
	}

	if g.limits.MaxDailyLoss.IsPositive() && view.DailyPnl.LessThan(g.limits.MaxDailyLoss.Neg()) {
		return g.deny(schema.RiskReasonDailyLoss)
	}

	if g.limits.MaxDrawdown.IsPositive() && view.Drawdown.GreaterThan(g.limits.MaxDrawdown) {
		return g.deny(schema.RiskReasonDrawdown)
	}

	return schema.RiskDecision{Action: schema.RiskActionAllow}
}

func (g *Gate) deny(reason schema.RiskReason) schema.RiskDecision {
	g.metrics.IncRiskReason(reason)
	return schema.RiskDecision{Action: schema.RiskActionDeny, Reason: reason}
}

// referencePrice resolves the price a market intent would trade near: the
// latest mark for the symbol, falling back to the intent price.
func (g *Gate) referencePrice(intent schema.OrderIntent) decimal.Decimal {
	if intent.Type == schema.OrderTypeLimit && intent.Price.IsPositive() {
		return intent.Price
	}
	if pos, ok := g.book.Position(intent.Symbol); ok && pos.LastMark.IsPositive() {
		return pos.LastMark
	}
	return intent.Price
}
