package schema

// RiskAction is the outcome of a risk evaluation.
type RiskAction uint8

const (
	RiskActionUnknown RiskAction = iota
	RiskActionAllow
	RiskActionDeny
)

// RiskReason is the first failed check of a denied intent.
type RiskReason uint8

const (
	RiskReasonNone RiskReason = iota
	RiskReasonRateLimited
	RiskReasonTradeSize
	RiskReasonPositionSize
	RiskReasonConcentration
	RiskReasonDailyLoss
	RiskReasonDrawdown
)

func (r RiskReason) String() string {
	switch r {
	case RiskReasonNone:
		return "NONE"
	case RiskReasonRateLimited:
		return "RATE_LIMITED"
	case RiskReasonTradeSize:
		return "TRADE_SIZE_EXCEEDED"
	case RiskReasonPositionSize:
		return "POSITION_SIZE_EXCEEDED"
	case RiskReasonConcentration:
		return "CONCENTRATION_EXCEEDED"
	case RiskReasonDailyLoss:
		return "DAILY_LOSS_LIMIT"
	case RiskReasonDrawdown:
		return "DRAWDOWN_LIMIT"
	default:
		return "UNKNOWN"
	}
}

// RiskDecision is the result handed back to the signal source.
type RiskDecision struct {
	Action RiskAction
	Reason RiskReason
}

// Allowed reports whether the intent may become an order.
func (d RiskDecision) Allowed() bool {
	return d.Action == RiskActionAllow
}
