package schema

// SubscriptionMode selects the feed payload depth for a token.
type SubscriptionMode uint8

const (
	ModeUnknown SubscriptionMode = iota
	// ModeLTP carries only the last traded price.
	ModeLTP
	// ModeQuote carries price plus best bid/ask.
	ModeQuote
	// ModeSnapQuote carries the full quote snapshot.
	ModeSnapQuote
)

// Valid reports whether the mode is one the wire protocol defines.
func (m SubscriptionMode) Valid() bool {
	return m >= ModeLTP && m <= ModeSnapQuote
}

func (m SubscriptionMode) String() string {
	switch m {
	case ModeLTP:
		return "LTP"
	case ModeQuote:
		return "QUOTE"
	case ModeSnapQuote:
		return "SNAP_QUOTE"
	default:
		return "UNKNOWN"
	}
}

// ExchangeType is the venue segment identifier used by the feed.
type ExchangeType uint8

const (
	ExchangeNSECM ExchangeType = 1
	ExchangeNSEFO ExchangeType = 2
	ExchangeBSECM ExchangeType = 3
	ExchangeBSEFO ExchangeType = 4
	ExchangeMCXFO ExchangeType = 5
	ExchangeNCXFO ExchangeType = 7
	ExchangeCDEFO ExchangeType = 13
)

// Tick is one decoded market-data update for a single instrument.
// Immutable once decoded.
type Tick struct {
	Token            string
	Exchange         ExchangeType
	Mode             SubscriptionMode
	Seq              int64
	ExchangeTsMillis int64
	LastTradedPrice  Price
	RecvTsNano       int64
}

// Subscription is the desired feed state for one (mode, exchange) pair.
type Subscription struct {
	Mode     SubscriptionMode
	Exchange ExchangeType
	Tokens   []string
}
