package ops

import (
	"sort"

	"github.com/yanun0323/errors"

	"main/internal/schema"
)

// Instrument is one resolved tradable: a feed token bound to a symbol
// with the venue's wire price scale.
type Instrument struct {
	Token      string
	Symbol     string
	Venue      string
	Exchange   schema.ExchangeType
	Mode       schema.SubscriptionMode
	PriceScale int32
	LotSize    int64
}

type tokenKey struct {
	exchange schema.ExchangeType
	token    string
}

// Instruments is the immutable lookup table built once at startup.
type Instruments struct {
	byToken  map[tokenKey]Instrument
	bySymbol map[string]Instrument
	ordered  []Instrument
}

func buildInstruments(cfg RegistryConfig) (*Instruments, error) {
	venues := make(map[string]VenueConfig, len(cfg.Venues))
	for _, venue := range cfg.Venues {
		if venue.Name == "" {
			return nil, errors.New("venue name is empty")
		}
		if venue.PriceScale < 0 {
			return nil, errors.Errorf("venue %s: price scale must be >= 0", venue.Name)
		}
		if _, dup := venues[venue.Name]; dup {
			return nil, errors.Errorf("duplicate venue: %s", venue.Name)
		}
		venues[venue.Name] = venue
	}

	ins := &Instruments{
		byToken:  make(map[tokenKey]Instrument, len(cfg.Instruments)),
		bySymbol: make(map[string]Instrument, len(cfg.Instruments)),
	}
	for _, raw := range cfg.Instruments {
		venue, ok := venues[raw.Venue]
		if !ok {
			return nil, errors.Errorf("instrument %s: venue not found: %s", raw.Symbol, raw.Venue)
		}
		mode, err := parseMode(raw.Mode)
		if err != nil {
			return nil, errors.Wrapf(err, "instrument %s", raw.Symbol)
		}
		if raw.Token == "" || raw.Symbol == "" {
			return nil, errors.New("instrument token and symbol must be set")
		}

		inst := Instrument{
			Token:      raw.Token,
			Symbol:     raw.Symbol,
			Venue:      venue.Name,
			Exchange:   schema.ExchangeType(venue.Exchange),
			Mode:       mode,
			PriceScale: venue.PriceScale,
			LotSize:    raw.LotSize,
		}
		key := tokenKey{exchange: inst.Exchange, token: inst.Token}
		if _, dup := ins.byToken[key]; dup {
			return nil, errors.Errorf("duplicate token %s on exchange %d", inst.Token, inst.Exchange)
		}
		if _, dup := ins.bySymbol[inst.Symbol]; dup {
			return nil, errors.Errorf("duplicate symbol: %s", inst.Symbol)
		}
		ins.byToken[key] = inst
		ins.bySymbol[inst.Symbol] = inst
		ins.ordered = append(ins.ordered, inst)
	}
	return ins, nil
}

// ByToken resolves an inbound tick to its instrument.
func (i *Instruments) ByToken(exchange schema.ExchangeType, token string) (Instrument, bool) {
	inst, ok := i.byToken[tokenKey{exchange: exchange, token: token}]
	return inst, ok
}

// BySymbol resolves an order symbol to its instrument.
func (i *Instruments) BySymbol(symbol string) (Instrument, bool) {
	inst, ok := i.bySymbol[symbol]
	return inst, ok
}

// Len returns the number of configured instruments.
func (i *Instruments) Len() int {
	return len(i.ordered)
}

// Subscriptions groups every instrument into the (mode, exchange) batches
// the feed subscribes with. Output order is deterministic.
func (i *Instruments) Subscriptions() []schema.Subscription {
	type groupKey struct {
		mode     schema.SubscriptionMode
		exchange schema.ExchangeType
	}
	groups := make(map[groupKey][]string)
	for _, inst := range i.ordered {
		key := groupKey{mode: inst.Mode, exchange: inst.Exchange}
		groups[key] = append(groups[key], inst.Token)
	}

	out := make([]schema.Subscription, 0, len(groups))
	for key, tokens := range groups {
		sort.Strings(tokens)
		out = append(out, schema.Subscription{Mode: key.mode, Exchange: key.exchange, Tokens: tokens})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Mode != out[b].Mode {
			return out[a].Mode < out[b].Mode
		}
		return out[a].Exchange < out[b].Exchange
	})
	return out
}
