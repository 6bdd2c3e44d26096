package ops

import (
	"encoding/json"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"main/internal/risk"
	"main/internal/schema"
	"main/pkg/backoff"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Feed     FeedConfig         `json:"feed"`
	Queue    QueueConfig        `json:"queue"`
	Registry RegistryConfig     `json:"registry"`
	Risk     risk.Limits        `json:"risk"`
	Account  AccountConfig      `json:"account"`
	Postgres PostgresConfig     `json:"postgres"`
	Order    OrderConfig        `json:"order"`
	Features FeatureFlagsConfig `json:"features"`
}

// FeedConfig describes the websocket feed endpoint. Session credentials
// come from the environment, never from the config file.
type FeedConfig struct {
	URL              string  `json:"url"`
	HeartbeatSeconds int     `json:"heartbeatSeconds"`
	DecodeErrorLimit int     `json:"decodeErrorLimit"`
	BackoffMinMillis int     `json:"backoffMinMillis"`
	BackoffMaxMillis int     `json:"backoffMaxMillis"`
	BackoffFactor    float64 `json:"backoffFactor"`
	BackoffJitter    float64 `json:"backoffJitter"`
}

// QueueConfig bounds the tick queue between the reader and dispatch.
type QueueConfig struct {
	Capacity int `json:"capacity"`
}

// RegistryConfig defines venue and instrument mappings.
type RegistryConfig struct {
	Venues      []VenueConfig      `json:"venues"`
	Instruments []InstrumentConfig `json:"instruments"`
}

// VenueConfig describes one venue segment and its wire price scale.
type VenueConfig struct {
	Name       string `json:"name"`
	Exchange   uint8  `json:"exchange"`
	PriceScale int32  `json:"priceScale"`
}

// InstrumentConfig maps a feed token to a tradable symbol.
type InstrumentConfig struct {
	Token   string `json:"token"`
	Symbol  string `json:"symbol"`
	Venue   string `json:"venue"`
	Mode    string `json:"mode"`
	LotSize int64  `json:"lotSize"`
}

// AccountConfig controls the balance cache refresher.
type AccountConfig struct {
	Balance        decimal.Decimal `json:"balance"`
	RefreshSeconds int             `json:"refreshSeconds"`
}

// PostgresConfig describes the persistence target. Empty host disables
// persistence entirely.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// Enabled reports whether a persistence target is configured.
func (p PostgresConfig) Enabled() bool {
	return p.Host != ""
}

// OrderConfig describes the startup probe order to publish.
type OrderConfig struct {
	Symbol string          `json:"symbol"`
	Side   string          `json:"side"`
	Type   string          `json:"type"`
	Price  decimal.Decimal `json:"price"`
	Qty    int64           `json:"qty"`
}

// FeatureFlagsConfig captures optional runtime flags.
type FeatureFlagsConfig struct {
	EnableOrderFlow   *bool `json:"enableOrderFlow"`
	EnablePersistence *bool `json:"enablePersistence"`
	EnableProfiling   *bool `json:"enableProfiling"`
}

// FeatureFlags are resolved runtime flags.
type FeatureFlags struct {
	EnableOrderFlow   bool
	EnablePersistence bool
	EnableProfiling   bool
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	FeedURL           string
	HeartbeatInterval time.Duration
	DecodeErrorLimit  int
	Backoff           backoff.Policy
	QueueCapacity     int
	Instruments       *Instruments
	Risk              risk.Limits
	Account           AccountSpec
	Postgres          PostgresConfig
	Order             *schema.OrderIntent
	Features          FeatureFlags
}

// AccountSpec is the resolved account refresh definition.
type AccountSpec struct {
	Balance         decimal.Decimal
	RefreshInterval time.Duration
}

// Load reads a JSON config file and resolves every section.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return resolve(cfg)
}

func resolve(cfg FileConfig) (Loaded, error) {
	if cfg.Feed.URL == "" {
		return Loaded{}, errors.New("feed url is empty")
	}
	instruments, err := buildInstruments(cfg.Registry)
	if err != nil {
		return Loaded{}, err
	}
	order, err := resolveOrder(cfg.Order, instruments)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{
		FeedURL:           cfg.Feed.URL,
		HeartbeatInterval: secondsOr(cfg.Feed.HeartbeatSeconds, 30*time.Second),
		DecodeErrorLimit:  cfg.Feed.DecodeErrorLimit,
		Backoff:           resolveBackoff(cfg.Feed),
		QueueCapacity:     cfg.Queue.Capacity,
		Instruments:       instruments,
		Risk:              cfg.Risk,
		Account: AccountSpec{
			Balance:         cfg.Account.Balance,
			RefreshInterval: secondsOr(cfg.Account.RefreshSeconds, time.Minute),
		},
		Postgres: cfg.Postgres,
		Order:    order,
		Features: resolveFeatures(cfg.Features),
	}
	if loaded.QueueCapacity <= 0 {
		loaded.QueueCapacity = 4096
	}
	return loaded, nil
}

func resolveBackoff(cfg FeedConfig) backoff.Policy {
	policy := backoff.Default()
	if cfg.BackoffMinMillis > 0 {
		policy.Min = time.Duration(cfg.BackoffMinMillis) * time.Millisecond
	}
	if cfg.BackoffMaxMillis > 0 {
		policy.Max = time.Duration(cfg.BackoffMaxMillis) * time.Millisecond
	}
	if cfg.BackoffFactor > 1 {
		policy.Factor = cfg.BackoffFactor
	}
	if cfg.BackoffJitter > 0 {
		policy.Jitter = cfg.BackoffJitter
	}
	return policy
}

func resolveOrder(cfg OrderConfig, instruments *Instruments) (*schema.OrderIntent, error) {
	if cfg.Symbol == "" {
		return nil, nil
	}
	if _, ok := instruments.BySymbol(cfg.Symbol); !ok {
		return nil, errors.Errorf("order symbol not found: %s", cfg.Symbol)
	}
	side, err := parseSide(cfg.Side)
	if err != nil {
		return nil, err
	}
	orderType, err := parseType(cfg.Type)
	if err != nil {
		return nil, err
	}
	if cfg.Qty <= 0 {
		return nil, errors.New("order qty must be > 0")
	}
	if orderType == schema.OrderTypeLimit && !cfg.Price.IsPositive() {
		return nil, errors.New("order price must be > 0 for limit orders")
	}
	return &schema.OrderIntent{
		Symbol: cfg.Symbol,
		Side:   side,
		Qty:    schema.Quantity(cfg.Qty),
		Price:  cfg.Price,
		Type:   orderType,
	}, nil
}

func parseSide(raw string) (schema.OrderSide, error) {
	switch raw {
	case "BUY":
		return schema.OrderSideBuy, nil
	case "SELL":
		return schema.OrderSideSell, nil
	default:
		return schema.OrderSideUnknown, errors.Errorf("unknown order side: %q", raw)
	}
}

func parseType(raw string) (schema.OrderType, error) {
	switch raw {
	case "MARKET":
		return schema.OrderTypeMarket, nil
	case "LIMIT":
		return schema.OrderTypeLimit, nil
	default:
		return schema.OrderTypeUnknown, errors.Errorf("unknown order type: %q", raw)
	}
}

func parseMode(raw string) (schema.SubscriptionMode, error) {
	switch raw {
	case "LTP":
		return schema.ModeLTP, nil
	case "QUOTE":
		return schema.ModeQuote, nil
	case "SNAP_QUOTE":
		return schema.ModeSnapQuote, nil
	default:
		return schema.ModeUnknown, errors.Errorf("unknown subscription mode: %q", raw)
	}
}

func resolveFeatures(cfg FeatureFlagsConfig) FeatureFlags {
	flags := FeatureFlags{
		EnableOrderFlow:   true,
		EnablePersistence: true,
	}
	if cfg.EnableOrderFlow != nil {
		flags.EnableOrderFlow = *cfg.EnableOrderFlow
	}
	if cfg.EnablePersistence != nil {
		flags.EnablePersistence = *cfg.EnablePersistence
	}
	if cfg.EnableProfiling != nil {
		flags.EnableProfiling = *cfg.EnableProfiling
	}
	return flags
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
