package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/dispatch"
	"main/internal/feed"
	"main/internal/obs"
	"main/internal/og"
	"main/internal/ops"
	"main/internal/persist"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/state"
	"main/internal/subs"
	"main/pkg/conn"
)

// staticAccount serves the configured balance until a live broker account
// endpoint is wired in.
type staticAccount struct {
	balance decimal.Decimal
}

func (s staticAccount) Account(context.Context) (risk.AccountSnapshot, error) {
	return risk.AccountSnapshot{Balance: s.balance, AsOf: time.Now()}, nil
}

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	metricsInterval := flag.Duration("metrics-interval", 30*time.Second, "Counter log interval (0=disable)")
	snapshotInterval := flag.Duration("snapshot-interval", time.Minute, "Position persistence interval")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		logs.Fatalf("config load failed, err: %+v", err)
	}

	if loaded.Features.EnableProfiling {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "feed",
			ServerAddress:   envOr("PYROSCOPE_ADDR", "http://localhost:4040"),
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			logs.Fatalf("pyroscope start failed, err: %+v", err)
		}
		defer func() { _ = profiler.Stop() }()
	}

	metrics := obs.NewMetrics()
	registry := subs.NewRegistry()
	for _, sub := range loaded.Instruments.Subscriptions() {
		registry.Subscribe(sub.Mode, sub.Exchange, sub.Tokens)
	}
	logs.Infof("registry seeded with %d instruments", loaded.Instruments.Len())

	queue := bus.NewTickQueue(loaded.QueueCapacity)
	feedConn := feed.New(feed.Config{
		URL:               loaded.FeedURL,
		AuthToken:         os.Getenv("FEED_JWT"),
		APIKey:            os.Getenv("FEED_API_KEY"),
		ClientCode:        os.Getenv("FEED_CLIENT_CODE"),
		FeedToken:         os.Getenv("FEED_TOKEN"),
		HeartbeatInterval: loaded.HeartbeatInterval,
		Backoff:           loaded.Backoff,
		DecodeErrorLimit:  loaded.DecodeErrorLimit,
	}, registry, queue, metrics)

	book := state.NewBook(decimal.Zero)
	account := risk.NewAccountCache(risk.AccountSnapshot{Balance: loaded.Account.Balance, AsOf: time.Now()})
	go account.Run(ctx, staticAccount{balance: loaded.Account.Balance}, loaded.Account.RefreshInterval)

	gate := risk.NewGate(loaded.Risk, book, account, metrics)

	sink, closeSink := buildSink(ctx, loaded, book, *snapshotInterval)
	defer closeSink()

	broker := og.NewSimBroker()
	manager := og.NewManager(broker, book, sink, metrics)
	broker.Subscribe(manager.OnUpdate)

	instruments := loaded.Instruments
	dispatcher := dispatch.NewDispatcher(queue, metrics)
	dispatcher.Attach(func(tick schema.Tick) {
		inst, ok := instruments.ByToken(tick.Exchange, tick.Token)
		if !ok {
			return
		}
		price := tick.LastTradedPrice.Decimal(inst.PriceScale)
		if book.Mark(inst.Symbol, price) {
			metrics.IncCoherenceDrift()
		}
	})

	go feedConn.Run(ctx)
	go dispatcher.Run(ctx)

	if *metricsInterval > 0 {
		go logCounters(ctx, metrics, queue, *metricsInterval)
	}

	if loaded.Order != nil && loaded.Features.EnableOrderFlow {
		go placeProbeOrder(ctx, gate, manager, *loaded.Order)
	}

	<-ctx.Done()
	logs.Info("shutting down")
}

// placeProbeOrder pushes the configured order through the full gate and
// lifecycle path once the feed has had a moment to mark prices.
func placeProbeOrder(ctx context.Context, gate *risk.Gate, manager *og.Manager, intent schema.OrderIntent) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
	}

	decision := gate.Evaluate(intent)
	if !decision.Allowed() {
		logs.Warnf("probe order denied: %s", decision.Reason)
		return
	}
	orderID, err := manager.Submit(ctx, intent)
	if err != nil {
		logs.Errorf("probe order failed, err: %+v", err)
		return
	}
	logs.Infof("probe order submitted: %s %s %d %s", orderID, intent.Side, intent.Qty, intent.Symbol)
}

func buildSink(ctx context.Context, loaded ops.Loaded, book *state.Book, snapshotInterval time.Duration) (og.Sink, func()) {
	if !loaded.Features.EnablePersistence || !loaded.Postgres.Enabled() {
		return persist.NopSink{}, func() {}
	}

	client, err := conn.Open(ctx, conn.Config{
		Host:     loaded.Postgres.Host,
		Port:     loaded.Postgres.Port,
		User:     loaded.Postgres.User,
		Password: envOr("POSTGRES_PASSWORD", loaded.Postgres.Password),
		Database: loaded.Postgres.Database,
		SSLMode:  loaded.Postgres.SSLMode,
	})
	if err != nil {
		logs.Fatalf("postgres connect failed, err: %+v", err)
	}
	sink, err := persist.NewSink(client.DB(), 0)
	if err != nil {
		logs.Fatalf("persistence init failed, err: %+v", err)
	}
	go sink.Run(ctx, book, snapshotInterval)
	return sink, func() { _ = client.Close() }
}

func logCounters(ctx context.Context, metrics *obs.Metrics, queue *bus.TickQueue, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetQueueDrops(queue.Drops())
			snap := metrics.Capture()
			logs.Infof("ticks=%d drops=%d decodeErr=%d seqAnomalies=%d reconnects=%d hbGaps=%d drift=%d dupAcks=%d placed=%d filled=%d",
				snap.TicksDispatched, snap.QueueDrops, snap.DecodeErrors, snap.SeqAnomalies,
				snap.Reconnects, snap.HeartbeatGaps, snap.CoherenceDrift, snap.DuplicateAcks,
				snap.OrdersPlaced, snap.OrdersFilled)
			for reason, count := range snap.RiskReasonCounts {
				if count > 0 {
					logs.Infof("risk denies %s=%d", reason, count)
				}
			}
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
