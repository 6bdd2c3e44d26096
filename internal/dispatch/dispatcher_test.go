package dispatch

import (
	"context"
	"testing"
	"time"

	"main/internal/bus"
	"main/internal/obs"
	"main/internal/schema"
)

func runDispatch(t *testing.T, ticks []schema.Tick) ([]schema.Tick, obs.Snapshot) {
	t.Helper()
	queue := bus.NewTickQueue(len(ticks) + 1)
	metrics := obs.NewMetrics()
	d := NewDispatcher(queue, metrics)

	var got []schema.Tick
	d.Attach(func(tick schema.Tick) {
		got = append(got, tick)
	})

	for _, tick := range ticks {
		if err := queue.Publish(tick); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	queue.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Run(ctx)
	return got, metrics.Capture()
}

func TestFanOutInOrder(t *testing.T) {
	ticks := []schema.Tick{
		{Token: "100", Exchange: schema.ExchangeNSEFO, Seq: 1, ExchangeTsMillis: 10},
		{Token: "100", Exchange: schema.ExchangeNSEFO, Seq: 2, ExchangeTsMillis: 20},
		{Token: "200", Exchange: schema.ExchangeNSEFO, Seq: 1, ExchangeTsMillis: 15},
	}
	got, snap := runDispatch(t, ticks)

	if len(got) != 3 {
		t.Fatalf("dispatched: got %d want 3", len(got))
	}
	if snap.SeqAnomalies != 0 {
		t.Fatalf("anomalies: got %d want 0", snap.SeqAnomalies)
	}
	if snap.TicksDispatched != 3 {
		t.Fatalf("counter: got %d want 3", snap.TicksDispatched)
	}
}

func TestRepeatedSeqKeepsNewestTimestamp(t *testing.T) {
	ticks := []schema.Tick{
		{Token: "100", Exchange: schema.ExchangeNSEFO, Seq: 5, ExchangeTsMillis: 100, LastTradedPrice: 1},
		{Token: "100", Exchange: schema.ExchangeNSEFO, Seq: 5, ExchangeTsMillis: 90, LastTradedPrice: 2},
		{Token: "100", Exchange: schema.ExchangeNSEFO, Seq: 5, ExchangeTsMillis: 110, LastTradedPrice: 3},
	}
	got, snap := runDispatch(t, ticks)

	if snap.SeqAnomalies != 2 {
		t.Fatalf("anomalies: got %d want 2", snap.SeqAnomalies)
	}
	if len(got) != 2 {
		t.Fatalf("dispatched: got %d want 2 (stale-timestamp repeat dropped)", len(got))
	}
	if got[1].LastTradedPrice != 3 {
		t.Fatalf("newest-timestamp value should win, got price %d", got[1].LastTradedPrice)
	}
}

func TestOutOfOrderSeqCounted(t *testing.T) {
	ticks := []schema.Tick{
		{Token: "100", Exchange: schema.ExchangeNSEFO, Seq: 10, ExchangeTsMillis: 100},
		{Token: "100", Exchange: schema.ExchangeNSEFO, Seq: 8, ExchangeTsMillis: 80},
	}
	got, snap := runDispatch(t, ticks)

	if snap.SeqAnomalies != 1 {
		t.Fatalf("anomalies: got %d want 1", snap.SeqAnomalies)
	}
	if len(got) != 1 {
		t.Fatalf("stale tick must not be delivered, got %d", len(got))
	}
}

func TestPerTokenSequenceIsolation(t *testing.T) {
	ticks := []schema.Tick{
		{Token: "100", Exchange: schema.ExchangeNSEFO, Seq: 10, ExchangeTsMillis: 100},
		{Token: "100", Exchange: schema.ExchangeNSECM, Seq: 1, ExchangeTsMillis: 50},
	}
	_, snap := runDispatch(t, ticks)

	if snap.SeqAnomalies != 0 {
		t.Fatalf("same token on different exchanges must track separately, anomalies %d", snap.SeqAnomalies)
	}
}
