package subs

import (
	"testing"

	"main/internal/schema"
)

func TestSubscribeUnionIdempotent(t *testing.T) {
	r := NewRegistry()

	if added := r.Subscribe(schema.ModeLTP, schema.ExchangeNSEFO, []string{"100", "200"}); added != 2 {
		t.Fatalf("first subscribe added %d, want 2", added)
	}
	if added := r.Subscribe(schema.ModeLTP, schema.ExchangeNSEFO, []string{"200", "300"}); added != 1 {
		t.Fatalf("second subscribe added %d, want 1", added)
	}
	if added := r.Subscribe(schema.ModeLTP, schema.ExchangeNSEFO, []string{"100", "200", "300"}); added != 0 {
		t.Fatalf("repeat subscribe added %d, want 0", added)
	}

	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot entries: got %d want 1", len(snap))
	}
	want := []string{"100", "200", "300"}
	if len(snap[0].Tokens) != len(want) {
		t.Fatalf("tokens: got %v want %v", snap[0].Tokens, want)
	}
	for i, token := range want {
		if snap[0].Tokens[i] != token {
			t.Fatalf("tokens: got %v want %v", snap[0].Tokens, want)
		}
	}
}

func TestUnsubscribeRemovesEmptyEntry(t *testing.T) {
	r := NewRegistry()
	r.Subscribe(schema.ModeQuote, schema.ExchangeNSECM, []string{"1", "2"})

	if removed := r.Unsubscribe(schema.ModeQuote, schema.ExchangeNSECM, []string{"1"}); removed != 1 {
		t.Fatalf("removed %d, want 1", removed)
	}
	if len(r.Snapshot()) != 1 {
		t.Fatal("entry should remain while tokens exist")
	}
	if removed := r.Unsubscribe(schema.ModeQuote, schema.ExchangeNSECM, []string{"2", "missing"}); removed != 1 {
		t.Fatalf("removed %d, want 1", removed)
	}
	if len(r.Snapshot()) != 0 {
		t.Fatal("empty entry should be removed entirely")
	}
}

func TestEntriesSeparatedByModeAndExchange(t *testing.T) {
	r := NewRegistry()
	r.Subscribe(schema.ModeLTP, schema.ExchangeNSEFO, []string{"100"})
	r.Subscribe(schema.ModeQuote, schema.ExchangeNSEFO, []string{"100"})
	r.Subscribe(schema.ModeLTP, schema.ExchangeNSECM, []string{"100"})

	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("entries: got %d want 3", len(snap))
	}
	if r.Count() != 3 {
		t.Fatalf("count: got %d want 3", r.Count())
	}
}

func TestSnapshotCopyOnRead(t *testing.T) {
	r := NewRegistry()
	r.Subscribe(schema.ModeLTP, schema.ExchangeNSEFO, []string{"100", "200"})

	snap := r.Snapshot()
	snap[0].Tokens[0] = "mutated"

	fresh := r.Snapshot()
	if fresh[0].Tokens[0] != "100" {
		t.Fatalf("registry state mutated through snapshot: %v", fresh[0].Tokens)
	}
}
