package backoff

import (
	"context"
	"testing"
	"time"
)

func TestNextDoublesAndCaps(t *testing.T) {
	p := Policy{Min: time.Second, Max: 60 * time.Second, Factor: 2}

	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}
	for i, w := range want {
		got := p.Next(i + 1)
		if got != w {
			t.Fatalf("attempt %d: got %v want %v", i+1, got, w)
		}
	}
}

func TestNextZeroAttemptTreatedAsFirst(t *testing.T) {
	p := Default()
	if got := p.Next(0); got != time.Second {
		t.Fatalf("got %v want 1s", got)
	}
}

func TestSleepCancellable(t *testing.T) {
	p := Policy{Min: time.Minute, Max: time.Minute, Factor: 2}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Sleep(ctx, 1)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sleep did not honor context cancellation")
	}
}
