package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"main/internal/schema"
	"main/pkg/exception"
)

func TestPublishDropsOldestWhenFull(t *testing.T) {
	q := NewTickQueue(2)

	for seq := int64(1); seq <= 4; seq++ {
		if err := q.Publish(schema.Tick{Token: "100", Seq: seq}); err != nil {
			t.Fatalf("publish seq %d: %v", seq, err)
		}
	}

	if q.Drops() != 2 {
		t.Fatalf("drops: got %d want 2", q.Drops())
	}

	var got []int64
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		q.Run(ctx, func(tick schema.Tick) {
			got = append(got, tick.Seq)
			if len(got) == 2 {
				cancel()
			}
		})
	}()
	<-ctx.Done()

	if len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Fatalf("surviving ticks: got %v want [3 4]", got)
	}
}

func TestPublishAfterClose(t *testing.T) {
	q := NewTickQueue(1)
	q.Close()
	if err := q.Publish(schema.Tick{Token: "1"}); !errors.Is(err, exception.ErrQueueClosed) {
		t.Fatalf("got %v want ErrQueueClosed", err)
	}
}

func TestCloseDuringPublishDoesNotPanic(t *testing.T) {
	q := NewTickQueue(1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		var seq int64
		for {
			seq++
			if err := q.Publish(schema.Tick{Token: "100", Seq: seq}); err != nil {
				if !errors.Is(err, exception.ErrQueueClosed) {
					t.Errorf("got %v want ErrQueueClosed", err)
				}
				return
			}
		}
	}()

	time.Sleep(time.Millisecond)
	q.Close()
	<-done
}

func TestRunStopsOnClose(t *testing.T) {
	q := NewTickQueue(1)
	done := make(chan struct{})
	go func() {
		q.Run(context.Background(), func(schema.Tick) {})
		close(done)
	}()
	q.Close()
	<-done
}
