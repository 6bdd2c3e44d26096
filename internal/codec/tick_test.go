package codec

import (
	"errors"
	"testing"

	"main/internal/schema"
	"main/pkg/exception"
)

func TestDecodeTickRoundTrip(t *testing.T) {
	orig := schema.Tick{
		Token:            "26009",
		Exchange:         schema.ExchangeNSEFO,
		Mode:             schema.ModeLTP,
		Seq:              981273,
		ExchangeTsMillis: 1700000000123,
		LastTradedPrice:  1955025,
	}

	frame := EncodeTick(nil, orig)
	if len(frame) != TickFrameSize {
		t.Fatalf("frame size: got %d want %d", len(frame), TickFrameSize)
	}

	decoded, err := DecodeTick(frame, 42)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	orig.RecvTsNano = 42
	if decoded != orig {
		t.Fatalf("round-trip mismatch: got %+v want %+v", decoded, orig)
	}
}

func TestDecodeTickScaledPrice(t *testing.T) {
	tick := schema.Tick{Token: "3045", Exchange: schema.ExchangeNSECM, Mode: schema.ModeQuote, LastTradedPrice: 1955025}
	decoded, err := DecodeTick(EncodeTick(nil, tick), 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := decoded.LastTradedPrice.Decimal(2).String(); got != "19550.25" {
		t.Fatalf("scaled price: got %s want 19550.25", got)
	}
}

func TestDecodeTickShortFrame(t *testing.T) {
	for _, n := range []int{0, 1, 26, 50} {
		_, err := DecodeTick(make([]byte, n), 0)
		if !errors.Is(err, exception.ErrFrameTooShort) {
			t.Fatalf("len %d: got %v want ErrFrameTooShort", n, err)
		}
	}
}

func TestDecodeTickBadMode(t *testing.T) {
	frame := EncodeTick(nil, schema.Tick{Token: "1", Exchange: schema.ExchangeNSECM, Mode: schema.ModeLTP})
	for _, mode := range []byte{0, 4, 255} {
		frame[0] = mode
		_, err := DecodeTick(frame, 0)
		if !errors.Is(err, exception.ErrInvalidSubscriptionMode) {
			t.Fatalf("mode %d: got %v want ErrInvalidSubscriptionMode", mode, err)
		}
	}
}

func TestDecodeTickTokenStopsAtNul(t *testing.T) {
	frame := EncodeTick(nil, schema.Tick{Token: "99926000", Exchange: schema.ExchangeNSEFO, Mode: schema.ModeSnapQuote})
	decoded, err := DecodeTick(frame, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Token != "99926000" {
		t.Fatalf("token: got %q", decoded.Token)
	}
}
