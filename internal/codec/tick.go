package codec

import (
	"encoding/binary"

	"main/internal/schema"
	"main/pkg/exception"
)

// TickFrameSize is the minimum binary frame length. Fields sit at fixed
// little-endian offsets:
//
//	[0]     subscription mode
//	[1]     exchange type
//	[2:27]  token, ASCII, NUL terminated
//	[27:35] sequence number, int64
//	[35:43] exchange timestamp, epoch millis, int64
//	[43:51] last traded price, scaled int64
const TickFrameSize = 51

const (
	tokenOffset = 2
	tokenEnd    = 27
	seqOffset   = 27
	tsOffset    = 35
	ltpOffset   = 43
)

// DecodeTick parses one binary feed frame. A short frame or an
// out-of-range mode byte is a protocol error: callers drop the frame and
// count it, never raise.
func DecodeTick(src []byte, recvTsNano int64) (schema.Tick, error) {
	if len(src) < TickFrameSize {
		return schema.Tick{}, exception.ErrFrameTooShort
	}
	mode := schema.SubscriptionMode(src[0])
	if !mode.Valid() {
		return schema.Tick{}, exception.ErrInvalidSubscriptionMode
	}
	return schema.Tick{
		Token:            decodeToken(src[tokenOffset:tokenEnd]),
		Exchange:         schema.ExchangeType(src[1]),
		Mode:             mode,
		Seq:              int64(binary.LittleEndian.Uint64(src[seqOffset:tsOffset])),
		ExchangeTsMillis: int64(binary.LittleEndian.Uint64(src[tsOffset:ltpOffset])),
		LastTradedPrice:  schema.Price(int64(binary.LittleEndian.Uint64(src[ltpOffset:TickFrameSize]))),
		RecvTsNano:       recvTsNano,
	}, nil
}

// EncodeTick serializes a tick into wire layout. Used by tests and replay
// tooling; the production path only decodes.
func EncodeTick(dst []byte, tick schema.Tick) []byte {
	if cap(dst) < TickFrameSize {
		dst = make([]byte, TickFrameSize)
	} else {
		dst = dst[:TickFrameSize]
		for i := range dst {
			dst[i] = 0
		}
	}
	dst[0] = byte(tick.Mode)
	dst[1] = byte(tick.Exchange)
	copy(dst[tokenOffset:tokenEnd], tick.Token)
	binary.LittleEndian.PutUint64(dst[seqOffset:tsOffset], uint64(tick.Seq))
	binary.LittleEndian.PutUint64(dst[tsOffset:ltpOffset], uint64(tick.ExchangeTsMillis))
	binary.LittleEndian.PutUint64(dst[ltpOffset:TickFrameSize], uint64(tick.LastTradedPrice))
	return dst
}

func decodeToken(src []byte) string {
	for i, b := range src {
		if b == 0 {
			return string(src[:i])
		}
	}
	return string(src)
}
