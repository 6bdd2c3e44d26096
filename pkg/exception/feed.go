package exception

import "github.com/yanun0323/errors"

// Connection errors. Always retried with backoff, never fatal.
var (
	ErrConnectionClosed = errors.New("feed: connection closed")
	ErrNotConnected     = errors.New("feed: not connected")
	ErrHandshakeFailed  = errors.New("feed: handshake failed")
)

// Protocol errors. The frame is dropped and counted, never retried.
var (
	ErrFrameTooShort           = errors.New("feed: frame shorter than tick size")
	ErrInvalidSubscriptionMode = errors.New("feed: subscription mode outside protocol range")
)
