package exception

import "github.com/yanun0323/errors"

// Broker and lifecycle errors. Surfaced to the caller; an order that never
// reached OPEN is reverted to REJECTED.
var (
	ErrOrderUnknown   = errors.New("order: not found")
	ErrOrderNotOpen   = errors.New("order: not open")
	ErrOrderDuplicate = errors.New("order: already exists")
	ErrBrokerPlace    = errors.New("order: broker placement failed")
	ErrBrokerCancel   = errors.New("order: broker cancel failed")
	ErrInvalidIntent  = errors.New("order: invalid intent")
)

// Queue errors.
var (
	ErrQueueClosed = errors.New("queue: closed")
	ErrSinkClosed  = errors.New("persist: sink closed")
)
