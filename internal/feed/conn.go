package feed

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/codec"
	"main/internal/obs"
	"main/internal/schema"
	"main/internal/subs"
	"main/pkg/backoff"
	"main/pkg/exception"
)

const heartbeatPayload = "ping"

// Config describes one logical feed connection.
type Config struct {
	URL string

	// Session credentials supplied by the auth collaborator.
	AuthToken  string
	APIKey     string
	ClientCode string
	FeedToken  string

	HeartbeatInterval time.Duration
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	Backoff           backoff.Policy

	// Decode-error rate that degrades connection health.
	DecodeErrorLimit  int
	DecodeErrorWindow time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.Backoff == (backoff.Policy{}) {
		cfg.Backoff = backoff.Default()
	}
	if cfg.DecodeErrorLimit <= 0 {
		cfg.DecodeErrorLimit = 16
	}
	if cfg.DecodeErrorWindow <= 0 {
		cfg.DecodeErrorWindow = 10 * time.Second
	}
	return cfg
}

// Connection owns the wire socket: it decodes inbound frames into ticks,
// keeps the heartbeat, and survives disconnects by replaying the full
// subscription registry before a session is considered ready.
type Connection struct {
	cfg      Config
	registry *subs.Registry
	queue    *bus.TickQueue
	metrics  *obs.Metrics

	state    atomic.Int32
	lastPong atomic.Int64

	writeMu sync.Mutex
	conn    *websocket.Conn

	decodeWindowStart time.Time
	decodeWindowCount int
}

// New builds a connection around the registry and tick queue. The registry
// is owned by the caller and survives connection restarts.
func New(cfg Config, registry *subs.Registry, queue *bus.TickQueue, metrics *obs.Metrics) *Connection {
	return &Connection{
		cfg:      cfg.withDefaults(),
		registry: registry,
		queue:    queue,
		metrics:  metrics,
	}
}

// State returns the current connection state.
func (c *Connection) State() State {
	return State(c.state.Load())
}

// Run connects and keeps the session alive until the context is done.
// Reconnects use the shared backoff policy; the attempt counter resets to
// zero on every successful CONNECTED transition.
func (c *Connection) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return nil
		}

		c.setState(StateConnecting)
		conn, err := c.dial(ctx)
		if err != nil {
			c.setState(StateDisconnected)
			logs.Warnf("feed dial failed (attempt %d), err: %+v", attempt+1, err)
			attempt++
			c.cfg.Backoff.Sleep(ctx, attempt)
			continue
		}

		c.writeMu.Lock()
		c.conn = conn
		c.writeMu.Unlock()

		// mandatory: a connection with no replayed subscriptions is
		// silently useless and must not be treated as ready
		if err := c.replay(); err != nil {
			logs.Errorf("subscription replay failed, err: %+v", err)
			_ = conn.Close()
			c.setState(StateDisconnected)
			attempt++
			c.cfg.Backoff.Sleep(ctx, attempt)
			continue
		}

		if attempt > 0 {
			c.metrics.IncReconnect()
		}
		attempt = 0
		c.lastPong.Store(time.Now().UnixNano())
		c.setState(StateConnected)

		err = c.runSession(ctx, conn)
		_ = conn.Close()
		c.setState(StateDisconnected)
		if ctx.Err() != nil {
			return nil
		}
		logs.Warnf("feed session ended, reconnecting, err: %+v", err)
		attempt++
		c.cfg.Backoff.Sleep(ctx, attempt)
	}
}

// Subscribe records the desired tokens and, when connected, sends the
// incremental subscribe request immediately.
func (c *Connection) Subscribe(mode schema.SubscriptionMode, exchange schema.ExchangeType, tokens []string) error {
	c.registry.Subscribe(mode, exchange, tokens)
	return c.sendRequest(codec.ActionSubscribe, mode, []schema.Subscription{
		{Mode: mode, Exchange: exchange, Tokens: tokens},
	})
}

// Unsubscribe removes the tokens from the desired state and notifies the
// venue when connected.
func (c *Connection) Unsubscribe(mode schema.SubscriptionMode, exchange schema.ExchangeType, tokens []string) error {
	c.registry.Unsubscribe(mode, exchange, tokens)
	return c.sendRequest(codec.ActionUnsubscribe, mode, []schema.Subscription{
		{Mode: mode, Exchange: exchange, Tokens: tokens},
	})
}

func (c *Connection) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	header := http.Header{}
	if c.cfg.AuthToken != "" {
		header.Set("Authorization", c.cfg.AuthToken)
	}
	if c.cfg.APIKey != "" {
		header.Set("x-api-key", c.cfg.APIKey)
	}
	if c.cfg.ClientCode != "" {
		header.Set("x-client-code", c.cfg.ClientCode)
	}
	if c.cfg.FeedToken != "" {
		header.Set("x-feed-token", c.cfg.FeedToken)
	}

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(exception.ErrHandshakeFailed, "status %s: %v", resp.Status, err)
		}
		return nil, err
	}
	return conn, nil
}

// replay re-sends the full registry snapshot, one batched request per
// mode. The request content is byte-identical for identical snapshots.
func (c *Connection) replay() error {
	snapshot := c.registry.Snapshot()
	if len(snapshot) == 0 {
		logs.Warn("feed connected with an empty subscription registry")
		return nil
	}

	byMode := make(map[schema.SubscriptionMode][]schema.Subscription)
	order := make([]schema.SubscriptionMode, 0, 3)
	for _, sub := range snapshot {
		if _, ok := byMode[sub.Mode]; !ok {
			order = append(order, sub.Mode)
		}
		byMode[sub.Mode] = append(byMode[sub.Mode], sub)
	}

	for _, mode := range order {
		payload, err := codec.EncodeRequest(uuid.NewString(), codec.ActionSubscribe, mode, byMode[mode])
		if err != nil {
			return err
		}
		if err := c.write(websocket.TextMessage, payload); err != nil {
			return err
		}
	}
	logs.Infof("replayed %d subscription entries across %d modes", len(snapshot), len(order))
	return nil
}

func (c *Connection) sendRequest(action int, mode schema.SubscriptionMode, subscriptions []schema.Subscription) error {
	if state := c.State(); state != StateConnected && state != StateDegraded {
		// desired state is recorded; the next replay will deliver it
		return nil
	}
	payload, err := codec.EncodeRequest(uuid.NewString(), action, mode, subscriptions)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, payload)
}

func (c *Connection) write(msgType int, payload []byte) error {
	c.writeMu.Lock()
	conn := c.conn
	if conn == nil {
		c.writeMu.Unlock()
		return exception.ErrNotConnected
	}
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	err := conn.WriteMessage(msgType, payload)
	c.writeMu.Unlock()
	return err
}

func (c *Connection) runSession(ctx context.Context, conn *websocket.Conn) error {
	conn.SetPongHandler(func(string) error {
		c.lastPong.Store(time.Now().UnixNano())
		if c.State() == StateDegraded {
			c.setState(StateConnected)
		}
		return nil
	})

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go c.readLoop(sessionCtx, conn, errCh)

	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	missed := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-ticker.C:
			gap := time.Duration(time.Now().UnixNano() - c.lastPong.Load())
			if gap > 2*c.cfg.HeartbeatInterval {
				missed++
				c.metrics.IncHeartbeatGap()
				c.setState(StateDegraded)
				if missed >= 3 {
					return errors.Wrap(exception.ErrConnectionClosed, "three consecutive heartbeats missed")
				}
			} else {
				missed = 0
			}
			if err := c.ping(conn); err != nil {
				return err
			}
		}
	}
}

func (c *Connection) ping(conn *websocket.Conn) error {
	c.writeMu.Lock()
	err := conn.WriteControl(websocket.PingMessage, []byte(heartbeatPayload), time.Now().Add(c.cfg.WriteTimeout))
	c.writeMu.Unlock()
	return err
}

// readLoop decodes frames synchronously: no I/O and no locks inside the
// decode step. Malformed frames are counted and dropped, never raised.
func (c *Connection) readLoop(ctx context.Context, conn *websocket.Conn, errCh chan<- error) {
	for {
		if ctx.Err() != nil {
			return
		}
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			select {
			case errCh <- err:
			default:
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			tick, err := codec.DecodeTick(payload, time.Now().UnixNano())
			if err != nil {
				c.metrics.IncDecodeError()
				c.noteDecodeError()
				continue
			}
			if err := c.queue.Publish(tick); err != nil {
				select {
				case errCh <- err:
				default:
				}
				return
			}
		case websocket.TextMessage:
			// subscribe acks and venue notices
			logs.Infof("feed message: %s", payload)
		}
	}
}

// noteDecodeError degrades health when the error rate exceeds the limit
// within the sliding window. The socket stays up.
func (c *Connection) noteDecodeError() {
	now := time.Now()
	if c.decodeWindowStart.IsZero() || now.Sub(c.decodeWindowStart) > c.cfg.DecodeErrorWindow {
		c.decodeWindowStart = now
		c.decodeWindowCount = 0
	}
	c.decodeWindowCount++
	if c.decodeWindowCount > c.cfg.DecodeErrorLimit && c.State() == StateConnected {
		logs.Warnf("decode error rate exceeded (%d in window), degrading health", c.decodeWindowCount)
		c.setState(StateDegraded)
	}
}

func (c *Connection) setState(next State) {
	prev := State(c.state.Swap(int32(next)))
	if prev != next {
		logs.Infof("feed state %s -> %s", prev, next)
	}
}
