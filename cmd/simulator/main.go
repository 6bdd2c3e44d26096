// Command simulator serves the feed wire protocol for local development:
// it accepts subscribe requests and streams synthetic binary ticks for
// every subscribed token.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"

	"main/internal/codec"
	"main/internal/schema"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

type subscribeRequest struct {
	CorrelationID string `json:"correlationID"`
	Action        int    `json:"action"`
	Params        struct {
		Mode      uint8 `json:"mode"`
		TokenList []struct {
			ExchangeType uint8    `json:"exchangeType"`
			Tokens       []string `json:"tokens"`
		} `json:"tokenList"`
	} `json:"params"`
}

type session struct {
	conn *websocket.Conn

	mu      sync.Mutex
	active  map[string]schema.Tick
	writeMu sync.Mutex
}

func main() {
	addr := flag.String("addr", ":8765", "Listen address")
	interval := flag.Duration("interval", 200*time.Millisecond, "Tick interval per token")
	basePrice := flag.Int64("base-price", 1950000, "Starting scaled price")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		logs.Infof("session from %s (client=%s)", r.RemoteAddr, r.Header.Get("x-client-code"))
		sess := &session{conn: conn, active: make(map[string]schema.Tick)}
		go sess.emit(ctx, *interval, *basePrice)
		sess.serve()
	})

	server := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logs.Infof("simulator listening on %s", *addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logs.Fatalf("simulator failed, err: %+v", err)
	}
}

func (s *session) serve() {
	defer s.conn.Close()
	for {
		msgType, payload, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var req subscribeRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			logs.Errorf("unmarshal subscribe request, err: %+v", err)
			continue
		}
		s.apply(req)
	}
}

func (s *session) apply(req subscribeRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, list := range req.Params.TokenList {
		for _, token := range list.Tokens {
			key := fmt.Sprintf("%d/%s", list.ExchangeType, token)
			if req.Action == codec.ActionSubscribe {
				s.active[key] = schema.Tick{
					Token:    token,
					Exchange: schema.ExchangeType(list.ExchangeType),
					Mode:     schema.SubscriptionMode(req.Params.Mode),
				}
			} else {
				delete(s.active, key)
			}
		}
	}
	logs.Infof("correlation %s: %d active tokens", req.CorrelationID, len(s.active))
}

// emit streams one frame per active token each interval. Prices follow a
// bounded random walk so position marks move without drifting away.
func (s *session) emit(ctx context.Context, interval time.Duration, basePrice int64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prices := make(map[string]int64)
	var seq int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		batch := make([]schema.Tick, 0, len(s.active))
		for key, tick := range s.active {
			price, ok := prices[key]
			if !ok {
				price = basePrice
			}
			price += rand.Int63n(201) - 100
			prices[key] = price

			seq++
			tick.Seq = seq
			tick.ExchangeTsMillis = time.Now().UnixMilli()
			tick.LastTradedPrice = schema.Price(price)
			batch = append(batch, tick)
		}
		s.mu.Unlock()

		for _, tick := range batch {
			frame := codec.EncodeTick(nil, tick)
			s.writeMu.Lock()
			err := s.conn.WriteMessage(websocket.BinaryMessage, frame)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
