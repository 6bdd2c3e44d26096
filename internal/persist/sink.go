package persist

import (
	"context"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/yanun0323/logs"

	"main/internal/schema"
	"main/internal/state"
)

// OrderRecord is the stored row for one terminal order.
type OrderRecord struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	OrderID     string `gorm:"size:64;uniqueIndex"`
	BrokerID    string `gorm:"size:64;index"`
	Symbol      string `gorm:"size:64;index"`
	Side        string `gorm:"size:8"`
	Type        string `gorm:"size:8"`
	Status      string `gorm:"size:16"`
	Qty         int64
	Price       string `gorm:"size:32"`
	FilledQty   int64
	FilledPrice string `gorm:"size:32"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PositionRecord is a point-in-time snapshot row for one symbol.
type PositionRecord struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	Symbol        string    `gorm:"size:64;index"`
	Qty           int64
	AvgPrice      string    `gorm:"size:32"`
	RealizedPnl   string    `gorm:"size:32"`
	UnrealizedPnl string    `gorm:"size:32"`
	TakenAt       time.Time `gorm:"index"`
}

// Sink persists terminal orders and periodic position snapshots. Writes
// never block the caller: records go through a bounded channel and a
// single writer goroutine; overflow is counted and dropped.
type Sink struct {
	db      *gorm.DB
	orders  chan OrderRecord
	closed  chan struct{}
	dropped atomic.Uint64
}

// NewSink migrates the schema and starts accepting records. Run must be
// called for records to reach the database.
func NewSink(db *gorm.DB, queueSize int) (*Sink, error) {
	if err := db.AutoMigrate(&OrderRecord{}, &PositionRecord{}); err != nil {
		return nil, err
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Sink{
		db:     db,
		orders: make(chan OrderRecord, queueSize),
		closed: make(chan struct{}),
	}, nil
}

// OfferOrder enqueues a terminal order without blocking.
func (s *Sink) OfferOrder(order schema.Order) {
	record := OrderRecord{
		OrderID:     order.ID,
		BrokerID:    order.BrokerID,
		Symbol:      order.Symbol,
		Side:        order.Side.String(),
		Type:        order.Type.String(),
		Status:      order.Status.String(),
		Qty:         int64(order.Qty),
		Price:       order.Price.String(),
		FilledQty:   int64(order.FilledQty),
		FilledPrice: order.FilledPrice.String(),
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
	select {
	case s.orders <- record:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns how many records overflow discarded.
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

// Run drains the order channel and snapshots the book on the interval
// until the context is done. A zero interval disables snapshots.
func (s *Sink) Run(ctx context.Context, book *state.Book, snapshotInterval time.Duration) {
	defer close(s.closed)

	var snapTick <-chan time.Time
	if snapshotInterval > 0 {
		ticker := time.NewTicker(snapshotInterval)
		defer ticker.Stop()
		snapTick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.drain()
			return
		case record := <-s.orders:
			if err := s.db.Create(&record).Error; err != nil {
				logs.Errorf("persist order %s failed, err: %+v", record.OrderID, err)
			}
		case <-snapTick:
			s.snapshot(book)
		}
	}
}

// drain flushes whatever is queued at shutdown.
func (s *Sink) drain() {
	for {
		select {
		case record := <-s.orders:
			if err := s.db.Create(&record).Error; err != nil {
				logs.Errorf("persist order %s failed, err: %+v", record.OrderID, err)
			}
		default:
			return
		}
	}
}

func (s *Sink) snapshot(book *state.Book) {
	positions := book.Snapshot()
	if len(positions) == 0 {
		return
	}
	now := time.Now()
	records := make([]PositionRecord, 0, len(positions))
	for _, pos := range positions {
		records = append(records, PositionRecord{
			Symbol:        pos.Symbol,
			Qty:           int64(pos.Qty),
			AvgPrice:      pos.AvgPrice.String(),
			RealizedPnl:   pos.RealizedPnl.String(),
			UnrealizedPnl: pos.UnrealizedPnl.String(),
			TakenAt:       now,
		})
	}
	if err := s.db.Create(&records).Error; err != nil {
		logs.Errorf("persist position snapshot failed, err: %+v", err)
	}
}

// NopSink satisfies the order sink when persistence is disabled.
type NopSink struct{}

func (NopSink) OfferOrder(schema.Order) {}
