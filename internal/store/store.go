package store

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"gorm.io/gorm"

	"main/internal/bus"
	"main/internal/codec"
	"main/internal/schema"
	"main/internal/wal"
	"main/pkg/conn"
)

// TradeRow mirrors one executed trade for offline queries. The durable
// event log stays the system of record; this table is a convenience view.
type TradeRow struct {
	Seq          uint64 `gorm:"primaryKey"`
	TradeID      uint64 `gorm:"index"`
	OrderID      uint64 `gorm:"index"`
	InstrumentID uint32
	Side         uint16
	Price        int64
	Qty          int64
	Fee          int64
	TsNano       int64
}

func (TradeRow) TableName() string { return "trades" }

// RejectRow mirrors one rejected or superseded signal.
type RejectRow struct {
	Seq          uint64 `gorm:"primaryKey"`
	SignalID     uint64 `gorm:"index"`
	OrderID      uint64
	InstrumentID uint32
	Reason       uint16
	TsNano       int64
}

func (RejectRow) TableName() string { return "rejects" }

// HaltRow mirrors one kill-switch trip.
type HaltRow struct {
	Seq        uint64 `gorm:"primaryKey"`
	Reason     uint16
	DailyCount uint32
	Drawdown   int64
	TsNano     int64
}

func (HaltRow) TableName() string { return "halts" }

// Mirror persists the audit-relevant event stream into postgres. It feeds
// off the broadcast rail, so the trading path never waits on the database;
// gaps from dropped broadcasts are recoverable from the durable log.
type Mirror struct {
	client *conn.Client
}

// NewMirror opens the database and migrates the mirror tables.
func NewMirror(opt conn.Option) (*Mirror, error) {
	client, err := conn.New(opt)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := client.DB().AutoMigrate(&TradeRow{}, &RejectRow{}, &HaltRow{}); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	return &Mirror{client: client}, nil
}

// Close releases the connection pool.
func (m *Mirror) Close() error {
	return m.client.Close()
}

// DB exposes the underlying handle for queries.
func (m *Mirror) DB() *gorm.DB {
	return m.client.DB()
}

// Drain subscribes to the trade, order and control topics and persists
// events until the context is cancelled or the process shuts down.
func (m *Mirror) Drain(ctx context.Context, b *bus.Bus) (stop func(), err error) {
	trades, cancelTrades, err := b.Subscribe(bus.TopicTrades, 256)
	if err != nil {
		return nil, err
	}
	orders, cancelOrders, err := b.Subscribe(bus.TopicOrders, 256)
	if err != nil {
		cancelTrades()
		return nil, err
	}
	control, cancelControl, err := b.Subscribe(bus.TopicControl, 16)
	if err != nil {
		cancelTrades()
		cancelOrders()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case e, ok := <-trades.Events():
				if !ok {
					return
				}
				m.apply(e)
			case e, ok := <-orders.Events():
				if !ok {
					return
				}
				m.apply(e)
			case e, ok := <-control.Events():
				if !ok {
					return
				}
				m.apply(e)
			}
		}
	}()

	stop = func() {
		cancelTrades()
		cancelOrders()
		cancelControl()
		<-done
	}
	return stop, nil
}

// Apply persists a single event. Unknown or non-audit types are ignored.
func (m *Mirror) Apply(e bus.Event) error {
	switch e.Header.Type {
	case schema.EventTrade:
		trade, ok := codec.DecodeTrade(e.Payload)
		if !ok {
			return errors.Errorf("decode trade: seq=%d", e.Header.Seq)
		}
		return m.client.DB().Create(&TradeRow{
			Seq:          e.Header.Seq,
			TradeID:      trade.TradeID,
			OrderID:      trade.OrderID,
			InstrumentID: trade.InstrumentID,
			Side:         uint16(trade.Side),
			Price:        int64(trade.Price),
			Qty:          int64(trade.Qty),
			Fee:          int64(trade.Fee),
			TsNano:       trade.TsNano,
		}).Error
	case schema.EventReject:
		rej, ok := codec.DecodeReject(e.Payload)
		if !ok {
			return errors.Errorf("decode reject: seq=%d", e.Header.Seq)
		}
		return m.client.DB().Create(&RejectRow{
			Seq:          e.Header.Seq,
			SignalID:     rej.SignalID,
			OrderID:      rej.OrderID,
			InstrumentID: rej.InstrumentID,
			Reason:       uint16(rej.Reason),
			TsNano:       rej.TsNano,
		}).Error
	case schema.EventHalt:
		halt, ok := codec.DecodeHalt(e.Payload)
		if !ok {
			return errors.Errorf("decode halt: seq=%d", e.Header.Seq)
		}
		return m.client.DB().Create(&HaltRow{
			Seq:        e.Header.Seq,
			Reason:     uint16(halt.Reason),
			DailyCount: halt.DailyCount,
			Drawdown:   int64(halt.Drawdown),
			TsNano:     halt.TsNano,
		}).Error
	default:
		return nil
	}
}

func (m *Mirror) apply(e bus.Event) {
	if err := m.Apply(e); err != nil {
		logs.Errorf("mirror apply seq %d, err: %+v", e.Header.Seq, err)
	}
}

// Backfill replays the durable log into the mirror from a cursor, filling
// any gaps left by dropped broadcasts.
func (m *Mirror) Backfill(ctx context.Context, cfg wal.ScanConfig) error {
	return bus.RecoverAll(ctx, cfg, m.Apply)
}
