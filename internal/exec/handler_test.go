package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"main/internal/bus"
	"main/internal/obs"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/state"
	"main/internal/wal"
)

type stubClock struct{ now int64 }

func (c *stubClock) Now() int64 { return c.now }

type failingBroker struct{}

func (failingBroker) Name() string { return "failing" }

func (failingBroker) Execute(context.Context, schema.OrderIntent) (schema.Trade, bool, error) {
	return schema.Trade{}, false, ErrBrokerRejected
}

func (failingBroker) Cancel(context.Context, uint64) error { return ErrBrokerRejected }

func (failingBroker) Positions(context.Context) ([]BrokerPosition, error) {
	return nil, ErrBrokerRejected
}

type handlerFixture struct {
	handler *Handler
	tracker *state.Tracker
	kill    *risk.KillSwitchState
	bus     *bus.Bus
	writer  *wal.Writer
	metrics *obs.Metrics
	walDir  string
}

func newFixture(t *testing.T, cfg Config, riskCfg risk.Config, broker Broker) *handlerFixture {
	t.Helper()
	dir := t.TempDir()
	walCfg := wal.DefaultConfig(dir)
	walCfg.SegmentMaxDuration = 0
	w, err := wal.NewWriter(walCfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	metrics := obs.NewMetrics()
	b := bus.New(w, 1, metrics)
	t.Cleanup(b.Close)

	clk := &stubClock{now: 1_700_000_000_000_000_000}
	tracker := state.NewTracker()
	kill := risk.NewKillSwitchState(clk.now)
	if broker == nil {
		broker = NewPaperBroker(clk, 0)
	}
	handler := NewHandler(cfg, risk.NewManager(riskCfg), kill, tracker, broker, b, clk, metrics)
	return &handlerFixture{
		handler: handler,
		tracker: tracker,
		kill:    kill,
		bus:     b,
		writer:  w,
		metrics: metrics,
		walDir:  dir,
	}
}

func signal(id uint64, kind schema.SignalKind, confidence uint16) schema.Signal {
	return schema.Signal{
		SignalID:     id,
		StrategyID:   1,
		InstrumentID: 1,
		Kind:         kind,
		Confidence:   confidence,
		TsNano:       1_700_000_000_000_000_000,
	}
}

func TestPaperFillThenPositionLimitReject(t *testing.T) {
	fx := newFixture(t, Config{BaseQty: 60}, risk.Config{MaxPosition: 100}, nil)
	ctx := context.Background()

	// 60 * 8334 / 10000 = 50: fills and brings the position to 50.
	trade, filled, err := fx.handler.Handle(ctx, signal(1, schema.SignalEnterLong, 8334), 1000)
	require.NoError(t, err)
	require.True(t, filled)
	assert.Equal(t, schema.Quantity(50), trade.Qty)
	assert.Equal(t, trade.OrderID, trade.TradeID)
	assert.Equal(t, schema.Price(1000), trade.Price)
	fx.tracker.Apply(trade)

	// Full confidence asks for 60 more; 50+60 breaches the 100 limit.
	_, filled, err = fx.handler.Handle(ctx, signal(2, schema.SignalEnterLong, schema.ConfidenceScale), 1000)
	require.ErrorIs(t, err, ErrPositionLimitExceeded)
	require.False(t, filled)
	assert.Equal(t, schema.Quantity(50), fx.tracker.Position(1).Qty)

	snap := fx.metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.RejectCounts[schema.RejectReasonPositionLimit])
}

func TestManualHaltDeniesAndRecordsHaltEvent(t *testing.T) {
	fx := newFixture(t, Config{BaseQty: 10}, risk.Config{}, nil)
	fx.kill.SetManualHalt(true)

	_, filled, err := fx.handler.Handle(context.Background(), signal(1, schema.SignalEnterLong, schema.ConfidenceScale), 1000)
	require.True(t, errors.Is(err, ErrKillSwitchTripped), "err = %v, want ErrKillSwitchTripped", err)
	require.False(t, filled)

	require.NoError(t, fx.writer.Sync())
	var types []schema.EventType
	err = bus.RecoverAll(context.Background(), wal.ScanConfig{Dir: fx.walDir}, func(e bus.Event) error {
		types = append(types, e.Header.Type)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []schema.EventType{schema.EventReject, schema.EventHalt}, types)
}

func TestDailyTradeCapBlocksSession(t *testing.T) {
	fx := newFixture(t, Config{BaseQty: 10}, risk.Config{MaxDailyTrades: 1}, nil)
	ctx := context.Background()

	_, filled, err := fx.handler.Handle(ctx, signal(1, schema.SignalEnterLong, schema.ConfidenceScale), 1000)
	require.NoError(t, err)
	require.True(t, filled)

	_, filled, err = fx.handler.Handle(ctx, signal(2, schema.SignalEnterLong, schema.ConfidenceScale), 1000)
	require.ErrorIs(t, err, ErrDailyLimitExceeded)
	require.False(t, filled)
}

func TestExitWithNoPositionIsNoOp(t *testing.T) {
	fx := newFixture(t, Config{BaseQty: 10}, risk.Config{}, nil)

	before := fx.bus.LastSeq()
	_, filled, err := fx.handler.Handle(context.Background(), signal(1, schema.SignalExit, 0), 1000)
	require.NoError(t, err)
	require.False(t, filled)
	assert.Equal(t, before, fx.bus.LastSeq())
}

func TestExitFlattensPosition(t *testing.T) {
	fx := newFixture(t, Config{BaseQty: 10}, risk.Config{}, nil)
	ctx := context.Background()

	trade, filled, err := fx.handler.Handle(ctx, signal(1, schema.SignalEnterShort, schema.ConfidenceScale), 1000)
	require.NoError(t, err)
	require.True(t, filled)
	fx.tracker.Apply(trade)
	require.Equal(t, schema.Quantity(-10), fx.tracker.Position(1).Qty)

	trade, filled, err = fx.handler.Handle(ctx, signal(2, schema.SignalExit, 0), 1000)
	require.NoError(t, err)
	require.True(t, filled)
	assert.Equal(t, schema.OrderSideBuy, trade.Side)
	assert.Equal(t, schema.Quantity(10), trade.Qty)
	fx.tracker.Apply(trade)
	assert.Equal(t, schema.Quantity(0), fx.tracker.Position(1).Qty)
}

func TestBelowMinQtyIsNoOp(t *testing.T) {
	fx := newFixture(t, Config{BaseQty: 100, MinQty: 10}, risk.Config{}, nil)

	_, filled, err := fx.handler.Handle(context.Background(), signal(1, schema.SignalEnterLong, 500), 1000)
	require.NoError(t, err)
	require.False(t, filled)
}

func TestDryRunAcksWithoutFilling(t *testing.T) {
	fx := newFixture(t, Config{BaseQty: 10}, risk.Config{}, DryRunBroker{})

	_, filled, err := fx.handler.Handle(context.Background(), signal(1, schema.SignalEnterLong, schema.ConfidenceScale), 1000)
	require.NoError(t, err)
	require.False(t, filled)

	order, ok := fx.handler.Book().Order(1)
	require.True(t, ok)
	assert.Equal(t, OrderStateAcked, order.State)
}

func TestBrokerFailureIsAuditedAsReject(t *testing.T) {
	fx := newFixture(t, Config{BaseQty: 10}, risk.Config{}, failingBroker{})

	_, filled, err := fx.handler.Handle(context.Background(), signal(1, schema.SignalEnterLong, schema.ConfidenceScale), 1000)
	require.True(t, errors.Is(err, ErrBrokerRejected), "err = %v, want ErrBrokerRejected", err)
	require.False(t, filled)

	order, ok := fx.handler.Book().Order(1)
	require.True(t, ok)
	assert.Equal(t, OrderStateRejected, order.State)
	snap := fx.metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.RejectCounts[schema.RejectReasonBroker])
}

func TestPaperFeeBps(t *testing.T) {
	clk := &stubClock{now: 1}
	broker := NewPaperBroker(clk, 10)
	trade, filled, err := broker.Execute(context.Background(), schema.OrderIntent{
		OrderID: 1, InstrumentID: 1, Side: schema.OrderSideBuy, Price: 1_000_000, Qty: 100,
	})
	require.NoError(t, err)
	require.True(t, filled)
	assert.Equal(t, schema.Fee(100_000), trade.Fee)
}
