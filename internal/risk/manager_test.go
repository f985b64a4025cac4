package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
)

func intent(side schema.OrderSide, price schema.Price, qty schema.Quantity) schema.OrderIntent {
	return schema.OrderIntent{
		OrderID:      1,
		SignalID:     1,
		InstrumentID: 1,
		Side:         side,
		Type:         schema.OrderTypeLimit,
		Price:        price,
		Qty:          qty,
	}
}

func TestEvaluatePipeline(t *testing.T) {
	cfg := Config{
		MaxOrderQty:      100,
		MaxOrderNotional: 50_000,
		MaxPosition:      150,
		MaxGrossExposure: 300,
		MaxDailyTrades:   5,
		MaxDrawdown:      1_000,
	}
	mgr := NewManager(cfg)

	tests := []struct {
		name   string
		intent schema.OrderIntent
		view   func() View
		action Action
		reason schema.RejectReason
		halt   schema.HaltReason
	}{
		{
			name:   "allow",
			intent: intent(schema.OrderSideBuy, 100, 50),
			view:   func() View { return View{Kill: NewKillSwitchState(0)} },
			action: ActionAllow,
			reason: schema.RejectReasonNone,
		},
		{
			name:   "manual halt outranks everything",
			intent: intent(schema.OrderSideBuy, 100, 50),
			view: func() View {
				kill := NewKillSwitchState(0)
				kill.SetManualHalt(true)
				return View{Kill: kill}
			},
			action: ActionDeny,
			reason: schema.RejectReasonManualHalt,
			halt:   schema.HaltReasonManual,
		},
		{
			name:   "drawdown trips the kill switch",
			intent: intent(schema.OrderSideBuy, 100, 50),
			view: func() View {
				kill := NewKillSwitchState(0)
				kill.ObserveEquity(2_000)
				kill.ObserveEquity(500)
				return View{Kill: kill}
			},
			action: ActionDeny,
			reason: schema.RejectReasonDrawdown,
			halt:   schema.HaltReasonDrawdown,
		},
		{
			name:   "daily cap denies without halting",
			intent: intent(schema.OrderSideBuy, 100, 50),
			view: func() View {
				kill := NewKillSwitchState(0)
				for i := 0; i < 5; i++ {
					kill.RecordTrade()
				}
				return View{Kill: kill}
			},
			action: ActionDeny,
			reason: schema.RejectReasonDailyLimit,
		},
		{
			name:   "order qty cap",
			intent: intent(schema.OrderSideBuy, 100, 101),
			view:   func() View { return View{Kill: NewKillSwitchState(0)} },
			action: ActionDeny,
			reason: schema.RejectReasonMaxQty,
		},
		{
			name:   "notional cap",
			intent: intent(schema.OrderSideBuy, 1_000, 51),
			view:   func() View { return View{Kill: NewKillSwitchState(0)} },
			action: ActionDeny,
			reason: schema.RejectReasonMaxNotional,
		},
		{
			name:   "position limit on resulting position",
			intent: intent(schema.OrderSideBuy, 100, 60),
			view: func() View {
				return View{Position: 100, GrossExposure: 100, Kill: NewKillSwitchState(0)}
			},
			action: ActionDeny,
			reason: schema.RejectReasonPositionLimit,
		},
		{
			name:   "sell that reduces exposure is allowed at the limit",
			intent: intent(schema.OrderSideSell, 100, 60),
			view: func() View {
				return View{Position: 150, GrossExposure: 150, Kill: NewKillSwitchState(0)}
			},
			action: ActionAllow,
			reason: schema.RejectReasonNone,
		},
		{
			name:   "aggregate exposure cap",
			intent: intent(schema.OrderSideBuy, 100, 80),
			view: func() View {
				return View{Position: 0, GrossExposure: 280, Kill: NewKillSwitchState(0)}
			},
			action: ActionDeny,
			reason: schema.RejectReasonAggregateLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := mgr.Evaluate(tt.intent, tt.view())
			assert.Equal(t, tt.action, decision.Action)
			assert.Equal(t, tt.reason, decision.Reason)
			assert.Equal(t, tt.halt, decision.Halt)
		})
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	mgr := NewManager(Config{MaxOrderQty: 10})
	in := intent(schema.OrderSideBuy, 100, 11)
	view := View{Kill: NewKillSwitchState(0)}

	first := mgr.Evaluate(in, view)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, mgr.Evaluate(in, view))
	}
}

func TestPerInstrumentLimitOverridesGlobal(t *testing.T) {
	mgr := NewManager(Config{
		MaxPosition:    100,
		PositionLimits: map[schema.InstrumentID]schema.Quantity{2: 10},
	})

	in := intent(schema.OrderSideBuy, 100, 50)
	in.InstrumentID = 2
	decision := mgr.Evaluate(in, View{Kill: NewKillSwitchState(0)})
	require.Equal(t, ActionDeny, decision.Action)
	require.Equal(t, schema.RejectReasonPositionLimit, decision.Reason)

	in.InstrumentID = 1
	decision = mgr.Evaluate(in, View{Kill: NewKillSwitchState(0)})
	require.Equal(t, ActionAllow, decision.Action)
}

func TestNotionalOverflowDenies(t *testing.T) {
	mgr := NewManager(Config{})
	in := intent(schema.OrderSideBuy, schema.Price(1<<40), schema.Quantity(1<<40))
	decision := mgr.Evaluate(in, View{})
	require.Equal(t, ActionDeny, decision.Action)
	require.Equal(t, schema.RejectReasonMaxNotional, decision.Reason)
}

func TestKillSwitchSessionRoll(t *testing.T) {
	day1 := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC).UnixNano()
	day2 := time.Date(2024, 3, 2, 0, 0, 1, 0, time.UTC).UnixNano()

	kill := NewKillSwitchState(day1)
	kill.RecordTrade()
	kill.ObserveEquity(1_000)
	kill.ObserveEquity(100)
	kill.SetManualHalt(true)

	require.False(t, kill.MaybeRoll(day1+int64(time.Hour)))
	require.Equal(t, uint32(1), kill.DailyTrades())

	require.True(t, kill.MaybeRoll(day2))
	assert.Equal(t, uint32(0), kill.DailyTrades())
	assert.Equal(t, schema.Notional(0), kill.Drawdown())
	// Manual halt is operator state, never cleared by a session boundary.
	assert.True(t, kill.ManualHalt())
}
