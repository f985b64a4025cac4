package exec

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/codec"
	"main/internal/obs"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/state"
)

var (
	ErrKillSwitchTripped     = errors.New("kill switch tripped")
	ErrDailyLimitExceeded    = errors.New("daily trade limit exceeded")
	ErrPositionLimitExceeded = errors.New("position limit exceeded")
	ErrOrderLimitExceeded    = errors.New("order limit exceeded")
)

// Config controls order construction.
type Config struct {
	// BaseQty is the order size at full confidence. Confidence scales it
	// down linearly; a scaled size below MinQty becomes a no-op.
	BaseQty       schema.Quantity
	MinQty        schema.Quantity
	OrderType     schema.OrderType
	BrokerTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.OrderType == schema.OrderTypeUnknown {
		c.OrderType = schema.OrderTypeLimit
	}
	if c.BrokerTimeout <= 0 {
		c.BrokerTimeout = 5 * time.Second
	}
	return c
}

// Handler turns validated signals into orders: size, risk-check, submit,
// audit. Every path out of Handle leaves a durable event behind before it
// returns, so the audit log alone reconstructs each decision.
type Handler struct {
	cfg     Config
	mgr     *risk.Manager
	kill    *risk.KillSwitchState
	tracker *state.Tracker
	broker  Broker
	book    *OrderBook
	b       *bus.Bus
	clock   Clock
	metrics *obs.Metrics

	nextOrderID uint64
	buf         []byte
}

// NewHandler wires the execution pipeline. The tracker is read-only here;
// applying fills stays with the single writer that owns it.
func NewHandler(cfg Config, mgr *risk.Manager, kill *risk.KillSwitchState, tracker *state.Tracker, broker Broker, b *bus.Bus, clock Clock, metrics *obs.Metrics) *Handler {
	return &Handler{
		cfg:     cfg.withDefaults(),
		mgr:     mgr,
		kill:    kill,
		tracker: tracker,
		broker:  broker,
		book:    NewOrderBook(),
		b:       b,
		clock:   clock,
		metrics: metrics,
		buf:     make([]byte, 0, 64),
	}
}

// Book returns the order state machine.
func (h *Handler) Book() *OrderBook {
	return h.book
}

// SeedOrderID sets the next order ID after recovery.
func (h *Handler) SeedOrderID(next uint64) {
	if next > h.nextOrderID {
		h.nextOrderID = next
	}
}

// Handle runs one signal through the pipeline. filled=true carries the
// resulting trade; filled=false with nil error means the signal produced
// no fill (no-op sizing, deny already audited as a reject, or a resting
// order). The returned error classifies denies and broker failures; a
// kill-switch deny additionally leaves a durable halt event.
func (h *Handler) Handle(ctx context.Context, sig schema.Signal, refPrice schema.Price) (schema.Trade, bool, error) {
	now := h.clock.Now()
	h.kill.MaybeRoll(now)

	intent, ok := h.buildIntent(sig, refPrice)
	if !ok {
		return schema.Trade{}, false, nil
	}

	riskStart := time.Now()
	decision := h.mgr.Evaluate(intent, risk.View{
		Position:      h.tracker.Position(schema.InstrumentID(intent.InstrumentID)).Qty,
		GrossExposure: h.tracker.GrossExposure(),
		Kill:          h.kill,
	})
	h.metrics.ObserveRiskEval(time.Since(riskStart))

	if decision.Action != risk.ActionAllow {
		return schema.Trade{}, false, h.deny(sig, decision, now)
	}

	if err := h.publishIntent(intent, sig, now); err != nil {
		return schema.Trade{}, false, err
	}
	if _, err := h.book.ApplyIntent(intent); err != nil {
		return schema.Trade{}, false, errors.Wrap(err, "apply intent")
	}

	brokerCtx, cancel := context.WithTimeout(ctx, h.cfg.BrokerTimeout)
	brokerStart := time.Now()
	trade, filled, err := h.broker.Execute(brokerCtx, intent)
	cancel()
	h.metrics.ObserveBroker(time.Since(brokerStart))
	if err != nil {
		return schema.Trade{}, false, h.brokerReject(intent, sig, now, err)
	}

	if !filled {
		if ackErr := h.publishAck(intent, schema.OrderAckStatusAcked, intent.Qty, now, sig.SignalID); ackErr != nil {
			return schema.Trade{}, false, ackErr
		}
		if _, bookErr := h.book.ApplyAck(schema.OrderAck{OrderID: intent.OrderID, Status: schema.OrderAckStatusAcked}); bookErr != nil {
			return schema.Trade{}, false, errors.Wrap(bookErr, "apply ack")
		}
		return schema.Trade{}, false, nil
	}

	if ackErr := h.publishAck(intent, schema.OrderAckStatusFilled, 0, now, sig.SignalID); ackErr != nil {
		return schema.Trade{}, false, ackErr
	}
	h.buf = codec.EncodeTrade(h.buf[:0], trade)
	if _, pubErr := h.b.Publish(schema.EventTrade, trade.TsNano, now, sig.SignalID, h.buf); pubErr != nil {
		return schema.Trade{}, false, pubErr
	}
	if _, bookErr := h.book.ApplyTrade(trade); bookErr != nil {
		return schema.Trade{}, false, errors.Wrap(bookErr, "apply trade")
	}
	h.kill.RecordTrade()
	return trade, true, nil
}

// buildIntent sizes the order. Exits flatten the current position; entries
// scale BaseQty by confidence; adjusts re-target the open position.
func (h *Handler) buildIntent(sig schema.Signal, refPrice schema.Price) (schema.OrderIntent, bool) {
	pos := h.tracker.Position(schema.InstrumentID(sig.InstrumentID)).Qty

	var (
		side schema.OrderSide
		qty  schema.Quantity
	)
	switch sig.Kind {
	case schema.SignalEnterLong:
		side, qty = schema.OrderSideBuy, h.sized(sig.Confidence)
	case schema.SignalEnterShort:
		side, qty = schema.OrderSideSell, h.sized(sig.Confidence)
	case schema.SignalExit:
		if pos == 0 {
			return schema.OrderIntent{}, false
		}
		if pos > 0 {
			side, qty = schema.OrderSideSell, pos
		} else {
			side, qty = schema.OrderSideBuy, -pos
		}
	case schema.SignalAdjust:
		if pos == 0 {
			return schema.OrderIntent{}, false
		}
		target := h.sized(sig.Confidence)
		if pos < 0 {
			target = -target
		}
		delta := int64(target) - int64(pos)
		if delta == 0 {
			return schema.OrderIntent{}, false
		}
		if delta > 0 {
			side, qty = schema.OrderSideBuy, schema.Quantity(delta)
		} else {
			side, qty = schema.OrderSideSell, schema.Quantity(-delta)
		}
	default:
		return schema.OrderIntent{}, false
	}
	if qty <= 0 {
		return schema.OrderIntent{}, false
	}

	h.nextOrderID++
	return schema.OrderIntent{
		OrderID:      h.nextOrderID,
		SignalID:     sig.SignalID,
		InstrumentID: sig.InstrumentID,
		Side:         side,
		Type:         h.cfg.OrderType,
		Price:        refPrice,
		Qty:          qty,
	}, true
}

func (h *Handler) sized(confidence uint16) schema.Quantity {
	if confidence > schema.ConfidenceScale {
		confidence = schema.ConfidenceScale
	}
	qty := int64(h.cfg.BaseQty) * int64(confidence) / schema.ConfidenceScale
	if qty < int64(h.cfg.MinQty) {
		return 0
	}
	return schema.Quantity(qty)
}

// deny records the reject on the durable rail, publishes a halt when the
// decision demands one, and maps the reason onto a sentinel error.
func (h *Handler) deny(sig schema.Signal, decision risk.Decision, now int64) error {
	h.metrics.IncReject(decision.Reason)
	h.buf = codec.EncodeReject(h.buf[:0], schema.Reject{
		SignalID:     sig.SignalID,
		OrderID:      decision.OrderID,
		InstrumentID: sig.InstrumentID,
		Reason:       decision.Reason,
		TsNano:       now,
	})
	if _, err := h.b.Publish(schema.EventReject, now, now, sig.SignalID, h.buf); err != nil {
		return err
	}

	if decision.Halt != schema.HaltReasonUnknown {
		h.buf = codec.EncodeHalt(h.buf[:0], schema.Halt{
			Reason:     decision.Halt,
			DailyCount: h.kill.DailyTrades(),
			Drawdown:   h.kill.Drawdown(),
			TsNano:     now,
		})
		if _, err := h.b.Publish(schema.EventHalt, now, now, sig.SignalID, h.buf); err != nil {
			return err
		}
		logs.Errorf("kill switch tripped, reason: %d, signal: %d", decision.Reason, sig.SignalID)
		return errors.Wrapf(ErrKillSwitchTripped, "reason=%d", decision.Reason)
	}

	switch decision.Reason {
	case schema.RejectReasonDailyLimit:
		return ErrDailyLimitExceeded
	case schema.RejectReasonPositionLimit, schema.RejectReasonAggregateLimit:
		return ErrPositionLimitExceeded
	case schema.RejectReasonMaxQty, schema.RejectReasonMaxNotional:
		return ErrOrderLimitExceeded
	default:
		return errors.Errorf("denied: reason=%d", decision.Reason)
	}
}

func (h *Handler) brokerReject(intent schema.OrderIntent, sig schema.Signal, now int64, cause error) error {
	h.metrics.IncReject(schema.RejectReasonBroker)
	if err := h.publishAck(intent, schema.OrderAckStatusRejected, intent.Qty, now, sig.SignalID); err != nil {
		return err
	}
	if _, err := h.book.ApplyAck(schema.OrderAck{OrderID: intent.OrderID, Status: schema.OrderAckStatusRejected}); err != nil {
		return errors.Wrap(err, "apply ack")
	}
	h.buf = codec.EncodeReject(h.buf[:0], schema.Reject{
		SignalID:     sig.SignalID,
		OrderID:      intent.OrderID,
		InstrumentID: intent.InstrumentID,
		Reason:       schema.RejectReasonBroker,
		TsNano:       now,
	})
	if _, err := h.b.Publish(schema.EventReject, now, now, sig.SignalID, h.buf); err != nil {
		return err
	}
	return errors.Wrap(cause, "broker execute")
}

func (h *Handler) publishIntent(intent schema.OrderIntent, sig schema.Signal, now int64) error {
	h.buf = codec.EncodeOrderIntent(h.buf[:0], intent)
	_, err := h.b.Publish(schema.EventOrderIntent, sig.TsNano, now, sig.SignalID, h.buf)
	return err
}

func (h *Handler) publishAck(intent schema.OrderIntent, status schema.OrderAckStatus, leaves schema.Quantity, now int64, traceID uint64) error {
	reason := schema.RejectReasonNone
	if status == schema.OrderAckStatusRejected {
		reason = schema.RejectReasonBroker
	}
	h.buf = codec.EncodeOrderAck(h.buf[:0], schema.OrderAck{
		OrderID:      intent.OrderID,
		InstrumentID: intent.InstrumentID,
		Status:       status,
		Reason:       reason,
		Price:        intent.Price,
		Qty:          intent.Qty,
		LeavesQty:    leaves,
	})
	_, err := h.b.Publish(schema.EventOrderAck, now, now, traceID, h.buf)
	return err
}
