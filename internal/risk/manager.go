package risk

import "main/internal/schema"

const maxInt64 = int64(^uint64(0) >> 1)

// Config defines the risk limits. Zero disables a limit. Limits are
// supplied at process start and immutable for the process lifetime.
type Config struct {
	MaxOrderQty      schema.Quantity                         `json:"maxOrderQty"`
	MaxOrderNotional schema.Notional                         `json:"maxOrderNotional"`
	MaxPosition      schema.Quantity                         `json:"maxPosition"`
	PositionLimits   map[schema.InstrumentID]schema.Quantity `json:"-"`
	MaxGrossExposure schema.Quantity                         `json:"maxGrossExposure"`
	MaxDailyTrades   uint32                                  `json:"maxDailyTrades"`
	MaxDrawdown      schema.Notional                         `json:"maxDrawdown"`
}

// Action is the outcome of a risk decision.
type Action uint16

const (
	ActionUnknown Action = iota
	ActionAllow
	ActionDeny
)

// Decision carries the evaluation result with enough context for the audit
// trail to reconstruct why an order was or was not allowed.
type Decision struct {
	OrderID      uint64
	SignalID     uint64
	InstrumentID uint32
	Action       Action
	Reason       schema.RejectReason
	// Halt is set when the deny must stop the whole process, not just
	// reject this order.
	Halt          schema.HaltReason
	ProposedQty   schema.Quantity
	ProposedPrice schema.Price
	CurrentPos    schema.Quantity
	GrossExposure schema.Quantity
}

// View is the state snapshot a single evaluation reads. The kill switch is
// shared by reference; everything else is a committed copy.
type View struct {
	Position      schema.Quantity
	GrossExposure schema.Quantity
	Kill          *KillSwitchState
}

// Manager evaluates order intents against configured limits. Evaluation is
// stateless: identical inputs yield identical decisions.
type Manager struct {
	cfg Config
}

// NewManager creates a risk manager with static limits.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// PositionLimit returns the effective position cap for an instrument.
func (m *Manager) PositionLimit(id schema.InstrumentID) schema.Quantity {
	if limit, ok := m.cfg.PositionLimits[id]; ok {
		return limit
	}
	return m.cfg.MaxPosition
}

// Evaluate applies the gate checks in pipeline order: kill switch first,
// then exposure limits. Deny reasons that threaten capital carry a halt.
func (m *Manager) Evaluate(intent schema.OrderIntent, view View) Decision {
	decision := Decision{
		OrderID:       intent.OrderID,
		SignalID:      intent.SignalID,
		InstrumentID:  intent.InstrumentID,
		Action:        ActionAllow,
		Reason:        schema.RejectReasonNone,
		ProposedQty:   intent.Qty,
		ProposedPrice: intent.Price,
		CurrentPos:    view.Position,
		GrossExposure: view.GrossExposure,
	}

	if view.Kill != nil {
		if view.Kill.ManualHalt() {
			decision.Action = ActionDeny
			decision.Reason = schema.RejectReasonManualHalt
			decision.Halt = schema.HaltReasonManual
			return decision
		}
		if m.cfg.MaxDrawdown > 0 && view.Kill.Drawdown() >= m.cfg.MaxDrawdown {
			decision.Action = ActionDeny
			decision.Reason = schema.RejectReasonDrawdown
			decision.Halt = schema.HaltReasonDrawdown
			return decision
		}
		// A daily-cap deny blocks further trades for the session but does
		// not halt the process.
		if m.cfg.MaxDailyTrades > 0 && view.Kill.DailyTrades() >= m.cfg.MaxDailyTrades {
			decision.Action = ActionDeny
			decision.Reason = schema.RejectReasonDailyLimit
			return decision
		}
	}

	if m.cfg.MaxOrderQty > 0 && intent.Qty > m.cfg.MaxOrderQty {
		decision.Action = ActionDeny
		decision.Reason = schema.RejectReasonMaxQty
		return decision
	}

	notional, overflow := mulNotional(intent.Price, intent.Qty)
	if overflow {
		decision.Action = ActionDeny
		decision.Reason = schema.RejectReasonMaxNotional
		return decision
	}
	if m.cfg.MaxOrderNotional > 0 && notional > m.cfg.MaxOrderNotional {
		decision.Action = ActionDeny
		decision.Reason = schema.RejectReasonMaxNotional
		return decision
	}

	nextPos := applySide(view.Position, intent.Side, intent.Qty)
	limit := m.PositionLimit(schema.InstrumentID(intent.InstrumentID))
	if limit > 0 && absQuantity(nextPos) > limit {
		decision.Action = ActionDeny
		decision.Reason = schema.RejectReasonPositionLimit
		return decision
	}

	if m.cfg.MaxGrossExposure > 0 {
		nextGross := view.GrossExposure - absQuantity(view.Position) + absQuantity(nextPos)
		if nextGross > m.cfg.MaxGrossExposure {
			decision.Action = ActionDeny
			decision.Reason = schema.RejectReasonAggregateLimit
			return decision
		}
	}

	return decision
}

func mulNotional(price schema.Price, qty schema.Quantity) (schema.Notional, bool) {
	p := int64(price)
	q := int64(qty)
	if p == 0 || q == 0 {
		return 0, false
	}
	if p < 0 {
		p = -p
	}
	if q < 0 {
		q = -q
	}
	if p > maxInt64/q {
		return 0, true
	}
	return schema.Notional(int64(price) * int64(qty)), false
}

func applySide(pos schema.Quantity, side schema.OrderSide, qty schema.Quantity) schema.Quantity {
	switch side {
	case schema.OrderSideBuy:
		return schema.Quantity(int64(pos) + int64(qty))
	case schema.OrderSideSell:
		return schema.Quantity(int64(pos) - int64(qty))
	default:
		return pos
	}
}

func absQuantity(q schema.Quantity) schema.Quantity {
	if q < 0 {
		return -q
	}
	return q
}
