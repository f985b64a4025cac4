package state

import "main/internal/schema"

// Position is the authoritative view of open exposure for one instrument.
// Quantity is signed: positive long, negative short.
type Position struct {
	InstrumentID schema.InstrumentID
	Qty          schema.Quantity
	AvgEntry     schema.Price
	Realized     schema.Notional
	Unrealized   schema.Notional
}

// Tracker is the single-writer ledger of positions. Only the orchestrator
// thread mutates it; readers receive value copies, never the live record.
// Apply is idempotent per trade ID so at-least-once delivery from the
// recovery path cannot double-count.
type Tracker struct {
	positions map[schema.InstrumentID]*Position
	applied   map[uint64]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		positions: make(map[schema.InstrumentID]*Position),
		applied:   make(map[uint64]struct{}),
	}
}

// Apply updates the position for a trade and returns the new value.
// A trade ID seen before is a no-op and returns applied=false.
func (t *Tracker) Apply(trade schema.Trade) (Position, bool) {
	if _, seen := t.applied[trade.TradeID]; seen {
		return t.Position(schema.InstrumentID(trade.InstrumentID)), false
	}
	t.applied[trade.TradeID] = struct{}{}

	id := schema.InstrumentID(trade.InstrumentID)
	pos := t.positions[id]
	if pos == nil {
		pos = &Position{InstrumentID: id}
		t.positions[id] = pos
	}

	delta := int64(trade.Qty)
	if trade.Side == schema.OrderSideSell {
		delta = -delta
	}
	applyDelta(pos, delta, trade.Price)
	pos.Realized -= schema.Notional(trade.Fee)
	return *pos, true
}

// applyDelta merges a signed quantity delta at the given price into the
// position, realizing P&L on the closed portion.
func applyDelta(pos *Position, delta int64, price schema.Price) {
	qty := int64(pos.Qty)
	if qty == 0 || sameSign(qty, delta) {
		total := absInt64(qty) + absInt64(delta)
		if total > 0 {
			weighted := int64(pos.AvgEntry)*absInt64(qty) + int64(price)*absInt64(delta)
			pos.AvgEntry = schema.Price(weighted / total)
		}
		pos.Qty = schema.Quantity(qty + delta)
		return
	}

	closed := absInt64(delta)
	if closed > absInt64(qty) {
		closed = absInt64(qty)
	}
	direction := int64(1)
	if qty < 0 {
		direction = -1
	}
	pos.Realized += schema.Notional((int64(price) - int64(pos.AvgEntry)) * closed * direction)

	next := qty + delta
	switch {
	case next == 0:
		pos.Qty = 0
		pos.AvgEntry = 0
		pos.Unrealized = 0
	case sameSign(next, qty):
		pos.Qty = schema.Quantity(next)
	default:
		// Crossed through flat; the remainder opens at the trade price.
		pos.Qty = schema.Quantity(next)
		pos.AvgEntry = price
	}
}

// Position returns a value copy of the current position for an instrument.
func (t *Tracker) Position(id schema.InstrumentID) Position {
	if pos := t.positions[id]; pos != nil {
		return *pos
	}
	return Position{InstrumentID: id}
}

// MarkPrice refreshes unrealized P&L from the latest close.
func (t *Tracker) MarkPrice(id schema.InstrumentID, price schema.Price) {
	pos := t.positions[id]
	if pos == nil || pos.Qty == 0 {
		return
	}
	pos.Unrealized = schema.Notional((int64(price) - int64(pos.AvgEntry)) * int64(pos.Qty))
}

// GrossExposure returns the sum of absolute open quantities.
func (t *Tracker) GrossExposure() schema.Quantity {
	var total int64
	for _, pos := range t.positions {
		total += absInt64(int64(pos.Qty))
	}
	return schema.Quantity(total)
}

// Equity returns total realized plus unrealized P&L.
func (t *Tracker) Equity() schema.Notional {
	var total schema.Notional
	for _, pos := range t.positions {
		total += pos.Realized + pos.Unrealized
	}
	return total
}

// Count returns the number of instruments with a tracked position.
func (t *Tracker) Count() int {
	return len(t.positions)
}

func sameSign(a, b int64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
