package exec

import (
	"context"
	"sort"

	"github.com/yanun0323/errors"

	"main/internal/schema"
)

var ErrBrokerRejected = errors.New("broker rejected order")

// BrokerPosition is the venue's view of one instrument position, used to
// reconcile the local tracker against the venue at startup.
type BrokerPosition struct {
	InstrumentID uint32
	Qty          schema.Quantity
	AvgEntry     schema.Price
}

// Broker submits validated orders to a venue. Fill reports are returned
// synchronously; filled=false means the order was accepted but produced no
// trade (dry run, or resting order).
type Broker interface {
	Name() string
	Execute(ctx context.Context, intent schema.OrderIntent) (schema.Trade, bool, error)
	Cancel(ctx context.Context, orderID uint64) error
	Positions(ctx context.Context) ([]BrokerPosition, error)
}

// DryRunBroker acknowledges every order without producing trades.
// Used to validate a strategy's decision path against live data with
// zero capital at risk.
type DryRunBroker struct{}

func (DryRunBroker) Name() string { return "dry-run" }

func (DryRunBroker) Execute(_ context.Context, _ schema.OrderIntent) (schema.Trade, bool, error) {
	return schema.Trade{}, false, nil
}

func (DryRunBroker) Cancel(_ context.Context, _ uint64) error { return nil }

func (DryRunBroker) Positions(_ context.Context) ([]BrokerPosition, error) { return nil, nil }

// feeBpsScale is the denominator for basis-point fee rates.
const feeBpsScale = 10000

const maxInt64 = int64(^uint64(0) >> 1)

// PaperBroker simulates executions deterministically: every order fills
// in full at its intent price. The trade ID equals the order ID, so a
// replayed order produces a byte-identical trade.
type PaperBroker struct {
	clock     Clock
	feeBps    int64
	positions map[uint32]BrokerPosition
}

// Clock supplies fill timestamps.
type Clock interface {
	Now() int64
}

// NewPaperBroker creates a simulated broker with a basis-point fee rate.
func NewPaperBroker(clock Clock, feeBps int64) *PaperBroker {
	if feeBps < 0 {
		feeBps = 0
	}
	return &PaperBroker{
		clock:     clock,
		feeBps:    feeBps,
		positions: make(map[uint32]BrokerPosition),
	}
}

func (b *PaperBroker) Name() string { return "paper" }

func (b *PaperBroker) Execute(_ context.Context, intent schema.OrderIntent) (schema.Trade, bool, error) {
	if intent.Qty <= 0 || intent.Price <= 0 {
		return schema.Trade{}, false, errors.Wrap(ErrBrokerRejected, "non-positive price or qty")
	}
	b.applyFill(intent)
	return schema.Trade{
		TradeID:      intent.OrderID,
		OrderID:      intent.OrderID,
		InstrumentID: intent.InstrumentID,
		Side:         intent.Side,
		Price:        intent.Price,
		Qty:          intent.Qty,
		Fee:          b.fee(intent.Price, intent.Qty),
		TsNano:       b.clock.Now(),
	}, true, nil
}

// Cancel always fails: paper fills are immediate, nothing rests.
func (b *PaperBroker) Cancel(_ context.Context, orderID uint64) error {
	return errors.Wrapf(ErrUnknownOrder, "paper order %d is not resting", orderID)
}

// Positions returns the venue-side view of what the simulation has filled,
// sorted by instrument so two identical runs report identically.
func (b *PaperBroker) Positions(_ context.Context) ([]BrokerPosition, error) {
	out := make([]BrokerPosition, 0, len(b.positions))
	for _, pos := range b.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstrumentID < out[j].InstrumentID })
	return out, nil
}

func (b *PaperBroker) applyFill(intent schema.OrderIntent) {
	pos := b.positions[intent.InstrumentID]
	pos.InstrumentID = intent.InstrumentID
	qty := int64(intent.Qty)
	if intent.Side == schema.OrderSideSell {
		qty = -qty
	}
	next := int64(pos.Qty) + qty
	switch {
	case next == 0:
		pos.AvgEntry = 0
	case (int64(pos.Qty) >= 0) != (next >= 0) || pos.Qty == 0:
		pos.AvgEntry = intent.Price
	case (qty > 0) == (int64(pos.Qty) > 0):
		// Adding to the position: volume-weighted average entry.
		abs := func(v int64) int64 {
			if v < 0 {
				return -v
			}
			return v
		}
		total := abs(int64(pos.Qty)) + abs(qty)
		pos.AvgEntry = schema.Price((int64(pos.AvgEntry)*abs(int64(pos.Qty)) + int64(intent.Price)*abs(qty)) / total)
	}
	pos.Qty = schema.Quantity(next)
	if next == 0 {
		delete(b.positions, intent.InstrumentID)
		return
	}
	b.positions[intent.InstrumentID] = pos
}

func (b *PaperBroker) fee(price schema.Price, qty schema.Quantity) schema.Fee {
	if b.feeBps == 0 {
		return 0
	}
	notional := int64(price) * int64(qty)
	if notional < 0 {
		notional = -notional
	}
	// Multiply before dividing so small notionals are not truncated to a
	// zero fee, falling back to divide-first only when the product would
	// overflow.
	if notional > maxInt64/b.feeBps {
		return schema.Fee(notional / feeBpsScale * b.feeBps)
	}
	return schema.Fee(notional * b.feeBps / feeBpsScale)
}
