package exec

import (
	"errors"

	"main/internal/schema"
)

var (
	ErrDuplicateOrder    = errors.New("order already exists")
	ErrUnknownOrder      = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order state transition")
	ErrInvalidFill       = errors.New("invalid fill quantity")
)

// OrderState tracks the lifecycle of an order. Transitions are monotonic:
// a terminal order never moves again.
type OrderState uint16

const (
	OrderStateUnknown OrderState = iota
	OrderStateSent
	OrderStateAcked
	OrderStatePartFilled
	OrderStateFilled
	OrderStateCancelled
	OrderStateRejected
)

// Order holds the execution-side view of an order.
type Order struct {
	ID           uint64
	SignalID     uint64
	InstrumentID uint32
	Side         schema.OrderSide
	Price        schema.Price
	Qty          schema.Quantity
	LeavesQty    schema.Quantity
	State        OrderState
}

// OrderBook updates orders from intent/ack/trade events.
type OrderBook struct {
	orders map[uint64]*Order
}

// NewOrderBook creates an empty order book.
func NewOrderBook() *OrderBook {
	return &OrderBook{orders: make(map[uint64]*Order)}
}

// Order returns the current order state.
func (b *OrderBook) Order(id uint64) (*Order, bool) {
	o, ok := b.orders[id]
	return o, ok
}

// Len returns the number of tracked orders.
func (b *OrderBook) Len() int {
	return len(b.orders)
}

// ApplyIntent creates a new order in Sent state.
func (b *OrderBook) ApplyIntent(intent schema.OrderIntent) (*Order, error) {
	if intent.OrderID == 0 {
		return nil, ErrUnknownOrder
	}
	if _, ok := b.orders[intent.OrderID]; ok {
		return nil, ErrDuplicateOrder
	}
	o := &Order{
		ID:           intent.OrderID,
		SignalID:     intent.SignalID,
		InstrumentID: intent.InstrumentID,
		Side:         intent.Side,
		Price:        intent.Price,
		Qty:          intent.Qty,
		LeavesQty:    intent.Qty,
		State:        OrderStateSent,
	}
	b.orders[o.ID] = o
	return o, nil
}

// ApplyAck updates an order from an acknowledgment.
func (b *OrderBook) ApplyAck(ack schema.OrderAck) (*Order, error) {
	o, ok := b.orders[ack.OrderID]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if isTerminal(o.State) {
		return o, ErrInvalidTransition
	}
	if ack.Qty != 0 {
		o.Qty = ack.Qty
	}
	if ack.LeavesQty != 0 {
		o.LeavesQty = ack.LeavesQty
	}

	switch ack.Status {
	case schema.OrderAckStatusAcked:
		o.State = OrderStateAcked
	case schema.OrderAckStatusRejected:
		o.State = OrderStateRejected
	case schema.OrderAckStatusCancelled:
		o.State = OrderStateCancelled
	case schema.OrderAckStatusFilled:
		o.LeavesQty = 0
		o.State = OrderStateFilled
	default:
		return o, ErrInvalidTransition
	}
	return o, nil
}

// ApplyTrade updates an order from a fill.
func (b *OrderBook) ApplyTrade(trade schema.Trade) (*Order, error) {
	o, ok := b.orders[trade.OrderID]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if isTerminal(o.State) {
		return o, ErrInvalidTransition
	}
	qty := int64(trade.Qty)
	if qty <= 0 {
		return o, ErrInvalidFill
	}
	leaves := int64(o.LeavesQty) - qty
	if leaves <= 0 {
		o.LeavesQty = 0
		o.State = OrderStateFilled
	} else {
		o.LeavesQty = schema.Quantity(leaves)
		o.State = OrderStatePartFilled
	}
	return o, nil
}

func isTerminal(state OrderState) bool {
	switch state {
	case OrderStateFilled, OrderStateCancelled, OrderStateRejected:
		return true
	default:
		return false
	}
}
