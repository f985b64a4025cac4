package exec

import (
	"testing"

	"main/internal/schema"
)

func TestOrderLifecycle(t *testing.T) {
	book := NewOrderBook()
	intent := schema.OrderIntent{OrderID: 1, InstrumentID: 1, Side: schema.OrderSideBuy, Price: 100, Qty: 10}

	order, err := book.ApplyIntent(intent)
	if err != nil {
		t.Fatalf("apply intent: %v", err)
	}
	if order.State != OrderStateSent || order.LeavesQty != 10 {
		t.Fatalf("after intent: %+v", order)
	}
	if _, err := book.ApplyIntent(intent); err != ErrDuplicateOrder {
		t.Fatalf("duplicate intent err = %v, want ErrDuplicateOrder", err)
	}

	if _, err := book.ApplyAck(schema.OrderAck{OrderID: 1, Status: schema.OrderAckStatusAcked}); err != nil {
		t.Fatalf("apply ack: %v", err)
	}

	order, err = book.ApplyTrade(schema.Trade{TradeID: 1, OrderID: 1, Side: schema.OrderSideBuy, Price: 100, Qty: 4})
	if err != nil {
		t.Fatalf("apply partial trade: %v", err)
	}
	if order.State != OrderStatePartFilled || order.LeavesQty != 6 {
		t.Fatalf("after partial fill: %+v", order)
	}

	order, err = book.ApplyTrade(schema.Trade{TradeID: 2, OrderID: 1, Side: schema.OrderSideBuy, Price: 100, Qty: 6})
	if err != nil {
		t.Fatalf("apply final trade: %v", err)
	}
	if order.State != OrderStateFilled || order.LeavesQty != 0 {
		t.Fatalf("after full fill: %+v", order)
	}

	// Terminal states never move again.
	if _, err := book.ApplyTrade(schema.Trade{TradeID: 3, OrderID: 1, Qty: 1}); err != ErrInvalidTransition {
		t.Fatalf("fill on terminal order err = %v, want ErrInvalidTransition", err)
	}
	if _, err := book.ApplyAck(schema.OrderAck{OrderID: 1, Status: schema.OrderAckStatusCancelled}); err != ErrInvalidTransition {
		t.Fatalf("ack on terminal order err = %v, want ErrInvalidTransition", err)
	}
}

func TestUnknownOrderRejected(t *testing.T) {
	book := NewOrderBook()
	if _, err := book.ApplyAck(schema.OrderAck{OrderID: 9}); err != ErrUnknownOrder {
		t.Fatalf("ack unknown err = %v, want ErrUnknownOrder", err)
	}
	if _, err := book.ApplyTrade(schema.Trade{OrderID: 9, Qty: 1}); err != ErrUnknownOrder {
		t.Fatalf("trade unknown err = %v, want ErrUnknownOrder", err)
	}
	if _, err := book.ApplyIntent(schema.OrderIntent{}); err != ErrUnknownOrder {
		t.Fatalf("zero order id err = %v, want ErrUnknownOrder", err)
	}
}

func TestZeroFillQtyRejected(t *testing.T) {
	book := NewOrderBook()
	if _, err := book.ApplyIntent(schema.OrderIntent{OrderID: 1, Qty: 5}); err != nil {
		t.Fatalf("apply intent: %v", err)
	}
	if _, err := book.ApplyTrade(schema.Trade{TradeID: 1, OrderID: 1, Qty: 0}); err != ErrInvalidFill {
		t.Fatalf("zero fill err = %v, want ErrInvalidFill", err)
	}
}
