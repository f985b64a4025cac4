package codec

import (
	"testing"

	"main/internal/schema"
)

func TestBarRoundTrip(t *testing.T) {
	orig := schema.Bar{
		InstrumentID: 7,
		Flags:        1,
		TsNano:       1700000000123456789,
		Open:         10050000000,
		High:         10120000000,
		Low:          9980000000,
		Close:        10070000000,
		Volume:       250000000,
	}

	encoded := EncodeBar(nil, orig)
	if len(encoded) != BarPayloadSize {
		t.Fatalf("encoded size = %d, want %d", len(encoded), BarPayloadSize)
	}
	decoded, ok := DecodeBar(encoded)
	if !ok {
		t.Fatal("decode failed")
	}
	if decoded != orig {
		t.Fatalf("bar round-trip mismatch: got %+v want %+v", decoded, orig)
	}
}

func TestTradeRoundTripNegativeValues(t *testing.T) {
	orig := schema.Trade{
		TradeID:      901,
		OrderID:      901,
		InstrumentID: 3,
		Side:         schema.OrderSideSell,
		Price:        -5,
		Qty:          100,
		Fee:          -1,
		TsNano:       -42,
	}

	decoded, ok := DecodeTrade(EncodeTrade(nil, orig))
	if !ok {
		t.Fatal("decode failed")
	}
	if decoded != orig {
		t.Fatalf("trade round-trip mismatch: got %+v want %+v", decoded, orig)
	}
}

func TestSignalRoundTrip(t *testing.T) {
	orig := schema.Signal{
		SignalID:     44,
		StrategyID:   2,
		InstrumentID: 7,
		Kind:         schema.SignalEnterShort,
		Confidence:   7500,
		TsNano:       1700000000000000000,
	}
	decoded, ok := DecodeSignal(EncodeSignal(nil, orig))
	if !ok {
		t.Fatal("decode failed")
	}
	if decoded != orig {
		t.Fatalf("signal round-trip mismatch: got %+v want %+v", decoded, orig)
	}
}

func TestOrderIntentRoundTrip(t *testing.T) {
	orig := schema.OrderIntent{
		OrderID:      1001,
		SignalID:     44,
		InstrumentID: 7,
		Side:         schema.OrderSideBuy,
		Type:         schema.OrderTypeLimit,
		Price:        10070000000,
		Qty:          500000000,
	}
	decoded, ok := DecodeOrderIntent(EncodeOrderIntent(nil, orig))
	if !ok {
		t.Fatal("decode failed")
	}
	if decoded != orig {
		t.Fatalf("intent round-trip mismatch: got %+v want %+v", decoded, orig)
	}
}

func TestRejectAndHaltRoundTrip(t *testing.T) {
	rej := schema.Reject{
		SignalID:     44,
		OrderID:      1001,
		InstrumentID: 7,
		Reason:       schema.RejectReasonPositionLimit,
		TsNano:       123456789,
	}
	gotRej, ok := DecodeReject(EncodeReject(nil, rej))
	if !ok || gotRej != rej {
		t.Fatalf("reject round-trip mismatch: got %+v want %+v", gotRej, rej)
	}

	halt := schema.Halt{
		Reason:     schema.HaltReasonDrawdown,
		DailyCount: 12,
		Drawdown:   5_000_000,
		TsNano:     123456789,
	}
	gotHalt, ok := DecodeHalt(EncodeHalt(nil, halt))
	if !ok || gotHalt != halt {
		t.Fatalf("halt round-trip mismatch: got %+v want %+v", gotHalt, halt)
	}
}

func TestDecodeRejectsShortPayload(t *testing.T) {
	if _, ok := DecodeBar(make([]byte, BarPayloadSize-1)); ok {
		t.Fatal("short bar payload accepted")
	}
	if _, ok := DecodeTrade(nil); ok {
		t.Fatal("nil trade payload accepted")
	}
	if _, ok := DecodeOrderAck(make([]byte, 3)); ok {
		t.Fatal("short ack payload accepted")
	}
}

func TestEncodeReusesBuffer(t *testing.T) {
	buf := make([]byte, 0, 128)
	out := EncodeBar(buf, schema.Bar{InstrumentID: 1})
	if &out[0] != &buf[:1][0] {
		t.Fatal("encode allocated a new buffer despite sufficient capacity")
	}
}
