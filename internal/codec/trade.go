package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const TradePayloadSize = 56

// EncodeTrade serializes a trade into a fixed-size payload.
func EncodeTrade(dst []byte, trade schema.Trade) []byte {
	if cap(dst) < TradePayloadSize {
		dst = make([]byte, TradePayloadSize)
	} else {
		dst = dst[:TradePayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], trade.TradeID)
	binary.LittleEndian.PutUint64(dst[8:16], trade.OrderID)
	binary.LittleEndian.PutUint32(dst[16:20], trade.InstrumentID)
	binary.LittleEndian.PutUint16(dst[20:22], uint16(trade.Side))
	binary.LittleEndian.PutUint16(dst[22:24], trade.Flags)
	binary.LittleEndian.PutUint64(dst[24:32], uint64(trade.Price))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(trade.Qty))
	binary.LittleEndian.PutUint64(dst[40:48], uint64(trade.Fee))
	binary.LittleEndian.PutUint64(dst[48:56], uint64(trade.TsNano))

	return dst
}

// DecodeTrade parses a fixed-size trade payload.
func DecodeTrade(src []byte) (schema.Trade, bool) {
	if len(src) < TradePayloadSize {
		return schema.Trade{}, false
	}
	return schema.Trade{
		TradeID:      binary.LittleEndian.Uint64(src[0:8]),
		OrderID:      binary.LittleEndian.Uint64(src[8:16]),
		InstrumentID: binary.LittleEndian.Uint32(src[16:20]),
		Side:         schema.OrderSide(binary.LittleEndian.Uint16(src[20:22])),
		Flags:        binary.LittleEndian.Uint16(src[22:24]),
		Price:        schema.Price(int64(binary.LittleEndian.Uint64(src[24:32]))),
		Qty:          schema.Quantity(int64(binary.LittleEndian.Uint64(src[32:40]))),
		Fee:          schema.Fee(int64(binary.LittleEndian.Uint64(src[40:48]))),
		TsNano:       int64(binary.LittleEndian.Uint64(src[48:56])),
	}, true
}
