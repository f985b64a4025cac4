package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const (
	OrderIntentPayloadSize = 48
	OrderAckPayloadSize    = 40
)

// EncodeOrderIntent serializes an order intent into a fixed-size payload.
func EncodeOrderIntent(dst []byte, order schema.OrderIntent) []byte {
	if cap(dst) < OrderIntentPayloadSize {
		dst = make([]byte, OrderIntentPayloadSize)
	} else {
		dst = dst[:OrderIntentPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], order.OrderID)
	binary.LittleEndian.PutUint64(dst[8:16], order.SignalID)
	binary.LittleEndian.PutUint32(dst[16:20], order.InstrumentID)
	binary.LittleEndian.PutUint16(dst[20:22], uint16(order.Side))
	binary.LittleEndian.PutUint16(dst[22:24], uint16(order.Type))
	binary.LittleEndian.PutUint16(dst[24:26], order.Flags)
	binary.LittleEndian.PutUint16(dst[26:28], order.Reserved)
	binary.LittleEndian.PutUint32(dst[28:32], order.Reserved2)
	binary.LittleEndian.PutUint64(dst[32:40], uint64(order.Price))
	binary.LittleEndian.PutUint64(dst[40:48], uint64(order.Qty))

	return dst
}

// DecodeOrderIntent parses a fixed-size order intent payload.
func DecodeOrderIntent(src []byte) (schema.OrderIntent, bool) {
	if len(src) < OrderIntentPayloadSize {
		return schema.OrderIntent{}, false
	}
	return schema.OrderIntent{
		OrderID:      binary.LittleEndian.Uint64(src[0:8]),
		SignalID:     binary.LittleEndian.Uint64(src[8:16]),
		InstrumentID: binary.LittleEndian.Uint32(src[16:20]),
		Side:         schema.OrderSide(binary.LittleEndian.Uint16(src[20:22])),
		Type:         schema.OrderType(binary.LittleEndian.Uint16(src[22:24])),
		Flags:        binary.LittleEndian.Uint16(src[24:26]),
		Reserved:     binary.LittleEndian.Uint16(src[26:28]),
		Reserved2:    binary.LittleEndian.Uint32(src[28:32]),
		Price:        schema.Price(int64(binary.LittleEndian.Uint64(src[32:40]))),
		Qty:          schema.Quantity(int64(binary.LittleEndian.Uint64(src[40:48]))),
	}, true
}

// EncodeOrderAck serializes an order acknowledgment into a fixed-size payload.
func EncodeOrderAck(dst []byte, ack schema.OrderAck) []byte {
	if cap(dst) < OrderAckPayloadSize {
		dst = make([]byte, OrderAckPayloadSize)
	} else {
		dst = dst[:OrderAckPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], ack.OrderID)
	binary.LittleEndian.PutUint32(dst[8:12], ack.InstrumentID)
	binary.LittleEndian.PutUint16(dst[12:14], uint16(ack.Status))
	binary.LittleEndian.PutUint16(dst[14:16], uint16(ack.Reason))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(ack.Price))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(ack.Qty))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(ack.LeavesQty))

	return dst
}

// DecodeOrderAck parses a fixed-size order acknowledgment payload.
func DecodeOrderAck(src []byte) (schema.OrderAck, bool) {
	if len(src) < OrderAckPayloadSize {
		return schema.OrderAck{}, false
	}
	return schema.OrderAck{
		OrderID:      binary.LittleEndian.Uint64(src[0:8]),
		InstrumentID: binary.LittleEndian.Uint32(src[8:12]),
		Status:       schema.OrderAckStatus(binary.LittleEndian.Uint16(src[12:14])),
		Reason:       schema.RejectReason(binary.LittleEndian.Uint16(src[14:16])),
		Price:        schema.Price(int64(binary.LittleEndian.Uint64(src[16:24]))),
		Qty:          schema.Quantity(int64(binary.LittleEndian.Uint64(src[24:32]))),
		LeavesQty:    schema.Quantity(int64(binary.LittleEndian.Uint64(src[32:40]))),
	}, true
}
