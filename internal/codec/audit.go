package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const (
	RejectPayloadSize = 32
	HaltPayloadSize   = 24
)

// EncodeReject serializes a reject into a fixed-size payload.
func EncodeReject(dst []byte, rej schema.Reject) []byte {
	if cap(dst) < RejectPayloadSize {
		dst = make([]byte, RejectPayloadSize)
	} else {
		dst = dst[:RejectPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], rej.SignalID)
	binary.LittleEndian.PutUint64(dst[8:16], rej.OrderID)
	binary.LittleEndian.PutUint32(dst[16:20], rej.InstrumentID)
	binary.LittleEndian.PutUint16(dst[20:22], uint16(rej.Reason))
	binary.LittleEndian.PutUint16(dst[22:24], rej.Flags)
	binary.LittleEndian.PutUint64(dst[24:32], uint64(rej.TsNano))

	return dst
}

// DecodeReject parses a fixed-size reject payload.
func DecodeReject(src []byte) (schema.Reject, bool) {
	if len(src) < RejectPayloadSize {
		return schema.Reject{}, false
	}
	return schema.Reject{
		SignalID:     binary.LittleEndian.Uint64(src[0:8]),
		OrderID:      binary.LittleEndian.Uint64(src[8:16]),
		InstrumentID: binary.LittleEndian.Uint32(src[16:20]),
		Reason:       schema.RejectReason(binary.LittleEndian.Uint16(src[20:22])),
		Flags:        binary.LittleEndian.Uint16(src[22:24]),
		TsNano:       int64(binary.LittleEndian.Uint64(src[24:32])),
	}, true
}

// EncodeHalt serializes a halt into a fixed-size payload.
func EncodeHalt(dst []byte, halt schema.Halt) []byte {
	if cap(dst) < HaltPayloadSize {
		dst = make([]byte, HaltPayloadSize)
	} else {
		dst = dst[:HaltPayloadSize]
	}

	binary.LittleEndian.PutUint16(dst[0:2], uint16(halt.Reason))
	binary.LittleEndian.PutUint16(dst[2:4], halt.Flags)
	binary.LittleEndian.PutUint32(dst[4:8], halt.DailyCount)
	binary.LittleEndian.PutUint64(dst[8:16], uint64(halt.Drawdown))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(halt.TsNano))

	return dst
}

// DecodeHalt parses a fixed-size halt payload.
func DecodeHalt(src []byte) (schema.Halt, bool) {
	if len(src) < HaltPayloadSize {
		return schema.Halt{}, false
	}
	return schema.Halt{
		Reason:     schema.HaltReason(binary.LittleEndian.Uint16(src[0:2])),
		Flags:      binary.LittleEndian.Uint16(src[2:4]),
		DailyCount: binary.LittleEndian.Uint32(src[4:8]),
		Drawdown:   schema.Notional(int64(binary.LittleEndian.Uint64(src[8:16]))),
		TsNano:     int64(binary.LittleEndian.Uint64(src[16:24])),
	}, true
}
