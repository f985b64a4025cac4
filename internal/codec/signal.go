package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const SignalPayloadSize = 32

// EncodeSignal serializes a signal into a fixed-size payload.
func EncodeSignal(dst []byte, sig schema.Signal) []byte {
	if cap(dst) < SignalPayloadSize {
		dst = make([]byte, SignalPayloadSize)
	} else {
		dst = dst[:SignalPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], sig.SignalID)
	binary.LittleEndian.PutUint32(dst[8:12], sig.StrategyID)
	binary.LittleEndian.PutUint32(dst[12:16], sig.InstrumentID)
	binary.LittleEndian.PutUint16(dst[16:18], uint16(sig.Kind))
	binary.LittleEndian.PutUint16(dst[18:20], sig.Confidence)
	binary.LittleEndian.PutUint16(dst[20:22], sig.Flags)
	binary.LittleEndian.PutUint16(dst[22:24], sig.Reserved)
	binary.LittleEndian.PutUint64(dst[24:32], uint64(sig.TsNano))

	return dst
}

// DecodeSignal parses a fixed-size signal payload.
func DecodeSignal(src []byte) (schema.Signal, bool) {
	if len(src) < SignalPayloadSize {
		return schema.Signal{}, false
	}
	return schema.Signal{
		SignalID:     binary.LittleEndian.Uint64(src[0:8]),
		StrategyID:   binary.LittleEndian.Uint32(src[8:12]),
		InstrumentID: binary.LittleEndian.Uint32(src[12:16]),
		Kind:         schema.SignalKind(binary.LittleEndian.Uint16(src[16:18])),
		Confidence:   binary.LittleEndian.Uint16(src[18:20]),
		Flags:        binary.LittleEndian.Uint16(src[20:22]),
		Reserved:     binary.LittleEndian.Uint16(src[22:24]),
		TsNano:       int64(binary.LittleEndian.Uint64(src[24:32])),
	}, true
}
