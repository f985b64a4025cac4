package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const BarPayloadSize = 56

// EncodeBar serializes a bar into a fixed-size payload.
func EncodeBar(dst []byte, bar schema.Bar) []byte {
	if cap(dst) < BarPayloadSize {
		dst = make([]byte, BarPayloadSize)
	} else {
		dst = dst[:BarPayloadSize]
	}

	binary.LittleEndian.PutUint32(dst[0:4], bar.InstrumentID)
	binary.LittleEndian.PutUint16(dst[4:6], bar.Flags)
	binary.LittleEndian.PutUint16(dst[6:8], bar.Reserved)
	binary.LittleEndian.PutUint64(dst[8:16], uint64(bar.TsNano))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(bar.Open))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(bar.High))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(bar.Low))
	binary.LittleEndian.PutUint64(dst[40:48], uint64(bar.Close))
	binary.LittleEndian.PutUint64(dst[48:56], uint64(bar.Volume))

	return dst
}

// DecodeBar parses a fixed-size bar payload.
func DecodeBar(src []byte) (schema.Bar, bool) {
	if len(src) < BarPayloadSize {
		return schema.Bar{}, false
	}
	return schema.Bar{
		InstrumentID: binary.LittleEndian.Uint32(src[0:4]),
		Flags:        binary.LittleEndian.Uint16(src[4:6]),
		Reserved:     binary.LittleEndian.Uint16(src[6:8]),
		TsNano:       int64(binary.LittleEndian.Uint64(src[8:16])),
		Open:         schema.Price(int64(binary.LittleEndian.Uint64(src[16:24]))),
		High:         schema.Price(int64(binary.LittleEndian.Uint64(src[24:32]))),
		Low:          schema.Price(int64(binary.LittleEndian.Uint64(src[32:40]))),
		Close:        schema.Price(int64(binary.LittleEndian.Uint64(src[40:48]))),
		Volume:       schema.Quantity(int64(binary.LittleEndian.Uint64(src[48:56]))),
	}, true
}
