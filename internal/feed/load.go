package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"

	"main/internal/codec"
	"main/internal/schema"
	"main/internal/wal"
)

var (
	ErrUnknownInstrument = errors.New("unknown instrument name")
	ErrBadDecimal        = errors.New("invalid decimal value")
)

// LoadBarsWAL reads every bar event from a WAL directory in record order.
func LoadBarsWAL(ctx context.Context, cfg wal.ScanConfig) ([]schema.Bar, error) {
	scanner, err := wal.NewScanner(cfg)
	if err != nil {
		return nil, err
	}
	var bars []schema.Bar
	err = scanner.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		if header.Type != schema.EventBar {
			return nil
		}
		bar, ok := codec.DecodeBar(payload)
		if !ok {
			return errors.Errorf("decode bar failed: seq=%d", header.Seq)
		}
		bars = append(bars, bar)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bars, nil
}

// barRow mirrors one JSON line of a historical bar file. Prices arrive as
// decimal text and are converted to scaled integers at this boundary.
type barRow struct {
	Instrument string          `json:"instrument"`
	TsNano     int64           `json:"ts"`
	Open       decimal.Decimal `json:"open"`
	High       decimal.Decimal `json:"high"`
	Low        decimal.Decimal `json:"low"`
	Close      decimal.Decimal `json:"close"`
	Volume     decimal.Decimal `json:"volume"`
}

// LoadBarsJSONL parses newline-delimited JSON bars, resolving instrument
// names through the registry and scaling prices per instrument.
func LoadBarsJSONL(r io.Reader, reg *schema.Registry) ([]schema.Bar, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var bars []schema.Bar
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var row barRow
		if err := json.Unmarshal([]byte(text), &row); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		id, ok := reg.InstrumentIDByName(row.Instrument)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownInstrument, "line %d: %s", line, row.Instrument)
		}
		inst, _ := reg.Instrument(id)

		open, err := scaledInt(row.Open, inst.Scale.PriceScale)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d open", line)
		}
		high, err := scaledInt(row.High, inst.Scale.PriceScale)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d high", line)
		}
		low, err := scaledInt(row.Low, inst.Scale.PriceScale)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d low", line)
		}
		close, err := scaledInt(row.Close, inst.Scale.PriceScale)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d close", line)
		}
		volume, err := scaledInt(row.Volume, inst.Scale.QuantityScale)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d volume", line)
		}

		bars = append(bars, schema.Bar{
			InstrumentID: uint32(id),
			TsNano:       row.TsNano,
			Open:         schema.Price(open),
			High:         schema.Price(high),
			Low:          schema.Price(low),
			Close:        schema.Price(close),
			Volume:       schema.Quantity(volume),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return bars, nil
}

// scaledInt converts decimal text to a scaled integer, truncating digits
// beyond the scale.
func scaledInt(d decimal.Decimal, scale schema.Scale) (int64, error) {
	s := d.String()
	if s == "" {
		return 0, nil
	}
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		s = s[1:]
	}
	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart = s[:idx]
		fracPart = s[idx+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	if int(scale) < len(fracPart) {
		fracPart = fracPart[:scale]
	}
	for len(fracPart) < int(scale) {
		fracPart += "0"
	}

	var value int64
	for _, c := range intPart + fracPart {
		if c < '0' || c > '9' {
			return 0, errors.Wrap(ErrBadDecimal, d.String())
		}
		value = value*10 + int64(c-'0')
	}
	if neg {
		value = -value
	}
	return value, nil
}
