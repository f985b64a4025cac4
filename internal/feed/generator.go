package feed

import (
	"fmt"
	"time"

	"main/internal/schema"
)

// Generator creates synthetic deterministic bar sessions for paper runs and
// tests. The same seed always produces the same session.
type Generator struct {
	instruments []schema.Instrument
	interval    time.Duration
	basePrice   int64
	amplitude   int64
	baseVolume  int64
	rng         uint64
}

// NewGenerator creates a generator for all instruments in the registry.
func NewGenerator(reg *schema.Registry, interval time.Duration, basePrice, amplitude, baseVolume int64, seed uint64) (*Generator, error) {
	if reg == nil || reg.InstrumentCount() == 0 {
		return nil, fmt.Errorf("registry has no instruments")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be > 0")
	}
	if basePrice <= 0 {
		return nil, fmt.Errorf("base price must be > 0")
	}
	instruments := make([]schema.Instrument, 0, reg.InstrumentCount())
	for i := 0; i < reg.InstrumentCount(); i++ {
		inst, ok := reg.InstrumentAt(i)
		if !ok {
			continue
		}
		instruments = append(instruments, inst)
	}
	if amplitude < 0 {
		amplitude = 0
	}
	if baseVolume <= 0 {
		baseVolume = 1
	}
	if seed == 0 {
		seed = 0x9E3779B97F4A7C15
	}
	return &Generator{
		instruments: instruments,
		interval:    interval,
		basePrice:   basePrice,
		amplitude:   amplitude,
		baseVolume:  baseVolume,
		rng:         seed,
	}, nil
}

// Session generates cycles bars per instrument starting at start.
func (g *Generator) Session(start time.Time, cycles int) []schema.Bar {
	bars := make([]schema.Bar, 0, cycles*len(g.instruments))
	last := make(map[schema.InstrumentID]int64, len(g.instruments))
	for _, inst := range g.instruments {
		last[inst.ID] = g.basePrice + int64(inst.ID)
	}

	ts := start.UTC().UnixNano()
	step := g.interval.Nanoseconds()
	for i := 0; i < cycles; i++ {
		for _, inst := range g.instruments {
			open := last[inst.ID]
			drift := int64(0)
			if g.amplitude > 0 {
				drift = int64(g.next()%uint64(2*g.amplitude+1)) - g.amplitude
			}
			close := open + drift
			if close <= 0 {
				close = 1
			}
			high := open
			if close > high {
				high = close
			}
			low := open
			if close < low {
				low = close
			}
			if g.amplitude > 0 {
				high += int64(g.next() % uint64(g.amplitude+1))
				wick := int64(g.next() % uint64(g.amplitude+1))
				if low-wick > 0 {
					low -= wick
				}
			}
			volume := g.baseVolume + int64(g.next()%uint64(g.baseVolume+1))

			bars = append(bars, schema.Bar{
				InstrumentID: uint32(inst.ID),
				TsNano:       ts,
				Open:         schema.Price(open),
				High:         schema.Price(high),
				Low:          schema.Price(low),
				Close:        schema.Price(close),
				Volume:       schema.Quantity(volume),
			})
			last[inst.ID] = close
		}
		ts += step
	}
	return bars
}

// next is a xorshift64 step; deterministic for a fixed seed.
func (g *Generator) next() uint64 {
	x := g.rng
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	g.rng = x
	return x
}
