package strategy

import "main/internal/schema"

// RollingAnalytics is a minimal Analytics implementation maintained by the
// runner from closed bars. Integer EMA arithmetic keeps replay and live
// values bit-identical.
type RollingAnalytics struct {
	fastPeriod int64
	slowPeriod int64
	byID       map[schema.InstrumentID]*rollingRow
}

type rollingRow struct {
	fast    int64
	slow    int64
	rng     int64
	samples int64
}

// NewRollingAnalytics creates analytics with the given EMA periods.
func NewRollingAnalytics(fastPeriod, slowPeriod int) *RollingAnalytics {
	if fastPeriod <= 0 {
		fastPeriod = 8
	}
	if slowPeriod <= fastPeriod {
		slowPeriod = fastPeriod * 3
	}
	return &RollingAnalytics{
		fastPeriod: int64(fastPeriod),
		slowPeriod: int64(slowPeriod),
		byID:       make(map[schema.InstrumentID]*rollingRow),
	}
}

// Update folds one closed bar into the per-instrument state.
func (r *RollingAnalytics) Update(bar schema.Bar) {
	id := schema.InstrumentID(bar.InstrumentID)
	row := r.byID[id]
	if row == nil {
		row = &rollingRow{
			fast: int64(bar.Close),
			slow: int64(bar.Close),
			rng:  int64(bar.High) - int64(bar.Low),
		}
		r.byID[id] = row
	}

	close := int64(bar.Close)
	row.fast += (close - row.fast) * 2 / (r.fastPeriod + 1)
	row.slow += (close - row.slow) * 2 / (r.slowPeriod + 1)
	span := int64(bar.High) - int64(bar.Low)
	row.rng += (span - row.rng) * 2 / (r.fastPeriod + 1)
	row.samples++
}

// Snapshot returns the latest analytics view for an instrument.
func (r *RollingAnalytics) Snapshot(id schema.InstrumentID) (Snapshot, bool) {
	row := r.byID[id]
	if row == nil {
		return Snapshot{}, false
	}
	return Snapshot{
		FastEMA: schema.Price(row.fast),
		SlowEMA: schema.Price(row.slow),
		Range:   schema.Price(row.rng),
		Ready:   row.samples >= r.slowPeriod,
	}, true
}

// Regime classifies the instrument from EMA separation and rolling range.
func (r *RollingAnalytics) Regime(id schema.InstrumentID) Regime {
	row := r.byID[id]
	if row == nil || row.samples < r.slowPeriod {
		return RegimeUnknown
	}
	spread := row.fast - row.slow
	if spread < 0 {
		spread = -spread
	}
	rng := row.rng
	if rng <= 0 {
		rng = 1
	}
	// Range over 2% of price counts as volatile, EMA separation beyond
	// half the range as trending.
	if row.slow > 0 && rng*50 > row.slow {
		return RegimeVolatile
	}
	if spread*2 > rng {
		return RegimeTrending
	}
	return RegimeRanging
}
