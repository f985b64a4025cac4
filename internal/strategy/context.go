package strategy

import (
	"main/internal/schema"
	"main/internal/state"
)

// Regime labels current market behavior for an instrument.
type Regime uint16

const (
	RegimeUnknown Regime = iota
	RegimeTrending
	RegimeRanging
	RegimeVolatile
)

// Snapshot is the read-only analytics view a strategy receives. Indicator
// math itself lives outside this package; strategies only consume the
// published values.
type Snapshot struct {
	FastEMA schema.Price
	SlowEMA schema.Price
	// Range is the rolling average high-low span, a coarse volatility gauge.
	Range schema.Price
	Ready bool
}

// Analytics supplies the latest snapshot per instrument.
type Analytics interface {
	Snapshot(id schema.InstrumentID) (Snapshot, bool)
	Regime(id schema.InstrumentID) Regime
}

// Context is the read-only view passed to one strategy invocation. It is
// rebuilt fresh each cycle; the position is a value copy, so a strategy can
// never alias tracker state. Everything a strategy "remembers" must be
// derivable from this context alone.
type Context struct {
	Position  state.Position
	Analytics Snapshot
	Regime    Regime
}
