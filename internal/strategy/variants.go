package strategy

import "main/internal/schema"

// EHMA trades EMA crossovers while the market trends: long when the fast
// average leads, short when it lags, flat otherwise.
type EHMA struct{}

func (EHMA) Name() string { return "ehma" }

func (EHMA) Process(bar schema.Bar, ctx Context) (schema.Signal, bool) {
	a := ctx.Analytics
	if !a.Ready {
		return schema.Signal{}, false
	}

	qty := int64(ctx.Position.Qty)
	switch {
	case qty > 0 && a.FastEMA < a.SlowEMA:
		return schema.Signal{Kind: schema.SignalExit, Confidence: schema.ConfidenceScale}, true
	case qty < 0 && a.FastEMA > a.SlowEMA:
		return schema.Signal{Kind: schema.SignalExit, Confidence: schema.ConfidenceScale}, true
	case qty != 0:
		return schema.Signal{}, false
	}

	if ctx.Regime != RegimeTrending {
		return schema.Signal{}, false
	}
	if a.FastEMA > a.SlowEMA {
		return schema.Signal{Kind: schema.SignalEnterLong, Confidence: spreadConfidence(a.FastEMA, a.SlowEMA, a.Range)}, true
	}
	if a.FastEMA < a.SlowEMA {
		return schema.Signal{Kind: schema.SignalEnterShort, Confidence: spreadConfidence(a.FastEMA, a.SlowEMA, a.Range)}, true
	}
	return schema.Signal{}, false
}

// Confluence only enters when the EMA alignment and the bar direction
// agree, and exits as soon as either turns against the position.
type Confluence struct{}

func (Confluence) Name() string { return "confluence" }

func (Confluence) Process(bar schema.Bar, ctx Context) (schema.Signal, bool) {
	a := ctx.Analytics
	if !a.Ready {
		return schema.Signal{}, false
	}

	emaUp := a.FastEMA > a.SlowEMA
	emaDown := a.FastEMA < a.SlowEMA
	barUp := bar.Close > bar.Open
	barDown := bar.Close < bar.Open

	qty := int64(ctx.Position.Qty)
	if qty > 0 && (emaDown || barDown) {
		return schema.Signal{Kind: schema.SignalExit, Confidence: schema.ConfidenceScale}, true
	}
	if qty < 0 && (emaUp || barUp) {
		return schema.Signal{Kind: schema.SignalExit, Confidence: schema.ConfidenceScale}, true
	}
	if qty != 0 {
		return schema.Signal{}, false
	}

	if emaUp && barUp {
		return schema.Signal{Kind: schema.SignalEnterLong, Confidence: spreadConfidence(a.FastEMA, a.SlowEMA, a.Range)}, true
	}
	if emaDown && barDown {
		return schema.Signal{Kind: schema.SignalEnterShort, Confidence: spreadConfidence(a.FastEMA, a.SlowEMA, a.Range)}, true
	}
	return schema.Signal{}, false
}

// RegimeAdaptive follows the trend in trending markets, fades range
// extremes in ranging markets, and stands down when volatility spikes.
type RegimeAdaptive struct{}

func (RegimeAdaptive) Name() string { return "regime-adaptive" }

func (RegimeAdaptive) Process(bar schema.Bar, ctx Context) (schema.Signal, bool) {
	a := ctx.Analytics
	if !a.Ready {
		return schema.Signal{}, false
	}

	qty := int64(ctx.Position.Qty)
	if ctx.Regime == RegimeVolatile {
		if qty != 0 {
			return schema.Signal{Kind: schema.SignalExit, Confidence: schema.ConfidenceScale}, true
		}
		return schema.Signal{}, false
	}
	if qty != 0 {
		return schema.Signal{}, false
	}

	switch ctx.Regime {
	case RegimeTrending:
		if a.FastEMA > a.SlowEMA {
			return schema.Signal{Kind: schema.SignalEnterLong, Confidence: spreadConfidence(a.FastEMA, a.SlowEMA, a.Range)}, true
		}
		if a.FastEMA < a.SlowEMA {
			return schema.Signal{Kind: schema.SignalEnterShort, Confidence: spreadConfidence(a.FastEMA, a.SlowEMA, a.Range)}, true
		}
	case RegimeRanging:
		lower := int64(a.SlowEMA) - int64(a.Range)
		upper := int64(a.SlowEMA) + int64(a.Range)
		if int64(bar.Close) < lower {
			return schema.Signal{Kind: schema.SignalEnterLong, Confidence: schema.ConfidenceScale / 2}, true
		}
		if int64(bar.Close) > upper {
			return schema.Signal{Kind: schema.SignalEnterShort, Confidence: schema.ConfidenceScale / 2}, true
		}
	}
	return schema.Signal{}, false
}
