package strategy

import (
	"testing"

	"github.com/yanun0323/errors"

	"main/internal/schema"
	"main/internal/state"
)

func bar(open, high, low, close int64) schema.Bar {
	return schema.Bar{
		InstrumentID: 1,
		Open:         schema.Price(open),
		High:         schema.Price(high),
		Low:          schema.Price(low),
		Close:        schema.Price(close),
	}
}

func trendingCtx(fast, slow, rng int64) Context {
	return Context{
		Analytics: Snapshot{
			FastEMA: schema.Price(fast),
			SlowEMA: schema.Price(slow),
			Range:   schema.Price(rng),
			Ready:   true,
		},
		Regime: RegimeTrending,
	}
}

func TestEHMANotReadyStaysSilent(t *testing.T) {
	ctx := trendingCtx(110, 100, 20)
	ctx.Analytics.Ready = false
	if _, ok := (EHMA{}).Process(bar(100, 110, 90, 105), ctx); ok {
		t.Fatal("emitted a signal before analytics warmed up")
	}
}

func TestEHMAEntersWithTrend(t *testing.T) {
	sig, ok := (EHMA{}).Process(bar(100, 110, 90, 105), trendingCtx(110, 100, 20))
	if !ok {
		t.Fatal("expected an entry signal")
	}
	if sig.Kind != schema.SignalEnterLong {
		t.Fatalf("kind = %v, want enter-long", sig.Kind)
	}
	// spread 10 over range 20 grades to half scale.
	if sig.Confidence != schema.ConfidenceScale/2 {
		t.Fatalf("confidence = %d, want %d", sig.Confidence, schema.ConfidenceScale/2)
	}

	sig, ok = (EHMA{}).Process(bar(100, 110, 90, 95), trendingCtx(90, 100, 20))
	if !ok || sig.Kind != schema.SignalEnterShort {
		t.Fatalf("got (%v, %v), want enter-short", sig.Kind, ok)
	}
}

func TestEHMAStandsDownOutsideTrend(t *testing.T) {
	ctx := trendingCtx(110, 100, 20)
	ctx.Regime = RegimeRanging
	if _, ok := (EHMA{}).Process(bar(100, 110, 90, 105), ctx); ok {
		t.Fatal("entered outside a trending regime")
	}
}

func TestEHMAExitsOnCrossAgainstPosition(t *testing.T) {
	ctx := trendingCtx(90, 100, 20)
	ctx.Position = state.Position{Qty: 10}
	sig, ok := (EHMA{}).Process(bar(100, 110, 90, 95), ctx)
	if !ok || sig.Kind != schema.SignalExit {
		t.Fatalf("got (%v, %v), want exit", sig.Kind, ok)
	}
	if sig.Confidence != schema.ConfidenceScale {
		t.Fatalf("exit confidence = %d, want full scale", sig.Confidence)
	}

	// Holding with the trend: no churn.
	ctx = trendingCtx(110, 100, 20)
	ctx.Position = state.Position{Qty: 10}
	if _, ok := (EHMA{}).Process(bar(100, 110, 90, 105), ctx); ok {
		t.Fatal("signalled while holding with the trend")
	}
}

func TestConfluenceNeedsBothLegs(t *testing.T) {
	ctx := trendingCtx(110, 100, 20)

	// EMA up but bar down: no entry.
	if _, ok := (Confluence{}).Process(bar(105, 110, 90, 100), ctx); ok {
		t.Fatal("entered on EMA alignment alone")
	}

	sig, ok := (Confluence{}).Process(bar(100, 110, 90, 105), ctx)
	if !ok || sig.Kind != schema.SignalEnterLong {
		t.Fatalf("got (%v, %v), want enter-long", sig.Kind, ok)
	}

	// Long position, bar turns down: exit even though EMAs still agree.
	ctx.Position = state.Position{Qty: 5}
	sig, ok = (Confluence{}).Process(bar(105, 110, 90, 100), ctx)
	if !ok || sig.Kind != schema.SignalExit {
		t.Fatalf("got (%v, %v), want exit", sig.Kind, ok)
	}
}

func TestRegimeAdaptiveFadesRangeExtremes(t *testing.T) {
	ctx := trendingCtx(100, 100, 10)
	ctx.Regime = RegimeRanging

	sig, ok := (RegimeAdaptive{}).Process(bar(100, 110, 80, 85), ctx)
	if !ok || sig.Kind != schema.SignalEnterLong {
		t.Fatalf("got (%v, %v), want enter-long below the band", sig.Kind, ok)
	}
	if sig.Confidence != schema.ConfidenceScale/2 {
		t.Fatalf("fade confidence = %d, want half scale", sig.Confidence)
	}

	sig, ok = (RegimeAdaptive{}).Process(bar(100, 120, 90, 115), ctx)
	if !ok || sig.Kind != schema.SignalEnterShort {
		t.Fatalf("got (%v, %v), want enter-short above the band", sig.Kind, ok)
	}

	// Inside the band: nothing.
	if _, ok := (RegimeAdaptive{}).Process(bar(100, 110, 90, 105), ctx); ok {
		t.Fatal("faded inside the band")
	}
}

func TestRegimeAdaptiveFlattensWhenVolatile(t *testing.T) {
	ctx := trendingCtx(110, 100, 20)
	ctx.Regime = RegimeVolatile
	ctx.Position = state.Position{Qty: -5}

	sig, ok := (RegimeAdaptive{}).Process(bar(100, 110, 90, 105), ctx)
	if !ok || sig.Kind != schema.SignalExit {
		t.Fatalf("got (%v, %v), want exit", sig.Kind, ok)
	}

	ctx.Position = state.Position{}
	if _, ok := (RegimeAdaptive{}).Process(bar(100, 110, 90, 105), ctx); ok {
		t.Fatal("entered during a volatility spike")
	}
}

func TestSpreadConfidenceClamps(t *testing.T) {
	if got := spreadConfidence(1000, 100, 10); got != schema.ConfidenceScale {
		t.Fatalf("confidence = %d, want clamp to %d", got, schema.ConfidenceScale)
	}
	if got := spreadConfidence(100, 100, 0); got != 0 {
		t.Fatalf("confidence = %d, want 0 on zero spread", got)
	}
}

func TestRegistryBuildPreservesOrder(t *testing.T) {
	set, err := Default().Build([]string{"confluence", "ehma"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(set) != 2 || set[0].Name() != "confluence" || set[1].Name() != "ehma" {
		t.Fatalf("built %v, want [confluence ehma] in order", set)
	}
}

func TestRegistryRejectsUnknownAndEmpty(t *testing.T) {
	if _, err := Default().Build([]string{"ehma", "nope"}); !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("err = %v, want ErrUnknownStrategy", err)
	}
	if _, err := Default().Build(nil); !errors.Is(err, ErrEmptyStrategySet) {
		t.Fatalf("err = %v, want ErrEmptyStrategySet", err)
	}
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("x", func() Strategy { return EHMA{} }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("x", func() Strategy { return EHMA{} }); !errors.Is(err, ErrDuplicateStrategy) {
		t.Fatalf("err = %v, want ErrDuplicateStrategy", err)
	}
}
