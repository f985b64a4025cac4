package strategy

import "main/internal/schema"

// Strategy is a pure function over one bar and its read-only context.
// Implementations are stateless across calls: replayed from an identical
// bar/context history they must produce an identical signal, which is what
// makes backtest and live runs comparable. Strategies never touch broker or
// persistence collaborators.
//
// The returned signal carries only Kind and Confidence; the runner stamps
// identity and timestamps. The second return value is false when the
// strategy has no intent for this bar.
type Strategy interface {
	Name() string
	Process(bar schema.Bar, ctx Context) (schema.Signal, bool)
}

func clampConfidence(v int64) uint16 {
	if v < 0 {
		return 0
	}
	if v > schema.ConfidenceScale {
		return schema.ConfidenceScale
	}
	return uint16(v)
}

// spreadConfidence grades EMA separation against the rolling range.
func spreadConfidence(fast, slow, rng schema.Price) uint16 {
	spread := int64(fast) - int64(slow)
	if spread < 0 {
		spread = -spread
	}
	base := int64(rng)
	if base <= 0 {
		base = 1
	}
	return clampConfidence(spread * schema.ConfidenceScale / base)
}
