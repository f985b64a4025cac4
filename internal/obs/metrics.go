package obs

import (
	"sync/atomic"
	"time"

	"main/internal/schema"
)

const (
	maxEventType    = int(schema.EventHalt)
	maxRejectReason = int(schema.RejectReasonStrategyFault)
)

// Metrics collects lightweight counters and latency stats.
type Metrics struct {
	eventCounts    [maxEventType + 1]uint64
	rejectCounts   [maxRejectReason + 1]uint64
	broadcastDrops uint64
	strategyFaults uint64
	dataGaps       uint64

	cycleLatency  LatencyStats
	riskLatency   LatencyStats
	brokerLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts    map[schema.EventType]uint64
	RejectCounts   map[schema.RejectReason]uint64
	BroadcastDrops uint64
	StrategyFaults uint64
	DataGaps       uint64
	CycleLatency   LatencySnapshot
	RiskLatency    LatencySnapshot
	BrokerLatency  LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEvent increments counters and tracks event latency when timestamps
// are present.
func (m *Metrics) ObserveEvent(header schema.EventHeader) {
	if m == nil {
		return
	}
	idx := int(header.Type)
	if idx >= 0 && idx < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
}

// IncReject increments the reject reason counter.
func (m *Metrics) IncReject(reason schema.RejectReason) {
	if m == nil {
		return
	}
	idx := int(reason)
	if idx >= 0 && idx < len(m.rejectCounts) {
		atomic.AddUint64(&m.rejectCounts[idx], 1)
	}
}

// IncBroadcastDrop records a dropped broadcast delivery.
func (m *Metrics) IncBroadcastDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.broadcastDrops, 1)
}

// IncStrategyFault records an isolated strategy failure.
func (m *Metrics) IncStrategyFault() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.strategyFaults, 1)
}

// IncDataGap records a missing expected bar.
func (m *Metrics) IncDataGap() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.dataGaps, 1)
}

// ObserveCycle measures one orchestrator cycle.
func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycleLatency.Observe(d)
}

// ObserveRiskEval measures risk evaluation latency.
func (m *Metrics) ObserveRiskEval(d time.Duration) {
	if m == nil {
		return
	}
	m.riskLatency.Observe(d)
}

// ObserveBroker measures broker call latency.
func (m *Metrics) ObserveBroker(d time.Duration) {
	if m == nil {
		return
	}
	m.brokerLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	eventCounts := make(map[schema.EventType]uint64)
	for i := range m.eventCounts {
		if v := atomic.LoadUint64(&m.eventCounts[i]); v > 0 {
			eventCounts[schema.EventType(i)] = v
		}
	}
	rejectCounts := make(map[schema.RejectReason]uint64)
	for i := range m.rejectCounts {
		if v := atomic.LoadUint64(&m.rejectCounts[i]); v > 0 {
			rejectCounts[schema.RejectReason(i)] = v
		}
	}
	return Snapshot{
		EventCounts:    eventCounts,
		RejectCounts:   rejectCounts,
		BroadcastDrops: atomic.LoadUint64(&m.broadcastDrops),
		StrategyFaults: atomic.LoadUint64(&m.strategyFaults),
		DataGaps:       atomic.LoadUint64(&m.dataGaps),
		CycleLatency:   m.cycleLatency.Snapshot(),
		RiskLatency:    m.riskLatency.Snapshot(),
		BrokerLatency:  m.brokerLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
