package feed

import (
	"sync"

	"github.com/yanun0323/errors"

	"main/internal/clock"
	"main/internal/schema"
)

var (
	ErrNoBars        = errors.New("no bars in window")
	ErrBarOutOfOrder = errors.New("bar timestamps must be strictly increasing per instrument")
)

// Source supplies the bar for an instrument at the current clock cycle.
// A false return is a data gap: the runner skips the instrument for the
// cycle and never fabricates a bar.
type Source interface {
	Next(id schema.InstrumentID) (schema.Bar, bool)
}

// ReplaySource serves bars from a historical window. It owns the replay
// clock: the window's distinct timestamps are the clock's timeline, so the
// source decides which timestamp is next and the clock just reports it.
type ReplaySource struct {
	clk  *clock.Replay
	byTs map[int64]map[schema.InstrumentID]schema.Bar
}

// NewReplaySource validates the window and builds the source plus its
// clock. The same window always produces the same timeline.
func NewReplaySource(bars []schema.Bar) (*ReplaySource, *clock.Replay, error) {
	if len(bars) == 0 {
		return nil, nil, ErrNoBars
	}

	lastTs := make(map[schema.InstrumentID]int64)
	byTs := make(map[int64]map[schema.InstrumentID]schema.Bar)
	var timeline []int64
	for _, bar := range bars {
		id := schema.InstrumentID(bar.InstrumentID)
		if prev, ok := lastTs[id]; ok && bar.TsNano <= prev {
			return nil, nil, ErrBarOutOfOrder
		}
		lastTs[id] = bar.TsNano

		cycle, ok := byTs[bar.TsNano]
		if !ok {
			cycle = make(map[schema.InstrumentID]schema.Bar)
			byTs[bar.TsNano] = cycle
			timeline = append(timeline, bar.TsNano)
		}
		cycle[id] = bar
	}

	sortInt64(timeline)
	clk, err := clock.NewReplay(timeline)
	if err != nil {
		return nil, nil, err
	}
	return &ReplaySource{clk: clk, byTs: byTs}, clk, nil
}

// Next returns the bar for the instrument at the clock's current cycle.
func (s *ReplaySource) Next(id schema.InstrumentID) (schema.Bar, bool) {
	cycle, ok := s.byTs[s.clk.Now()]
	if !ok {
		return schema.Bar{}, false
	}
	bar, ok := cycle[id]
	return bar, ok
}

// LiveSource buffers the newest bar per instrument pushed by an ingestion
// boundary. Next consumes the pending bar; an instrument with no fresh bar
// is a data gap for that cycle.
type LiveSource struct {
	mu      sync.Mutex
	pending map[schema.InstrumentID]schema.Bar
}

// NewLiveSource creates an empty live source.
func NewLiveSource() *LiveSource {
	return &LiveSource{pending: make(map[schema.InstrumentID]schema.Bar)}
}

// Push stores the latest bar for an instrument, replacing any unconsumed
// one. Only the ingestion side calls Push.
func (s *LiveSource) Push(bar schema.Bar) {
	s.mu.Lock()
	s.pending[schema.InstrumentID(bar.InstrumentID)] = bar
	s.mu.Unlock()
}

// Next consumes the pending bar for an instrument.
func (s *LiveSource) Next(id schema.InstrumentID) (schema.Bar, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bar, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	return bar, ok
}

func sortInt64(v []int64) {
	// Insertion sort; timelines arrive nearly sorted from append order.
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j] < v[j-1]; j-- {
			v[j], v[j-1] = v[j-1], v[j]
		}
	}
}
