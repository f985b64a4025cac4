package bus

import (
	"context"
	"testing"

	"main/internal/obs"
	"main/internal/schema"
	"main/internal/wal"
)

func newTestBus(t *testing.T, dir string) (*Bus, *obs.Metrics) {
	t.Helper()
	cfg := wal.DefaultConfig(dir)
	cfg.SegmentMaxDuration = 0
	w, err := wal.NewWriter(cfg)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	metrics := obs.NewMetrics()
	return New(w, 1, metrics), metrics
}

func TestPublishAssignsContiguousSequence(t *testing.T) {
	b, _ := newTestBus(t, t.TempDir())
	defer b.Close()

	for i := 1; i <= 5; i++ {
		header, err := b.Publish(schema.EventBar, int64(i), int64(i), 0, []byte{1})
		if err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
		if header.Seq != uint64(i) {
			t.Fatalf("seq = %d, want %d", header.Seq, i)
		}
		if header.TraceID != uint64(i) {
			t.Fatalf("traceID defaulted to %d, want %d", header.TraceID, i)
		}
	}
	if b.LastSeq() != 5 {
		t.Fatalf("last seq = %d, want 5", b.LastSeq())
	}
}

func TestBroadcastDeliversToSubscribers(t *testing.T) {
	b, _ := newTestBus(t, t.TempDir())
	defer b.Close()

	sub, cancel, err := b.Subscribe(TopicTrades, 8)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	payload := []byte{1, 2, 3}
	if _, err := b.Publish(schema.EventTrade, 10, 11, 42, payload); err != nil {
		t.Fatalf("publish: %v", err)
	}
	// Bar events go to a different topic; the trade subscriber must not
	// see them.
	if _, err := b.Publish(schema.EventBar, 12, 13, 0, payload); err != nil {
		t.Fatalf("publish bar: %v", err)
	}

	e := <-sub.Events()
	if e.Header.Type != schema.EventTrade || e.Header.Seq != 1 {
		t.Fatalf("unexpected event: %+v", e.Header)
	}
	payload[0] = 99
	if e.Payload[0] != 1 {
		t.Fatal("subscriber payload aliases the publisher buffer")
	}
	select {
	case extra := <-sub.Events():
		t.Fatalf("unexpected extra event: %+v", extra.Header)
	default:
	}
}

func TestSlowSubscriberDropsWithoutBlocking(t *testing.T) {
	b, metrics := newTestBus(t, t.TempDir())
	defer b.Close()

	_, cancel, err := b.Subscribe(TopicBars, 1)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	for i := 0; i < 10; i++ {
		if _, err := b.Publish(schema.EventBar, int64(i), int64(i), 0, []byte{1}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	snap := metrics.Snapshot()
	if snap.BroadcastDrops != 9 {
		t.Fatalf("broadcast drops = %d, want 9", snap.BroadcastDrops)
	}
	if b.LastSeq() != 10 {
		t.Fatalf("durable rail stopped at seq %d, want 10", b.LastSeq())
	}
}

func TestRecoverReplaysDurableRailInOrder(t *testing.T) {
	dir := t.TempDir()
	cfg := wal.DefaultConfig(dir)
	cfg.SegmentMaxDuration = 0
	w, err := wal.NewWriter(cfg)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	b := New(w, 1, obs.NewMetrics())

	const total = 100
	for i := 0; i < total; i++ {
		eventType := schema.EventTrade
		if i%2 == 0 {
			eventType = schema.EventBar
		}
		if _, err := b.Publish(eventType, int64(i), int64(i), 0, []byte{byte(i)}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	b.Close()
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	var seqs []uint64
	err = RecoverAll(context.Background(), wal.ScanConfig{Dir: dir}, func(e Event) error {
		seqs = append(seqs, e.Header.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if len(seqs) != total {
		t.Fatalf("recovered %d events, want %d", len(seqs), total)
	}
	for i, seq := range seqs {
		if seq != uint64(i+1) {
			t.Fatalf("order broken at %d: seq=%d", i, seq)
		}
	}

	var trades int
	err = Recover(context.Background(), wal.ScanConfig{Dir: dir, FromSeq: 50}, TopicTrades, func(e Event) error {
		if e.Topic != TopicTrades {
			t.Fatalf("wrong topic: %v", e.Topic)
		}
		trades++
		return nil
	})
	if err != nil {
		t.Fatalf("recover trades: %v", err)
	}
	// Seqs 51..100: odd publishes (i odd, seq=i+1 even) are trades.
	if trades != 25 {
		t.Fatalf("trades after cursor = %d, want 25", trades)
	}
}

func TestSubscribeAfterCloseFails(t *testing.T) {
	b, _ := newTestBus(t, t.TempDir())
	b.Close()
	if _, _, err := b.Subscribe(TopicBars, 1); err == nil {
		t.Fatal("subscribe on closed bus succeeded")
	}
}
