package clock

import "testing"

func TestReplayAdvance(t *testing.T) {
	replay, err := NewReplay([]int64{100, 200, 200, 300})
	if err != nil {
		t.Fatalf("new replay: %v", err)
	}

	want := []int64{100, 200, 200, 300}
	for i, expected := range want {
		ts, ok := replay.Advance()
		if !ok {
			t.Fatalf("advance %d: exhausted early", i)
		}
		if ts != expected {
			t.Fatalf("advance %d = %d, want %d", i, ts, expected)
		}
		if replay.Now() != expected {
			t.Fatalf("now after advance %d = %d, want %d", i, replay.Now(), expected)
		}
	}
	if _, ok := replay.Advance(); ok {
		t.Fatal("advance past end did not report exhaustion")
	}
	if replay.Now() != 300 {
		t.Fatalf("now after exhaustion = %d, want 300", replay.Now())
	}
}

func TestReplayRejectsDecreasingSequence(t *testing.T) {
	if _, err := NewReplay([]int64{100, 99}); err == nil {
		t.Fatal("decreasing sequence accepted")
	}
}

func TestReplayIdenticalRuns(t *testing.T) {
	seq := []int64{10, 20, 30, 40, 50}
	collect := func() []int64 {
		replay, err := NewReplay(seq)
		if err != nil {
			t.Fatalf("new replay: %v", err)
		}
		var out []int64
		for {
			ts, ok := replay.Advance()
			if !ok {
				return out
			}
			out = append(out, ts)
		}
	}

	first := collect()
	second := collect()
	if len(first) != len(second) {
		t.Fatalf("run lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("runs diverge at %d: %d vs %d", i, first[i], second[i])
		}
	}
}

func TestLiveNowIsMonotonic(t *testing.T) {
	live := NewLive()
	prev := live.Now()
	for i := 0; i < 1000; i++ {
		now := live.Now()
		if now < prev {
			t.Fatalf("clock went backwards: %d after %d", now, prev)
		}
		prev = now
	}
}
