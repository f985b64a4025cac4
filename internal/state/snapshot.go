package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"main/internal/schema"
)

// Snapshot captures positions at a point in time.
type Snapshot struct {
	Timestamp   int64           `json:"timestamp"`
	LastSeq     uint64          `json:"lastSeq"`
	LastEventTs int64           `json:"lastEventTs"`
	Positions   []PositionEntry `json:"positions"`
}

// PositionEntry is a single instrument position entry.
type PositionEntry struct {
	InstrumentID schema.InstrumentID `json:"instrumentId"`
	Qty          schema.Quantity     `json:"qty"`
	AvgEntry     schema.Price        `json:"avgEntry"`
	Realized     schema.Notional     `json:"realized"`
}

// Snapshot builds a snapshot from current positions.
func (t *Tracker) Snapshot() Snapshot {
	return t.SnapshotWithMeta(0, 0)
}

// SnapshotWithMeta builds a snapshot with event cursor metadata.
func (t *Tracker) SnapshotWithMeta(lastSeq uint64, lastEventTs int64) Snapshot {
	entries := make([]PositionEntry, 0, len(t.positions))
	for id, pos := range t.positions {
		entries = append(entries, PositionEntry{
			InstrumentID: id,
			Qty:          pos.Qty,
			AvgEntry:     pos.AvgEntry,
			Realized:     pos.Realized,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].InstrumentID < entries[j].InstrumentID
	})
	return Snapshot{
		Timestamp:   time.Now().UTC().UnixNano(),
		LastSeq:     lastSeq,
		LastEventTs: lastEventTs,
		Positions:   entries,
	}
}

// ApplySnapshot replaces positions with a snapshot. Applied trade IDs are
// cleared; the snapshot cursor is what guards against re-applying history.
func (t *Tracker) ApplySnapshot(snapshot Snapshot) {
	t.positions = make(map[schema.InstrumentID]*Position, len(snapshot.Positions))
	t.applied = make(map[uint64]struct{})
	for _, entry := range snapshot.Positions {
		t.positions[entry.InstrumentID] = &Position{
			InstrumentID: entry.InstrumentID,
			Qty:          entry.Qty,
			AvgEntry:     entry.AvgEntry,
			Realized:     entry.Realized,
		}
	}
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snapshot Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// CompareSnapshots checks if two snapshots hold the same positions.
func CompareSnapshots(expected, actual Snapshot) error {
	if len(expected.Positions) != len(actual.Positions) {
		return fmt.Errorf("snapshot length mismatch: expected=%d actual=%d", len(expected.Positions), len(actual.Positions))
	}
	expectedMap := make(map[schema.InstrumentID]PositionEntry, len(expected.Positions))
	for _, entry := range expected.Positions {
		expectedMap[entry.InstrumentID] = entry
	}
	for _, entry := range actual.Positions {
		want, ok := expectedMap[entry.InstrumentID]
		if !ok {
			return fmt.Errorf("snapshot missing instrument: %d", entry.InstrumentID)
		}
		if want.Qty != entry.Qty {
			return fmt.Errorf("snapshot qty mismatch: instrument=%d expected=%d actual=%d", entry.InstrumentID, want.Qty, entry.Qty)
		}
		if want.AvgEntry != entry.AvgEntry {
			return fmt.Errorf("snapshot avg entry mismatch: instrument=%d expected=%d actual=%d", entry.InstrumentID, want.AvgEntry, entry.AvgEntry)
		}
		if want.Realized != entry.Realized {
			return fmt.Errorf("snapshot realized mismatch: instrument=%d expected=%d actual=%d", entry.InstrumentID, want.Realized, entry.Realized)
		}
	}
	return nil
}
