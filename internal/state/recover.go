package state

import (
	"context"
	"fmt"

	"main/internal/codec"
	"main/internal/schema"
	"main/internal/wal"
)

// RecoverConfig controls snapshot + WAL recovery.
type RecoverConfig struct {
	WALDir          string
	SnapshotPath    string
	FilePrefix      string
	DisableChecksum bool
	MaxPayloadSize  int
}

// RecoverResult contains recovered state and cursor metadata.
type RecoverResult struct {
	Positions   *Tracker
	LastSeq     uint64
	LastEventTs int64
}

// RecoverPositions loads a snapshot and replays the WAL tail to rebuild
// positions after a crash or restart.
func RecoverPositions(ctx context.Context, cfg RecoverConfig) (RecoverResult, error) {
	if cfg.WALDir == "" {
		return RecoverResult{}, fmt.Errorf("wal dir is empty")
	}
	tracker := NewTracker()
	var lastSeq uint64
	var lastEventTs int64

	if cfg.SnapshotPath != "" {
		snapshot, err := ReadSnapshot(cfg.SnapshotPath)
		if err != nil {
			return RecoverResult{}, err
		}
		tracker.ApplySnapshot(snapshot)
		lastSeq = snapshot.LastSeq
		lastEventTs = snapshot.LastEventTs
	}

	scanner, err := wal.NewScanner(wal.ScanConfig{
		Dir:             cfg.WALDir,
		FilePrefix:      cfg.FilePrefix,
		FromSeq:         lastSeq,
		DisableChecksum: cfg.DisableChecksum,
		MaxPayloadSize:  cfg.MaxPayloadSize,
	})
	if err != nil {
		return RecoverResult{}, err
	}

	err = scanner.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		if header.Seq > lastSeq {
			lastSeq = header.Seq
		}
		if header.TsEvent > lastEventTs {
			lastEventTs = header.TsEvent
		}
		if header.Type != schema.EventTrade {
			return nil
		}
		trade, ok := codec.DecodeTrade(payload)
		if !ok {
			return fmt.Errorf("decode trade failed: seq=%d", header.Seq)
		}
		tracker.Apply(trade)
		return nil
	})
	if err != nil {
		return RecoverResult{}, err
	}

	return RecoverResult{
		Positions:   tracker,
		LastSeq:     lastSeq,
		LastEventTs: lastEventTs,
	}, nil
}
