package wal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"main/internal/schema"
)

// ScanConfig controls directory scans and playback.
type ScanConfig struct {
	Dir             string
	FilePrefix      string
	FromSeq         uint64
	DisableChecksum bool
	MaxPayloadSize  int
	// Speed enables event-time pacing during playback: 1 is real time,
	// 0 disables pacing (read as fast as possible).
	Speed       float64
	UseRecvTime bool
}

func (c ScanConfig) withDefaults() ScanConfig {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the config is usable.
func (c ScanConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("invalid wal scan config: Dir is empty")
	}
	if c.Speed < 0 {
		return fmt.Errorf("invalid wal scan config: Speed must be >= 0")
	}
	if c.MaxPayloadSize < 0 {
		return fmt.Errorf("invalid wal scan config: MaxPayloadSize must be >= 0")
	}
	return nil
}

// Sleeper allows deterministic pacing control in tests.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Scanner replays WAL records in segment order. Records with Seq at or below
// FromSeq are skipped, which gives durable-rail consumers cursor recovery.
type Scanner struct {
	cfg     ScanConfig
	sleeper Sleeper
}

// NewScanner validates the config and creates a scanner.
func NewScanner(cfg ScanConfig) (*Scanner, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scanner{cfg: cfg, sleeper: realSleeper{}}, nil
}

// WithSleeper swaps the pacing implementation.
func (s *Scanner) WithSleeper(sleeper Sleeper) *Scanner {
	if sleeper != nil {
		s.sleeper = sleeper
	}
	return s
}

// Run scans WAL segments and calls the handler for each record.
func (s *Scanner) Run(ctx context.Context, handler func(schema.EventHeader, []byte) error) error {
	if handler == nil {
		return errors.New("wal scan handler is nil")
	}
	files, err := s.collectFiles()
	if err != nil {
		return err
	}

	var prevTS int64
	for _, path := range files {
		if err := s.scanFile(ctx, path, handler, &prevTS); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) collectFiles() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return nil, err
	}
	prefix := s.cfg.FilePrefix + "-"
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".wal") {
			continue
		}
		files = append(files, filepath.Join(s.cfg.Dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func (s *Scanner) scanFile(ctx context.Context, path string, handler func(schema.EventHeader, []byte) error, prevTS *int64) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := NewReader(file, ReaderOptions{
		DisableChecksum: s.cfg.DisableChecksum,
		MaxPayloadSize:  s.cfg.MaxPayloadSize,
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header, payload, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read %s: %w", path, err)
		}
		if s.cfg.FromSeq > 0 && header.Seq <= s.cfg.FromSeq {
			continue
		}

		if err := s.pace(ctx, header, prevTS); err != nil {
			return err
		}
		if err := handler(header, payload); err != nil {
			return err
		}
	}
}

func (s *Scanner) pace(ctx context.Context, header schema.EventHeader, prevTS *int64) error {
	if s.cfg.Speed <= 0 {
		return nil
	}
	current := header.TsEvent
	if s.cfg.UseRecvTime {
		current = header.TsRecv
	}
	if current <= 0 {
		return nil
	}
	if *prevTS > 0 {
		delta := current - *prevTS
		if delta > 0 {
			sleep := time.Duration(float64(delta) / s.cfg.Speed)
			if err := s.sleeper.Sleep(ctx, sleep); err != nil {
				return err
			}
		}
	}
	*prevTS = current
	return nil
}
