package wal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"main/internal/schema"
)

var (
	ErrClosed          = errors.New("wal writer closed")
	ErrPayloadTooLarge = errors.New("wal payload too large")
)

const maxPayloadLen = uint64(^uint32(0))

// Writer appends events to WAL segments. It is synchronous: when Append
// returns nil the record has reached the segment buffer (and the disk when
// SyncEveryRecord is set). The writer is owned by exactly one goroutine;
// single-writer-per-resource is the process model, not a lock.
type Writer struct {
	cfg Config

	seg         *segment
	segID       uint64
	headerBuf   [recordHeaderSize]byte
	checksumBuf [4]byte
	closed      bool
}

type segment struct {
	file     *os.File
	buf      *bufio.Writer
	size     int64
	openedAt time.Time
}

// NewWriter creates a WAL writer and ensures the target directory exists.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &Writer{cfg: cfg}, nil
}

// Append writes one record, rotating segments as needed.
func (w *Writer) Append(header schema.EventHeader, payload []byte) error {
	if w.closed {
		return ErrClosed
	}
	if uint64(len(payload)) > maxPayloadLen {
		return ErrPayloadTooLarge
	}
	if header.Version == 0 {
		header.Version = schema.SchemaVersion
	}

	now := time.Now().UTC()
	recordSize := int64(recordHeaderSize + len(payload) + recordChecksumSize)
	if w.shouldRotate(now, recordSize) {
		if err := w.closeSegment(); err != nil {
			return err
		}
		if err := w.openSegment(now); err != nil {
			return err
		}
	}

	encodeRecordHeader(w.headerBuf[:], header, len(payload))
	sum := checksum(w.headerBuf[:], payload)
	w.checksumBuf[0] = byte(sum)
	w.checksumBuf[1] = byte(sum >> 8)
	w.checksumBuf[2] = byte(sum >> 16)
	w.checksumBuf[3] = byte(sum >> 24)

	if _, err := w.seg.buf.Write(w.headerBuf[:]); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.seg.buf.Write(payload); err != nil {
			return err
		}
	}
	if _, err := w.seg.buf.Write(w.checksumBuf[:]); err != nil {
		return err
	}
	w.seg.size += recordSize

	if w.cfg.SyncEveryRecord {
		return w.Sync()
	}
	return nil
}

// Flush pushes buffered records to the OS.
func (w *Writer) Flush() error {
	if w.seg == nil {
		return nil
	}
	return w.seg.buf.Flush()
}

// Sync flushes and fsyncs the open segment.
func (w *Writer) Sync() error {
	if w.seg == nil {
		return nil
	}
	if err := w.seg.buf.Flush(); err != nil {
		return err
	}
	return w.seg.file.Sync()
}

// Close flushes, syncs and closes the open segment.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.closeSegment()
}

func (w *Writer) shouldRotate(now time.Time, nextSize int64) bool {
	if w.seg == nil {
		return true
	}
	if w.cfg.SegmentMaxBytes > 0 && w.seg.size+nextSize > w.cfg.SegmentMaxBytes {
		return true
	}
	if w.cfg.SegmentMaxDuration > 0 && now.Sub(w.seg.openedAt) >= w.cfg.SegmentMaxDuration {
		return true
	}
	return false
}

func (w *Writer) closeSegment() error {
	if w.seg == nil {
		return nil
	}
	seg := w.seg
	w.seg = nil
	if err := seg.buf.Flush(); err != nil {
		_ = seg.file.Close()
		return err
	}
	if err := seg.file.Sync(); err != nil {
		_ = seg.file.Close()
		return err
	}
	return seg.file.Close()
}

func (w *Writer) openSegment(now time.Time) error {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	ts := now.Format("20060102-150405")
	for {
		w.segID++
		name := fmt.Sprintf("%s-%s-%06d.wal", w.cfg.FilePrefix, ts, w.segID)
		path := filepath.Join(w.cfg.Dir, name)
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return err
		}
		w.seg = &segment{
			file:     file,
			buf:      bufio.NewWriterSize(file, w.cfg.BufferSize),
			openedAt: now,
		}
		return nil
	}
}
