// Package trace writes and reads zstd-compressed JSONL tick traces, one
// snapshot per line.
package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/orchard-sim/internal/engine"
)

// Ext is the file extension of trace files.
const Ext = ".jsonl.zst"

// Writer appends JSON values to a compressed JSONL file.
type Writer struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// PathFor returns the trace file path for a run inside dir.
func PathFor(dir, runID string) string {
	return filepath.Join(dir, runID+Ext)
}

// Create opens a new trace file at path, creating parent directories.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create trace dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	return &Writer{
		path: path,
		f:    f,
		enc:  enc,
		w:    bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

// Path returns the file the writer appends to.
func (w *Writer) Path() string {
	return w.path
}

// Write appends one JSON line.
func (w *Writer) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return fmt.Errorf("trace %s is closed", w.path)
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// RecordTick implements engine.Recorder.
func (w *Writer) RecordTick(snap *engine.Snapshot) error {
	return w.Write(snap)
}

// Close flushes and closes the trace. Closing twice is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	if w.w != nil {
		err = w.w.Flush()
		w.w = nil
	}
	if w.enc != nil {
		if cerr := w.enc.Close(); err == nil {
			err = cerr
		}
		w.enc = nil
	}
	if w.f != nil {
		if cerr := w.f.Close(); err == nil {
			err = cerr
		}
		w.f = nil
	}
	return err
}

// Read decodes every snapshot in a trace file, in order, calling fn for each.
// Reading stops at the first error fn returns.
func Read(path string, fn func(*engine.Snapshot) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		var snap engine.Snapshot
		if err := json.Unmarshal(sc.Bytes(), &snap); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(&snap); err != nil {
			return err
		}
	}
	return sc.Err()
}

// Summary condenses a trace.
type Summary struct {
	Ticks      int     `json:"ticks"`
	FirstTick  uint64  `json:"first_tick"`
	LastTick   uint64  `json:"last_tick"`
	Delivered  int     `json:"delivered"`
	Yield      float64 `json:"yield"`
	MaxBins    int     `json:"max_bins"`
	AgentMoves int     `json:"agent_moves"`
}

// Summarize reads a trace and returns its summary.
func Summarize(path string) (Summary, error) {
	var s Summary
	last := make(map[int]engine.AgentSample)
	err := Read(path, func(snap *engine.Snapshot) error {
		if s.Ticks == 0 {
			s.FirstTick = snap.Tick
		}
		s.Ticks++
		s.LastTick = snap.Tick
		s.Delivered = snap.RepoCount
		for _, d := range snap.Deliveries {
			s.Yield += d.Bin.Level
		}
		s.MaxBins = max(s.MaxBins, len(snap.Bins))
		for _, a := range snap.Agents {
			if prev, ok := last[int(a.ID)]; ok && prev.Loc != a.Loc {
				s.AgentMoves++
			}
			last[int(a.ID)] = a
		}
		return nil
	})
	return s, err
}
