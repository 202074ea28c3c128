// Package tracelog writes a JSONL trace of simulation events — one line per
// channel fire — to daily-rotated files, for after-the-fact replay or
// debugging of a run.
package tracelog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event is one recorded channel fire.
type Event struct {
	RunID     string  `json:"run_id"`
	SimTime   float64 `json:"sim_time"`
	Scope     string  `json:"scope"` // "world", "agent", or "run" for a whole-run event
	Channel   string  `json:"channel"`
	AgentID   string  `json:"agent_id,omitempty"`
	Modified  bool    `json:"modified"`
	WallClock string  `json:"wall_clock"`
}

// Writer appends Events as JSON lines to a daily-rotated file under a
// directory, one file per run ID and UTC date.
type Writer struct {
	dir         string
	runID       string
	mu          sync.Mutex
	currentFile *os.File
	currentDate string
}

// NewWriter creates the trace directory if needed and opens today's file.
func NewWriter(dir, runID string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tracelog: creating directory %s: %w", dir, err)
	}
	w := &Writer{dir: dir, runID: runID}
	if err := w.rotateIfNeeded(); err != nil {
		return nil, fmt.Errorf("tracelog: opening initial file: %w", err)
	}
	return w, nil
}

// Write appends one event to the current day's file, rotating first if the
// wall-clock date has changed since the last write.
func (w *Writer) Write(ev Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.rotateIfNeeded(); err != nil {
		return fmt.Errorf("tracelog: rotating: %w", err)
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("tracelog: marshaling event: %w", err)
	}
	if _, err := w.currentFile.Write(line); err != nil {
		return fmt.Errorf("tracelog: writing event: %w", err)
	}
	if _, err := w.currentFile.WriteString("\n"); err != nil {
		return fmt.Errorf("tracelog: writing newline: %w", err)
	}
	return w.currentFile.Sync()
}

func (w *Writer) rotateIfNeeded() error {
	today := time.Now().UTC().Format("2006-01-02")
	if w.currentFile != nil && w.currentDate == today {
		return nil
	}
	if w.currentFile != nil {
		if err := w.currentFile.Close(); err != nil {
			return fmt.Errorf("closing previous trace file: %w", err)
		}
	}
	name := fmt.Sprintf("trace-%s-%s.jsonl", w.runID, today)
	f, err := os.OpenFile(filepath.Join(w.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening trace file %s: %w", name, err)
	}
	w.currentFile = f
	w.currentDate = today
	return nil
}

// Close flushes and closes the current file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.currentFile == nil {
		return nil
	}
	err := w.currentFile.Close()
	w.currentFile = nil
	return err
}
