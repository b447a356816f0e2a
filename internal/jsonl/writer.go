// Package jsonl writes newline-delimited JSON records, one per event.
package jsonl

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Writer is safe for concurrent use. A nil *Writer discards everything, so
// callers can leave the transcript optional without branching.
type Writer struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	records int
}

// Create opens path for writing, creating parent directories. Existing
// content is kept unless truncate is set. A blank path yields a nil Writer.
func Create(path string, truncate bool) (*Writer, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open transcript %s: %w", path, err)
	}
	return &Writer{path: path, file: f}, nil
}

func (w *Writer) Path() string {
	if w == nil {
		return ""
	}
	return w.path
}

// Records counts lines written since Create.
func (w *Writer) Records() int {
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records
}

// Write appends v as one line. The line goes out in a single write call so
// tailers never observe a partial record.
func (w *Writer) Write(v any) error {
	if w == nil {
		return nil
	}
	if v == nil {
		return fmt.Errorf("jsonl: nil record")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return os.ErrClosed
	}
	if _, err := w.file.Write(b); err != nil {
		return err
	}
	w.records++
	return nil
}

func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
