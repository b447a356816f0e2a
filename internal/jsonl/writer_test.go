package jsonl

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type rec struct {
	Event string `json:"event"`
	N     int    `json:"n"`
}

func readLines(t *testing.T, path string) []rec {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var out []rec
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r rec
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		out = append(out, r)
	}
	return out
}

func TestWriter_AppendAndTruncate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "run.jsonl")
	for i, truncate := range []bool{false, false, true} {
		w, err := Create(path, truncate)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := w.Write(rec{Event: "step", N: i}); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if w.Records() != 1 {
			t.Fatalf("records: %d", w.Records())
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if i == 1 {
			if got := readLines(t, path); len(got) != 2 {
				t.Fatalf("append mode lost records: %v", got)
			}
		}
	}
	got := readLines(t, path)
	if len(got) != 1 || got[0].N != 2 {
		t.Fatalf("truncate mode: %v", got)
	}
}

func TestWriter_ConcurrentLinesStayWhole(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.jsonl")
	w, err := Create(path, true)
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = w.Write(rec{Event: "step", N: i})
		}(i)
	}
	wg.Wait()
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if got := readLines(t, path); len(got) != 50 {
		t.Fatalf("got %d lines", len(got))
	}
}

func TestWriter_NilAndClosed(t *testing.T) {
	t.Parallel()

	w, err := Create("  ", false)
	if err != nil || w != nil {
		t.Fatalf("blank path: w=%v err=%v", w, err)
	}
	if err := w.Write(rec{}); err != nil {
		t.Fatalf("nil writer Write: %v", err)
	}
	if w.Records() != 0 || w.Path() != "" || w.Close() != nil {
		t.Fatalf("nil writer should be inert")
	}

	w, err = Create(filepath.Join(t.TempDir(), "x.jsonl"), false)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(nil); err == nil {
		t.Fatalf("expected nil record error")
	}
	_ = w.Close()
	if err := w.Write(rec{}); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("write after close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("double close: %v", err)
	}
}
