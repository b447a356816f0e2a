package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

type summary struct {
	ExitCode int      `json:"exit_code"`
	Warnings []string `json:"warnings"`
}

func TestWriteJSON_ReplacesAtomically(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out", "summary.json")

	if err := WriteJSON(path, summary{ExitCode: 2, Warnings: []string{"a"}}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if err := WriteJSON(path, summary{ExitCode: 0}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got summary
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ExitCode != 0 || len(got.Warnings) != 0 {
		t.Fatalf("got %+v", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestWriteJSON_EncodeErrorKeepsOldFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "summary.json")
	if err := WriteJSON(path, summary{ExitCode: 1}); err != nil {
		t.Fatal(err)
	}
	if err := WriteJSON(path, map[string]any{"bad": make(chan int)}); err == nil {
		t.Fatalf("expected encode error")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got summary
	if err := json.Unmarshal(b, &got); err != nil || got.ExitCode != 1 {
		t.Fatalf("old summary lost: %+v %v", got, err)
	}
}

func TestBlankPathIsNoop(t *testing.T) {
	t.Parallel()

	if err := WriteJSON("", summary{}); err != nil {
		t.Fatal(err)
	}
}
