package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger("debug", &bytes.Buffer{})
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}

	logger = NewLogger("invalid", &bytes.Buffer{})
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %s", logger.GetLevel())
	}

	logger = NewLogger("", &bytes.Buffer{})
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info for empty level, got %s", logger.GetLevel())
	}
}

func TestNewLoggerWritesPlainText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("INFO", &buf)
	logger.Info().Str("pkg", "httpx").Msg("installed")
	logger.Debug().Msg("hidden")

	out := buf.String()
	if !strings.Contains(out, "installed") || !strings.Contains(out, "pkg=httpx") {
		t.Fatalf("unexpected output: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked at info level: %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no color codes for non-terminal writer: %q", out)
	}
}
