// Package proc runs external commands synchronously and captures their output.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultMaxOutput caps how much of each stream is kept in a Result.
const DefaultMaxOutput = 64 << 10

var ErrTimeout = errors.New("command timed out")

type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// ExitError reports a command that ran to completion with a non-zero status.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Command, e.Code)
	if s := FirstLine(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Runner executes one command and waits for it. A nil error means exit status 0.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error)
}

// ExecRunner is the os/exec backed Runner.
type ExecRunner struct {
	// Env, when non-nil, replaces the inherited environment.
	Env       []string
	MaxOutput int
}

func (r ExecRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	limit := r.MaxOutput
	if limit <= 0 {
		limit = DefaultMaxOutput
	}
	stdout := &capBuffer{limit: limit}
	stderr := &capBuffer{limit: limit}

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = 2 * time.Second
	if r.Env != nil {
		cmd.Env = r.Env
	}

	started := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(started),
	}
	if err == nil {
		return res, nil
	}

	res.ExitCode = -1
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("%s: %w after %s", name, ErrTimeout, timeout)
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		res.ExitCode = ee.ExitCode()
		return res, &ExitError{Command: Describe(name, args...), Code: res.ExitCode, Stderr: res.Stderr}
	}
	return res, fmt.Errorf("start %s: %w", name, err)
}

// Describe renders a command line for diagnostics.
func Describe(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// FirstLine returns the first non-blank line of s.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// Truncate shortens s to at most n bytes.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// capBuffer keeps the first limit bytes and drops the rest so a chatty child
// never blocks on a full pipe. String marks a dropped tail.
type capBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *capBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

const truncatedMarker = "\n[output truncated]"

func (b *capBuffer) String() string {
	if b.truncated {
		return b.buf.String() + truncatedMarker
	}
	return b.buf.String()
}
