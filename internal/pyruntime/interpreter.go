// Package pyruntime locates the host Python interpreter and reports its version.
package pyruntime

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"poly-bootstrap/internal/proc"
)

var ErrInterpreterNotFound = errors.New("python interpreter not found")

// versionScript prints major.minor.micro and works on every CPython since 2.6.
const versionScript = "import sys; print('%d.%d.%d' % tuple(sys.version_info[:3]))"

const probeTimeout = 30 * time.Second

// Interpreter is a python executable plus any launcher arguments (py -3).
type Interpreter struct {
	Path string
	Args []string
}

func (i Interpreter) String() string {
	return proc.Describe(i.Path, i.Args...)
}

// Command builds the argv for running the interpreter with extra arguments.
func (i Interpreter) Command(args ...string) (string, []string) {
	full := make([]string, 0, len(i.Args)+len(args))
	full = append(full, i.Args...)
	full = append(full, args...)
	return i.Path, full
}

// Pip builds `python -m pip <args>`.
func (i Interpreter) Pip(args ...string) (string, []string) {
	return i.Command(append([]string{"-m", "pip"}, args...)...)
}

type candidate struct {
	name string
	args []string
}

var defaultCandidates = []candidate{
	{name: "python3"},
	{name: "python"},
	{name: "py", args: []string{"-3"}},
}

// Locate resolves explicit (a path, which may contain spaces, or a command
// line such as "py -3") or, when blank, the first of python3, python, py -3
// found on PATH. lookPath defaults to exec.LookPath.
func Locate(explicit string, lookPath func(string) (string, error)) (Interpreter, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	if explicit = strings.TrimSpace(explicit); explicit != "" {
		p, err := lookPath(explicit)
		if err == nil {
			return Interpreter{Path: p}, nil
		}
		// not a path on its own, so treat it as a launcher plus arguments
		fields := strings.Fields(explicit)
		if len(fields) == 1 {
			return Interpreter{}, fmt.Errorf("%w: %q: %v", ErrInterpreterNotFound, explicit, err)
		}
		p, err = lookPath(fields[0])
		if err != nil {
			return Interpreter{}, fmt.Errorf("%w: %q: %v", ErrInterpreterNotFound, explicit, err)
		}
		return Interpreter{Path: p, Args: fields[1:]}, nil
	}

	tried := make([]string, 0, len(defaultCandidates))
	for _, c := range defaultCandidates {
		p, err := lookPath(c.name)
		if err != nil {
			tried = append(tried, c.name)
			continue
		}
		return Interpreter{Path: p, Args: c.args}, nil
	}
	return Interpreter{}, fmt.Errorf("%w on PATH (tried %s)", ErrInterpreterNotFound, strings.Join(tried, ", "))
}

// Probe asks the interpreter for its version. It has no side effects.
func Probe(ctx context.Context, r proc.Runner, i Interpreter) (Version, error) {
	name, args := i.Command("-c", versionScript)
	res, err := r.Run(ctx, probeTimeout, name, args...)
	if err != nil {
		return Version{}, fmt.Errorf("query %s version: %w", i, err)
	}
	return ParseVersion(strings.TrimSpace(res.Stdout))
}
