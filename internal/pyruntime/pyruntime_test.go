package pyruntime

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"poly-bootstrap/internal/proc"
)

func TestParseVersion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Version
	}{
		{"3.11", Version{3, 11, 0}},
		{"3.8.10", Version{3, 8, 10}},
		{"Python 3.12.1", Version{3, 12, 1}},
		{"3.13.0rc1\n", Version{3, 13, 0}},
	}
	for _, tc := range cases {
		got, err := ParseVersion(tc.in)
		if err != nil {
			t.Fatalf("ParseVersion(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseVersion(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := ParseVersion("not a version"); err == nil {
		t.Fatalf("expected error for garbage input")
	}
}

func TestVersionAtLeastMinimum(t *testing.T) {
	t.Parallel()

	below := []string{"2.7.18", "3.0", "3.8.10", "3.8.99"}
	for _, s := range below {
		v, _ := ParseVersion(s)
		if v.AtLeast(MinimumVersion) {
			t.Fatalf("%s should be below %s", s, MinimumVersion.Short())
		}
	}
	atOrAbove := []string{"3.9", "3.9.0", "3.10.2", "3.11", "4.0"}
	for _, s := range atOrAbove {
		v, _ := ParseVersion(s)
		if !v.AtLeast(MinimumVersion) {
			t.Fatalf("%s should satisfy %s", s, MinimumVersion.Short())
		}
	}
}

func TestLocate(t *testing.T) {
	t.Parallel()

	onPath := func(names ...string) func(string) (string, error) {
		return func(name string) (string, error) {
			for _, n := range names {
				if n == name {
					return "/usr/bin/" + name, nil
				}
			}
			return "", fmt.Errorf("%s: not found", name)
		}
	}

	t.Run("prefers_python3", func(t *testing.T) {
		t.Parallel()
		got, err := Locate("", onPath("python", "python3"))
		if err != nil {
			t.Fatalf("Locate: %v", err)
		}
		if got.Path != "/usr/bin/python3" || len(got.Args) != 0 {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("windows_launcher", func(t *testing.T) {
		t.Parallel()
		got, err := Locate("", onPath("py"))
		if err != nil {
			t.Fatalf("Locate: %v", err)
		}
		if got.String() != "/usr/bin/py -3" {
			t.Fatalf("got %q", got.String())
		}
	})

	t.Run("explicit_with_args", func(t *testing.T) {
		t.Parallel()
		got, err := Locate("py -3.11", onPath("py"))
		if err != nil {
			t.Fatalf("Locate: %v", err)
		}
		name, args := got.Pip("install", "httpx")
		if name != "/usr/bin/py" || fmt.Sprint(args) != "[-3.11 -m pip install httpx]" {
			t.Fatalf("Pip = %s %v", name, args)
		}
	})

	t.Run("explicit_path_with_spaces", func(t *testing.T) {
		t.Parallel()
		const exe = `C:\Program Files\Python311\python.exe`
		lookPath := func(name string) (string, error) {
			if name == exe {
				return name, nil
			}
			return "", fmt.Errorf("%s: not found", name)
		}
		got, err := Locate("  "+exe+" ", lookPath)
		if err != nil {
			t.Fatalf("Locate: %v", err)
		}
		if got.Path != exe || len(got.Args) != 0 {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("explicit_missing", func(t *testing.T) {
		t.Parallel()
		_, err := Locate("/opt/python3.12/bin/python", onPath("python3"))
		if !errors.Is(err, ErrInterpreterNotFound) {
			t.Fatalf("expected ErrInterpreterNotFound, got %v", err)
		}
	})

	t.Run("none", func(t *testing.T) {
		t.Parallel()
		_, err := Locate("", onPath())
		if !errors.Is(err, ErrInterpreterNotFound) {
			t.Fatalf("expected ErrInterpreterNotFound, got %v", err)
		}
	})
}

type stubRunner struct {
	stdout string
	err    error
	args   []string
}

func (s *stubRunner) Run(_ context.Context, _ time.Duration, name string, args ...string) (proc.Result, error) {
	s.args = append([]string{name}, args...)
	return proc.Result{Stdout: s.stdout}, s.err
}

func TestProbe(t *testing.T) {
	t.Parallel()

	r := &stubRunner{stdout: "3.11.4\n"}
	v, err := Probe(context.Background(), r, Interpreter{Path: "python3"})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if v != (Version{3, 11, 4}) {
		t.Fatalf("got %v", v)
	}
	if len(r.args) != 3 || r.args[1] != "-c" {
		t.Fatalf("unexpected argv %v", r.args)
	}

	failing := &stubRunner{err: errors.New("boom")}
	if _, err := Probe(context.Background(), failing, Interpreter{Path: "python3"}); err == nil {
		t.Fatalf("expected error")
	}
}
