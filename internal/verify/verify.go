// Package verify import-checks the installed python packages.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"poly-bootstrap/internal/manifest"
	"poly-bootstrap/internal/proc"
	"poly-bootstrap/internal/pyruntime"
)

const importTimeout = 60 * time.Second

type Check struct {
	Package   string         `json:"package"`
	Module    string         `json:"module"`
	Group     manifest.Group `json:"group"`
	Installed bool           `json:"installed"`
	Err       string         `json:"err,omitempty"`
}

func (c Check) Required() bool { return c.Group != manifest.GroupOptional }

type Result struct {
	Python string  `json:"python"`
	Checks []Check `json:"checks"`
}

func (r Result) Missing(required bool) []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Installed && c.Required() == required {
			out = append(out, c)
		}
	}
	return out
}

// ExitCode is 1 when a required module cannot be imported.
func (r Result) ExitCode() int {
	if len(r.Missing(true)) > 0 {
		return 1
	}
	return 0
}

// Run imports every manifest package that declares a module. Packages without
// a module name are skipped.
func Run(ctx context.Context, r proc.Runner, py pyruntime.Interpreter, m manifest.Manifest) (Result, error) {
	res := Result{Python: py.String()}
	groups := []struct {
		g    manifest.Group
		pkgs []manifest.Package
	}{
		{manifest.GroupCore, m.Core},
		{manifest.GroupFallback, m.Fallback},
		{manifest.GroupOptional, m.Optional},
	}
	for _, grp := range groups {
		for _, pkg := range grp.pkgs {
			if pkg.Module == "" {
				continue
			}
			if err := manifest.ValidateModule(pkg.Module); err != nil {
				return res, err
			}
			c := Check{Package: pkg.Name, Module: pkg.Module, Group: grp.g}
			name, args := py.Command("-c", "import "+pkg.Module)
			out, err := r.Run(ctx, importTimeout, name, args...)
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			var exitErr *proc.ExitError
			switch {
			case err == nil:
				c.Installed = true
			case errors.As(err, &exitErr):
				c.Err = lastLine(out.Stderr)
				if c.Err == "" {
					c.Err = err.Error()
				}
			default:
				return res, fmt.Errorf("run %s: %w", py, err)
			}
			res.Checks = append(res.Checks, c)
		}
	}
	return res, nil
}

// lastLine picks the exception line out of a python traceback.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

func (r Result) Render(w io.Writer) {
	bar := strings.Repeat("=", 80)
	fmt.Fprintln(w, bar)
	fmt.Fprintln(w, "Checking Python Environment and Dependencies")
	fmt.Fprintln(w, bar)
	fmt.Fprintf(w, "Python executable: %s\n\n", r.Python)

	for _, c := range r.Checks {
		if c.Installed {
			fmt.Fprintf(w, "[OK] %s\n", c.Package)
			continue
		}
		tag := "[MISSING]"
		if !c.Required() {
			tag = "[MISSING optional]"
		}
		fmt.Fprintf(w, "%s %s\n", tag, c.Package)
		if c.Err != "" {
			fmt.Fprintf(w, "  Error: %s\n", c.Err)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, bar)
	missing := r.Missing(true)
	if len(missing) > 0 {
		fmt.Fprintln(w, "[ERROR] Some dependencies are missing!")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Re-run the installer:")
		fmt.Fprintln(w, "  bootstrap install")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Or install individually:")
		for _, c := range missing {
			fmt.Fprintf(w, "  pip install %s\n", c.Package)
		}
		return
	}
	fmt.Fprintln(w, "[SUCCESS] All required dependencies are installed!")
	if opt := r.Missing(false); len(opt) > 0 {
		names := make([]string, 0, len(opt))
		for _, c := range opt {
			names = append(names, c.Package)
		}
		fmt.Fprintf(w, "[WARNING] Optional packages not installed: %s\n", strings.Join(names, ", "))
	}
}
