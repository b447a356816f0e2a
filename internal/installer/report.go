package installer

import (
	"fmt"
	"io"
	"strings"
	"time"
)

type Step string

const (
	StepVersion  Step = "version"
	StepTooling  Step = "tooling"
	StepCore     Step = "core"
	StepFallback Step = "fallback"
	StepOptional Step = "optional"
)

type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeWarning Outcome = "warning"
	OutcomeFailed  Outcome = "failed"
	OutcomeFatal   Outcome = "fatal"
	OutcomePlanned Outcome = "planned"
)

const (
	ExitOK          = 0
	ExitFatal       = 1
	ExitCoreFailure = 2
)

// StepResult records one external invocation (or the version check).
type StepResult struct {
	Step     Step          `json:"step"`
	Package  string        `json:"package,omitempty"`
	Source   string        `json:"source,omitempty"`
	Command  string        `json:"command,omitempty"`
	Outcome  Outcome       `json:"outcome"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// FatalError halts the installer. Remediation lines are printed verbatim.
type FatalError struct {
	Step        Step     `json:"step"`
	Reason      string   `json:"reason"`
	Remediation []string `json:"remediation,omitempty"`
}

func (e *FatalError) Error() string { return e.Reason }

type Report struct {
	Python         string       `json:"python"`
	Version        string       `json:"version,omitempty"`
	DryRun         bool         `json:"dry_run,omitempty"`
	Steps          []StepResult `json:"steps"`
	Warnings       []string     `json:"warnings,omitempty"`
	CoreFailures   []string     `json:"core_failures,omitempty"`
	FallbackSource string       `json:"fallback_source,omitempty"`
	Fatal          *FatalError  `json:"fatal,omitempty"`
	StartedAt      time.Time    `json:"started_at"`
	FinishedAt     time.Time    `json:"finished_at"`
	ExitCode       int          `json:"exit_code"`
}

func (r *Report) exitCode() int {
	switch {
	case r.Fatal != nil:
		return ExitFatal
	case len(r.CoreFailures) > 0:
		return ExitCoreFailure
	default:
		return ExitOK
	}
}

func (r *Report) OK() bool { return r.exitCode() == ExitOK }

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

var banner = strings.Repeat("=", 80)

// Render prints the completion report: fatal failures first, then warnings,
// then the next steps when the environment is usable.
func (r *Report) Render(w io.Writer, nextSteps []string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, banner)
	switch {
	case r.Fatal != nil:
		fmt.Fprintln(w, "FAILED: dependency installation did not complete")
	case len(r.CoreFailures) > 0:
		fmt.Fprintln(w, "COMPLETED WITH ERRORS: some required packages failed to install")
	case r.DryRun:
		fmt.Fprintln(w, "DRY RUN: no packages were installed")
	default:
		fmt.Fprintln(w, "SUCCESS: Dependencies installation completed!")
	}
	fmt.Fprintln(w, banner)

	if r.Fatal != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "ERROR: %s\n", r.Fatal.Reason)
		for _, line := range r.Fatal.Remediation {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	if len(r.CoreFailures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Required packages that failed:")
		for _, name := range r.CoreFailures {
			fmt.Fprintf(w, "  - %s\n", name)
		}
		fmt.Fprintln(w, "Re-run the installer, or install them manually with pip.")
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Warnings:")
		for _, msg := range r.Warnings {
			fmt.Fprintf(w, "  - %s\n", msg)
		}
	}

	if r.Fatal == nil && len(r.CoreFailures) == 0 && !r.DryRun && len(nextSteps) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Next steps:")
		for i, s := range nextSteps {
			fmt.Fprintf(w, "%d. %s\n", i+1, s)
		}
	}
}
