package installer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"poly-bootstrap/internal/manifest"
	"poly-bootstrap/internal/proc"
)

// Strategy is one way to satisfy the required-with-fallback package. Strategies
// are tried in order and the first success wins.
type Strategy interface {
	Describe() string
	Install(ctx context.Context) (StepResult, error)
}

type pipStrategy struct {
	in      *Installer
	pkg     string
	source  manifest.Source
	timeout time.Duration
}

func (s pipStrategy) Describe() string { return s.source.Describe(s.pkg) }

func (s pipStrategy) Install(ctx context.Context) (StepResult, error) {
	res, err := s.in.pipInstall(ctx, s.timeout, s.source.Target(s.pkg))
	res.Step = StepFallback
	res.Package = s.pkg
	res.Source = s.Describe()
	return res, err
}

func (in *Installer) strategies(pkg manifest.Package) []Strategy {
	out := make([]Strategy, 0, len(pkg.Sources))
	for _, src := range pkg.Sources {
		timeout := src.Timeout()
		if timeout <= 0 {
			timeout = in.timeout
		}
		out = append(out, pipStrategy{in: in, pkg: pkg.Name, source: src, timeout: timeout})
	}
	return out
}

type attempt struct {
	source string
	err    error
}

// installWithFallback walks the strategies in order. It returns the index of
// the strategy that succeeded, or -1 with every attempt recorded.
func (in *Installer) installWithFallback(ctx context.Context, pkg manifest.Package) (int, []attempt, error) {
	strategies := in.strategies(pkg)
	attempts := make([]attempt, 0, len(strategies))
	for i, st := range strategies {
		if i > 0 {
			in.printf("  %s installation failed, trying %s...\n", sourceLabel(strategies[i-1].Describe()), st.Describe())
		}
		res, err := st.Install(ctx)
		if ctx.Err() != nil {
			return -1, attempts, ctx.Err()
		}
		if err == nil {
			res.Outcome = OutcomeOK
			if in.dryRun {
				res.Outcome = OutcomePlanned
			}
			in.record(res)
			return i, attempts, nil
		}
		res.Outcome = OutcomeFailed
		res.Detail = failureDetail(res, err)
		in.record(res)
		in.log.Warn().Str("package", pkg.Name).Str("source", st.Describe()).Err(err).Msg("install source failed")
		if d := proc.Truncate(res.Detail, stderrExcerpt); d != "" {
			in.printf("  Error output: %s\n", d)
		}
		attempts = append(attempts, attempt{source: st.Describe(), err: err})
	}
	return -1, attempts, nil
}

func sourceLabel(desc string) string {
	if strings.HasPrefix(desc, "package index") {
		return "Package index"
	}
	return desc
}

func fallbackFatal(pkg manifest.Package, attempts []attempt, core []string) *FatalError {
	sources := make([]string, 0, len(attempts))
	for _, a := range attempts {
		sources = append(sources, a.source)
	}
	remediation := []string{
		"This may be due to:",
		"  - Missing build tools (Visual Studio Build Tools on Windows, build-essential on Linux)",
		"  - Network issues reaching the package index or the source repository",
		"  - Missing or conflicting dependencies",
		"",
		"Attempted sources:",
	}
	for _, a := range attempts {
		remediation = append(remediation, fmt.Sprintf("  - %s: %v", a.source, a.err))
	}
	remediation = append(remediation, "", "Try installing manually:")
	for _, src := range pkg.Sources {
		if src.Kind == manifest.SourceVCS {
			remediation = append(remediation, "  pip install "+src.URL)
		}
	}
	if len(core) > 0 {
		remediation = append(remediation, "", "Or install dependencies individually:")
		remediation = append(remediation, "  pip install "+strings.Join(core, " "))
		for _, src := range pkg.Sources {
			if src.Kind == manifest.SourceVCS {
				remediation = append(remediation, "  pip install "+src.URL)
				break
			}
		}
	}
	return &FatalError{
		Step:        StepFallback,
		Reason:      fmt.Sprintf("failed to install %s from every source (%s)", pkg.Name, strings.Join(sources, ", ")),
		Remediation: remediation,
	}
}
