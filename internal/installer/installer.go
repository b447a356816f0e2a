// Package installer brings a host from "nothing installed" to "ready to run the
// trading program": version gate, tooling upgrade, required packages, the
// trading client with its source fallback, then optional extras.
//
// Steps run strictly in sequence. Every pip invocation is a plain install
// without --force-reinstall, so re-running after a partial failure only does
// the missing work.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"poly-bootstrap/internal/manifest"
	"poly-bootstrap/internal/proc"
	"poly-bootstrap/internal/pyruntime"
)

const (
	DefaultTimeout = 10 * time.Minute
	stderrExcerpt  = 200
)

// DefaultNextSteps is printed after a successful run.
var DefaultNextSteps = []string{
	"Copy 'env.template' to '.env' and fill in your credentials (bootstrap env init writes the template)",
	"Check the record with: bootstrap env check",
	"Run the trading program: python Cornels_Cryptobot.py",
}

type Options struct {
	Python   pyruntime.Interpreter
	Runner   proc.Runner
	Manifest manifest.Manifest

	// MinVersion defaults to pyruntime.MinimumVersion.
	MinVersion pyruntime.Version
	// Timeout bounds each pip invocation that has no source specific timeout.
	Timeout time.Duration
	// DryRun prints the planned invocations instead of running pip.
	DryRun bool

	Out    io.Writer
	Logger zerolog.Logger
	// OnStep observes every recorded step (transcript, metrics).
	OnStep func(StepResult)
	Now    func() time.Time
}

type Installer struct {
	python     pyruntime.Interpreter
	runner     proc.Runner
	manifest   manifest.Manifest
	minVersion pyruntime.Version
	timeout    time.Duration
	dryRun     bool
	out        io.Writer
	log        zerolog.Logger
	onStep     func(StepResult)
	now        func() time.Time

	report *Report
}

func New(opts Options) (*Installer, error) {
	if opts.Runner == nil {
		return nil, fmt.Errorf("installer: runner required")
	}
	if opts.Python.Path == "" {
		return nil, fmt.Errorf("installer: python interpreter required")
	}
	if err := opts.Manifest.Validate(); err != nil {
		return nil, err
	}
	in := &Installer{
		python:     opts.Python,
		runner:     opts.Runner,
		manifest:   opts.Manifest,
		minVersion: opts.MinVersion,
		timeout:    opts.Timeout,
		dryRun:     opts.DryRun,
		out:        opts.Out,
		log:        opts.Logger,
		onStep:     opts.OnStep,
		now:        opts.Now,
	}
	if in.minVersion == (pyruntime.Version{}) {
		in.minVersion = pyruntime.MinimumVersion
	}
	if in.timeout <= 0 {
		in.timeout = DefaultTimeout
	}
	if in.out == nil {
		in.out = io.Discard
	}
	if in.now == nil {
		in.now = time.Now
	}
	return in, nil
}

// Run executes the workflow. The report is always returned; the error is the
// *FatalError that halted the run, or the context error on interrupt.
func (in *Installer) Run(ctx context.Context) (*Report, error) {
	in.report = &Report{
		Python:    in.python.String(),
		DryRun:    in.dryRun,
		StartedAt: in.now(),
	}
	err := in.run(ctx)
	r := in.report
	r.FinishedAt = in.now()
	var fatal *FatalError
	if errors.As(err, &fatal) {
		r.Fatal = fatal
	}
	r.ExitCode = r.exitCode()
	return r, err
}

func (in *Installer) run(ctx context.Context) error {
	if err := in.checkVersion(ctx); err != nil {
		return err
	}

	in.printf("%s\nInstalling dependencies with %s (Python %s)\n%s\n\n", banner, in.python, in.report.Version, banner)
	if in.dryRun {
		in.printf("Dry run: pip will not be invoked.\n\n")
	}

	if err := in.upgradeTooling(ctx); err != nil {
		return err
	}
	if err := in.installCore(ctx); err != nil {
		return err
	}
	if err := in.installFallback(ctx); err != nil {
		return err
	}
	return in.installOptional(ctx)
}

func (in *Installer) checkVersion(ctx context.Context) error {
	started := in.now()
	v, err := pyruntime.Probe(ctx, in.runner, in.python)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	res := StepResult{Step: StepVersion, Duration: in.now().Sub(started)}
	if err != nil {
		res.Outcome = OutcomeFatal
		res.Detail = err.Error()
		in.record(res)
		return &FatalError{
			Step:   StepVersion,
			Reason: fmt.Sprintf("could not determine the Python version of %s: %v", in.python, err),
			Remediation: []string{
				fmt.Sprintf("Python %s or higher is required.", in.minVersion.Short()),
				"Install Python and make sure it is on PATH, or pass --python:",
				"  - Download from: https://www.python.org/downloads/",
				"  - Or use pyenv: https://github.com/pyenv/pyenv",
			},
		}
	}

	in.report.Version = v.String()
	res.Detail = v.String()
	if !v.AtLeast(in.minVersion) {
		res.Outcome = OutcomeFatal
		in.record(res)
		return &FatalError{
			Step:   StepVersion,
			Reason: fmt.Sprintf("Python %s or higher is required! Current Python version: %s", in.minVersion.Short(), v),
			Remediation: []string{
				fmt.Sprintf("py-clob-client requires Python %s+", in.minVersion.Short()),
				"Please upgrade Python:",
				"  - Download from: https://www.python.org/downloads/",
				"  - Or use pyenv: https://github.com/pyenv/pyenv",
			},
		}
	}
	res.Outcome = OutcomeOK
	in.record(res)
	return nil
}

func (in *Installer) upgradeTooling(ctx context.Context) error {
	tools := in.manifest.Tooling
	if len(tools) == 0 {
		return nil
	}
	in.printf("Upgrading %s...\n", joinNames(tools))
	args := append([]string{"install", "--upgrade"}, tools...)
	res, err := in.pip(ctx, in.timeout, args...)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	res.Step = StepTooling
	res.Package = joinNames(tools)
	switch {
	case err == nil:
		res.Outcome = in.okOutcome()
		in.okf("  OK: pip tools upgraded\n")
	default:
		res.Outcome = OutcomeWarning
		res.Detail = failureDetail(res, err)
		in.report.warnf("failed to upgrade %s: %v", joinNames(tools), err)
		in.printf("  WARNING: Failed to upgrade pip tools\n")
		in.log.Warn().Err(err).Msg("tooling upgrade failed; continuing")
	}
	in.record(res)
	return nil
}

func (in *Installer) installCore(ctx context.Context) error {
	if len(in.manifest.Core) == 0 {
		return nil
	}
	in.printf("Installing core dependencies...\n")
	for _, pkg := range in.manifest.Core {
		res, err := in.pipInstall(ctx, in.timeout, pkg.Requirement().String())
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res.Step = StepCore
		res.Package = pkg.Name
		if err != nil {
			res.Outcome = OutcomeFailed
			res.Detail = failureDetail(res, err)
			in.report.CoreFailures = append(in.report.CoreFailures, pkg.Requirement().String())
			in.printf("  ERROR: Failed to install %s\n", pkg.Requirement())
			in.log.Error().Str("package", pkg.Name).Err(err).Msg("required package failed")
		} else {
			res.Outcome = in.okOutcome()
			in.okf("  OK: %s installed\n", pkg.Name)
		}
		in.record(res)
	}
	return nil
}

func (in *Installer) installFallback(ctx context.Context) error {
	pkg := in.manifest.FallbackPackage()
	in.printf("Installing %s...\n", pkg.Name)
	idx, attempts, err := in.installWithFallback(ctx, pkg)
	if err != nil {
		return err
	}
	if idx < 0 {
		fatal := fallbackFatal(pkg, attempts, in.manifest.Names(manifest.GroupCore))
		in.printf("  ERROR: Failed to install %s\n", pkg.Name)
		return fatal
	}
	src := pkg.Sources[idx].Describe(pkg.Name)
	in.report.FallbackSource = src
	if idx > 0 {
		in.report.warnf("%s installed from fallback source %s", pkg.Name, src)
		in.printf("  NOTICE: primary source failed; %s installed from %s\n", pkg.Name, src)
	} else {
		in.okf("  OK: %s installed from %s\n", pkg.Name, src)
	}
	return nil
}

func (in *Installer) installOptional(ctx context.Context) error {
	if len(in.manifest.Optional) == 0 {
		return nil
	}
	in.printf("Installing optional dependencies...\n")
	for _, pkg := range in.manifest.Optional {
		res, err := in.pipInstall(ctx, in.timeout, pkg.Requirement().String())
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res.Step = StepOptional
		res.Package = pkg.Name
		if err != nil {
			res.Outcome = OutcomeWarning
			res.Detail = failureDetail(res, err)
			in.report.warnf("optional package %s failed to install: %v", pkg.Name, err)
			in.printf("  WARNING: Failed to install %s (optional)\n", pkg.Name)
		} else {
			res.Outcome = in.okOutcome()
			in.okf("  OK: %s installed\n", pkg.Name)
		}
		in.record(res)
	}
	return nil
}

func (in *Installer) pipInstall(ctx context.Context, timeout time.Duration, target string) (StepResult, error) {
	return in.pip(ctx, timeout, "install", "--disable-pip-version-check", target)
}

// pip runs `python -m pip args...`, or only describes it in dry-run mode.
func (in *Installer) pip(ctx context.Context, timeout time.Duration, args ...string) (StepResult, error) {
	name, argv := in.python.Pip(args...)
	res := StepResult{Command: proc.Describe(name, argv...)}
	if in.dryRun {
		in.printf("  would run: %s\n", res.Command)
		return res, nil
	}
	in.log.Debug().Str("cmd", res.Command).Dur("timeout", timeout).Msg("exec")
	out, err := in.runner.Run(ctx, timeout, name, argv...)
	res.Duration = out.Duration
	if err != nil {
		res.Detail = out.Stderr
	}
	return res, err
}

func (in *Installer) okOutcome() Outcome {
	if in.dryRun {
		return OutcomePlanned
	}
	return OutcomeOK
}

func (in *Installer) record(res StepResult) {
	in.report.Steps = append(in.report.Steps, res)
	if in.onStep != nil {
		in.onStep(res)
	}
}

func (in *Installer) printf(format string, args ...any) {
	fmt.Fprintf(in.out, format, args...)
}

// okf prints success lines, which would be misleading in a dry run.
func (in *Installer) okf(format string, args ...any) {
	if in.dryRun {
		return
	}
	in.printf(format, args...)
}

func failureDetail(res StepResult, err error) string {
	if s := proc.Truncate(res.Detail, stderrExcerpt); s != "" {
		return s
	}
	return err.Error()
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	out := names[0]
	for i := 1; i < len(names)-1; i++ {
		out += ", " + names[i]
	}
	return out + " and " + names[len(names)-1]
}
