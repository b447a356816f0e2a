package main

import (
	"time"

	"github.com/spf13/cobra"

	"poly-bootstrap/internal/installer"
	"poly-bootstrap/internal/pyruntime"
)

func newInstallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install the trading bot's Python dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runInstall(cmd)
		},
	}
}

func (a *app) runInstall(cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	o := a.openOutputs("install")

	py, err := a.locatePython()
	if err != nil {
		now := time.Now()
		r := &installer.Report{
			StartedAt:  now,
			FinishedAt: now,
			ExitCode:   installer.ExitFatal,
			Fatal: &installer.FatalError{
				Step:   installer.StepVersion,
				Reason: err.Error(),
				Remediation: []string{
					"Install Python " + pyruntime.MinimumVersion.Short() + " or newer from https://www.python.org/downloads/",
					"or point --python (BOOTSTRAP_PYTHON) at an existing interpreter",
				},
			},
		}
		r.Render(out, nil)
		o.finish(r.ExitCode, r)
		return exitCode(r.ExitCode)
	}

	m, err := a.loadManifest()
	if err != nil {
		o.finish(installer.ExitFatal, nil)
		return &exitError{code: installer.ExitFatal, err: err}
	}

	in, err := installer.New(installer.Options{
		Python:   py,
		Runner:   a.runner,
		Manifest: m,
		Timeout:  a.cfg.Timeout,
		DryRun:   a.cfg.DryRun,
		Out:      out,
		Logger:   a.log,
		OnStep:   o.step,
	})
	if err != nil {
		o.finish(installer.ExitFatal, nil)
		return &exitError{code: installer.ExitFatal, err: err}
	}

	report, err := in.Run(ctx)
	if ctx.Err() != nil {
		o.finish(exitInterrupted, report)
		return ctx.Err()
	}
	report.Render(out, installer.DefaultNextSteps)
	if report.FallbackSource != "" {
		a.log.Info().Str("source", report.FallbackSource).Msg("trading client installed")
	}
	if err != nil {
		a.log.Debug().Err(err).Msg("install halted")
	}
	o.finish(report.ExitCode, report)
	return exitCode(report.ExitCode)
}
