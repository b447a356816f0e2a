package main

import (
	"github.com/spf13/cobra"

	"poly-bootstrap/internal/installer"
	"poly-bootstrap/internal/verify"
)

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that every dependency imports in the chosen interpreter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			o := a.openOutputs("verify")

			py, err := a.locatePython()
			if err != nil {
				o.finish(installer.ExitFatal, nil)
				return &exitError{code: installer.ExitFatal, err: err}
			}
			m, err := a.loadManifest()
			if err != nil {
				o.finish(installer.ExitFatal, nil)
				return &exitError{code: installer.ExitFatal, err: err}
			}

			res, err := verify.Run(ctx, a.runner, py, m)
			if err != nil {
				if ctx.Err() != nil {
					o.finish(exitInterrupted, nil)
					return ctx.Err()
				}
				o.finish(installer.ExitFatal, nil)
				return &exitError{code: installer.ExitFatal, err: err}
			}
			for _, c := range res.Checks {
				o.check("import:"+c.Module, c.Installed, c.Err)
			}
			res.Render(cmd.OutOrStdout())

			code := res.ExitCode()
			o.finish(code, res)
			return exitCode(code)
		},
	}
}
