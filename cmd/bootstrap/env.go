package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"poly-bootstrap/internal/clob"
	"poly-bootstrap/internal/envrecord"
	"poly-bootstrap/internal/installer"
)

func newEnvCmd(a *app) *cobra.Command {
	env := &cobra.Command{
		Use:   "env",
		Short: "Inspect or create the trading bot's environment record",
	}
	env.AddCommand(newEnvCheckCmd(a), newEnvInitCmd(), newEnvDeriveCmd(a))
	return env
}

func newEnvCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the environment record without printing secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o := a.openOutputs("env check")
			rec, err := envrecord.Load(a.cfg.EnvFile, nil)
			if err != nil {
				o.finish(installer.ExitFatal, nil)
				return &exitError{code: installer.ExitFatal, err: err}
			}
			res := rec.Check()
			renderEnvCheck(cmd.OutOrStdout(), rec, res)

			code := 0
			if err := res.Err(); err != nil {
				code = installer.ExitFatal
				o.check("env", false, err.Error())
			} else {
				o.check("env", true, "")
			}
			o.finish(code, nil)
			return exitCode(code)
		},
	}
}

func renderEnvCheck(w io.Writer, rec *envrecord.Record, res envrecord.CheckResult) {
	bar := strings.Repeat("=", 80)
	fmt.Fprintln(w, bar)
	if rec.Found {
		fmt.Fprintf(w, "Environment record: %s\n", rec.Path)
	} else {
		fmt.Fprintf(w, "Environment record: %s (not found, using process environment)\n", rec.Path)
	}
	fmt.Fprintln(w, bar)

	missing := map[string]bool{}
	for _, k := range res.Missing {
		missing[k] = true
	}
	problems := map[string][]envrecord.Problem{}
	for _, p := range res.Problems {
		problems[p.Key] = append(problems[p.Key], p)
	}

	for _, k := range envrecord.Keys {
		v := rec.Get(k.Name)
		switch {
		case missing[k.Name]:
			fmt.Fprintf(w, "[MISSING] %s  (%s)\n", k.Name, k.Description)
			continue
		case v == "":
			fmt.Fprintf(w, "[unset]   %s\n", k.Name)
		default:
			tag := "[OK]     "
			for _, p := range problems[k.Name] {
				if !p.Warning {
					tag = "[INVALID]"
				}
			}
			fmt.Fprintf(w, "%s %s = %s  (%s)\n", tag, k.Name, envrecord.Masked(k.Name, v), rec.Source(k.Name))
		}
		for _, p := range problems[k.Name] {
			level := "error"
			if p.Warning {
				level = "warning"
			}
			fmt.Fprintf(w, "          %s: %s\n", level, p.Message)
		}
	}

	fmt.Fprintln(w)
	if err := res.Err(); err != nil {
		var mk *envrecord.MissingKeysError
		if errors.As(err, &mk) {
			fmt.Fprintf(w, "[ERROR] Missing required environment variables: %s\n", strings.Join(mk.Keys, ", "))
			fmt.Fprintln(w, "Create one from the template with: bootstrap env init")
			return
		}
		fmt.Fprintf(w, "[ERROR] %v\n", err)
		return
	}
	fmt.Fprintf(w, "[SUCCESS] Record is complete. Signer: %s\n", res.Settings.Signer.Hex())
	if res.Settings.Owner() != res.Settings.Signer {
		fmt.Fprintf(w, "          Funder: %s\n", res.Settings.Owner().Hex())
	}
}

func newEnvInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Write the documented template (never overwrites)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := envrecord.TemplatePath
			if len(args) == 1 {
				path = args[0]
			}
			if err := envrecord.WriteTemplate(path); err != nil {
				return &exitError{code: installer.ExitFatal, err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s. Copy it to .env and fill in the required values.\n", path)
			return nil
		},
	}
}

func newEnvDeriveCmd(a *app) *cobra.Command {
	var nonce uint64
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive CLOB API credentials from PK and print them as KEY=VALUE lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, err := envrecord.Load(a.cfg.EnvFile, nil)
			if err != nil {
				return &exitError{code: installer.ExitFatal, err: err}
			}
			raw := rec.Get(envrecord.KeyPrivateKey)
			if raw == "" {
				return &exitError{code: installer.ExitFatal, err: fmt.Errorf("%s is required to derive credentials", envrecord.KeyPrivateKey)}
			}
			pk, err := envrecord.ParsePrivateKey(raw)
			if err != nil {
				return &exitError{code: installer.ExitFatal, err: fmt.Errorf("invalid %s: %w", envrecord.KeyPrivateKey, err)}
			}
			chainID, err := strconv.ParseInt(rec.Get(envrecord.KeyChainID), 10, 64)
			if err != nil {
				return &exitError{code: installer.ExitFatal, err: fmt.Errorf("invalid %s: %w", envrecord.KeyChainID, err)}
			}
			client, err := clob.NewClient(rec.Get(envrecord.KeyAPIURL), chainID, pk, clob.ApiKeyCreds{})
			if err != nil {
				return &exitError{code: installer.ExitFatal, err: err}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 20*time.Second)
			defer cancel()
			creds, err := client.DeriveApiKey(ctx, nonce)
			if err != nil {
				return &exitError{code: installer.ExitFatal, err: fmt.Errorf("derive api key: %w", err)}
			}
			a.log.Info().Str("signer", client.SignerAddress().Hex()).Msg("derived api credentials")
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s=%s\n", envrecord.KeyAPIKey, creds.Key)
			fmt.Fprintf(w, "%s=%s\n", envrecord.KeySecret, creds.Secret)
			fmt.Fprintf(w, "%s=%s\n", envrecord.KeyPassphrase, creds.Passphrase)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&nonce, "nonce", 0, "nonce the key was created with")
	return cmd
}
