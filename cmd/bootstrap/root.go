package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"poly-bootstrap/internal/installer"
	"poly-bootstrap/internal/logging"
	"poly-bootstrap/internal/manifest"
	"poly-bootstrap/internal/proc"
	"poly-bootstrap/internal/pyruntime"
)

const exitInterrupted = 130

// config is the resolved settings: flag > BOOTSTRAP_* env > config file >
// default.
type config struct {
	Python      string
	Manifest    string
	DryRun      bool
	Timeout     time.Duration
	Transcript  string
	Summary     string
	MetricsFile string
	LogLevel    string
	EnvFile     string
}

type app struct {
	v        *viper.Viper
	cfgFile  string
	cfg      config
	log      zerolog.Logger
	runner   proc.Runner
	lookPath func(string) (string, error)
}

// exitError carries a non-zero exit code out of a command. Its message has
// already been printed when silent is set.
type exitError struct {
	code   int
	err    error
	silent bool
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func exitCode(code int) error {
	if code == 0 {
		return nil
	}
	return &exitError{code: code, silent: true}
}

func newApp() *app {
	return &app{
		v:        viper.New(),
		runner:   proc.ExecRunner{},
		lookPath: exec.LookPath,
		log:      zerolog.Nop(),
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "bootstrap",
		Short: "Prepare a host to run the Polymarket trading bot",
		Long: "bootstrap installs the Python dependencies of the trading bot, verifies them,\n" +
			"checks the .env record and probes the services the bot talks to.\n" +
			"Without a subcommand it runs install.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runInstall(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "settings file (default: .bootstrap.yaml in the working directory or $HOME)")
	pf.String("python", "", "Python interpreter to use, e.g. /usr/bin/python3 or \"py -3\" (default: first of python3, python, py -3)")
	pf.String("manifest", "", "YAML dependency manifest (default: built-in list)")
	pf.Bool("dry-run", false, "print the pip invocations without running them")
	pf.Duration("timeout", installer.DefaultTimeout, "per-invocation timeout for pip")
	pf.String("transcript", "", "append JSONL run events to this file")
	pf.String("summary", "", "write the final report as JSON to this file")
	pf.String("metrics-file", "", "write Prometheus textfile metrics to this file")
	pf.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.String("env-file", ".env", "environment record to check")

	root.AddCommand(
		newInstallCmd(a),
		newVerifyCmd(a),
		newEnvCmd(a),
		newDoctorCmd(a),
	)
	return root
}

func (a *app) initConfig(cmd *cobra.Command) error {
	v := a.v
	v.SetConfigType("yaml")
	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(".bootstrap")
	}
	v.SetEnvPrefix("BOOTSTRAP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	a.log = logging.NewLogger(v.GetString("log-level"), cmd.ErrOrStderr())
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: %w", err)
		}
		a.log.Debug().Msg("no settings file, using flags/env/defaults")
	} else {
		a.log.Debug().Str("file", v.ConfigFileUsed()).Msg("settings loaded")
	}

	a.cfg = config{
		Python:      v.GetString("python"),
		Manifest:    v.GetString("manifest"),
		DryRun:      v.GetBool("dry-run"),
		Timeout:     v.GetDuration("timeout"),
		Transcript:  v.GetString("transcript"),
		Summary:     v.GetString("summary"),
		MetricsFile: v.GetString("metrics-file"),
		LogLevel:    v.GetString("log-level"),
		EnvFile:     v.GetString("env-file"),
	}
	// re-level in case the file set it
	a.log = logging.NewLogger(a.cfg.LogLevel, cmd.ErrOrStderr())
	return nil
}

func (a *app) loadManifest() (manifest.Manifest, error) {
	if a.cfg.Manifest == "" {
		return manifest.Default(), nil
	}
	m, err := manifest.Load(a.cfg.Manifest)
	if err != nil {
		return manifest.Manifest{}, err
	}
	a.log.Info().Str("manifest", a.cfg.Manifest).Msg("using manifest file")
	return m, nil
}

func (a *app) locatePython() (pyruntime.Interpreter, error) {
	return pyruntime.Locate(a.cfg.Python, a.lookPath)
}

// resolveExit maps a command error to the process exit code.
func resolveExit(ctx context.Context, err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, "[fatal] interrupted")
		return exitInterrupted
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if !ee.silent {
			fmt.Fprintf(stderr, "[fatal] %v\n", ee)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "[fatal] %v\n", err)
	return installer.ExitFatal
}

func execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(newApp())
	err := cmd.ExecuteContext(ctx)
	return resolveExit(ctx, err, os.Stderr)
}
