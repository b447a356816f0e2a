package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"poly-bootstrap/internal/clob"
	"poly-bootstrap/internal/envrecord"
	"poly-bootstrap/internal/installer"
	"poly-bootstrap/internal/polygonutil"
	"poly-bootstrap/internal/wsprobe"
)

type status string

const (
	statusOK   status = "OK"
	statusWarn status = "WARN"
	statusFail status = "FAIL"
	statusSkip status = "SKIP"
)

const (
	checkTimeout = 15 * time.Second
	maxClockSkew = 30 * time.Second
)

type checkResult struct {
	Name   string `json:"name"`
	Status status `json:"status"`
	Detail string `json:"detail"`
}

type doctorOptions struct {
	wsURL    string
	attempts int
	spenders string

	extraSpenders []common.Address
}

func newDoctorCmd(a *app) *cobra.Command {
	var opts doctorOptions
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Probe the RPC node, CLOB API and market websocket with the configured record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			extra, err := polygonutil.ParseAddresses(opts.spenders)
			if err != nil {
				return &exitError{code: installer.ExitFatal, err: fmt.Errorf("--spender: %w", err)}
			}
			opts.extraSpenders = extra

			o := a.openOutputs("doctor")
			results := a.runDoctor(cmd.Context(), opts)
			if cmd.Context().Err() != nil {
				o.finish(exitInterrupted, results)
				return cmd.Context().Err()
			}
			renderDoctor(cmd.OutOrStdout(), results)

			code := 0
			for _, r := range results {
				if r.Status != statusSkip {
					o.check(r.Name, r.Status != statusFail, r.Detail)
				}
				if r.Status == statusFail {
					code = installer.ExitFatal
				}
			}
			o.finish(code, results)
			return exitCode(code)
		},
	}
	cmd.Flags().StringVar(&opts.wsURL, "ws-url", wsprobe.DefaultMarketURL, "market websocket to probe")
	cmd.Flags().IntVar(&opts.attempts, "ws-attempts", 3, "websocket dial attempts")
	cmd.Flags().StringVar(&opts.spenders, "spender", "", "extra contracts whose collateral allowance to check (comma separated)")
	return cmd
}

func (a *app) runDoctor(ctx context.Context, opts doctorOptions) []checkResult {
	var results []checkResult
	add := func(name string, st status, format string, args ...any) {
		results = append(results, checkResult{Name: name, Status: st, Detail: fmt.Sprintf(format, args...)})
		a.log.Debug().Str("check", name).Str("status", string(st)).Msg("doctor")
	}

	rec, err := envrecord.Load(a.cfg.EnvFile, nil)
	if err != nil {
		add("env", statusFail, "%v", err)
		return results
	}
	res := rec.Check()
	s := res.Settings
	if err := res.Err(); err != nil {
		add("env", statusFail, "%v", err)
	} else if w := res.Warnings(); len(w) > 0 {
		add("env", statusWarn, "%d warning(s), first: %s", len(w), w[0])
	} else {
		add("env", statusOK, "signer %s", s.Signer.Hex())
	}

	var contracts polygonutil.Contracts
	haveContracts := false
	if s == nil {
		add("contracts", statusSkip, "environment record invalid")
	} else if c, err := polygonutil.ContractsFor(s.ChainID); err != nil {
		add("contracts", statusFail, "%v", err)
	} else {
		contracts, haveContracts = c, true
		if s.NegRisk {
			add("contracts", statusOK, "neg-risk exchange %s, adapter %s", c.NegRiskExchange.Hex(), c.NegRiskAdapter.Hex())
		} else {
			add("contracts", statusOK, "exchange %s, collateral %s", c.Exchange.Hex(), c.Collateral.Hex())
		}
	}

	switch {
	case s == nil || !haveContracts:
		add("rpc", statusSkip, "needs a valid record and known contracts")
	case s.RPCURL == "":
		add("rpc", statusWarn, "%s not set; on-chain checks skipped", envrecord.KeyRPCURL)
	default:
		spenders := polygonutil.MergeAddresses(contracts.Spenders(s.NegRisk), opts.extraSpenders...)
		st, detail := checkRPC(ctx, s, contracts.Collateral, spenders)
		add("rpc", st, "%s", detail)
	}

	clobURL := rec.Get(envrecord.KeyAPIURL)
	if s != nil {
		clobURL = s.ClobURL
	}
	st, detail := checkClob(ctx, clobURL, s)
	add("clob", st, "%s", detail)

	pctx, cancel := context.WithTimeout(ctx, time.Duration(max(opts.attempts, 1))*checkTimeout)
	defer cancel()
	pr, err := wsprobe.Probe(pctx, opts.wsURL, wsprobe.Options{Attempts: opts.attempts})
	if err != nil {
		add("websocket", statusFail, "%v", err)
	} else {
		add("websocket", statusOK, "%s answered in %s (handshake %s, attempt %d)",
			pr.URL, pr.RoundTrip.Round(time.Millisecond), pr.Handshake.Round(time.Millisecond), pr.Attempts)
	}
	return results
}

func checkRPC(ctx context.Context, s *envrecord.Settings, collateral common.Address, spenders []common.Address) (status, string) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	owner := s.Owner()
	st, err := polygonutil.ProbeRPC(ctx, s.RPCURL, owner, collateral, spenders)
	if err != nil {
		if st.ChainID != 0 && st.ChainID != s.ChainID {
			return statusFail, fmt.Sprintf("node is on chain %d, record says %d", st.ChainID, s.ChainID)
		}
		return statusFail, err.Error()
	}
	if st.ChainID != s.ChainID {
		return statusFail, fmt.Sprintf("node is on chain %d, record says %d", st.ChainID, s.ChainID)
	}

	detail := fmt.Sprintf("chain %d at block %d; %s collateral balance %s",
		st.ChainID, st.BlockNumber, owner.Hex(), polygonutil.FormatMicros(st.BalanceMicros))
	need := polygonutil.USDToMicros(s.AmountUSD)
	if st.BalanceMicros < need {
		return statusWarn, detail + fmt.Sprintf(" is below AMOUNT_USD %s", polygonutil.FormatMicros(need))
	}
	for _, sp := range spenders {
		if st.Allowances[sp] < need {
			return statusWarn, detail + fmt.Sprintf("; allowance for %s is %s", sp.Hex(), polygonutil.FormatMicros(st.Allowances[sp]))
		}
	}
	return statusOK, detail
}

func checkClob(ctx context.Context, host string, s *envrecord.Settings) (status, string) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var (
		client *clob.Client
		err    error
	)
	if s != nil {
		client, err = clob.NewClient(host, s.ChainID, s.PrivateKey, s.Creds)
	} else {
		client, err = clob.NewClient(host, 0, nil, clob.ApiKeyCreds{})
	}
	if err != nil {
		return statusFail, err.Error()
	}

	serverTs, err := client.GetServerTime(ctx)
	if err != nil {
		return statusFail, fmt.Sprintf("%s unreachable: %v", client.Host(), err)
	}
	skew := time.Since(time.Unix(serverTs, 0)).Abs()
	if s == nil {
		return statusWarn, fmt.Sprintf("%s reachable; credentials not checked", client.Host())
	}

	keys, err := client.ListApiKeys(ctx)
	if err != nil {
		var se *clob.StatusError
		if errors.As(err, &se) && se.Unauthorized() {
			return statusFail, fmt.Sprintf("credentials rejected (status %d)", se.Code)
		}
		return statusFail, fmt.Sprintf("authenticated call failed: %v", err)
	}
	if skew > maxClockSkew {
		return statusWarn, fmt.Sprintf("credentials accepted but local clock is off by %s", skew.Round(time.Second))
	}
	if !slices.Contains(keys, s.Creds.Key) {
		return statusWarn, fmt.Sprintf("credentials accepted; %s not among the %d listed keys", envrecord.KeyAPIKey, len(keys))
	}
	return statusOK, fmt.Sprintf("%s reachable, credentials accepted", client.Host())
}

func renderDoctor(w io.Writer, results []checkResult) {
	bar := strings.Repeat("=", 80)
	fmt.Fprintln(w, bar)
	fmt.Fprintln(w, "Preflight checks")
	fmt.Fprintln(w, bar)
	failed := 0
	for _, r := range results {
		fmt.Fprintf(w, "[%-4s] %-10s %s\n", r.Status, r.Name, r.Detail)
		if r.Status == statusFail {
			failed++
		}
	}
	fmt.Fprintln(w)
	if failed > 0 {
		fmt.Fprintf(w, "[ERROR] %d check(s) failed\n", failed)
		return
	}
	fmt.Fprintln(w, "[SUCCESS] Ready to run the trading bot")
}
