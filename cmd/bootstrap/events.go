package main

import (
	"time"

	"poly-bootstrap/internal/installer"
	"poly-bootstrap/internal/jsonl"
	"poly-bootstrap/internal/metrics"
	"poly-bootstrap/internal/state"
)

// runEvent is one transcript line.
type runEvent struct {
	TsMs       int64  `json:"ts_ms"`
	Command    string `json:"command"`
	Event      string `json:"event"`
	Step       string `json:"step,omitempty"`
	Package    string `json:"package,omitempty"`
	Source     string `json:"source,omitempty"`
	Invocation string `json:"invocation,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
	Detail     string `json:"detail,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	DryRun     bool   `json:"dry_run,omitempty"`
	ExitCode   *int   `json:"exit_code,omitempty"`
}

// outputs bundles the optional run artifacts. None of them is read back.
type outputs struct {
	a          *app
	command    string
	transcript *jsonl.Writer
	metrics    *metrics.Recorder
}

func (a *app) openOutputs(command string) *outputs {
	o := &outputs{a: a, command: command, metrics: metrics.New()}
	w, err := jsonl.Create(a.cfg.Transcript, false)
	if err != nil {
		a.log.Warn().Err(err).Msg("transcript disabled")
	}
	o.transcript = w
	o.event(runEvent{Event: "start", DryRun: a.cfg.DryRun})
	return o
}

func (o *outputs) event(ev runEvent) {
	ev.TsMs = time.Now().UnixMilli()
	ev.Command = o.command
	if err := o.transcript.Write(ev); err != nil {
		o.a.log.Warn().Err(err).Str("file", o.transcript.Path()).Msg("transcript write failed")
	}
}

func (o *outputs) step(res installer.StepResult) {
	o.metrics.ObserveStep(string(res.Step), string(res.Outcome), res.Duration)
	o.event(runEvent{
		Event:      "step",
		Step:       string(res.Step),
		Package:    res.Package,
		Source:     res.Source,
		Invocation: res.Command,
		Outcome:    string(res.Outcome),
		Detail:     res.Detail,
		DurationMs: res.Duration.Milliseconds(),
	})
}

func (o *outputs) check(name string, ok bool, detail string) {
	o.metrics.ObserveCheck(name, ok)
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	o.event(runEvent{Event: "check", Step: name, Outcome: outcome, Detail: detail})
}

// finish writes the summary and metrics files and closes the transcript.
func (o *outputs) finish(code int, summary any) {
	o.event(runEvent{Event: "finish", ExitCode: &code})
	if summary != nil {
		if err := state.WriteJSON(o.a.cfg.Summary, summary); err != nil {
			o.a.log.Warn().Err(err).Str("file", o.a.cfg.Summary).Msg("summary not written")
		}
	}
	o.metrics.RecordRun(code, time.Now())
	if err := o.metrics.WriteTextfile(o.a.cfg.MetricsFile); err != nil {
		o.a.log.Warn().Err(err).Str("file", o.a.cfg.MetricsFile).Msg("metrics not written")
	}
	if n := o.transcript.Records(); n > 0 {
		o.a.log.Debug().Int("records", n).Str("file", o.transcript.Path()).Msg("transcript written")
	}
	if err := o.transcript.Close(); err != nil {
		o.a.log.Warn().Err(err).Msg("transcript close")
	}
}
