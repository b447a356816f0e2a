// Package metrics records installer runs as Prometheus series. The CLI runs
// once and exits, so series are exported to a node_exporter textfile rather
// than served.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "poly_bootstrap"

type Recorder struct {
	reg *prometheus.Registry

	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	exitCode     prometheus.Gauge
	lastRun      prometheus.Gauge
	checks       *prometheus.GaugeVec
}

func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "steps_total", Help: "Installer steps by outcome"},
			[]string{"step", "outcome"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Wall time of each package manager invocation",
				Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"step"},
		),
		exitCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_exit_code", Help: "Exit code of the last run",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_run_timestamp_seconds", Help: "Unix time the last run finished",
		}),
		checks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Name: "check_ok", Help: "1 when a verify or doctor check passed"},
			[]string{"check"},
		),
	}
	r.reg.MustRegister(r.steps, r.stepDuration, r.exitCode, r.lastRun, r.checks)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) ObserveStep(step, outcome string, d time.Duration) {
	r.steps.WithLabelValues(step, outcome).Inc()
	if d > 0 {
		r.stepDuration.WithLabelValues(step).Observe(d.Seconds())
	}
}

func (r *Recorder) ObserveCheck(name string, ok bool) {
	v := 0.0
	if ok {
		v = 1
	}
	r.checks.WithLabelValues(name).Set(v)
}

func (r *Recorder) RecordRun(exitCode int, finished time.Time) {
	r.exitCode.Set(float64(exitCode))
	r.lastRun.Set(float64(finished.Unix()))
}

// WriteTextfile writes every series to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
