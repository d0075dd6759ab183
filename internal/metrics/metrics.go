// Package metrics records harness activity: scenario outcomes, protocol
// steps, invariant findings and identity fetch attempts.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is what the harness reports to.
type Recorder interface {
	ScenarioFinished(scenario string, pass bool, d time.Duration)

	StepCompleted(op string, d time.Duration)
	StepFailed(op, reason string)

	Finding(check, status string)

	IdentityAttempt(success bool)
}

// Nop discards everything.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) ScenarioFinished(string, bool, time.Duration) {}
func (Nop) StepCompleted(string, time.Duration)          {}
func (Nop) StepFailed(string, string)                    {}
func (Nop) Finding(string, string)                       {}
func (Nop) IdentityAttempt(bool)                         {}

// Config holds configuration for Prometheus.
type Config struct {
	// Namespace prefixes every metric name.
	Namespace string
	Subsystem string
	// Registry receives the collectors. If nil, the default registerer is
	// used.
	Registry prometheus.Registerer
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{Namespace: "rwaverify", Registry: prometheus.DefaultRegisterer}
}

// Prometheus implements Recorder with Prometheus collectors.
type Prometheus struct {
	scenariosTotal   *prometheus.CounterVec
	scenarioDuration *prometheus.HistogramVec

	stepsTotal       *prometheus.CounterVec
	stepFailedTotal  *prometheus.CounterVec
	stepDuration     *prometheus.HistogramVec
	findingsTotal    *prometheus.CounterVec
	identityAttempts *prometheus.CounterVec
}

var _ Recorder = (*Prometheus)(nil)

// New registers the collectors on cfg.Registry.
func New(cfg Config) *Prometheus {
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(cfg.Registry)

	return &Prometheus{
		scenariosTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "scenarios_total",
			Help:      "Scenarios run, by outcome",
		}, []string{"scenario", "outcome"}),

		scenarioDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "scenario_duration_seconds",
			Help:      "Scenario wall time in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		}, []string{"scenario"}),

		stepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "protocol_steps_total",
			Help:      "Protocol steps completed",
		}, []string{"op"}),

		stepFailedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "protocol_steps_failed_total",
			Help:      "Protocol steps failed, by reason",
		}, []string{"op", "reason"}),

		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "protocol_step_duration_seconds",
			Help:      "Protocol step duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"op"}),

		findingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "invariant_findings_total",
			Help:      "Balance invariant findings, by check and status",
		}, []string{"check", "status"}),

		identityAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "identity_fetch_attempts_total",
			Help:      "Random identity fetch attempts, by result",
		}, []string{"result"}),
	}
}

func outcome(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

func (p *Prometheus) ScenarioFinished(scenario string, pass bool, d time.Duration) {
	p.scenariosTotal.WithLabelValues(scenario, outcome(pass, "pass", "fail")).Inc()
	p.scenarioDuration.WithLabelValues(scenario).Observe(d.Seconds())
}

func (p *Prometheus) StepCompleted(op string, d time.Duration) {
	p.stepsTotal.WithLabelValues(op).Inc()
	p.stepDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (p *Prometheus) StepFailed(op, reason string) {
	p.stepFailedTotal.WithLabelValues(op, reason).Inc()
}

func (p *Prometheus) Finding(check, status string) {
	p.findingsTotal.WithLabelValues(check, status).Inc()
}

func (p *Prometheus) IdentityAttempt(success bool) {
	p.identityAttempts.WithLabelValues(outcome(success, "ok", "error")).Inc()
}

// WriteTextfile writes everything g gathers to path in the text exposition
// format, for the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
