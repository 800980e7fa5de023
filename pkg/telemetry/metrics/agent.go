package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"shareai/chatrelay/pkg/agent"
	"shareai/chatrelay/pkg/config"
	"shareai/chatrelay/pkg/upstream"
)

// AgentMetrics tracks agent run outcomes.
type AgentMetrics struct {
	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	runAttempts  *prometheus.HistogramVec
	retryErrors  *prometheus.CounterVec
	runsInFlight *prometheus.GaugeVec
	streamChunks prometheus.Counter
}

// NewAgentMetrics creates and registers agent metrics.
func NewAgentMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *AgentMetrics {
	am := &AgentMetrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: subsystem(cfg, "agent"),
				Name:      "runs_total",
				Help:      "Total number of agent runs by mode and outcome",
			},
			[]string{"mode", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: subsystem(cfg, "agent"),
				Name:      "run_duration_seconds",
				Help:      "Duration of agent runs including retries and backoff",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"mode"},
		),
		runAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: subsystem(cfg, "agent"),
				Name:      "run_attempts",
				Help:      "Number of upstream attempts per agent run",
				Buckets:   []float64{1, 2, 3, 5, 10},
			},
			[]string{"mode"},
		),
		retryErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: subsystem(cfg, "agent"),
				Name:      "retry_errors_total",
				Help:      "Transient upstream failures recorded in retry outcomes",
			},
			[]string{"mode"},
		),
		runsInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: subsystem(cfg, "agent"),
				Name:      "runs_in_flight",
				Help:      "Agent runs currently executing",
			},
			[]string{"mode"},
		),
		streamChunks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: subsystem(cfg, "agent"),
				Name:      "stream_chunks_total",
				Help:      "Content deltas received from streaming runs",
			},
		),
	}

	registry.MustRegister(
		am.runsTotal,
		am.runDuration,
		am.runAttempts,
		am.retryErrors,
		am.runsInFlight,
		am.streamChunks,
	)
	return am
}

// RunStarted implements agent.Observer.
func (c *Collector) RunStarted(mode agent.Mode) {
	if !c.config.Enabled {
		return
	}
	c.agent.runsInFlight.WithLabelValues(string(mode)).Inc()
}

// RunFinished implements agent.Observer.
func (c *Collector) RunFinished(mode agent.Mode, outcome agent.RetryOutcome, elapsed time.Duration, err error) {
	if !c.config.Enabled {
		return
	}
	m := string(mode)
	c.agent.runsInFlight.WithLabelValues(m).Dec()
	c.agent.runsTotal.WithLabelValues(m, RunStatus(err)).Inc()
	c.agent.runDuration.WithLabelValues(m).Observe(elapsed.Seconds())
	c.agent.runAttempts.WithLabelValues(m).Observe(float64(outcome.Attempts))
	if n := len(outcome.Errors); n > 0 {
		c.agent.retryErrors.WithLabelValues(m).Add(float64(n))
	}
}

// ChunkReceived implements agent.Observer.
func (c *Collector) ChunkReceived() {
	if !c.config.Enabled {
		return
	}
	c.agent.streamChunks.Inc()
}

// RunStatus maps a run error to a bounded status label.
func RunStatus(err error) string {
	var (
		timeoutErr *upstream.TimeoutError
		connErr    *upstream.ConnectionError
		statusErr  *upstream.StatusError
	)
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, agent.ErrStopped):
		return "stopped"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &connErr):
		return "connection"
	case errors.As(err, &statusErr):
		return "upstream_status"
	default:
		return "error"
	}
}

func subsystem(cfg config.MetricsConfig, name string) string {
	if cfg.Subsystem == "" {
		return name
	}
	return cfg.Subsystem + "_" + name
}
