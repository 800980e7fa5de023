package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"shareai/chatrelay/pkg/config"
	"shareai/chatrelay/pkg/tasks"
)

// TaskMetrics tracks the async task pipeline.
type TaskMetrics struct {
	submitted prometheus.Counter
	finished  *prometheus.CounterVec
	duration  prometheus.Histogram
	callbacks *prometheus.CounterVec
	registry  *prometheus.Registry
	namespace string
	subsystem string
}

// NewTaskMetrics creates and registers task metrics.
func NewTaskMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *TaskMetrics {
	tm := &TaskMetrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "tasks_submitted_total",
			Help:      "Async chat tasks accepted by the manager",
		}),
		finished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "tasks_finished_total",
				Help:      "Async chat tasks finished by final status",
			},
			[]string{"status"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "task_duration_seconds",
			Help:      "Time from task start to completion",
			Buckets:   cfg.DurationBuckets,
		}),
		callbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "task_callbacks_total",
				Help:      "Task completion callback deliveries by result",
			},
			[]string{"result"},
		),
		registry:  registry,
		namespace: cfg.Namespace,
		subsystem: cfg.Subsystem,
	}

	registry.MustRegister(tm.submitted, tm.finished, tm.duration, tm.callbacks)
	return tm
}

// TaskSubmitted implements tasks.Observer.
func (c *Collector) TaskSubmitted() {
	if !c.config.Enabled {
		return
	}
	c.tasks.submitted.Inc()
}

// TaskFinished implements tasks.Observer.
func (c *Collector) TaskFinished(status tasks.Status, elapsed time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.tasks.finished.WithLabelValues(string(status)).Inc()
	c.tasks.duration.Observe(elapsed.Seconds())
}

// CallbackDelivered implements tasks.Observer.
func (c *Collector) CallbackDelivered(err error) {
	if !c.config.Enabled {
		return
	}
	result := "delivered"
	if err != nil {
		result = "failed"
	}
	c.tasks.callbacks.WithLabelValues(result).Inc()
}

// WatchQueueDepth registers a gauge sampled from depth at scrape time.
func (c *Collector) WatchQueueDepth(depth func() int) error {
	gauge := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: c.tasks.namespace,
			Subsystem: c.tasks.subsystem,
			Name:      "task_queue_depth",
			Help:      "Async chat tasks waiting for a worker",
		},
		func() float64 { return float64(depth()) },
	)
	return c.tasks.registry.Register(gauge)
}
