package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"shareai/chatrelay/pkg/config"
)

// HTTPMetrics tracks requests served by the relay's HTTP API.
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics creates and registers HTTP metrics.
func NewHTTPMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *HTTPMetrics {
	hm := &HTTPMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: subsystem(cfg, "http"),
				Name:      "requests_total",
				Help:      "HTTP requests by route pattern, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: subsystem(cfg, "http"),
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration, including streamed bodies",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"route", "method"},
		),
	}

	registry.MustRegister(hm.requestsTotal, hm.requestDuration)
	return hm
}

// RecordHTTPRequest records a served request. route should be the router
// pattern, not the raw path, to keep label cardinality bounded.
func (c *Collector) RecordHTTPRequest(route, method string, status int, elapsed time.Duration) {
	if !c.config.Enabled {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.http.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.http.requestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
