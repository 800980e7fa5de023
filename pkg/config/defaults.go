package config

import (
	"strings"
	"time"
)

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "0.0.0.0:8000"
	DefaultReadTimeout     = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20
	DefaultMaxBodyBytes    = int64(4 << 20)
	DefaultCORSMaxAge      = 3600

	// Upstream defaults
	DefaultUpstreamName        = "shareai"
	DefaultBaseURL             = "https://api.openai.com"
	DefaultModel               = "gpt-4o-mini"
	DefaultUpstreamTimeout     = 60 * time.Second
	DefaultMaxIdleConns        = 100
	DefaultMaxIdleConnsPerHost = 10
	DefaultIdleConnTimeout     = 90 * time.Second

	// Agent defaults
	DefaultAgentKind       = "chat"
	DefaultMaxRetries      = 3
	DefaultRetryDelay      = time.Second
	DefaultMaxRetriesLimit = 10
	MaxRetriesCeiling      = 100
	DefaultMaxRetryDelay   = 60 * time.Second

	// Relay defaults
	DefaultRelayBufferSize = 64

	// Tasks defaults
	DefaultTasksBackend       = "memory"
	DefaultTasksWorkers       = 4
	DefaultTasksQueueSize     = 128
	DefaultTasksSQLitePath    = "data/tasks.db"
	DefaultTasksSQLiteDriver  = "sqlite"
	DefaultSQLiteBusyTimeout  = 5 * time.Second
	DefaultRetentionSchedule  = "@hourly"
	DefaultRetentionMaxAge    = 24 * time.Hour
	DefaultCallbackTimeout    = 10 * time.Second
	DefaultCallbackMaxRetries = 3
	DefaultCallbackRetryDelay = time.Second

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "chatrelay"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingServiceName = "chatrelay"
	DefaultTracingTimeout     = 10 * time.Second
	DefaultLivenessPath       = "/health"
	DefaultReadinessPath      = "/ready"
	DefaultCheckTimeout       = 5 * time.Second
)

// DefaultDurationBuckets are the histogram buckets for durations in seconds.
var DefaultDurationBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0}

// Default returns a configuration with every field set to its default,
// including the boolean switches that default to true.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.CORS.Enabled = true
	cfg.Tasks.SQLite.WALMode = true
	cfg.Tasks.Retention.Enabled = true
	cfg.Telemetry.Logging.RedactSecrets = true
	cfg.Telemetry.Metrics.Enabled = true
	cfg.Telemetry.Tracing.Insecure = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	applyCORSDefaults(&cfg.Server.CORS)

	// Upstream defaults
	if cfg.Upstream.Name == "" {
		cfg.Upstream.Name = DefaultUpstreamName
	}
	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = DefaultBaseURL
	}
	cfg.Upstream.BaseURL = NormalizeBaseURL(cfg.Upstream.BaseURL)
	if cfg.Upstream.Model == "" {
		cfg.Upstream.Model = DefaultModel
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = DefaultUpstreamTimeout
	}
	if cfg.Upstream.MaxIdleConns == 0 {
		cfg.Upstream.MaxIdleConns = DefaultMaxIdleConns
	}
	if cfg.Upstream.MaxIdleConnsPerHost == 0 {
		cfg.Upstream.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	}
	if cfg.Upstream.IdleConnTimeout == 0 {
		cfg.Upstream.IdleConnTimeout = DefaultIdleConnTimeout
	}

	// Agent defaults
	if cfg.Agent.Kind == "" {
		cfg.Agent.Kind = DefaultAgentKind
	}
	if cfg.Agent.MaxRetries == 0 {
		cfg.Agent.MaxRetries = DefaultMaxRetries
	}
	if cfg.Agent.RetryDelay == 0 {
		cfg.Agent.RetryDelay = DefaultRetryDelay
	}
	if cfg.Agent.MaxRetriesLimit == 0 {
		cfg.Agent.MaxRetriesLimit = DefaultMaxRetriesLimit
	}
	if cfg.Agent.MaxRetryDelay == 0 {
		cfg.Agent.MaxRetryDelay = DefaultMaxRetryDelay
	}

	// Relay defaults
	if cfg.Relay.BufferSize == 0 {
		cfg.Relay.BufferSize = DefaultRelayBufferSize
	}

	// Tasks defaults
	if cfg.Tasks.Backend == "" {
		cfg.Tasks.Backend = DefaultTasksBackend
	}
	if cfg.Tasks.Workers == 0 {
		cfg.Tasks.Workers = DefaultTasksWorkers
	}
	if cfg.Tasks.QueueSize == 0 {
		cfg.Tasks.QueueSize = DefaultTasksQueueSize
	}
	if cfg.Tasks.SQLite.Path == "" {
		cfg.Tasks.SQLite.Path = DefaultTasksSQLitePath
	}
	if cfg.Tasks.SQLite.Driver == "" {
		cfg.Tasks.SQLite.Driver = DefaultTasksSQLiteDriver
	}
	if cfg.Tasks.SQLite.BusyTimeout == 0 {
		cfg.Tasks.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Tasks.Retention.Schedule == "" {
		cfg.Tasks.Retention.Schedule = DefaultRetentionSchedule
	}
	if cfg.Tasks.Retention.MaxAge == 0 {
		cfg.Tasks.Retention.MaxAge = DefaultRetentionMaxAge
	}
	if cfg.Tasks.Callback.Timeout == 0 {
		cfg.Tasks.Callback.Timeout = DefaultCallbackTimeout
	}
	if cfg.Tasks.Callback.MaxRetries == 0 {
		cfg.Tasks.Callback.MaxRetries = DefaultCallbackMaxRetries
	}
	if cfg.Tasks.Callback.RetryDelay == 0 {
		cfg.Tasks.Callback.RetryDelay = DefaultCallbackRetryDelay
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.DurationBuckets) == 0 {
		cfg.Telemetry.Metrics.DurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultCheckTimeout
	}
}

func applyCORSDefaults(cors *CORSConfig) {
	if len(cors.AllowedOrigins) == 0 {
		cors.AllowedOrigins = []string{"*"}
	}
	if len(cors.AllowedMethods) == 0 {
		cors.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cors.AllowedHeaders) == 0 {
		cors.AllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
	}
	if len(cors.ExposedHeaders) == 0 {
		cors.ExposedHeaders = []string{"X-Request-ID"}
	}
	if cors.MaxAge == 0 {
		cors.MaxAge = DefaultCORSMaxAge
	}
}

// NormalizeBaseURL strips trailing slashes and a trailing "/v1", since the
// transport appends "/v1/chat/completions" itself.
func NormalizeBaseURL(raw string) string {
	u := strings.TrimRight(raw, "/")
	u = strings.TrimSuffix(u, "/v1")
	return strings.TrimRight(u, "/")
}
