package config

import "time"

// Config is the root configuration structure for the chat relay.
// It contains the HTTP server, upstream endpoint, agent retry policy,
// stream relay, async task and telemetry sections.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and CORS.
	Server ServerConfig `yaml:"server"`

	// Upstream contains the OpenAI-compatible endpoint the agents call.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Agent contains agent construction defaults, most importantly the
	// retry policy.
	Agent AgentConfig `yaml:"agent"`

	// Relay contains streaming relay configuration.
	Relay RelayConfig `yaml:"relay"`

	// Tasks contains configuration for asynchronous chat tasks including
	// the worker pool, result store and retention.
	Tasks TasksConfig `yaml:"tasks"`

	// Telemetry contains configuration for logging, metrics, tracing and
	// health endpoints.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8000", "0.0.0.0:8000").
	// Default: "0.0.0.0:8000"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Zero disables it, which streaming endpoints need.
	// Default: 0
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for in-flight requests
	// and async tasks during graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits the size of request bodies.
	// Default: 4194304 (4MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are sent.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins. ["*"] allows all.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed request headers.
	// Default: ["Authorization", "Content-Type", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders is a list of headers exposed to the client.
	// Default: ["X-Request-ID"]
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is the preflight cache duration in seconds.
	// Default: 3600
	MaxAge int `yaml:"max_age"`

	// AllowCredentials controls whether credentials are allowed.
	// Default: false
	AllowCredentials bool `yaml:"allow_credentials"`
}

// UpstreamConfig describes the OpenAI-compatible chat-completions endpoint.
type UpstreamConfig struct {
	// Name labels the upstream in logs, errors and metrics.
	// Default: "shareai"
	Name string `yaml:"name"`

	// BaseURL is the endpoint root; requests go to <base_url>/v1/chat/completions.
	// A trailing "/v1" is stripped.
	// Env: SHAREAI_BASE_URL
	// Default: "https://api.openai.com"
	BaseURL string `yaml:"base_url"`

	// APIKey is sent as a bearer token.
	// Env: SHAREAI_API_KEY
	APIKey string `yaml:"api_key"`

	// Model is the default model for requests that do not name one.
	// Env: OPENAI_MODEL
	// Default: "gpt-4o-mini"
	Model string `yaml:"model"`

	// Timeout bounds a blocking call and the idle gap between stream frames.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// MaxIdleConns is the size of the idle connection pool.
	// Default: 100
	MaxIdleConns int `yaml:"max_idle_conns"`

	// MaxIdleConnsPerHost is the idle pool size per host.
	// Default: 10
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`

	// IdleConnTimeout is how long idle pooled connections are kept.
	// Default: 90s
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// AgentConfig holds agent construction defaults.
type AgentConfig struct {
	// Kind is the registered agent kind used by the HTTP handlers.
	// Default: "chat"
	Kind string `yaml:"kind"`

	// MaxRetries is the total number of attempts per run.
	// Env: MAX_RETRIES
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the base backoff; attempt i waits RetryDelay * 2^i.
	// Env: RETRY_DELAY (seconds)
	// Default: 1s
	RetryDelay time.Duration `yaml:"retry_delay"`

	// MaxRetriesLimit caps per-request max_retries overrides.
	// Default: 10
	MaxRetriesLimit int `yaml:"max_retries_limit"`

	// MaxRetryDelay caps per-request retry_delay overrides.
	// Default: 60s
	MaxRetryDelay time.Duration `yaml:"max_retry_delay"`
}

// RelayConfig holds streaming relay settings.
type RelayConfig struct {
	// BufferSize is the capacity of the chunk queue between the upstream
	// reader and the client writer.
	// Default: 64
	BufferSize int `yaml:"buffer_size"`
}

// TasksConfig configures asynchronous chat tasks.
type TasksConfig struct {
	// Backend selects the task result store.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Workers is the number of concurrently executing tasks.
	// Default: 4
	Workers int `yaml:"workers"`

	// QueueSize is the number of accepted tasks waiting for a worker.
	// Default: 128
	QueueSize int `yaml:"queue_size"`

	// SQLite contains SQLite store configuration.
	SQLite TasksSQLiteConfig `yaml:"sqlite"`

	// Retention controls pruning of finished tasks.
	Retention RetentionConfig `yaml:"retention"`

	// Callback controls delivery of finished tasks to callback URLs.
	Callback CallbackConfig `yaml:"callback"`
}

// TasksSQLiteConfig configures the SQLite task store.
type TasksSQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/tasks.db"
	Path string `yaml:"path"`

	// Driver selects the database/sql driver.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long a writer waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RetentionConfig configures the finished-task pruner.
type RetentionConfig struct {
	// Enabled controls whether the pruner runs.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Schedule is a standard cron expression or descriptor.
	// Default: "@hourly"
	Schedule string `yaml:"schedule"`

	// MaxAge is how long finished tasks are kept.
	// Default: 24h
	MaxAge time.Duration `yaml:"max_age"`
}

// CallbackConfig configures callback delivery.
type CallbackConfig struct {
	// Timeout bounds one delivery attempt.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the total number of delivery attempts.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the base backoff between delivery attempts.
	// Default: 1s
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactSecrets masks API keys and bearer tokens in log attributes.
	// Default: true
	RedactSecrets bool `yaml:"redact_secrets"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "chatrelay"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: ""
	Subsystem string `yaml:"subsystem"`

	// DurationBuckets defines histogram buckets for durations (seconds).
	// Default: [0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0]
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether traces are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces sampled by the "ratio" sampler.
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint (e.g. "localhost:4317").
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "chatrelay"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the export timeout.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the liveness probe path.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the readiness probe path.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout bounds each component check.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
