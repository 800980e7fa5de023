package config

import (
	"fmt"
	"net/url"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. All field errors are
// collected and returned together as a ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateAgent(&cfg.Agent)...)
	errs = append(errs, validateRelay(&cfg.Relay)...)
	errs = append(errs, validateTasks(&cfg.Tasks)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "listen address is required"})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "read timeout must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "write timeout must not be negative"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "shutdown timeout must not be negative"})
	}
	if cfg.MaxHeaderBytes < 0 || cfg.MaxHeaderBytes > 10*1024*1024 {
		errs = append(errs, FieldError{Field: "server.max_header_bytes", Message: "max header bytes must be between 0 and 10MB"})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "max body bytes must not be negative"})
	}
	return errs
}

func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError

	if cfg.BaseURL == "" {
		errs = append(errs, FieldError{Field: "upstream.base_url", Message: "base url is required"})
	} else if u, err := url.Parse(cfg.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, FieldError{
			Field:   "upstream.base_url",
			Message: fmt.Sprintf("invalid base url %q: must be an absolute http(s) URL", cfg.BaseURL),
		})
	}
	if cfg.Model == "" {
		errs = append(errs, FieldError{Field: "upstream.model", Message: "model is required"})
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{Field: "upstream.timeout", Message: "timeout must be positive"})
	}
	if cfg.MaxIdleConns < 0 || cfg.MaxIdleConnsPerHost < 0 {
		errs = append(errs, FieldError{Field: "upstream.max_idle_conns", Message: "connection pool sizes must not be negative"})
	}
	return errs
}

func validateAgent(cfg *AgentConfig) []FieldError {
	var errs []FieldError

	if cfg.Kind == "" {
		errs = append(errs, FieldError{Field: "agent.kind", Message: "agent kind is required"})
	}
	if cfg.MaxRetries < 1 {
		errs = append(errs, FieldError{
			Field:   "agent.max_retries",
			Message: fmt.Sprintf("max retries must be at least 1, got %d", cfg.MaxRetries),
		})
	}
	if cfg.MaxRetriesLimit < cfg.MaxRetries {
		errs = append(errs, FieldError{Field: "agent.max_retries_limit", Message: "max retries limit must not be below max retries"})
	}
	if cfg.MaxRetriesLimit > MaxRetriesCeiling {
		errs = append(errs, FieldError{
			Field:   "agent.max_retries_limit",
			Message: fmt.Sprintf("max retries limit must not exceed %d, got %d", MaxRetriesCeiling, cfg.MaxRetriesLimit),
		})
	}
	if cfg.RetryDelay < 0 {
		errs = append(errs, FieldError{Field: "agent.retry_delay", Message: "retry delay must not be negative"})
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		errs = append(errs, FieldError{Field: "agent.max_retry_delay", Message: "max retry delay must not be below retry delay"})
	}
	return errs
}

func validateRelay(cfg *RelayConfig) []FieldError {
	if cfg.BufferSize < 1 {
		return []FieldError{{Field: "relay.buffer_size", Message: "buffer size must be at least 1"}}
	}
	return nil
}

func validateTasks(cfg *TasksConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "tasks.sqlite.path", Message: "path is required for the sqlite backend"})
		}
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "tasks.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q: must be 'sqlite' or 'sqlite3'", cfg.SQLite.Driver),
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "tasks.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'sqlite'", cfg.Backend),
		})
	}

	if cfg.Workers < 1 {
		errs = append(errs, FieldError{Field: "tasks.workers", Message: "workers must be at least 1"})
	}
	if cfg.QueueSize < 0 {
		errs = append(errs, FieldError{Field: "tasks.queue_size", Message: "queue size must not be negative"})
	}
	if cfg.Retention.Enabled {
		if cfg.Retention.Schedule == "" {
			errs = append(errs, FieldError{Field: "tasks.retention.schedule", Message: "schedule is required when retention is enabled"})
		}
		if cfg.Retention.MaxAge <= 0 {
			errs = append(errs, FieldError{Field: "tasks.retention.max_age", Message: "max age must be positive"})
		}
	}
	if cfg.Callback.MaxRetries < 1 {
		errs = append(errs, FieldError{Field: "tasks.callback.max_retries", Message: "max retries must be at least 1"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text', or 'console'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "metrics path must start with '/'"})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "tracing endpoint is required when tracing is enabled"})
	}
	switch cfg.Tracing.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "sample ratio must be between 0.0 and 1.0"})
	}

	if !strings.HasPrefix(cfg.Health.LivenessPath, "/") || !strings.HasPrefix(cfg.Health.ReadinessPath, "/") {
		errs = append(errs, FieldError{Field: "telemetry.health", Message: "health paths must start with '/'"})
	}
	return errs
}
