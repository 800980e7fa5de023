package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// Fields absent from the file keep their defaults. The result is validated.
// Environment variables are not consulted; use LoadConfigWithEnvOverrides
// for that.
func LoadConfig(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration and applies environment
// variable overrides. An empty path starts from Default().
//
// The loading sequence is:
// 1. Default values
// 2. YAML file (if path is not empty)
// 3. Environment variable overrides
// 4. Validation
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = readFile(path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. With no
// arguments it loads ".env". Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %q: %w", f, err)
		}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. The upstream and retry variables keep the names used by
// existing deployments; everything else uses CHATRELAY_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Upstream overrides
	if val := os.Getenv("SHAREAI_API_KEY"); val != "" {
		cfg.Upstream.APIKey = val
	}
	if val := os.Getenv("SHAREAI_BASE_URL"); val != "" {
		cfg.Upstream.BaseURL = val
	}
	if val := os.Getenv("OPENAI_MODEL"); val != "" {
		cfg.Upstream.Model = val
	}
	setDuration(&cfg.Upstream.Timeout, "CHATRELAY_UPSTREAM_TIMEOUT")

	// Agent overrides
	setInt(&cfg.Agent.MaxRetries, "MAX_RETRIES")
	if val := os.Getenv("RETRY_DELAY"); val != "" {
		if d, ok := parseSeconds(val); ok {
			cfg.Agent.RetryDelay = d
		}
	}

	// Server overrides
	if val := os.Getenv("CHATRELAY_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	setDuration(&cfg.Server.ShutdownTimeout, "CHATRELAY_SHUTDOWN_TIMEOUT")

	// Relay overrides
	setInt(&cfg.Relay.BufferSize, "CHATRELAY_RELAY_BUFFER_SIZE")

	// Tasks overrides
	if val := os.Getenv("CHATRELAY_TASKS_BACKEND"); val != "" {
		cfg.Tasks.Backend = val
	}
	if val := os.Getenv("CHATRELAY_TASKS_SQLITE_PATH"); val != "" {
		cfg.Tasks.SQLite.Path = val
	}
	if val := os.Getenv("CHATRELAY_TASKS_SQLITE_DRIVER"); val != "" {
		cfg.Tasks.SQLite.Driver = val
	}
	setInt(&cfg.Tasks.Workers, "CHATRELAY_TASKS_WORKERS")

	// Telemetry overrides
	if val := os.Getenv("CHATRELAY_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = strings.ToLower(val)
	}
	if val := os.Getenv("CHATRELAY_LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = strings.ToLower(val)
	}
	setBool(&cfg.Telemetry.Metrics.Enabled, "CHATRELAY_METRICS_ENABLED")
	setBool(&cfg.Telemetry.Tracing.Enabled, "CHATRELAY_TRACING_ENABLED")
	if val := os.Getenv("CHATRELAY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func setBool(dst *bool, key string) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

// parseSeconds accepts "1.5" (seconds) as well as Go durations ("1500ms").
func parseSeconds(val string) (time.Duration, bool) {
	if f, err := strconv.ParseFloat(val, 64); err == nil {
		return time.Duration(f * float64(time.Second)), true
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d, true
	}
	return 0, false
}
