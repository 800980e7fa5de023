// Package telemetry groups the chat relay's observability packages.
//
//   - logging: slog construction, secret redaction, request and task IDs
//   - metrics: Prometheus collector for agent runs, tasks and HTTP requests
//   - tracing: OpenTelemetry provider, OTLP gRPC export, HTTP propagation
//   - health: liveness and readiness probes
//
// The packages are wired together in cmd/chatrelay:
//
//	logger, _ := logging.New(cfg.Telemetry.Logging, os.Stderr)
//	tracer, _ := tracing.New(cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(ctx)
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//
// None of them is required by the core packages: the agent and task
// manager accept an optional observer and use the global tracer provider,
// which is a no-op unless tracing is enabled.
package telemetry
