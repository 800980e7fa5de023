// Package tracing configures OpenTelemetry tracing for the relay.
//
// New installs a global TracerProvider exporting over OTLP/gRPC. Packages
// that create spans (the agent runs, the HTTP middleware, task callbacks)
// use otel.Tracer and so pick up whatever provider is installed; with
// tracing disabled they get the no-op provider.
//
//	tracer, err := tracing.New(cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
// # Sampling
//
// Samplers are wrapped in ParentBased so that an incoming traceparent
// decides for the whole request:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    sampler: ratio
//	    sample_ratio: 0.1
//	    endpoint: localhost:4317
//
// # Propagation
//
// HTTPMiddleware extracts W3C trace context from incoming requests and
// starts a server span. Inject writes the current context into outgoing
// headers, e.g. for task completion callbacks.
package tracing
