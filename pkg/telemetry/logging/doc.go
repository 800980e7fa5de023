// Package logging builds the service's slog.Logger.
//
// # Overview
//
// New returns a *slog.Logger whose handler chain is:
//
//		contextHandler -> redactHandler -> json | text | console (tint)
//
//	  - The context handler adds request_id and task_id attributes taken
//	    from the record's context.
//	  - The redact handler masks API keys, bearer tokens and other
//	    credentials in attribute values, and fully masks values whose key
//	    names a secret (api_key, authorization, token, password, ...).
//	  - The console format uses tint for colored, human-readable output.
//
// # Usage
//
//	logger, err := logging.New(cfg.Telemetry.Logging, os.Stderr)
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.InfoContext(ctx, "chat completion served", "model", "gpt-4o-mini")
//
// # Redaction
//
//   - API keys: sk-abc123xyz -> sk-***
//   - Bearer tokens: Bearer abc.def -> Bearer ***
//   - Sensitive keys: "api_key", "sk-live-123" -> "sk-l***"
package logging
