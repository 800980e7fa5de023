package logging

import (
	"context"
	"io"
	"testing"

	"shareai/chatrelay/pkg/config"
)

// BenchmarkLogger_Info_Redacted measures logging with redaction enabled.
func BenchmarkLogger_Info_Redacted(b *testing.B) {
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json", RedactSecrets: true}, io.Discard)
	if err != nil {
		b.Fatalf("Failed to create logger: %v", err)
	}
	ctx := WithRequestID(context.Background(), "req-bench")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.InfoContext(ctx, "chat completion served", "model", "gpt-4o-mini", "attempts", i)
	}
}

// BenchmarkLogger_Debug_Disabled measures the cost of a filtered call.
func BenchmarkLogger_Debug_Disabled(b *testing.B) {
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json", RedactSecrets: true}, io.Discard)
	if err != nil {
		b.Fatalf("Failed to create logger: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Debug("stream frame skipped", "count", i)
	}
}
