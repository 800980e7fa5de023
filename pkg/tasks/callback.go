package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"shareai/chatrelay/pkg/agent"
	"shareai/chatrelay/pkg/telemetry/tracing"
	"shareai/chatrelay/pkg/upstream"
)

// CallbackStatusError is returned when a callback endpoint answers with a
// non-2xx status.
type CallbackStatusError struct {
	URL        string
	StatusCode int
}

func (e *CallbackStatusError) Error() string {
	return fmt.Sprintf("callback %s returned status %d", e.URL, e.StatusCode)
}

// CallbackConfig configures callback delivery.
type CallbackConfig struct {
	// Timeout bounds each delivery attempt.
	Timeout time.Duration

	// MaxRetries is the total number of delivery attempts.
	MaxRetries int

	// RetryDelay is the base backoff between attempts.
	RetryDelay time.Duration
}

// CallbackSender POSTs finished task records to their callback URL.
type CallbackSender struct {
	client *http.Client
	config CallbackConfig
	logger *slog.Logger

	// wait overrides the backoff sleep in tests.
	wait func(ctx context.Context, d time.Duration) error
}

// NewCallbackSender creates a sender. A nil client gets one with
// cfg.Timeout.
func NewCallbackSender(cfg CallbackConfig, client *http.Client, logger *slog.Logger) *CallbackSender {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackSender{client: client, config: cfg, logger: logger}
}

// Send delivers t to t.CallbackURL. Transport failures and 5xx or 429
// answers are retried with exponential backoff; other statuses fail at once.
func (s *CallbackSender) Send(ctx context.Context, t *Task) (err error) {
	ctx, span := otel.Tracer(tracing.InstrumentationName).Start(ctx, "tasks.callback",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("task.id", t.ID)),
	)
	defer func() {
		tracing.SetStatus(span, err)
		span.End()
	}()

	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", t.ID, err)
	}

	policy := agent.RetryPolicy{
		MaxRetries: s.config.MaxRetries,
		Delay:      s.config.RetryDelay,
		Retryable:  retryableCallbackError,
		Wait:       s.wait,
		OnRetry: func(attempt int, backoff time.Duration, err error) {
			s.logger.WarnContext(ctx, "retrying task callback",
				"task_id", t.ID,
				"attempt", attempt,
				"backoff", backoff,
				"error", err,
			)
		},
	}

	_, outcome, err := agent.WithRetry(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.post(ctx, t.CallbackURL, body)
	})
	if err != nil {
		return fmt.Errorf("callback for task %s failed after %d attempts: %w", t.ID, outcome.Attempts, err)
	}

	s.logger.DebugContext(ctx, "task callback delivered", "task_id", t.ID, "attempts", outcome.Attempts)
	return nil
}

func (s *CallbackSender) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.Inject(ctx, req.Header)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &CallbackStatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return nil
}

func retryableCallbackError(err error) bool {
	var statusErr *CallbackStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}
	return upstream.IsTransient(err)
}
