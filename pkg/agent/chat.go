package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"shareai/chatrelay/pkg/upstream"
)

const tracerName = "shareai/chatrelay/agent"

// ChatAgent is the chat-completion agent. It owns one Conversation and
// records the Result and RetryOutcome of its latest run.
type ChatAgent struct {
	config    Config
	transport Transport
	logger    *slog.Logger
	observer  Observer
	tracer    trace.Tracer
	wait      func(ctx context.Context, d time.Duration) error

	running atomic.Bool

	mu           sync.Mutex
	conversation *Conversation
	result       *Result
	outcome      RetryOutcome
}

var _ Agent = (*ChatAgent)(nil)

// NewChatAgent creates a chat agent. Without WithTransport it builds its
// own upstream client from cfg.
func NewChatAgent(cfg Config, opts ...Option) (*ChatAgent, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}
	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("%w: max retries must be at least 1, got %d", ErrInvalidConfig, cfg.MaxRetries)
	}
	if cfg.RetryDelay < 0 {
		return nil, fmt.Errorf("%w: retry delay must not be negative", ErrInvalidConfig)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	if o.transport == nil {
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("%w: base url is required", ErrInvalidConfig)
		}
		o.transport = upstream.NewClient(upstream.Config{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}, upstream.WithHTTPClient(o.httpClient), upstream.WithLogger(o.logger))
	}

	return &ChatAgent{
		config:       cfg,
		transport:    o.transport,
		logger:       o.logger,
		observer:     o.observer,
		tracer:       o.tracer,
		wait:         o.wait,
		conversation: NewConversation(),
		outcome:      NewRetryOutcome(),
	}, nil
}

// newChat adapts NewChatAgent to the Constructor signature.
func newChat(cfg Config, opts ...Option) (Agent, error) {
	return NewChatAgent(cfg, opts...)
}

// Run performs a blocking request cycle.
func (a *ChatAgent) Run(ctx context.Context, prompt, systemPrompt string) *Result {
	return a.execute(ctx, ModeBlocking, prompt, systemPrompt, nil)
}

// StreamRun performs a streaming request cycle. Each attempt restarts
// accumulation from empty; deltas already passed to onChunk by a failed
// attempt are not withdrawn.
func (a *ChatAgent) StreamRun(ctx context.Context, prompt, systemPrompt string, onChunk func(string)) *Result {
	return a.execute(ctx, ModeStream, prompt, systemPrompt, onChunk)
}

// Step runs a single user turn.
func (a *ChatAgent) Step(ctx context.Context, prompt string) *Result {
	return a.Run(ctx, prompt, "")
}

func (a *ChatAgent) execute(ctx context.Context, mode Mode, prompt, systemPrompt string, onChunk func(string)) *Result {
	a.running.Store(true)
	defer a.running.Store(false)

	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "agent."+string(mode)+"_run",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("llm.model", a.config.Model)),
	)
	defer span.End()

	a.observer.RunStarted(mode)
	req := a.seed(prompt, systemPrompt, mode == ModeStream)

	a.logger.InfoContext(ctx, "agent run started",
		"mode", mode,
		"model", a.config.Model,
		"messages", len(req.Messages),
		"max_retries", a.config.MaxRetries,
	)

	policy := a.policy(ctx)
	var (
		completion *upstream.ChatCompletion
		outcome    RetryOutcome
		err        error
	)
	if mode == ModeStream {
		completion, outcome, err = WithRetry(ctx, policy, func(ctx context.Context) (*upstream.ChatCompletion, error) {
			return a.streamAttempt(ctx, req, onChunk)
		})
	} else {
		completion, outcome, err = WithRetry(ctx, policy, func(ctx context.Context) (*upstream.ChatCompletion, error) {
			if !a.running.Load() {
				return nil, ErrStopped
			}
			return a.transport.Complete(ctx, req)
		})
	}

	elapsed := time.Since(start)
	result := a.finish(completion, outcome, err)

	span.SetAttributes(
		attribute.Int("agent.attempts", outcome.Attempts),
		attribute.Bool("agent.success", outcome.Success),
	)
	a.observer.RunFinished(mode, outcome, elapsed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.WarnContext(ctx, "agent run failed",
			"mode", mode,
			"attempts", outcome.Attempts,
			"latency_ms", elapsed.Milliseconds(),
			"error", err,
		)
		return result
	}

	span.SetStatus(codes.Ok, "")
	a.logger.InfoContext(ctx, "agent run completed",
		"mode", mode,
		"attempts", outcome.Attempts,
		"latency_ms", elapsed.Milliseconds(),
	)
	return result
}

// seed appends the optional system and user messages and snapshots the
// request payload.
func (a *ChatAgent) seed(prompt, systemPrompt string, stream bool) *upstream.ChatRequest {
	a.mu.Lock()
	defer a.mu.Unlock()

	if systemPrompt != "" && !a.conversation.HasSystem() {
		_ = a.conversation.Append(RoleSystem, systemPrompt)
	}
	if prompt != "" {
		_ = a.conversation.Append(RoleUser, prompt)
	}

	msgs := a.conversation.Messages()
	wire := make([]upstream.Message, len(msgs))
	for i, m := range msgs {
		wire[i] = upstream.Message{Role: string(m.Role), Content: m.Content}
	}
	return &upstream.ChatRequest{Model: a.config.Model, Messages: wire, Stream: stream}
}

func (a *ChatAgent) policy(ctx context.Context) RetryPolicy {
	return RetryPolicy{
		MaxRetries: a.config.MaxRetries,
		Delay:      a.config.RetryDelay,
		Wait:       a.wait,
		OnRetry: func(attempt int, backoff time.Duration, err error) {
			a.logger.WarnContext(ctx, "retrying upstream call",
				"attempt", attempt,
				"max_retries", a.config.MaxRetries,
				"backoff", backoff,
				"error", err,
			)
		},
	}
}

// streamAttempt reads one complete stream and synthesizes the response.
func (a *ChatAgent) streamAttempt(ctx context.Context, req *upstream.ChatRequest, onChunk func(string)) (*upstream.ChatCompletion, error) {
	if !a.running.Load() {
		return nil, ErrStopped
	}

	var buf strings.Builder
	err := a.transport.Stream(ctx, req, func(delta string) error {
		if !a.running.Load() {
			return ErrStopped
		}
		buf.WriteString(delta)
		a.observer.ChunkReceived()
		if onChunk != nil {
			onChunk(delta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if buf.Len() == 0 {
		return &upstream.ChatCompletion{Choices: []upstream.Choice{}}, nil
	}
	return &upstream.ChatCompletion{
		Model: req.Model,
		Choices: []upstream.Choice{{
			Message:      upstream.Message{Role: string(RoleAssistant), Content: buf.String()},
			FinishReason: "stop",
		}},
	}, nil
}

// finish records the outcome and result and appends the reply.
func (a *ChatAgent) finish(completion *upstream.ChatCompletion, outcome RetryOutcome, err error) *Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.outcome = outcome
	if err != nil {
		a.result = failedResult(err)
		return a.result
	}

	a.result = &Result{Response: completion}
	if msg, ok := completion.FirstMessage(); ok {
		role := Role(msg.Role)
		if role != RoleUser && role != RoleAssistant {
			role = RoleAssistant
		}
		_ = a.conversation.Append(role, msg.Content)
	}
	return a.result
}

// AddMessage appends a message to the history.
func (a *ChatAgent) AddMessage(role Role, content string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conversation.Append(role, content)
}

// Messages returns a snapshot of the history.
func (a *ChatAgent) Messages() []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conversation.Messages()
}

// LastMessage returns the content of the most recent message.
func (a *ChatAgent) LastMessage() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conversation.Last()
}

// FilterMessages returns the messages with the given role.
func (a *ChatAgent) FilterMessages(role Role) []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conversation.Filter(role)
}

// Transcript renders the history as "ROLE: content" lines.
func (a *ChatAgent) Transcript() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conversation.Render()
}

// Result returns the last result, or nil before any run.
func (a *ChatAgent) Result() *Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result
}

// RetryOutcome returns a copy of the last run's outcome.
func (a *ChatAgent) RetryOutcome() RetryOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcome.clone()
}

// IsRunning reports whether a run is in progress.
func (a *ChatAgent) IsRunning() bool {
	return a.running.Load()
}

// Stop clears the running flag. The active run observes it before its
// next attempt or stream frame and ends with ErrStopped.
func (a *ChatAgent) Stop() {
	a.running.Store(false)
}

// Reset clears history, result and retry outcome.
func (a *ChatAgent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conversation.Clear()
	a.result = nil
	a.outcome = NewRetryOutcome()
	a.running.Store(false)
}
