package agent

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"shareai/chatrelay/pkg/upstream"
)

// Agent is the capability shared by every agent kind.
type Agent interface {
	// Run performs one blocking request cycle. The returned Result is also
	// available from Result until the next run or Reset.
	Run(ctx context.Context, prompt, systemPrompt string) *Result

	// StreamRun performs one streaming request cycle, calling onChunk
	// synchronously with every content delta. onChunk may be nil.
	StreamRun(ctx context.Context, prompt, systemPrompt string, onChunk func(string)) *Result

	// Step runs a single user turn.
	Step(ctx context.Context, prompt string) *Result

	// AddMessage appends a message to the history, e.g. to seed prior turns.
	AddMessage(role Role, content string) error

	// Messages returns a snapshot of the history.
	Messages() []Message

	// LastMessage returns the content of the most recent message.
	LastMessage() (string, bool)

	// Result returns the last result, or nil before any run.
	Result() *Result

	// RetryOutcome returns the outcome of the last run.
	RetryOutcome() RetryOutcome

	// IsRunning reports whether a run is in progress.
	IsRunning() bool

	// Stop asks an in-progress run to end at its next checkpoint.
	Stop()

	// Reset clears history, result and retry outcome.
	Reset()
}

// Transport is the upstream call surface an agent needs.
// *upstream.Client implements it.
type Transport interface {
	Complete(ctx context.Context, req *upstream.ChatRequest) (*upstream.ChatCompletion, error)
	Stream(ctx context.Context, req *upstream.ChatRequest, onDelta func(string) error) error
}

// Result is the last payload produced by a run: exactly one of Response
// and Error is set.
type Result struct {
	// Response is the normalized upstream response. Streaming runs
	// synthesize a single-choice response from the accumulated deltas,
	// or an empty choice list when nothing arrived.
	Response *upstream.ChatCompletion `json:"response,omitempty"`

	// Error is the text of the captured failure.
	Error string `json:"error,omitempty"`

	err error
}

func failedResult(err error) *Result {
	return &Result{Error: err.Error(), err: err}
}

// Failed reports whether the run ended in a captured error.
func (r *Result) Failed() bool {
	return r != nil && (r.err != nil || r.Error != "")
}

// Err returns the captured error value, preserving its type for
// errors.As. It is nil for successful results.
func (r *Result) Err() error {
	if r == nil {
		return nil
	}
	return r.err
}

// Content returns the first choice's content, or "".
func (r *Result) Content() string {
	if r == nil {
		return ""
	}
	msg, _ := r.Response.FirstMessage()
	return msg.Content
}

// Config holds the scalar settings an agent is constructed with.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string

	// MaxRetries is the total number of attempts per run (at least 1).
	MaxRetries int

	// RetryDelay is the base backoff between attempts.
	RetryDelay time.Duration

	// Timeout bounds each upstream call. Zero uses the transport default.
	Timeout time.Duration
}

// Mode tells observers which kind of run is reported.
type Mode string

const (
	ModeBlocking Mode = "blocking"
	ModeStream   Mode = "stream"
)

// Observer receives run lifecycle notifications, e.g. for metrics.
type Observer interface {
	RunStarted(mode Mode)
	RunFinished(mode Mode, outcome RetryOutcome, elapsed time.Duration, err error)
	ChunkReceived()
}

type nopObserver struct{}

func (nopObserver) RunStarted(Mode)                                      {}
func (nopObserver) RunFinished(Mode, RetryOutcome, time.Duration, error) {}
func (nopObserver) ChunkReceived()                                       {}

type options struct {
	logger     *slog.Logger
	observer   Observer
	transport  Transport
	httpClient *http.Client
	tracer     trace.Tracer
	wait       func(ctx context.Context, d time.Duration) error
}

// Option customizes agent construction.
type Option func(*options)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithObserver registers a lifecycle observer.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithTransport replaces the upstream transport, e.g. to share one pooled
// client between agents.
func WithTransport(t Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithHTTPClient sets the HTTP client of the transport the agent builds
// when no transport is given.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithTracer sets the tracer for run spans. Default: the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithRetryWait replaces the backoff sleep.
func WithRetryWait(wait func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.wait = wait }
}
