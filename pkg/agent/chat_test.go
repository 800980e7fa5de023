package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"shareai/chatrelay/internal/testutil"
	"shareai/chatrelay/pkg/upstream"
)

type fakeTransport struct {
	complete func(ctx context.Context, req *upstream.ChatRequest) (*upstream.ChatCompletion, error)
	stream   func(ctx context.Context, req *upstream.ChatRequest, onDelta func(string) error) error
}

func (f *fakeTransport) Complete(ctx context.Context, req *upstream.ChatRequest) (*upstream.ChatCompletion, error) {
	return f.complete(ctx, req)
}

func (f *fakeTransport) Stream(ctx context.Context, req *upstream.ChatRequest, onDelta func(string) error) error {
	return f.stream(ctx, req, onDelta)
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []Mode
	finished []RetryOutcome
	chunks   int
}

func (o *recordingObserver) RunStarted(mode Mode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, mode)
}

func (o *recordingObserver) RunFinished(_ Mode, outcome RetryOutcome, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, outcome)
}

func (o *recordingObserver) ChunkReceived() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.chunks++
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAgent(t *testing.T, baseURL string, maxRetries int, opts ...Option) *ChatAgent {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	a, err := NewChatAgent(Config{
		APIKey:     "sk-test",
		BaseURL:    baseURL,
		Model:      "gpt-4o-mini",
		MaxRetries: maxRetries,
		RetryDelay: 10 * time.Millisecond,
		Timeout:    2 * time.Second,
	}, opts...)
	if err != nil {
		t.Fatalf("failed to create agent: %v", err)
	}
	return a
}

func TestChatAgent_Run(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{Body: testutil.Completion("Hi!")})
	defer mock.Close()

	a := newTestAgent(t, mock.URL(), 3)
	res := a.Run(context.Background(), "Hello", "Be nice")

	if res.Failed() {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	if res.Content() != "Hi!" {
		t.Errorf("expected content Hi!, got %q", res.Content())
	}
	if a.Result() != res {
		t.Error("expected Result() to return the last result")
	}

	msgs := a.Messages()
	want := []Message{{RoleSystem, "Be nice"}, {RoleUser, "Hello"}, {RoleAssistant, "Hi!"}}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("message %d: expected %+v, got %+v", i, want[i], msgs[i])
		}
	}

	outcome := a.RetryOutcome()
	if outcome.Attempts != 1 || !outcome.Success {
		t.Errorf("expected 1 successful attempt, got %+v", outcome)
	}
	if a.IsRunning() {
		t.Error("expected running flag to be cleared")
	}

	sent := mock.Requests()[0].Body
	if len(sent.Messages) != 2 || sent.Messages[0].Role != "system" || sent.Messages[1].Content != "Hello" {
		t.Errorf("unexpected payload messages: %+v", sent.Messages)
	}
}

func TestChatAgent_Run_RetriesTransientFailures(t *testing.T) {
	mock := testutil.NewMockUpstream(
		testutil.MockResponse{Abort: true},
		testutil.MockResponse{Abort: true},
		testutil.MockResponse{Body: testutil.Completion("third time")},
	)
	defer mock.Close()

	var waits []time.Duration
	a := newTestAgent(t, mock.URL(), 3, WithRetryWait(recordWaits(&waits)))
	res := a.Run(context.Background(), "Hello", "")

	if res.Failed() {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	outcome := a.RetryOutcome()
	if outcome.Attempts != 3 || !outcome.Success || len(outcome.Errors) != 2 {
		t.Errorf("expected 3 attempts with 2 errors, got %+v", outcome)
	}
	if len(waits) != 2 || waits[0] != 10*time.Millisecond || waits[1] != 20*time.Millisecond {
		t.Errorf("expected waits [10ms 20ms], got %v", waits)
	}
	if mock.RequestCount() != 3 {
		t.Errorf("expected 3 upstream requests, got %d", mock.RequestCount())
	}
}

func TestChatAgent_Run_StatusErrorIsFatal(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{StatusCode: http.StatusUnauthorized, Body: `{"error":{"message":"invalid key"}}`})
	defer mock.Close()

	var waits []time.Duration
	a := newTestAgent(t, mock.URL(), 5, WithRetryWait(recordWaits(&waits)))
	res := a.Run(context.Background(), "Hello", "")

	if !res.Failed() {
		t.Fatal("expected captured failure")
	}
	var statusErr *upstream.StatusError
	if !errors.As(res.Err(), &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 StatusError, got %v", res.Err())
	}
	if !strings.Contains(res.Error, "invalid key") {
		t.Errorf("expected error text to carry upstream message, got %q", res.Error)
	}
	if a.RetryOutcome().Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", a.RetryOutcome().Attempts)
	}
	if len(waits) != 0 {
		t.Errorf("expected no backoff, got %v", waits)
	}
	if msgs := a.Messages(); len(msgs) != 1 || msgs[0].Role != RoleUser {
		t.Errorf("expected only the user message, got %+v", msgs)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("expected 1 upstream request, got %d", mock.RequestCount())
	}
}

func TestChatAgent_Run_ExhaustedRetries(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{Abort: true})
	defer mock.Close()

	var waits []time.Duration
	a := newTestAgent(t, mock.URL(), 4, WithRetryWait(recordWaits(&waits)))
	res := a.Run(context.Background(), "Hello", "")

	if !res.Failed() {
		t.Fatal("expected captured failure")
	}
	outcome := a.RetryOutcome()
	if outcome.Attempts != 4 || outcome.Success || len(outcome.Errors) != 4 {
		t.Errorf("expected 4 failed attempts, got %+v", outcome)
	}
	if outcome.LastError() != res.Error {
		t.Errorf("expected last recorded error to match result: %q vs %q", outcome.LastError(), res.Error)
	}
	if a.IsRunning() {
		t.Error("expected running flag to be cleared on error path")
	}
}

func TestChatAgent_Run_SystemPromptAddedOnce(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{Body: testutil.Completion("ok")})
	defer mock.Close()

	a := newTestAgent(t, mock.URL(), 1)
	a.Run(context.Background(), "one", "sys")
	a.Run(context.Background(), "two", "another sys")

	systems := a.FilterMessages(RoleSystem)
	if len(systems) != 1 || systems[0].Content != "sys" {
		t.Errorf("expected single original system message, got %+v", systems)
	}
	if len(a.Messages()) != 5 {
		t.Errorf("expected 5 messages, got %d", len(a.Messages()))
	}
}

func TestChatAgent_Run_NoChoices(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{Body: `{"choices":[]}`})
	defer mock.Close()

	a := newTestAgent(t, mock.URL(), 1)
	res := a.Run(context.Background(), "Hello", "")

	if res.Failed() {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	if len(a.Messages()) != 1 {
		t.Errorf("expected no assistant message, got %+v", a.Messages())
	}
}

func TestChatAgent_StreamRun(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{StreamFrames: testutil.Frames("He", "llo")})
	defer mock.Close()

	obs := &recordingObserver{}
	a := newTestAgent(t, mock.URL(), 3, WithObserver(obs))

	var chunks []string
	res := a.StreamRun(context.Background(), "Hi", "", func(c string) { chunks = append(chunks, c) })

	if res.Failed() {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	if res.Content() != "Hello" {
		t.Errorf("expected Hello, got %q", res.Content())
	}
	if strings.Join(chunks, "|") != "He|llo" {
		t.Errorf("expected chunks He|llo, got %v", chunks)
	}

	assistants := a.FilterMessages(RoleAssistant)
	if len(assistants) != 1 || assistants[0].Content != "Hello" {
		t.Errorf("expected one synthesized assistant message, got %+v", assistants)
	}
	if obs.chunks != 2 || len(obs.started) != 1 || obs.started[0] != ModeStream || len(obs.finished) != 1 {
		t.Errorf("unexpected observer calls: %+v", obs)
	}
	if !mock.Requests()[0].Body.Stream {
		t.Error("expected streaming payload")
	}
}

func TestChatAgent_StreamRun_Empty(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{StreamFrames: testutil.Frames()})
	defer mock.Close()

	a := newTestAgent(t, mock.URL(), 1)
	res := a.StreamRun(context.Background(), "Hi", "", nil)

	if res.Failed() {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	if res.Response == nil || len(res.Response.Choices) != 0 {
		t.Errorf("expected empty choice list, got %+v", res.Response)
	}
	if len(a.Messages()) != 1 {
		t.Errorf("expected no assistant message, got %+v", a.Messages())
	}
}

func TestChatAgent_StreamRun_RetryRestartsAccumulation(t *testing.T) {
	mock := testutil.NewMockUpstream(
		testutil.MockResponse{StreamFrames: []string{testutil.Frame("par")}, Abort: true},
		testutil.MockResponse{StreamFrames: testutil.Frames("Hel", "lo")},
	)
	defer mock.Close()

	var waits []time.Duration
	a := newTestAgent(t, mock.URL(), 3, WithRetryWait(recordWaits(&waits)))
	res := a.StreamRun(context.Background(), "Hi", "", nil)

	if res.Failed() {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	if res.Content() != "Hello" {
		t.Errorf("expected accumulation to restart, got %q", res.Content())
	}
	outcome := a.RetryOutcome()
	if outcome.Attempts != 2 || !outcome.Success {
		t.Errorf("expected 2 attempts, got %+v", outcome)
	}
	if len(waits) != 1 || waits[0] != 10*time.Millisecond {
		t.Errorf("expected one 10ms wait, got %v", waits)
	}
}

func TestChatAgent_StreamRun_StatusErrorCaptured(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{StatusCode: http.StatusBadGateway, Body: "bad gateway"})
	defer mock.Close()

	a := newTestAgent(t, mock.URL(), 3)
	res := a.StreamRun(context.Background(), "Hi", "", nil)

	if !res.Failed() {
		t.Fatal("expected captured failure")
	}
	if a.RetryOutcome().Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", a.RetryOutcome().Attempts)
	}
}

func TestChatAgent_StopDuringStream(t *testing.T) {
	var a *ChatAgent
	transport := &fakeTransport{
		stream: func(_ context.Context, _ *upstream.ChatRequest, onDelta func(string) error) error {
			for _, d := range []string{"a", "b", "c"} {
				if err := onDelta(d); err != nil {
					return err
				}
			}
			return nil
		},
	}
	a = newTestAgent(t, "", 3, WithTransport(transport))

	var chunks []string
	res := a.StreamRun(context.Background(), "Hi", "", func(c string) {
		chunks = append(chunks, c)
		a.Stop()
	})

	if !errors.Is(res.Err(), ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", res.Err())
	}
	if len(chunks) != 1 {
		t.Errorf("expected the stream to stop after the first chunk, got %v", chunks)
	}
	if a.RetryOutcome().Attempts != 1 {
		t.Errorf("expected stop to end retrying, got %d attempts", a.RetryOutcome().Attempts)
	}
}

func TestChatAgent_RunningFlagDuringRun(t *testing.T) {
	var a *ChatAgent
	var runningInside bool
	transport := &fakeTransport{
		complete: func(context.Context, *upstream.ChatRequest) (*upstream.ChatCompletion, error) {
			runningInside = a.IsRunning()
			return &upstream.ChatCompletion{Choices: []upstream.Choice{{Message: upstream.Message{Role: "assistant", Content: "x"}}}}, nil
		},
	}
	a = newTestAgent(t, "", 1, WithTransport(transport))

	if a.IsRunning() {
		t.Error("expected not running before run")
	}
	a.Step(context.Background(), "hi")
	if !runningInside {
		t.Error("expected running flag during run")
	}
	if a.IsRunning() {
		t.Error("expected not running after run")
	}
	if last, _ := a.LastMessage(); last != "x" {
		t.Errorf("expected last message x, got %q", last)
	}
}

func TestChatAgent_Reset(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{Abort: true})
	defer mock.Close()

	a := newTestAgent(t, mock.URL(), 2, WithRetryWait(recordWaits(new([]time.Duration))))
	a.Run(context.Background(), "Hello", "sys")
	if a.Result() == nil || a.RetryOutcome().Attempts == 0 {
		t.Fatal("expected state before reset")
	}

	a.Reset()

	if len(a.Messages()) != 0 {
		t.Errorf("expected empty conversation, got %+v", a.Messages())
	}
	if a.Result() != nil {
		t.Errorf("expected nil result, got %+v", a.Result())
	}
	outcome := a.RetryOutcome()
	if outcome.Attempts != 0 || outcome.Success || len(outcome.Errors) != 0 {
		t.Errorf("expected initial outcome, got %+v", outcome)
	}
	if a.Transcript() != "" {
		t.Errorf("expected empty transcript, got %q", a.Transcript())
	}
}

func TestChatAgent_AddMessage(t *testing.T) {
	a := newTestAgent(t, "http://unused", 1)
	if err := a.AddMessage(RoleUser, "earlier"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.AddMessage(Role("bogus"), "x"); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
	if a.Transcript() != "USER: earlier" {
		t.Errorf("unexpected transcript %q", a.Transcript())
	}
}

func TestNewChatAgent_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing model", Config{BaseURL: "http://x", MaxRetries: 1}},
		{"zero retries", Config{BaseURL: "http://x", Model: "m"}},
		{"negative delay", Config{BaseURL: "http://x", Model: "m", MaxRetries: 1, RetryDelay: -time.Second}},
		{"missing base url", Config{Model: "m", MaxRetries: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewChatAgent(tt.cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
