package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"shareai/chatrelay/internal/testutil"
	"shareai/chatrelay/pkg/agent"
	"shareai/chatrelay/pkg/config"
)

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(baseURL string) *config.Config {
	cfg := config.Default()
	cfg.Upstream.BaseURL = baseURL
	cfg.Upstream.APIKey = "sk-test"
	cfg.Upstream.Timeout = 2 * time.Second
	cfg.Agent.MaxRetries = 2
	cfg.Agent.RetryDelay = 10 * time.Millisecond
	return cfg
}

// newTestRouter wires the handlers the way the server does.
func newTestRouter(cfg *config.Config, taskSvc TaskService) http.Handler {
	current := func() *config.Config { return cfg }
	factory := NewAgentFactory(current, WithFactoryLogger(quietLogger()))
	chat := NewChatHandler(factory, taskSvc, current, quietLogger())

	r := chi.NewRouter()
	r.Post("/chat/completions", chat.Completions)
	r.Post("/chat/stream", chat.Stream)
	r.Post("/chat/async", chat.Async)
	r.Get("/chat/tasks/{"+TaskIDParam+"}", chat.Task)
	r.Handle("/chat/ws", NewWebSocketHandler(factory, current, quietLogger()))
	return r
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode envelope %q: %v", rec.Body.String(), err)
	}
	if env.Code != rec.Code {
		t.Errorf("expected envelope code %d to match status, got %d", rec.Code, env.Code)
	}
	return env
}

func TestCompletions_Success(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{Body: testutil.Completion("Hi there")})
	defer mock.Close()

	rec := post(t, newTestRouter(testConfig(mock.URL()), nil), "/chat/completions",
		`{"prompt":"Hello","system_prompt":"Be brief"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	if env.Msg != "success" {
		t.Errorf("expected msg success, got %q", env.Msg)
	}
	var data struct {
		Content   string             `json:"content"`
		Messages  []agent.Message    `json:"messages"`
		RetryInfo agent.RetryOutcome `json:"retry_info"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if data.Content != "Hi there" {
		t.Errorf("expected content %q, got %q", "Hi there", data.Content)
	}
	if len(data.Messages) != 3 || data.Messages[2].Role != agent.RoleAssistant {
		t.Errorf("expected system, user and assistant messages, got %+v", data.Messages)
	}
	if data.RetryInfo.Attempts != 1 || !data.RetryInfo.Success {
		t.Errorf("expected one successful attempt, got %+v", data.RetryInfo)
	}
}

func TestCompletions_HistoryAndOverrides(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{Body: testutil.Completion("Fine")})
	defer mock.Close()

	rec := post(t, newTestRouter(testConfig(mock.URL()), nil), "/chat/completions", `{
		"messages": [{"role":"user","content":"Hi"},{"role":"assistant","content":"Hello!"}],
		"prompt": "How are you?",
		"model": "gpt-4o",
		"max_retries": 1
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 upstream request, got %d", len(reqs))
	}
	if reqs[0].Body.Model != "gpt-4o" {
		t.Errorf("expected model override, got %q", reqs[0].Body.Model)
	}
	if len(reqs[0].Body.Messages) != 3 {
		t.Errorf("expected seeded history plus prompt, got %d messages", len(reqs[0].Body.Messages))
	}
	if reqs[0].Authorization != "Bearer sk-test" {
		t.Errorf("expected bearer auth, got %q", reqs[0].Authorization)
	}
}

func TestCompletions_InvalidRequests(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"empty object", `{}`, "prompt"},
		{"malformed json", `{"prompt":`, ""},
		{"empty body", ``, ""},
		{"unknown role", `{"messages":[{"role":"tool","content":"x"}]}`, "messages[0].role"},
		{"too many retries", `{"prompt":"hi","max_retries":11}`, "max_retries"},
		{"zero retries", `{"prompt":"hi","max_retries":0}`, "max_retries"},
		{"negative delay", `{"prompt":"hi","retry_delay":-1}`, "retry_delay"},
		{"delay above limit", `{"prompt":"hi","retry_delay":61}`, "retry_delay"},
	}

	mock := testutil.NewMockUpstream(testutil.MockResponse{Body: testutil.Completion("unused")})
	defer mock.Close()
	router := newTestRouter(testConfig(mock.URL()), nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, router, "/chat/completions", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			env := decodeEnvelope(t, rec)
			var data struct {
				Error string `json:"error"`
				Field string `json:"field"`
			}
			_ = json.Unmarshal(env.Data, &data)
			if data.Error == "" {
				t.Error("expected an error message")
			}
			if tt.field != "" && data.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, data.Field)
			}
		})
	}

	if mock.RequestCount() != 0 {
		t.Errorf("expected no upstream calls for invalid requests, got %d", mock.RequestCount())
	}
}

func TestCompletions_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name     string
		response testutil.MockResponse
		status   int
		attempts int
	}{
		{
			name:     "status error is not retried",
			response: testutil.MockResponse{StatusCode: http.StatusInternalServerError, Body: `{"error":"boom"}`},
			status:   http.StatusBadGateway,
			attempts: 1,
		},
		{
			name:     "dropped connection exhausts retries",
			response: testutil.MockResponse{Abort: true},
			status:   http.StatusServiceUnavailable,
			attempts: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockUpstream(tt.response)
			defer mock.Close()

			rec := post(t, newTestRouter(testConfig(mock.URL()), nil), "/chat/completions", `{"prompt":"Hello"}`)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}

			env := decodeEnvelope(t, rec)
			var data struct {
				RetryInfo agent.RetryOutcome `json:"retry_info"`
			}
			if err := json.Unmarshal(env.Data, &data); err != nil {
				t.Fatalf("failed to decode data: %v", err)
			}
			if data.RetryInfo.Success {
				t.Error("expected failed retry outcome")
			}
			if data.RetryInfo.Attempts != tt.attempts {
				t.Errorf("expected %d attempts, got %d", tt.attempts, data.RetryInfo.Attempts)
			}
			if mock.RequestCount() != tt.attempts {
				t.Errorf("expected %d upstream calls, got %d", tt.attempts, mock.RequestCount())
			}
		})
	}
}

func TestCompletions_StreamFlag(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{StreamFrames: testutil.Frames("Hel", "lo")})
	defer mock.Close()

	rec := post(t, newTestRouter(testConfig(mock.URL()), nil), "/chat/completions", `{"prompt":"Hi","stream":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var data struct {
		Content string `json:"content"`
	}
	_ = json.Unmarshal(decodeEnvelope(t, rec).Data, &data)
	if data.Content != "Hello" {
		t.Errorf("expected accumulated content, got %q", data.Content)
	}
	if reqs := mock.Requests(); len(reqs) != 1 || !reqs[0].Body.Stream {
		t.Error("expected one streaming upstream request")
	}
}

// sseEvents splits an SSE body into its events.
func sseEvents(body string) []string {
	var out []string
	for _, ev := range strings.Split(body, "\n\n") {
		if ev != "" {
			out = append(out, ev)
		}
	}
	return out
}

func TestStream_Success(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{StreamFrames: testutil.Frames("Hel", "lo", "a\nb")})
	defer mock.Close()

	rec := post(t, newTestRouter(testConfig(mock.URL()), nil), "/chat/stream", `{"prompt":"Hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected event stream, got %q", ct)
	}

	events := sseEvents(rec.Body.String())
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d: %q", len(events), events)
	}
	want := []string{"data: Hel", "data: lo", "data: a\ndata: b", "data: [DONE]"}
	for i, w := range want {
		if events[i] != w {
			t.Errorf("event %d: expected %q, got %q", i, w, events[i])
		}
	}

	var meta struct {
		RetryInfo agent.RetryOutcome `json:"retry_info"`
	}
	if err := json.Unmarshal([]byte(strings.TrimPrefix(events[4], "data: ")), &meta); err != nil {
		t.Fatalf("failed to decode meta event: %v", err)
	}
	if meta.RetryInfo.Attempts != 1 || !meta.RetryInfo.Success {
		t.Errorf("expected one successful attempt, got %+v", meta.RetryInfo)
	}
}

func TestStream_Failure(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{StatusCode: http.StatusBadRequest, Body: `{"error":"bad model"}`})
	defer mock.Close()

	rec := post(t, newTestRouter(testConfig(mock.URL()), nil), "/chat/stream", `{"prompt":"Hello"}`)

	events := sseEvents(rec.Body.String())
	if len(events) != 1 {
		t.Fatalf("expected a single error event, got %q", events)
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(strings.TrimPrefix(events[0], "data: ")), &payload); err != nil {
		t.Fatalf("failed to decode error event: %v", err)
	}
	if payload.Error == "" {
		t.Error("expected error text")
	}
}

func TestStream_InvalidRequest(t *testing.T) {
	rec := post(t, newTestRouter(testConfig("http://127.0.0.1:1"), nil), "/chat/stream", `{"model":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 before streaming starts, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON error body, got %q", ct)
	}
}
