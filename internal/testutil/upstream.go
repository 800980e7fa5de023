// Package testutil provides an in-process OpenAI-compatible upstream for
// tests of the transport, the agent and the HTTP handlers.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse is one scripted reply of the mock upstream.
type MockResponse struct {
	// StatusCode defaults to 200.
	StatusCode int

	// Body is written as-is when it is a string or []byte, JSON-encoded otherwise.
	Body interface{}

	// Delay is slept before anything is written.
	Delay time.Duration

	// StreamFrames are written as raw SSE lines followed by a blank line.
	// Use Frame and DoneFrame to build them.
	StreamFrames []string

	// FrameDelay is slept between two stream frames.
	FrameDelay time.Duration

	// Abort closes the connection without a response. With StreamFrames
	// set, the connection is cut after the frames were written.
	Abort bool
}

// RecordedRequest is what the mock upstream saw for one call.
type RecordedRequest struct {
	Path          string
	Authorization string
	Body          ChatBody
}

// ChatBody mirrors the chat-completions request body.
type ChatBody struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Stream bool `json:"stream"`
}

// MockUpstream replays a script of responses: call n receives script[n],
// and once the script is exhausted the last entry repeats.
type MockUpstream struct {
	server *httptest.Server

	mu       sync.Mutex
	script   []MockResponse
	requests []RecordedRequest
}

// NewMockUpstream starts a mock upstream serving the given script.
func NewMockUpstream(script ...MockResponse) *MockUpstream {
	m := &MockUpstream{script: script}
	m.server = httptest.NewServer(http.HandlerFunc(m.handler))
	return m
}

// URL returns the base URL (without /v1).
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts the server down.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// SetScript replaces the remaining script.
func (m *MockUpstream) SetScript(script ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = script
	m.requests = nil
}

// RequestCount returns the number of requests received.
func (m *MockUpstream) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the recorded requests.
func (m *MockUpstream) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockUpstream) handler(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	rec := RecordedRequest{Path: r.URL.Path, Authorization: r.Header.Get("Authorization")}
	_ = json.Unmarshal(raw, &rec.Body)

	m.mu.Lock()
	n := len(m.requests)
	m.requests = append(m.requests, rec)
	var resp MockResponse
	switch {
	case len(m.script) == 0:
		resp = MockResponse{StatusCode: http.StatusNotFound, Body: `{"error":{"message":"no script"}}`}
	case n < len(m.script):
		resp = m.script[n]
	default:
		resp = m.script[len(m.script)-1]
	}
	m.mu.Unlock()

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	if len(resp.StreamFrames) > 0 {
		m.stream(w, r, resp)
		return
	}
	if resp.Abort {
		panic(http.ErrAbortHandler)
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	switch v := resp.Body.(type) {
	case nil:
	case string:
		_, _ = w.Write([]byte(v))
	case []byte:
		_, _ = w.Write(v)
	default:
		_ = json.NewEncoder(w).Encode(v)
	}
}

func (m *MockUpstream) stream(w http.ResponseWriter, r *http.Request, resp MockResponse) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	for i, frame := range resp.StreamFrames {
		if i > 0 && resp.FrameDelay > 0 {
			select {
			case <-time.After(resp.FrameDelay):
			case <-r.Context().Done():
				return
			}
		}
		fmt.Fprintf(w, "%s\n\n", frame)
		if flusher != nil {
			flusher.Flush()
		}
	}
	if resp.Abort {
		panic(http.ErrAbortHandler)
	}
}

// Completion builds a blocking chat-completions body with one assistant choice.
func Completion(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":      "chatcmpl-123",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "gpt-4o-mini",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       map[string]interface{}{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
}

// Frame builds one "data:" line carrying a content delta.
func Frame(delta string) string {
	chunk := map[string]interface{}{
		"id":      "chatcmpl-123",
		"object":  "chat.completion.chunk",
		"choices": []map[string]interface{}{{"index": 0, "delta": map[string]interface{}{"content": delta}}},
	}
	b, _ := json.Marshal(chunk)
	return "data: " + string(b)
}

// DoneFrame is the terminal stream line.
const DoneFrame = "data: [DONE]"

// Frames builds content frames for each delta followed by DoneFrame.
func Frames(deltas ...string) []string {
	out := make([]string, 0, len(deltas)+1)
	for _, d := range deltas {
		out = append(out, Frame(d))
	}
	return append(out, DoneFrame)
}
