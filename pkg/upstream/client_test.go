package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shareai/chatrelay/internal/testutil"
)

func newTestClient(baseURL string, timeout time.Duration) *Client {
	return NewClient(Config{Name: "test", BaseURL: baseURL, APIKey: "sk-test", Timeout: timeout})
}

func TestClient_Complete(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{Body: testutil.Completion("Hi there")})
	defer mock.Close()

	client := newTestClient(mock.URL(), 5*time.Second)
	resp, err := client.Complete(context.Background(), &ChatRequest{
		Model:    "gpt-4o-mini",
		Messages: []Message{{Role: "user", Content: "Hello"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg, ok := resp.FirstMessage()
	if !ok {
		t.Fatal("expected a choice in the response")
	}
	if msg.Role != "assistant" || msg.Content != "Hi there" {
		t.Errorf("expected assistant/Hi there, got %s/%s", msg.Role, msg.Content)
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	if reqs[0].Path != CompletionsPath {
		t.Errorf("expected path %s, got %s", CompletionsPath, reqs[0].Path)
	}
	if reqs[0].Authorization != "Bearer sk-test" {
		t.Errorf("expected bearer auth, got %q", reqs[0].Authorization)
	}
	if reqs[0].Body.Stream {
		t.Error("expected stream to be false for a blocking call")
	}
	if reqs[0].Body.Model != "gpt-4o-mini" || len(reqs[0].Body.Messages) != 1 {
		t.Errorf("unexpected request body: %+v", reqs[0].Body)
	}
}

func TestClient_Complete_StatusErrors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantMsg    string
	}{
		{"401 with openai envelope", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, "bad key"},
		{"500 raw body", http.StatusInternalServerError, "boom", "boom"},
		{"503 empty body", http.StatusServiceUnavailable, "", "Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockUpstream(testutil.MockResponse{StatusCode: tt.statusCode, Body: tt.body})
			defer mock.Close()

			_, err := newTestClient(mock.URL(), 5*time.Second).Complete(context.Background(), &ChatRequest{Model: "m"})

			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("expected *StatusError, got %T: %v", err, err)
			}
			if statusErr.StatusCode != tt.statusCode {
				t.Errorf("expected status %d, got %d", tt.statusCode, statusErr.StatusCode)
			}
			if statusErr.Message != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, statusErr.Message)
			}
			if IsTransient(err) {
				t.Error("status errors must not be transient")
			}
		})
	}
}

func TestClient_Complete_MalformedEnvelope(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{Body: "not json"})
	defer mock.Close()

	_, err := newTestClient(mock.URL(), 5*time.Second).Complete(context.Background(), &ChatRequest{Model: "m"})

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if parseErr.RawResponse != "not json" {
		t.Errorf("expected raw response to be kept, got %q", parseErr.RawResponse)
	}
	if IsTransient(err) {
		t.Error("parse errors must not be transient")
	}
}

func TestClient_Complete_Timeout(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{Delay: 500 * time.Millisecond, Body: testutil.Completion("late")})
	defer mock.Close()

	_, err := newTestClient(mock.URL(), 50*time.Millisecond).Complete(context.Background(), &ChatRequest{Model: "m"})

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %T: %v", err, err)
	}
	if !IsTransient(err) {
		t.Error("timeouts must be transient")
	}
}

func TestClient_Complete_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newTestClient(url, time.Second).Complete(context.Background(), &ChatRequest{Model: "m"})

	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected *ConnectionError, got %T: %v", err, err)
	}
	if connErr.Kind != ConnRefused {
		t.Errorf("expected kind %q, got %q", ConnRefused, connErr.Kind)
	}
	if !IsTransient(err) {
		t.Error("refused connections must be transient")
	}
}

func TestClient_Complete_ConnectionDropped(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{Abort: true})
	defer mock.Close()

	_, err := newTestClient(mock.URL(), time.Second).Complete(context.Background(), &ChatRequest{Model: "m"})

	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected *ConnectionError, got %T: %v", err, err)
	}
	if !IsTransient(err) {
		t.Error("dropped connections must be transient")
	}
}

func TestClient_Complete_CallerCancel(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{Delay: time.Second, Body: testutil.Completion("late")})
	defer mock.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := newTestClient(mock.URL(), 5*time.Second).Complete(ctx, &ChatRequest{Model: "m"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the caller's context error, got %T: %v", err, err)
	}
	if IsTransient(err) {
		t.Error("caller cancellation must not be transient")
	}
}

func TestClient_Stream(t *testing.T) {
	frames := []string{
		": keep-alive comment",
		testutil.Frame("He"),
		"data: {not json",
		`data: {"choices":[{"delta":{"role":"assistant"}}]}`,
		testutil.Frame("llo"),
		testutil.DoneFrame,
		testutil.Frame("ignored after done"),
	}
	mock := testutil.NewMockUpstream(testutil.MockResponse{StreamFrames: frames})
	defer mock.Close()

	var got []string
	err := newTestClient(mock.URL(), 5*time.Second).Stream(context.Background(), &ChatRequest{Model: "m"}, func(d string) error {
		got = append(got, d)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(got, "|") != "He|llo" {
		t.Errorf("expected deltas He|llo, got %v", got)
	}
	if !mock.Requests()[0].Body.Stream {
		t.Error("expected stream to be true in the request body")
	}
}

func TestClient_Stream_CallbackError(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{StreamFrames: testutil.Frames("a", "b", "c")})
	defer mock.Close()

	stop := errors.New("stop")
	calls := 0
	err := newTestClient(mock.URL(), 5*time.Second).Stream(context.Background(), &ChatRequest{Model: "m"}, func(string) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 callback, got %d", calls)
	}
}

func TestClient_Stream_Interrupted(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{
		StreamFrames: []string{testutil.Frame("partial")},
		Abort:        true,
	})
	defer mock.Close()

	err := newTestClient(mock.URL(), 5*time.Second).Stream(context.Background(), &ChatRequest{Model: "m"}, func(string) error { return nil })

	var streamErr *StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("expected *StreamError, got %T: %v", err, err)
	}
	if !IsTransient(err) {
		t.Errorf("expected interrupted stream to be transient, got %v", err)
	}
}

func TestClient_Stream_IdleTimeout(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{
		StreamFrames: testutil.Frames("a", "b"),
		FrameDelay:   500 * time.Millisecond,
	})
	defer mock.Close()

	err := newTestClient(mock.URL(), 50*time.Millisecond).Stream(context.Background(), &ChatRequest{Model: "m"}, func(string) error { return nil })

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError in chain, got %T: %v", err, err)
	}
}

func TestClient_Stream_StatusError(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{StatusCode: http.StatusBadRequest, Body: `{"error":{"message":"bad model"}}`})
	defer mock.Close()

	err := newTestClient(mock.URL(), 5*time.Second).Stream(context.Background(), &ChatRequest{Model: "m"}, func(string) error { return nil })

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %T: %v", err, err)
	}
}

func TestClient_Endpoint(t *testing.T) {
	client := NewClient(Config{BaseURL: "https://api.example.com/"})
	if got := client.Endpoint(); got != "https://api.example.com/v1/chat/completions" {
		t.Errorf("unexpected endpoint %q", got)
	}
	if client.Name() != "upstream" {
		t.Errorf("expected default name, got %q", client.Name())
	}
}
