package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"shareai/chatrelay/internal/testutil"
	"shareai/chatrelay/pkg/agent"
	"shareai/chatrelay/pkg/config"
)

func dialChat(t *testing.T, ctx context.Context, srv *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws"
	return websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
}

// readEvents reads relay events until the server closes the connection.
func readEvents(t *testing.T, ctx context.Context, conn *websocket.Conn) ([]agent.Event, websocket.StatusCode) {
	t.Helper()
	var events []agent.Event
	for {
		var ev agent.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			return events, websocket.CloseStatus(err)
		}
		events = append(events, ev)
	}
}

func TestWebSocket_Stream(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{StreamFrames: testutil.Frames("Hel", "lo")})
	defer mock.Close()

	srv := httptest.NewServer(newTestRouter(testConfig(mock.URL()), nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := dialChat(t, ctx, srv, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.CloseNow()

	if err := wsjson.Write(ctx, conn, map[string]string{"prompt": "Hello"}); err != nil {
		t.Fatalf("failed to send request: %v", err)
	}

	events, status := readEvents(t, ctx, conn)
	if status != websocket.StatusNormalClosure {
		t.Errorf("expected normal closure, got %v", status)
	}

	want := []agent.EventType{agent.EventChunk, agent.EventChunk, agent.EventDone, agent.EventMeta}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), events)
	}
	for i, typ := range want {
		if events[i].Type != typ {
			t.Errorf("event %d: expected %s, got %s", i, typ, events[i].Type)
		}
	}
	if events[0].Data+events[1].Data != "Hello" {
		t.Errorf("expected chunks to spell Hello, got %q and %q", events[0].Data, events[1].Data)
	}
	if events[2].Data != agent.DoneMarker {
		t.Errorf("expected done marker, got %q", events[2].Data)
	}
	if events[3].Retry == nil || events[3].Retry.Attempts != 1 {
		t.Errorf("expected retry info on meta event, got %+v", events[3].Retry)
	}
}

func TestWebSocket_UpstreamFailure(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{StatusCode: http.StatusUnauthorized, Body: `{"error":"bad key"}`})
	defer mock.Close()

	srv := httptest.NewServer(newTestRouter(testConfig(mock.URL()), nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := dialChat(t, ctx, srv, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.CloseNow()

	_ = wsjson.Write(ctx, conn, map[string]string{"prompt": "Hello"})

	events, status := readEvents(t, ctx, conn)
	if status != websocket.StatusNormalClosure {
		t.Errorf("expected normal closure, got %v", status)
	}
	if len(events) != 1 || events[0].Type != agent.EventError || events[0].Error == "" {
		t.Errorf("expected a single error event, got %+v", events)
	}
}

func TestWebSocket_InvalidRequest(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(testConfig("http://127.0.0.1:1"), nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := dialChat(t, ctx, srv, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.CloseNow()

	_ = wsjson.Write(ctx, conn, map[string]interface{}{"messages": []map[string]string{{"role": "tool", "content": "x"}}})

	events, status := readEvents(t, ctx, conn)
	if status != websocket.StatusPolicyViolation {
		t.Errorf("expected policy violation close, got %v", status)
	}
	if len(events) != 1 || events[0].Type != agent.EventError {
		t.Errorf("expected a single error event, got %+v", events)
	}
}

func TestWebSocket_OriginRejected(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Server.CORS.AllowedOrigins = []string{"https://app.example.com"}

	srv := httptest.NewServer(newTestRouter(cfg, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	conn, resp, err := dialChat(t, ctx, srv, header)
	if err == nil {
		conn.CloseNow()
		t.Fatal("expected dial to fail for a foreign origin")
	}
	if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}
}

func TestCheckOrigin(t *testing.T) {
	cors := config.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}}
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://app.example.com", true},
		{"https://other.example.com", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/chat/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := checkOrigin(r, cors); got != tt.want {
			t.Errorf("checkOrigin(%q): expected %v, got %v", tt.origin, tt.want, got)
		}
	}
	if !checkOrigin(httptest.NewRequest(http.MethodGet, "/", nil), config.CORSConfig{AllowedOrigins: []string{"*"}}) {
		t.Error("expected wildcard to allow everything")
	}
}
