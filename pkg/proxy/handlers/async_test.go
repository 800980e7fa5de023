package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shareai/chatrelay/internal/testutil"
	"shareai/chatrelay/pkg/config"
	"shareai/chatrelay/pkg/proxy/types"
	"shareai/chatrelay/pkg/tasks"
)

type stubTasks struct {
	err error
}

func (s stubTasks) Submit(context.Context, tasks.Request, string) (*tasks.Task, error) {
	return nil, s.err
}

func (s stubTasks) Get(context.Context, string) (*tasks.Task, error) {
	return nil, tasks.ErrNotFound
}

func newTestManager(t *testing.T, cfg *config.Config) *tasks.Manager {
	t.Helper()
	factory := NewAgentFactory(func() *config.Config { return cfg }, WithFactoryLogger(quietLogger()))
	m := tasks.NewManager(tasks.NewMemoryStore(), factory.TaskFactory(),
		tasks.WithWorkers(1),
		tasks.WithLogger(quietLogger()),
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m
}

func getTask(t *testing.T, h http.Handler, id string) (int, types.TaskResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/tasks/"+id, nil))

	var task types.TaskResponse
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &task); err != nil {
			t.Fatalf("failed to decode task: %v", err)
		}
	}
	return rec.Code, task
}

func TestAsync_SubmitAndPoll(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.MockResponse{Body: testutil.Completion("later")})
	defer mock.Close()

	cfg := testConfig(mock.URL())
	router := newTestRouter(cfg, newTestManager(t, cfg))

	rec := post(t, router, "/chat/async", `{"prompt":"Hello","model":"gpt-4o"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var accepted types.AsyncChatResponse
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &accepted); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if accepted.TaskID == "" || accepted.Status != string(tasks.StatusProcessing) {
		t.Fatalf("expected processing task with an ID, got %+v", accepted)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		code, task := getTask(t, router, accepted.TaskID)
		if code != http.StatusOK {
			t.Fatalf("expected 200, got %d", code)
		}
		if task.Status == string(tasks.StatusCompleted) {
			if task.Content != "later" {
				t.Errorf("expected content %q, got %q", "later", task.Content)
			}
			if task.CompletedAt == nil {
				t.Error("expected completed_at to be set")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("task did not complete, last status %q", task.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if reqs := mock.Requests(); len(reqs) != 1 || reqs[0].Body.Model != "gpt-4o" {
		t.Errorf("expected one upstream call with the model override, got %+v", reqs)
	}
}

func TestAsync_Errors(t *testing.T) {
	tests := []struct {
		name   string
		svc    TaskService
		body   string
		status int
		msg    string
	}{
		{"invalid callback", stubTasks{}, `{"prompt":"hi","callback_url":"ftp://example.com"}`, http.StatusBadRequest, types.MsgInvalidRequest},
		{"relative callback", stubTasks{}, `{"prompt":"hi","callback_url":"/hook"}`, http.StatusBadRequest, types.MsgInvalidRequest},
		{"queue full", stubTasks{err: tasks.ErrQueueFull}, `{"prompt":"hi"}`, http.StatusServiceUnavailable, types.MsgBusy},
		{"closed", stubTasks{err: tasks.ErrClosed}, `{"prompt":"hi"}`, http.StatusServiceUnavailable, types.MsgBusy},
		{"no task service", nil, `{"prompt":"hi"}`, http.StatusServiceUnavailable, types.MsgBusy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, newTestRouter(testConfig("http://127.0.0.1:1"), tt.svc), "/chat/async", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if env := decodeEnvelope(t, rec); env.Msg != tt.msg {
				t.Errorf("expected msg %q, got %q", tt.msg, env.Msg)
			}
		})
	}
}

func TestTask_NotFound(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	router := newTestRouter(cfg, newTestManager(t, cfg))

	code, _ := getTask(t, router, "does-not-exist")
	if code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}
