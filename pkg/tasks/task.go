package tasks

import (
	"errors"
	"time"

	"shareai/chatrelay/pkg/agent"
)

var (
	// ErrNotFound is returned when no task has the requested ID.
	ErrNotFound = errors.New("task not found")

	// ErrQueueFull is returned by Submit when every worker is busy and the
	// queue is at capacity.
	ErrQueueFull = errors.New("task queue is full")

	// ErrClosed is returned by Submit after Shutdown.
	ErrClosed = errors.New("task manager is closed")
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Finished reports whether the status is terminal.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Request is the chat input of a task.
type Request struct {
	Messages     []agent.Message `json:"messages,omitempty"`
	Prompt       string          `json:"prompt,omitempty"`
	SystemPrompt string          `json:"system_prompt,omitempty"`
	Model        string          `json:"model,omitempty"`
	Stream       bool            `json:"stream,omitempty"`

	// MaxRetries and RetryDelay override the configured defaults when set.
	MaxRetries int           `json:"max_retries,omitempty"`
	RetryDelay time.Duration `json:"retry_delay,omitempty"`
}

// Task is the stored record of one asynchronous chat request. Its JSON
// form is what GET /chat/tasks/{id} returns and what callbacks receive.
type Task struct {
	ID          string              `json:"task_id"`
	Status      Status              `json:"status"`
	Content     string              `json:"content"`
	Error       string              `json:"error,omitempty"`
	Retry       *agent.RetryOutcome `json:"retry_info,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`

	Request     Request `json:"-"`
	CallbackURL string  `json:"-"`
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Request.Messages != nil {
		c.Request.Messages = append([]agent.Message(nil), t.Request.Messages...)
	}
	if t.Retry != nil {
		r := *t.Retry
		r.Errors = append([]string{}, t.Retry.Errors...)
		c.Retry = &r
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

// complete moves t to its terminal state from the agent result.
func (t *Task) complete(result *agent.Result, outcome agent.RetryOutcome, at time.Time) {
	t.Retry = &outcome
	t.CompletedAt = &at
	if result.Failed() {
		t.Status = StatusFailed
		t.Error = result.Error
		return
	}
	t.Status = StatusCompleted
	t.Content = result.Content()
}

// fail moves t to the failed state without an agent result.
func (t *Task) fail(err error, at time.Time) {
	t.Status = StatusFailed
	t.Error = err.Error()
	t.CompletedAt = &at
}
