package types

import (
	"fmt"
	"net/url"
	"time"

	"shareai/chatrelay/pkg/agent"
)

// ChatMessage is one seeded history message.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of the chat endpoints.
type ChatRequest struct {
	// Messages seed the conversation before the prompt.
	Messages []ChatMessage `json:"messages"`

	// Prompt is the new user turn. Optional when Messages is non-empty.
	Prompt string `json:"prompt"`

	// SystemPrompt is added unless the history already has a system message.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Model overrides the configured model.
	Model string `json:"model,omitempty"`

	// Stream selects a streaming upstream call. The /chat/stream and
	// /chat/ws endpoints always stream.
	Stream bool `json:"stream,omitempty"`

	// MaxRetries overrides the configured attempt count.
	MaxRetries *int `json:"max_retries,omitempty"`

	// RetryDelay overrides the configured base backoff, in seconds.
	RetryDelay *float64 `json:"retry_delay,omitempty"`
}

// Limits bounds the per-request retry overrides.
type Limits struct {
	MaxRetries    int
	MaxRetryDelay time.Duration
}

// Validate checks the request against limits.
func (r *ChatRequest) Validate(limits Limits) error {
	if r.Prompt == "" && len(r.Messages) == 0 {
		return &ValidationError{Field: "prompt", Message: "prompt or messages is required"}
	}
	for i, m := range r.Messages {
		if !agent.Role(m.Role).Valid() {
			return &ValidationError{
				Field:   fmt.Sprintf("messages[%d].role", i),
				Message: fmt.Sprintf("role must be one of system, user, assistant, got %q", m.Role),
			}
		}
	}
	if r.MaxRetries != nil {
		if n := *r.MaxRetries; n < 1 || (limits.MaxRetries > 0 && n > limits.MaxRetries) {
			return &ValidationError{
				Field:   "max_retries",
				Message: fmt.Sprintf("max_retries must be between 1 and %d, got %d", limits.MaxRetries, n),
			}
		}
	}
	if r.RetryDelay != nil {
		d := *r.RetryDelay
		if d < 0 || (limits.MaxRetryDelay > 0 && d > limits.MaxRetryDelay.Seconds()) {
			return &ValidationError{
				Field:   "retry_delay",
				Message: fmt.Sprintf("retry_delay must be between 0 and %g seconds, got %g", limits.MaxRetryDelay.Seconds(), d),
			}
		}
	}
	return nil
}

// History converts the seeded messages to agent messages.
func (r *ChatRequest) History() []agent.Message {
	if len(r.Messages) == 0 {
		return nil
	}
	out := make([]agent.Message, len(r.Messages))
	for i, m := range r.Messages {
		out[i] = agent.Message{Role: agent.Role(m.Role), Content: m.Content}
	}
	return out
}

// RetryDelayDuration returns the retry_delay override, or zero when unset.
func (r *ChatRequest) RetryDelayDuration() time.Duration {
	if r.RetryDelay == nil {
		return 0
	}
	return time.Duration(*r.RetryDelay * float64(time.Second))
}

// MaxRetriesValue returns the max_retries override, or zero when unset.
func (r *ChatRequest) MaxRetriesValue() int {
	if r.MaxRetries == nil {
		return 0
	}
	return *r.MaxRetries
}

// AsyncChatRequest is the body of POST /chat/async.
type AsyncChatRequest struct {
	ChatRequest

	// CallbackURL receives the finished task record.
	CallbackURL string `json:"callback_url,omitempty"`
}

// Validate checks the chat request and the callback URL.
func (r *AsyncChatRequest) Validate(limits Limits) error {
	if err := r.ChatRequest.Validate(limits); err != nil {
		return err
	}
	if r.CallbackURL == "" {
		return nil
	}
	u, err := url.Parse(r.CallbackURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "callback_url", Message: "callback_url must be an absolute http(s) URL"}
	}
	return nil
}
