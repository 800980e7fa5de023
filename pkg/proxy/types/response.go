package types

import (
	"time"

	"shareai/chatrelay/pkg/agent"
)

// Envelope wraps every JSON response.
type Envelope struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data"`
}

// MsgSuccess is the msg of successful responses.
const MsgSuccess = "success"

// Success wraps data in a 200 envelope.
func Success(data interface{}) Envelope {
	return Envelope{Code: 200, Msg: MsgSuccess, Data: data}
}

// ChatResponse is the data of POST /chat/completions.
type ChatResponse struct {
	Content   string             `json:"content"`
	Messages  []ChatMessage      `json:"messages"`
	RetryInfo agent.RetryOutcome `json:"retry_info"`
}

// NewChatResponse builds the response from a finished agent. Content is
// the last message when it came from the assistant.
func NewChatResponse(a agent.Agent) ChatResponse {
	history := a.Messages()
	msgs := make([]ChatMessage, len(history))
	for i, m := range history {
		msgs[i] = ChatMessage{Role: string(m.Role), Content: m.Content}
	}

	var content string
	if n := len(history); n > 0 && history[n-1].Role == agent.RoleAssistant {
		content = history[n-1].Content
	}
	return ChatResponse{Content: content, Messages: msgs, RetryInfo: a.RetryOutcome()}
}

// RetryData is the data of a failed chat response.
type RetryData struct {
	RetryInfo agent.RetryOutcome `json:"retry_info"`
}

// AsyncChatResponse is the data of POST /chat/async.
type AsyncChatResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// TaskResponse is the data of GET /chat/tasks/{taskID}.
type TaskResponse struct {
	TaskID      string              `json:"task_id"`
	Status      string              `json:"status"`
	Content     string              `json:"content"`
	Error       string              `json:"error,omitempty"`
	RetryInfo   *agent.RetryOutcome `json:"retry_info,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

// WSMessage is one server-to-client WebSocket message. It carries the
// relay event fields.
type WSMessage = agent.Event
