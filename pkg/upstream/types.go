package upstream

// Message is one role/content pair on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request body sent to the chat-completions endpoint.
type ChatRequest struct {
	// Model is the upstream model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model"`

	// Messages is the full conversation snapshot, oldest first.
	Messages []Message `json:"messages"`

	// Stream requests incremental server-sent delivery.
	Stream bool `json:"stream,omitempty"`
}

// ChatCompletion is a non-streaming chat-completions response.
// Only the fields the relay consumes are decoded; unknown fields are ignored.
type ChatCompletion struct {
	ID      string   `json:"id,omitempty"`
	Object  string   `json:"object,omitempty"`
	Created int64    `json:"created,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is one completion alternative.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// Usage reports token consumption when the upstream provides it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// FirstMessage returns the message of the first choice.
// The boolean is false when the response carries no choices.
func (c *ChatCompletion) FirstMessage() (Message, bool) {
	if c == nil || len(c.Choices) == 0 {
		return Message{}, false
	}
	return c.Choices[0].Message, true
}

// StreamChunk is one decoded "data:" frame of a streaming response.
type StreamChunk struct {
	ID      string         `json:"id,omitempty"`
	Model   string         `json:"model,omitempty"`
	Choices []StreamChoice `json:"choices"`
}

// StreamChoice is a choice inside a stream frame.
type StreamChoice struct {
	Index        int    `json:"index"`
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Delta is the incremental content carried by a stream frame.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Content returns the delta text of the first choice, or "" when absent.
func (c *StreamChunk) Content() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}
