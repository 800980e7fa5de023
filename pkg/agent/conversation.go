package agent

import (
	"fmt"
	"strings"
)

// Role is the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is one entry of a conversation. Messages are values; the
// conversation never edits one after it is appended.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is an append-only, ordered message history holding at most
// one system message. It is not safe for concurrent use.
type Conversation struct {
	messages []Message
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Append adds a message at the tail.
func (c *Conversation) Append(role Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if role == RoleSystem && c.HasSystem() {
		return ErrDuplicateSystem
	}
	c.messages = append(c.messages, Message{Role: role, Content: content})
	return nil
}

// HasSystem reports whether a system message is present.
func (c *Conversation) HasSystem() bool {
	for _, m := range c.messages {
		if m.Role == RoleSystem {
			return true
		}
	}
	return false
}

// Last returns the content of the most recent message. The boolean is
// false when the conversation is empty.
func (c *Conversation) Last() (string, bool) {
	if len(c.messages) == 0 {
		return "", false
	}
	return c.messages[len(c.messages)-1].Content, true
}

// Filter returns the messages with the given role in their original order.
func (c *Conversation) Filter(role Role) []Message {
	var out []Message
	for _, m := range c.messages {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

// Render returns the transcript as newline-joined "ROLE: content" lines.
func (c *Conversation) Render() string {
	lines := make([]string, len(c.messages))
	for i, m := range c.messages {
		lines[i] = strings.ToUpper(string(m.Role)) + ": " + m.Content
	}
	return strings.Join(lines, "\n")
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Clear empties the conversation.
func (c *Conversation) Clear() {
	c.messages = nil
}
