package model

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one turn of a conversation as exchanged with the model.
// Content is nil for assistant turns that only carry tool calls.
type Message struct {
	Role       Role              `json:"role"`
	Content    *string           `json:"content,omitempty"`
	ToolCalls  []ToolCallRequest `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	AuthorName string            `json:"name,omitempty"`
}

// Text returns the message content, or "" when the message has none.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// HasToolCalls reports whether the model asked for at least one tool.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// Clone returns a copy that shares no mutable state with m.
func (m Message) Clone() Message {
	out := m
	if m.Content != nil {
		c := *m.Content
		out.Content = &c
	}
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCallRequest, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			out.ToolCalls[i] = tc.Clone()
		}
	}
	return out
}

// ToolCallRequest is a model-issued request to invoke a catalog tool.
// It is opaque until the name is matched against the tool catalog.
type ToolCallRequest struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Clone copies the top-level argument map.
func (tc ToolCallRequest) Clone() ToolCallRequest {
	out := tc
	if tc.Arguments != nil {
		out.Arguments = make(map[string]any, len(tc.Arguments))
		for k, v := range tc.Arguments {
			out.Arguments[k] = v
		}
	}
	return out
}

// TextMessage builds a message with plain text content.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Content: &text}
}

// CloneMessages deep-copies a message slice.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
