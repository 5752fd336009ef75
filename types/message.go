package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role represents the role of a message participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall represents a tool invocation request from the LLM.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ContentPart is one segment of a structured message body. Parts without
// text (images, tool references) leave Text nil.
type ContentPart struct {
	Type string  `json:"type"`
	Text *string `json:"text,omitempty"`
}

// TextPart builds a text content part.
func TextPart(s string) ContentPart {
	return ContentPart{Type: "text", Text: &s}
}

// Message represents a conversation message. A message carries either plain
// Content or a list of Parts.
type Message struct {
	Role       Role          `json:"role"`
	Content    string        `json:"content,omitempty"`
	Parts      []ContentPart `json:"parts,omitempty"`
	Name       string        `json:"name,omitempty"`
	ToolCalls  []ToolCall    `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolMessage creates a new tool result message.
func NewToolMessage(toolCallID, name, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		Name:       name,
		ToolCallID: toolCallID,
	}
}

// WithToolCalls adds tool calls to the message.
func (m Message) WithToolCalls(calls []ToolCall) Message {
	m.ToolCalls = calls
	return m
}

// String renders the message for logs and as a last-resort text form.
func (m Message) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: ", m.Role)
	if len(m.Parts) == 0 {
		b.WriteString(m.Content)
		return b.String()
	}
	data, err := json.Marshal(m.Parts)
	if err != nil {
		b.WriteString(fmt.Sprint(len(m.Parts), " parts"))
		return b.String()
	}
	b.Write(data)
	return b.String()
}
