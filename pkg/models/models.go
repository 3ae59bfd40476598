package models

import (
	"context"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool" // For tool results
)

// ContentType defines the kind of message content.
type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeToolUse    ContentType = "tool_use"
	ContentTypeToolResult ContentType = "tool_result"
)

// Content represents a single component of a message.
type Content struct {
	Type ContentType `json:"type"`

	// Only one of these will be non-nil
	Text       *TextContent       `json:"text,omitempty"`
	ToolUse    *ToolUseContent    `json:"tool_use,omitempty"`
	ToolResult *ToolResultContent `json:"tool_result,omitempty"`
}

// TextContent contains literal text.
type TextContent struct {
	Content string `json:"content"`
}

// ToolUseContent represents a call to a tool.
type ToolUseContent struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolResultContent represents the outcome of a tool call.
type ToolResultContent struct {
	ToolUseID string `json:"tool_use_id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
}

// AgentMessage represents a message in the agent's context.
type AgentMessage struct {
	// Role indicates the sender of the message (e.g., user, assistant).
	Role Role `json:"role"`
	// Content holds the key content parts of the message.
	Content []Content `json:"content"`
}

// Text builds a single-part text message.
func Text(role Role, text string) AgentMessage {
	return AgentMessage{
		Role:    role,
		Content: []Content{{Type: ContentTypeText, Text: &TextContent{Content: text}}},
	}
}

// ToolResult builds a tool message answering one tool call.
func ToolResult(call ToolUseContent, result string) AgentMessage {
	return AgentMessage{
		Role: RoleTool,
		Content: []Content{{
			Type:       ContentTypeToolResult,
			ToolResult: &ToolResultContent{ToolUseID: call.ID, Name: call.Name, Content: result},
		}},
	}
}

// ToolCalls returns the tool calls requested by the message, in order.
func (m AgentMessage) ToolCalls() []ToolUseContent {
	var calls []ToolUseContent
	for _, c := range m.Content {
		if c.Type == ContentTypeToolUse && c.ToolUse != nil {
			calls = append(calls, *c.ToolUse)
		}
	}
	return calls
}

// PlainText joins the message's text parts with no separator.
func (m AgentMessage) PlainText() string {
	var sb strings.Builder
	for _, c := range m.Content {
		if c.Type == ContentTypeText && c.Text != nil {
			sb.WriteString(c.Text.Content)
		}
	}
	return sb.String()
}

// ToolSpec declares a tool the model may call.
type ToolSpec struct {
	Name        string
	Description string
	// InputSchema is a JSON schema object describing the arguments.
	InputSchema map[string]any
}

// Request is one model invocation.
type Request struct {
	Model       string
	System      string
	Temperature float32
	Tools       []ToolSpec
	Messages    []AgentMessage
}

// ModelProvider represents a service that provides LLMs (e.g. Gemini, OpenAI).
type ModelProvider interface {
	// List returns the names of available models.
	List(ctx context.Context) ([]string, error)

	// Stream sends a request to the LLM and returns a stream of the response.
	Stream(ctx context.Context, req Request) (ModelStream, error)
}

// ModelStream abstracts the stream of responses from the model.
type ModelStream interface {
	// FullMessage blocks until the full message is available.
	FullMessage() (AgentMessage, error)
	Close() error
}

// Complete calls the model and waits for the full response.
func Complete(ctx context.Context, p ModelProvider, req Request) (AgentMessage, error) {
	stream, err := p.Stream(ctx, req)
	if err != nil {
		return AgentMessage{}, err
	}
	defer stream.Close()
	return stream.FullMessage()
}
