package engine

import (
	"context"
	"fmt"
)

// MessageRole identifies the author of a conversation turn.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// ToolCall represents a function/tool the model requested.
type ToolCall struct {
	ID   string         // Provider-specific call ID (e.g. toolu_xxx, call_xxx)
	Name string
	Args map[string]any
}

// ToolResult is the outcome of one executed tool call.
// Results for a single model turn are batched into one tool turn.
type ToolResult struct {
	ID      string // Matches the ToolCall.ID it answers
	Name    string
	Content string
	IsError bool
}

// Turn is one entry of a conversation history: either a model turn
// (assistant content plus any requested tool calls) or a tool-result turn
// carrying the batched results for the preceding model turn.
type Turn struct {
	Role      MessageRole
	Content   string
	ToolCalls []ToolCall   // set on assistant turns
	Results   []ToolResult // set on tool turns
}

// Validate checks that the turn is structurally sound.
func (t Turn) Validate() error {
	switch t.Role {
	case RoleUser, RoleAssistant, RoleTool:
	default:
		return fmt.Errorf("invalid turn role: %s", t.Role)
	}
	if t.Role == RoleTool && len(t.Results) == 0 {
		return fmt.Errorf("tool turns must carry at least one result")
	}
	return nil
}

// Usage holds token accounting returned by providers.
type Usage struct {
	Prompt     int
	Completion int
	Total      int
}

// Add accumulates another usage record.
func (u *Usage) Add(other Usage) {
	u.Prompt += other.Prompt
	u.Completion += other.Completion
	u.Total += other.Total
}

// LLMResponse is the normalized result of one model call.
type LLMResponse struct {
	Content      string
	ToolCalls    []ToolCall // zero or more tool calls requested by the model
	Usage        Usage
	FinishReason string // "stop" | "length" | "tool_calls" | "content_filter"
}

// ToolSchema describes one tool in the form providers expect for
// function calling.
type ToolSchema struct {
	Name        string
	Description string
	JSONSchema  string // raw JSON schema string
}

// ChatOptions carries per-call knobs forwarded to the provider SDK.
type ChatOptions struct {
	Temperature     float32
	MaxOutputTokens int
}

// LLMClient abstracts one credentialed backend client (Anthropic, OpenAI
// compatible, etc.). One client is bound to exactly one credential slot.
type LLMClient interface {
	Chat(ctx context.Context, model string, system string, turns []Turn, tools []ToolSchema, opts ChatOptions) (LLMResponse, error)
}

// Task is a single unit of work handed to an agent loop.
// It is immutable once issued.
type Task struct {
	Instruction string
	Context     map[string]string // structured context, serialized into the first prompt
}
