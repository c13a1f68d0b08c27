// Package completion defines the contract the pipeline requires from a
// language-model backend and ships one OpenAI-compatible implementation.
package completion

import (
	"context"
	"encoding/json"
)

// Message is one entry of the model input.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // set on assistant messages that requested tools
	ToolCallID string     // set on tool-role result messages
}

// ToolCall is a model-requested invocation of a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolSchema describes one catalog entry offered to the model.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema
}

// Request is a single completion call.
type Request struct {
	Messages []Message
	Tools    []ToolSchema
}

// Result is either final text, tool-call requests, or both (text alongside
// calls is kept as best-effort output for the iteration cap).
type Result struct {
	Text      string
	ToolCalls []ToolCall
}

// Provider produces completions for a fixed model.
type Provider interface {
	Complete(ctx context.Context, req *Request) (*Result, error)
}
