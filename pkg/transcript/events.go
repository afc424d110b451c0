// Package transcript locates Claude Code session files and parses their
// line-delimited records into typed events, and renders event sequences
// into bounded text transcripts for analysis.
package transcript

import (
	"encoding/json"
	"time"
)

// Event is one logged turn of a session.
type Event struct {
	Type      string   `json:"type"`
	Timestamp string   `json:"timestamp,omitempty"`
	Message   *Message `json:"message,omitempty"`
}

// Message holds the role-specific payload of an event. Content is either
// a plain string or an array of blocks, so it stays raw until a caller
// asks for one shape or the other.
type Message struct {
	Role    string          `json:"role,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
	Usage   *Usage          `json:"usage,omitempty"`
}

// Usage carries per-turn token counters.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Block is one element of array-form message content.
type Block struct {
	Type    string          `json:"type"`
	Text    string          `json:"text,omitempty"`
	Name    string          `json:"name,omitempty"`
	Input   json.RawMessage `json:"input,omitempty"`
	IsError bool            `json:"is_error,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// ToolInput is the subset of tool invocation arguments the pipeline
// inspects.
type ToolInput struct {
	FilePath  string `json:"file_path,omitempty"`
	Content   string `json:"content,omitempty"`
	OldString string `json:"old_string,omitempty"`
	NewString string `json:"new_string,omitempty"`
	Command   string `json:"command,omitempty"`
}

// Time parses the event timestamp. Returns false when the timestamp is
// missing or malformed.
func (e *Event) Time() (time.Time, bool) {
	if e.Timestamp == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// TextContent returns string-form content, if that is what this message
// carries.
func (m *Message) TextContent() (string, bool) {
	if m == nil || len(m.Content) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err != nil {
		return "", false
	}
	return s, true
}

// Blocks returns array-form content, or nil for string-form or malformed
// content.
func (m *Message) Blocks() []Block {
	if m == nil || len(m.Content) == 0 {
		return nil
	}
	var blocks []Block
	if err := json.Unmarshal(m.Content, &blocks); err != nil {
		return nil
	}
	return blocks
}

// ToolInput decodes the invocation arguments of a tool_use block. Missing
// or malformed input yields the zero value.
func (b *Block) ToolInput() ToolInput {
	var in ToolInput
	if len(b.Input) > 0 {
		_ = json.Unmarshal(b.Input, &in)
	}
	return in
}

// ResultText returns the string-form content of a tool_result block.
// Error classification only inspects plain-text results, so array-form
// content reports false.
func (b *Block) ResultText() (string, bool) {
	if len(b.Content) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(b.Content, &s); err != nil {
		return "", false
	}
	return s, true
}
