// Package message provides the typed conversation messages decoded from the
// CLI's stream and the outbound user-message envelope.
package message

// Block type constants.
const (
	BlockTypeText       = "text"
	BlockTypeThinking   = "thinking"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"
)

// ContentBlock represents a block of content within a message.
type ContentBlock interface {
	BlockType() string
}

// Compile-time verification that all content block types implement ContentBlock.
var (
	_ ContentBlock = (*TextBlock)(nil)
	_ ContentBlock = (*ThinkingBlock)(nil)
	_ ContentBlock = (*ToolUseBlock)(nil)
	_ ContentBlock = (*ToolResultBlock)(nil)
	_ ContentBlock = (*UnknownBlock)(nil)
)

// TextBlock contains plain text content.
type TextBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// BlockType implements the ContentBlock interface.
func (b *TextBlock) BlockType() string { return BlockTypeText }

// ThinkingBlock contains Claude's thinking process.
type ThinkingBlock struct {
	Type      string `json:"type"`
	Thinking  string `json:"thinking"`
	Signature string `json:"signature"`
}

// BlockType implements the ContentBlock interface.
func (b *ThinkingBlock) BlockType() string { return BlockTypeThinking }

// ToolUseBlock represents Claude using a tool.
type ToolUseBlock struct {
	Type  string         `json:"type"`
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// BlockType implements the ContentBlock interface.
func (b *ToolUseBlock) BlockType() string { return BlockTypeToolUse }

// ToolResultBlock contains the result of a tool execution. String content is
// decoded as a single TextBlock.
//
//nolint:tagliatelle // Claude CLI uses snake_case for JSON fields
type ToolResultBlock struct {
	Type      string         `json:"type"`
	ToolUseID string         `json:"tool_use_id"`
	Content   []ContentBlock `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

// BlockType implements the ContentBlock interface.
func (b *ToolResultBlock) BlockType() string { return BlockTypeToolResult }

// UnknownBlock keeps a block type this package does not model, so newer CLI
// versions do not break decoding.
type UnknownBlock struct {
	Type string
	Raw  map[string]any
}

// BlockType implements the ContentBlock interface.
func (b *UnknownBlock) BlockType() string { return b.Type }
