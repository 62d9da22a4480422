package message

// Message represents any message in the conversation.
// Use type assertion or type switch to determine the concrete type.
type Message interface {
	MessageType() string
}

// Compile-time verification that all message types implement Message.
var (
	_ Message = (*UserMessage)(nil)
	_ Message = (*AssistantMessage)(nil)
	_ Message = (*SystemMessage)(nil)
	_ Message = (*ResultMessage)(nil)
	_ Message = (*StreamEvent)(nil)
)

// UserMessage represents a message from the user, including tool results
// the CLI reports back on the user's behalf.
type UserMessage struct {
	// Text is set when the content was a plain string.
	Text            *string
	Content         []ContentBlock
	UUID            *string
	ParentToolUseID *string
	SessionID       string
	ToolUseResult   map[string]any
}

// MessageType implements the Message interface.
func (m *UserMessage) MessageType() string { return "user" }

// AssistantMessage represents a message from Claude.
type AssistantMessage struct {
	Content         []ContentBlock
	Model           string
	ParentToolUseID *string
	SessionID       string
	Error           *AssistantMessageError
}

// MessageType implements the Message interface.
func (m *AssistantMessage) MessageType() string { return "assistant" }

// AssistantMessageError represents error types from the assistant.
type AssistantMessageError string

const (
	// AssistantMessageErrorAuthFailed indicates authentication failure.
	AssistantMessageErrorAuthFailed AssistantMessageError = "authentication_failed"
	// AssistantMessageErrorBilling indicates a billing error.
	AssistantMessageErrorBilling AssistantMessageError = "billing_error"
	// AssistantMessageErrorRateLimit indicates rate limiting.
	AssistantMessageErrorRateLimit AssistantMessageError = "rate_limit"
	// AssistantMessageErrorInvalidReq indicates an invalid request.
	AssistantMessageErrorInvalidReq AssistantMessageError = "invalid_request"
	// AssistantMessageErrorServer indicates a server error.
	AssistantMessageErrorServer AssistantMessageError = "server_error"
	// AssistantMessageErrorUnknown indicates an unknown error.
	AssistantMessageErrorUnknown AssistantMessageError = "unknown"
)

// SystemMessage represents a system message. Data holds every field other
// than type and subtype.
type SystemMessage struct {
	Subtype string
	Data    map[string]any
}

// MessageType implements the Message interface.
func (m *SystemMessage) MessageType() string { return "system" }

// ResultMessage is the terminal message of a turn.
type ResultMessage struct {
	Subtype          string
	DurationMs       int
	DurationAPIMs    int
	IsError          bool
	NumTurns         int
	SessionID        string
	TotalCostUSD     *float64
	Usage            *Usage
	Result           *string
	StructuredOutput any
}

// MessageType implements the Message interface.
func (m *ResultMessage) MessageType() string { return "result" }

// StreamEvent represents a partial-message event from the Claude API.
type StreamEvent struct {
	UUID            string
	SessionID       string
	Event           map[string]any // Raw Anthropic API event
	ParentToolUseID *string
}

// MessageType implements the Message interface.
func (m *StreamEvent) MessageType() string { return "stream_event" }

// Usage contains token usage information.
type Usage struct {
	InputTokens              int
	OutputTokens             int
	CacheCreationInputTokens int
	CacheReadInputTokens     int
}
