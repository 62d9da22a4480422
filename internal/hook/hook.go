package hook

import (
	"context"
	"slices"

	"github.com/wagiedev/claudewire/internal/wire"
)

// Event represents the type of event that triggers a hook.
type Event string

const (
	// EventPreToolUse is triggered before a tool is used.
	EventPreToolUse Event = "PreToolUse"
	// EventPostToolUse is triggered after a tool is used.
	EventPostToolUse Event = "PostToolUse"
	// EventPostToolUseFailure is triggered after a tool use fails.
	EventPostToolUseFailure Event = "PostToolUseFailure"
	// EventUserPromptSubmit is triggered when a user submits a prompt.
	EventUserPromptSubmit Event = "UserPromptSubmit"
	// EventStop is triggered when a session stops.
	EventStop Event = "Stop"
	// EventSubagentStart is triggered when a subagent starts.
	EventSubagentStart Event = "SubagentStart"
	// EventSubagentStop is triggered when a subagent stops.
	EventSubagentStop Event = "SubagentStop"
	// EventPreCompact is triggered before compaction.
	EventPreCompact Event = "PreCompact"
	// EventNotification is triggered when a notification is sent.
	EventNotification Event = "Notification"
	// EventPermissionRequest is triggered when a permission is requested.
	EventPermissionRequest Event = "PermissionRequest"
)

// Input is the decoded payload of a hook invocation.
//
// Common fields are lifted out; event-specific fields remain reachable
// through Field, which accepts either naming convention.
type Input struct {
	EventName      Event
	SessionID      string
	TranscriptPath string
	Cwd            string
	PermissionMode string

	// Tool events only.
	ToolName     string
	ToolInput    map[string]any
	ToolUseID    string
	ToolResponse any

	// Raw is the payload as received.
	Raw map[string]any
}

// ParseInput decodes a hook payload sent by the CLI.
func ParseInput(raw map[string]any) *Input {
	if raw == nil {
		raw = map[string]any{}
	}

	toolResponse, _ := wire.Lookup(raw, "tool_response")

	return &Input{
		EventName:      Event(wire.String(raw, "hook_event_name")),
		SessionID:      wire.String(raw, "session_id"),
		TranscriptPath: wire.String(raw, "transcript_path"),
		Cwd:            wire.String(raw, "cwd"),
		PermissionMode: wire.String(raw, "permission_mode"),
		ToolName:       wire.String(raw, "tool_name"),
		ToolInput:      wire.Map(raw, "tool_input"),
		ToolUseID:      wire.String(raw, "tool_use_id"),
		ToolResponse:   toolResponse,
		Raw:            raw,
	}
}

// Field returns an event-specific field by its snake_case name.
func (in *Input) Field(key string) (any, bool) {
	return wire.Lookup(in.Raw, key)
}

// Output is what a hook callback returns. A nil *Output continues normally.
type Output struct {
	// Continue defaults to true when nil.
	Continue       *bool
	SuppressOutput *bool
	StopReason     *string
	Decision       *string // "block"
	SystemMessage  *string
	Reason         *string

	// Async defers the hook result; AsyncTimeout is in milliseconds.
	Async        bool
	AsyncTimeout *int

	// SpecificOutput is the event-specific nested object. Keys may be written
	// in snake_case; they are sent to the CLI in camelCase.
	SpecificOutput map[string]any
}

// Wire converts the output into the field names the CLI expects.
func (o *Output) Wire() map[string]any {
	if o == nil {
		return map[string]any{"continue": true}
	}

	if o.Async {
		result := map[string]any{"async": true}
		if o.AsyncTimeout != nil {
			result["asyncTimeout"] = *o.AsyncTimeout
		}

		return result
	}

	result := make(map[string]any, 8)
	result["continue"] = o.Continue == nil || *o.Continue

	setString := func(key string, v *string) {
		if v != nil {
			result[key] = *v
		}
	}

	if o.SuppressOutput != nil {
		result["suppressOutput"] = *o.SuppressOutput
	}

	setString("stopReason", o.StopReason)
	setString("decision", o.Decision)
	setString("systemMessage", o.SystemMessage)
	setString("reason", o.Reason)

	if o.SpecificOutput != nil {
		result["hookSpecificOutput"] = wire.CamelKeys(o.SpecificOutput)
	}

	return result
}

// Context accompanies every hook invocation.
type Context struct {
	// ToolUseID is the tool use the hook fired for, if any.
	ToolUseID string
}

// Callback is the function signature for hook callbacks.
type Callback func(ctx context.Context, input *Input, hookCtx *Context) (*Output, error)

// Matcher configures which tools/events a hook applies to.
type Matcher struct {
	// Matcher is a tool name like "Bash" or a pipe-separated combination like "Write|Edit".
	// When nil, the hook matches all tools/events.
	Matcher *string
	Hooks   []Callback
	Timeout *float64 // seconds
}

// Events returns the events of table in sorted order.
func Events(table map[Event][]*Matcher) []Event {
	events := make([]Event, 0, len(table))
	for event := range table {
		events = append(events, event)
	}

	slices.Sort(events)

	return events
}
