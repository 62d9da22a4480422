package claudewire

import (
	"github.com/wagiedev/claudewire/internal/abort"
	"github.com/wagiedev/claudewire/internal/config"
	"github.com/wagiedev/claudewire/internal/hook"
	"github.com/wagiedev/claudewire/internal/mcp"
	"github.com/wagiedev/claudewire/internal/message"
	"github.com/wagiedev/claudewire/internal/permission"
	"github.com/wagiedev/claudewire/internal/protocol"
)

// Re-export types from internal packages

// ===== Options and Configuration =====

// Options configures the CLI process and the control protocol around it.
// Build it with the With* functional options.
type Options = config.Options

// SettingSource represents where settings should be loaded from.
type SettingSource = config.SettingSource

const (
	// SettingSourceUser loads from user-level settings.
	SettingSourceUser = config.SettingSourceUser
	// SettingSourceProject loads from project-level settings.
	SettingSourceProject = config.SettingSourceProject
	// SettingSourceLocal loads from local-level settings.
	SettingSourceLocal = config.SettingSourceLocal
)

// AgentDefinition defines a custom agent configuration.
type AgentDefinition = config.AgentDefinition

// SystemPromptPreset defines a system prompt preset configuration.
type SystemPromptPreset = config.SystemPromptPreset

// ===== Cancellation =====

// AbortSignal is a one-way cancellation flag shared by every component of a
// session. The first Abort reason wins; callbacks fire once.
type AbortSignal = abort.Signal

// NewAbortSignal creates a signal that has not been aborted.
func NewAbortSignal() *AbortSignal {
	return abort.New()
}

// ===== Messages =====

// Message represents any message in the conversation.
type Message = message.Message

// UserMessage represents a message from the user.
type UserMessage = message.UserMessage

// AssistantMessage represents a message from Claude.
type AssistantMessage = message.AssistantMessage

// AssistantMessageError represents error types from the assistant.
type AssistantMessageError = message.AssistantMessageError

const (
	// AssistantMessageErrorAuthFailed indicates authentication failure.
	AssistantMessageErrorAuthFailed = message.AssistantMessageErrorAuthFailed
	// AssistantMessageErrorBilling indicates a billing error.
	AssistantMessageErrorBilling = message.AssistantMessageErrorBilling
	// AssistantMessageErrorRateLimit indicates rate limiting.
	AssistantMessageErrorRateLimit = message.AssistantMessageErrorRateLimit
	// AssistantMessageErrorInvalidReq indicates an invalid request.
	AssistantMessageErrorInvalidReq = message.AssistantMessageErrorInvalidReq
	// AssistantMessageErrorServer indicates a server error.
	AssistantMessageErrorServer = message.AssistantMessageErrorServer
	// AssistantMessageErrorUnknown indicates an unknown error.
	AssistantMessageErrorUnknown = message.AssistantMessageErrorUnknown
)

// SystemMessage represents a system message.
type SystemMessage = message.SystemMessage

// ResultMessage represents the final result of a turn.
type ResultMessage = message.ResultMessage

// StreamEvent represents a streaming event from the Claude API.
type StreamEvent = message.StreamEvent

// Usage contains token usage information.
type Usage = message.Usage

// UserInput is one outbound user turn. See StreamInput for the other
// accepted item shapes.
type UserInput = message.UserInput

// ===== Content Blocks =====

// ContentBlock represents a block of content within a message.
type ContentBlock = message.ContentBlock

// TextBlock contains plain text content.
type TextBlock = message.TextBlock

// ThinkingBlock contains Claude's thinking process.
type ThinkingBlock = message.ThinkingBlock

// ToolUseBlock represents Claude using a tool.
type ToolUseBlock = message.ToolUseBlock

// ToolResultBlock contains the result of a tool execution.
type ToolResultBlock = message.ToolResultBlock

// UnknownBlock holds a content block type this version does not model.
type UnknownBlock = message.UnknownBlock

// ===== Hooks =====

// HookEvent represents the type of event that triggers a hook.
type HookEvent = hook.Event

const (
	// HookEventPreToolUse is triggered before a tool is used.
	HookEventPreToolUse = hook.EventPreToolUse
	// HookEventPostToolUse is triggered after a tool is used.
	HookEventPostToolUse = hook.EventPostToolUse
	// HookEventPostToolUseFailure is triggered after a tool use fails.
	HookEventPostToolUseFailure = hook.EventPostToolUseFailure
	// HookEventUserPromptSubmit is triggered when a user submits a prompt.
	HookEventUserPromptSubmit = hook.EventUserPromptSubmit
	// HookEventStop is triggered when a session stops.
	HookEventStop = hook.EventStop
	// HookEventSubagentStart is triggered when a subagent starts.
	HookEventSubagentStart = hook.EventSubagentStart
	// HookEventSubagentStop is triggered when a subagent stops.
	HookEventSubagentStop = hook.EventSubagentStop
	// HookEventPreCompact is triggered before compaction.
	HookEventPreCompact = hook.EventPreCompact
	// HookEventNotification is triggered when a notification is sent.
	HookEventNotification = hook.EventNotification
	// HookEventPermissionRequest is triggered when a permission is requested.
	HookEventPermissionRequest = hook.EventPermissionRequest
)

// HookInput is the decoded payload of a hook invocation.
type HookInput = hook.Input

// HookOutput is what a hook callback returns. A nil output continues normally.
type HookOutput = hook.Output

// HookContext accompanies every hook invocation.
type HookContext = hook.Context

// HookCallback is the function signature for hook callbacks.
type HookCallback = hook.Callback

// HookMatcher configures which tools/events a hook applies to.
type HookMatcher = hook.Matcher

// ===== Permissions =====

// PermissionMode represents different permission handling modes.
type PermissionMode = permission.Mode

const (
	// PermissionModeDefault uses standard permission prompts.
	PermissionModeDefault = permission.ModeDefault
	// PermissionModeAcceptEdits automatically accepts file edits.
	PermissionModeAcceptEdits = permission.ModeAcceptEdits
	// PermissionModePlan enables plan mode for implementation planning.
	PermissionModePlan = permission.ModePlan
	// PermissionModeBypassPermissions bypasses all permission checks.
	PermissionModeBypassPermissions = permission.ModeBypassPermissions
)

// PermissionUpdate is a permission change suggested by the CLI or applied by a callback.
type PermissionUpdate = permission.Update

// PermissionUpdateType represents the type of permission update.
type PermissionUpdateType = permission.UpdateType

// PermissionRuleValue represents a permission rule.
type PermissionRuleValue = permission.RuleValue

// PermissionBehavior represents the permission behavior for a rule.
type PermissionBehavior = permission.Behavior

// ToolPermissionContext provides context for tool permission callbacks.
type ToolPermissionContext = permission.Context

// PermissionResult is a permission decision: *PermissionResultAllow or *PermissionResultDeny.
type PermissionResult = permission.Result

// PermissionResultAllow allows the tool call, optionally rewriting its input.
type PermissionResultAllow = permission.ResultAllow

// PermissionResultDeny denies the tool call.
type PermissionResultDeny = permission.ResultDeny

// ToolPermissionCallback is called before each tool use.
type ToolPermissionCallback = permission.Callback

// ===== MCP =====

// MCPServerConfig is the interface for MCP server configurations.
type MCPServerConfig = mcp.ServerConfig

// MCPServerType represents the type of MCP server.
type MCPServerType = mcp.ServerType

const (
	// MCPServerTypeStdio uses stdio for communication.
	MCPServerTypeStdio = mcp.ServerTypeStdio
	// MCPServerTypeSSE uses Server-Sent Events.
	MCPServerTypeSSE = mcp.ServerTypeSSE
	// MCPServerTypeHTTP uses HTTP for communication.
	MCPServerTypeHTTP = mcp.ServerTypeHTTP
	// MCPServerTypeSDK is served in-process.
	MCPServerTypeSDK = mcp.ServerTypeSDK
)

// MCPStdioServerConfig configures a stdio-based MCP server.
type MCPStdioServerConfig = mcp.StdioServerConfig

// MCPSSEServerConfig configures an SSE-based MCP server.
type MCPSSEServerConfig = mcp.SSEServerConfig

// MCPHTTPServerConfig configures an HTTP-based MCP server.
type MCPHTTPServerConfig = mcp.HTTPServerConfig

// MCPSdkServerConfig configures an in-process MCP server.
type MCPSdkServerConfig = mcp.SdkServerConfig

// MCPServerInstance is an in-process MCP server that handles raw JSON-RPC.
type MCPServerInstance = mcp.ServerInstance

// MCPStatus represents the connection status of all configured MCP servers.
type MCPStatus = mcp.Status

// MCPServerStatus represents the connection status of a single MCP server.
type MCPServerStatus = mcp.ServerStatus

// MCPSetServersResult is the outcome of SetMCPServers.
type MCPSetServersResult = mcp.SetServersResult

// ===== Control =====

// RewindResult is the outcome of RewindFiles.
type RewindResult = protocol.RewindResult
