package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/wagiedev/claudewire/internal/abort"
	"github.com/wagiedev/claudewire/internal/framing"
	"github.com/wagiedev/claudewire/internal/hook"
	"github.com/wagiedev/claudewire/internal/mcp"
	"github.com/wagiedev/claudewire/internal/permission"
	"github.com/wagiedev/claudewire/internal/process"
)

const (
	// DefaultControlTimeout bounds every outbound control request.
	DefaultControlTimeout = 60 * time.Second

	// DefaultInitializeTimeout bounds the initialize handshake.
	DefaultInitializeTimeout = 60 * time.Second

	// DefaultTerminateGracePeriod is how long Close waits after SIGTERM before killing.
	DefaultTerminateGracePeriod = 5 * time.Second

	// PermissionPromptStdio routes permission prompts back over the control protocol.
	PermissionPromptStdio = "stdio"
)

// Options configures the CLI process and the control protocol around it.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// SystemPrompt is the system message to send to Claude.
	SystemPrompt string

	// SystemPromptPreset specifies a preset system prompt configuration.
	// If set, this takes precedence over SystemPrompt.
	SystemPromptPreset *SystemPromptPreset

	// Model specifies which Claude model to use.
	Model string

	// FallbackModel specifies a model to use if the primary model fails.
	FallbackModel string

	// PermissionMode controls how permissions are handled.
	// Legacy aliases "acceptAll" and "prompt" are normalized.
	PermissionMode string

	// PermissionPromptToolName specifies the tool name to use for permission prompts.
	// Set to "stdio" automatically when CanUseTool is configured.
	PermissionPromptToolName string

	// MaxTurns limits the maximum number of conversation turns.
	MaxTurns int

	// MaxThinkingTokens caps extended thinking. Zero leaves the CLI default.
	MaxThinkingTokens int

	// Cwd sets the working directory for the CLI process.
	Cwd string

	// CliPath is the explicit path to the claude CLI binary.
	// If empty, the CLI will be searched in PATH.
	CliPath string

	// Env provides additional environment variables for the CLI process.
	Env map[string]string

	// AddDirs is a list of additional directories to make accessible.
	AddDirs []string

	// AllowedTools is a list of pre-approved tools.
	AllowedTools []string

	// DisallowedTools is a list of tools that are explicitly blocked.
	DisallowedTools []string

	// IncludePartialMessages enables streaming of partial message updates.
	IncludePartialMessages bool

	// ContinueConversation continues the most recent conversation.
	ContinueConversation bool

	// Resume is a session ID to resume from.
	Resume string

	// ForkSession forks the resumed session to a new ID.
	ForkSession bool

	// SettingSources specifies which setting sources to use.
	SettingSources []SettingSource

	// Settings is a settings file path or a JSON object string.
	Settings string

	// Agents defines custom agent configurations, sent with initialize.
	Agents map[string]*AgentDefinition

	// MCPServers configures MCP servers by name. SdkServerConfig entries are
	// served in-process.
	MCPServers map[string]mcp.ServerConfig

	// ExtraArgs provides arbitrary CLI flags. A nil value is a boolean flag.
	ExtraArgs map[string]*string

	// EnableFileCheckpointing enables file change tracking and rewinding.
	EnableFileCheckpointing bool

	// Hooks configures event hooks for tool interception.
	Hooks map[hook.Event][]*hook.Matcher

	// CanUseTool is called before each tool use for permission checking.
	// If nil, all tool uses are allowed.
	CanUseTool permission.Callback

	// Stderr receives each stderr line of the CLI process.
	Stderr func(string)

	// ControlTimeout bounds outbound control requests. Zero means DefaultControlTimeout.
	ControlTimeout time.Duration

	// InitializeTimeout bounds the initialize request.
	// If nil, CLAUDE_CODE_STREAM_CLOSE_TIMEOUT (seconds) or DefaultInitializeTimeout applies.
	InitializeTimeout *time.Duration

	// MaxBufferSize bounds an undecodable stdout frame. Zero means 1 MiB.
	MaxBufferSize int

	// TerminateGracePeriod is the wait between SIGTERM and SIGKILL on close.
	TerminateGracePeriod time.Duration

	// SkipVersionCheck skips the minimum CLI version check.
	// CLAUDE_AGENT_SDK_SKIP_VERSION_CHECK has the same effect.
	SkipVersionCheck bool

	// ProcessFactory spawns the CLI. If nil, a local child process is used.
	ProcessFactory process.Factory `json:"-"`

	// Abort is a cancellation signal shared with the caller.
	// If nil, each client creates its own.
	Abort *abort.Signal `json:"-"`

	// Tracer records control-protocol spans. If nil, tracing is a no-op.
	Tracer trace.Tracer `json:"-"`

	// Transport allows injecting a custom transport implementation.
	// If nil, the default CLITransport is created automatically.
	Transport Transport `json:"-"`
}

// Validate checks option combinations and applies derived settings.
func (o *Options) Validate() error {
	if o.CanUseTool != nil {
		if o.PermissionPromptToolName != "" && o.PermissionPromptToolName != PermissionPromptStdio {
			return fmt.Errorf(
				"can_use_tool callback cannot be used with permission_prompt_tool_name %q",
				o.PermissionPromptToolName,
			)
		}

		o.PermissionPromptToolName = PermissionPromptStdio
	}

	for name, cfg := range o.MCPServers {
		if sdk, ok := cfg.(*mcp.SdkServerConfig); ok && sdk != nil && sdk.Instance == nil {
			return fmt.Errorf("mcp server %q: sdk server has no instance", name)
		}
	}

	return nil
}

// Log returns the configured logger or a discarding one.
func (o *Options) Log() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}

	return o.Logger
}

// HasHooks reports whether any hook callback is configured.
func (o *Options) HasHooks() bool {
	for _, matchers := range o.Hooks {
		for _, m := range matchers {
			if m != nil && len(m.Hooks) > 0 {
				return true
			}
		}
	}

	return false
}

// HasToolServers reports whether any in-process MCP server is configured.
func (o *Options) HasToolServers() bool {
	return len(o.ToolServerNames()) > 0
}

// HookTable returns the configured hooks.
func (o *Options) HookTable() map[hook.Event][]*hook.Matcher {
	return o.Hooks
}

// ToolServer returns the in-process server registered under name, or nil.
func (o *Options) ToolServer(name string) mcp.ServerInstance {
	sdk, ok := o.MCPServers[name].(*mcp.SdkServerConfig)
	if !ok || sdk == nil {
		return nil
	}

	return sdk.Instance
}

// ToolServerNames returns the sorted names of in-process MCP servers.
func (o *Options) ToolServerNames() []string {
	names := make([]string, 0, len(o.MCPServers))

	for name, cfg := range o.MCPServers {
		if sdk, ok := cfg.(*mcp.SdkServerConfig); ok && sdk != nil && sdk.Instance != nil {
			names = append(names, name)
		}
	}

	slices.Sort(names)

	return names
}

// PermissionCallback returns the tool permission callback, or nil.
func (o *Options) PermissionCallback() permission.Callback {
	return o.CanUseTool
}

// EffectiveControlTimeout returns the control request timeout.
func (o *Options) EffectiveControlTimeout() time.Duration {
	if o.ControlTimeout > 0 {
		return o.ControlTimeout
	}

	return DefaultControlTimeout
}

// EffectiveInitializeTimeout returns the initialize timeout.
func (o *Options) EffectiveInitializeTimeout() time.Duration {
	if o.InitializeTimeout != nil && *o.InitializeTimeout > 0 {
		return *o.InitializeTimeout
	}

	if raw := os.Getenv("CLAUDE_CODE_STREAM_CLOSE_TIMEOUT"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}

	return DefaultInitializeTimeout
}

// EffectiveMaxBufferSize returns the frame buffer limit.
func (o *Options) EffectiveMaxBufferSize() int {
	if o.MaxBufferSize > 0 {
		return o.MaxBufferSize
	}

	return framing.DefaultMaxBufferSize
}

// EffectiveGracePeriod returns the SIGTERM grace period.
func (o *Options) EffectiveGracePeriod() time.Duration {
	if o.TerminateGracePeriod > 0 {
		return o.TerminateGracePeriod
	}

	return DefaultTerminateGracePeriod
}

// VersionCheckSkipped reports whether the CLI version check is disabled.
func (o *Options) VersionCheckSkipped() bool {
	return o.SkipVersionCheck || os.Getenv("CLAUDE_AGENT_SDK_SKIP_VERSION_CHECK") != ""
}
