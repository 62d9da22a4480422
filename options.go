package claudewire

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Option configures Options using the functional options pattern.
// This is the primary option type for configuring clients and queries.
type Option func(*Options)

// applyOptions applies functional options to a fresh Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithSystemPrompt sets the system message to send to Claude.
func WithSystemPrompt(prompt string) Option {
	return func(o *Options) {
		o.SystemPrompt = prompt
	}
}

// WithSystemPromptPreset sets a preset system prompt configuration.
// If set, this takes precedence over WithSystemPrompt.
func WithSystemPromptPreset(preset *SystemPromptPreset) Option {
	return func(o *Options) {
		o.SystemPromptPreset = preset
	}
}

// WithModel specifies which Claude model to use (e.g., "claude-sonnet-4-5-20250929").
func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// WithFallbackModel specifies a model to use if the primary model fails.
func WithFallbackModel(model string) Option {
	return func(o *Options) {
		o.FallbackModel = model
	}
}

// WithPermissionMode controls how permissions are handled.
// Valid values: "default", "acceptEdits", "plan", "bypassPermissions".
func WithPermissionMode(mode string) Option {
	return func(o *Options) {
		o.PermissionMode = mode
	}
}

// WithMaxTurns limits the maximum number of conversation turns.
func WithMaxTurns(maxTurns int) Option {
	return func(o *Options) {
		o.MaxTurns = maxTurns
	}
}

// WithMaxThinkingTokens caps extended thinking.
func WithMaxThinkingTokens(tokens int) Option {
	return func(o *Options) {
		o.MaxThinkingTokens = tokens
	}
}

// WithCwd sets the working directory for the CLI process.
func WithCwd(cwd string) Option {
	return func(o *Options) {
		o.Cwd = cwd
	}
}

// WithCliPath sets the explicit path to the claude CLI binary.
// If not set, the CLI will be searched in PATH.
func WithCliPath(path string) Option {
	return func(o *Options) {
		o.CliPath = path
	}
}

// WithEnv provides additional environment variables for the CLI process.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		o.Env = env
	}
}

// WithIncludePartialMessages enables streaming of partial message updates.
func WithIncludePartialMessages(include bool) Option {
	return func(o *Options) {
		o.IncludePartialMessages = include
	}
}

// ===== Hooks and Permissions =====

// WithHooks configures event hooks for tool interception.
func WithHooks(hooks map[HookEvent][]*HookMatcher) Option {
	return func(o *Options) {
		o.Hooks = hooks
	}
}

// WithCanUseTool sets a callback for permission checking before each tool use.
func WithCanUseTool(callback ToolPermissionCallback) Option {
	return func(o *Options) {
		o.CanUseTool = callback
	}
}

// WithPermissionPromptToolName specifies the tool name to use for permission prompts.
func WithPermissionPromptToolName(name string) Option {
	return func(o *Options) {
		o.PermissionPromptToolName = name
	}
}

// ===== Tools =====

// WithAllowedTools sets pre-approved tools that can be used without prompting.
func WithAllowedTools(tools ...string) Option {
	return func(o *Options) {
		o.AllowedTools = tools
	}
}

// WithDisallowedTools sets tools that are explicitly blocked.
func WithDisallowedTools(tools ...string) Option {
	return func(o *Options) {
		o.DisallowedTools = tools
	}
}

// ===== MCP =====

// WithMCPServers configures MCP servers by name. MCPSdkServerConfig
// entries are served in-process.
func WithMCPServers(servers map[string]MCPServerConfig) Option {
	return func(o *Options) {
		o.MCPServers = servers
	}
}

// WithMCPServer adds one MCP server under name.
func WithMCPServer(name string, server MCPServerConfig) Option {
	return func(o *Options) {
		if o.MCPServers == nil {
			o.MCPServers = make(map[string]MCPServerConfig, 1)
		}

		o.MCPServers[name] = server
	}
}

// ===== Session =====

// WithContinueConversation indicates whether to continue an existing conversation.
func WithContinueConversation(cont bool) Option {
	return func(o *Options) {
		o.ContinueConversation = cont
	}
}

// WithResume sets a session ID to resume from.
func WithResume(sessionID string) Option {
	return func(o *Options) {
		o.Resume = sessionID
	}
}

// WithForkSession indicates whether to fork the resumed session to a new ID.
func WithForkSession(fork bool) Option {
	return func(o *Options) {
		o.ForkSession = fork
	}
}

// WithEnableFileCheckpointing enables file change tracking and rewinding.
func WithEnableFileCheckpointing(enable bool) Option {
	return func(o *Options) {
		o.EnableFileCheckpointing = enable
	}
}

// ===== Advanced =====

// WithSettings sets a settings file path or a JSON object string.
func WithSettings(settings string) Option {
	return func(o *Options) {
		o.Settings = settings
	}
}

// WithSettingSources specifies which setting sources to use.
func WithSettingSources(sources ...SettingSource) Option {
	return func(o *Options) {
		o.SettingSources = sources
	}
}

// WithAddDirs adds additional directories to make accessible.
func WithAddDirs(dirs ...string) Option {
	return func(o *Options) {
		o.AddDirs = dirs
	}
}

// WithAgents defines custom agent configurations.
func WithAgents(agents map[string]*AgentDefinition) Option {
	return func(o *Options) {
		o.Agents = agents
	}
}

// WithExtraArgs provides arbitrary CLI flags to pass to the CLI.
// If the value is nil, the flag is passed without a value (boolean flag).
func WithExtraArgs(args map[string]*string) Option {
	return func(o *Options) {
		o.ExtraArgs = args
	}
}

// WithStderr sets a callback for each stderr line of the CLI.
func WithStderr(handler func(string)) Option {
	return func(o *Options) {
		o.Stderr = handler
	}
}

// WithSkipVersionCheck skips the minimum CLI version check.
func WithSkipVersionCheck(skip bool) Option {
	return func(o *Options) {
		o.SkipVersionCheck = skip
	}
}

// ===== Protocol Tunables =====

// WithControlTimeout bounds every outbound control request.
func WithControlTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.ControlTimeout = timeout
	}
}

// WithInitializeTimeout sets the timeout for the initialize control request.
func WithInitializeTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.InitializeTimeout = &timeout
	}
}

// WithMaxBufferSize bounds an undecodable CLI stdout frame in bytes.
func WithMaxBufferSize(size int) Option {
	return func(o *Options) {
		o.MaxBufferSize = size
	}
}

// WithTerminateGracePeriod sets the wait between SIGTERM and SIGKILL on close.
func WithTerminateGracePeriod(d time.Duration) Option {
	return func(o *Options) {
		o.TerminateGracePeriod = d
	}
}

// WithAbortSignal shares sig with the client. Aborting it unblocks every
// pending operation with AbortError and terminates the CLI.
func WithAbortSignal(sig *AbortSignal) Option {
	return func(o *Options) {
		o.Abort = sig
	}
}

// WithTracer records a span per control request and inbound control handler.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Options) {
		o.Tracer = tracer
	}
}

// WithProcessFactory replaces local process spawning, e.g. to run the CLI
// in a container or on a remote host.
func WithProcessFactory(factory ProcessFactory) Option {
	return func(o *Options) {
		o.ProcessFactory = factory
	}
}

// WithTransport injects a custom transport implementation.
func WithTransport(transport Transport) Option {
	return func(o *Options) {
		o.Transport = transport
	}
}
