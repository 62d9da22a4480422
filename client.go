package claudewire

import (
	"context"
	"iter"
)

// Client provides an interactive, stateful interface for multi-turn conversations with Claude.
//
// A Client owns one CLI process and its control protocol session. It supports
// streamed input, interruption, dynamic configuration and a shared abort
// signal.
//
// Lifecycle: Clients are single-use. After Close(), create a new client with NewClient().
//
// Example usage:
//
//	client := claudewire.NewClient()
//	defer client.Close()
//
//	err := client.Start(ctx,
//	    claudewire.WithLogger(slog.Default()),
//	    claudewire.WithPermissionMode("acceptEdits"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := client.Query(ctx, "What is 2+2?"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Receive all messages for this response (stops at ResultMessage)
//	for msg, err := range client.ReceiveResponse(ctx) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    // Process message...
//	}
type Client interface {
	// Start spawns the CLI. The initialize handshake runs only when hooks,
	// tool servers, a permission callback or agents are configured.
	// Must be called before any other methods.
	// Returns CLINotFoundError if CLI not found, CLIConnectionError on failure.
	Start(ctx context.Context, opts ...Option) error

	// StartWithPrompt establishes a connection and immediately sends an initial prompt.
	// Equivalent to calling Start() followed by Query(ctx, prompt).
	StartWithPrompt(ctx context.Context, prompt string, opts ...Option) error

	// Query sends a user prompt to Claude.
	// Returns immediately after sending; use ReceiveMessages() or ReceiveResponse() to get responses.
	// Optional sessionID defaults to "default" for multi-session support.
	Query(ctx context.Context, prompt string, sessionID ...string) error

	// StreamInput writes items to the CLI in order. An item is a string, a
	// UserInput, a map holding a typed message or a user record, or raw JSON
	// of either map form. The abort signal is checked before each item.
	StreamInput(ctx context.Context, items iter.Seq[any], sessionID string) error

	// StreamConversation sends items in the background while yielding
	// incoming messages until the first ResultMessage. A send failure is
	// yielded after the current message.
	StreamConversation(ctx context.Context, items iter.Seq[any], sessionID string) iter.Seq2[Message, error]

	// ReceiveMessages returns an iterator that yields messages until the CLI
	// ends the stream, an error occurs, or ctx is cancelled.
	// Unlike ReceiveResponse, this iterator does not stop at ResultMessage.
	ReceiveMessages(ctx context.Context) iter.Seq2[Message, error]

	// ReceiveResponse returns an iterator that yields messages until a ResultMessage is received.
	// The iterator stops after yielding the ResultMessage.
	ReceiveResponse(ctx context.Context) iter.Seq2[Message, error]

	// Interrupt sends an interrupt signal to stop Claude's current processing.
	Interrupt(ctx context.Context) error

	// SetPermissionMode changes the permission mode during conversation.
	// Valid modes: "default", "acceptEdits", "plan", "bypassPermissions"
	SetPermissionMode(ctx context.Context, mode string) error

	// SetModel changes the AI model during conversation.
	// Pass nil to use the default model.
	SetModel(ctx context.Context, model *string) error

	// SetMaxThinkingTokens caps extended thinking. Pass nil to remove the limit.
	SetMaxThinkingTokens(ctx context.Context, tokens *int) error

	// RewindFiles rewinds tracked files to their state at a specific user message.
	// Requires WithEnableFileCheckpointing. With dryRun, nothing is changed.
	RewindFiles(ctx context.Context, userMessageID string, dryRun bool) (*RewindResult, error)

	// SetMCPServers replaces the dynamically configured MCP servers.
	SetMCPServers(ctx context.Context, servers map[string]MCPServerConfig) (*MCPSetServersResult, error)

	// ReconnectMCPServer asks the CLI to reconnect the named MCP server.
	ReconnectMCPServer(ctx context.Context, name string) error

	// ToggleMCPServer enables or disables the named MCP server.
	ToggleMCPServer(ctx context.Context, name string, enabled bool) error

	// MCPStatus queries the CLI for live MCP server connection status.
	MCPStatus(ctx context.Context) (*MCPStatus, error)

	// SupportedCommands returns the slash commands the CLI offers.
	SupportedCommands(ctx context.Context) ([]map[string]any, error)

	// SupportedModels returns the models the CLI offers.
	SupportedModels(ctx context.Context) ([]map[string]any, error)

	// AccountInfo returns the signed-in account.
	AccountInfo(ctx context.Context) (map[string]any, error)

	// ServerInfo returns the initialize response, or nil when no handshake ran.
	ServerInfo() map[string]any

	// Abort unblocks every pending operation with an AbortError carrying
	// reason and terminates the CLI. Only the first reason is kept.
	Abort(reason string)

	// Close terminates the session and cleans up resources.
	// After Close(), the client cannot be reused. Safe to call multiple times.
	Close() error
}

// NewClient creates a new interactive client.
//
// Call Start() with options to begin a session:
//
//	client := claudewire.NewClient()
//	err := client.Start(ctx,
//	    claudewire.WithLogger(slog.Default()),
//	    claudewire.WithPermissionMode("acceptEdits"),
//	)
func NewClient() Client {
	return newClientImpl()
}
