package claudewire

import (
	"context"
	"iter"

	"github.com/wagiedev/claudewire/internal/client"
)

// clientWrapper adapts the internal client to the public interface.
type clientWrapper struct {
	impl *client.Client
}

// Compile-time check that *clientWrapper implements the Client interface.
var _ Client = (*clientWrapper)(nil)

func newClientImpl() Client {
	return &clientWrapper{impl: client.New()}
}

func (c *clientWrapper) Start(ctx context.Context, opts ...Option) error {
	return c.impl.Start(ctx, applyOptions(opts))
}

func (c *clientWrapper) StartWithPrompt(ctx context.Context, prompt string, opts ...Option) error {
	return c.impl.StartWithPrompt(ctx, prompt, applyOptions(opts))
}

func (c *clientWrapper) Query(ctx context.Context, prompt string, sessionID ...string) error {
	return c.impl.Query(ctx, prompt, sessionID...)
}

func (c *clientWrapper) StreamInput(ctx context.Context, items iter.Seq[any], sessionID string) error {
	return c.impl.StreamInput(ctx, items, sessionID)
}

func (c *clientWrapper) StreamConversation(
	ctx context.Context,
	items iter.Seq[any],
	sessionID string,
) iter.Seq2[Message, error] {
	return c.impl.StreamConversation(ctx, items, sessionID)
}

func (c *clientWrapper) ReceiveMessages(ctx context.Context) iter.Seq2[Message, error] {
	return c.impl.ReceiveMessages(ctx)
}

func (c *clientWrapper) ReceiveResponse(ctx context.Context) iter.Seq2[Message, error] {
	return c.impl.ReceiveResponse(ctx)
}

func (c *clientWrapper) Interrupt(ctx context.Context) error {
	return c.impl.Interrupt(ctx)
}

func (c *clientWrapper) SetPermissionMode(ctx context.Context, mode string) error {
	return c.impl.SetPermissionMode(ctx, mode)
}

func (c *clientWrapper) SetModel(ctx context.Context, model *string) error {
	return c.impl.SetModel(ctx, model)
}

func (c *clientWrapper) SetMaxThinkingTokens(ctx context.Context, tokens *int) error {
	return c.impl.SetMaxThinkingTokens(ctx, tokens)
}

func (c *clientWrapper) RewindFiles(ctx context.Context, userMessageID string, dryRun bool) (*RewindResult, error) {
	return c.impl.RewindFiles(ctx, userMessageID, dryRun)
}

func (c *clientWrapper) SetMCPServers(
	ctx context.Context,
	servers map[string]MCPServerConfig,
) (*MCPSetServersResult, error) {
	return c.impl.SetMCPServers(ctx, servers)
}

func (c *clientWrapper) ReconnectMCPServer(ctx context.Context, name string) error {
	return c.impl.ReconnectMCPServer(ctx, name)
}

func (c *clientWrapper) ToggleMCPServer(ctx context.Context, name string, enabled bool) error {
	return c.impl.ToggleMCPServer(ctx, name, enabled)
}

func (c *clientWrapper) MCPStatus(ctx context.Context) (*MCPStatus, error) {
	return c.impl.MCPStatus(ctx)
}

func (c *clientWrapper) SupportedCommands(ctx context.Context) ([]map[string]any, error) {
	return c.impl.SupportedCommands(ctx)
}

func (c *clientWrapper) SupportedModels(ctx context.Context) ([]map[string]any, error) {
	return c.impl.SupportedModels(ctx)
}

func (c *clientWrapper) AccountInfo(ctx context.Context) (map[string]any, error) {
	return c.impl.AccountInfo(ctx)
}

func (c *clientWrapper) ServerInfo() map[string]any {
	return c.impl.ServerInfo()
}

func (c *clientWrapper) Abort(reason string) {
	c.impl.Abort(reason)
}

func (c *clientWrapper) Close() error {
	return c.impl.Close()
}
