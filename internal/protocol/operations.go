package protocol

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wagiedev/claudewire/internal/mcp"
	"github.com/wagiedev/claudewire/internal/permission"
	"github.com/wagiedev/claudewire/internal/wire"
)

// RewindResult is the outcome of a rewind_files request.
type RewindResult struct {
	CanRewind    bool
	Error        string
	FilesChanged []string
	Insertions   int
	Deletions    int
}

// request sends subtype with the session's control timeout and returns the
// response payload.
func (s *Session) request(ctx context.Context, subtype string, payload map[string]any) (map[string]any, error) {
	resp, err := s.controller.SendRequest(ctx, subtype, payload, s.options.EffectiveControlTimeout())
	if err != nil {
		return nil, err
	}

	result := resp.Payload()
	if result == nil {
		result = map[string]any{}
	}

	return result, nil
}

// Interrupt asks the CLI to stop the current turn.
func (s *Session) Interrupt(ctx context.Context) error {
	s.log.Info("Sending interrupt signal")

	if _, err := s.request(ctx, "interrupt", nil); err != nil {
		return fmt.Errorf("send interrupt signal: %w", err)
	}

	return nil
}

// SetPermissionMode changes the permission mode during conversation.
// Valid modes: "default", "acceptEdits", "plan", "bypassPermissions".
func (s *Session) SetPermissionMode(ctx context.Context, mode string) error {
	normalized := permission.NormalizeMode(mode)

	s.log.Info("Setting permission mode", "mode", normalized)

	if _, err := s.request(ctx, "set_permission_mode", map[string]any{"mode": string(normalized)}); err != nil {
		return fmt.Errorf("set permission mode to %q: %w", normalized, err)
	}

	return nil
}

// SetModel changes the model during conversation. Pass nil to use the default model.
func (s *Session) SetModel(ctx context.Context, model *string) error {
	s.log.Info("Setting model", "model", model)

	if _, err := s.request(ctx, "set_model", map[string]any{"model": model}); err != nil {
		return fmt.Errorf("set model: %w", err)
	}

	return nil
}

// SetMaxThinkingTokens changes the thinking budget. Pass nil to remove the limit.
func (s *Session) SetMaxThinkingTokens(ctx context.Context, tokens *int) error {
	s.log.Info("Setting max thinking tokens", "tokens", tokens)

	payload := map[string]any{"max_thinking_tokens": tokens}
	if _, err := s.request(ctx, "set_max_thinking_tokens", payload); err != nil {
		return fmt.Errorf("set max thinking tokens: %w", err)
	}

	return nil
}

// RewindFiles rewinds tracked files to their state at userMessageID. With
// dryRun the CLI only reports what would change.
//
// File checkpointing must be enabled for the CLI to accept this request.
func (s *Session) RewindFiles(ctx context.Context, userMessageID string, dryRun bool) (*RewindResult, error) {
	s.log.Info("Rewinding files", "user_message_id", userMessageID, "dry_run", dryRun)

	payload := map[string]any{"user_message_id": userMessageID}
	if dryRun {
		payload["dry_run"] = true
	}

	resp, err := s.request(ctx, "rewind_files", payload)
	if err != nil {
		return nil, fmt.Errorf("rewind files: %w", err)
	}

	result := &RewindResult{
		CanRewind: wire.Bool(resp, "can_rewind"),
		Error:     wire.String(resp, "error"),
	}

	for _, f := range wire.Slice(resp, "files_changed") {
		if name, ok := f.(string); ok {
			result.FilesChanged = append(result.FilesChanged, name)
		}
	}

	result.Insertions, _ = wire.Int(resp, "insertions")
	result.Deletions, _ = wire.Int(resp, "deletions")

	return result, nil
}

// SetMCPServers replaces the dynamically configured MCP servers. In-process
// entries are registered with the session so their mcp_message traffic is
// routed here.
func (s *Session) SetMCPServers(ctx context.Context, servers map[string]mcp.ServerConfig) (*mcp.SetServersResult, error) {
	s.serversMu.Lock()

	for name, cfg := range servers {
		if sdk, ok := cfg.(*mcp.SdkServerConfig); ok && sdk != nil && sdk.Instance != nil {
			s.servers[name] = sdk.Instance
		}
	}

	s.serversMu.Unlock()

	resp, err := s.request(ctx, "mcp_set_servers", map[string]any{"servers": toAnyMap(servers)})
	if err != nil {
		return nil, fmt.Errorf("set mcp servers: %w", err)
	}

	var result mcp.SetServersResult
	if err := decodePayload(resp, &result); err != nil {
		return nil, fmt.Errorf("set mcp servers: %w", err)
	}

	return &result, nil
}

// ReconnectMCPServer asks the CLI to reconnect the named server.
func (s *Session) ReconnectMCPServer(ctx context.Context, name string) error {
	if _, err := s.request(ctx, "mcp_reconnect", map[string]any{"serverName": name}); err != nil {
		return fmt.Errorf("reconnect mcp server %q: %w", name, err)
	}

	return nil
}

// ToggleMCPServer enables or disables the named server.
func (s *Session) ToggleMCPServer(ctx context.Context, name string, enabled bool) error {
	payload := map[string]any{"serverName": name, "enabled": enabled}
	if _, err := s.request(ctx, "mcp_toggle", payload); err != nil {
		return fmt.Errorf("toggle mcp server %q: %w", name, err)
	}

	return nil
}

// MCPStatus queries live MCP server status. In-process servers the CLI does
// not list are reported as connected.
func (s *Session) MCPStatus(ctx context.Context) (*mcp.Status, error) {
	resp, err := s.request(ctx, "mcp_status", nil)
	if err != nil {
		return nil, fmt.Errorf("get mcp status: %w", err)
	}

	var status mcp.Status
	if err := decodePayload(resp, &status); err != nil {
		return nil, fmt.Errorf("get mcp status: %w", err)
	}

	status.MergeInProcess(s.MCPServerNames())

	return &status, nil
}

// SupportedCommands returns the slash commands the CLI offers.
func (s *Session) SupportedCommands(ctx context.Context) ([]map[string]any, error) {
	return s.capability(ctx, "commands", "supported_commands")
}

// SupportedModels returns the models the CLI offers.
func (s *Session) SupportedModels(ctx context.Context) ([]map[string]any, error) {
	return s.capability(ctx, "models", "supported_models")
}

// AccountInfo returns the account the CLI is signed in with.
func (s *Session) AccountInfo(ctx context.Context) (map[string]any, error) {
	if info := wire.Map(s.ServerInfo(), "account"); info != nil {
		return info, nil
	}

	resp, err := s.request(ctx, "account_info", nil)
	if err != nil {
		return nil, fmt.Errorf("account info: %w", err)
	}

	if nested := wire.Map(resp, "account"); nested != nil {
		return nested, nil
	}

	return resp, nil
}

// capability reads key from the cached initialize response and falls back to
// a subtype request when the CLI did not include it.
func (s *Session) capability(ctx context.Context, key, subtype string) ([]map[string]any, error) {
	if cached := wire.Slice(s.ServerInfo(), key); cached != nil {
		return objects(cached), nil
	}

	resp, err := s.request(ctx, subtype, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", subtype, err)
	}

	return objects(wire.Slice(resp, key)), nil
}

func objects(items []any) []map[string]any {
	out := make([]map[string]any, 0, len(items))

	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}

	return out
}

func toAnyMap(servers map[string]mcp.ServerConfig) map[string]any {
	out := make(map[string]any, len(servers))
	for name, cfg := range servers {
		out[name] = cfg
	}

	return out
}

// decodePayload converts a decoded JSON object into a typed value.
func decodePayload(payload map[string]any, v any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	return nil
}
