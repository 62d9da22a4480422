package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/wagiedev/claudewire/internal/config"
	"github.com/wagiedev/claudewire/internal/hook"
	"github.com/wagiedev/claudewire/internal/mcp"
	"github.com/wagiedev/claudewire/internal/permission"
	"github.com/wagiedev/claudewire/internal/wire"
)

// Inbound control request subtypes handled by a Session.
const (
	SubtypeCanUseTool   = "can_use_tool"
	SubtypeHookCallback = "hook_callback"
	SubtypeMCPMessage   = "mcp_message"
)

// Session encapsulates protocol handling logic for hooks, MCP servers, and callbacks.
// One Session exists per conversation; nothing it holds is shared between sessions.
type Session struct {
	log        *slog.Logger
	controller *Controller
	options    *config.Options

	// Hook callback storage (callback_id -> callback function)
	hookCallbacksMu sync.RWMutex
	hookCallbacks   map[string]hook.Callback

	// In-process MCP servers keyed by configured name
	serversMu sync.RWMutex
	servers   map[string]mcp.ServerInstance

	// Server initialization result (protected by initMu)
	initMu               sync.RWMutex
	initializationResult map[string]any
}

// NewSession creates a new Session for protocol handling.
func NewSession(
	log *slog.Logger,
	controller *Controller,
	options *config.Options,
) *Session {
	if options == nil {
		options = &config.Options{}
	}

	return &Session{
		log:           log.With("component", "session"),
		controller:    controller,
		options:       options,
		hookCallbacks: make(map[string]hook.Callback, 16),
		servers:       make(map[string]mcp.ServerInstance, 4),
	}
}

// RegisterHandlers registers protocol handlers for hooks, MCP, and tool permissions.
// This must be called before the controller starts.
func (s *Session) RegisterHandlers() {
	s.controller.RegisterHandler(SubtypeCanUseTool, s.HandleCanUseTool)
	s.controller.RegisterHandler(SubtypeHookCallback, s.HandleHookCallback)
	s.controller.RegisterHandler(SubtypeMCPMessage, s.HandleMCPMessage)
}

// RegisterMCPServers registers the in-process MCP servers found in options.
func (s *Session) RegisterMCPServers() {
	s.serversMu.Lock()
	defer s.serversMu.Unlock()

	for _, name := range s.options.ToolServerNames() {
		s.servers[name] = s.options.ToolServer(name)
		s.log.Debug("Registered in-process MCP server", "server", name)
	}
}

// NeedsInitialization reports whether an initialize handshake must run before
// conversation traffic: hooks, in-process servers, a permission callback or
// agent definitions are configured.
func (s *Session) NeedsInitialization() bool {
	return s.options.HasHooks() ||
		s.options.HasToolServers() ||
		s.options.PermissionCallback() != nil ||
		len(s.options.Agents) > 0
}

// Initialize sends the initialize control request carrying the hook
// registration table and agent definitions, then caches the CLI's reply.
//
// Hook callback ids are hook_<event>_<matcherIndex>_<callbackIndex>, assigned
// in sorted event order, so the same configuration always yields the same ids.
func (s *Session) Initialize(ctx context.Context) error {
	s.log.Debug("Sending initialize request")
	s.controller.SetState(StateInitializing)

	payload := map[string]any{
		"hooks": s.registerHooks(),
	}

	// Agent definitions travel here rather than on the command line (ARG_MAX).
	if agents := s.options.AgentsWire(); len(agents) > 0 {
		payload["agents"] = agents
	}

	resp, err := s.controller.SendRequest(ctx, "initialize", payload, s.options.EffectiveInitializeTimeout())
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	s.initMu.Lock()
	s.initializationResult = resp.Payload()
	s.initMu.Unlock()

	s.controller.SetState(StateActive)
	s.log.Info("Session initialized")

	return nil
}

// registerHooks fills the callback registry and returns the wire hook table.
func (s *Session) registerHooks() map[string]any {
	table := s.options.HookTable()
	hooksConfig := make(map[string]any, len(table))

	s.hookCallbacksMu.Lock()
	defer s.hookCallbacksMu.Unlock()

	for _, event := range hook.Events(table) {
		matchers := table[event]
		eventMatchers := make([]map[string]any, 0, len(matchers))

		for mi, m := range matchers {
			if m == nil {
				continue
			}

			callbackIDs := make([]string, 0, len(m.Hooks))

			for ci, fn := range m.Hooks {
				callbackID := fmt.Sprintf("hook_%s_%d_%d", event, mi, ci)
				s.hookCallbacks[callbackID] = fn
				callbackIDs = append(callbackIDs, callbackID)
			}

			matcherConfig := map[string]any{
				"matcher":         m.Matcher,
				"hookCallbackIds": callbackIDs,
			}

			if m.Timeout != nil {
				matcherConfig["timeout"] = *m.Timeout
			}

			eventMatchers = append(eventMatchers, matcherConfig)
		}

		hooksConfig[string(event)] = eventMatchers
	}

	return hooksConfig
}

// ServerInfo returns a copy of the initialize response, or nil before
// initialization.
func (s *Session) ServerInfo() map[string]any {
	s.initMu.RLock()
	defer s.initMu.RUnlock()

	if s.initializationResult == nil {
		return nil
	}

	return maps.Clone(s.initializationResult)
}

// MCPServerNames returns the sorted names of registered in-process MCP servers.
func (s *Session) MCPServerNames() []string {
	s.serversMu.RLock()
	defer s.serversMu.RUnlock()

	return slices.Sorted(maps.Keys(s.servers))
}

// HandleCanUseTool answers a can_use_tool request with the permission
// callback's decision. Without a callback every tool is allowed.
func (s *Session) HandleCanUseTool(
	ctx context.Context,
	req *ControlRequest,
) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	toolName := wire.String(req.Request, "tool_name")
	input := wire.Map(req.Request, "input")

	rawSuggestions := wire.Slice(req.Request, "permission_suggestions")
	if rawSuggestions == nil {
		rawSuggestions = wire.Slice(req.Request, "suggestions")
	}

	suggestions := make([]*permission.Update, 0, len(rawSuggestions))

	for _, raw := range rawSuggestions {
		if m, ok := raw.(map[string]any); ok {
			suggestions = append(suggestions, permission.ParseUpdate(m))
		}
	}

	permCtx := &permission.Context{
		Suggestions: suggestions,
		BlockedPath: wire.StringPtr(req.Request, "blocked_path"),
		ToolUseID:   wire.String(req.Request, "tool_use_id"),
	}

	s.log.Debug("Checking tool permission", "tool", toolName)

	result, err := permission.Decide(ctx, s.options.PermissionCallback(), toolName, input, permCtx)
	if err != nil {
		return nil, fmt.Errorf("permission callback for %s: %w", toolName, err)
	}

	return result, nil
}

// HandleHookCallback runs the hook registered under the request's callback_id.
func (s *Session) HandleHookCallback(
	ctx context.Context,
	req *ControlRequest,
) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	callbackID := wire.String(req.Request, "callback_id")
	toolUseID := wire.String(req.Request, "tool_use_id")

	s.hookCallbacksMu.RLock()
	callback, exists := s.hookCallbacks[callbackID]
	s.hookCallbacksMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown callback_id: %s", callbackID)
	}

	s.log.Debug("Handling hook callback", "callback_id", callbackID)

	input := hook.ParseInput(wire.Map(req.Request, "input"))
	if toolUseID == "" {
		toolUseID = input.ToolUseID
	}

	output, err := callback(ctx, input, &hook.Context{ToolUseID: toolUseID})
	if err != nil {
		return nil, fmt.Errorf("hook callback error: %w", err)
	}

	return output.Wire(), nil
}

// HandleMCPMessage forwards the embedded JSON-RPC message to the named
// in-process server and wraps its reply as {"mcp_response": ...}.
//
// Server failures are reported as JSON-RPC errors inside a successful control
// response, so the CLI sees them as MCP errors rather than protocol errors.
func (s *Session) HandleMCPMessage(
	ctx context.Context,
	req *ControlRequest,
) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	serverName := wire.String(req.Request, "server_name")

	message := wire.Map(req.Request, "message")
	if message == nil {
		return nil, fmt.Errorf("missing message field in mcp_message request")
	}

	msgID := mcp.MessageID(message)

	s.serversMu.RLock()
	server, exists := s.servers[serverName]
	s.serversMu.RUnlock()

	if !exists {
		s.log.Warn("MCP message for unknown server", "server", serverName)

		return mcpEnvelope(mcp.ErrorResponse(msgID, mcp.CodeMethodNotFound, "MCP server not found: "+serverName)), nil
	}

	s.log.Debug("Forwarding MCP message", "server", serverName, "method", wire.String(message, "method"))

	resp, err := server.Handle(ctx, message)
	if err != nil {
		return mcpEnvelope(mcp.ErrorResponse(msgID, mcp.CodeInternalError, err.Error())), nil
	}

	if resp == nil {
		resp = mcp.ResultResponse(msgID, map[string]any{})
	}

	return mcpEnvelope(resp), nil
}

func mcpEnvelope(resp map[string]any) map[string]any {
	return map[string]any{"mcp_response": resp}
}
