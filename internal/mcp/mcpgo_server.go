package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
)

// Compile-time verification that MCPGoServer implements ServerInstance.
var _ ServerInstance = (*MCPGoServer)(nil)

// MCPGoServer serves an existing mcp-go server in-process.
type MCPGoServer struct {
	name   string
	server *server.MCPServer
}

// NewMCPGoServer wraps srv under name.
func NewMCPGoServer(name string, srv *server.MCPServer) *MCPGoServer {
	return &MCPGoServer{name: name, server: srv}
}

// Name returns the name the CLI addresses the server by.
func (s *MCPGoServer) Name() string { return s.name }

// Handle forwards the raw message to the mcp-go server.
func (s *MCPGoServer) Handle(ctx context.Context, message map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("marshal mcp message: %w", err)
	}

	reply := s.server.HandleMessage(ctx, raw)
	if reply == nil {
		return nil, nil
	}

	data, err := json.Marshal(reply)
	if err != nil {
		return nil, fmt.Errorf("marshal mcp response: %w", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal mcp response: %w", err)
	}

	return out, nil
}
