package mcp

import (
	"context"
)

// JSON-RPC error codes used in in-process server responses.
const (
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// protocolVersion is reported in initialize results.
const protocolVersion = "2024-11-05"

// ServerInstance is an in-process MCP server reached through mcp_message
// control requests. Handle receives a decoded JSON-RPC message and returns the
// decoded JSON-RPC response, or nil for notifications.
type ServerInstance interface {
	Name() string
	Handle(ctx context.Context, message map[string]any) (map[string]any, error)
}

// ResultResponse builds a JSON-RPC success response.
func ResultResponse(id any, result any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	}
}

// ErrorResponse builds a JSON-RPC error response.
func ErrorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}

// MessageID returns the id of a decoded JSON-RPC message. Whole numbers
// decoded as float64 are returned as int.
func MessageID(message map[string]any) any {
	switch id := message["id"].(type) {
	case float64:
		if id == float64(int(id)) {
			return int(id)
		}

		return id
	default:
		return id
	}
}
