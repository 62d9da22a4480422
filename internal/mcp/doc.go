// Package mcp hosts in-process Model Context Protocol servers.
//
// The CLI reaches an in-process server through mcp_message control requests
// carrying a JSON-RPC message. Any ServerInstance can answer them: SDKServer
// keeps a registry of tools built with the official MCP SDK types, and
// MCPGoServer forwards to a server built with mark3labs/mcp-go.
package mcp
