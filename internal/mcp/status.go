package mcp

import "slices"

// ServerStatus represents the connection status of a single MCP server.
type ServerStatus struct {
	Name       string         `json:"name"`
	Status     string         `json:"status"` // "connected", "failed", "needs-auth", "pending", "disabled"
	ServerInfo map[string]any `json:"serverInfo,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Status represents the connection status of all configured MCP servers.
type Status struct {
	MCPServers []ServerStatus `json:"mcpServers"`
}

// MergeInProcess adds in-process servers the CLI did not report as connected.
func (s *Status) MergeInProcess(names []string) {
	for _, name := range names {
		known := slices.ContainsFunc(s.MCPServers, func(st ServerStatus) bool {
			return st.Name == name
		})
		if !known {
			s.MCPServers = append(s.MCPServers, ServerStatus{Name: name, Status: "connected"})
		}
	}
}

// SetServersResult is the outcome of replacing the dynamic MCP server set.
type SetServersResult struct {
	Added   []string          `json:"added"`
	Removed []string          `json:"removed"`
	Errors  map[string]string `json:"errors"`
}
