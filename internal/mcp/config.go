package mcp

// ServerType represents the type of MCP server.
type ServerType string

const (
	// ServerTypeStdio uses stdio for communication.
	ServerTypeStdio ServerType = "stdio"
	// ServerTypeSSE uses Server-Sent Events.
	ServerTypeSSE ServerType = "sse"
	// ServerTypeHTTP uses HTTP for communication.
	ServerTypeHTTP ServerType = "http"
	// ServerTypeSDK is served in-process through mcp_message control requests.
	ServerTypeSDK ServerType = "sdk"
)

// ServerConfig is the interface for MCP server configurations.
type ServerConfig interface {
	GetType() ServerType
}

// Compile-time verification that all MCP server config types implement ServerConfig.
var (
	_ ServerConfig = (*StdioServerConfig)(nil)
	_ ServerConfig = (*SSEServerConfig)(nil)
	_ ServerConfig = (*HTTPServerConfig)(nil)
	_ ServerConfig = (*SdkServerConfig)(nil)
)

// StdioServerConfig configures a stdio-based MCP server.
type StdioServerConfig struct {
	Type    *ServerType       `json:"type,omitempty"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// GetType implements ServerConfig.
func (m *StdioServerConfig) GetType() ServerType {
	if m.Type != nil {
		return *m.Type
	}

	return ServerTypeStdio
}

// SSEServerConfig configures a Server-Sent Events MCP server.
type SSEServerConfig struct {
	Type    ServerType        `json:"type"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// GetType implements ServerConfig.
func (m *SSEServerConfig) GetType() ServerType { return m.Type }

// HTTPServerConfig configures an HTTP-based MCP server.
type HTTPServerConfig struct {
	Type    ServerType        `json:"type"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// GetType implements ServerConfig.
func (m *HTTPServerConfig) GetType() ServerType { return m.Type }

// SdkServerConfig registers an in-process server. Only the name reaches the CLI.
type SdkServerConfig struct {
	Type     ServerType     `json:"type"`
	Name     string         `json:"name"`
	Instance ServerInstance `json:"-"`
}

// GetType implements ServerConfig.
func (m *SdkServerConfig) GetType() ServerType { return ServerTypeSDK }

// NewSdkServerConfig wraps an in-process server instance.
func NewSdkServerConfig(instance ServerInstance) *SdkServerConfig {
	return &SdkServerConfig{
		Type:     ServerTypeSDK,
		Name:     instance.Name(),
		Instance: instance,
	}
}
