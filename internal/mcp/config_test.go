package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServerConfigTypes(t *testing.T) {
	custom := ServerTypeSSE

	tests := []struct {
		name   string
		config ServerConfig
		want   ServerType
	}{
		{name: "stdio default", config: &StdioServerConfig{Command: "node"}, want: ServerTypeStdio},
		{name: "stdio explicit", config: &StdioServerConfig{Type: &custom}, want: ServerTypeSSE},
		{name: "sse", config: &SSEServerConfig{Type: ServerTypeSSE}, want: ServerTypeSSE},
		{name: "http", config: &HTTPServerConfig{Type: ServerTypeHTTP}, want: ServerTypeHTTP},
		{name: "sdk", config: &SdkServerConfig{}, want: ServerTypeSDK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.config.GetType())
		})
	}
}

func TestSdkServerConfigOmitsInstance(t *testing.T) {
	cfg := NewSdkServerConfig(NewSDKServer("calc", "1.0.0"))

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"sdk","name":"calc"}`, string(data))
}

func TestStatusMergeInProcess(t *testing.T) {
	status := &Status{MCPServers: []ServerStatus{
		{Name: "calc", Status: "pending"},
		{Name: "remote", Status: "failed", Error: "refused"},
	}}

	status.MergeInProcess([]string{"calc", "local"})

	require.Len(t, status.MCPServers, 3)
	require.Equal(t, "pending", status.MCPServers[0].Status)
	require.Equal(t, ServerStatus{Name: "local", Status: "connected"}, status.MCPServers[2])
}
