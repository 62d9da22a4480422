package claudewire

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpc sends one JSON-RPC request to an in-process server and returns its result.
func rpc(t *testing.T, cfg *MCPSdkServerConfig, method string, params map[string]any) map[string]any {
	t.Helper()

	msg := map[string]any{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		msg["params"] = params
	}

	resp, err := cfg.Instance.Handle(context.Background(), msg)
	require.NoError(t, err)

	result, ok := resp["result"].(map[string]any)
	require.True(t, ok, "no result in %v", resp)

	return result
}

func TestNewToolServer_ResultShapes(t *testing.T) {
	tests := []struct {
		name    string
		handler ToolHandler
		want    map[string]any
		isError bool
	}{
		{
			name:    "string is text",
			handler: func(context.Context, map[string]any) (any, error) { return "done", nil },
			want:    map[string]any{"type": "text", "text": "done"},
		},
		{
			name: "value is JSON text",
			handler: func(_ context.Context, args map[string]any) (any, error) {
				return map[string]any{"n": args["n"].(float64) * 2}, nil
			},
			want: map[string]any{"type": "text", "text": `{"n":42}`},
		},
		{
			name: "result passes through",
			handler: func(context.Context, map[string]any) (any, error) {
				return ImageResult([]byte("png"), "image/png"), nil
			},
			want: map[string]any{"type": "image", "data": []byte("png"), "mimeType": "image/png"},
		},
		{
			name:    "error is a tool error",
			handler: func(context.Context, map[string]any) (any, error) { return nil, stderrors.New("disk full") },
			want:    map[string]any{"type": "text", "text": "disk full"},
			isError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewToolServer("calc", "1.0.0", ToolSpec{Name: "op", Handler: tc.handler})

			result := rpc(t, cfg, "tools/call", map[string]any{
				"name":      "op",
				"arguments": map[string]any{"n": 21.0},
			})

			content, ok := result["content"].([]map[string]any)
			require.True(t, ok)
			require.Len(t, content, 1)
			assert.Equal(t, tc.want, content[0])
			assert.Equal(t, tc.isError, result["isError"] == true)
		})
	}
}

func TestNewToolServer_NilResultAndMissingHandler(t *testing.T) {
	cfg := NewToolServer("calc", "1.0.0",
		ToolSpec{Name: "noop", Handler: func(context.Context, map[string]any) (any, error) { return nil, nil }},
		ToolSpec{Name: "broken"},
	)

	result := rpc(t, cfg, "tools/call", map[string]any{"name": "noop"})
	assert.Empty(t, result["content"])
	assert.NotContains(t, result, "isError")

	result = rpc(t, cfg, "tools/call", map[string]any{"name": "broken"})
	assert.Equal(t, true, result["isError"])
}

func TestNewToolServer_ListsSchemaAndAnnotations(t *testing.T) {
	readOnly := &ToolAnnotations{ReadOnlyHint: true, Title: "Lookup"}

	cfg := NewToolServer("kv", "2.0.0",
		ToolSpec{
			Name:        "get",
			Description: "Read a key",
			Schema:      SimpleSchema(map[string]string{"key": "string"}),
			Annotations: readOnly,
			Handler:     func(context.Context, map[string]any) (any, error) { return "v", nil },
		},
		ToolSpec{
			Name:    "dump",
			Handler: func(context.Context, map[string]any) (any, error) { return "{}", nil },
		},
	)

	assert.Equal(t, MCPServerTypeSDK, cfg.Type)
	assert.Equal(t, "kv", cfg.Name)

	tools, ok := rpc(t, cfg, "tools/list", nil)["tools"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, tools, 2)

	dump, get := tools[0], tools[1]

	assert.Equal(t, "dump", dump["name"])
	assert.Equal(t, map[string]any{"type": "object"}, dump["inputSchema"])
	assert.NotContains(t, dump, "annotations")

	assert.Equal(t, "get", get["name"])
	schema, _ := get["inputSchema"].(map[string]any)
	assert.Equal(t, []any{"key"}, schema["required"])

	annotations, ok := get["annotations"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, annotations["readOnlyHint"])
	assert.Equal(t, "Lookup", annotations["title"])
}

func TestWithToolServer_RegistersUnderName(t *testing.T) {
	options := applyOptions([]Option{WithToolServer("calc", ToolSpec{
		Name:    "add",
		Handler: func(_ context.Context, args map[string]any) (any, error) { return args["a"].(float64) + 1, nil },
	})})

	cfg, ok := options.MCPServers["calc"].(*MCPSdkServerConfig)
	require.True(t, ok)
	assert.True(t, options.HasToolServers())

	result := rpc(t, cfg, "tools/call", map[string]any{"name": "add", "arguments": map[string]any{"a": 1.0}})
	content, _ := result["content"].([]map[string]any)
	require.Len(t, content, 1)
	assert.Equal(t, "2", content[0]["text"])
}

func TestWithMCPGoServer(t *testing.T) {
	srv := server.NewMCPServer("notes", "0.2.0", server.WithToolCapabilities(true))

	options := applyOptions([]Option{WithMCPGoServer("notes", srv)})

	cfg, ok := options.MCPServers["notes"].(*MCPSdkServerConfig)
	require.True(t, ok)
	assert.Equal(t, MCPServerTypeSDK, cfg.Type)
	assert.Equal(t, "notes", cfg.Instance.Name())
}
