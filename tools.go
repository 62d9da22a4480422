package claudewire

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/mark3labs/mcp-go/server"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	internalmcp "github.com/wagiedev/claudewire/internal/mcp"
)

type (
	// CallToolResult is an MCP tool result. A ToolHandler may return one to
	// control the content blocks sent back to the model.
	CallToolResult = mcp.CallToolResult

	// ToolAnnotations are optional hints about a tool's behavior.
	ToolAnnotations = mcp.ToolAnnotations

	// Schema is a JSON Schema describing a tool's input.
	Schema = jsonschema.Schema
)

// ToolHandler answers one call of an in-process tool with the decoded
// arguments.
//
// A *CallToolResult is returned as is, a string becomes a text block and any
// other value is encoded as JSON text. A non-nil error is reported to the
// model as a tool error, not as a protocol failure.
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

// ToolSpec describes a tool served by NewToolServer.
type ToolSpec struct {
	Name        string
	Description string
	// Schema defaults to an open object schema.
	Schema      *Schema
	Annotations *ToolAnnotations
	Handler     ToolHandler
}

// NewToolServer builds an in-process MCP server for tools. The CLI reaches it
// through mcp_message control requests and addresses its tools as
// mcp__<name>__<tool>:
//
//	add := claudewire.ToolSpec{
//	    Name:        "add",
//	    Description: "Add two numbers",
//	    Schema:      claudewire.SimpleSchema(map[string]string{"a": "float64", "b": "float64"}),
//	    Handler: func(_ context.Context, args map[string]any) (any, error) {
//	        return args["a"].(float64) + args["b"].(float64), nil
//	    },
//	}
//
//	client.Start(ctx,
//	    claudewire.WithMCPServer("calc", claudewire.NewToolServer("calc", "1.0.0", add)),
//	    claudewire.WithAllowedTools("mcp__calc__add"),
//	)
func NewToolServer(name, version string, tools ...ToolSpec) *MCPSdkServerConfig {
	srv := internalmcp.NewSDKServer(name, version)

	for _, spec := range tools {
		schema := spec.Schema
		if schema == nil {
			schema = &jsonschema.Schema{Type: "object"}
		}

		tool := internalmcp.NewTool(spec.Name, spec.Description, schema)
		tool.Annotations = spec.Annotations

		srv.AddTool(tool, spec.callHandler())
	}

	return internalmcp.NewSdkServerConfig(srv)
}

// WithToolServer registers tools in-process under name.
func WithToolServer(name string, tools ...ToolSpec) Option {
	return WithMCPServer(name, NewToolServer(name, "1.0.0", tools...))
}

// CreateMCPGoServer serves an existing github.com/mark3labs/mcp-go server
// in-process under name.
func CreateMCPGoServer(name string, srv *server.MCPServer) *MCPSdkServerConfig {
	return internalmcp.NewSdkServerConfig(internalmcp.NewMCPGoServer(name, srv))
}

// WithMCPGoServer registers an mcp-go server in-process under name.
func WithMCPGoServer(name string, srv *server.MCPServer) Option {
	return WithMCPServer(name, CreateMCPGoServer(name, srv))
}

func (t ToolSpec) callHandler() mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := internalmcp.ParseArguments(req)
		if err != nil {
			return internalmcp.ErrorResult(err.Error()), nil
		}

		if t.Handler == nil {
			return internalmcp.ErrorResult("tool " + t.Name + " has no handler"), nil
		}

		out, err := t.Handler(ctx, args)
		if err != nil {
			return internalmcp.ErrorResult(err.Error()), nil
		}

		return toolResult(out), nil
	}
}

func toolResult(out any) *mcp.CallToolResult {
	switch v := out.(type) {
	case *mcp.CallToolResult:
		return v
	case string:
		return internalmcp.TextResult(v)
	case nil:
		return &mcp.CallToolResult{Content: []mcp.Content{}}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return internalmcp.ErrorResult(fmt.Sprintf("encode tool result: %v", err))
	}

	return internalmcp.TextResult(string(data))
}

// SimpleSchema builds an object schema from property names to Go type names
// such as "string", "int", "float64", "bool" or "[]string". Every property is
// required.
func SimpleSchema(props map[string]string) *Schema {
	return internalmcp.SimpleSchema(props)
}

// TextResult returns a tool result holding text.
func TextResult(text string) *CallToolResult {
	return internalmcp.TextResult(text)
}

// ErrorResult returns a tool result flagged as an error.
func ErrorResult(message string) *CallToolResult {
	return internalmcp.ErrorResult(message)
}

// ImageResult returns a tool result holding one image.
func ImageResult(data []byte, mimeType string) *CallToolResult {
	return internalmcp.ImageResult(data, mimeType)
}
