package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Compile-time verification that SDKServer implements ServerInstance.
var _ ServerInstance = (*SDKServer)(nil)

// SDKServer is an in-process tool server whose tools use the official MCP
// SDK types.
//
// The official SDK's Server speaks over a transport, so SDKServer keeps its
// own registry and answers JSON-RPC messages delivered by the control protocol.
type SDKServer struct {
	name    string
	version string
	mu      sync.RWMutex
	tools   map[string]*sdkTool
}

type sdkTool struct {
	tool    *mcp.Tool
	handler mcp.ToolHandler
}

// NewSDKServer creates an empty in-process server.
func NewSDKServer(name, version string) *SDKServer {
	return &SDKServer{
		name:    name,
		version: version,
		tools:   make(map[string]*sdkTool, 8),
	}
}

// AddTool registers a tool with the server.
func (s *SDKServer) AddTool(tool *mcp.Tool, handler mcp.ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools[tool.Name] = &sdkTool{tool: tool, handler: handler}
}

// Name returns the server name.
func (s *SDKServer) Name() string { return s.name }

// Version returns the server version.
func (s *SDKServer) Version() string { return s.version }

// Handle answers one JSON-RPC message.
func (s *SDKServer) Handle(ctx context.Context, message map[string]any) (map[string]any, error) {
	id := MessageID(message)
	method, _ := message["method"].(string)
	params, _ := message["params"].(map[string]any)

	switch method {
	case "initialize":
		return ResultResponse(id, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": s.name, "version": s.version},
		}), nil

	case "notifications/initialized":
		return nil, nil

	case "tools/list":
		return ResultResponse(id, map[string]any{"tools": s.listTools()}), nil

	case "tools/call":
		if params == nil {
			return ErrorResponse(id, CodeInvalidParams, "Missing params for tools/call"), nil
		}

		name, _ := params["name"].(string)
		if name == "" {
			return ErrorResponse(id, CodeInvalidParams, "Missing tool name in params"), nil
		}

		arguments, _ := params["arguments"].(map[string]any)

		return ResultResponse(id, s.callTool(ctx, name, arguments)), nil

	default:
		return ErrorResponse(id, CodeMethodNotFound, "Method not found: "+method), nil
	}
}

// listTools returns tool metadata sorted by name.
func (s *SDKServer) listTools() []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]map[string]any, 0, len(s.tools))
	for _, t := range s.tools {
		entry := map[string]any{
			"name":        t.tool.Name,
			"description": t.tool.Description,
		}

		if schema := toMap(t.tool.InputSchema); schema != nil {
			entry["inputSchema"] = schema
		}

		if annotations := toMap(t.tool.Annotations); annotations != nil {
			entry["annotations"] = annotations
		}

		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b map[string]any) int {
		return strings.Compare(a["name"].(string), b["name"].(string))
	})

	return result
}

// callTool runs a tool. Failures are reported inside the result, as MCP expects.
func (s *SDKServer) callTool(ctx context.Context, name string, input map[string]any) map[string]any {
	s.mu.RLock()
	t, exists := s.tools[name]
	s.mu.RUnlock()

	if !exists {
		return errorContent("Tool not found: " + name)
	}

	inputBytes, err := json.Marshal(input)
	if err != nil {
		return errorContent("Failed to marshal input: " + err.Error())
	}

	result, err := t.handler(ctx, &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      name,
			Arguments: inputBytes,
		},
	})
	if err != nil {
		return errorContent("Tool execution failed: " + err.Error())
	}

	return resultContent(result)
}

func errorContent(text string) map[string]any {
	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
		"isError": true,
	}
}

// resultContent converts a CallToolResult into its JSON-RPC result shape.
func resultContent(result *mcp.CallToolResult) map[string]any {
	if result == nil {
		return map[string]any{"content": []map[string]any{}}
	}

	content := make([]map[string]any, 0, len(result.Content))
	for _, c := range result.Content {
		switch v := c.(type) {
		case *mcp.TextContent:
			content = append(content, map[string]any{"type": "text", "text": v.Text})
		case *mcp.ImageContent:
			content = append(content, map[string]any{"type": "image", "data": v.Data, "mimeType": v.MIMEType})
		case *mcp.AudioContent:
			content = append(content, map[string]any{"type": "audio", "data": v.Data, "mimeType": v.MIMEType})
		case *mcp.ResourceLink:
			content = append(content, map[string]any{"type": "resource_link", "uri": v.URI, "name": v.Name})
		case *mcp.EmbeddedResource:
			if v.Resource != nil {
				content = append(content, map[string]any{
					"type": "resource",
					"resource": map[string]any{
						"uri":      v.Resource.URI,
						"mimeType": v.Resource.MIMEType,
						"text":     v.Resource.Text,
					},
				})
			}
		}
	}

	out := map[string]any{"content": content}
	if result.IsError {
		out["isError"] = true
	}

	return out
}

// toMap round-trips v through JSON. It returns nil for nil or unencodable values.
func toMap(v any) map[string]any {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}

	var m map[string]any
	if json.Unmarshal(data, &m) != nil {
		return nil
	}

	return m
}

// SimpleSchema creates an object schema from a name -> Go type map.
// Every property is required.
//
//	SimpleSchema(map[string]string{"a": "float64", "b": "string"})
func SimpleSchema(props map[string]string) *jsonschema.Schema {
	properties := make(map[string]*jsonschema.Schema, len(props))
	required := make([]string, 0, len(props))

	for name, goType := range props {
		properties[name] = goTypeToJSONSchema(goType)
		required = append(required, name)
	}

	slices.Sort(required)

	return &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

func goTypeToJSONSchema(goType string) *jsonschema.Schema {
	switch goType {
	case "string":
		return &jsonschema.Schema{Type: "string"}
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64":
		return &jsonschema.Schema{Type: "integer"}
	case "float32", "float64", "float", "number":
		return &jsonschema.Schema{Type: "number"}
	case "bool", "boolean":
		return &jsonschema.Schema{Type: "boolean"}
	case "any", "object", "map[string]any":
		return &jsonschema.Schema{Type: "object"}
	}

	if item, ok := strings.CutPrefix(goType, "[]"); ok && item != "" {
		return &jsonschema.Schema{Type: "array", Items: goTypeToJSONSchema(item)}
	}

	return &jsonschema.Schema{Type: "string"}
}

// NewTool creates an mcp.Tool with the given parameters.
func NewTool(name, description string, inputSchema *jsonschema.Schema) *mcp.Tool {
	return &mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
	}
}

// TextResult creates a CallToolResult with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// ErrorResult creates a CallToolResult indicating an error.
func ErrorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
		IsError: true,
	}
}

// ImageResult creates a CallToolResult with image content.
func ImageResult(data []byte, mimeType string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.ImageContent{Data: data, MIMEType: mimeType}},
	}
}

// ParseArguments unmarshals CallToolRequest arguments into a map.
func ParseArguments(req *mcp.CallToolRequest) (map[string]any, error) {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return make(map[string]any), nil
	}

	var args map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return nil, fmt.Errorf("unmarshal arguments: %w", err)
	}

	return args, nil
}
