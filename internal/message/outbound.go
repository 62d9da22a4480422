package message

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/wagiedev/claudewire/internal/wire"
)

// DefaultSessionID is used for outbound messages that name no session.
const DefaultSessionID = "default"

// UserInput is one user turn written to the CLI.
//
// Set exactly one of Text or Blocks. Blocks are written as-is, so they may
// hold any content-block shape the CLI accepts (images, documents).
type UserInput struct {
	Text            string
	Blocks          []map[string]any
	SessionID       string
	ParentToolUseID *string
	UUID            string
}

// Wire returns the stream-json envelope for the input.
func (u *UserInput) Wire(defaultSessionID string) map[string]any {
	sessionID := u.SessionID
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	var content any = u.Text
	if u.Blocks != nil {
		blocks := make([]any, 0, len(u.Blocks))
		for _, b := range u.Blocks {
			blocks = append(blocks, b)
		}

		content = blocks
	}

	var parent any
	if u.ParentToolUseID != nil {
		parent = *u.ParentToolUseID
	}

	out := map[string]any{
		"type": "user",
		"message": map[string]any{
			"role":    "user",
			"content": content,
		},
		"parent_tool_use_id": parent,
		"session_id":         sessionID,
	}

	if u.UUID != "" {
		out["uuid"] = u.UUID
	}

	return out
}

// Outbound normalizes one stream item into a wire message.
//
// Accepted items:
//   - string: a user turn with text content
//   - UserInput or *UserInput
//   - map with a "type" field: sent unchanged apart from a default session_id
//   - map without "type": a record with content or text, plus optional
//     session_id, uuid and parent_tool_use_id in either naming convention
//   - json.RawMessage or []byte holding one of the map forms
func Outbound(item any, defaultSessionID string) (map[string]any, error) {
	switch v := item.(type) {
	case string:
		return (&UserInput{Text: v}).Wire(defaultSessionID), nil
	case UserInput:
		return v.Wire(defaultSessionID), nil
	case *UserInput:
		if v == nil {
			return nil, fmt.Errorf("unsupported stream item: nil *UserInput")
		}

		return v.Wire(defaultSessionID), nil
	case json.RawMessage:
		return outboundJSON(v, defaultSessionID)
	case []byte:
		return outboundJSON(v, defaultSessionID)
	case map[string]any:
		return outboundMap(v, defaultSessionID)
	default:
		return nil, fmt.Errorf("unsupported stream item %T", item)
	}
}

func outboundJSON(data []byte, defaultSessionID string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("decode stream item: %w", err)
	}

	return outboundMap(obj, defaultSessionID)
}

func outboundMap(obj map[string]any, defaultSessionID string) (map[string]any, error) {
	if _, typed := obj["type"]; typed {
		out := maps.Clone(obj)

		if _, ok := wire.Lookup(out, "session_id"); !ok {
			out["session_id"] = sessionOrDefault(defaultSessionID)
		}

		return out, nil
	}

	content, ok := wire.Lookup(obj, "content")
	if !ok {
		content, ok = obj["text"]
	}

	if !ok {
		return nil, fmt.Errorf("stream record has neither content nor text")
	}

	input := &UserInput{
		SessionID:       wire.String(obj, "session_id"),
		ParentToolUseID: wire.StringPtr(obj, "parent_tool_use_id"),
		UUID:            wire.String(obj, "uuid"),
	}

	switch c := content.(type) {
	case string:
		input.Text = c
	case []any:
		input.Blocks = make([]map[string]any, 0, len(c))

		for i, b := range c {
			block, ok := b.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("stream record content block %d: expected object, got %T", i, b)
			}

			input.Blocks = append(input.Blocks, block)
		}
	default:
		return nil, fmt.Errorf("stream record content must be a string or an array, got %T", content)
	}

	return input.Wire(defaultSessionID), nil
}

func sessionOrDefault(id string) string {
	if id == "" {
		return DefaultSessionID
	}

	return id
}
