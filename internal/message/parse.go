package message

import (
	"fmt"
	"log/slog"
	"maps"

	"github.com/wagiedev/claudewire/internal/errors"
	"github.com/wagiedev/claudewire/internal/wire"
)

// Parse converts a raw JSON map into a typed Message.
//
// Field names are read in either snake_case or camelCase. Unknown message
// types return errors.ErrUnknownMessageType so callers can skip them.
func Parse(log *slog.Logger, data map[string]any) (Message, error) {
	log = log.With("component", "message_parser")

	msgType := wire.String(data, "type")
	if msgType == "" {
		log.Debug("Message missing 'type' field")

		return nil, &errors.MessageParseError{
			Message: "missing or invalid 'type' field",
			Err:     fmt.Errorf("missing or invalid 'type' field"),
			Data:    data,
		}
	}

	log.Debug("Parsing message", "message_type", msgType)

	var (
		msg Message
		err error
	)

	switch msgType {
	case "user":
		msg, err = parseUserMessage(data)
	case "assistant":
		msg, err = parseAssistantMessage(data)
	case "system":
		msg, err = parseSystemMessage(data)
	case "result":
		msg, err = parseResultMessage(data)
	case "stream_event":
		msg, err = parseStreamEvent(data)
	default:
		log.Debug("Skipping unknown message type", "message_type", msgType)

		return nil, errors.ErrUnknownMessageType
	}

	if err != nil {
		return nil, &errors.MessageParseError{
			Message: err.Error(),
			Err:     err,
			Data:    data,
		}
	}

	return msg, nil
}

// parseUserMessage parses a UserMessage. The wire format nests the content
// under "message".
func parseUserMessage(data map[string]any) (*UserMessage, error) {
	messageData := wire.Map(data, "message")
	if messageData == nil {
		return nil, fmt.Errorf("user message: missing or invalid 'message' field")
	}

	msg := &UserMessage{
		UUID:            wire.StringPtr(data, "uuid"),
		ParentToolUseID: wire.StringPtr(data, "parent_tool_use_id"),
		SessionID:       wire.String(data, "session_id"),
		ToolUseResult:   wire.Map(data, "tool_use_result"),
	}

	switch content := messageData["content"].(type) {
	case string:
		msg.Text = &content
		msg.Content = []ContentBlock{&TextBlock{Type: BlockTypeText, Text: content}}
	case []any:
		blocks, err := parseContentBlocks(content)
		if err != nil {
			return nil, fmt.Errorf("user message: %w", err)
		}

		msg.Content = blocks
	default:
		return nil, fmt.Errorf("user message: content must be a string or an array")
	}

	return msg, nil
}

// parseAssistantMessage parses an AssistantMessage.
func parseAssistantMessage(data map[string]any) (*AssistantMessage, error) {
	messageData := wire.Map(data, "message")
	if messageData == nil {
		return nil, fmt.Errorf("assistant message: missing or invalid 'message' field")
	}

	content, ok := messageData["content"].([]any)
	if !ok {
		return nil, fmt.Errorf("assistant message: missing or invalid 'content' field")
	}

	blocks, err := parseContentBlocks(content)
	if err != nil {
		return nil, fmt.Errorf("assistant message: %w", err)
	}

	msg := &AssistantMessage{
		Content:         blocks,
		Model:           wire.String(messageData, "model"),
		ParentToolUseID: wire.StringPtr(data, "parent_tool_use_id"),
		SessionID:       wire.String(data, "session_id"),
	}

	if errStr := wire.String(data, "error"); errStr != "" {
		msgErr := AssistantMessageError(errStr)
		msg.Error = &msgErr
	}

	return msg, nil
}

// parseSystemMessage parses a SystemMessage.
func parseSystemMessage(data map[string]any) (*SystemMessage, error) {
	subtype := wire.String(data, "subtype")
	if subtype == "" {
		return nil, fmt.Errorf("system message: missing or invalid 'subtype' field")
	}

	rest := maps.Clone(data)
	delete(rest, "type")
	delete(rest, "subtype")

	return &SystemMessage{Subtype: subtype, Data: rest}, nil
}

// parseResultMessage parses a ResultMessage.
func parseResultMessage(data map[string]any) (*ResultMessage, error) {
	subtype := wire.String(data, "subtype")
	if subtype == "" {
		return nil, fmt.Errorf("result message: missing or invalid 'subtype' field")
	}

	msg := &ResultMessage{
		Subtype:      subtype,
		IsError:      wire.Bool(data, "is_error"),
		SessionID:    wire.String(data, "session_id"),
		TotalCostUSD: floatPtr(data, "total_cost_usd"),
		Result:       wire.StringPtr(data, "result"),
	}

	msg.DurationMs, _ = wire.Int(data, "duration_ms")
	msg.DurationAPIMs, _ = wire.Int(data, "duration_api_ms")
	msg.NumTurns, _ = wire.Int(data, "num_turns")

	if v, ok := wire.Lookup(data, "structured_output"); ok {
		msg.StructuredOutput = v
	}

	if usage := wire.Map(data, "usage"); usage != nil {
		msg.Usage = &Usage{}
		msg.Usage.InputTokens, _ = wire.Int(usage, "input_tokens")
		msg.Usage.OutputTokens, _ = wire.Int(usage, "output_tokens")
		msg.Usage.CacheCreationInputTokens, _ = wire.Int(usage, "cache_creation_input_tokens")
		msg.Usage.CacheReadInputTokens, _ = wire.Int(usage, "cache_read_input_tokens")
	}

	return msg, nil
}

// parseStreamEvent parses a StreamEvent.
func parseStreamEvent(data map[string]any) (*StreamEvent, error) {
	event := wire.Map(data, "event")
	if event == nil {
		return nil, fmt.Errorf("stream event: missing or invalid 'event' field")
	}

	return &StreamEvent{
		UUID:            wire.String(data, "uuid"),
		SessionID:       wire.String(data, "session_id"),
		Event:           event,
		ParentToolUseID: wire.StringPtr(data, "parent_tool_use_id"),
	}, nil
}

func parseContentBlocks(raw []any) ([]ContentBlock, error) {
	blocks := make([]ContentBlock, 0, len(raw))

	for i, item := range raw {
		data, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("content block %d: expected object, got %T", i, item)
		}

		block, err := parseContentBlock(data)
		if err != nil {
			return nil, fmt.Errorf("content block %d: %w", i, err)
		}

		blocks = append(blocks, block)
	}

	return blocks, nil
}

func parseContentBlock(data map[string]any) (ContentBlock, error) {
	blockType := wire.String(data, "type")

	switch blockType {
	case BlockTypeText:
		return &TextBlock{Type: blockType, Text: wire.String(data, "text")}, nil
	case BlockTypeThinking:
		return &ThinkingBlock{
			Type:      blockType,
			Thinking:  wire.String(data, "thinking"),
			Signature: wire.String(data, "signature"),
		}, nil
	case BlockTypeToolUse:
		return &ToolUseBlock{
			Type:  blockType,
			ID:    wire.String(data, "id"),
			Name:  wire.String(data, "name"),
			Input: wire.Map(data, "input"),
		}, nil
	case BlockTypeToolResult:
		block := &ToolResultBlock{
			Type:      blockType,
			ToolUseID: wire.String(data, "tool_use_id"),
			IsError:   wire.Bool(data, "is_error"),
		}

		switch content := data["content"].(type) {
		case nil:
		case string:
			block.Content = []ContentBlock{&TextBlock{Type: BlockTypeText, Text: content}}
		case []any:
			nested, err := parseContentBlocks(content)
			if err != nil {
				return nil, fmt.Errorf("tool_result: %w", err)
			}

			block.Content = nested
		default:
			return nil, fmt.Errorf("tool_result: unsupported content %T", content)
		}

		return block, nil
	case "":
		return nil, fmt.Errorf("missing 'type' field")
	default:
		return &UnknownBlock{Type: blockType, Raw: data}, nil
	}
}

func floatPtr(m map[string]any, key string) *float64 {
	v, ok := wire.Lookup(m, key)
	if !ok {
		return nil
	}

	switch n := v.(type) {
	case float64:
		return &n
	case int:
		f := float64(n)

		return &f
	default:
		return nil
	}
}
