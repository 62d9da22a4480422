package message

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	sdkerrors "github.com/wagiedev/claudewire/internal/errors"
)

func TestParseAssistantMessage(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	tests := []struct {
		name           string
		data           map[string]any
		wantError      bool
		wantParseErr   bool
		wantErrorValue AssistantMessageError
		wantModel      string
		wantContentLen int
		wantToolUseID  *string
	}{
		{
			name: "no error field",
			data: map[string]any{
				"type": "assistant",
				"message": map[string]any{
					"content": []any{
						map[string]any{"type": "text", "text": "hello"},
					},
					"model": "claude-sonnet-4-5-20250514",
				},
			},
			wantModel:      "claude-sonnet-4-5-20250514",
			wantContentLen: 1,
		},
		{
			name: "rate_limit error",
			data: map[string]any{
				"type": "assistant",
				"message": map[string]any{
					"content": []any{},
					"model":   "claude-sonnet-4-5-20250514",
				},
				"error": "rate_limit",
			},
			wantError:      true,
			wantErrorValue: AssistantMessageErrorRateLimit,
			wantModel:      "claude-sonnet-4-5-20250514",
		},
		{
			name: "error at top level not in nested message",
			data: map[string]any{
				"type": "assistant",
				"message": map[string]any{
					"content": []any{
						map[string]any{"type": "text", "text": "partial response"},
					},
					"model": "claude-sonnet-4-5-20250514",
					"error": "should_be_ignored",
				},
				"error":              "billing_error",
				"parent_tool_use_id": "tool-123",
			},
			wantError:      true,
			wantErrorValue: AssistantMessageErrorBilling,
			wantModel:      "claude-sonnet-4-5-20250514",
			wantContentLen: 1,
			wantToolUseID:  new("tool-123"),
		},
		{
			name: "camelCase parent id",
			data: map[string]any{
				"type": "assistant",
				"message": map[string]any{
					"content": []any{},
				},
				"parentToolUseId": "tool-9",
			},
			wantToolUseID: new("tool-9"),
		},
		{
			name: "missing message field returns parse error",
			data: map[string]any{
				"type": "assistant",
			},
			wantParseErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse(logger, tt.data)

			if tt.wantParseErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)

			assistant, ok := msg.(*AssistantMessage)
			require.True(t, ok, "expected *AssistantMessage")
			require.Equal(t, "assistant", assistant.MessageType())
			require.Equal(t, tt.wantModel, assistant.Model)
			require.Len(t, assistant.Content, tt.wantContentLen)

			if tt.wantError {
				require.NotNil(t, assistant.Error)
				require.Equal(t, tt.wantErrorValue, *assistant.Error)
			} else {
				require.Nil(t, assistant.Error)
			}

			if tt.wantToolUseID != nil {
				require.NotNil(t, assistant.ParentToolUseID)
				require.Equal(t, *tt.wantToolUseID, *assistant.ParentToolUseID)
			}
		})
	}
}

func TestParseUserMessage(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Run("string content", func(t *testing.T) {
		msg, err := Parse(logger, map[string]any{
			"type":       "user",
			"uuid":       "u-1",
			"session_id": "s-1",
			"message":    map[string]any{"role": "user", "content": "hi"},
		})
		require.NoError(t, err)

		user, ok := msg.(*UserMessage)
		require.True(t, ok)
		require.NotNil(t, user.Text)
		require.Equal(t, "hi", *user.Text)
		require.Equal(t, "s-1", user.SessionID)
		require.Equal(t, "u-1", *user.UUID)
		require.Len(t, user.Content, 1)
	})

	t.Run("tool result with string content", func(t *testing.T) {
		msg, err := Parse(logger, map[string]any{
			"type": "user",
			"message": map[string]any{
				"content": []any{
					map[string]any{
						"type":        "tool_result",
						"tool_use_id": "toolu_1",
						"content":     "file contents",
						"is_error":    true,
					},
				},
			},
			"toolUseResult": map[string]any{"stdout": "ok"},
		})
		require.NoError(t, err)

		user, ok := msg.(*UserMessage)
		require.True(t, ok)
		require.Nil(t, user.Text)
		require.Equal(t, map[string]any{"stdout": "ok"}, user.ToolUseResult)

		result, ok := user.Content[0].(*ToolResultBlock)
		require.True(t, ok)
		require.Equal(t, "toolu_1", result.ToolUseID)
		require.True(t, result.IsError)
		require.Equal(t, []ContentBlock{&TextBlock{Type: "text", Text: "file contents"}}, result.Content)
	})

	t.Run("invalid content", func(t *testing.T) {
		_, err := Parse(logger, map[string]any{
			"type":    "user",
			"message": map[string]any{"content": 42.0},
		})

		_, ok := errors.AsType[*sdkerrors.MessageParseError](err)
		require.True(t, ok, "expected *MessageParseError, got %T", err)
	})
}

func TestParseResultMessage(t *testing.T) {
	msg, err := Parse(slog.New(slog.DiscardHandler), map[string]any{
		"type":             "result",
		"subtype":          "success",
		"duration_ms":      1500.0,
		"durationApiMs":    1200.0,
		"is_error":         false,
		"num_turns":        2.0,
		"session_id":       "s-1",
		"total_cost_usd":   0.0123,
		"result":           "done",
		"structuredOutput": map[string]any{"answer": 4.0},
		"usage": map[string]any{
			"input_tokens":            10.0,
			"output_tokens":           20.0,
			"cache_read_input_tokens": 5.0,
		},
	})
	require.NoError(t, err)

	result, ok := msg.(*ResultMessage)
	require.True(t, ok)
	require.Equal(t, "success", result.Subtype)
	require.Equal(t, 1500, result.DurationMs)
	require.Equal(t, 1200, result.DurationAPIMs)
	require.Equal(t, 2, result.NumTurns)
	require.Equal(t, "s-1", result.SessionID)
	require.InDelta(t, 0.0123, *result.TotalCostUSD, 1e-9)
	require.Equal(t, "done", *result.Result)
	require.Equal(t, map[string]any{"answer": 4.0}, result.StructuredOutput)
	require.Equal(t, &Usage{InputTokens: 10, OutputTokens: 20, CacheReadInputTokens: 5}, result.Usage)
}

func TestParseSystemAndStreamEvent(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	msg, err := Parse(logger, map[string]any{
		"type":    "system",
		"subtype": "init",
		"model":   "claude-sonnet-4-5",
	})
	require.NoError(t, err)
	require.Equal(t, &SystemMessage{Subtype: "init", Data: map[string]any{"model": "claude-sonnet-4-5"}}, msg)

	msg, err = Parse(logger, map[string]any{
		"type":       "stream_event",
		"uuid":       "e-1",
		"session_id": "s-1",
		"event":      map[string]any{"type": "content_block_delta"},
	})
	require.NoError(t, err)

	event, ok := msg.(*StreamEvent)
	require.True(t, ok)
	require.Equal(t, "e-1", event.UUID)
	require.Equal(t, "content_block_delta", event.Event["type"])
}

func TestParseUnknownMessageTypes(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	tests := []struct {
		name    string
		data    map[string]any
		wantErr error
	}{
		{
			name: "rate_limit_event",
			data: map[string]any{
				"type":    "rate_limit_event",
				"status":  "rejected",
				"message": "Rate limit exceeded. Please wait.",
			},
			wantErr: sdkerrors.ErrUnknownMessageType,
		},
		{
			name: "arbitrary unknown type",
			data: map[string]any{
				"type": "some_future_event_type",
				"data": map[string]any{"key": "value"},
			},
			wantErr: sdkerrors.ErrUnknownMessageType,
		},
		{
			name: "missing type field returns MessageParseError",
			data: map[string]any{"data": "no type here"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse(logger, tt.data)
			require.Nil(t, msg)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			_, ok := errors.AsType[*sdkerrors.MessageParseError](err)
			require.True(t, ok, "expected *MessageParseError, got %T", err)
		})
	}
}

func TestParseUnknownContentBlockType(t *testing.T) {
	data := map[string]any{
		"type": "assistant",
		"message": map[string]any{
			"content": []any{
				map[string]any{"type": "some_new_block_type", "payload": "x"},
				map[string]any{"type": "text", "text": "normal text"},
			},
		},
	}

	msg, err := Parse(slog.New(slog.DiscardHandler), data)
	require.NoError(t, err)

	assistant, ok := msg.(*AssistantMessage)
	require.True(t, ok, "expected *AssistantMessage")
	require.Len(t, assistant.Content, 2)

	unknown, ok := assistant.Content[0].(*UnknownBlock)
	require.True(t, ok, "expected *UnknownBlock")
	require.Equal(t, "some_new_block_type", unknown.BlockType())
	require.Equal(t, "x", unknown.Raw["payload"])

	textBlock, ok := assistant.Content[1].(*TextBlock)
	require.True(t, ok, "expected *TextBlock")
	require.Equal(t, "normal text", textBlock.Text)
}
