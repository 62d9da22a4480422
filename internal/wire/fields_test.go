package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookup_DualCase(t *testing.T) {
	snake := map[string]any{"session_id": "abc"}
	camel := map[string]any{"sessionId": "abc"}

	require.Equal(t, String(snake, "session_id"), String(camel, "session_id"))
	require.Equal(t, "abc", String(camel, "session_id"))
}

func TestLookup_SnakeCaseWins(t *testing.T) {
	m := map[string]any{"tool_use_id": "snake", "toolUseId": "camel"}

	require.Equal(t, "snake", String(m, "tool_use_id"))
}

func TestLookup_NullFallsThroughToCamelCase(t *testing.T) {
	m := map[string]any{"parent_tool_use_id": nil, "parentToolUseId": "toolu_1"}

	require.Equal(t, "toolu_1", String(m, "parent_tool_use_id"))

	v, ok := Lookup(map[string]any{"parent_tool_use_id": nil}, "parent_tool_use_id")
	require.True(t, ok)
	require.Nil(t, v)

	v, ok = Lookup(map[string]any{"session_id": nil, "sessionId": nil}, "session_id")
	require.True(t, ok)
	require.Nil(t, v)
}

func TestLookup_Missing(t *testing.T) {
	_, ok := Lookup(nil, "anything")
	require.False(t, ok)

	_, ok = Lookup(map[string]any{"other": 1}, "session_id")
	require.False(t, ok)

	require.Nil(t, StringPtr(map[string]any{}, "tool_use_id"))
}

func TestTypedAccessors(t *testing.T) {
	m := map[string]any{
		"permissionSuggestions": []any{"a"},
		"blocked_path":          "/tmp",
		"input":                 map[string]any{"k": "v"},
		"interrupt":             true,
		"maxThinkingTokens":     float64(2048),
		"count":                 3,
	}

	require.Equal(t, []any{"a"}, Slice(m, "permission_suggestions"))
	require.Equal(t, "/tmp", *StringPtr(m, "blocked_path"))
	require.Equal(t, map[string]any{"k": "v"}, Map(m, "input"))
	require.True(t, Bool(m, "interrupt"))

	n, ok := Int(m, "max_thinking_tokens")
	require.True(t, ok)
	require.Equal(t, 2048, n)

	n, ok = Int(m, "count")
	require.True(t, ok)
	require.Equal(t, 3, n)

	_, ok = Int(m, "blocked_path")
	require.False(t, ok)
}

func TestCaseConversion(t *testing.T) {
	tests := []struct {
		snake string
		camel string
	}{
		{snake: "session_id", camel: "sessionId"},
		{snake: "hook_event_name", camel: "hookEventName"},
		{snake: "additional_context", camel: "additionalContext"},
		{snake: "decision", camel: "decision"},
	}

	for _, tc := range tests {
		t.Run(tc.snake, func(t *testing.T) {
			require.Equal(t, tc.camel, SnakeToCamel(tc.snake))
			require.Equal(t, tc.snake, CamelToSnake(tc.camel))
		})
	}
}

func TestCamelKeys_Nested(t *testing.T) {
	in := map[string]any{
		"hook_event_name":            "PreToolUse",
		"permission_decision_reason": "ok",
		"updated_input": map[string]any{
			"file_path": "/a",
			"edits":     []any{map[string]any{"old_string": "x"}},
		},
	}

	got := CamelKeys(in)

	require.Equal(t, map[string]any{
		"hookEventName":            "PreToolUse",
		"permissionDecisionReason": "ok",
		"updatedInput": map[string]any{
			"filePath": "/a",
			"edits":    []any{map[string]any{"oldString": "x"}},
		},
	}, got)

	// input is left untouched
	require.Contains(t, in, "hook_event_name")
}
