package hook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseInput_DualCase(t *testing.T) {
	snake := ParseInput(map[string]any{
		"hook_event_name": "PreToolUse",
		"session_id":      "s1",
		"tool_name":       "Bash",
		"tool_input":      map[string]any{"command": "ls"},
		"tool_use_id":     "toolu_1",
	})

	camel := ParseInput(map[string]any{
		"hookEventName": "PreToolUse",
		"sessionId":     "s1",
		"toolName":      "Bash",
		"toolInput":     map[string]any{"command": "ls"},
		"toolUseId":     "toolu_1",
	})

	for _, in := range []*Input{snake, camel} {
		require.Equal(t, EventPreToolUse, in.EventName)
		require.Equal(t, "s1", in.SessionID)
		require.Equal(t, "Bash", in.ToolName)
		require.Equal(t, "ls", in.ToolInput["command"])
		require.Equal(t, "toolu_1", in.ToolUseID)
	}
}

func TestParseInput_EventSpecificField(t *testing.T) {
	in := ParseInput(map[string]any{
		"hook_event_name": "Stop",
		"stopHookActive":  true,
	})

	v, ok := in.Field("stop_hook_active")
	require.True(t, ok)
	require.Equal(t, true, v)
}

func TestParseInput_Nil(t *testing.T) {
	in := ParseInput(nil)

	require.NotNil(t, in.Raw)
	require.Empty(t, in.EventName)
}

func TestOutputWire(t *testing.T) {
	f := false
	reason := "dangerous"
	block := "block"
	timeout := 3000

	tests := []struct {
		name string
		out  *Output
		want map[string]any
	}{
		{
			name: "nil continues",
			out:  nil,
			want: map[string]any{"continue": true},
		},
		{
			name: "stop with reason",
			out: &Output{
				Continue:   &f,
				StopReason: &reason,
				Decision:   &block,
			},
			want: map[string]any{"continue": false, "stopReason": "dangerous", "decision": "block"},
		},
		{
			name: "async",
			out:  &Output{Async: true, AsyncTimeout: &timeout},
			want: map[string]any{"async": true, "asyncTimeout": 3000},
		},
		{
			name: "specific output keys become camelCase",
			out: &Output{
				SpecificOutput: map[string]any{
					"hook_event_name":            "PreToolUse",
					"permission_decision":        "deny",
					"permission_decision_reason": "nope",
				},
			},
			want: map[string]any{
				"continue": true,
				"hookSpecificOutput": map[string]any{
					"hookEventName":            "PreToolUse",
					"permissionDecision":       "deny",
					"permissionDecisionReason": "nope",
				},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.out.Wire())
		})
	}
}

func TestEvents_Sorted(t *testing.T) {
	table := map[Event][]*Matcher{
		EventStop:        nil,
		EventPostToolUse: nil,
		EventPreToolUse:  nil,
	}

	require.Equal(t, []Event{EventPostToolUse, EventPreToolUse, EventStop}, Events(table))
}
