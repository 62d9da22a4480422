package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpdateWire_Minimal(t *testing.T) {
	update := &Update{Type: UpdateTypeSetMode}

	require.Equal(t, map[string]any{"type": "setMode"}, update.Wire())
}

func TestUpdateWire_Full(t *testing.T) {
	ruleContent := "allow all"
	behavior := BehaviorAllow
	mode := ModeAcceptEdits
	destination := "projectSettings"

	update := &Update{
		Type: UpdateTypeAddRules,
		Rules: []*RuleValue{
			{ToolName: "Read", RuleContent: &ruleContent},
			{ToolName: "Write"},
		},
		Behavior:    &behavior,
		Mode:        &mode,
		Directories: []string{"/workspace", "/tmp"},
		Destination: &destination,
	}

	require.Equal(t, map[string]any{
		"type":        "addRules",
		"destination": "projectSettings",
		"rules": []map[string]any{
			{"toolName": "Read", "ruleContent": "allow all"},
			{"toolName": "Write"},
		},
		"behavior":    "allow",
		"mode":        "acceptEdits",
		"directories": []string{"/workspace", "/tmp"},
	}, update.Wire())
}

func TestParseUpdate_DualCase(t *testing.T) {
	camel := ParseUpdate(map[string]any{
		"type":        "addRules",
		"behavior":    "allow",
		"destination": "session",
		"rules":       []any{map[string]any{"toolName": "Bash", "ruleContent": "ls"}},
	})

	snake := ParseUpdate(map[string]any{
		"type":        "addRules",
		"behavior":    "allow",
		"destination": "session",
		"rules":       []any{map[string]any{"tool_name": "Bash", "rule_content": "ls"}},
	})

	require.Equal(t, camel, snake)
	require.Equal(t, "Bash", camel.Rules[0].ToolName)
	require.Equal(t, "ls", *camel.Rules[0].RuleContent)
	require.Equal(t, BehaviorAllow, *camel.Behavior)
}

func TestResultWire(t *testing.T) {
	require.Equal(t,
		map[string]any{"behavior": "deny", "message": "blocked", "interrupt": false},
		(&ResultDeny{Message: "blocked"}).Wire(),
	)

	require.Equal(t,
		map[string]any{"behavior": "allow", "updatedInput": map[string]any{"x": 1}},
		(&ResultAllow{UpdatedInput: map[string]any{"x": 1}}).Wire(),
	)
}

type bogusResult struct{}

func (bogusResult) Wire() map[string]any { return nil }

func TestDecide(t *testing.T) {
	ctx := context.Background()

	got, err := Decide(ctx, nil, "Bash", nil, &Context{})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"behavior": "allow"}, got)

	deny := func(context.Context, string, map[string]any, *Context) (Result, error) {
		return &ResultDeny{Message: "no", Interrupt: true}, nil
	}

	got, err = Decide(ctx, deny, "Bash", nil, &Context{})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"behavior": "deny", "message": "no", "interrupt": true}, got)

	failing := func(context.Context, string, map[string]any, *Context) (Result, error) {
		return nil, errors.New("callback exploded")
	}

	_, err = Decide(ctx, failing, "Bash", nil, &Context{})
	require.EqualError(t, err, "callback exploded")

	bogus := func(context.Context, string, map[string]any, *Context) (Result, error) {
		return bogusResult{}, nil
	}

	_, err = Decide(ctx, bogus, "Bash", nil, &Context{})
	require.Error(t, err)
}

func TestNormalizeMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{in: "acceptAll", want: ModeBypassPermissions},
		{in: "prompt", want: ModeDefault},
		{in: "plan", want: ModePlan},
		{in: "acceptEdits", want: ModeAcceptEdits},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			require.Equal(t, tc.want, NormalizeMode(tc.in))
		})
	}
}
