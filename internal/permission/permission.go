// Package permission provides tool permission callbacks and their wire form.
package permission

import (
	"context"
	"fmt"

	"github.com/wagiedev/claudewire/internal/wire"
)

// Mode represents different permission handling modes.
type Mode string

const (
	// ModeDefault uses standard permission prompts.
	ModeDefault Mode = "default"
	// ModeAcceptEdits automatically accepts file edits.
	ModeAcceptEdits Mode = "acceptEdits"
	// ModePlan enables plan mode for implementation planning.
	ModePlan Mode = "plan"
	// ModeBypassPermissions bypasses all permission checks.
	ModeBypassPermissions Mode = "bypassPermissions"
)

// NormalizeMode maps legacy aliases onto the modes the CLI accepts.
func NormalizeMode(mode string) Mode {
	switch mode {
	case "acceptAll":
		return ModeBypassPermissions
	case "prompt":
		return ModeDefault
	default:
		return Mode(mode)
	}
}

// UpdateType represents the type of permission update.
type UpdateType string

const (
	UpdateTypeAddRules          UpdateType = "addRules"
	UpdateTypeReplaceRules      UpdateType = "replaceRules"
	UpdateTypeRemoveRules       UpdateType = "removeRules"
	UpdateTypeSetMode           UpdateType = "setMode"
	UpdateTypeAddDirectories    UpdateType = "addDirectories"
	UpdateTypeRemoveDirectories UpdateType = "removeDirectories"
)

// Behavior represents the permission behavior for a rule.
type Behavior string

const (
	BehaviorAllow Behavior = "allow"
	BehaviorDeny  Behavior = "deny"
	BehaviorAsk   Behavior = "ask"
)

// RuleValue represents a permission rule.
type RuleValue struct {
	ToolName    string
	RuleContent *string
}

// Update is a permission change suggested by the CLI or applied by a callback.
type Update struct {
	Type        UpdateType
	Rules       []*RuleValue
	Behavior    *Behavior
	Mode        *Mode
	Directories []string
	Destination *string // "userSettings", "projectSettings", "localSettings" or "session"
}

// ParseUpdate decodes a suggestion sent by the CLI. Keys may use either case.
func ParseUpdate(raw map[string]any) *Update {
	u := &Update{Type: UpdateType(wire.String(raw, "type"))}

	u.Destination = wire.StringPtr(raw, "destination")

	if b := wire.StringPtr(raw, "behavior"); b != nil {
		behavior := Behavior(*b)
		u.Behavior = &behavior
	}

	if m := wire.StringPtr(raw, "mode"); m != nil {
		mode := Mode(*m)
		u.Mode = &mode
	}

	for _, r := range wire.Slice(raw, "rules") {
		ruleMap, ok := r.(map[string]any)
		if !ok {
			continue
		}

		u.Rules = append(u.Rules, &RuleValue{
			ToolName:    wire.String(ruleMap, "tool_name"),
			RuleContent: wire.StringPtr(ruleMap, "rule_content"),
		})
	}

	for _, d := range wire.Slice(raw, "directories") {
		if dir, ok := d.(string); ok {
			u.Directories = append(u.Directories, dir)
		}
	}

	return u
}

// Wire converts the update to the CLI's camelCase form.
func (u *Update) Wire() map[string]any {
	result := make(map[string]any, 6)
	result["type"] = string(u.Type)

	if u.Destination != nil {
		result["destination"] = *u.Destination
	}

	if len(u.Rules) > 0 {
		rules := make([]map[string]any, len(u.Rules))
		for i, rule := range u.Rules {
			ruleMap := map[string]any{"toolName": rule.ToolName}
			if rule.RuleContent != nil {
				ruleMap["ruleContent"] = *rule.RuleContent
			}

			rules[i] = ruleMap
		}

		result["rules"] = rules
	}

	if u.Behavior != nil {
		result["behavior"] = string(*u.Behavior)
	}

	if u.Mode != nil {
		result["mode"] = string(*u.Mode)
	}

	if len(u.Directories) > 0 {
		result["directories"] = u.Directories
	}

	return result
}

// Context provides context for tool permission callbacks.
type Context struct {
	// Suggestions are permission updates the CLI proposes.
	Suggestions []*Update

	// BlockedPath is the path that triggered the check, if any.
	BlockedPath *string

	// ToolUseID identifies the tool call being checked.
	ToolUseID string
}

// Result is a permission decision. It is either *ResultAllow or *ResultDeny.
type Result interface {
	Wire() map[string]any
}

// Compile-time verification that permission result types implement Result.
var (
	_ Result = (*ResultAllow)(nil)
	_ Result = (*ResultDeny)(nil)
)

// ResultAllow allows the tool call, optionally rewriting its input.
type ResultAllow struct {
	UpdatedInput       map[string]any
	UpdatedPermissions []*Update
}

// Wire implements Result.
func (r *ResultAllow) Wire() map[string]any {
	result := map[string]any{"behavior": string(BehaviorAllow)}

	if r.UpdatedInput != nil {
		result["updatedInput"] = r.UpdatedInput
	}

	if r.UpdatedPermissions != nil {
		updates := make([]map[string]any, len(r.UpdatedPermissions))
		for i, u := range r.UpdatedPermissions {
			updates[i] = u.Wire()
		}

		result["updatedPermissions"] = updates
	}

	return result
}

// ResultDeny denies the tool call.
type ResultDeny struct {
	Message   string
	Interrupt bool // stop the whole turn, not just this call
}

// Wire implements Result.
func (r *ResultDeny) Wire() map[string]any {
	return map[string]any{
		"behavior":  string(BehaviorDeny),
		"message":   r.Message,
		"interrupt": r.Interrupt,
	}
}

// Callback is called before each tool use for permission checking.
type Callback func(
	ctx context.Context,
	toolName string,
	input map[string]any,
	permCtx *Context,
) (Result, error)

// Decide runs cb and returns the wire payload. A nil callback allows every call.
func Decide(
	ctx context.Context,
	cb Callback,
	toolName string,
	input map[string]any,
	permCtx *Context,
) (map[string]any, error) {
	if cb == nil {
		return (&ResultAllow{}).Wire(), nil
	}

	decision, err := cb(ctx, toolName, input, permCtx)
	if err != nil {
		return nil, err
	}

	switch d := decision.(type) {
	case *ResultAllow:
		return d.Wire(), nil
	case *ResultDeny:
		return d.Wire(), nil
	default:
		return nil, fmt.Errorf("permission callback must return *ResultAllow or *ResultDeny, got %T", decision)
	}
}
