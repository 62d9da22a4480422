package config

import (
	"encoding/json"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/wagiedev/claudewire/internal/permission"
)

// SDKVersion is reported to the CLI through the environment.
const SDKVersion = "0.1.0"

// CommandLine builds the CLI flags for these options. Framing flags and the
// prompt are added by the transport.
//
//nolint:gocyclo // each branch independently adds a flag
func (o *Options) CommandLine() []string {
	var args []string

	if o.PermissionMode != "" {
		args = append(args, "--permission-mode", string(permission.NormalizeMode(o.PermissionMode)))
	}

	if o.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(o.MaxTurns))
	}

	if o.Model != "" {
		args = append(args, "--model", o.Model)
	}

	if o.FallbackModel != "" {
		args = append(args, "--fallback-model", o.FallbackModel)
	}

	switch {
	case o.SystemPromptPreset != nil:
		if o.SystemPromptPreset.Append != nil && *o.SystemPromptPreset.Append != "" {
			args = append(args, "--append-system-prompt", *o.SystemPromptPreset.Append)
		}
	default:
		args = append(args, "--system-prompt", o.SystemPrompt)
	}

	if o.MaxThinkingTokens > 0 {
		args = append(args, "--max-thinking-tokens", strconv.Itoa(o.MaxThinkingTokens))
	}

	if o.IncludePartialMessages {
		args = append(args, "--include-partial-messages")
	}

	if len(o.MCPServers) > 0 {
		if data, err := json.Marshal(map[string]any{"mcpServers": o.MCPServers}); err == nil {
			args = append(args, "--mcp-config", string(data))
		}
	}

	if o.Settings != "" {
		args = append(args, "--settings", o.Settings)
	}

	if len(o.AllowedTools) > 0 {
		args = append(args, "--allowed-tools", strings.Join(o.AllowedTools, ","))
	}

	if len(o.DisallowedTools) > 0 {
		args = append(args, "--disallowed-tools", strings.Join(o.DisallowedTools, ","))
	}

	if o.PermissionPromptToolName != "" {
		args = append(args, "--permission-prompt-tool", o.PermissionPromptToolName)
	}

	for _, dir := range o.AddDirs {
		args = append(args, "--add-dir", dir)
	}

	if o.ContinueConversation {
		args = append(args, "--continue")
	}

	if o.Resume != "" {
		args = append(args, "--resume", o.Resume)
	}

	if o.ForkSession {
		args = append(args, "--fork-session")
	}

	sources := make([]string, len(o.SettingSources))
	for i, s := range o.SettingSources {
		sources[i] = string(s)
	}

	args = append(args, "--setting-sources", strings.Join(sources, ","))

	for _, key := range slices.Sorted(maps.Keys(o.ExtraArgs)) {
		if value := o.ExtraArgs[key]; value != nil {
			args = append(args, "--"+key, *value)
		} else {
			args = append(args, "--"+key)
		}
	}

	return args
}

// Environment builds the CLI environment: the current process environment,
// SDK markers, then Options.Env. Later entries win and each key appears once.
func (o *Options) Environment() []string {
	extra := []string{
		"CLAUDE_CODE_ENTRYPOINT=sdk-go",
		"CLAUDE_AGENT_SDK_VERSION=" + SDKVersion,
	}

	if o.EnableFileCheckpointing {
		extra = append(extra, "CLAUDE_CODE_ENABLE_SDK_FILE_CHECKPOINTING=true")
	}

	if o.Cwd != "" {
		extra = append(extra, "PWD="+o.Cwd)
	}

	for _, key := range slices.Sorted(maps.Keys(o.Env)) {
		extra = append(extra, key+"="+o.Env[key])
	}

	return mergeEnv(os.Environ(), extra)
}

// mergeEnv appends extra to base, keeping only the last value per key and
// dropping malformed entries.
func mergeEnv(base, extra []string) []string {
	all := append(slices.Clone(base), extra...)
	index := make(map[string]int, len(all))
	out := make([]string, 0, len(all))

	for _, kv := range all {
		key, _, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}

		if i, seen := index[key]; seen {
			out[i] = kv

			continue
		}

		index[key] = len(out)
		out = append(out, kv)
	}

	return out
}
