package config

// SettingSource represents where settings should be loaded from.
type SettingSource string

const (
	// SettingSourceUser loads from user-level settings.
	SettingSourceUser SettingSource = "user"
	// SettingSourceProject loads from project-level settings.
	SettingSourceProject SettingSource = "project"
	// SettingSourceLocal loads from local-level settings.
	SettingSourceLocal SettingSource = "local"
)

// AgentDefinition defines a custom agent configuration.
type AgentDefinition struct {
	Description string   `json:"description"`
	Prompt      string   `json:"prompt"`
	Tools       []string `json:"tools,omitempty"`
	Model       *string  `json:"model,omitempty"` // "sonnet", "opus", "haiku", "inherit"
}

// SystemPromptPreset defines a system prompt preset configuration.
type SystemPromptPreset struct {
	Type   string  `json:"type"`   // "preset"
	Preset string  `json:"preset"` // "claude_code"
	Append *string `json:"append,omitempty"`
}

// AgentsWire returns the agents map in its initialize-request shape, or nil.
func (o *Options) AgentsWire() map[string]any {
	if len(o.Agents) == 0 {
		return nil
	}

	out := make(map[string]any, len(o.Agents))

	for name, agent := range o.Agents {
		if agent == nil {
			continue
		}

		entry := map[string]any{
			"description": agent.Description,
			"prompt":      agent.Prompt,
		}

		if len(agent.Tools) > 0 {
			entry["tools"] = agent.Tools
		}

		if agent.Model != nil {
			entry["model"] = *agent.Model
		}

		out[name] = entry
	}

	return out
}
