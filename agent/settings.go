package agent

import (
	"fmt"

	"github.com/BaSui01/openflow/types"
)

// Defaults are the configuration fallbacks for agent node params.
type Defaults struct {
	Model        string
	SystemPrompt string
	InputField   string
	NumCtx       int
	NumPredict   int
	Temperature  float64
	Tools        []string
	MaxToolCalls int

	// Agents is the default step list for multi_agent nodes. Entries are
	// validated like node params.
	Agents types.List
}

// DefaultsProvider supplies configuration defaults.
type DefaultsProvider interface {
	AgentDefaults() Defaults
	MultiAgentDefaults() Defaults
}

// Step is one agent in a chain.
type Step struct {
	Name         string
	Model        string
	SystemPrompt string
	Tools        []string
}

// Settings are validated node-level settings.
type Settings struct {
	Model        string
	SystemPrompt string
	InputField   string
	NumCtx       int
	NumPredict   int
	Temperature  float64
	Tools        []string
	MaxToolCalls int

	// Steps is empty for a single-step run.
	Steps []Step
}

// RecursionLimit is the per-invocation graph step ceiling.
func (s Settings) RecursionLimit() int {
	return max(8, 2*s.MaxToolCalls+2)
}

func invalidConfig(format string, args ...any) error {
	return types.Errorf(types.ErrInvalidAgentConfig, format, args...)
}

// ResolveSettings applies defaults to params and validates the result.
// A key present in params always wins over the default, even when it holds
// null.
func ResolveSettings(params types.Object, d Defaults) (Settings, error) {
	pick := func(key string, fallback types.Value) types.Value {
		if v, ok := params[key]; ok {
			return v
		}
		return fallback
	}

	var s Settings
	var err error

	promptVal := pick("system_prompt", types.String(d.SystemPrompt))
	prompt, ok := promptVal.(types.String)
	if !ok {
		return Settings{}, invalidConfig("agent.system_prompt must be a string")
	}
	s.SystemPrompt = string(prompt)

	if s.Tools, ok = stringList(pick("tools", types.Strings(d.Tools))); !ok {
		return Settings{}, invalidConfig("agent.tools must be a list of tool names")
	}

	if s.Model, ok = nonEmptyString(pick("model", types.String(d.Model))); !ok {
		return Settings{}, invalidConfig("agent.model must be a non-empty string")
	}
	if s.InputField, ok = nonEmptyString(pick("input_field", types.String(d.InputField))); !ok {
		return Settings{}, invalidConfig("agent.input_field must be a non-empty string")
	}
	if s.NumCtx, ok = positiveInt(pick("num_ctx", types.Int(d.NumCtx))); !ok {
		return Settings{}, invalidConfig("agent.num_ctx must be a positive integer")
	}
	if s.NumPredict, ok = positiveInt(pick("num_predict", types.Int(d.NumPredict))); !ok {
		return Settings{}, invalidConfig("agent.num_predict must be a positive integer")
	}
	if s.Temperature, ok = types.AsFloat(pick("temperature", types.Float(d.Temperature))); !ok {
		return Settings{}, invalidConfig("agent.temperature must be a number")
	}
	if s.MaxToolCalls, ok = positiveInt(pick("max_tool_calls", types.Int(d.MaxToolCalls))); !ok {
		return Settings{}, invalidConfig("agent.max_tool_calls must be a positive integer")
	}

	if s.Steps, err = normalizeSteps(params["agents"], s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// normalizeSteps validates the agents list. Absent or null means no chain.
func normalizeSteps(raw types.Value, node Settings) ([]Step, error) {
	if raw == nil {
		return nil, nil
	}
	if _, isNull := raw.(types.Null); isNull {
		return nil, nil
	}
	list, ok := raw.(types.List)
	if !ok || len(list) == 0 {
		return nil, invalidConfig("agent.agents must be a non-empty list")
	}

	steps := make([]Step, 0, len(list))
	for i, item := range list {
		obj, ok := item.(types.Object)
		if !ok {
			return nil, invalidConfig("agent.agents entries must be objects")
		}

		step := Step{
			Name:         fmt.Sprintf("agent_%d", i+1),
			Model:        node.Model,
			SystemPrompt: node.SystemPrompt,
			Tools:        append([]string(nil), node.Tools...),
		}
		if name, ok := obj["name"].(types.String); ok && name != "" {
			step.Name = string(name)
		}
		if v, ok := obj["model"]; ok {
			if step.Model, ok = nonEmptyString(v); !ok {
				return nil, invalidConfig("agent.agents[%d].model must be a non-empty string", i)
			}
		}
		if v, ok := obj["system_prompt"]; ok {
			if _, isNull := v.(types.Null); !isNull {
				p, ok := v.(types.String)
				if !ok {
					return nil, invalidConfig("agent.agents[%d].system_prompt must be a string", i)
				}
				step.SystemPrompt = string(p)
			}
		}
		if v, ok := obj["tools"]; ok {
			if step.Tools, ok = stringList(v); !ok {
				return nil, invalidConfig("agent.agents[%d].tools must be a list of strings", i)
			}
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func nonEmptyString(v types.Value) (string, bool) {
	s, ok := v.(types.String)
	if !ok || s == "" {
		return "", false
	}
	return string(s), true
}

func positiveInt(v types.Value) (int, bool) {
	i, ok := v.(types.Int)
	if !ok || i <= 0 {
		return 0, false
	}
	return int(i), true
}

func stringList(v types.Value) ([]string, bool) {
	list, ok := v.(types.List)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(types.String)
		if !ok {
			return nil, false
		}
		out = append(out, string(s))
	}
	return out, true
}
