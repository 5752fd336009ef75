package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Prompts is the parsed prompts.yaml document.
//
//	single_agent:
//	  system_prompt: "..."
//	multi_agent:
//	  agents:
//	    - name: researcher
//	      system_prompt: "..."
type Prompts struct {
	// SingleAgentPrompt is empty when the file does not set a string.
	SingleAgentPrompt string
	// Agents holds multi_agent.agents entries with string name and
	// system_prompt, in file order.
	Agents []PromptAgent
}

// PromptAgent is one multi-agent entry from prompts.yaml.
type PromptAgent struct {
	Name         string
	SystemPrompt string
}

// LoadPrompts reads path. A missing or malformed file yields empty prompts.
func LoadPrompts(path string) Prompts {
	if path == "" {
		return Prompts{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}
	}
	return ParsePrompts(data)
}

// ParsePrompts decodes a prompts document, ignoring entries of the wrong
// shape.
func ParsePrompts(data []byte) Prompts {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Prompts{}
	}

	var p Prompts
	if single, ok := doc["single_agent"].(map[string]any); ok {
		if s, ok := single["system_prompt"].(string); ok {
			p.SingleAgentPrompt = s
		}
	}

	multi, ok := doc["multi_agent"].(map[string]any)
	if !ok {
		return p
	}
	entries, ok := multi["agents"].([]any)
	if !ok {
		return p
	}
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		name, okName := m["name"].(string)
		prompt, okPrompt := m["system_prompt"].(string)
		if okName && okPrompt {
			p.Agents = append(p.Agents, PromptAgent{Name: name, SystemPrompt: prompt})
		}
	}
	return p
}
