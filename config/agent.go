package config

import (
	"github.com/BaSui01/openflow/agent"
	"github.com/BaSui01/openflow/llm/tools"
	"github.com/BaSui01/openflow/types"
)

const fallbackSystemPrompt = "You are a helpful workflow agent."

// AgentDefaults returns defaults for langgraph_agent nodes.
func (c *Config) AgentDefaults() agent.Defaults {
	prompt := c.Agent.SystemPrompt
	if prompt == "" {
		prompt = c.Prompts.SingleAgentPrompt
	}
	if prompt == "" {
		prompt = fallbackSystemPrompt
	}
	return agent.Defaults{
		Model:        c.Agent.Model,
		SystemPrompt: prompt,
		InputField:   c.Agent.InputField,
		NumCtx:       c.Agent.NumCtx,
		NumPredict:   c.Agent.NumPredict,
		Temperature:  c.Agent.Temperature,
		Tools:        append([]string(nil), c.Agent.Tools...),
		MaxToolCalls: c.Agent.MaxToolCalls,
	}
}

// MultiAgentDefaults returns defaults for multi_agent nodes. The step list
// comes from agents_json, then prompts.yaml, then the built-in pair.
func (c *Config) MultiAgentDefaults() agent.Defaults {
	d := c.AgentDefaults()
	d.Model = c.MultiAgent.Model
	d.InputField = c.MultiAgent.InputField
	d.NumCtx = c.MultiAgent.NumCtx
	d.NumPredict = c.MultiAgent.NumPredict
	d.Temperature = c.MultiAgent.Temperature
	d.MaxToolCalls = c.MultiAgent.MaxToolCalls
	d.Agents = c.defaultAgents()
	return d
}

func (c *Config) defaultAgents() types.List {
	if agents, ok := parseAgentsJSON(c.MultiAgent.AgentsJSON); ok {
		return agents
	}
	if len(c.Prompts.Agents) > 0 {
		out := make(types.List, 0, len(c.Prompts.Agents))
		for _, a := range c.Prompts.Agents {
			out = append(out, types.Object{
				"name":          types.String(a.Name),
				"system_prompt": types.String(a.SystemPrompt),
				"tools":         types.List{},
			})
		}
		return out
	}
	return types.List{
		types.Object{
			"name":          types.String("researcher"),
			"system_prompt": types.String("Find facts and references. Prefer tool usage."),
			"tools":         types.Strings([]string{tools.ToolTavilySearch}),
		},
		types.Object{
			"name":          types.String("synthesizer"),
			"system_prompt": types.String("Create a concise final answer from prior agent outputs."),
			"tools":         types.Strings([]string{tools.ToolCalculator, tools.ToolUTCTime}),
		},
	}
}

// parseAgentsJSON keeps only object entries. ok is false when raw is empty,
// malformed or not an array.
func parseAgentsJSON(raw string) (types.List, bool) {
	if raw == "" {
		return nil, false
	}
	decoded, err := types.ParseJSON([]byte(raw))
	if err != nil {
		return nil, false
	}
	items, ok := decoded.(types.List)
	if !ok {
		return nil, false
	}
	out := make(types.List, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(types.Object); ok {
			out = append(out, obj)
		}
	}
	return out, true
}

// ToolSettings returns what the built-in tool catalog needs. The cache is
// attached by the caller.
func (c *Config) ToolSettings() tools.Settings {
	return tools.Settings{
		AllowHTTPDomains: append([]string(nil), c.AgentTools.AllowHTTPDomains...),
		TavilyAPIKey:     c.AgentTools.TavilyAPIKey,
		TavilyBaseURL:    c.AgentTools.TavilyBaseURL,
		TavilyMaxResults: c.AgentTools.TavilyMaxResults,
		CacheTTL:         c.AgentTools.CacheTTL,
	}
}

// PublicSnapshot is the read-only configuration view served by GET /config.
type PublicSnapshot struct {
	AgentDefaults      AgentDefaultsView      `json:"agent_defaults"`
	MultiAgentDefaults MultiAgentDefaultsView `json:"multi_agent_defaults"`
	Profile8GB         ProfileView            `json:"profile_8gb"`
	AgentTools         AgentToolsView         `json:"agent_tools"`
}

// AgentDefaultsView lists single-agent defaults.
type AgentDefaultsView struct {
	Model        string   `json:"model"`
	SystemPrompt string   `json:"system_prompt"`
	InputField   string   `json:"input_field"`
	NumCtx       int      `json:"num_ctx"`
	NumPredict   int      `json:"num_predict"`
	Temperature  float64  `json:"temperature"`
	Tools        []string `json:"tools"`
	MaxToolCalls int      `json:"max_tool_calls"`
}

// MultiAgentDefaultsView lists multi-agent defaults.
type MultiAgentDefaultsView struct {
	Model        string  `json:"model"`
	InputField   string  `json:"input_field"`
	NumCtx       int     `json:"num_ctx"`
	NumPredict   int     `json:"num_predict"`
	Temperature  float64 `json:"temperature"`
	MaxToolCalls int     `json:"max_tool_calls"`
	Agents       []any   `json:"agents"`
}

// ProfileView lists profile parameters.
type ProfileView struct {
	Model       string  `json:"model"`
	NumCtx      int     `json:"num_ctx"`
	NumPredict  int     `json:"num_predict"`
	Temperature float64 `json:"temperature"`
}

// AgentToolsView lists tool settings. The API key is never exposed.
type AgentToolsView struct {
	AllowHTTPDomains []string `json:"allow_http_domains"`
	TavilyMaxResults int      `json:"tavily_max_results"`
	TavilyConfigured bool     `json:"tavily_configured"`
}

// Snapshot builds the public configuration view.
func (c *Config) Snapshot() PublicSnapshot {
	single := c.AgentDefaults()
	multi := c.MultiAgentDefaults()

	agents := make([]any, 0, len(multi.Agents))
	for _, a := range multi.Agents {
		agents = append(agents, types.ToAny(a))
	}
	domains := c.AgentTools.AllowHTTPDomains
	if domains == nil {
		domains = []string{}
	}

	return PublicSnapshot{
		AgentDefaults: AgentDefaultsView{
			Model:        single.Model,
			SystemPrompt: single.SystemPrompt,
			InputField:   single.InputField,
			NumCtx:       single.NumCtx,
			NumPredict:   single.NumPredict,
			Temperature:  single.Temperature,
			Tools:        single.Tools,
			MaxToolCalls: single.MaxToolCalls,
		},
		MultiAgentDefaults: MultiAgentDefaultsView{
			Model:        multi.Model,
			InputField:   multi.InputField,
			NumCtx:       multi.NumCtx,
			NumPredict:   multi.NumPredict,
			Temperature:  multi.Temperature,
			MaxToolCalls: multi.MaxToolCalls,
			Agents:       agents,
		},
		Profile8GB: ProfileView{
			Model:       c.Profile8GB.Model,
			NumCtx:      c.Profile8GB.NumCtx,
			NumPredict:  c.Profile8GB.NumPredict,
			Temperature: c.Profile8GB.Temperature,
		},
		AgentTools: AgentToolsView{
			AllowHTTPDomains: domains,
			TavilyMaxResults: c.AgentTools.TavilyMaxResults,
			TavilyConfigured: c.AgentTools.TavilyAPIKey != "",
		},
	}
}

var _ agent.DefaultsProvider = (*Config)(nil)
