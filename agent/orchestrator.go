package agent

import (
	"context"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/openflow/llm/tools"
	"github.com/BaSui01/openflow/types"
	"github.com/BaSui01/openflow/workflow"
)

// Node type names served by the orchestrator.
const (
	TypeLangGraphAgent = "langgraph_agent"
	TypeMultiAgent     = "multi_agent"
)

// ToolUseSuffix is appended to the system prompt of any invocation that has
// tavily_search available.
const ToolUseSuffix = "\nWhen asked for factual, financial, company, or current-event information, " +
	"use available tools before answering. If a tool fails, say that clearly."

// TraceEntry records one chained step.
type TraceEntry struct {
	Name   string   `json:"name"`
	Model  string   `json:"model"`
	Tools  []string `json:"tools"`
	Output string   `json:"output"`
}

// Value converts the entry into a payload object.
func (e TraceEntry) Value() types.Object {
	return types.Object{
		"name":   types.String(e.Name),
		"model":  types.String(e.Model),
		"tools":  types.Strings(e.Tools),
		"output": types.String(e.Output),
	}
}

// ChainPrompt builds the user prompt for a step after the first.
func ChainPrompt(original, running string) string {
	return "Original user request:\n" + original +
		"\n\nCurrent context from previous agents:\n" + running +
		"\n\nContinue and improve the answer."
}

// Orchestrator runs single agents and sequential agent chains.
type Orchestrator struct {
	defaults DefaultsProvider
	tools    ToolProvider
	runner   Runner
	logger   *zap.Logger
	tracer   trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger.With(zap.String("component", "agent_orchestrator"))
		}
	}
}

// WithTracer sets the tracer used for step spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// NewOrchestrator creates an orchestrator. runner may be nil, in which case
// every run fails with MISSING_CAPABILITY after validation.
func NewOrchestrator(defaults DefaultsProvider, toolProvider ToolProvider, runner Runner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		defaults: defaults,
		tools:    toolProvider,
		runner:   runner,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("github.com/BaSui01/openflow/agent"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register adds the langgraph_agent and multi_agent handlers to registry.
func Register(registry *workflow.NodeRegistry, o *Orchestrator) {
	registry.Register(workflow.NodeSpec{
		Type:        TypeLangGraphAgent,
		Description: "Runs one or more local Ollama-backed agents in sequence.",
		Handler:     workflow.HandlerFunc(o.Handle),
	})
	registry.Register(workflow.NodeSpec{
		Type:        TypeMultiAgent,
		Description: "Legacy alias for sequential multi-agent execution.",
		Handler:     workflow.HandlerFunc(o.HandleMultiAgent),
	})
}

// Handle runs an agent node.
func (o *Orchestrator) Handle(ctx context.Context, params types.Object, input types.Object) (types.Object, error) {
	settings, err := ResolveSettings(params, o.defaults.AgentDefaults())
	if err != nil {
		return nil, err
	}

	promptVal, ok := input[settings.InputField]
	if _, isNull := promptVal.(types.Null); !ok || isNull {
		return nil, types.Errorf(types.ErrMissingInputField,
			"agent expected input field '%s' in payload", settings.InputField)
	}
	if o.runner == nil {
		return nil, types.NewError(types.ErrMissingCapability,
			"no agent runner installed; configure an LLM provider such as ollama to run agent nodes")
	}

	original := types.Text(promptVal)
	out := input.Clone()

	if len(settings.Steps) == 0 {
		text, err := o.invoke(ctx, settings, settings.Model, settings.SystemPrompt, settings.Tools, original)
		if err != nil {
			return nil, err
		}
		out["agent_output"] = types.String(text)
	} else {
		final, trace, err := o.runChain(ctx, settings, original)
		if err != nil {
			return nil, err
		}
		entries := make(types.List, 0, len(trace))
		for _, e := range trace {
			entries = append(entries, e.Value())
		}
		out["agent_output"] = types.String(final)
		out["agent_trace"] = entries
		out["agent_count"] = types.Int(len(trace))
	}

	out["agent_model"] = types.String(settings.Model)
	out["agent_num_ctx"] = types.Int(settings.NumCtx)
	out["agent_num_predict"] = types.Int(settings.NumPredict)
	out["agent_tools"] = types.Strings(settings.Tools)
	return out, nil
}

// HandleMultiAgent fills absent params from the multi-agent defaults, runs
// Handle, and mirrors the results under multi_agent_* keys.
func (o *Orchestrator) HandleMultiAgent(ctx context.Context, params types.Object, input types.Object) (types.Object, error) {
	d := o.defaults.MultiAgentDefaults()
	proxy := params.Clone()
	setDefault := func(key string, v types.Value) {
		if _, ok := proxy[key]; !ok {
			proxy[key] = v
		}
	}
	setDefault("model", types.String(d.Model))
	setDefault("input_field", types.String(d.InputField))
	setDefault("num_ctx", types.Int(d.NumCtx))
	setDefault("num_predict", types.Int(d.NumPredict))
	setDefault("temperature", types.Float(d.Temperature))
	setDefault("max_tool_calls", types.Int(d.MaxToolCalls))
	if d.Agents != nil {
		setDefault("agents", d.Agents)
	}

	out, err := o.Handle(ctx, proxy, input)
	if err != nil {
		return nil, err
	}
	out["multi_agent_output"] = out["agent_output"]
	if trace, ok := out["agent_trace"]; ok {
		out["multi_agent_trace"] = trace
		out["multi_agent_count"] = out["agent_count"]
	}
	return out, nil
}

func (o *Orchestrator) runChain(ctx context.Context, s Settings, original string) (string, []TraceEntry, error) {
	running := original
	trace := make([]TraceEntry, 0, len(s.Steps))

	for i, step := range s.Steps {
		prompt := running
		if i > 0 {
			prompt = ChainPrompt(original, running)
		}
		text, err := o.invoke(ctx, s, step.Model, step.SystemPrompt, step.Tools, prompt)
		if err != nil {
			return "", nil, err
		}
		if strings.TrimSpace(text) != "" {
			running = text
		}
		trace = append(trace, TraceEntry{Name: step.Name, Model: step.Model, Tools: step.Tools, Output: text})
		o.logger.Debug("agent step finished",
			zap.String("step", step.Name),
			zap.Int("index", i),
			zap.Int("output_len", len(text)))
	}
	return running, trace, nil
}

func (o *Orchestrator) invoke(ctx context.Context, s Settings, model, systemPrompt string, toolNames []string, prompt string) (string, error) {
	ctx, span := o.tracer.Start(ctx, "agent.invoke", trace.WithAttributes(
		attribute.String("agent.model", model),
		attribute.StringSlice("agent.tools", toolNames),
	))
	defer span.End()

	if slices.Contains(toolNames, tools.ToolTavilySearch) {
		systemPrompt += ToolUseSuffix
	}

	var selected []tools.Tool
	if o.tools != nil {
		selected = o.tools.BuildAgentTools(toolNames)
	}

	result, err := o.runner.Invoke(ctx, Invocation{
		Model:          model,
		NumCtx:         s.NumCtx,
		NumPredict:     s.NumPredict,
		Temperature:    s.Temperature,
		SystemPrompt:   systemPrompt,
		Tools:          selected,
		UserPrompt:     prompt,
		RecursionLimit: s.RecursionLimit(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Warn("agent invocation failed", zap.String("model", model), zap.Error(err))
		return "", err
	}
	return ExtractText(result), nil
}

