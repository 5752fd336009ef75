package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/openflow/llm"
	"github.com/BaSui01/openflow/llm/tools"
	"github.com/BaSui01/openflow/types"
)

// ToolProvider resolves tool names into callable tools. Unknown names are
// skipped.
type ToolProvider interface {
	BuildAgentTools(names []string) []tools.Tool
}

// Invocation is one tool-using agent run.
type Invocation struct {
	Model          string
	NumCtx         int
	NumPredict     int
	Temperature    float64
	SystemPrompt   string
	Tools          []tools.Tool
	UserPrompt     string
	RecursionLimit int
}

// Result is the conversation an invocation produced.
type Result struct {
	Messages []types.Message
}

// String renders the whole result.
func (r *Result) String() string {
	if r == nil {
		return "<nil>"
	}
	parts := make([]string, 0, len(r.Messages))
	for _, m := range r.Messages {
		parts = append(parts, m.String())
	}
	return fmt.Sprintf("{messages: [%s]}", strings.Join(parts, ", "))
}

// Runner executes an invocation against a model.
type Runner interface {
	Invoke(ctx context.Context, inv Invocation) (*Result, error)
}

// ExtractText returns the final answer text of a result.
func ExtractText(r *Result) string {
	if r == nil || len(r.Messages) == 0 {
		return r.String()
	}
	last := r.Messages[len(r.Messages)-1]
	if len(last.Parts) == 0 {
		return last.Content
	}
	var texts []string
	for _, p := range last.Parts {
		if p.Text != nil {
			texts = append(texts, *p.Text)
		}
	}
	if len(texts) > 0 {
		return strings.Join(texts, "\n")
	}
	return last.String()
}

// ReActRunner runs invocations through the tool-calling loop of a
// chat provider. Each model call plus its tool round counts as two
// recursion steps.
type ReActRunner struct {
	provider llm.Provider
	logger   *zap.Logger
}

// NewReActRunner creates a runner over provider.
func NewReActRunner(provider llm.Provider, logger *zap.Logger) *ReActRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReActRunner{provider: provider, logger: logger.With(zap.String("component", "react_runner"))}
}

// Invoke implements Runner.
func (r *ReActRunner) Invoke(ctx context.Context, inv Invocation) (*Result, error) {
	toolExec := tools.NewExecutor(inv.Tools, r.logger)
	loop := tools.NewToolLoop(r.provider, toolExec, max(1, inv.RecursionLimit/2), r.logger)

	req := &llm.ChatRequest{
		Model: inv.Model,
		Messages: []llm.Message{
			types.NewSystemMessage(inv.SystemPrompt),
			types.NewUserMessage(inv.UserPrompt),
		},
		Tools:       toolExec.Schemas(),
		Temperature: inv.Temperature,
		NumCtx:      inv.NumCtx,
		MaxTokens:   inv.NumPredict,
	}

	tr, err := loop.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("agent invocation finished",
		zap.String("model", inv.Model),
		zap.Int("rounds", len(tr.Rounds)),
		zap.Int("tokens", tr.Tokens))
	return &Result{Messages: tr.Messages}, nil
}
