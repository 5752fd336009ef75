package tools

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/openflow/llm"
	"github.com/BaSui01/openflow/types"
)

// ToolLoop drives "model → tools → model" until the model replies without
// tool calls or the model-call budget is spent.
type ToolLoop struct {
	provider llm.Provider
	tools    ToolExecutor
	maxCalls int
	logger   *zap.Logger
}

// NewToolLoop creates a loop allowing at most maxModelCalls completions
// (10 when <= 0).
func NewToolLoop(provider llm.Provider, tools ToolExecutor, maxModelCalls int, logger *zap.Logger) *ToolLoop {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxModelCalls <= 0 {
		maxModelCalls = 10
	}
	return &ToolLoop{
		provider: provider,
		tools:    tools,
		maxCalls: maxModelCalls,
		logger:   logger.With(zap.String("component", "tool_loop")),
	}
}

// Round is one model reply and the tool results fed back for it.
type Round struct {
	Thought      string         `json:"thought,omitempty"`
	Actions      []llm.ToolCall `json:"actions,omitempty"`
	Observations []ToolResult   `json:"observations,omitempty"`
	Tokens       int            `json:"tokens,omitempty"`
}

// Transcript is everything a loop produced. It is returned even when Run
// fails, holding the rounds completed so far.
type Transcript struct {
	Messages []llm.Message `json:"messages"`
	Rounds   []Round       `json:"rounds"`
	Tokens   int           `json:"tokens"`
	Final    string        `json:"final,omitempty"`
}

// Run starts from req.Messages. Provider errors are returned unchanged;
// an empty reply is UPSTREAM_ERROR and an exhausted budget TOOL_LOOP_LIMIT.
func (l *ToolLoop) Run(ctx context.Context, req *llm.ChatRequest) (*Transcript, error) {
	t := &Transcript{Messages: append([]llm.Message(nil), req.Messages...)}

	for call := 1; call <= l.maxCalls; call++ {
		if err := ctx.Err(); err != nil {
			return t, err
		}

		next := *req
		next.Messages = t.Messages
		resp, err := l.provider.Completion(ctx, &next)
		if err != nil {
			return t, err
		}
		if len(resp.Choices) == 0 {
			return t, types.NewError(types.ErrUpstreamError, "no choices in LLM response")
		}

		reply := resp.Choices[0].Message
		t.Messages = append(t.Messages, reply)
		t.Tokens += resp.Usage.TotalTokens
		round := Round{Thought: reply.Content, Tokens: resp.Usage.TotalTokens}

		if len(reply.ToolCalls) == 0 {
			t.Rounds = append(t.Rounds, round)
			t.Final = reply.Content
			l.logger.Debug("tool loop finished", zap.Int("model_calls", call), zap.Int("tokens", t.Tokens))
			return t, nil
		}

		round.Actions = reply.ToolCalls
		round.Observations = l.tools.Execute(ctx, reply.ToolCalls)
		for _, obs := range round.Observations {
			t.Messages = append(t.Messages, obs.ToMessage())
		}
		t.Rounds = append(t.Rounds, round)
		l.logger.Debug("tool round", zap.Int("model_call", call), zap.Int("tool_calls", len(reply.ToolCalls)))
	}

	l.logger.Warn("tool loop limit reached", zap.Int("max_model_calls", l.maxCalls))
	return t, types.Errorf(types.ErrToolLoopLimit, "tool loop did not finish within %d model calls", l.maxCalls)
}
