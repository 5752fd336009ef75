package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/openflow/llm"
	"github.com/BaSui01/openflow/llm/tools"
	"github.com/BaSui01/openflow/types"
)

type fakeProvider struct {
	responses []llm.Message
	requests  []*llm.ChatRequest
}

func (p *fakeProvider) Completion(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.requests = append(p.requests, req)
	msg := p.responses[0]
	if len(p.responses) > 1 {
		p.responses = p.responses[1:]
	}
	return &llm.ChatResponse{Choices: []llm.ChatChoice{{Message: msg}}}, nil
}

func (p *fakeProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (p *fakeProvider) Name() string { return "fake" }

func TestReActRunner_InvokeWithTool(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{responses: []llm.Message{
		types.NewAssistantMessage("").WithToolCalls([]llm.ToolCall{{ID: "c1", Name: "calculator", Arguments: json.RawMessage(`{"expression":"6*7"}`)}}),
		types.NewAssistantMessage("The answer is 42."),
	}}
	runner := NewReActRunner(provider, nil)

	result, err := runner.Invoke(context.Background(), Invocation{
		Model:          "m",
		NumCtx:         512,
		NumPredict:     64,
		Temperature:    0.3,
		SystemPrompt:   "sys",
		UserPrompt:     "6*7?",
		Tools:          []tools.Tool{tools.NewCalculatorTool()},
		RecursionLimit: 8,
	})
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", ExtractText(result))

	require.Len(t, provider.requests, 2)
	first := provider.requests[0]
	assert.Equal(t, "m", first.Model)
	assert.Equal(t, 512, first.NumCtx)
	assert.Equal(t, 64, first.MaxTokens)
	require.Len(t, first.Tools, 1)
	assert.Equal(t, "calculator", first.Tools[0].Name)
	assert.Equal(t, llm.RoleSystem, first.Messages[0].Role)

	toolMsg := provider.requests[1].Messages[3]
	assert.Equal(t, llm.RoleTool, toolMsg.Role)
	assert.Equal(t, "42", toolMsg.Content)
}

func TestReActRunner_LoopLimit(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{responses: []llm.Message{
		types.NewAssistantMessage("").WithToolCalls([]llm.ToolCall{{ID: "c", Name: "utc_time"}}),
	}}
	_, err := NewReActRunner(provider, nil).Invoke(context.Background(), Invocation{
		Model:          "m",
		Tools:          []tools.Tool{tools.NewUTCTimeTool(nil)},
		RecursionLimit: 8,
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrToolLoopLimit, types.GetErrorCode(err))
	assert.Len(t, provider.requests, 4)
}

func TestExtractText(t *testing.T) {
	t.Parallel()

	text := func(s string) types.ContentPart { return types.TextPart(s) }

	tests := []struct {
		name   string
		result *Result
		want   string
	}{
		{"nil result", nil, "<nil>"},
		{"no messages", &Result{}, "{messages: []}"},
		{"plain content", &Result{Messages: []types.Message{types.NewUserMessage("q"), types.NewAssistantMessage("a")}}, "a"},
		{"text parts", &Result{Messages: []types.Message{{Role: types.RoleAssistant, Parts: []types.ContentPart{text("one"), {Type: "image"}, text("two")}}}}, "one\ntwo"},
		{"no text parts", &Result{Messages: []types.Message{{Role: types.RoleAssistant, Parts: []types.ContentPart{{Type: "image"}}}}}, `assistant: [{"type":"image"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractText(tt.result))
		})
	}
}
