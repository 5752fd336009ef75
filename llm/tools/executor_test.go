package tools

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/openflow/llm"
)

func echoTool(name string) Tool {
	return Tool{
		Func: func(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
			return args, nil
		},
		Metadata: ToolMetadata{Schema: llm.ToolSchema{Name: name}},
	}
}

func TestExecutor_LaterToolWins(t *testing.T) {
	t.Parallel()

	second := Tool{
		Func: func(context.Context, json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`"second"`), nil
		},
		Metadata: ToolMetadata{Schema: llm.ToolSchema{Name: "dup", Description: "second"}},
	}
	exec := NewExecutor([]Tool{echoTool("dup"), echoTool("other"), second}, nil)

	res := exec.ExecuteOne(context.Background(), llm.ToolCall{ID: "1", Name: "dup"})
	assert.JSONEq(t, `"second"`, string(res.Result))

	schemas := exec.Schemas()
	require.Len(t, schemas, 2)
	assert.Equal(t, "dup", schemas[0].Name)
	assert.Equal(t, "second", schemas[0].Description)
	assert.Equal(t, "other", schemas[1].Name)
}

func TestExecutor_Execute(t *testing.T) {
	t.Parallel()

	slow := Tool{
		Func: func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
			return json.RawMessage(`"late"`), nil
		},
		Metadata: ToolMetadata{Schema: llm.ToolSchema{Name: "slow"}, Timeout: 20 * time.Millisecond},
	}

	exec := NewExecutor([]Tool{echoTool("echo"), slow}, nil)
	results := exec.Execute(context.Background(), []llm.ToolCall{
		{ID: "1", Name: "echo", Arguments: json.RawMessage(`{"v":1}`)},
		{ID: "2", Name: "missing"},
		{ID: "3", Name: "echo", Arguments: json.RawMessage(`{bad`)},
		{ID: "4", Name: "slow"},
	})
	require.Len(t, results, 4)

	for i, id := range []string{"1", "2", "3", "4"} {
		assert.Equal(t, id, results[i].ToolCallID)
	}
	assert.JSONEq(t, `{"v":1}`, string(results[0].Result))
	assert.False(t, results[0].IsError())
	assert.Equal(t, "tool not found: missing", results[1].Error)
	assert.Contains(t, results[2].Error, "invalid arguments")
	assert.Contains(t, results[3].Error, "execution timeout")
}

func TestExecutor_BoundedConcurrency(t *testing.T) {
	t.Parallel()

	var running, peak atomic.Int32
	busy := Tool{
		Func: func(context.Context, json.RawMessage) (json.RawMessage, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return json.RawMessage(`null`), nil
		},
		Metadata: ToolMetadata{Schema: llm.ToolSchema{Name: "busy"}},
	}

	calls := make([]llm.ToolCall, 10)
	for i := range calls {
		calls[i] = llm.ToolCall{ID: "c", Name: "busy"}
	}
	results := NewExecutor([]Tool{busy}, nil).Execute(context.Background(), calls)

	assert.Len(t, results, 10)
	assert.LessOrEqual(t, peak.Load(), int32(maxParallelCalls))
}

func TestExecutor_EmptyArgumentsBecomeObject(t *testing.T) {
	t.Parallel()

	res := NewExecutor([]Tool{echoTool("echo")}, nil).ExecuteOne(context.Background(), llm.ToolCall{ID: "1", Name: "echo"})
	assert.JSONEq(t, `{}`, string(res.Result))
}

func TestCatalogTool_RateLimitSharedAcrossExecutors(t *testing.T) {
	t.Parallel()

	limited := echoTool("limited")
	limited.Metadata.RateLimit = &RateLimitConfig{MaxCalls: 1, Window: time.Hour}
	limited = limited.withLimiter()

	call := llm.ToolCall{ID: "1", Name: "limited"}
	first := NewExecutor([]Tool{limited}, nil).ExecuteOne(context.Background(), call)
	second := NewExecutor([]Tool{limited}, nil).ExecuteOne(context.Background(), call)

	assert.False(t, first.IsError())
	assert.Equal(t, "rate limit exceeded", second.Error)
}

func TestCatalog_ToolsCarryLimiters(t *testing.T) {
	t.Parallel()

	c := NewCatalog(Settings{}, nil)
	tavily := c.BuildAgentTools([]string{ToolTavilySearch})
	require.Len(t, tavily, 1)
	assert.NotNil(t, tavily[0].limiter)

	calc := c.BuildAgentTools([]string{ToolCalculator})
	require.Len(t, calc, 1)
	assert.Nil(t, calc[0].limiter)
}
