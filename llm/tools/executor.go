package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/BaSui01/openflow/llm"
	"github.com/BaSui01/openflow/types"
)

const (
	defaultToolTimeout = 30 * time.Second
	// maxParallelCalls 单轮模型回复中并发执行的工具调用上限
	maxParallelCalls = 4
)

// ToolFunc runs one tool call. Returned errors become the call's error text.
type ToolFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// ToolMetadata describes a tool.
type ToolMetadata struct {
	Schema    llm.ToolSchema
	Timeout   time.Duration    // 0 means 30s
	RateLimit *RateLimitConfig // optional
}

// RateLimitConfig allows MaxCalls per Window, refilled evenly.
type RateLimitConfig struct {
	MaxCalls int
	Window   time.Duration
}

// ToolResult is the outcome of one tool call.
type ToolResult = types.ToolResult

// Tool bundles a callable with its metadata. Copies of a Tool share its
// rate limiter, so a catalog tool is limited across all agent runs.
type Tool struct {
	Func     ToolFunc
	Metadata ToolMetadata

	limiter *rate.Limiter
}

// Name returns the tool's schema name.
func (t Tool) Name() string { return t.Metadata.Schema.Name }

// withLimiter attaches a limiter built from Metadata.RateLimit if the tool
// has none yet.
func (t Tool) withLimiter() Tool {
	rl := t.Metadata.RateLimit
	if t.limiter != nil || rl == nil || rl.MaxCalls <= 0 || rl.Window <= 0 {
		return t
	}
	t.limiter = rate.NewLimiter(rate.Every(rl.Window/time.Duration(rl.MaxCalls)), rl.MaxCalls)
	return t
}

func (t Tool) timeout() time.Duration {
	if t.Metadata.Timeout > 0 {
		return t.Metadata.Timeout
	}
	return defaultToolTimeout
}

// ToolExecutor runs the tool calls of one model reply.
type ToolExecutor interface {
	Execute(ctx context.Context, calls []llm.ToolCall) []ToolResult
}

// Executor resolves tool calls against a fixed tool set.
type Executor struct {
	tools  map[string]Tool
	order  []string
	logger *zap.Logger
}

// NewExecutor indexes tools by name. A later tool with the same name
// replaces an earlier one.
func NewExecutor(tools []Tool, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		tools:  make(map[string]Tool, len(tools)),
		logger: logger.With(zap.String("component", "tool_executor")),
	}
	for _, t := range tools {
		if _, seen := e.tools[t.Name()]; !seen {
			e.order = append(e.order, t.Name())
		}
		e.tools[t.Name()] = t.withLimiter()
	}
	return e
}

// Schemas returns the schemas offered to the model, in first-seen order.
func (e *Executor) Schemas() []llm.ToolSchema {
	out := make([]llm.ToolSchema, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, e.tools[name].Metadata.Schema)
	}
	return out
}

// Execute runs calls with bounded concurrency. Results keep call order.
func (e *Executor) Execute(ctx context.Context, calls []llm.ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	var g errgroup.Group
	g.SetLimit(maxParallelCalls)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.ExecuteOne(ctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// ExecuteOne runs a single call. Lookup, argument, rate and timeout
// failures are reported in the result, never as a Go error.
func (e *Executor) ExecuteOne(ctx context.Context, call llm.ToolCall) ToolResult {
	start := time.Now()
	result := ToolResult{ToolCallID: call.ID, Name: call.Name}
	fail := func(msg string) ToolResult {
		result.Error = msg
		result.Duration = time.Since(start)
		e.logger.Warn("tool call rejected", zap.String("name", call.Name), zap.String("reason", msg))
		return result
	}

	tool, ok := e.tools[call.Name]
	if !ok {
		return fail(fmt.Sprintf("tool not found: %s", call.Name))
	}
	if tool.limiter != nil && !tool.limiter.Allow() {
		return fail("rate limit exceeded")
	}
	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if !json.Valid(args) {
		return fail("invalid arguments: malformed JSON")
	}

	timeout := tool.timeout()
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res json.RawMessage
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := tool.Func(execCtx, args)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		result.Duration = time.Since(start)
		if out.err != nil {
			result.Error = out.err.Error()
			e.logger.Warn("tool execution failed",
				zap.String("name", call.Name),
				zap.Duration("duration", result.Duration),
				zap.Error(out.err))
			return result
		}
		result.Result = out.res
		e.logger.Debug("tool executed", zap.String("name", call.Name), zap.Duration("duration", result.Duration))
		return result
	case <-execCtx.Done():
		return fail(fmt.Sprintf("execution timeout after %s", timeout))
	}
}
