// Package mocks 提供测试用的 LLM Provider 模拟实现。
package mocks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/BaSui01/openflow/llm"
	"github.com/BaSui01/openflow/types"
)

// ErrScriptExhausted 脚本中的回复已全部用完
var ErrScriptExhausted = errors.New("scripted provider: no more replies")

type reply struct {
	message llm.Message
	usage   llm.ChatUsage
	err     error
}

// ScriptedProvider 按脚本顺序返回回复。最后一条回复在脚本用完后不会重复，
// 除非调用了 Repeat。
type ScriptedProvider struct {
	mu       sync.Mutex
	name     string
	script   []reply
	repeat   bool
	requests []*llm.ChatRequest
	healthy  bool
}

// NewScriptedProvider 创建空脚本的 Provider
func NewScriptedProvider() *ScriptedProvider {
	return &ScriptedProvider{name: "scripted", healthy: true}
}

// --- Builder 方法 ---

// ThenText 追加一条纯文本回复
func (p *ScriptedProvider) ThenText(content string) *ScriptedProvider {
	return p.then(reply{message: types.NewAssistantMessage(content)})
}

// ThenToolCall 追加一条请求调用工具的回复，args 为 JSON 文本
func (p *ScriptedProvider) ThenToolCall(id, name, args string) *ScriptedProvider {
	call := llm.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
	return p.then(reply{message: types.NewAssistantMessage("").WithToolCalls([]llm.ToolCall{call})})
}

// ThenError 追加一次失败
func (p *ScriptedProvider) ThenError(err error) *ScriptedProvider {
	return p.then(reply{err: err})
}

// WithUsage 为最后追加的回复设置 token 用量
func (p *ScriptedProvider) WithUsage(prompt, completion int) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.script); n > 0 {
		p.script[n-1].usage = llm.ChatUsage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		}
	}
	return p
}

// Repeat 脚本用完后持续返回最后一条回复
func (p *ScriptedProvider) Repeat() *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repeat = true
	return p
}

// Unhealthy 使 HealthCheck 报告不健康
func (p *ScriptedProvider) Unhealthy() *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy = false
	return p
}

func (p *ScriptedProvider) then(r reply) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, r)
	return p
}

// --- llm.Provider ---

// Completion 记录请求并返回下一条脚本回复
func (p *ScriptedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := *req
	snapshot.Messages = append([]llm.Message(nil), req.Messages...)
	p.requests = append(p.requests, &snapshot)

	if len(p.script) == 0 {
		return nil, ErrScriptExhausted
	}
	r := p.script[0]
	if len(p.script) > 1 || !p.repeat {
		p.script = p.script[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	return &llm.ChatResponse{
		ID:       fmt.Sprintf("scripted-%d", len(p.requests)),
		Provider: p.name,
		Model:    req.Model,
		Choices:  []llm.ChatChoice{{Message: r.message, FinishReason: "stop"}},
		Usage:    r.usage,
	}, nil
}

// HealthCheck 返回预设的健康状态
func (p *ScriptedProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &llm.HealthStatus{Healthy: p.healthy}, nil
}

// Name 返回 Provider 名称
func (p *ScriptedProvider) Name() string { return p.name }

// --- 调用记录 ---

// Requests 返回已收到的请求副本
func (p *ScriptedProvider) Requests() []*llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*llm.ChatRequest(nil), p.requests...)
}

// CallCount 返回 Completion 调用次数
func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}
