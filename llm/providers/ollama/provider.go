// Package ollama implements llm.Provider over a local Ollama server's
// native /api/chat endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/openflow/llm"
	"github.com/BaSui01/openflow/llm/providers"
	"github.com/BaSui01/openflow/types"
)

const providerName = "ollama"

// Config holds the configuration for the Ollama provider.
type Config struct {
	// BaseURL is the server address. Defaults to http://localhost:11434.
	BaseURL string

	// DefaultModel is used when a request leaves Model empty.
	DefaultModel string

	// Timeout is the HTTP client timeout. Defaults to 120s if zero.
	Timeout time.Duration

	// KeepAlive controls how long the model stays loaded after a call
	// (Ollama duration string, e.g. "5m"). Empty uses the server default.
	KeepAlive string
}

// Provider talks to Ollama.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates an Ollama provider.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "ollama_provider")),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return providerName }

func (p *Provider) endpoint(path string) string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + path
}

// =============================================================================
// Wire types
// =============================================================================

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Tools     []chatTool    `json:"tools,omitempty"`
	Stream    bool          `json:"stream"`
	Options   chatOptions   `json:"options"`
	KeepAlive string        `json:"keep_alive,omitempty"`
}

type chatOptions struct {
	NumCtx      int     `json:"num_ctx,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

type chatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
}

type chatToolCall struct {
	Function chatFunctionCall `json:"function"`
}

type chatFunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	CreatedAt       time.Time   `json:"created_at"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// =============================================================================
// Conversion
// =============================================================================

func toChatMessages(msgs []llm.Message) []chatMessage {
	out := make([]chatMessage, 0, len(msgs))
	for _, m := range msgs {
		cm := chatMessage{Role: string(m.Role), Content: m.Content}
		if len(m.Parts) > 0 && m.Content == "" {
			var texts []string
			for _, part := range m.Parts {
				if part.Text != nil {
					texts = append(texts, *part.Text)
				}
			}
			cm.Content = strings.Join(texts, "\n")
		}
		for _, tc := range m.ToolCalls {
			args := tc.Arguments
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			cm.ToolCalls = append(cm.ToolCalls, chatToolCall{Function: chatFunctionCall{Name: tc.Name, Arguments: args}})
		}
		if m.Role == llm.RoleTool {
			cm.ToolName = m.Name
		}
		out = append(out, cm)
	}
	return out
}

func toChatTools(schemas []llm.ToolSchema) []chatTool {
	if len(schemas) == 0 {
		return nil
	}
	out := make([]chatTool, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, chatTool{
			Type:     "function",
			Function: chatFunction{Name: s.Name, Description: s.Description, Parameters: s.Parameters},
		})
	}
	return out
}

func toChatResponse(resp chatResponse, seq int) *llm.ChatResponse {
	msg := llm.Message{Role: llm.RoleAssistant, Content: resp.Message.Content}
	for i, tc := range resp.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
			ID:        fmt.Sprintf("call_%d_%d", seq, i+1),
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	finish := resp.DoneReason
	if len(msg.ToolCalls) > 0 {
		finish = "tool_calls"
	}
	return &llm.ChatResponse{
		Provider: providerName,
		Model:    resp.Model,
		Choices:  []llm.ChatChoice{{Index: 0, FinishReason: finish, Message: msg}},
		Usage: llm.ChatUsage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
		CreatedAt: resp.CreatedAt,
	}
}

// =============================================================================
// Provider
// =============================================================================

// Completion performs a non-streaming chat call.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.DefaultModel
	}
	if model == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "ollama: model is required")
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	body := chatRequest{
		Model:    model,
		Messages: toChatMessages(req.Messages),
		Tools:    toChatTools(req.Tools),
		Stream:   false,
		Options: chatOptions{
			NumCtx:      req.NumCtx,
			NumPredict:  req.MaxTokens,
			Temperature: req.Temperature,
		},
		KeepAlive: p.cfg.KeepAlive,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("/api/chat"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.Warn("ollama request failed", zap.String("model", model), zap.Error(err))
		return nil, providers.MapTransportError(err, providerName)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		p.logger.Warn("ollama returned error status",
			zap.String("model", model),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return nil, providers.MapHTTPError(resp.StatusCode, msg, providerName)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "ollama: invalid response body").
			WithCause(err).WithRetryable(true)
	}

	p.logger.Debug("ollama completion",
		zap.String("model", model),
		zap.Int("tool_calls", len(out.Message.ToolCalls)),
		zap.Int("eval_count", out.EvalCount),
		zap.Duration("latency", time.Since(start)))

	return toChatResponse(out, len(req.Messages)), nil
}

// HealthCheck lists local models via /api/tags.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("/api/tags"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, providers.MapTransportError(err, providerName)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := providers.ReadErrorMessage(resp.Body)
		return &llm.HealthStatus{Healthy: false, Latency: latency}, providers.MapHTTPError(resp.StatusCode, msg, providerName)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, fmt.Errorf("failed to decode model list: %w", err)
	}
	status := &llm.HealthStatus{Healthy: true, Latency: latency}
	for _, m := range tags.Models {
		status.Models = append(status.Models, m.Name)
	}
	return status, nil
}
