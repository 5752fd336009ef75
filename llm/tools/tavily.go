package tools

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/openflow/types"
)

const (
	defaultTavilyBaseURL = "https://api.tavily.com"
	tavilyTimeout        = 20 * time.Second
)

// ResultCache stores tool output by key. Any Get error counts as a miss.
type ResultCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// TavilyConfig configures the tavily_search tool.
type TavilyConfig struct {
	APIKey     string
	BaseURL    string
	MaxResults int

	// Cache is optional. Only successful searches are cached.
	Cache    ResultCache
	CacheTTL time.Duration

	Client *http.Client
}

type tavilyRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResult struct {
	Title   *string `json:"title"`
	URL     *string `json:"url"`
	Content *string `json:"content"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

// NewTavilySearchTool returns the tavily_search tool.
func NewTavilySearchTool(cfg TavilyConfig, logger *zap.Logger) Tool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTavilyBaseURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: tavilyTimeout}
	}

	search := func(ctx context.Context, query string) (string, error) {
		if cfg.APIKey == "" {
			return "", fmt.Errorf("TAVILY_API_KEY is not set")
		}
		payload, err := json.Marshal(tavilyRequest{Query: query, MaxResults: cfg.MaxResults})
		if err != nil {
			return "", err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			strings.TrimRight(cfg.BaseURL, "/")+"/search", bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

		resp, err := client.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		var out tavilyResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("invalid response: %w", err)
		}
		return compactTavilyResults(out.Results), nil
	}

	fn := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var params struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal(args, &params); err != nil {
			return json.Marshal(fmt.Sprintf("Tavily error: %v", err))
		}

		key := tavilyCacheKey(params.Query, cfg.MaxResults)
		if cfg.Cache != nil {
			if hit, err := cfg.Cache.Get(ctx, key); err == nil {
				logger.Debug("tavily cache hit", zap.String("query", params.Query))
				return json.Marshal(hit)
			}
		}

		start := time.Now()
		text, err := search(ctx, params.Query)
		if err != nil {
			logger.Warn("tavily search failed", zap.String("query", params.Query), zap.Error(err))
			return json.Marshal(fmt.Sprintf("Tavily error: %v", err))
		}
		logger.Debug("tavily search completed",
			zap.String("query", params.Query),
			zap.Duration("duration", time.Since(start)))

		if cfg.Cache != nil {
			if err := cfg.Cache.Set(ctx, key, text, cfg.CacheTTL); err != nil {
				logger.Warn("tavily cache write failed", zap.Error(err))
			}
		}
		return json.Marshal(text)
	}

	return Tool{
		Func: fn,
		Metadata: ToolMetadata{
			Schema: toolSchema(ToolTavilySearch, "Search the web with Tavily and return compact JSON results.",
				`{"type": "object", "properties": {"query": {"type": "string", "description": "Search query"}}, "required": ["query"]}`),
			Timeout:   tavilyTimeout + time.Second,
			RateLimit: &RateLimitConfig{MaxCalls: 30, Window: time.Minute},
		},
	}
}

// compactTavilyResults renders [{"title": ..., "url": ..., "content": ...}]
// in that key order with non-ASCII escaped.
func compactTavilyResults(results []tavilyResult) string {
	field := func(s *string) string {
		if s == nil {
			return "null"
		}
		return types.QuoteASCII(*s)
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, r := range results {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, `{"title": %s, "url": %s, "content": %s}`, field(r.Title), field(r.URL), field(r.Content))
	}
	sb.WriteByte(']')
	return sb.String()
}

func tavilyCacheKey(query string, maxResults int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s", maxResults, query)))
	return "tool:tavily:" + hex.EncodeToString(sum[:])
}
