package metrics

import (
	"context"
	"time"

	"github.com/BaSui01/openflow/llm"
	"github.com/BaSui01/openflow/llm/tools"
)

// InstrumentedProvider 记录每次 Completion 的耗时与 token 用量
type InstrumentedProvider struct {
	llm.Provider
	collector *Collector
}

// InstrumentProvider 包装 p
func InstrumentProvider(p llm.Provider, c *Collector) *InstrumentedProvider {
	return &InstrumentedProvider{Provider: p, collector: c}
}

// Completion 转发请求并记录指标
func (p *InstrumentedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	start := time.Now()
	resp, err := p.Provider.Completion(ctx, req)
	status := "success"
	var prompt, completion int
	if err != nil {
		status = "error"
	} else if resp != nil {
		prompt, completion = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	}
	p.collector.RecordLLMRequest(p.Provider.Name(), req.Model, status, time.Since(start), prompt, completion)
	return resp, err
}

// InstrumentedCache 统计 ResultCache 的命中率
type InstrumentedCache struct {
	tools.ResultCache
	name      string
	collector *Collector
}

// InstrumentCache 包装 cache，name 作为指标标签
func InstrumentCache(cache tools.ResultCache, name string, c *Collector) *InstrumentedCache {
	return &InstrumentedCache{ResultCache: cache, name: name, collector: c}
}

// Get 转发读取并记录命中或未命中
func (c *InstrumentedCache) Get(ctx context.Context, key string) (string, error) {
	v, err := c.ResultCache.Get(ctx, key)
	if err != nil {
		c.collector.RecordCacheMiss(c.name)
	} else {
		c.collector.RecordCacheHit(c.name)
	}
	return v, err
}
