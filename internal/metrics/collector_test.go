package metrics

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/openflow/llm"
	"github.com/BaSui01/openflow/workflow"
)

var _ workflow.Recorder = (*Collector)(nil)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	return NewCollector("test", prometheus.NewRegistry(), zap.NewNop())
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	c := newTestCollector(t)

	c.RecordHTTPRequest("GET", "/workflows", 200, 10*time.Millisecond)
	c.RecordHTTPRequest("GET", "/workflows", 201, 10*time.Millisecond)
	c.RecordHTTPRequest("POST", "/workflows", 409, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/workflows", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/workflows", "4xx")))
}

func TestCollector_ObserveRunAndNode(t *testing.T) {
	c := newTestCollector(t)

	c.ObserveRun("wf-1", "success", time.Second)
	c.ObserveRun("wf-2", "failed", time.Second)
	c.ObserveNode("template", "success", time.Millisecond)
	c.ObserveNode("template", "success", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.workflowRunsTotal.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.nodeRunsTotal.WithLabelValues("template", "success")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.nodeRunDuration))
}

func TestCollector_RecordDBStats(t *testing.T) {
	c := newTestCollector(t)

	c.RecordDBStats(sql.DBStats{OpenConnections: 3, InUse: 1, Idle: 2, WaitCount: 4})
	assert.Equal(t, 3.0, testutil.ToFloat64(c.dbConnectionsOpen))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dbConnectionsInUse))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.dbConnectionsIdle))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.dbWaitCount))
}

func TestCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector("dup", reg, zap.NewNop())
	assert.Panics(t, func() { NewCollector("dup", reg, zap.NewNop()) })
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	c := newTestCollector(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.ObserveNode("set_fields", "success", time.Millisecond)
			c.RecordCacheHit("tavily")
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(c.nodeRunsTotal.WithLabelValues("set_fields", "success")))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.cacheHits.WithLabelValues("tavily")))
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{204: "2xx", 304: "3xx", 404: "4xx", 500: "5xx", 100: "unknown", 600: "unknown"}
	for code, want := range tests {
		assert.Equal(t, want, statusClass(code), code)
	}
}

type stubProvider struct {
	resp *llm.ChatResponse
	err  error
}

func (s *stubProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return s.resp, s.err
}

func (s *stubProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (s *stubProvider) Name() string { return "stub" }

func TestInstrumentProvider(t *testing.T) {
	c := newTestCollector(t)
	ok := InstrumentProvider(&stubProvider{resp: &llm.ChatResponse{
		Usage: llm.ChatUsage{PromptTokens: 7, CompletionTokens: 3},
	}}, c)
	failing := InstrumentProvider(&stubProvider{err: errors.New("boom")}, c)

	_, err := ok.Completion(context.Background(), &llm.ChatRequest{Model: "m"})
	require.NoError(t, err)
	_, err = failing.Completion(context.Background(), &llm.ChatRequest{Model: "m"})
	require.Error(t, err)

	assert.Equal(t, "stub", ok.Name())
	assert.Equal(t, 1.0, testutil.ToFloat64(c.llmRequestsTotal.WithLabelValues("stub", "m", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.llmRequestsTotal.WithLabelValues("stub", "m", "error")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.llmTokensUsed.WithLabelValues("stub", "m", "prompt")))
}

type mapCache map[string]string

func (m mapCache) Get(ctx context.Context, key string) (string, error) {
	if v, ok := m[key]; ok {
		return v, nil
	}
	return "", errors.New("miss")
}

func (m mapCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m[key] = value
	return nil
}

func TestInstrumentCache(t *testing.T) {
	c := newTestCollector(t)
	cache := InstrumentCache(mapCache{}, "tool", c)
	ctx := context.Background()

	_, err := cache.Get(ctx, "k")
	require.Error(t, err)
	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))
	v, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheHits.WithLabelValues("tool")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheMisses.WithLabelValues("tool")))
}
