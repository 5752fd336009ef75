package cache

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/openflow/config"
	"github.com/BaSui01/openflow/llm"
	"github.com/BaSui01/openflow/llm/tools"
)

var _ tools.ResultCache = (*Manager)(nil)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	mr := miniredis.RunT(t)

	manager, err := NewManager(config.RedisConfig{Addr: mr.Addr()}, Options{DefaultTTL: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager
}

func TestNewManager_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewManager(config.RedisConfig{Addr: addr}, Options{}, zap.NewNop())
	assert.Error(t, err)
}

func TestManager_SetAndGet(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "tool:tavily:abc", "[]", 5*time.Minute))

	value, err := manager.Get(ctx, "tool:tavily:abc")
	require.NoError(t, err)
	assert.Equal(t, "[]", value)

	// 键带前缀
	assert.True(t, mr.Exists("openflow:tool:tavily:abc"))
	assert.Equal(t, 5*time.Minute, mr.TTL("openflow:tool:tavily:abc"))
}

func TestManager_DefaultTTL(t *testing.T) {
	mr, manager := setupTestRedis(t)

	require.NoError(t, manager.Set(context.Background(), "k", "v", 0))
	assert.Equal(t, time.Minute, mr.TTL("openflow:k"))
}

func TestManager_Miss(t *testing.T) {
	_, manager := setupTestRedis(t)

	_, err := manager.Get(context.Background(), "missing")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_Expiry(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "k", "v", time.Second))
	mr.FastForward(2 * time.Second)

	_, err := manager.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_Delete(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "a", "1", 0))
	require.NoError(t, manager.Set(ctx, "b", "2", 0))
	require.NoError(t, manager.Delete(ctx, "a", "b"))
	require.NoError(t, manager.Delete(ctx))

	_, err := manager.Get(ctx, "a")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_Closed(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())

	assert.Error(t, manager.Ping(ctx))
	assert.Error(t, manager.Set(ctx, "k", "v", 0))
	_, err := manager.Get(ctx, "k")
	assert.Error(t, err)
	assert.False(t, IsCacheMiss(err))
}

func TestManager_ServerError(t *testing.T) {
	mr, manager := setupTestRedis(t)
	mr.SetError("LOADING")

	_, err := manager.Get(context.Background(), "k")
	require.Error(t, err)
	assert.False(t, IsCacheMiss(err))
}

func TestManager_BacksTavilyTool(t *testing.T) {
	mr, manager := setupTestRedis(t)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"results": [{"title": "Go", "url": "https://go.dev", "content": "The Go language"}]}`))
	}))
	defer srv.Close()

	catalog := tools.NewCatalog(tools.Settings{
		TavilyAPIKey:  "key",
		TavilyBaseURL: srv.URL,
		Cache:         manager,
	}, zap.NewNop())
	executor := tools.NewExecutor(catalog.BuildAgentTools([]string{tools.ToolTavilySearch}), zap.NewNop())

	call := llm.ToolCall{ID: "1", Name: tools.ToolTavilySearch, Arguments: json.RawMessage(`{"query": "golang"}`)}
	first := executor.ExecuteOne(context.Background(), call)
	second := executor.ExecuteOne(context.Background(), call)

	require.Empty(t, first.Error)
	assert.JSONEq(t, string(first.Result), string(second.Result))
	assert.Equal(t, int32(1), hits.Load())
	assert.Len(t, mr.Keys(), 1)
	assert.True(t, strings.HasPrefix(mr.Keys()[0], "openflow:tool:tavily:"))
}
