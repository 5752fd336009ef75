package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/openflow/config"
	"github.com/BaSui01/openflow/workflow"
	"github.com/BaSui01/openflow/workflow/nodes"
)

func newCatalogHandler(t *testing.T) *CatalogHandler {
	t.Helper()
	registry := workflow.NewNodeRegistry()
	nodes.Register(registry)
	cfg := config.DefaultConfig()
	cfg.AgentTools.TavilyAPIKey = "secret-key"
	return NewCatalogHandler(registry, cfg)
}

func TestCatalogHandler_NodeTypes(t *testing.T) {
	h := newCatalogHandler(t)

	w := httptest.NewRecorder()
	h.HandleNodeTypes(w, httptest.NewRequest(http.MethodGet, "/node-types", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, []string{"manual_trigger", "set_fields", "template"}, got)
}

func TestCatalogHandler_NodeCatalog(t *testing.T) {
	h := newCatalogHandler(t)

	w := httptest.NewRecorder()
	h.HandleNodeCatalog(w, httptest.NewRequest(http.MethodGet, "/node-catalog", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got []NodeCatalogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 3)
	for _, e := range got {
		assert.NotEmpty(t, e.Description, e.Type)
	}
}

func TestCatalogHandler_ToolCatalog(t *testing.T) {
	h := newCatalogHandler(t)

	w := httptest.NewRecorder()
	h.HandleToolCatalog(w, httptest.NewRequest(http.MethodGet, "/tool-catalog", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var got []map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	names := make([]string, 0, len(got))
	for _, e := range got {
		names = append(names, e["name"])
	}
	assert.Equal(t, []string{"calculator", "utc_time", "http_get", "tavily_search"}, names)
}

func TestCatalogHandler_ConfigHidesSecrets(t *testing.T) {
	h := newCatalogHandler(t)

	w := httptest.NewRecorder()
	h.HandleConfig(w, httptest.NewRequest(http.MethodGet, "/config", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.NotContains(t, body, "secret-key")
	assert.Contains(t, body, `"tavily_configured":true`)
	assert.Contains(t, body, `"qwen2.5:1.5b"`)
}
