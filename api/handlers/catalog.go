package handlers

import (
	"net/http"

	"github.com/BaSui01/openflow/config"
	"github.com/BaSui01/openflow/llm/tools"
	"github.com/BaSui01/openflow/workflow"
)

// NodeCatalogEntry 节点目录条目
type NodeCatalogEntry struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// CatalogHandler 提供节点类型、工具目录与只读配置
type CatalogHandler struct {
	registry *workflow.NodeRegistry
	cfg      *config.Config
}

// NewCatalogHandler 创建目录处理器
func NewCatalogHandler(registry *workflow.NodeRegistry, cfg *config.Config) *CatalogHandler {
	return &CatalogHandler{registry: registry, cfg: cfg}
}

// HandleNodeTypes 处理 GET /node-types，按名称排序
func (h *CatalogHandler) HandleNodeTypes(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.registry.ListTypes())
}

// HandleNodeCatalog 处理 GET /node-catalog
func (h *CatalogHandler) HandleNodeCatalog(w http.ResponseWriter, r *http.Request) {
	specs := h.registry.ListSpecs()
	out := make([]NodeCatalogEntry, 0, len(specs))
	for _, spec := range specs {
		out = append(out, NodeCatalogEntry{Type: spec.Type, Description: spec.Description})
	}
	WriteJSON(w, http.StatusOK, out)
}

// HandleToolCatalog 处理 GET /tool-catalog
func (h *CatalogHandler) HandleToolCatalog(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, tools.ToolCatalog())
}

// HandleConfig 处理 GET /config
func (h *CatalogHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.cfg.Snapshot())
}
