package api

import (
	"net/http"

	"github.com/BaSui01/openflow/api/handlers"
)

// Handlers groups the handlers mounted by NewRouter. Nil members are skipped.
type Handlers struct {
	Health   *handlers.HealthHandler
	Catalog  *handlers.CatalogHandler
	Workflow *handlers.WorkflowHandler
	Metrics  http.Handler

	Version   string
	BuildTime string
	GitCommit string
}

// NewRouter registers every endpoint on a new ServeMux.
func NewRouter(h Handlers) *http.ServeMux {
	mux := http.NewServeMux()

	if h.Health != nil {
		mux.HandleFunc("GET /health", h.Health.HandleHealth)
		mux.HandleFunc("GET /ready", h.Health.HandleReady)
		mux.HandleFunc("GET /version", h.Health.HandleVersion(h.Version, h.BuildTime, h.GitCommit))
	}
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}

	if h.Catalog != nil {
		mux.HandleFunc("GET /node-types", h.Catalog.HandleNodeTypes)
		mux.HandleFunc("GET /node-catalog", h.Catalog.HandleNodeCatalog)
		mux.HandleFunc("GET /tool-catalog", h.Catalog.HandleToolCatalog)
		mux.HandleFunc("GET /config", h.Catalog.HandleConfig)
	}

	if wf := h.Workflow; wf != nil {
		mux.HandleFunc("POST /workflows", wf.HandleCreate)
		mux.HandleFunc("POST /workflows/new", wf.HandleCreateWithGeneratedID)
		mux.HandleFunc("GET /workflows", wf.HandleList)
		mux.HandleFunc("GET /workflows/{id}", wf.HandleGet)
		mux.HandleFunc("PUT /workflows/{id}", wf.HandleUpdate)
		mux.HandleFunc("POST /workflows/{id}/run", wf.HandleRun)
		mux.HandleFunc("GET /workflows/{id}/executions", wf.HandleListExecutions)
		mux.HandleFunc("GET /executions/{id}", wf.HandleGetExecution)
	}

	return mux
}
