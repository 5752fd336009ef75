package tools

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/openflow/llm"
)

// Built-in tool names.
const (
	ToolCalculator   = "calculator"
	ToolUTCTime      = "utc_time"
	ToolHTTPGet      = "http_get"
	ToolTavilySearch = "tavily_search"
)

// CatalogEntry is one row of the public tool listing.
type CatalogEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var catalogEntries = []CatalogEntry{
	{Name: ToolCalculator, Description: "Evaluate a simple math expression."},
	{Name: ToolUTCTime, Description: "Get current UTC timestamp."},
	{Name: ToolHTTPGet, Description: "Fetch URL content from allowlisted domains only."},
	{Name: ToolTavilySearch, Description: "Search the web via Tavily API (requires TAVILY_API_KEY)."},
}

// ToolCatalog lists the built-in tools in a fixed order.
func ToolCatalog() []CatalogEntry {
	return append([]CatalogEntry(nil), catalogEntries...)
}

// Settings carries what the built-in tools need from configuration.
type Settings struct {
	AllowHTTPDomains []string
	TavilyAPIKey     string
	TavilyBaseURL    string
	TavilyMaxResults int

	Cache      ResultCache
	CacheTTL   time.Duration
	HTTPClient *http.Client
	Now        func() time.Time
}

// Catalog builds tool sets for agent steps.
type Catalog struct {
	tools map[string]Tool
}

// NewCatalog builds every built-in tool once from settings.
func NewCatalog(settings Settings, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "tool_catalog"))

	all := []Tool{
		NewCalculatorTool(),
		NewUTCTimeTool(settings.Now),
		NewHTTPGetTool(HTTPGetConfig{AllowDomains: settings.AllowHTTPDomains, Client: settings.HTTPClient}, logger),
		NewTavilySearchTool(TavilyConfig{
			APIKey:     settings.TavilyAPIKey,
			BaseURL:    settings.TavilyBaseURL,
			MaxResults: settings.TavilyMaxResults,
			Cache:      settings.Cache,
			CacheTTL:   settings.CacheTTL,
			Client:     settings.HTTPClient,
		}, logger),
	}
	c := &Catalog{tools: make(map[string]Tool, len(all))}
	for _, t := range all {
		c.tools[t.Name()] = t.withLimiter()
	}
	return c
}

// BuildAgentTools resolves names in order. Unknown names are skipped.
func (c *Catalog) BuildAgentTools(names []string) []Tool {
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		if t, ok := c.tools[name]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Entries returns the catalog listing.
func (c *Catalog) Entries() []CatalogEntry { return ToolCatalog() }

// Schemas returns the schemas of tools in order.
func Schemas(tools []Tool) []llm.ToolSchema {
	out := make([]llm.ToolSchema, 0, len(tools))
	for _, t := range tools {
		out = append(out, t.Metadata.Schema)
	}
	return out
}

func toolSchema(name, description, parameters string) llm.ToolSchema {
	return llm.ToolSchema{
		Name:        name,
		Description: description,
		Parameters:  json.RawMessage(parameters),
	}
}
