package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	httpGetTimeout   = 8 * time.Second
	httpGetMaxBytes  = 4000
	httpGetUserAgent = "OpenFlow-Agent/0.1"
)

// HTTPGetConfig configures the http_get tool.
type HTTPGetConfig struct {
	// AllowDomains restricts fetches to these hosts (case-insensitive).
	// Empty allows every host.
	AllowDomains []string

	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// NewHTTPGetTool returns the http_get tool.
func NewHTTPGetTool(cfg HTTPGetConfig, logger *zap.Logger) Tool {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: httpGetTimeout}
	}
	allow := make(map[string]struct{})
	for _, d := range cfg.AllowDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			allow[d] = struct{}{}
		}
	}

	fetch := func(ctx context.Context, rawURL string) string {
		parsed, err := url.Parse(rawURL)
		host := ""
		if err == nil {
			host = strings.ToLower(parsed.Hostname())
		}
		if host == "" {
			return "Invalid URL"
		}
		if len(allow) > 0 {
			if _, ok := allow[host]; !ok {
				return "Domain blocked. Allowed domains: " + formatDomainList(allow)
			}
		}

		ctx, cancel := context.WithTimeout(ctx, httpGetTimeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Sprintf("HTTP error: %v", err)
		}
		req.Header.Set("User-Agent", httpGetUserAgent)

		resp, err := client.Do(req)
		if err != nil {
			logger.Debug("http_get failed", zap.String("host", host), zap.Error(err))
			return fmt.Sprintf("HTTP error: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Sprintf("HTTP error: HTTP Error %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, httpGetMaxBytes))
		if err != nil {
			return fmt.Sprintf("HTTP error: %v", err)
		}
		return dropInvalidUTF8(body)
	}

	fn := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var params struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(args, &params); err != nil {
			return json.Marshal("Invalid URL")
		}
		return json.Marshal(fetch(ctx, params.URL))
	}

	return Tool{
		Func: fn,
		Metadata: ToolMetadata{
			Schema: toolSchema(ToolHTTPGet, "Fetch page text from a URL. Respects allowlist.",
				`{"type": "object", "properties": {"url": {"type": "string", "description": "Absolute http(s) URL"}}, "required": ["url"]}`),
			Timeout: httpGetTimeout + time.Second,
		},
	}
}

// formatDomainList renders the allowlist as ['a.com', 'b.com'].
func formatDomainList(allow map[string]struct{}) string {
	domains := make([]string, 0, len(allow))
	for d := range allow {
		domains = append(domains, "'"+d+"'")
	}
	sort.Strings(domains)
	return "[" + strings.Join(domains, ", ") + "]"
}

// dropInvalidUTF8 decodes b as UTF-8, silently dropping invalid bytes such
// as a rune cut by the byte limit.
func dropInvalidUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r != utf8.RuneError || size > 1 {
			sb.WriteRune(r)
		}
		b = b[size:]
	}
	return sb.String()
}
