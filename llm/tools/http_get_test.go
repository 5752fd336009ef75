package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callText(t *testing.T, tool Tool, args string) string {
	t.Helper()
	out, err := tool.Func(context.Background(), json.RawMessage(args))
	require.NoError(t, err)
	var s string
	require.NoError(t, json.Unmarshal(out, &s))
	return s
}

func TestHTTPGetTool_FetchesAndTruncates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "OpenFlow-Agent/0.1", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(strings.Repeat("a", 5000)))
	}))
	defer srv.Close()

	host, _ := url.Parse(srv.URL)
	tool := NewHTTPGetTool(HTTPGetConfig{AllowDomains: []string{" " + strings.ToUpper(host.Hostname()) + " "}}, nil)

	body := callText(t, tool, `{"url":"`+srv.URL+`"}`)
	assert.Len(t, body, 4000)
}

func TestHTTPGetTool_Blocked(t *testing.T) {
	t.Parallel()

	tool := NewHTTPGetTool(HTTPGetConfig{AllowDomains: []string{"b.com", "A.com", ""}}, nil)
	assert.Equal(t, "Domain blocked. Allowed domains: ['a.com', 'b.com']",
		callText(t, tool, `{"url":"https://evil.example/x"}`))
	assert.Equal(t, "Invalid URL", callText(t, tool, `{"url":"not a url"}`))
}

func TestHTTPGetTool_ErrorsAsText(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tool := NewHTTPGetTool(HTTPGetConfig{}, nil)
	assert.Equal(t, "HTTP error: HTTP Error 404: Not Found", callText(t, tool, `{"url":"`+srv.URL+`"}`))
}

func TestDropInvalidUTF8(t *testing.T) {
	t.Parallel()

	cut := []byte("héllo")[:2]
	assert.Equal(t, "h", dropInvalidUTF8(cut))
	assert.Equal(t, "héllo", dropInvalidUTF8([]byte("héllo")))
}
