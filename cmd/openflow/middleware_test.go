package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/BaSui01/openflow/internal/metrics"
	"github.com/BaSui01/openflow/types"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	serve(Chain(okHandler, mark("a"), mark("b"), mark("c")), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRecovery(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	w := serve(Recovery(zap.NewNop())(panicking), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail":"Internal server error","code":"INTERNAL_ERROR"}`, w.Body.String())
}

func TestRequestID(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = types.TraceID(r.Context())
	})

	w := serve(RequestID()(inner), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, w.Header().Get("X-Request-ID"), seen)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "client-id")
	w = serve(RequestID()(inner), r)
	assert.Equal(t, "client-id", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "client-id", seen)
}

func TestSecurityHeaders_ChainedWithOtherMiddleware(t *testing.T) {
	w := serve(Chain(okHandler, SecurityHeaders(), RequestID()), httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(okHandler)

	tests := []struct {
		name       string
		origin     string
		preflight  bool
		wantStatus int
		wantAllow  string
	}{
		{name: "configured origin", origin: "https://app.example.com", wantStatus: http.StatusOK, wantAllow: "https://app.example.com"},
		{name: "localhost any port", origin: "http://localhost:3000", wantStatus: http.StatusOK, wantAllow: "http://localhost:3000"},
		{name: "loopback ip", origin: "http://127.0.0.1:5173", wantStatus: http.StatusOK, wantAllow: "http://127.0.0.1:5173"},
		{name: "unknown origin passes without headers", origin: "https://evil.example", wantStatus: http.StatusOK},
		{name: "allowed preflight", origin: "http://localhost:5173", preflight: true, wantStatus: http.StatusOK, wantAllow: "http://localhost:5173"},
		{name: "rejected preflight", origin: "https://evil.example", preflight: true, wantStatus: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := http.MethodGet
			if tt.preflight {
				method = http.MethodOptions
			}
			r := httptest.NewRequest(method, "/workflows", nil)
			r.Header.Set("Origin", tt.origin)
			if tt.preflight {
				r.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}

			w := serve(h, r)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllow, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantAllow != "" {
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}

func TestClientLimiter(t *testing.T) {
	h := newClientLimiter(1, 2, zap.NewNop()).Middleware()(okHandler)
	newReq := func(addr string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = addr
		return r
	}

	assert.Equal(t, http.StatusOK, serve(h, newReq("10.0.0.1:1000")).Code)
	assert.Equal(t, http.StatusOK, serve(h, newReq("10.0.0.1:1001")).Code)
	w := serve(h, newReq("10.0.0.1:1002"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")

	// 不同 IP 独立计数
	assert.Equal(t, http.StatusOK, serve(h, newReq("10.0.0.2:1000")).Code)
}

func TestClientLimiter_Disabled(t *testing.T) {
	l := newClientLimiter(0, 0, zap.NewNop())
	require.Nil(t, l)
	assert.NoError(t, l.Prune(context.Background()))

	h := l.Middleware()(okHandler)
	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
}

func TestClientLimiter_SweepDropsIdleClients(t *testing.T) {
	l := newClientLimiter(5, 1, nil)
	now := time.Now()

	require.True(t, l.allow("10.0.0.1", now.Add(-10*time.Minute)))
	require.True(t, l.allow("10.0.0.2", now))

	assert.Equal(t, 1, l.sweep(now))
	// 被清理的客户端重新获得完整额度
	assert.True(t, l.allow("10.0.0.1", now))
}

func TestClientLimiter_PruneStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newClientLimiter(1, 1, nil).Prune(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Prune did not return after cancel")
	}
}

func signToken(t *testing.T, secret, issuer string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "tester",
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJWTAuth(t *testing.T) {
	const secret = "test-secret"
	h := JWTAuth(secret, "openflow", []string{"/health"}, zap.NewNop())(okHandler)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{name: "valid token", path: "/workflows", token: signToken(t, secret, "openflow", future), status: http.StatusOK},
		{name: "missing token", path: "/workflows", status: http.StatusUnauthorized},
		{name: "wrong secret", path: "/workflows", token: signToken(t, "other", "openflow", future), status: http.StatusUnauthorized},
		{name: "wrong issuer", path: "/workflows", token: signToken(t, secret, "someone", future), status: http.StatusUnauthorized},
		{name: "expired", path: "/workflows", token: signToken(t, secret, "openflow", time.Now().Add(-time.Minute)), status: http.StatusUnauthorized},
		{name: "public path", path: "/health", status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				r.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := serve(h, r)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), `"code":"UNAUTHORIZED"`)
			}
		})
	}
}

func TestJWTAuth_DisabledWithoutSecret(t *testing.T) {
	h := JWTAuth("", "", nil, zap.NewNop())(okHandler)
	assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/workflows", nil)).Code)
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/health":                   "/health",
		"/workflows":                "/workflows",
		"/workflows/new":            "/workflows/new",
		"/workflows/abc":            "/workflows/{id}",
		"/workflows/abc/run":        "/workflows/{id}/run",
		"/workflows/abc/executions": "/workflows/{id}/executions",
		"/executions/123":           "/executions/{id}",
		"/node-catalog":             "/node-catalog",
		"/something/else/entirely":  "/something/else/entirely",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizePath(in), in)
	}
}

func TestInstrument(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("test", reg, zap.NewNop())
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	h := Instrument(tp.Tracer("test"), collector, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/executions/") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	serve(h, httptest.NewRequest(http.MethodPost, "/workflows/a/run", nil))
	serve(h, httptest.NewRequest(http.MethodPost, "/workflows/b/run", nil))
	serve(h, httptest.NewRequest(http.MethodGet, "/executions/xyz", nil))

	expected := `
# HELP test_http_requests_total Total number of HTTP requests
# TYPE test_http_requests_total counter
test_http_requests_total{method="GET",path="/executions/{id}",status="5xx"} 1
test_http_requests_total{method="POST",path="/workflows/{id}/run",status="2xx"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_http_requests_total"))

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "POST /workflows/{id}/run", spans[0].Name())
	assert.Equal(t, "Unset", spans[0].Status().Code.String())
	assert.Equal(t, "GET /executions/{id}", spans[2].Name())
	assert.Equal(t, "Error", spans[2].Status().Code.String())
}

func TestInstrument_NilCollaborators(t *testing.T) {
	w := serve(Instrument(nil, nil, nil)(okHandler), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
