package main

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/openflow/api/handlers"
	"github.com/BaSui01/openflow/internal/metrics"
	"github.com/BaSui01/openflow/types"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so that the first one is outermost.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

func passthrough(next http.Handler) http.Handler { return next }

// Recovery turns handler panics into a 500 response.
func Recovery(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				id, _ := types.TraceID(r.Context())
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.String("request_id", id),
					zap.Stack("stack"))
				handlers.WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "Internal server error", nil)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID keeps the client's X-Request-ID or assigns one, and stores it
// as the trace id of the request context.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			next.ServeHTTP(w, r.WithContext(types.WithTraceID(r.Context(), id)))
		})
	}
}

var securityHeaders = [][2]string{
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
}

// SecurityHeaders sets fixed hardening headers on every response.
func SecurityHeaders() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, kv := range securityHeaders {
				w.Header().Set(kv[0], kv[1])
			}
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// 📊 观测
// =============================================================================

// Instrument opens a server span (continuing any upstream trace), then
// records the request in the collector and the access log once it is done.
// Nil collaborators are skipped.
func Instrument(tracer trace.Tracer, collector *metrics.Collector, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := normalizePath(r.URL.Path)
			ctx := r.Context()

			var span trace.Span
			if tracer != nil {
				ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(r.Header))
				ctx, span = tracer.Start(ctx, r.Method+" "+route,
					trace.WithSpanKind(trace.SpanKindServer),
					trace.WithAttributes(
						semconv.HTTPRequestMethodKey.String(r.Method),
						semconv.URLPath(r.URL.Path),
						attribute.String("http.route", route),
					))
				defer span.End()
			}

			rw := handlers.NewResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))
			elapsed := time.Since(start)

			if span != nil {
				span.SetAttributes(attribute.Int("http.response.status_code", rw.StatusCode))
				if rw.StatusCode >= http.StatusInternalServerError {
					span.SetStatus(codes.Error, http.StatusText(rw.StatusCode))
				}
			}
			if collector != nil {
				collector.RecordHTTPRequest(r.Method, route, rw.StatusCode, elapsed)
			}

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.StatusCode),
				zap.Duration("duration", elapsed),
				zap.String("remote_addr", r.RemoteAddr),
			}
			if id, ok := types.TraceID(r.Context()); ok {
				fields = append(fields, zap.String("request_id", id))
			}
			if rw.StatusCode >= http.StatusInternalServerError {
				logger.Warn("request", fields...)
			} else {
				logger.Info("request", fields...)
			}
		})
	}
}

// normalizePath replaces resource ids with {id} to bound label cardinality.
//
//	/workflows/abc/run  -> /workflows/{id}/run
//	/executions/123     -> /executions/{id}
func normalizePath(path string) string {
	first, rest, ok := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if !ok || rest == "" {
		return path
	}
	id, tail, _ := strings.Cut(rest, "/")
	switch {
	case first == "workflows" && id == "new" && tail == "":
		return path
	case first == "workflows", first == "executions":
	default:
		return path
	}
	if tail == "" {
		return "/" + first + "/{id}"
	}
	return "/" + first + "/{id}/" + tail
}

// =============================================================================
// 🚦 限流
// =============================================================================

// clientLimiter holds one token bucket per client IP. Buckets idle longer
// than ttl are dropped by Prune.
type clientLimiter struct {
	limit  rate.Limit
	burst  int
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	clients map[string]*clientBucket
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newClientLimiter returns nil when rps <= 0, which disables limiting.
func newClientLimiter(rps float64, burst int, logger *zap.Logger) *clientLimiter {
	if rps <= 0 {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &clientLimiter{
		limit:   rate.Limit(rps),
		burst:   max(burst, 1),
		ttl:     3 * time.Minute,
		logger:  logger,
		clients: make(map[string]*clientBucket),
	}
}

func (l *clientLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	b, ok := l.clients[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = b
	}
	b.lastSeen = now
	l.mu.Unlock()
	return b.limiter.AllowN(now, 1)
}

// sweep drops buckets idle since before now-ttl and reports how many remain.
func (l *clientLimiter) sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, b := range l.clients {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.clients, ip)
		}
	}
	return len(l.clients)
}

// Prune sweeps once a minute until ctx is done. Safe on a nil limiter.
func (l *clientLimiter) Prune(ctx context.Context) error {
	if l == nil {
		return nil
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}

// Middleware rejects requests over the client's budget with 429 and a
// Retry-After hint. A nil limiter passes everything through.
func (l *clientLimiter) Middleware() Middleware {
	if l == nil {
		return passthrough
	}
	retryAfter := strconv.Itoa(int(math.Ceil(1 / float64(l.limit))))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			if !l.allow(ip, time.Now()) {
				l.logger.Debug("rate limited", zap.String("ip", ip))
				w.Header().Set("Retry-After", retryAfter)
				handlers.WriteErrorMessage(w, http.StatusTooManyRequests, types.ErrRateLimited, "Too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// 🌐 CORS
// =============================================================================

// localOrigin matches a dev server on any local port.
var localOrigin = regexp.MustCompile(`^https?://(127\.0\.0\.1|localhost):\d+$`)

type corsPolicy struct {
	origins map[string]struct{}
}

func (p corsPolicy) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if _, ok := p.origins[origin]; ok {
		return true
	}
	return localOrigin.MatchString(origin)
}

func (p corsPolicy) writeHeaders(h http.Header, r *http.Request, origin string) {
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Add("Vary", "Origin")
	if r.Method != http.MethodOptions {
		return
	}
	allowHeaders := r.Header.Get("Access-Control-Request-Headers")
	if allowHeaders == "" {
		allowHeaders = "Content-Type, Authorization"
	}
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", allowHeaders)
	h.Set("Access-Control-Max-Age", "600")
}

// CORS allows the configured origins and any local port, with credentials.
// Preflights are answered here: 200 when allowed, 403 otherwise. Other
// requests from unknown origins pass through without CORS headers.
func CORS(allowedOrigins []string) Middleware {
	p := corsPolicy{origins: make(map[string]struct{}, len(allowedOrigins))}
	for _, o := range allowedOrigins {
		p.origins[o] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			ok := p.allows(origin)
			if ok {
				p.writeHeaders(w.Header(), r, origin)
			}

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			switch {
			case preflight && ok:
				w.WriteHeader(http.StatusOK)
			case preflight:
				w.WriteHeader(http.StatusForbidden)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// =============================================================================
// 🔐 认证
// =============================================================================

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// JWTAuth requires an HS256 bearer token. An empty secret disables it;
// publicPaths and OPTIONS requests are never checked.
func JWTAuth(secret, issuer string, publicPaths []string, logger *zap.Logger) Middleware {
	if secret == "" {
		return passthrough
	}
	public := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = true
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)
	key := []byte(secret)
	keyFunc := func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return key, nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			raw, ok := bearerToken(r)
			if !ok {
				handlers.WriteErrorMessage(w, http.StatusUnauthorized, types.ErrUnauthorized, "Missing bearer token", nil)
				return
			}
			var claims jwt.RegisteredClaims
			if _, err := parser.ParseWithClaims(raw, &claims, keyFunc); err != nil {
				logger.Debug("token rejected", zap.Error(err))
				handlers.WriteErrorMessage(w, http.StatusUnauthorized, types.ErrUnauthorized, "Invalid or expired token", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
