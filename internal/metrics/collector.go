package metrics

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Histogram buckets, in seconds.
var (
	runBuckets  = []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300}
	nodeBuckets = []float64{0.001, 0.01, 0.1, 1, 5, 30, 120}
	llmBuckets  = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}
)

// Collector owns the service's Prometheus series. It implements
// workflow.Recorder; the HTTP middleware, provider and cache wrappers and the
// database pool monitor feed it as well.
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	workflowRunsTotal   *prometheus.CounterVec
	workflowRunDuration *prometheus.HistogramVec
	nodeRunsTotal       *prometheus.CounterVec
	nodeRunDuration     *prometheus.HistogramVec

	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	dbConnectionsOpen  prometheus.Gauge
	dbConnectionsInUse prometheus.Gauge
	dbConnectionsIdle  prometheus.Gauge
	dbWaitCount        prometheus.Gauge

	logger *zap.Logger
}

// vecFactory binds a namespace to a registerer.
type vecFactory struct {
	f  promauto.Factory
	ns string
}

func (v vecFactory) counter(name, help string, labels ...string) *prometheus.CounterVec {
	return v.f.NewCounterVec(prometheus.CounterOpts{Namespace: v.ns, Name: name, Help: help}, labels)
}

func (v vecFactory) histogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return v.f.NewHistogramVec(prometheus.HistogramOpts{Namespace: v.ns, Name: name, Help: help, Buckets: buckets}, labels)
}

func (v vecFactory) gauge(name, help string) prometheus.Gauge {
	return v.f.NewGauge(prometheus.GaugeOpts{Namespace: v.ns, Name: name, Help: help})
}

// NewCollector registers every series on reg (the default registerer when
// nil). Registering the same namespace twice on one registry panics.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	v := vecFactory{f: promauto.With(reg), ns: namespace}

	return &Collector{
		httpRequestsTotal:   v.counter("http_requests_total", "Total number of HTTP requests", "method", "path", "status"),
		httpRequestDuration: v.histogram("http_request_duration_seconds", "HTTP request duration in seconds", prometheus.DefBuckets, "method", "path"),

		workflowRunsTotal:   v.counter("workflow_runs_total", "Total number of workflow runs", "status"),
		workflowRunDuration: v.histogram("workflow_run_duration_seconds", "Workflow run duration in seconds", runBuckets, "status"),
		nodeRunsTotal:       v.counter("node_runs_total", "Total number of node handler invocations", "node_type", "status"),
		nodeRunDuration:     v.histogram("node_run_duration_seconds", "Node handler duration in seconds", nodeBuckets, "node_type"),

		llmRequestsTotal:   v.counter("llm_requests_total", "Total number of LLM requests", "provider", "model", "status"),
		llmRequestDuration: v.histogram("llm_request_duration_seconds", "LLM request duration in seconds", llmBuckets, "provider", "model"),
		llmTokensUsed:      v.counter("llm_tokens_used_total", "Total number of tokens used", "provider", "model", "type"),

		cacheHits:   v.counter("cache_hits_total", "Total number of cache hits", "cache"),
		cacheMisses: v.counter("cache_misses_total", "Total number of cache misses", "cache"),

		dbConnectionsOpen:  v.gauge("db_connections_open", "Number of open database connections"),
		dbConnectionsInUse: v.gauge("db_connections_in_use", "Number of database connections in use"),
		dbConnectionsIdle:  v.gauge("db_connections_idle", "Number of idle database connections"),
		dbWaitCount:        v.gauge("db_wait_count", "Connections waited for since the pool opened"),

		logger: logger.With(zap.String("component", "metrics")),
	}
}

// RecordHTTPRequest path 应为归一化后的路由
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveRun workflowID 不作为标签
func (c *Collector) ObserveRun(_ string, status string, d time.Duration) {
	c.workflowRunsTotal.WithLabelValues(status).Inc()
	c.workflowRunDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (c *Collector) ObserveNode(nodeType, status string, d time.Duration) {
	c.nodeRunsTotal.WithLabelValues(nodeType, status).Inc()
	c.nodeRunDuration.WithLabelValues(nodeType).Observe(d.Seconds())
}

func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	if promptTokens > 0 {
		c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

func (c *Collector) RecordCacheHit(cache string)  { c.cacheHits.WithLabelValues(cache).Inc() }
func (c *Collector) RecordCacheMiss(cache string) { c.cacheMisses.WithLabelValues(cache).Inc() }

// RecordDBStats 由 database.PoolManager.Monitor 周期调用
func (c *Collector) RecordDBStats(stats sql.DBStats) {
	c.dbConnectionsOpen.Set(float64(stats.OpenConnections))
	c.dbConnectionsInUse.Set(float64(stats.InUse))
	c.dbConnectionsIdle.Set(float64(stats.Idle))
	c.dbWaitCount.Set(float64(stats.WaitCount))
}

// statusClass 把状态码归为 2xx…5xx
func statusClass(code int) string {
	if code < 200 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
