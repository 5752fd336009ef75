package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// readyTimeout 整个 /ready 请求内全部检查共享的时限
const readyTimeout = 5 * time.Second

// 就绪状态
const (
	StateOK        = "ok"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

// Check 是一项依赖检查。Critical 为 false 的检查失败只会让服务降级，
// 例如 Ollama 不可达时工作流 CRUD 仍然可用。
type Check struct {
	Name     string
	Critical bool
	Probe    func(ctx context.Context) error
}

// CheckResult 单项检查结果
type CheckResult struct {
	Status   string `json:"status"` // pass / fail
	Critical bool   `json:"critical"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency"`
}

// ReadinessStatus /ready 响应体
type ReadinessStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// HealthHandler 提供 /health、/ready 与 /version
type HealthHandler struct {
	logger *zap.Logger

	mu     sync.RWMutex
	checks []Check
}

// NewHealthHandler 创建处理器
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{logger: logger.With(zap.String("component", "health"))}
}

// AddCheck 注册依赖检查，同名检查以后者为准
func (h *HealthHandler) AddCheck(c Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.checks {
		if h.checks[i].Name == c.Name {
			h.checks[i] = c
			return
		}
	}
	h.checks = append(h.checks, c)
}

// HandleHealth 处理 GET /health，只表示进程存活
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": StateOK})
}

// HandleReady 处理 GET /ready。检查并发执行；任一关键检查失败返回 503，
// 仅非关键检查失败时返回 200 与 degraded。
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := append([]Check(nil), h.checks...)
	h.mu.RUnlock()

	results := make([]CheckResult, len(checks))
	g, ctx := errgroup.WithContext(r.Context())
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	for i, c := range checks {
		g.Go(func() error {
			results[i] = h.probe(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	status := ReadinessStatus{
		Status:    StateOK,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}
	for i, c := range checks {
		res := results[i]
		status.Checks[c.Name] = res
		if res.Status == "pass" {
			continue
		}
		if c.Critical {
			status.Status = StateUnhealthy
		} else if status.Status == StateOK {
			status.Status = StateDegraded
		}
	}

	code := http.StatusOK
	if status.Status == StateUnhealthy {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, status)
}

func (h *HealthHandler) probe(ctx context.Context, c Check) CheckResult {
	start := time.Now()
	err := c.Probe(ctx)
	latency := time.Since(start)

	res := CheckResult{Status: "pass", Critical: c.Critical, Latency: latency.String()}
	if err != nil {
		res.Status = "fail"
		res.Message = err.Error()
		h.logger.Warn("readiness check failed",
			zap.String("check", c.Name),
			zap.Bool("critical", c.Critical),
			zap.Duration("latency", latency),
			zap.Error(err))
	}
	return res
}

// HandleVersion 处理 GET /version
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	body := map[string]string{
		"version":    version,
		"build_time": buildTime,
		"git_commit": gitCommit,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, body)
	}
}
