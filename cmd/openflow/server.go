package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/openflow/agent"
	"github.com/BaSui01/openflow/api"
	"github.com/BaSui01/openflow/api/handlers"
	"github.com/BaSui01/openflow/config"
	"github.com/BaSui01/openflow/internal/cache"
	"github.com/BaSui01/openflow/internal/database"
	"github.com/BaSui01/openflow/internal/metrics"
	"github.com/BaSui01/openflow/internal/server"
	"github.com/BaSui01/openflow/internal/store"
	"github.com/BaSui01/openflow/internal/telemetry"
	"github.com/BaSui01/openflow/internal/tlsutil"
	"github.com/BaSui01/openflow/llm"
	"github.com/BaSui01/openflow/llm/providers/ollama"
	"github.com/BaSui01/openflow/llm/tools"
	"github.com/BaSui01/openflow/workflow"
	"github.com/BaSui01/openflow/workflow/nodes"
)

// toolClientTimeout 工具出站请求的整体上限，各工具另有更短的 context 超时
const toolClientTimeout = 30 * time.Second

// dbStatsInterval 连接池指标采样间隔
const dbStatsInterval = 15 * time.Second

// =============================================================================
// 🔧 运行时组件
// =============================================================================

// runtime 是 serve 与 run 共用的执行组件
type runtime struct {
	registry *workflow.NodeRegistry
	engine   *workflow.Engine
	provider llm.Provider
	cache    *cache.Manager
}

// buildRuntime 装配节点注册表、智能体编排器与执行引擎。
// collector 为 nil 时不记录指标。
func buildRuntime(cfg *config.Config, logger *zap.Logger, tp *telemetry.Providers, collector *metrics.Collector) *runtime {
	rt := &runtime{}

	settings := cfg.ToolSettings()
	settings.HTTPClient = tlsutil.NewClient(tlsutil.ClientOptions{Timeout: toolClientTimeout})

	if cfg.Redis.Enabled {
		cm, err := cache.NewManager(cfg.Redis, cache.Options{DefaultTTL: cfg.AgentTools.CacheTTL}, logger)
		if err != nil {
			// 缓存不可用时工具照常执行，只是不缓存
			logger.Warn("redis unavailable, tool result cache disabled", zap.Error(err))
		} else {
			rt.cache = cm
			if collector != nil {
				settings.Cache = metrics.InstrumentCache(cm, "tavily", collector)
			} else {
				settings.Cache = cm
			}
		}
	}
	catalog := tools.NewCatalog(settings, logger)

	var runner agent.Runner
	switch cfg.LLM.Provider {
	case "ollama", "":
		var provider llm.Provider = ollama.New(ollama.Config{
			BaseURL:      cfg.LLM.BaseURL,
			DefaultModel: cfg.Agent.Model,
			Timeout:      cfg.LLM.Timeout,
			KeepAlive:    cfg.LLM.KeepAlive,
		}, logger)
		if collector != nil {
			provider = metrics.InstrumentProvider(provider, collector)
		}
		rt.provider = provider
		runner = agent.NewReActRunner(provider, logger)
	default:
		// 未知 provider：智能体节点在校验参数后报告 MISSING_CAPABILITY
		logger.Warn("unsupported LLM provider, agent nodes disabled", zap.String("provider", cfg.LLM.Provider))
	}

	orchestrator := agent.NewOrchestrator(cfg, catalog, runner,
		agent.WithLogger(logger),
		agent.WithTracer(tp.Tracer()),
	)

	rt.registry = workflow.NewNodeRegistry()
	nodes.Register(rt.registry)
	agent.Register(rt.registry, orchestrator)

	opts := []workflow.EngineOption{
		workflow.WithLogger(logger),
		workflow.WithTracer(tp.Tracer()),
	}
	if collector != nil {
		opts = append(opts, workflow.WithRecorder(collector))
	}
	rt.engine = workflow.NewEngine(rt.registry, opts...)
	return rt
}

// Close 释放运行时持有的连接
func (rt *runtime) Close() error {
	if rt.cache != nil {
		return rt.cache.Close()
	}
	return nil
}

// =============================================================================
// 🖥️ Server
// =============================================================================

// Server 是 OpenFlow 的 HTTP 服务
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Providers

	promRegistry *prometheus.Registry
	collector    *metrics.Collector
	pool         *database.PoolManager
	store        *store.Store
	runtime      *runtime

	httpManager *server.Manager
	limiter     *clientLimiter
}

// NewServer 装配全部依赖并绑定监听地址
func NewServer(cfg *config.Config, logger *zap.Logger, tp *telemetry.Providers) (*Server, error) {
	s := &Server{
		cfg:          cfg,
		logger:       logger,
		telemetry:    tp,
		promRegistry: prometheus.NewRegistry(),
	}
	s.promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.collector = metrics.NewCollector("openflow", s.promRegistry, logger)

	pool, err := database.Open(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s.pool = pool

	st, err := store.New(pool, logger)
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to init store: %w", err)
	}
	s.store = st

	s.runtime = buildRuntime(cfg, logger, tp, s.collector)

	s.httpManager = server.NewManager(s.handler(), server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxConnections:  cfg.Server.MaxConnections,
	}, logger)
	if err := s.httpManager.Listen(); err != nil {
		_ = s.close()
		return nil, err
	}
	return s, nil
}

// handler 构建路由与中间件链
func (s *Server) handler() http.Handler {
	health := handlers.NewHealthHandler(s.logger)
	health.AddCheck(handlers.Check{Name: "database", Critical: true, Probe: s.pool.Ping})
	if s.runtime.cache != nil {
		health.AddCheck(handlers.Check{Name: "redis", Probe: s.runtime.cache.Ping})
	}
	if s.runtime.provider != nil {
		provider := s.runtime.provider
		health.AddCheck(handlers.Check{Name: "llm", Probe: func(ctx context.Context) error {
			status, err := provider.HealthCheck(ctx)
			if err != nil {
				return err
			}
			if !status.Healthy {
				return errors.New("provider unhealthy")
			}
			return nil
		}})
	}

	mux := api.NewRouter(api.Handlers{
		Health:    health,
		Catalog:   handlers.NewCatalogHandler(s.runtime.registry, s.cfg),
		Workflow:  handlers.NewWorkflowHandler(s.store, s.runtime.engine, s.logger),
		Metrics:   promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	})

	s.limiter = newClientLimiter(s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger)

	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		Instrument(s.telemetry.Tracer(), s.collector, s.logger),
		CORS(s.cfg.Server.CORSOrigins),
		s.limiter.Middleware(),
		JWTAuth(s.cfg.Auth.JWTSecret, s.cfg.Auth.Issuer, publicPaths, s.logger),
	)
}

// publicPaths 不需要认证的路径
var publicPaths = []string{"/health", "/ready", "/version", "/metrics"}

// Addr 返回实际监听地址
func (s *Server) Addr() string { return s.httpManager.Addr() }

// Run 提供服务直到 ctx 取消，随后按顺序释放资源
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("OpenFlow server started",
		zap.String("addr", s.Addr()),
		zap.String("database", s.cfg.Database.Driver),
		zap.Bool("redis", s.runtime.cache != nil),
		zap.Bool("auth", s.cfg.Auth.JWTSecret != ""),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.httpManager.Run(gctx) })
	g.Go(func() error {
		return s.pool.Monitor(gctx, dbStatsInterval, s.collector.RecordDBStats)
	})
	g.Go(func() error { return s.limiter.Prune(gctx) })
	err := g.Wait()

	s.logger.Info("Starting graceful shutdown...")
	if cerr := s.close(); cerr != nil {
		s.logger.Error("shutdown error", zap.Error(cerr))
	}
	s.logger.Info("Graceful shutdown completed")
	return err
}

func (s *Server) close() error {
	var errs []error
	if s.runtime != nil {
		if err := s.runtime.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if s.pool != nil {
		if err := s.pool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
