package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrClosed 关闭后再调用 Listen 或 Run
	ErrClosed = errors.New("http server is closed")
	// ErrAlreadyListening 重复调用 Listen
	ErrAlreadyListening = errors.New("http server already listening")
)

type state int

const (
	stateIdle state = iota
	stateListening
	stateClosed
)

// Config 监听与超时参数。零值字段取 DefaultConfig 中的值，
// MaxConnections 为 0 表示不限制连接数。
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
	MaxConnections  int
}

// DefaultConfig 服务端默认值
func DefaultConfig() Config {
	return Config{
		Addr:            ":8000",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 15 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = d.MaxHeaderBytes
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}

// Manager 持有一个 http.Server 及其监听器：Listen 绑定端口，Run 服务到
// ctx 取消，Shutdown 在时限内排空连接，超时后强制断开。
type Manager struct {
	srv    *http.Server
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	state    state
	listener net.Listener
}

// NewManager 创建管理器，不会绑定端口
func NewManager(handler http.Handler, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Manager{
		srv: &http.Server{
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
			ErrorLog:          zap.NewStdLog(logger.Named("net_http")),
		},
		cfg:    cfg,
		logger: logger.With(zap.String("component", "http_server")),
	}
}

// Listen 绑定地址。端口为 0 时可在之后用 Addr 取得实际端口。
func (m *Manager) Listen() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listenLocked()
}

func (m *Manager) listenLocked() error {
	switch m.state {
	case stateClosed:
		return ErrClosed
	case stateListening:
		return ErrAlreadyListening
	}

	ln, err := net.Listen("tcp", m.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", m.cfg.Addr, err)
	}
	if m.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, m.cfg.MaxConnections)
	}
	m.listener = ln
	m.state = stateListening
	return nil
}

// Run 在尚未 Listen 时先绑定地址，然后服务到 ctx 取消或 Serve 出错
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.state == stateIdle {
		if err := m.listenLocked(); err != nil {
			m.mu.Unlock()
			return err
		}
	}
	ln, st := m.listener, m.state
	m.mu.Unlock()
	if st == stateClosed {
		return ErrClosed
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m.logger.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))
		err := m.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		return m.Shutdown(context.WithoutCancel(ctx))
	})
	return g.Wait()
}

// Shutdown 排空连接，超过 ShutdownTimeout 后强制关闭。可重复调用。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.state == stateClosed {
		m.mu.Unlock()
		return nil
	}
	m.state = stateClosed
	ln := m.listener
	m.mu.Unlock()

	m.logger.Info("shutting down HTTP server")
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
	defer cancel()

	err := m.srv.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		m.logger.Warn("graceful shutdown timed out, closing connections",
			zap.Duration("timeout", m.cfg.ShutdownTimeout))
		err = m.srv.Close()
	}
	if ln != nil {
		// Shutdown 只关闭 Serve 正在使用的监听器
		_ = ln.Close()
	}
	if err != nil {
		m.logger.Error("HTTP server shutdown failed", zap.Error(err))
		return err
	}
	m.logger.Info("HTTP server stopped")
	return nil
}

// Addr 返回实际监听地址，尚未监听时返回配置地址
func (m *Manager) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener != nil {
		return m.listener.Addr().String()
	}
	return m.cfg.Addr
}

// IsRunning 报告服务器是否尚未关闭
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != stateClosed
}
