package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrPoolClosed 连接池关闭后的所有操作都返回该错误
var ErrPoolClosed = errors.New("database pool is closed")

// =============================================================================
// 🗄️ 连接池
// =============================================================================

// PoolManager 持有工作流存储使用的 GORM 实例
type PoolManager struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	cfg    PoolConfig
	logger *zap.Logger
	closed atomic.Bool
}

// PoolConfig 连接池参数
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// TxAttempts 是 RunInTx 对可重试错误的最大尝试次数
	TxAttempts int
	// TxBackoff 为首次重试前的等待，之后逐次翻倍
	TxBackoff time.Duration
}

// DefaultPoolConfig 返回服务端默认值
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:    5,
		MaxOpenConns:    25,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
		TxAttempts:      3,
		TxBackoff:       25 * time.Millisecond,
	}
}

// NewPoolManager 按 cfg 调整 db 的连接池
func NewPoolManager(db *gorm.DB, cfg PoolConfig, logger *zap.Logger) (*PoolManager, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TxAttempts < 1 {
		cfg.TxAttempts = 1
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return &PoolManager{
		db:     db,
		sqlDB:  sqlDB,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "db_pool")),
	}, nil
}

// DB 返回 GORM 实例
func (pm *PoolManager) DB() *gorm.DB { return pm.db }

// Ping 检查数据库是否可达
func (pm *PoolManager) Ping(ctx context.Context) error {
	if pm.closed.Load() {
		return ErrPoolClosed
	}
	return pm.sqlDB.PingContext(ctx)
}

// Stats 返回连接池快照
func (pm *PoolManager) Stats() sql.DBStats { return pm.sqlDB.Stats() }

// Monitor 每隔 interval 探活一次并把连接池快照交给 observe，
// 阻塞到 ctx 取消或连接池关闭。首次采样立即进行。
func (pm *PoolManager) Monitor(ctx context.Context, interval time.Duration, observe func(sql.DBStats)) error {
	if interval <= 0 {
		return fmt.Errorf("invalid monitor interval %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if pm.closed.Load() {
			return nil
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := pm.Ping(pingCtx); err != nil && ctx.Err() == nil {
			pm.logger.Warn("database ping failed", zap.Error(err))
		}
		cancel()
		if observe != nil {
			observe(pm.Stats())
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Close 关闭连接池，可重复调用
func (pm *PoolManager) Close() error {
	if !pm.closed.CompareAndSwap(false, true) {
		return nil
	}
	pm.logger.Info("closing database pool")
	return pm.sqlDB.Close()
}

// =============================================================================
// 🔄 事务
// =============================================================================

// TxFunc 在单个事务内执行
type TxFunc func(tx *gorm.DB) error

// RunInTx 在事务中执行 fn。遇到锁冲突或断连时整体重试，
// 最多 TxAttempts 次，fn 必须可重复执行。
func (pm *PoolManager) RunInTx(ctx context.Context, fn TxFunc) error {
	backoff := pm.cfg.TxBackoff
	var err error
	for attempt := 1; ; attempt++ {
		if pm.closed.Load() {
			return ErrPoolClosed
		}
		err = pm.db.WithContext(ctx).Transaction(fn)
		if err == nil || !isRetryableError(err) {
			return err
		}
		if attempt >= pm.cfg.TxAttempts {
			break
		}

		pm.logger.Warn("transaction conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", pm.cfg.TxAttempts, err)
}

// 各驱动返回的冲突类错误没有统一类型，只能按消息匹配
var retryableMarkers = []string{
	"deadlock",
	"could not serialize access",
	"40001",
	"database is locked",
	"sqlite_busy",
	"lock wait timeout",
	"connection reset",
	"broken pipe",
}

func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range retryableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
