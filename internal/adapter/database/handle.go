// Package database: mysql / postgresql 连接构建与表结构探测
// internal/adapter/database/handle.go
package database

import (
	"SQLRet/internal/core/domain"
	"SQLRet/internal/core/port"
	"database/sql"
	"sync"
)

// 断言 *Handle 实现 port.ConnectionHandle 接口，编译期校验
var _ port.ConnectionHandle = (*Handle)(nil)

// Handle 是 port.ConnectionHandle 的 database/sql 实现
type Handle struct {
	db      *sql.DB
	dialect domain.Dialect
	dsn     string

	closeOnce sync.Once
	closeErr  error
	closed    bool
	mu        sync.RWMutex
}

// NewHandle 包装一个已打开的连接池
func NewHandle(db *sql.DB, dialect domain.Dialect, dsn string) *Handle {
	return &Handle{db: db, dialect: dialect, dsn: dsn}
}

// DB 返回底层连接池，连接关闭后返回 nil
func (h *Handle) DB() *sql.DB {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil
	}
	return h.db
}

func (h *Handle) Dialect() domain.Dialect { return h.dialect }

func (h *Handle) DSN() string { return h.dsn }

// Close 关闭连接池，可重复调用
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()
		if h.db != nil {
			h.closeErr = h.db.Close()
		}
	})
	return h.closeErr
}
