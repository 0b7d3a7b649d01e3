// Package workbench: 展示层状态机，分为连接 setup 与自然语言查询两个阶段
// internal/service/workbench/session.go
package workbench

import (
	"SQLRet/internal/core/domain"
	"SQLRet/internal/core/port"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Session 是单个用户会话的显式上下文对象，替代进程级的全局会话存储。
// conn 与 agent 只由 Setup 写入、由 Query 读取；同一会话的交互由 mu 串行化。
type Session struct {
	mu sync.Mutex

	ID        string
	CreatedAt time.Time

	state     domain.SessionState
	schema    *domain.SchemaInfo
	conn      port.ConnectionHandle
	agent     port.QueryAgent
	lastQuery string
	lastTable *domain.ResultTable
}

// NewSession 创建处于 Unconfigured 状态的新会话
func NewSession(id string) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		state:     domain.StateUnconfigured,
	}
}

// View 是会话在某一时刻的只读快照，供页面渲染和 JSON 输出
type View struct {
	ID        string              `json:"id"`
	State     domain.SessionState `json:"state"`
	Schema    *domain.SchemaInfo  `json:"schema,omitempty"`
	LastQuery string              `json:"last_query,omitempty"`
	LastTable *domain.ResultTable `json:"last_table,omitempty"`
}

// Snapshot 返回会话当前状态的快照
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		ID:        s.ID,
		State:     s.state,
		Schema:    s.schema,
		LastQuery: s.lastQuery,
		LastTable: s.lastTable,
	}
}

// State 返回当前稳定状态
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close 释放会话持有的连接与代理，会话回到 Unconfigured
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
	s.schema = nil
	s.lastTable = nil
	s.lastQuery = ""
	s.state = domain.StateUnconfigured
}

// releaseLocked 关闭当前的连接与代理，调用前必须持有 mu
func (s *Session) releaseLocked() {
	if closer, ok := s.agent.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			slog.Warn("关闭查询代理时发生错误", "session", s.ID, "error", err)
		}
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			slog.Warn("关闭数据库连接时发生错误", "session", s.ID, "error", err)
		}
	}
	s.agent = nil
	s.conn = nil
}
