// Package workbench file: internal/service/workbench/store.go
package workbench

import (
	"SQLRet/internal/observe"
	"log/slog"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Store 是进程内的会话存储，按会话 ID 隔离。
// 会话在空闲 idleTTL 后或容量溢出时被淘汰，淘汰时释放其数据库连接。
type Store struct {
	cache *lru.LRU[string, *Session]
}

// NewStore 创建一个新的会话存储
func NewStore(maxSessions int, idleTTL time.Duration) *Store {
	if maxSessions <= 0 {
		maxSessions = 256 // 默认值
	}
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute // 默认值
	}

	// 淘汰回调在 LRU 内部锁中执行，会话可能正被长查询占用，因此异步释放
	onEvict := func(id string, sess *Session) {
		go sess.Close()
		observe.ActiveSessions.Dec()
		slog.Info("会话已淘汰", "session", id)
	}
	return &Store{
		cache: lru.NewLRU[string, *Session](maxSessions, onEvict, idleTTL),
	}
}

// Get 按 ID 查找会话，命中时刷新其空闲计时
func (st *Store) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	sess, ok := st.cache.Get(id)
	if !ok {
		return nil, false
	}
	st.cache.Add(id, sess)
	return sess, true
}

// Create 创建一个新的会话并放入存储
func (st *Store) Create() *Session {
	sess := NewSession(uuid.NewString())
	st.cache.Add(sess.ID, sess)
	observe.ActiveSessions.Inc()
	slog.Debug("新会话已创建", "session", sess.ID)
	return sess
}

// GetOrCreate 查找会话，不存在时创建新会话；created 表示是否为新建
func (st *Store) GetOrCreate(id string) (sess *Session, created bool) {
	if sess, ok := st.Get(id); ok {
		return sess, false
	}
	return st.Create(), true
}

// Remove 主动删除会话并释放其资源
func (st *Store) Remove(id string) {
	st.cache.Remove(id)
}

// Len 返回当前存活的会话数
func (st *Store) Len() int {
	return st.cache.Len()
}

// Purge 释放所有会话，用于进程退出
func (st *Store) Purge() {
	st.cache.Purge()
}
