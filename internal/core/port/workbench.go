// Package port file: internal/core/port/workbench.go
package port

import (
	"SQLRet/internal/core/domain"
	"context"
	"database/sql"
)

// ConnectionHandle 封装一个已打开的数据库连接，生命周期归属于会话
type ConnectionHandle interface {
	// DB 返回底层连接池
	DB() *sql.DB
	// Dialect 返回连接的数据库类型
	Dialect() domain.Dialect
	// DSN 返回驱动可识别的连接串，含凭据，禁止写入日志
	DSN() string
	// Close 释放连接池
	Close() error
}

// ConnectionBuilder 根据连接参数打开数据库连接
type ConnectionBuilder interface {
	Build(ctx context.Context, params domain.ConnectionParameters) (ConnectionHandle, error)
}

// SchemaInspector 枚举连接可见的表及其列
type SchemaInspector interface {
	Inspect(ctx context.Context, handle ConnectionHandle) (*domain.SchemaInfo, error)
}

// QueryAgent 接收自然语言问题，返回结构化结果。
// 内部的 SQL 生成与执行完全由外部链路负责。
type QueryAgent interface {
	Invoke(ctx context.Context, query string) (domain.QueryResult, error)
}

// AgentFactory 基于连接和 LLM 配置构造查询代理
type AgentFactory interface {
	MakeAgent(ctx context.Context, handle ConnectionHandle, cfg domain.LLMConfig) (QueryAgent, error)
}
