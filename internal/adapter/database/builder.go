// Package database file: internal/adapter/database/builder.go
package database

import (
	"SQLRet/internal/core/domain"
	"SQLRet/internal/core/port"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// 断言 *Builder 实现 port.ConnectionBuilder 接口，编译期校验
var _ port.ConnectionBuilder = (*Builder)(nil)

// Options 是连接池与驱动层面的可调参数
type Options struct {
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// Builder 打开 mysql / postgresql 连接，除驱动本身的校验外不做额外校验，也不重试
type Builder struct {
	opts Options
	open func(driverName, dsn string) (*sql.DB, error)
}

// NewBuilder 创建一个新的连接构建器
func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts, open: sql.Open}
}

// Build 实现 port.ConnectionBuilder 接口。所有失败均归类为 KindConnection。
func (b *Builder) Build(ctx context.Context, params domain.ConnectionParameters) (port.ConnectionHandle, error) {
	const op = "build connection"

	driver, err := driverName(params.Dialect)
	if err != nil {
		return nil, port.NewError(port.KindConnection, op, err)
	}
	dsn, err := buildDSN(params, b.opts)
	if err != nil {
		return nil, port.NewError(port.KindConnection, op, err)
	}

	db, err := b.open(driver, dsn)
	if err != nil {
		return nil, port.NewError(port.KindConnection, op, fmt.Errorf("sql.Open '%s' 失败: %w", driver, err))
	}
	b.applyPool(db)

	pingCtx := ctx
	if b.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, b.opts.ConnectTimeout)
		defer cancel()
	}
	if errPing := db.PingContext(pingCtx); errPing != nil {
		_ = db.Close()
		return nil, port.NewError(port.KindConnection, op,
			fmt.Errorf("ping 数据库 %s:%d/%s 失败: %w", params.Host, params.Port, params.DBName, errPing))
	}

	slog.Info("数据库连接已建立",
		"dialect", params.Dialect,
		"host", params.Host,
		"port", params.Port,
		"database", params.DBName,
		"user", params.User,
	)
	return NewHandle(db, params.Dialect, dsn), nil
}

// applyPool 将连接池参数应用到 db 上，零值表示沿用驱动默认
func (b *Builder) applyPool(db *sql.DB) {
	if b.opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(b.opts.MaxOpenConns)
	}
	if b.opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(b.opts.MaxIdleConns)
	}
	if b.opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(b.opts.ConnMaxLifetime)
	}
}
