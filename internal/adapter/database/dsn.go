// Package database file: internal/adapter/database/dsn.go
package database

import (
	"SQLRet/internal/core/domain"
	"SQLRet/internal/core/port"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// driverName 返回方言对应的 database/sql 驱动名
func driverName(d domain.Dialect) (string, error) {
	switch d {
	case domain.DialectMySQL:
		return "mysql", nil
	case domain.DialectPostgreSQL:
		return "pgx", nil
	default:
		return "", fmt.Errorf("%w: '%s'", port.ErrUnsupportedDialect, d)
	}
}

// buildDSN 根据方言构造驱动可识别的连接串
func buildDSN(params domain.ConnectionParameters, opts Options) (string, error) {
	switch params.Dialect {
	case domain.DialectMySQL:
		return buildMySQLDSN(params, opts), nil
	case domain.DialectPostgreSQL:
		return buildPostgresDSN(params, opts), nil
	default:
		return "", fmt.Errorf("%w: '%s'", port.ErrUnsupportedDialect, params.Dialect)
	}
}

// buildMySQLDSN 使用驱动自带的 Config 生成 user:pass@tcp(host:port)/db 形式的 DSN
func buildMySQLDSN(params domain.ConnectionParameters, opts Options) string {
	cfg := mysql.NewConfig()
	cfg.User = params.User
	cfg.Passwd = params.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(params.Host, strconv.Itoa(params.Port))
	cfg.DBName = params.DBName
	cfg.ParseTime = true
	if opts.ConnectTimeout > 0 {
		cfg.Timeout = opts.ConnectTimeout
	}
	return cfg.FormatDSN()
}

// buildPostgresDSN 构造 key=value 形式的连接串: host=localhost port=5432 dbname=app ...
func buildPostgresDSN(params domain.ConnectionParameters, opts Options) string {
	sslmode := opts.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	parts := []string{
		"host=" + quotePGValue(params.Host),
		"port=" + strconv.Itoa(params.Port),
		"dbname=" + quotePGValue(params.DBName),
		"sslmode=" + quotePGValue(sslmode),
	}
	if params.User != "" {
		parts = append(parts, "user="+quotePGValue(params.User))
	}
	if params.Password != "" {
		parts = append(parts, "password="+quotePGValue(params.Password))
	}
	if opts.ConnectTimeout > 0 {
		parts = append(parts, "connect_timeout="+strconv.Itoa(int(opts.ConnectTimeout.Seconds())))
	}
	return strings.Join(parts, " ")
}

// quotePGValue 按 libpq 规则为含空格、引号或反斜杠的值加单引号
func quotePGValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
