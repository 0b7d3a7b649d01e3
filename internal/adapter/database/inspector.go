// Package database file: internal/adapter/database/inspector.go
package database

import (
	"SQLRet/internal/core/domain"
	"SQLRet/internal/core/port"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// 断言 *Inspector 实现 port.SchemaInspector 接口，编译期校验
var _ port.SchemaInspector = (*Inspector)(nil)

// 各方言的 information_schema 查询。只列出当前库/当前 schema 下的基础表，
// 列按 ordinal_position 排序，即数据库原生的声明顺序。
const (
	mysqlTablesSQL = `SELECT table_name FROM information_schema.tables
WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
ORDER BY table_name`
	mysqlColumnsSQL = `SELECT table_name, column_name FROM information_schema.columns
WHERE table_schema = DATABASE()
ORDER BY table_name, ordinal_position`

	postgresTablesSQL = `SELECT table_name FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
ORDER BY table_name`
	postgresColumnsSQL = `SELECT table_name, column_name FROM information_schema.columns
WHERE table_schema = current_schema()
ORDER BY table_name, ordinal_position`
)

// Inspector 是只读的表结构探测器，不做任何缓存
type Inspector struct{}

// NewInspector 创建一个新的表结构探测器
func NewInspector() *Inspector {
	return &Inspector{}
}

// Inspect 实现 port.SchemaInspector 接口。所有失败均归类为 KindIntrospection。
func (i *Inspector) Inspect(ctx context.Context, handle port.ConnectionHandle) (*domain.SchemaInfo, error) {
	const op = "inspect schema"

	if handle == nil || handle.DB() == nil {
		return nil, port.NewError(port.KindIntrospection, op, port.ErrConnectionClosed)
	}
	tablesSQL, columnsSQL, err := introspectionQueries(handle.Dialect())
	if err != nil {
		return nil, port.NewError(port.KindIntrospection, op, err)
	}
	db := handle.DB()

	tableNames, err := listTables(ctx, db, tablesSQL)
	if err != nil {
		return nil, port.NewError(port.KindIntrospection, op, err)
	}
	columns, err := listColumns(ctx, db, columnsSQL)
	if err != nil {
		return nil, port.NewError(port.KindIntrospection, op, err)
	}

	tables := make([]domain.TableSchema, 0, len(tableNames))
	for _, name := range tableNames {
		cols := columns[name]
		if cols == nil {
			cols = []string{}
		}
		tables = append(tables, domain.TableSchema{Name: name, Columns: cols})
	}

	slog.Debug("表结构探测完成", "dialect", handle.Dialect(), "tables", len(tables))
	return domain.NewSchemaInfo(tables), nil
}

func introspectionQueries(d domain.Dialect) (tablesSQL, columnsSQL string, err error) {
	switch d {
	case domain.DialectMySQL:
		return mysqlTablesSQL, mysqlColumnsSQL, nil
	case domain.DialectPostgreSQL:
		return postgresTablesSQL, postgresColumnsSQL, nil
	default:
		return "", "", fmt.Errorf("%w: '%s'", port.ErrUnsupportedDialect, d)
	}
}

// listTables 返回按名称排序的表名
func listTables(ctx context.Context, db *sql.DB, query string) ([]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("查询表列表失败: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("扫描表名失败: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历表列表失败: %w", err)
	}
	return names, nil
}

// listColumns 返回 表名 -> 有序列名 的映射
func listColumns(ctx context.Context, db *sql.DB, query string) (map[string][]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("查询列信息失败: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns := make(map[string][]string)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, fmt.Errorf("扫描列信息失败: %w", err)
		}
		columns[table] = append(columns[table], column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历列信息失败: %w", err)
	}
	return columns, nil
}
