// Package domain file: internal/core/domain/workbench_models.go
package domain

import "strings"

// Dialect 是目标数据库的引擎类型
type Dialect string

const (
	DialectMySQL      Dialect = "mysql"
	DialectPostgreSQL Dialect = "postgresql"
)

// SupportedDialects 按下拉框顺序列出支持的数据库类型，第一个为默认值
var SupportedDialects = []Dialect{DialectMySQL, DialectPostgreSQL}

// ParseDialect 将表单输入解析为 Dialect，不区分大小写
func ParseDialect(s string) (Dialect, bool) {
	d := Dialect(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range SupportedDialects {
		if d == known {
			return d, true
		}
	}
	return "", false
}

// DefaultPort 是连接表单中端口的默认值
const DefaultPort = 3306

// ConnectionParameters 定义了建立一次数据库连接所需的全部参数。
// 由用户提交后即视为不可变。
type ConnectionParameters struct {
	Dialect  Dialect
	User     string
	Password string
	Host     string
	Port     int
	DBName   string
}

// LLMConfig 定义了构造查询代理所需的 LLM 配置
type LLMConfig struct {
	Provider    string
	ModelID     string
	APIKey      string
	Temperature float64
}

// TableSchema 表示单张表及其按声明顺序排列的列名
type TableSchema struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// SchemaInfo 是连接建立时探测到的表结构快照，之后不会自动刷新。
// Tables 保留探测顺序，Columns 为 表名 -> 有序列名 的映射。
type SchemaInfo struct {
	Tables  []TableSchema       `json:"tables"`
	Columns map[string][]string `json:"-"`
}

// NewSchemaInfo 基于有序的表列表构造 SchemaInfo
func NewSchemaInfo(tables []TableSchema) *SchemaInfo {
	info := &SchemaInfo{
		Tables:  tables,
		Columns: make(map[string][]string, len(tables)),
	}
	for _, t := range tables {
		info.Columns[t.Name] = t.Columns
	}
	return info
}

// TableNames 返回按探测顺序排列的表名
func (s *SchemaInfo) TableNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	return names
}

// QueryResult 是查询代理返回的原始结构化结果
type QueryResult map[string]any

// ResultTable 是渲染到页面上的单列表格
type ResultTable struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// SessionState 是展示层状态机的稳定状态
type SessionState string

const (
	StateUnconfigured SessionState = "unconfigured"
	StateConfiguring  SessionState = "configuring"
	StateReady        SessionState = "ready"
	StateQuerying     SessionState = "querying"
)
