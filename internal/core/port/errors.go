// Package port file: internal/core/port/errors.go
package port

import (
	"errors"
	"fmt"
)

// ErrorKind 是面向用户的错误分类，是一个封闭枚举
type ErrorKind int

const (
	// KindConnection 连接失败：凭据错误、主机不可达或驱动拒绝 DSN
	KindConnection ErrorKind = iota + 1
	// KindIntrospection 读取表结构失败
	KindIntrospection
	// KindAuthentication LLM 密钥无效
	KindAuthentication
	// KindConfiguration 配置错误，包括未 setup 就发起查询、模型标识不可识别
	KindConfiguration
	// KindQueryExecution LLM 调用失败或生成的 SQL 执行失败
	KindQueryExecution
	// KindResultShape 返回结构不符合预期，降级为占位展示而非硬失败
	KindResultShape
)

// String 返回错误分类的名称
func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "ConnectionError"
	case KindIntrospection:
		return "IntrospectionError"
	case KindAuthentication:
		return "AuthenticationError"
	case KindConfiguration:
		return "ConfigurationError"
	case KindQueryExecution:
		return "QueryExecutionError"
	case KindResultShape:
		return "ResultShapeError"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error 是带分类的错误，Op 描述失败的操作
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, &Error{Kind: k}) 能够按分类匹配
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// NewError 构造一个带分类的错误
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf 返回错误链中第一个 *Error 的分类；非分类错误返回 0 和 false
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Standard errors
var (
	ErrSetupRequired      = NewError(KindConfiguration, "setup required first", nil)
	ErrUnsupportedDialect = errors.New("不支持的数据库类型")
	ErrEmptyAPIKey        = errors.New("API 密钥不能为空")
	ErrUnknownModel       = errors.New("无法识别的模型标识")
	ErrUnknownProvider    = errors.New("无法识别的 LLM 提供方")
	ErrConnectionClosed   = errors.New("数据库连接已关闭")
)
