// Package observe file: internal/observe/logging.go
package observe

import (
	"log/slog"
	"os"
	"strings"
)

// logLevel 是全局日志级别，配置热更新时通过 SetLogLevel 调整
var logLevel = new(slog.LevelVar)

// ParseLevel 将配置字符串解析为 slog.Level，无法识别时回退为 INFO
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogger 初始化全局的结构化日志记录器。
// 它应该在 main 函数的早期被调用。
func InitLogger(levelStr string) {
	logLevel.Set(ParseLevel(levelStr))

	// JSON 格式输出到标准输出，附带代码源位置（文件:行号）
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: true,
	})

	slog.SetDefault(slog.New(handler))
}

// SetLogLevel 在运行时调整日志级别，返回调整后的级别
func SetLogLevel(levelStr string) slog.Level {
	level := ParseLevel(levelStr)
	logLevel.Set(level)
	return level
}
