// Package middleware file: internal/transport/http/middleware/error_handler.go
package middleware

import (
	"SQLRet/internal/core/port"
	"SQLRet/internal/service/workbench"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// StatusFor 将交互错误映射为 HTTP 状态码，nil 返回 200
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) || errors.Is(err, workbench.ErrEmptyQuery) {
		return http.StatusBadRequest
	}

	kind, ok := port.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case port.KindConfiguration:
		return http.StatusConflict
	case port.KindAuthentication:
		return http.StatusUnauthorized
	case port.KindConnection, port.KindIntrospection, port.KindQueryExecution:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandlingMiddleware 是一个Gin中间件，用于集中处理 JSON API 中通过 c.Error(err) 附加的错误。
// 处理器已经写出响应时不再重复写入。
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		// 只处理最后一个错误，它通常是根本原因
		last := c.Errors.Last()
		err := last.Err
		status := StatusFor(err)

		var ve validator.ValidationErrors
		switch {
		case errors.As(err, &ve):
			c.JSON(status, gin.H{"error": "请求参数验证失败", "details": ve.Error()})
		case last.IsType(gin.ErrorTypeBind):
			// 请求体无法解析，例如 JSON 语法错误或字段类型不匹配
			c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数解析失败", "details": err.Error()})
		case status == http.StatusInternalServerError:
			slog.Error("未处理的请求错误", "path", c.FullPath(), "error", err)
			c.JSON(status, gin.H{"error": "服务器内部错误"})
		default:
			c.JSON(status, gin.H{"error": err.Error()})
		}
	}
}
