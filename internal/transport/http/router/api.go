// file: internal/transport/http/router/api.go
package router

import (
	"SQLRet/internal/service/workbench"
	"SQLRet/internal/transport/http/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
)

// =============================================================================
//  V1 JSON 处理器
// =============================================================================

// sessionViewHandler 返回当前会话的状态与表结构
func sessionViewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, middleware.SessionFrom(c).Snapshot())
	}
}

// sessionDeleteHandler 关闭当前会话持有的连接与代理
func sessionDeleteHandler(store *workbench.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		store.Remove(middleware.SessionFrom(c).ID)
		c.Status(http.StatusNoContent)
	}
}

func setupHandlerV1(svc *workbench.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req setupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(err).SetType(gin.ErrorTypeBind)
			return
		}
		out := svc.Setup(c.Request.Context(), middleware.SessionFrom(c), req.toForm())
		c.JSON(middleware.StatusFor(out.Err), out)
	}
}

func queryHandlerV1(svc *workbench.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req queryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(err).SetType(gin.ErrorTypeBind)
			return
		}
		out := svc.Query(c.Request.Context(), middleware.SessionFrom(c), req.Query)
		c.JSON(middleware.StatusFor(out.Err), out)
	}
}
