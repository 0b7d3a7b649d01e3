// file: internal/transport/http/router/router.go
package router

import (
	"SQLRet/internal/observe"
	"SQLRet/internal/service/workbench"
	"SQLRet/internal/transport/http/middleware"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Dependencies 结构体用于将所有依赖项注入到路由器中
type Dependencies struct {
	Service      *workbench.Service
	Store        *workbench.Store
	Cookies      sessions.Store
	CookieName   string
	QueryLimiter *middleware.QueryLimiter
	SetupLock    *middleware.SetupFailureLock
	CORSOrigins  []string
	// MetricsEnabled 为 true 时记录请求指标并暴露 /metrics
	MetricsEnabled bool
}

// New 创建并配置基于 Gin 的 HTTP 路由器：HTML 页面 + /api/v1 JSON 接口
func New(deps Dependencies) http.Handler {
	router := gin.Default()
	router.SetHTMLTemplate(template.Must(
		template.New("").Funcs(template.FuncMap{
			"join": func(items []string) string { return strings.Join(items, ", ") },
		}).ParseFS(templatesFS, "templates/*.html"),
	))

	// --- 配置全局中间件 ---
	if deps.MetricsEnabled {
		router.Use(observe.PrometheusMiddleware())
	}
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	// 预检请求不会命中路由组，CORS 需要注册为全局中间件
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler(deps.Store))
	if deps.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(observe.Handler()))
	}

	h := &pageHandlers{deps: deps}
	ui := router.Group("/")
	ui.Use(middleware.Session(deps.Cookies, deps.Store, deps.CookieName))
	{
		ui.GET("/", h.index)
		ui.POST("/setup", h.setup)
		ui.POST("/query", h.query)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.ErrorHandlingMiddleware())
	v1.Use(middleware.Session(deps.Cookies, deps.Store, deps.CookieName))
	{
		sessionGroup := v1.Group("/session")
		sessionGroup.GET("", sessionViewHandler())
		sessionGroup.DELETE("", sessionDeleteHandler(deps.Store))
		sessionGroup.POST("/setup", deps.SetupLock.Middleware(), setupHandlerV1(deps.Service))
		sessionGroup.POST("/query", deps.QueryLimiter.Middleware(), queryHandlerV1(deps.Service))
	}

	return router
}

// healthHandler 返回进程存活状态与当前会话数
func healthHandler(store *workbench.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": store.Len()})
	}
}
