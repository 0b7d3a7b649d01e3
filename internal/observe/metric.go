// Package observe 暴露 Prometheus 指标
package observe

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 指标定义
var (
	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sqlret_http_request_duration_seconds",
		Help:    "HTTP 请求耗时",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "code"})

	// SetupTotal 按结果统计 setup 次数，outcome 为 success 或错误分类
	SetupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlret_setup_total",
		Help: "连接与模型 setup 次数",
	}, []string{"outcome"})

	// QueryTotal 按结果统计自然语言查询次数
	QueryTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlret_query_total",
		Help: "自然语言查询次数",
	}, []string{"outcome"})

	// AgentInvokeDuration 记录查询代理单次调用耗时
	AgentInvokeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sqlret_agent_invoke_duration_seconds",
		Help:    "查询代理调用耗时（含 LLM 与 SQL 执行）",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	// ActiveSessions 是当前存活的会话数
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sqlret_active_sessions",
		Help: "当前存活的会话数",
	})
)

// Register 必须在 main 调用一次
func Register() {
	prometheus.MustRegister(httpRequestDuration, SetupTotal, QueryTotal, AgentInvokeDuration, ActiveSessions)
}

// Handler 返回 HTTP 处理器
func Handler() http.Handler { return promhttp.Handler() }

// PrometheusMiddleware 记录每个请求的耗时，path 使用路由模板避免标签爆炸
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestDuration.
			WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
