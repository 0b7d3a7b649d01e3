// Package middleware file: internal/transport/http/middleware/limiter.go
package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// limiterEntry 存储限制器和最后访问时间
type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ============================================================================
//  查询速率限制 (Per-Session Query Rate Limiter)
// ============================================================================

// QueryLimiter 按会话限制查询频率，每次查询都会触发一次付费的 LLM 调用
type QueryLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	idle     time.Duration
}

// NewQueryLimiter 创建一个新的查询速率限制器，r 为每秒允许的查询数
func NewQueryLimiter(r float64, burst int) *QueryLimiter {
	l := &QueryLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(r),
		burst:    burst,
		idle:     15 * time.Minute,
	}
	go l.cleanupDaemon()
	slog.Info("查询速率限制器初始化完成", "rate", r, "burst", burst)
	return l
}

// Allow 判断 key 是否还有可用的查询配额
func (l *QueryLimiter) Allow(key string) bool {
	l.mu.Lock()
	entry, exists := l.limiters[key]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	l.mu.Unlock()
	return entry.limiter.Allow()
}

// cleanupDaemon 定期清理不活跃的条目
func (l *QueryLimiter) cleanupDaemon() {
	for {
		time.Sleep(10 * time.Minute)
		l.sweep(time.Now())
	}
}

func (l *QueryLimiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > l.idle {
			delete(l.limiters, key)
		}
	}
}

// Middleware 返回 JSON API 使用的中间件，按会话 ID 限流，没有会话时按客户端 IP
func (l *QueryLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(LimitKey(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "查询过于频繁，请稍后再试"})
			return
		}
		c.Next()
	}
}

// ============================================================================
//  Setup 失败计数与临时锁定 (Failure Counting & Temporary Lockout)
// ============================================================================

// SetupFailureLock 对连续失败的 setup 尝试计数，达到上限后临时锁定该客户端
type SetupFailureLock struct {
	failureCache    *cache.Cache
	maxFailures     int
	window          time.Duration
	lockoutDuration time.Duration
}

// NewSetupFailureLock 创建一个新的 setup 失败锁定器
func NewSetupFailureLock(maxFailures int, window, lockoutDuration time.Duration) *SetupFailureLock {
	return &SetupFailureLock{
		failureCache:    cache.New(window, 2*window),
		maxFailures:     maxFailures,
		window:          window,
		lockoutDuration: lockoutDuration,
	}
}

// Locked 判断 key 是否处于锁定期
func (l *SetupFailureLock) Locked(key string) bool {
	_, found := l.failureCache.Get("lock:" + key)
	return found
}

// RecordFailure 记录一次失败，返回当前失败次数；达到上限时进入锁定
func (l *SetupFailureLock) RecordFailure(key string) int {
	failureKey := "failures:" + key

	// Increment 在 key 不存在时返回错误，此时为第一次失败
	if err := l.failureCache.Increment(failureKey, int64(1)); err != nil {
		l.failureCache.Set(failureKey, int64(1), l.window)
	}

	var current int
	if x, found := l.failureCache.Get(failureKey); found {
		current = int(x.(int64))
	}

	if current >= l.maxFailures {
		l.failureCache.Set("lock:"+key, true, l.lockoutDuration)
		l.failureCache.Delete(failureKey)
		slog.Warn("setup 连续失败，客户端已被临时锁定", "client", key, "lockout", l.lockoutDuration)
	}
	return current
}

// Reset 在 setup 成功后清除失败计数
func (l *SetupFailureLock) Reset(key string) {
	l.failureCache.Delete("failures:" + key)
}

// Middleware 返回 JSON API 使用的中间件，根据响应状态码计数
func (l *SetupFailureLock) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if l.Locked(key) {
			slog.Warn("已锁定的客户端再次尝试 setup", "client", key)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "setup 失败次数过多，请稍后再试"})
			return
		}

		c.Next()

		switch status := c.Writer.Status(); {
		case status < http.StatusBadRequest:
			l.Reset(key)
		case status == http.StatusBadRequest, status == http.StatusTooManyRequests:
			// 表单校验失败不计入
		default:
			l.RecordFailure(key)
		}
	}
}

// LimitKey 优先使用会话 ID 作为限流键，没有会话时使用客户端 IP
func LimitKey(c *gin.Context) string {
	if sess := SessionFrom(c); sess != nil {
		return "session:" + sess.ID
	}
	return "ip:" + c.ClientIP()
}
