// Package middleware file: internal/transport/http/middleware/session.go
package middleware

import (
	"SQLRet/internal/service/workbench"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const (
	sessionCtxKey = "workbench_session"
	sessionIDKey  = "sid"
)

// NewCookieStore 创建保存会话 ID 的签名 Cookie 存储
func NewCookieStore(secret []byte, secure bool) *sessions.CookieStore {
	cs := sessions.NewCookieStore(secret)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return cs
}

// Session 中间件根据 Cookie 中的会话 ID 取出或创建工作台会话，并放入 gin 上下文。
// Cookie 只保存 ID，连接与代理等状态留在进程内的 Store 中。
func Session(cookies sessions.Store, store *workbench.Store, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 签名校验失败时 Get 仍会返回一个新的空会话
		cs, err := cookies.Get(c.Request, cookieName)
		if err != nil {
			slog.Debug("会话 Cookie 无效，将创建新会话", "error", err)
		}

		id, _ := cs.Values[sessionIDKey].(string)
		sess, created := store.GetOrCreate(id)
		if created {
			cs.Values[sessionIDKey] = sess.ID
			if err := cs.Save(c.Request, c.Writer); err != nil {
				slog.Error("写入会话 Cookie 失败", "session", sess.ID, "error", err)
			}
		}

		c.Set(sessionCtxKey, sess)
		c.Next()
	}
}

// SessionFrom 从 gin 上下文中取出当前会话；未经过 Session 中间件时返回 nil
func SessionFrom(c *gin.Context) *workbench.Session {
	v, ok := c.Get(sessionCtxKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*workbench.Session)
	return sess
}
