// file: internal/transport/http/router/pages.go
package router

import (
	"SQLRet/internal/core/domain"
	"SQLRet/internal/service/workbench"
	"SQLRet/internal/transport/http/middleware"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// 限流触发时页面上的提示
const (
	MsgQueryRateLimited = "Too many queries, please wait a moment and try again."
	MsgSetupLocked      = "Too many failed setup attempts, please try again later."
)

// setupRequest 是 setup 表单与 JSON 请求共用的绑定结构。
// 除方言与端口范围外不做额外校验，其余交给驱动判断。
type setupRequest struct {
	DBType   string `form:"db_type" json:"db_type" binding:"required,oneof=mysql postgresql"`
	User     string `form:"user" json:"user"`
	Password string `form:"password" json:"password"`
	Host     string `form:"host" json:"host"`
	Port     int    `form:"port" json:"port" binding:"omitempty,min=1,max=65535"`
	DBName   string `form:"db_name" json:"db_name"`
	APIKey   string `form:"api_key" json:"api_key"`
}

func (r setupRequest) toForm() workbench.SetupForm {
	dialect, _ := domain.ParseDialect(r.DBType)
	port := r.Port
	if port == 0 {
		port = domain.DefaultPort
	}
	return workbench.SetupForm{
		Params: domain.ConnectionParameters{
			Dialect:  dialect,
			User:     r.User,
			Password: r.Password,
			Host:     strings.TrimSpace(r.Host),
			Port:     port,
			DBName:   strings.TrimSpace(r.DBName),
		},
		APIKey: strings.TrimSpace(r.APIKey),
	}
}

// prefill 返回回填到页面上的表单值，不含密码与密钥
func (r setupRequest) prefill() setupRequest {
	out := setupRequest{DBType: r.DBType, User: r.User, Host: r.Host, Port: r.Port, DBName: r.DBName}
	if out.DBType == "" {
		out.DBType = string(domain.SupportedDialects[0])
	}
	if out.Port == 0 {
		out.Port = domain.DefaultPort
	}
	return out
}

type queryRequest struct {
	Query string `form:"query" json:"query"`
}

// pageData 是 index.html 的渲染数据
type pageData struct {
	Banner   *workbench.Banner
	Ready    bool
	Dialects []domain.Dialect
	Form     setupRequest
	Schema   *domain.SchemaInfo
	Query    string
	Table    *domain.ResultTable
}

type pageHandlers struct {
	deps Dependencies
}

// index 渲染当前会话的页面
func (h *pageHandlers) index(c *gin.Context) {
	view := middleware.SessionFrom(c).Snapshot()
	h.render(c, http.StatusOK, view, pageData{
		Form:  setupRequest{}.prefill(),
		Query: view.LastQuery,
		Table: view.LastTable,
	})
}

// setup 处理 setup 表单提交，结果直接渲染在页面上
func (h *pageHandlers) setup(c *gin.Context) {
	sess := middleware.SessionFrom(c)

	var req setupRequest
	if err := c.ShouldBind(&req); err != nil {
		h.render(c, http.StatusBadRequest, sess.Snapshot(), pageData{
			Banner: &workbench.Banner{Level: workbench.BannerError, Message: workbench.MsgSetupFailed + ": " + bindMessage(err)},
			Form:   req.prefill(),
		})
		return
	}

	client := c.ClientIP()
	if h.deps.SetupLock.Locked(client) {
		h.render(c, http.StatusTooManyRequests, sess.Snapshot(), pageData{
			Banner: &workbench.Banner{Level: workbench.BannerError, Message: MsgSetupLocked},
			Form:   req.prefill(),
		})
		return
	}

	out := h.deps.Service.Setup(c.Request.Context(), sess, req.toForm())
	if out.Err != nil {
		h.deps.SetupLock.RecordFailure(client)
	} else {
		h.deps.SetupLock.Reset(client)
	}

	h.render(c, http.StatusOK, sess.Snapshot(), pageData{
		Banner: out.Banner,
		Form:   req.prefill(),
	})
}

// query 处理查询表单提交
func (h *pageHandlers) query(c *gin.Context) {
	sess := middleware.SessionFrom(c)

	var req queryRequest
	if err := c.ShouldBind(&req); err != nil {
		h.render(c, http.StatusBadRequest, sess.Snapshot(), pageData{
			Banner: &workbench.Banner{Level: workbench.BannerError, Message: bindMessage(err)},
			Form:   setupRequest{}.prefill(),
		})
		return
	}

	if !h.deps.QueryLimiter.Allow(middleware.LimitKey(c)) {
		h.render(c, http.StatusTooManyRequests, sess.Snapshot(), pageData{
			Banner: &workbench.Banner{Level: workbench.BannerError, Message: MsgQueryRateLimited},
			Form:   setupRequest{}.prefill(),
			Query:  req.Query,
		})
		return
	}

	out := h.deps.Service.Query(c.Request.Context(), sess, req.Query)
	h.render(c, http.StatusOK, sess.Snapshot(), pageData{
		Banner: out.Banner,
		Form:   setupRequest{}.prefill(),
		Query:  req.Query,
		Table:  out.Table,
	})
}

func (h *pageHandlers) render(c *gin.Context, status int, view workbench.View, data pageData) {
	data.Ready = view.State == domain.StateReady
	data.Dialects = domain.SupportedDialects
	data.Schema = view.Schema
	c.HTML(status, "index.html", data)
}

// bindMessage 把绑定错误转换为面向用户的简短描述
func bindMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fmt.Sprintf("invalid %s", strings.ToLower(fe.Field())))
	}
	return strings.Join(parts, ", ")
}
