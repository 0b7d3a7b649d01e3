// Package workbench file: internal/service/workbench/service.go
package workbench

import (
	"SQLRet/internal/core/domain"
	"SQLRet/internal/core/port"
	"SQLRet/internal/observe"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// 页面上展示的提示文案
const (
	MsgSetupSuccess  = "Database and model setup successfully!"
	MsgSetupFailed   = "Failed to setup"
	MsgSetupRequired = "Please setup the database and model first."
	MsgQueryFailed   = "Error executing query"
	MsgEmptyQuery    = "Enter your query in natural language."
	MsgInternal      = "Internal error"
)

// ErrEmptyQuery 表示查询文本为空，此时不会调用代理
var ErrEmptyQuery = errors.New("查询内容不能为空")

// BannerLevel 是提示条的级别
type BannerLevel string

const (
	BannerSuccess BannerLevel = "success"
	BannerError   BannerLevel = "error"
	BannerInfo    BannerLevel = "info"
)

// Banner 是一次交互后展示给用户的提示
type Banner struct {
	Level   BannerLevel `json:"level"`
	Message string      `json:"message"`
}

// Outcome 是一次交互的完整结果。Err 非空时交互失败，但会话仍可继续使用。
type Outcome struct {
	State  domain.SessionState `json:"state"`
	Banner *Banner             `json:"banner,omitempty"`
	Table  *domain.ResultTable `json:"table,omitempty"`
	Schema *domain.SchemaInfo  `json:"schema,omitempty"`
	Err    error               `json:"-"`
}

// SetupForm 是 setup 表单提交的全部字段
type SetupForm struct {
	Params domain.ConnectionParameters
	APIKey string
}

// LLMDefaults 是表单之外、由配置决定的 LLM 参数
type LLMDefaults struct {
	Provider    string
	ModelID     string
	Temperature float64
}

// Service 驱动 Unconfigured → Configuring → Ready → Querying → Ready 的状态流转。
// 所有失败都在这里被捕获并转换为提示条，不会向上传播。
type Service struct {
	builder   port.ConnectionBuilder
	inspector port.SchemaInspector
	agents    port.AgentFactory
	llm       LLMDefaults
}

// NewService 创建一个新的工作台服务
func NewService(builder port.ConnectionBuilder, inspector port.SchemaInspector, agents port.AgentFactory, llm LLMDefaults) *Service {
	return &Service{
		builder:   builder,
		inspector: inspector,
		agents:    agents,
		llm:       llm,
	}
}

// Setup 依次执行 连接构建 → 表结构探测 → 代理构造。
// 任一步失败都回到此前的稳定状态，已有的配置保持不变；
// 成功时替换并释放旧的连接与代理。
func (s *Service) Setup(ctx context.Context, sess *Session, form SetupForm) Outcome {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	prev := sess.state
	sess.state = domain.StateConfiguring
	log := slog.With("session", sess.ID, "dialect", form.Params.Dialect, "host", form.Params.Host)

	fail := func(err error) Outcome {
		sess.state = prev
		observe.SetupTotal.WithLabelValues(outcomeLabel(err)).Inc()
		logFailure(log, "setup 失败", err)
		return Outcome{
			State:  sess.state,
			Banner: errorBanner(MsgSetupFailed, err),
			Schema: sess.schema,
			Err:    err,
		}
	}

	handle, err := s.builder.Build(ctx, form.Params)
	if err != nil {
		return fail(err)
	}

	schema, err := s.inspector.Inspect(ctx, handle)
	if err != nil {
		_ = handle.Close()
		return fail(err)
	}

	agent, err := s.agents.MakeAgent(ctx, handle, domain.LLMConfig{
		Provider:    s.llm.Provider,
		ModelID:     s.llm.ModelID,
		APIKey:      form.APIKey,
		Temperature: s.llm.Temperature,
	})
	if err != nil {
		_ = handle.Close()
		return fail(err)
	}

	sess.releaseLocked()
	sess.conn = handle
	sess.agent = agent
	sess.schema = schema
	sess.lastTable = nil
	sess.lastQuery = ""
	sess.state = domain.StateReady

	observe.SetupTotal.WithLabelValues("success").Inc()
	log.Info("setup 成功", "tables", len(schema.Tables), "model", s.llm.ModelID)
	return Outcome{
		State:  sess.state,
		Banner: &Banner{Level: BannerSuccess, Message: MsgSetupSuccess},
		Schema: schema,
	}
}

// Query 把自然语言问题交给会话的查询代理并渲染结果。
// 未完成 setup 时直接返回 ErrSetupRequired，不调用代理；失败后会话保持 Ready。
func (s *Service) Query(ctx context.Context, sess *Session, text string) Outcome {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	log := slog.With("session", sess.ID)

	if sess.agent == nil {
		observe.QueryTotal.WithLabelValues(outcomeLabel(port.ErrSetupRequired)).Inc()
		log.Info("未完成 setup 即发起查询")
		return Outcome{
			State:  sess.state,
			Banner: &Banner{Level: BannerError, Message: MsgSetupRequired},
			Err:    port.ErrSetupRequired,
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{
			State:  sess.state,
			Banner: &Banner{Level: BannerInfo, Message: MsgEmptyQuery},
			Schema: sess.schema,
			Table:  sess.lastTable,
			Err:    ErrEmptyQuery,
		}
	}

	sess.state = domain.StateQuerying
	start := time.Now()
	result, err := sess.agent.Invoke(ctx, text)
	observe.AgentInvokeDuration.Observe(time.Since(start).Seconds())
	sess.state = domain.StateReady

	if err != nil {
		observe.QueryTotal.WithLabelValues(outcomeLabel(err)).Inc()
		logFailure(log, "查询执行失败", err)
		return Outcome{
			State:  sess.state,
			Banner: errorBanner(MsgQueryFailed, err),
			Schema: sess.schema,
			Err:    err,
		}
	}

	table, ok := RenderResult(result)
	if ok {
		observe.QueryTotal.WithLabelValues("success").Inc()
	} else {
		observe.QueryTotal.WithLabelValues(port.KindResultShape.String()).Inc()
		log.Warn("查询结果结构不符合预期，已降级为占位展示", "kind", port.KindResultShape, "keys", resultKeys(result))
	}

	sess.lastQuery = text
	sess.lastTable = table
	log.Info("查询完成", "rows", len(table.Rows), "elapsed", time.Since(start))
	return Outcome{
		State:  sess.state,
		Table:  table,
		Schema: sess.schema,
	}
}

// errorBanner 把错误转换为提示条。分类错误展示原因，非分类错误视为程序错误。
func errorBanner(prefix string, err error) *Banner {
	if _, ok := port.KindOf(err); !ok {
		prefix = MsgInternal
	}
	return &Banner{Level: BannerError, Message: fmt.Sprintf("%s: %s", prefix, userMessage(err))}
}

// userMessage 取出错误链中最接近根因的描述
func userMessage(err error) string {
	var e *port.Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return err.Error()
}

// outcomeLabel 返回指标使用的结果标签
func outcomeLabel(err error) string {
	if kind, ok := port.KindOf(err); ok {
		return kind.String()
	}
	return "internal"
}

// logFailure 分类错误按 warn 记录，非分类错误按 error 记录
func logFailure(log *slog.Logger, msg string, err error) {
	if kind, ok := port.KindOf(err); ok {
		log.Warn(msg, "kind", kind, "error", err)
		return
	}
	log.Error(msg+"（未分类错误）", "error", err)
}

func resultKeys(result domain.QueryResult) []string {
	keys := make([]string, 0, len(result))
	for k := range result {
		keys = append(keys, k)
	}
	return keys
}
