// Package llmchain: 基于 langchaingo SQLDatabaseChain 的查询代理
// internal/adapter/llmchain/factory.go
package llmchain

import (
	"SQLRet/internal/core/domain"
	"SQLRet/internal/core/port"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/tools/sqldatabase"
	"github.com/tmc/langchaingo/tools/sqldatabase/mysql"
	"github.com/tmc/langchaingo/tools/sqldatabase/postgresql"
)

// 已支持的 LLM 提供方
const (
	ProviderGoogleAI = "googleai"
	ProviderOpenAI   = "openai"
)

// 断言 *Factory 实现 port.AgentFactory 接口，编译期校验
var _ port.AgentFactory = (*Factory)(nil)

// Options 定义了代理构造时的可调参数
type Options struct {
	// AllowedModels 为每个提供方列出可识别的模型标识
	AllowedModels map[string][]string
	// TopK 是生成 SQL 时建议返回的最大行数
	TopK int
	// InvokeTimeout 是单次调用的超时时间，0 表示不额外限制
	InvokeTimeout time.Duration
	// IgnoreTables 中的表不会出现在提供给 LLM 的表结构上下文里
	IgnoreTables []string
}

// Factory 实现 port.AgentFactory。构造过程只做本地校验，真正的 LLM 调用推迟到 Invoke。
type Factory struct {
	opts Options

	newLLM      func(ctx context.Context, cfg domain.LLMConfig) (llms.Model, error)
	newDatabase func(engine, dsn string, ignore map[string]struct{}) (*sqldatabase.SQLDatabase, error)
}

// NewFactory 创建一个新的代理工厂
func NewFactory(opts Options) *Factory {
	if opts.TopK <= 0 {
		opts.TopK = 100
	}
	return &Factory{
		opts:        opts,
		newLLM:      newLLM,
		newDatabase: sqldatabase.NewSQLDatabaseWithDSN,
	}
}

// MakeAgent 实现 port.AgentFactory 接口
func (f *Factory) MakeAgent(ctx context.Context, handle port.ConnectionHandle, cfg domain.LLMConfig) (port.QueryAgent, error) {
	const op = "make agent"

	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, port.NewError(port.KindAuthentication, op, port.ErrEmptyAPIKey)
	}
	if err := f.validateModel(cfg); err != nil {
		return nil, port.NewError(port.KindConfiguration, op, err)
	}
	if handle == nil || handle.DB() == nil {
		return nil, port.NewError(port.KindConnection, op, port.ErrConnectionClosed)
	}

	engine, err := engineName(handle.Dialect())
	if err != nil {
		return nil, port.NewError(port.KindConfiguration, op, err)
	}

	model, err := f.newLLM(ctx, cfg)
	if err != nil {
		return nil, port.NewError(port.KindAuthentication, op, fmt.Errorf("初始化 LLM 客户端失败: %w", err))
	}

	db, err := f.newDatabase(engine, handle.DSN(), f.ignoreSet())
	if err != nil {
		return nil, port.NewError(port.KindConnection, op, fmt.Errorf("初始化 SQLDatabase 失败: %w", err))
	}

	chain := chains.NewSQLDatabaseChain(model, f.opts.TopK, db)
	slog.Info("查询代理已创建",
		"provider", cfg.Provider,
		"model", cfg.ModelID,
		"dialect", handle.Dialect(),
		"top_k", f.opts.TopK,
	)
	return newAgent(chain, db, cfg.Temperature, f.opts.InvokeTimeout), nil
}

// validateModel 校验提供方与模型标识是否在允许列表中
func (f *Factory) validateModel(cfg domain.LLMConfig) error {
	models, ok := f.opts.AllowedModels[cfg.Provider]
	if !ok {
		return fmt.Errorf("%w: '%s'", port.ErrUnknownProvider, cfg.Provider)
	}
	if !slices.Contains(models, cfg.ModelID) {
		return fmt.Errorf("%w: '%s' (provider %s)", port.ErrUnknownModel, cfg.ModelID, cfg.Provider)
	}
	return nil
}

func (f *Factory) ignoreSet() map[string]struct{} {
	if len(f.opts.IgnoreTables) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(f.opts.IgnoreTables))
	for _, t := range f.opts.IgnoreTables {
		set[t] = struct{}{}
	}
	return set
}

// engineName 将方言映射为 langchaingo sqldatabase 注册的引擎名
func engineName(d domain.Dialect) (string, error) {
	switch d {
	case domain.DialectMySQL:
		return mysql.EngineName, nil
	case domain.DialectPostgreSQL:
		return postgresql.EngineName, nil
	default:
		return "", fmt.Errorf("%w: '%s'", port.ErrUnsupportedDialect, d)
	}
}

// newLLM 根据提供方创建 LLM 客户端，不发起网络请求
func newLLM(ctx context.Context, cfg domain.LLMConfig) (llms.Model, error) {
	switch cfg.Provider {
	case ProviderGoogleAI:
		return googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.ModelID),
		)
	case ProviderOpenAI:
		return openai.New(
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.ModelID),
		)
	default:
		return nil, fmt.Errorf("%w: '%s'", port.ErrUnknownProvider, cfg.Provider)
	}
}
