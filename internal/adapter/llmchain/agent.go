// Package llmchain file: internal/adapter/llmchain/agent.go
package llmchain

import (
	"SQLRet/internal/core/domain"
	"SQLRet/internal/core/port"
	"context"
	"io"
	"time"

	"github.com/tmc/langchaingo/chains"
)

// 链路输入键，与 SQLDatabaseChain 的默认输入键一致
const inputKey = "query"

// 断言 *Agent 实现 port.QueryAgent 接口，编译期校验
var _ port.QueryAgent = (*Agent)(nil)

// Agent 把自然语言问题交给 SQLDatabaseChain，由其生成 SQL、执行并总结结果
type Agent struct {
	chain       chains.Chain
	closer      io.Closer
	temperature float64
	timeout     time.Duration
}

func newAgent(chain chains.Chain, closer io.Closer, temperature float64, timeout time.Duration) *Agent {
	return &Agent{
		chain:       chain,
		closer:      closer,
		temperature: temperature,
		timeout:     timeout,
	}
}

// Invoke 实现 port.QueryAgent 接口。链路或 SQL 执行失败归类为 KindQueryExecution；
// 返回结构是否符合预期交由展示层判断。
func (a *Agent) Invoke(ctx context.Context, query string) (domain.QueryResult, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	out, err := chains.Call(ctx, a.chain,
		map[string]any{inputKey: query},
		chains.WithTemperature(a.temperature),
	)
	if err != nil {
		return nil, port.NewError(port.KindQueryExecution, "invoke agent", err)
	}
	return domain.QueryResult(out), nil
}

// Close 释放链路自己持有的数据库连接
func (a *Agent) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}
