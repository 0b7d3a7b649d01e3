// Package workbench file: internal/service/workbench/render.go
package workbench

import (
	"SQLRet/internal/core/domain"
	"strings"
)

const (
	// ResultKey 是链路输出中承载文字答案的键
	ResultKey = "result"
	// EventColumn 是成功时结果表的唯一列名
	EventColumn = "Event"
	// ErrorColumn 是结构不符合预期时结果表的唯一列名
	ErrorColumn = "Error"
	// UnexpectedFormat 是结构不符合预期时唯一一行的内容
	UnexpectedFormat = "Unexpected result format"

	itemSeparator = ", "
)

// RenderResult 将代理的返回渲染为单列表格。
// result 中的 "result" 字符串按 ", " 拆分为多行，列名为 Event；
// 其他任何结构渲染为一行 "Unexpected result format"，ok 为 false。
// 这是一个有意保持狭窄的占位输出格式，并非通用的 SQL 结果渲染器。
func RenderResult(result domain.QueryResult) (table *domain.ResultTable, ok bool) {
	raw, has := result[ResultKey]
	text, isString := raw.(string)
	if !has || !isString {
		return &domain.ResultTable{
			Columns: []string{ErrorColumn},
			Rows:    [][]string{{UnexpectedFormat}},
		}, false
	}

	items := strings.Split(text, itemSeparator)
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{item})
	}
	return &domain.ResultTable{
		Columns: []string{EventColumn},
		Rows:    rows,
	}, true
}
