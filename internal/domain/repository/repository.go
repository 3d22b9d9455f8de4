// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"fmt"
	"strings"
)

// TxKey 事务上下文键类型
type TxKey struct{}

// Transactor 事务管理接口
type Transactor interface {
	// WithTransaction 在事务中执行操作；已处于事务中时直接复用
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SortOrder 排序方向
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// ParseSortOrder 解析排序方向，空串默认降序
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "DESC":
		return SortOrderDesc, nil
	case "ASC":
		return SortOrderAsc, nil
	default:
		return "", fmt.Errorf("invalid sort order: %q", s)
	}
}
