// Package repository 定义数据访问层接口
package repository

import "context"

// TenantContextManager 租户上下文管理接口。
// 每个事务开始时把租户 ID 写入数据库会话变量，
// PostgreSQL 行级安全策略据此过滤文档、任务与会话数据，
// 业务查询不再显式携带 tenant_id 条件也不会串租户。
type TenantContextManager interface {
	// SetTenant 设置当前租户上下文
	SetTenant(ctx context.Context, tenantID string) error
	// ClearTenant 清除当前租户上下文
	ClearTenant(ctx context.Context) error
}
