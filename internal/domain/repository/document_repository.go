// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"fasa-rag-api/internal/domain/entity"
)

// DocumentFilter 文档过滤条件
type DocumentFilter struct {
	DocName string
	Status  entity.DocumentStatus
}

// DocumentRepository 文档仓储接口
type DocumentRepository interface {
	// Create 创建文档
	Create(ctx context.Context, doc *entity.Document) error

	// GetByID 根据 ID 获取文档
	GetByID(ctx context.Context, id string) (*entity.Document, error)

	// GetByNameAndVersion 根据文档名和版本获取文档
	GetByNameAndVersion(ctx context.Context, tenantID, docName, version string) (*entity.Document, error)

	// GetActiveByName 获取指定文档名的活跃版本
	GetActiveByName(ctx context.Context, tenantID, docName string) (*entity.Document, error)

	// Update 更新文档
	Update(ctx context.Context, doc *entity.Document) error

	// Delete 删除文档
	Delete(ctx context.Context, id string) error

	// ListByTenant 获取租户文档列表
	ListByTenant(ctx context.Context, tenantID string, filter *DocumentFilter, pagination Pagination) (*PagedResult[*entity.Document], error)

	// ListVersions 获取某文档名的全部版本（按版本号降序）
	ListVersions(ctx context.Context, tenantID, docName string) ([]*entity.Document, error)

	// UpdateStatus 更新文档状态
	UpdateStatus(ctx context.Context, id string, status entity.DocumentStatus) error

	// ArchiveOtherVersions 将同名文档中除指定 ID 外的版本全部归档
	ArchiveOtherVersions(ctx context.Context, tenantID, docName, keepID string) error

	// GetByFileHash 根据文件哈希获取文档（用于重复入库检测）
	GetByFileHash(ctx context.Context, tenantID, fileHash string) (*entity.Document, error)

	// CountByTenant 统计租户文档数量
	CountByTenant(ctx context.Context, tenantID string, status entity.DocumentStatus) (int64, error)
}
