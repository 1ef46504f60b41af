// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"fasa-rag-api/internal/domain/entity"
	"fasa-rag-api/internal/domain/repository"
)

// DocumentRepository 文档仓储实现
type DocumentRepository struct {
	client *Client
}

// NewDocumentRepository 创建文档仓储
func NewDocumentRepository(client *Client) *DocumentRepository {
	return &DocumentRepository{client: client}
}

var _ repository.DocumentRepository = (*DocumentRepository)(nil)

// Create 创建文档
func (r *DocumentRepository) Create(ctx context.Context, doc *entity.Document) error {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(doc).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取文档
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var doc entity.Document
	if err := db.First(&doc, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// GetByNameAndVersion 根据文档名和版本获取文档
func (r *DocumentRepository) GetByNameAndVersion(ctx context.Context, tenantID, docName, version string) (*entity.Document, error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.GetByNameAndVersion")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var doc entity.Document
	if err := db.First(&doc, "tenant_id = ? AND doc_name = ? AND version = ?", tenantID, docName, version).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get document by name and version: %w", err)
	}
	return &doc, nil
}

// GetActiveByName 获取指定文档名的活跃版本
func (r *DocumentRepository) GetActiveByName(ctx context.Context, tenantID, docName string) (*entity.Document, error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.GetActiveByName")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var doc entity.Document
	if err := db.First(&doc, "tenant_id = ? AND doc_name = ? AND status = ?", tenantID, docName, entity.DocumentStatusActive).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get active document: %w", err)
	}
	return &doc, nil
}

// Update 更新文档
func (r *DocumentRepository) Update(ctx context.Context, doc *entity.Document) error {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(doc).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}

// Delete 删除文档
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Delete(&entity.Document{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// ListByTenant 获取租户文档列表
func (r *DocumentRepository) ListByTenant(ctx context.Context, tenantID string, filter *repository.DocumentFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.Document], error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.ListByTenant")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.Document{}).Where("tenant_id = ?", tenantID)

	// 应用过滤条件
	if filter != nil {
		if filter.DocName != "" {
			query = query.Where("doc_name = ?", filter.DocName)
		}
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
	}

	// 获取总数
	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	// 获取列表
	var docs []*entity.Document
	if err := query.Order("doc_name ASC, CAST(version AS numeric) DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&docs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	return repository.NewPagedResult(docs, total, pagination), nil
}

// ListVersions 获取某文档名的全部版本（按版本号降序）
func (r *DocumentRepository) ListVersions(ctx context.Context, tenantID, docName string) ([]*entity.Document, error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.ListVersions")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var docs []*entity.Document
	if err := db.Where("tenant_id = ? AND doc_name = ?", tenantID, docName).
		Order("CAST(version AS numeric) DESC").
		Find(&docs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list document versions: %w", err)
	}
	return docs, nil
}

// UpdateStatus 更新文档状态
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status entity.DocumentStatus) error {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.UpdateStatus")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.Document{}).Where("id = ?", id).Update("status", status).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update document status: %w", err)
	}
	return nil
}

// ArchiveOtherVersions 将同名文档中除指定 ID 外的版本全部归档
func (r *DocumentRepository) ArchiveOtherVersions(ctx context.Context, tenantID, docName, keepID string) error {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.ArchiveOtherVersions")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.Document{}).
		Where("tenant_id = ? AND doc_name = ? AND id <> ?", tenantID, docName, keepID).
		Update("status", entity.DocumentStatusArchived).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to archive other versions: %w", err)
	}
	return nil
}

// GetByFileHash 根据文件哈希获取文档（用于重复入库检测）
func (r *DocumentRepository) GetByFileHash(ctx context.Context, tenantID, fileHash string) (*entity.Document, error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.GetByFileHash")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var doc entity.Document
	if err := db.First(&doc, "tenant_id = ? AND file_hash = ?", tenantID, fileHash).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get document by file hash: %w", err)
	}
	return &doc, nil
}

// CountByTenant 统计租户文档数量
func (r *DocumentRepository) CountByTenant(ctx context.Context, tenantID string, status entity.DocumentStatus) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.CountByTenant")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.Document{}).Where("tenant_id = ?", tenantID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}
