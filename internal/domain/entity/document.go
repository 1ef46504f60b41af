// Package entity 定义领域实体
package entity

import (
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"
)

// DocumentStatus 文档状态
type DocumentStatus string

const (
	// DocumentStatusActive 活跃状态，参与检索
	DocumentStatusActive DocumentStatus = "active"
	// DocumentStatusArchived 已归档，不参与检索
	DocumentStatusArchived DocumentStatus = "archived"
)

// Document SOP 文档实体
//
// 一个 Document 对应库中某个 SOP 的一个具体版本，
// 同名不同版本的文档各占一行，同一时刻只有最新版本处于 active 状态。
type Document struct {
	ID            string         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID      string         `json:"tenant_id" gorm:"type:uuid;index;not null"`
	DocName       string         `json:"doc_name" gorm:"type:varchar(255);index;not null"`
	Version       string         `json:"version" gorm:"type:varchar(32);not null"`
	Filename      string         `json:"filename" gorm:"type:varchar(512);not null"`
	FileHash      string         `json:"file_hash,omitempty" gorm:"type:varchar(64);index"`
	Title         string         `json:"title,omitempty" gorm:"type:varchar(512)"`
	PageCount     int            `json:"page_count" gorm:"default:0"`
	ChunkCount    int            `json:"chunk_count" gorm:"default:0"`
	SectionTitles pq.StringArray `json:"section_titles,omitempty" gorm:"type:text[]"`
	Status        DocumentStatus `json:"status" gorm:"type:varchar(50);default:'active'"`
	IngestedAt    *time.Time     `json:"ingested_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Document) TableName() string {
	return "documents"
}

// NewDocument 创建新文档
func NewDocument(tenantID, docName, version, filename string) *Document {
	now := time.Now()
	return &Document{
		TenantID:  tenantID,
		DocName:   docName,
		Version:   version,
		Filename:  filename,
		Status:    DocumentStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive 检查文档是否处于活跃状态
func (d *Document) IsActive() bool {
	return d.Status == DocumentStatusActive
}

// Archive 归档文档，使其不再参与检索
func (d *Document) Archive() {
	d.Status = DocumentStatusArchived
	d.UpdatedAt = time.Now()
}

// Activate 恢复文档为活跃状态
func (d *Document) Activate() {
	d.Status = DocumentStatusActive
	d.UpdatedAt = time.Now()
}

// VersionValue 将版本字符串解析为数值，用于版本比较
// 解析失败时返回 0
func (d *Document) VersionValue() float64 {
	v, err := strconv.ParseFloat(d.Version, 64)
	if err != nil {
		return 0
	}
	return v
}

// VersionLabel 返回展示用的版本号，如 "v2.1"
func (d *Document) VersionLabel() string {
	return fmt.Sprintf("v%s", d.Version)
}

// MarkIngested 记录入库完成信息
func (d *Document) MarkIngested(pageCount, chunkCount int, sectionTitles []string) {
	now := time.Now()
	d.PageCount = pageCount
	d.ChunkCount = chunkCount
	d.SectionTitles = sectionTitles
	d.IngestedAt = &now
	d.UpdatedAt = now
}
