// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"fasa-rag-api/internal/domain/entity"
)

// DocumentResponse 文档信息
type DocumentResponse struct {
	ID            string   `json:"id"`
	DocName       string   `json:"doc_name"`
	Version       string   `json:"version"`
	Filename      string   `json:"filename"`
	Title         string   `json:"title,omitempty"`
	PageCount     int      `json:"page_count"`
	ChunkCount    int      `json:"chunk_count"`
	SectionTitles []string `json:"section_titles,omitempty"`
	Status        string   `json:"status"`
	IngestedAt    string   `json:"ingested_at,omitempty"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
}

// DocumentListResponse 文档列表
type DocumentListResponse struct {
	Documents []*DocumentResponse `json:"documents"`
}

// VersionListResponse 同名文档的全部版本
type VersionListResponse struct {
	DocName  string              `json:"doc_name"`
	Versions []*DocumentResponse `json:"versions"`
}

// IngestRequest 入库请求
//
// Path 为空时整库扫描 library_dir 下的全部 PDF。
type IngestRequest struct {
	Path string `json:"path,omitempty"`
}

// IngestResultDTO 单个文件的入库结果
type IngestResultDTO struct {
	Document      *DocumentResponse `json:"document,omitempty"`
	ChunksIndexed int               `json:"chunks_indexed"`
	Skipped       bool              `json:"skipped,omitempty"`
}

// IngestResponse 同步入库响应
type IngestResponse struct {
	Results []*IngestResultDTO `json:"results"`
}

// IngestAcceptedResponse 异步入库响应
type IngestAcceptedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// StatusUpdateRequest 文档状态变更请求
type StatusUpdateRequest struct {
	Status string `json:"status" binding:"required,oneof=active archived"`
}

// ToDocumentResponse 转换文档实体
func ToDocumentResponse(d *entity.Document) *DocumentResponse {
	if d == nil {
		return nil
	}
	resp := &DocumentResponse{
		ID:            d.ID,
		DocName:       d.DocName,
		Version:       d.Version,
		Filename:      d.Filename,
		Title:         d.Title,
		PageCount:     d.PageCount,
		ChunkCount:    d.ChunkCount,
		SectionTitles: d.SectionTitles,
		Status:        string(d.Status),
		CreatedAt:     d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     d.UpdatedAt.Format(time.RFC3339),
	}
	if d.IngestedAt != nil {
		resp.IngestedAt = d.IngestedAt.Format(time.RFC3339)
	}
	return resp
}

// ToDocumentResponses 转换文档实体列表
func ToDocumentResponses(docs []*entity.Document) []*DocumentResponse {
	out := make([]*DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, ToDocumentResponse(d))
	}
	return out
}
