// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"fasa-rag-api/internal/application/retrieval"
)

// SearchRequest 检索请求
type SearchRequest struct {
	Query string `json:"query" binding:"required"`

	TopK        int      `json:"top_k,omitempty"`
	Alpha       *float64 `json:"alpha,omitempty"`
	ScoreCutoff *float64 `json:"score_cutoff,omitempty"`
	DocNames    []string `json:"doc_names,omitempty"`
}

// PassageDTO 召回段落
type PassageDTO struct {
	ID           string  `json:"id"`
	Text         string  `json:"text"`
	Score        float64 `json:"score"`
	DenseScore   float64 `json:"dense_score,omitempty"`
	KeywordScore float64 `json:"keyword_score,omitempty"`

	DocumentID    string `json:"document_id,omitempty"`
	DocName       string `json:"doc_name"`
	Version       string `json:"version"`
	Page          int    `json:"page,omitempty"`
	SectionNumber string `json:"section_number,omitempty"`
	SectionTitle  string `json:"section_title,omitempty"`
	ChunkIndex    int    `json:"chunk_index"`
}

// SearchResponse 检索响应
type SearchResponse struct {
	Passages []PassageDTO `json:"passages"`

	// DisabledReason 非空表示向量检索未启用
	DisabledReason string `json:"disabled_reason,omitempty"`
}

// RetrievalDebugDTO 检索调试信息
type RetrievalDebugDTO struct {
	EmbedTimeMs        int64 `json:"embed_time_ms"`
	VectorSearchTimeMs int64 `json:"vector_search_time_ms"`
	TotalCandidates    int   `json:"total_candidates"`
	FilteredCandidates int   `json:"filtered_candidates"`
	BelowCutoff        int   `json:"below_cutoff"`
}

// DebugSearchResponse 带调试信息的检索响应
type DebugSearchResponse struct {
	Passages       []PassageDTO       `json:"passages"`
	Debug          *RetrievalDebugDTO `json:"debug,omitempty"`
	DisabledReason string             `json:"disabled_reason,omitempty"`
}

// ToPassageDTOs 转换召回段落列表
func ToPassageDTOs(passages []retrieval.Passage) []PassageDTO {
	out := make([]PassageDTO, 0, len(passages))
	for _, p := range passages {
		out = append(out, PassageDTO{
			ID:            p.ID,
			Text:          p.Text,
			Score:         p.Score,
			DenseScore:    p.DenseScore,
			KeywordScore:  p.KeywordScore,
			DocumentID:    p.DocumentID,
			DocName:       p.DocName,
			Version:       p.Version,
			Page:          p.Page,
			SectionNumber: p.SectionNumber,
			SectionTitle:  p.SectionTitle,
			ChunkIndex:    p.ChunkIndex,
		})
	}
	return out
}

// ToRetrievalDebugDTO 转换检索调试信息
func ToRetrievalDebugDTO(d *retrieval.DebugInfo) *RetrievalDebugDTO {
	if d == nil {
		return nil
	}
	return &RetrievalDebugDTO{
		EmbedTimeMs:        d.EmbedTimeMs,
		VectorSearchTimeMs: d.VectorSearchTimeMs,
		TotalCandidates:    d.TotalCandidates,
		FilteredCandidates: d.FilteredCandidates,
		BelowCutoff:        d.BelowCutoff,
	}
}
