// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"fasa-rag-api/internal/domain/entity"
)

// ChatRequest 问答请求
type ChatRequest struct {
	Question  string `json:"question" binding:"required"`
	SessionID string `json:"session_id,omitempty"`

	// TopK / Alpha / ScoreCutoff 为 0 或缺省时使用服务端默认值
	TopK        int      `json:"top_k,omitempty"`
	Alpha       *float64 `json:"alpha,omitempty"`
	ScoreCutoff *float64 `json:"score_cutoff,omitempty"`
	DocNames    []string `json:"doc_names,omitempty"`

	Provider    string   `json:"provider,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// CitationDTO 答案引用
type CitationDTO struct {
	Index        int     `json:"index"`
	DocName      string  `json:"doc_name"`
	Version      string  `json:"version"`
	Page         int     `json:"page,omitempty"`
	SectionTitle string  `json:"section_title,omitempty"`
	Score        float64 `json:"score"`
}

// ChatResponse 问答响应
type ChatResponse struct {
	SessionID        string        `json:"session_id,omitempty"`
	Answer           string        `json:"answer"`
	Citations        []CitationDTO `json:"citations,omitempty"`
	NotFound         bool          `json:"not_found"`
	Cached           bool          `json:"cached,omitempty"`
	PromptTokens     int           `json:"prompt_tokens,omitempty"`
	CompletionTokens int           `json:"completion_tokens,omitempty"`
}

// SessionResponse 会话信息
type SessionResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// SessionListResponse 会话列表
type SessionListResponse struct {
	Sessions []*SessionResponse `json:"sessions"`
}

// TurnResponse 会话消息
type TurnResponse struct {
	ID        string        `json:"id"`
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	Citations []CitationDTO `json:"citations,omitempty"`
	CreatedAt string        `json:"created_at"`
}

// TurnListResponse 会话消息列表
type TurnListResponse struct {
	Turns []*TurnResponse `json:"turns"`
}

// ToCitationDTOs 转换引用列表
func ToCitationDTOs(citations []entity.Citation) []CitationDTO {
	if len(citations) == 0 {
		return nil
	}
	out := make([]CitationDTO, 0, len(citations))
	for _, ct := range citations {
		out = append(out, CitationDTO{
			Index:        ct.Index,
			DocName:      ct.DocName,
			Version:      ct.Version,
			Page:         ct.Page,
			SectionTitle: ct.SectionTitle,
			Score:        ct.Score,
		})
	}
	return out
}

// ToSessionResponse 转换会话实体
func ToSessionResponse(s *entity.ConversationSession) *SessionResponse {
	if s == nil {
		return nil
	}
	return &SessionResponse{
		ID:        s.ID,
		Title:     s.Title,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
		UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
	}
}

// ToTurnResponse 转换会话消息实体
func ToTurnResponse(t *entity.ConversationTurn) *TurnResponse {
	if t == nil {
		return nil
	}
	return &TurnResponse{
		ID:        t.ID,
		Role:      string(t.Role),
		Content:   t.Content,
		Citations: ToCitationDTOs(t.Citations),
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
}
