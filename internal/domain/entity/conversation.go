// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"time"
)

// ConversationSession 问答会话
type ConversationSession struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID  string    `json:"tenant_id" gorm:"type:uuid;index;not null"`
	UserID    string    `json:"user_id,omitempty" gorm:"type:uuid;index"`
	Title     string    `json:"title,omitempty" gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (ConversationSession) TableName() string {
	return "conversation_sessions"
}

// NewConversationSession 创建新会话
func NewConversationSession(tenantID, userID string) *ConversationSession {
	now := time.Now()
	return &ConversationSession{
		TenantID:  tenantID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Citation 答案引用的 SOP 段落
type Citation struct {
	Index        int     `json:"index"`
	DocName      string  `json:"doc_name"`
	Version      string  `json:"version"`
	Page         int     `json:"page,omitempty"`
	SectionTitle string  `json:"section_title,omitempty"`
	Score        float64 `json:"score"`
}

// ConversationTurn 会话中的一轮消息
type ConversationTurn struct {
	ID        string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionID string          `json:"session_id" gorm:"type:uuid;index;not null"`
	Role      Role            `json:"role" gorm:"type:varchar(16);not null"`
	Content   string          `json:"content" gorm:"type:text;not null"`
	Citations []Citation      `json:"citations,omitempty" gorm:"type:jsonb;serializer:json"`
	Metadata  json.RawMessage `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (ConversationTurn) TableName() string {
	return "conversation_turns"
}

// NewConversationTurn 创建新的会话消息
func NewConversationTurn(sessionID string, role Role, content string, citations []Citation) *ConversationTurn {
	return &ConversationTurn{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Citations: citations,
		CreatedAt: time.Now(),
	}
}
