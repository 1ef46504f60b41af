// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"fasa-rag-api/internal/domain/entity"
)

// ConversationSessionRepository 会话仓储接口
type ConversationSessionRepository interface {
	Create(ctx context.Context, session *entity.ConversationSession) error
	GetByID(ctx context.Context, id string) (*entity.ConversationSession, error)
	Update(ctx context.Context, session *entity.ConversationSession) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, tenantID, userID string, pagination Pagination) (*PagedResult[*entity.ConversationSession], error)
}

// ConversationTurnRepository 会话消息仓储接口
type ConversationTurnRepository interface {
	Create(ctx context.Context, turn *entity.ConversationTurn) error
	ListBySession(ctx context.Context, sessionID string, pagination Pagination) (*PagedResult[*entity.ConversationTurn], error)
	GetRecentBySession(ctx context.Context, sessionID string, limit int) ([]*entity.ConversationTurn, error)
}
