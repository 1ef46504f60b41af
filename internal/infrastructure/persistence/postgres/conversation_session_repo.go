// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"fasa-rag-api/internal/domain/entity"
	"fasa-rag-api/internal/domain/repository"
)

// ConversationSessionRepository 会话仓储实现
type ConversationSessionRepository struct {
	client *Client
}

// NewConversationSessionRepository 创建会话仓储
func NewConversationSessionRepository(client *Client) *ConversationSessionRepository {
	return &ConversationSessionRepository{client: client}
}

var _ repository.ConversationSessionRepository = (*ConversationSessionRepository)(nil)

func (r *ConversationSessionRepository) Create(ctx context.Context, session *entity.ConversationSession) error {
	ctx, span := tracer.Start(ctx, "postgres.ConversationSessionRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(session).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create conversation session: %w", err)
	}
	return nil
}

func (r *ConversationSessionRepository) GetByID(ctx context.Context, id string) (*entity.ConversationSession, error) {
	ctx, span := tracer.Start(ctx, "postgres.ConversationSessionRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var session entity.ConversationSession
	if err := db.First(&session, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get conversation session: %w", err)
	}
	return &session, nil
}

func (r *ConversationSessionRepository) Update(ctx context.Context, session *entity.ConversationSession) error {
	ctx, span := tracer.Start(ctx, "postgres.ConversationSessionRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(session).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update conversation session: %w", err)
	}
	return nil
}

func (r *ConversationSessionRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.ConversationSessionRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	// 会话删除时连同消息一并清理
	if err := db.Delete(&entity.ConversationTurn{}, "session_id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete conversation turns: %w", err)
	}
	if err := db.Delete(&entity.ConversationSession{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete conversation session: %w", err)
	}
	return nil
}

func (r *ConversationSessionRepository) ListByUser(ctx context.Context, tenantID, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.ConversationSession], error) {
	ctx, span := tracer.Start(ctx, "postgres.ConversationSessionRepository.ListByUser")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.ConversationSession{}).Where("tenant_id = ? AND user_id = ?", tenantID, userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count conversation sessions: %w", err)
	}

	var sessions []*entity.ConversationSession
	if err := query.Order("updated_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&sessions).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list conversation sessions: %w", err)
	}

	return repository.NewPagedResult(sessions, total, pagination), nil
}
