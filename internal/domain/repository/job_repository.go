// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"fasa-rag-api/internal/domain/entity"
)

// JobFilter 任务过滤条件
type JobFilter struct {
	JobType    entity.JobType
	Status     entity.JobStatus
	DocumentID *string
}

// JobRepository 入库任务仓储接口
type JobRepository interface {
	// Create 创建任务
	Create(ctx context.Context, job *entity.IngestionJob) error

	// GetByID 根据 ID 获取任务
	GetByID(ctx context.Context, id string) (*entity.IngestionJob, error)

	// Update 更新任务
	Update(ctx context.Context, job *entity.IngestionJob) error

	// Delete 删除任务
	Delete(ctx context.Context, id string) error

	// ListByTenant 获取租户任务列表
	ListByTenant(ctx context.Context, tenantID string, filter *JobFilter, pagination Pagination) (*PagedResult[*entity.IngestionJob], error)

	// GetByIdempotencyKey 根据幂等键获取任务
	GetByIdempotencyKey(ctx context.Context, key string) (*entity.IngestionJob, error)

	// UpdateStatus 更新任务状态
	UpdateStatus(ctx context.Context, id string, status entity.JobStatus) error

	// UpdateProgress 更新任务进度（0-100）
	UpdateProgress(ctx context.Context, id string, progress int) error

	// GetPendingJobs 获取待处理任务
	GetPendingJobs(ctx context.Context, limit int) ([]*entity.IngestionJob, error)

	// GetRunningJobs 获取运行中任务
	GetRunningJobs(ctx context.Context) ([]*entity.IngestionJob, error)

	// GetFailedJobs 获取失败任务（可重试）
	GetFailedJobs(ctx context.Context, maxRetries int, limit int) ([]*entity.IngestionJob, error)

	// GetJobStats 获取任务统计信息
	GetJobStats(ctx context.Context, tenantID string) (*JobStats, error)
}

// JobStats 任务统计信息
type JobStats struct {
	TotalJobs          int64 `json:"total_jobs"`
	PendingJobs        int64 `json:"pending_jobs"`
	RunningJobs        int64 `json:"running_jobs"`
	CompletedJobs      int64 `json:"completed_jobs"`
	FailedJobs         int64 `json:"failed_jobs"`
	TotalChunksIndexed int64 `json:"total_chunks_indexed"`
}
