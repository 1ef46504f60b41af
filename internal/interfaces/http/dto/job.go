// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"encoding/json"
	"time"

	"fasa-rag-api/internal/domain/entity"
	"fasa-rag-api/internal/domain/repository"
)

// JobResponse 入库任务信息
type JobResponse struct {
	ID            string          `json:"id"`
	DocumentID    string          `json:"document_id,omitempty"`
	JobType       string          `json:"job_type"`
	Status        string          `json:"status"`
	Progress      int             `json:"progress"`
	ChunksIndexed int             `json:"chunks_indexed,omitempty"`
	DurationMs    int             `json:"duration_ms,omitempty"`
	RetryCount    int             `json:"retry_count"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	OutputResult  json.RawMessage `json:"output_result,omitempty"`
	CreatedAt     string          `json:"created_at"`
	StartedAt     string          `json:"started_at,omitempty"`
	CompletedAt   string          `json:"completed_at,omitempty"`
}

// JobListResponse 任务列表
type JobListResponse struct {
	Jobs []*JobResponse `json:"jobs"`
}

// JobStatsResponse 任务统计
type JobStatsResponse struct {
	TotalJobs          int64 `json:"total_jobs"`
	PendingJobs        int64 `json:"pending_jobs"`
	RunningJobs        int64 `json:"running_jobs"`
	CompletedJobs      int64 `json:"completed_jobs"`
	FailedJobs         int64 `json:"failed_jobs"`
	TotalChunksIndexed int64 `json:"total_chunks_indexed"`
}

// ToJobResponse 转换任务实体
func ToJobResponse(j *entity.IngestionJob) *JobResponse {
	if j == nil {
		return nil
	}
	resp := &JobResponse{
		ID:            j.ID,
		DocumentID:    j.DocumentID,
		JobType:       string(j.JobType),
		Status:        string(j.Status),
		Progress:      j.Progress,
		ChunksIndexed: j.ChunksIndexed,
		DurationMs:    j.DurationMs,
		RetryCount:    j.RetryCount,
		ErrorMessage:  j.ErrorMessage,
		OutputResult:  j.OutputResult,
		CreatedAt:     j.CreatedAt.Format(time.RFC3339),
	}
	if j.StartedAt != nil {
		resp.StartedAt = j.StartedAt.Format(time.RFC3339)
	}
	if j.CompletedAt != nil {
		resp.CompletedAt = j.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

// ToJobStatsResponse 转换任务统计
func ToJobStatsResponse(s *repository.JobStats) *JobStatsResponse {
	if s == nil {
		return nil
	}
	return &JobStatsResponse{
		TotalJobs:          s.TotalJobs,
		PendingJobs:        s.PendingJobs,
		RunningJobs:        s.RunningJobs,
		CompletedJobs:      s.CompletedJobs,
		FailedJobs:         s.FailedJobs,
		TotalChunksIndexed: s.TotalChunksIndexed,
	}
}
