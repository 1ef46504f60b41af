// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"fasa-rag-api/internal/domain/entity"
	"fasa-rag-api/internal/domain/repository"
	"fasa-rag-api/internal/interfaces/http/dto"
	"fasa-rag-api/internal/interfaces/http/middleware"
	"fasa-rag-api/pkg/logger"
)

// JobHandler 入库任务处理器
type JobHandler struct {
	jobRepo repository.JobRepository
}

// NewJobHandler 创建任务处理器
func NewJobHandler(jobRepo repository.JobRepository) *JobHandler {
	return &JobHandler{jobRepo: jobRepo}
}

// Get 获取任务详情
// @Summary 获取任务
// @Tags Jobs
// @Produce json
// @Param jid path string true "任务 ID"
// @Success 200 {object} dto.Response[dto.JobResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/jobs/{jid} [get]
func (h *JobHandler) Get(c *gin.Context) {
	tenantID := middleware.GetTenantIDFromGin(c)
	if tenantID == "" {
		dto.Unauthorized(c, "tenant not resolved")
		return
	}

	job, err := h.jobRepo.GetByID(c.Request.Context(), c.Param("jid"))
	if err != nil {
		logger.Error(c.Request.Context(), "failed to get job", err)
		dto.InternalError(c, "failed to get job")
		return
	}
	if job == nil || job.TenantID != tenantID {
		dto.NotFound(c, "job not found")
		return
	}

	dto.Success(c, dto.ToJobResponse(job))
}

// List 任务列表
// @Summary 任务列表
// @Description 按类型与状态筛选租户的入库任务
// @Tags Jobs
// @Produce json
// @Param job_type query string false "任务类型"
// @Param status query string false "任务状态"
// @Success 200 {object} dto.Response[dto.JobListResponse]
// @Router /v1/jobs [get]
func (h *JobHandler) List(c *gin.Context) {
	tenantID := middleware.GetTenantIDFromGin(c)
	if tenantID == "" {
		dto.Unauthorized(c, "tenant not resolved")
		return
	}

	filter := &repository.JobFilter{
		JobType: entity.JobType(c.Query("job_type")),
		Status:  entity.JobStatus(c.Query("status")),
	}

	page, pageSize := parsePagination(c)
	result, err := h.jobRepo.ListByTenant(c.Request.Context(), tenantID, filter,
		repository.NewPagination(page, pageSize))
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list jobs", err)
		dto.InternalError(c, "failed to list jobs")
		return
	}

	jobs := make([]*dto.JobResponse, 0, len(result.Items))
	for _, j := range result.Items {
		jobs = append(jobs, dto.ToJobResponse(j))
	}

	dto.SuccessWithPage(c, dto.JobListResponse{Jobs: jobs},
		dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// Stats 任务统计
// @Summary 任务统计
// @Tags Jobs
// @Produce json
// @Success 200 {object} dto.Response[dto.JobStatsResponse]
// @Router /v1/jobs/stats [get]
func (h *JobHandler) Stats(c *gin.Context) {
	tenantID := middleware.GetTenantIDFromGin(c)
	if tenantID == "" {
		dto.Unauthorized(c, "tenant not resolved")
		return
	}

	stats, err := h.jobRepo.GetJobStats(c.Request.Context(), tenantID)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to get job stats", err)
		dto.InternalError(c, "failed to get job stats")
		return
	}

	dto.Success(c, dto.ToJobStatsResponse(stats))
}
