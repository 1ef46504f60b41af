// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"

	"fasa-rag-api/internal/application/chat"
	"fasa-rag-api/internal/application/ingestion"
	"fasa-rag-api/internal/config"
	"fasa-rag-api/internal/domain/entity"
	"fasa-rag-api/internal/domain/repository"
	"fasa-rag-api/internal/infrastructure/messaging"
	"fasa-rag-api/internal/interfaces/http/dto"
	"fasa-rag-api/internal/interfaces/http/middleware"
	"fasa-rag-api/pkg/logger"
)

// DocumentHandler SOP 文档处理器
type DocumentHandler struct {
	docRepo   repository.DocumentRepository
	jobRepo   repository.JobRepository
	pipeline  *ingestion.Pipeline
	producer  *messaging.Producer
	chatSvc   *chat.Service
	txMgr     repository.Transactor
	tenantCtx repository.TenantContextManager
	cfg       *config.Config
}

// NewDocumentHandler 创建文档处理器
func NewDocumentHandler(
	docRepo repository.DocumentRepository,
	jobRepo repository.JobRepository,
	pipeline *ingestion.Pipeline,
	producer *messaging.Producer,
	chatSvc *chat.Service,
	txMgr repository.Transactor,
	tenantCtx repository.TenantContextManager,
	cfg *config.Config,
) *DocumentHandler {
	return &DocumentHandler{
		docRepo:   docRepo,
		jobRepo:   jobRepo,
		pipeline:  pipeline,
		producer:  producer,
		chatSvc:   chatSvc,
		txMgr:     txMgr,
		tenantCtx: tenantCtx,
		cfg:       cfg,
	}
}

// List 文档列表
// @Summary 文档列表
// @Description 按名称与状态筛选租户下的 SOP 文档
// @Tags Documents
// @Produce json
// @Param doc_name query string false "文档名称"
// @Param status query string false "文档状态" Enums(active, archived)
// @Success 200 {object} dto.Response[dto.DocumentListResponse]
// @Router /v1/documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	tenantID := middleware.GetTenantIDFromGin(c)
	if tenantID == "" {
		dto.Unauthorized(c, "tenant not resolved")
		return
	}

	filter := &repository.DocumentFilter{
		DocName: c.Query("doc_name"),
		Status:  entity.DocumentStatus(c.Query("status")),
	}

	page, pageSize := parsePagination(c)
	result, err := h.docRepo.ListByTenant(c.Request.Context(), tenantID, filter,
		repository.NewPagination(page, pageSize))
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list documents", err)
		dto.InternalError(c, "failed to list documents")
		return
	}

	dto.SuccessWithPage(c, dto.DocumentListResponse{
		Documents: dto.ToDocumentResponses(result.Items),
	}, dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// Get 获取单个文档
// @Summary 获取文档
// @Tags Documents
// @Produce json
// @Param did path string true "文档 ID"
// @Success 200 {object} dto.Response[dto.DocumentResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/documents/{did} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, ok := h.loadDocument(c)
	if !ok {
		return
	}
	dto.Success(c, dto.ToDocumentResponse(doc))
}

// ListVersions 获取同名文档的全部版本
// @Summary 文档版本列表
// @Description 按版本号降序返回同名文档的全部版本
// @Tags Documents
// @Produce json
// @Param did path string true "文档 ID"
// @Success 200 {object} dto.Response[dto.VersionListResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/documents/{did}/versions [get]
func (h *DocumentHandler) ListVersions(c *gin.Context) {
	doc, ok := h.loadDocument(c)
	if !ok {
		return
	}

	versions, err := h.docRepo.ListVersions(c.Request.Context(), doc.TenantID, doc.DocName)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list versions", err)
		dto.InternalError(c, "failed to list versions")
		return
	}

	dto.Success(c, dto.VersionListResponse{
		DocName:  doc.DocName,
		Versions: dto.ToDocumentResponses(versions),
	})
}

// UpdateStatus 变更文档状态
// @Summary 变更文档状态
// @Description 激活或归档文档；激活时同名的其他版本会被归档
// @Tags Documents
// @Accept json
// @Produce json
// @Param did path string true "文档 ID"
// @Param request body dto.StatusUpdateRequest true "状态变更请求"
// @Success 200 {object} dto.Response[dto.DocumentResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/documents/{did}/status [patch]
func (h *DocumentHandler) UpdateStatus(c *gin.Context) {
	var req dto.StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	doc, ok := h.loadDocument(c)
	if !ok {
		return
	}

	var updated *entity.Document
	err := withTenantTx(c.Request.Context(), h.txMgr, h.tenantCtx, doc.TenantID, func(txCtx context.Context) error {
		var err error
		updated, err = h.pipeline.SetDocumentStatus(txCtx, doc.TenantID, doc.ID, entity.DocumentStatus(req.Status))
		return err
	})
	if err != nil {
		logger.Error(c.Request.Context(), "failed to update document status", err)
		dto.InternalError(c, "failed to update status")
		return
	}

	// 状态变更影响检索结果，使答案缓存失效
	h.chatSvc.InvalidateAnswers(c.Request.Context(), doc.TenantID)
	h.audit(c, doc.TenantID, "document.status_update", doc.ID)

	dto.Success(c, dto.ToDocumentResponse(updated))
}

// Delete 删除文档及其向量数据
// @Summary 删除文档
// @Tags Documents
// @Param did path string true "文档 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/documents/{did} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	doc, ok := h.loadDocument(c)
	if !ok {
		return
	}

	err := withTenantTx(c.Request.Context(), h.txMgr, h.tenantCtx, doc.TenantID, func(txCtx context.Context) error {
		return h.pipeline.RemoveDocument(txCtx, doc.TenantID, doc.ID)
	})
	if err != nil {
		logger.Error(c.Request.Context(), "failed to delete document", err)
		dto.InternalError(c, "failed to delete document")
		return
	}

	h.chatSvc.InvalidateAnswers(c.Request.Context(), doc.TenantID)
	h.audit(c, doc.TenantID, "document.delete", doc.ID)

	dto.NoContent(c)
}

// Ingest 触发文档入库
// @Summary 触发入库
// @Description path 为空时扫描整个 SOP 目录；异步模式下返回任务 ID
// @Tags Documents
// @Accept json
// @Produce json
// @Param request body dto.IngestRequest true "入库请求"
// @Success 200 {object} dto.Response[dto.IngestResponse]
// @Success 202 {object} dto.Response[dto.IngestAcceptedResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/documents/ingest [post]
func (h *DocumentHandler) Ingest(c *gin.Context) {
	var req dto.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	tenantID := middleware.GetTenantIDFromGin(c)
	if tenantID == "" {
		dto.Unauthorized(c, "tenant not resolved")
		return
	}

	if h.cfg != nil && h.cfg.Features.AsyncIngest.Enabled && h.producer != nil && h.jobRepo != nil {
		h.ingestAsync(c, tenantID, req.Path)
		return
	}
	h.ingestSync(c, tenantID, req.Path)
}

// ingestAsync 创建任务并投递到 Redis Stream，由 ingest-worker 消费
func (h *DocumentHandler) ingestAsync(c *gin.Context, tenantID, path string) {
	ctx := c.Request.Context()

	// 同一路径的重复请求幂等处理
	idemKey := ingestIdempotencyKey(tenantID, path)
	if existing, err := h.jobRepo.GetByIdempotencyKey(ctx, idemKey); err == nil && existing != nil &&
		(existing.Status == entity.JobStatusPending || existing.Status == entity.JobStatusRunning) {
		dto.Accepted(c, dto.IngestAcceptedResponse{JobID: existing.ID, Status: string(existing.Status)})
		return
	}

	params, _ := json.Marshal(map[string]string{"path": path})
	job := entity.NewIngestionJob(tenantID, entity.JobTypeIngest, params)
	job.IdempotencyKey = idemKey

	if err := h.jobRepo.Create(ctx, job); err != nil {
		logger.Error(ctx, "failed to create ingestion job", err)
		dto.InternalError(c, "failed to create job")
		return
	}

	if _, err := h.producer.PublishIngestJob(ctx, &messaging.IngestJobMessage{
		JobID:          job.ID,
		TenantID:       tenantID,
		Filename:       path,
		JobType:        string(entity.JobTypeIngest),
		IdempotencyKey: idemKey,
	}); err != nil {
		logger.Error(ctx, "failed to publish ingestion job", err)
		// 任务已落库，标记失败便于重试
		job.Fail("failed to publish to stream: " + err.Error())
		if uerr := h.jobRepo.Update(ctx, job); uerr != nil {
			logger.Warn(ctx, "failed to mark job as failed", "error", uerr, "job_id", job.ID)
		}
		dto.InternalError(c, "failed to enqueue job")
		return
	}

	h.audit(c, tenantID, "document.ingest_async", job.ID)

	dto.Accepted(c, dto.IngestAcceptedResponse{JobID: job.ID, Status: string(job.Status)})
}

// ingestSync 同步执行入库流水线
func (h *DocumentHandler) ingestSync(c *gin.Context, tenantID, path string) {
	ctx := c.Request.Context()

	var results []*ingestion.Result
	err := withTenantTx(ctx, h.txMgr, h.tenantCtx, tenantID, func(txCtx context.Context) error {
		if path == "" {
			var err error
			results, err = h.pipeline.IngestLibrary(txCtx, tenantID)
			return err
		}
		res, err := h.pipeline.IngestFile(txCtx, tenantID, path)
		if err != nil {
			return err
		}
		results = []*ingestion.Result{res}
		return nil
	})
	if err != nil {
		logger.Error(ctx, "ingest failed", err)
		dto.InternalError(c, "ingest failed")
		return
	}

	h.chatSvc.InvalidateAnswers(ctx, tenantID)
	h.audit(c, tenantID, "document.ingest", path)

	out := make([]*dto.IngestResultDTO, 0, len(results))
	for _, r := range results {
		out = append(out, &dto.IngestResultDTO{
			Document:      dto.ToDocumentResponse(r.Document),
			ChunksIndexed: r.ChunksIndexed,
			Skipped:       r.Skipped,
		})
	}
	dto.Success(c, dto.IngestResponse{Results: out})
}

// loadDocument 加载路径参数指定的文档并校验租户归属
func (h *DocumentHandler) loadDocument(c *gin.Context) (*entity.Document, bool) {
	tenantID := middleware.GetTenantIDFromGin(c)
	if tenantID == "" {
		dto.Unauthorized(c, "tenant not resolved")
		return nil, false
	}

	doc, err := h.docRepo.GetByID(c.Request.Context(), c.Param("did"))
	if err != nil {
		logger.Error(c.Request.Context(), "failed to get document", err)
		dto.InternalError(c, "failed to get document")
		return nil, false
	}
	if doc == nil || doc.TenantID != tenantID {
		dto.NotFound(c, "document not found")
		return nil, false
	}
	return doc, true
}

// audit 发送审计日志，失败仅告警
func (h *DocumentHandler) audit(c *gin.Context, tenantID, action, resourceID string) {
	if h.producer == nil {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.producer.PublishAuditLog(ctx, &messaging.AuditLogMessage{
		TenantID:     tenantID,
		UserID:       middleware.GetUserIDFromGin(c),
		Action:       action,
		ResourceType: "document",
		ResourceID:   resourceID,
		RequestID:    c.GetString("request_id"),
		TraceID:      c.GetString("trace_id"),
		IPAddress:    c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
	}); err != nil {
		logger.Warn(ctx, "failed to publish audit log", "error", err, "action", action)
	}
}

// ingestIdempotencyKey 以租户与路径生成幂等键
func ingestIdempotencyKey(tenantID, path string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s", tenantID, path)))
	return "ingest:" + hex.EncodeToString(sum[:16])
}
