// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"fasa-rag-api/internal/application/retrieval"
	"fasa-rag-api/internal/interfaces/http/dto"
	"fasa-rag-api/internal/interfaces/http/middleware"
	"fasa-rag-api/pkg/logger"
)

// RetrievalHandler 检索处理器
type RetrievalHandler struct {
	engine *retrieval.Engine
}

// NewRetrievalHandler 创建检索处理器
func NewRetrievalHandler(engine *retrieval.Engine) *RetrievalHandler {
	return &RetrievalHandler{engine: engine}
}

// buildSearchInput 将请求转换为检索输入
func buildSearchInput(c *gin.Context, req *dto.SearchRequest) retrieval.SearchInput {
	in := retrieval.SearchInput{
		TenantID:    middleware.GetTenantIDFromGin(c),
		Query:       req.Query,
		TopK:        req.TopK,
		Alpha:       -1,
		ScoreCutoff: -1,
		DocNames:    req.DocNames,
	}
	if req.Alpha != nil {
		in.Alpha = *req.Alpha
	}
	if req.ScoreCutoff != nil {
		in.ScoreCutoff = *req.ScoreCutoff
	}
	return in
}

// Search 混合检索 SOP 段落
// @Summary 段落检索
// @Description 稠密向量与关键词混合检索，返回得分最高的段落
// @Tags Retrieval
// @Accept json
// @Produce json
// @Param request body dto.SearchRequest true "检索请求"
// @Success 200 {object} dto.Response[dto.SearchResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/retrieval/search [post]
func (h *RetrievalHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	in := buildSearchInput(c, &req)
	if in.TenantID == "" {
		dto.Unauthorized(c, "tenant not resolved")
		return
	}

	out, err := h.engine.Search(c.Request.Context(), in)
	if err != nil {
		logger.Error(c.Request.Context(), "search failed", err)
		dto.InternalError(c, "search failed")
		return
	}

	dto.Success(c, dto.SearchResponse{
		Passages:       dto.ToPassageDTOs(out.Passages),
		DisabledReason: out.DisabledReason,
	})
}

// DebugSearch 带调试信息的检索
// @Summary 检索调试
// @Description 返回段落的两路原始得分与检索耗时统计
// @Tags Retrieval
// @Accept json
// @Produce json
// @Param request body dto.SearchRequest true "检索请求"
// @Success 200 {object} dto.Response[dto.DebugSearchResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/retrieval/debug [post]
func (h *RetrievalHandler) DebugSearch(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	in := buildSearchInput(c, &req)
	if in.TenantID == "" {
		dto.Unauthorized(c, "tenant not resolved")
		return
	}

	out, err := h.engine.DebugSearch(c.Request.Context(), in)
	if err != nil {
		logger.Error(c.Request.Context(), "debug search failed", err)
		dto.InternalError(c, "search failed")
		return
	}

	dto.Success(c, dto.DebugSearchResponse{
		Passages:       dto.ToPassageDTOs(out.Passages),
		Debug:          dto.ToRetrievalDebugDTO(out.Debug),
		DisabledReason: out.DisabledReason,
	})
}
