// Package handler 提供 HTTP 请求处理器
package handler

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"fasa-rag-api/internal/application/chat"
	"fasa-rag-api/internal/config"
	"fasa-rag-api/internal/domain/repository"
	"fasa-rag-api/internal/interfaces/http/dto"
	"fasa-rag-api/internal/interfaces/http/middleware"
	"fasa-rag-api/pkg/logger"
)

// ChatHandler 问答处理器
type ChatHandler struct {
	svc         *chat.Service
	sessionRepo repository.ConversationSessionRepository
	turnRepo    repository.ConversationTurnRepository
	cfg         *config.Config
}

// NewChatHandler 创建问答处理器
func NewChatHandler(
	svc *chat.Service,
	sessionRepo repository.ConversationSessionRepository,
	turnRepo repository.ConversationTurnRepository,
	cfg *config.Config,
) *ChatHandler {
	return &ChatHandler{
		svc:         svc,
		sessionRepo: sessionRepo,
		turnRepo:    turnRepo,
		cfg:         cfg,
	}
}

// buildQueryInput 将请求转换为问答输入
func (h *ChatHandler) buildQueryInput(c *gin.Context, req *dto.ChatRequest) (*chat.QueryInput, error) {
	provider, err := resolveProvider(h.cfg, req.Provider)
	if err != nil {
		return nil, err
	}

	in := &chat.QueryInput{
		TenantID:    middleware.GetTenantIDFromGin(c),
		UserID:      middleware.GetUserIDFromGin(c),
		SessionID:   req.SessionID,
		Question:    req.Question,
		TopK:        req.TopK,
		Alpha:       -1,
		ScoreCutoff: -1,
		DocNames:    req.DocNames,
		Provider:    provider,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.Alpha != nil {
		in.Alpha = *req.Alpha
	}
	if req.ScoreCutoff != nil {
		in.ScoreCutoff = *req.ScoreCutoff
	}
	return in, nil
}

// Query 提交问题并获取答案
// @Summary 基于 SOP 库的问答
// @Description 检索相关 SOP 段落并生成带引用的答案
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body dto.ChatRequest true "问答请求"
// @Success 200 {object} dto.Response[dto.ChatResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/chat/query [post]
func (h *ChatHandler) Query(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	in, err := h.buildQueryInput(c, &req)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}
	if in.TenantID == "" {
		dto.Unauthorized(c, "tenant not resolved")
		return
	}

	out, err := h.svc.Query(c.Request.Context(), in)
	if err != nil {
		logger.Error(c.Request.Context(), "chat query failed", err)
		dto.InternalError(c, "query failed")
		return
	}

	dto.Success(c, dto.ChatResponse{
		SessionID:        out.SessionID,
		Answer:           out.Answer,
		Citations:        dto.ToCitationDTOs(out.Citations),
		NotFound:         out.NotFound,
		Cached:           out.Cached,
		PromptTokens:     out.PromptTokens,
		CompletionTokens: out.CompletionTokens,
	})
}

// QueryStream 流式问答
// @Summary 流式问答
// @Description 通过 SSE 流式返回答案增量与最终引用
// @Tags Chat
// @Accept json
// @Produce text/event-stream
// @Param request body dto.ChatRequest true "问答请求"
// @Success 200 "SSE stream"
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/chat/stream [post]
func (h *ChatHandler) QueryStream(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	in, err := h.buildQueryInput(c, &req)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}
	if in.TenantID == "" {
		dto.Unauthorized(c, "tenant not resolved")
		return
	}

	events, err := h.svc.QueryStream(c.Request.Context(), in)
	if err != nil {
		logger.Error(c.Request.Context(), "chat stream failed", err)
		dto.InternalError(c, "query failed")
		return
	}

	// 设置 SSE 响应头
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	index := 0

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			if ev.Err != nil {
				c.SSEvent("error", gin.H{
					"message": ev.Err.Error(),
				})
				return false
			}
			if ev.Done {
				c.SSEvent("metadata", gin.H{
					"answer":    ev.Answer,
					"citations": dto.ToCitationDTOs(ev.Citations),
					"not_found": ev.NotFound,
				})
				return false
			}
			c.SSEvent("content", gin.H{
				"chunk": ev.Delta,
				"index": index,
			})
			index++
			return true

		case <-c.Request.Context().Done():
			// 客户端断开
			return false
		}
	})
}

// ListSessions 获取当前用户的会话列表
// @Summary 会话列表
// @Tags Chat
// @Produce json
// @Success 200 {object} dto.Response[dto.SessionListResponse]
// @Router /v1/chat/sessions [get]
func (h *ChatHandler) ListSessions(c *gin.Context) {
	tenantID := middleware.GetTenantIDFromGin(c)
	userID := middleware.GetUserIDFromGin(c)
	if tenantID == "" || userID == "" {
		dto.Unauthorized(c, "user not resolved")
		return
	}

	page, pageSize := parsePagination(c)
	result, err := h.sessionRepo.ListByUser(c.Request.Context(), tenantID, userID,
		repository.NewPagination(page, pageSize))
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list sessions", err)
		dto.InternalError(c, "failed to list sessions")
		return
	}

	sessions := make([]*dto.SessionResponse, 0, len(result.Items))
	for _, s := range result.Items {
		sessions = append(sessions, dto.ToSessionResponse(s))
	}

	dto.SuccessWithPage(c, dto.SessionListResponse{Sessions: sessions},
		dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// GetSessionHistory 获取会话历史消息
// @Summary 会话历史
// @Tags Chat
// @Produce json
// @Param sid path string true "会话 ID"
// @Success 200 {object} dto.Response[dto.TurnListResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/chat/sessions/{sid}/turns [get]
func (h *ChatHandler) GetSessionHistory(c *gin.Context) {
	tenantID := middleware.GetTenantIDFromGin(c)
	sessionID := c.Param("sid")

	session, err := h.sessionRepo.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to get session", err)
		dto.InternalError(c, "failed to get session")
		return
	}
	if session == nil || session.TenantID != tenantID {
		dto.NotFound(c, "session not found")
		return
	}

	page, pageSize := parsePagination(c)
	result, err := h.turnRepo.ListBySession(c.Request.Context(), sessionID,
		repository.NewPagination(page, pageSize))
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list turns", err)
		dto.InternalError(c, "failed to list turns")
		return
	}

	turns := make([]*dto.TurnResponse, 0, len(result.Items))
	for _, t := range result.Items {
		turns = append(turns, dto.ToTurnResponse(t))
	}

	dto.SuccessWithPage(c, dto.TurnListResponse{Turns: turns},
		dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// DeleteSession 删除会话及其消息
// @Summary 删除会话
// @Tags Chat
// @Param sid path string true "会话 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/chat/sessions/{sid} [delete]
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	tenantID := middleware.GetTenantIDFromGin(c)
	sessionID := c.Param("sid")

	session, err := h.sessionRepo.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to get session", err)
		dto.InternalError(c, "failed to get session")
		return
	}
	if session == nil || session.TenantID != tenantID {
		dto.NotFound(c, "session not found")
		return
	}

	if err := h.sessionRepo.Delete(c.Request.Context(), sessionID); err != nil {
		logger.Error(c.Request.Context(), "failed to delete session", err)
		dto.InternalError(c, "failed to delete session")
		return
	}

	dto.NoContent(c)
}

// parsePagination 解析分页查询参数
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}
