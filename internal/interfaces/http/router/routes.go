// Package router 提供 HTTP 路由配置
package router

import (
	"fasa-rag-api/internal/interfaces/http/handler"
	"fasa-rag-api/internal/interfaces/http/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	authHandler *handler.AuthHandler,
	chatHandler *handler.ChatHandler,
	retrievalHandler *handler.RetrievalHandler,
	documentHandler *handler.DocumentHandler,
	jobHandler *handler.JobHandler,
	userHandler *handler.UserHandler,
	tenantHandler *handler.TenantHandler,
) {
	// 认证管理
	auth := v1.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)
		auth.POST("/logout", authHandler.Logout)
	}

	// 问答
	chat := v1.Group("/chat")
	{
		chat.POST("/query", chatHandler.Query)
		chat.POST("/stream", chatHandler.QueryStream) // SSE
		chat.GET("/sessions", chatHandler.ListSessions)
		chat.GET("/sessions/:sid/turns", chatHandler.GetSessionHistory)
		chat.DELETE("/sessions/:sid", chatHandler.DeleteSession)
	}

	// 检索调试
	retrieval := v1.Group("/retrieval")
	{
		retrieval.POST("/search", retrievalHandler.Search)
		retrieval.POST("/debug", retrievalHandler.DebugSearch)
	}

	// 文档管理：写操作需要 member 及以上，删除仅限管理员
	documents := v1.Group("/documents")
	{
		documents.GET("", documentHandler.List)
		documents.POST("/ingest", middleware.RequirePermission(middleware.PermDocumentManage), documentHandler.Ingest)
		documents.GET("/:did", documentHandler.Get)
		documents.GET("/:did/versions", documentHandler.ListVersions)
		documents.PATCH("/:did/status", middleware.RequirePermission(middleware.PermDocumentManage), documentHandler.UpdateStatus)
		documents.DELETE("/:did", middleware.RequireAdmin(), documentHandler.Delete)
	}

	// 任务管理
	jobs := v1.Group("/jobs")
	{
		jobs.GET("", jobHandler.List)
		jobs.GET("/stats", jobHandler.Stats)
		jobs.GET("/:jid", jobHandler.Get)
	}

	// 用户管理
	users := v1.Group("/users")
	{
		users.GET("/me", userHandler.GetMe)
		users.PUT("/me", userHandler.UpdateMe)
		users.GET("", userHandler.ListTenantUsers)
		users.PUT("/:uid/role", middleware.RequireAdmin(), userHandler.UpdateUserRole)
	}

	// 租户管理：配置变更仅限管理员
	tenants := v1.Group("/tenants")
	{
		tenants.GET("/current", tenantHandler.GetCurrentTenant)
		tenants.PUT("/current", middleware.RequireAdmin(), tenantHandler.UpdateCurrentTenant)
	}
}
