// Package middleware 提供 HTTP 中间件
package middleware

import (
	"net/http"

	"fasa-rag-api/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

// Permission 权限类型
type Permission string

// 权限常量定义
const (
	// PermDocumentRead 查看 SOP 文档与检索
	PermDocumentRead Permission = "document:read"
	// PermDocumentManage 文档入库与状态管理
	PermDocumentManage Permission = "document:manage"
	// PermAdminAccess 租户管理操作（删除文档、角色变更、租户配置）
	PermAdminAccess Permission = "admin:access"
)

// HasPermission 检查角色是否具有指定权限
func HasPermission(role entity.UserRole, perm Permission) bool {
	u := entity.User{Role: role}
	switch perm {
	case PermAdminAccess:
		return u.IsAdmin()
	case PermDocumentManage:
		return u.CanManageDocuments()
	case PermDocumentRead:
		switch role {
		case entity.UserRoleAdmin, entity.UserRoleMember, entity.UserRoleViewer:
			return true
		}
	}
	return false
}

// RequirePermission 权限检查中间件
// 检查当前用户是否具有指定权限，否则返回 403
func RequirePermission(perm Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleStr := c.GetString("role")
		if roleStr == "" {
			abortForbidden(c, "missing role in context")
			return
		}

		if !HasPermission(entity.UserRole(roleStr), perm) {
			abortForbidden(c, "permission denied")
			return
		}

		c.Next()
	}
}

// RequireRole 角色检查中间件
// 检查当前用户是否为指定角色之一，否则返回 403
func RequireRole(roles ...entity.UserRole) gin.HandlerFunc {
	roleSet := make(map[entity.UserRole]bool)
	for _, r := range roles {
		roleSet[r] = true
	}

	return func(c *gin.Context) {
		roleStr := c.GetString("role")
		if roleStr == "" {
			abortForbidden(c, "missing role in context")
			return
		}

		if !roleSet[entity.UserRole(roleStr)] {
			abortForbidden(c, "role not allowed")
			return
		}

		c.Next()
	}
}

// RequireAdmin 管理员权限检查中间件（便捷方法）
func RequireAdmin() gin.HandlerFunc {
	return RequirePermission(PermAdminAccess)
}

// abortForbidden 终止请求并返回 403
func abortForbidden(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"code":     403,
		"message":  msg,
		"trace_id": c.GetString("trace_id"),
	})
}
