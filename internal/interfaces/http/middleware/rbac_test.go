package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"fasa-rag-api/internal/domain/entity"
)

func newRBACRouter(guard gin.HandlerFunc, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if role != "" {
			c.Set("role", role)
		}
	})
	r.DELETE("/v1/documents/:did", guard, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	})
	return r
}

func doDelete(r *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodDelete, "/v1/documents/d1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role entity.UserRole
		perm Permission
		want bool
	}{
		{entity.UserRoleAdmin, PermAdminAccess, true},
		{entity.UserRoleAdmin, PermDocumentManage, true},
		{entity.UserRoleAdmin, PermDocumentRead, true},
		{entity.UserRoleMember, PermDocumentManage, true},
		{entity.UserRoleMember, PermDocumentRead, true},
		{entity.UserRoleMember, PermAdminAccess, false},
		{entity.UserRoleViewer, PermDocumentRead, true},
		{entity.UserRoleViewer, PermDocumentManage, false},
		{entity.UserRoleViewer, PermAdminAccess, false},
		{entity.UserRole("bogus"), PermDocumentRead, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HasPermission(tt.role, tt.perm), "role %s perm %s", tt.role, tt.perm)
	}
}

func TestRequirePermission(t *testing.T) {
	t.Run("member cannot access admin-only route", func(t *testing.T) {
		w := doDelete(newRBACRouter(RequireAdmin(), "member"))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "permission denied")
	})

	t.Run("admin passes", func(t *testing.T) {
		w := doDelete(newRBACRouter(RequireAdmin(), "admin"))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("member passes document manage", func(t *testing.T) {
		w := doDelete(newRBACRouter(RequirePermission(PermDocumentManage), "member"))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("viewer denied document manage", func(t *testing.T) {
		w := doDelete(newRBACRouter(RequirePermission(PermDocumentManage), "viewer"))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing role denied", func(t *testing.T) {
		w := doDelete(newRBACRouter(RequirePermission(PermDocumentRead), ""))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "missing role")
	})
}

func TestRequireRole(t *testing.T) {
	t.Run("allowed role passes", func(t *testing.T) {
		w := doDelete(newRBACRouter(RequireRole(entity.UserRoleAdmin, entity.UserRoleMember), "member"))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("other role denied", func(t *testing.T) {
		w := doDelete(newRBACRouter(RequireRole(entity.UserRoleAdmin), "viewer"))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "role not allowed")
	})
}
