package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"fasa-rag-api/internal/domain/entity"
	"fasa-rag-api/internal/domain/repository"
	"fasa-rag-api/internal/interfaces/http/middleware"
)

type memUserRepo struct {
	users map[string]*entity.User
	roles map[string]entity.UserRole
}

func newMemUserRepo(users ...*entity.User) *memUserRepo {
	r := &memUserRepo{users: map[string]*entity.User{}, roles: map[string]entity.UserRole{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memUserRepo) Create(_ context.Context, u *entity.User) error {
	r.users[u.ID] = u
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *memUserRepo) GetByEmail(context.Context, string, string) (*entity.User, error) {
	return nil, nil
}

func (r *memUserRepo) Update(_ context.Context, u *entity.User) error {
	r.users[u.ID] = u
	return nil
}

func (r *memUserRepo) Delete(_ context.Context, id string) error {
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) ListByTenant(context.Context, string, repository.Pagination) (*repository.PagedResult[*entity.User], error) {
	return nil, nil
}

func (r *memUserRepo) UpdateRole(_ context.Context, id string, role entity.UserRole) error {
	r.roles[id] = role
	if u, ok := r.users[id]; ok {
		u.Role = role
	}
	return nil
}

func (r *memUserRepo) UpdateLastLogin(context.Context, string) error { return nil }

func (r *memUserRepo) ExistsByEmail(context.Context, string, string) (bool, error) {
	return false, nil
}

var _ repository.UserRepository = (*memUserRepo)(nil)

func newUserRoleRouter(repo *memUserRepo, callerRole string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("tenant_id", "t1")
		c.Set("user_id", "u-admin")
		c.Set("role", callerRole)
	})
	h := NewUserHandler(repo)
	r.PUT("/v1/users/:uid/role", middleware.RequireAdmin(), h.UpdateUserRole)
	return r
}

func putRole(r *gin.Engine, uid, role string) *httptest.ResponseRecorder {
	body := strings.NewReader(`{"role":"` + role + `"}`)
	req := httptest.NewRequest(http.MethodPut, "/v1/users/"+uid+"/role", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUpdateUserRole(t *testing.T) {
	sameTenant := &entity.User{ID: "u2", TenantID: "t1", Role: entity.UserRoleViewer}
	otherTenant := &entity.User{ID: "u9", TenantID: "t2", Role: entity.UserRoleMember}

	t.Run("admin promotes same-tenant user", func(t *testing.T) {
		repo := newMemUserRepo(sameTenant, otherTenant)
		w := putRole(newUserRoleRouter(repo, "admin"), "u2", "member")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, entity.UserRoleMember, repo.roles["u2"])
	})

	t.Run("member cannot change roles", func(t *testing.T) {
		repo := newMemUserRepo(sameTenant)
		w := putRole(newUserRoleRouter(repo, "member"), "u2", "admin")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, repo.roles)
	})

	t.Run("cross-tenant target reads as not found", func(t *testing.T) {
		repo := newMemUserRepo(sameTenant, otherTenant)
		w := putRole(newUserRoleRouter(repo, "admin"), "u9", "admin")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Empty(t, repo.roles)
	})

	t.Run("unknown target", func(t *testing.T) {
		repo := newMemUserRepo(sameTenant)
		w := putRole(newUserRoleRouter(repo, "admin"), "nope", "admin")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid role rejected", func(t *testing.T) {
		repo := newMemUserRepo(sameTenant)
		w := putRole(newUserRoleRouter(repo, "admin"), "u2", "superuser")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
