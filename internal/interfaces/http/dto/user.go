// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"fasa-rag-api/internal/domain/entity"
)

// UserResponse 用户信息
type UserResponse struct {
	ID          string                `json:"id"`
	Email       string                `json:"email"`
	Name        string                `json:"name"`
	Role        string                `json:"role"`
	Settings    *entity.UserSettings  `json:"settings,omitempty"`
	LastLoginAt string                `json:"last_login_at,omitempty"`
	CreatedAt   string                `json:"created_at"`
}

// UserListResponse 用户列表
type UserListResponse struct {
	Users []*UserResponse `json:"users"`
}

// UpdateUserRequest 用户信息更新请求
type UpdateUserRequest struct {
	Name     *string              `json:"name,omitempty" binding:"omitempty,max=128"`
	Settings *entity.UserSettings `json:"settings,omitempty"`
}

// ApplyToUser 将更新内容应用到实体
func (r *UpdateUserRequest) ApplyToUser(u *entity.User) {
	if r == nil || u == nil {
		return
	}
	if r.Name != nil {
		u.Name = *r.Name
	}
	if r.Settings != nil {
		u.Settings = r.Settings
	}
	u.UpdatedAt = time.Now()
}

// UpdateUserRoleRequest 用户角色更新请求
type UpdateUserRoleRequest struct {
	Role entity.UserRole `json:"role" binding:"required,oneof=admin member viewer"`
}

// ToUserResponse 转换用户实体
func ToUserResponse(u *entity.User) *UserResponse {
	if u == nil {
		return nil
	}
	resp := &UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		Settings:  u.Settings,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
	if u.LastLoginAt != nil {
		resp.LastLoginAt = u.LastLoginAt.Format(time.RFC3339)
	}
	return resp
}

// ToUserListResponse 转换用户列表
func ToUserListResponse(users []*entity.User) UserListResponse {
	out := make([]*UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, ToUserResponse(u))
	}
	return UserListResponse{Users: out}
}
