// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"fasa-rag-api/internal/domain/entity"
)

// TenantResponse 租户信息
type TenantResponse struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Slug      string                 `json:"slug"`
	Settings  *entity.TenantSettings `json:"settings,omitempty"`
	Quota     *entity.TenantQuota    `json:"quota,omitempty"`
	Status    string                 `json:"status"`
	CreatedAt string                 `json:"created_at"`
}

// UpdateTenantRequest 租户更新请求
type UpdateTenantRequest struct {
	Name     *string                `json:"name,omitempty" binding:"omitempty,max=255"`
	Settings *entity.TenantSettings `json:"settings,omitempty"`
}

// ApplyToTenant 将更新内容应用到实体
func (r *UpdateTenantRequest) ApplyToTenant(t *entity.Tenant) {
	if r == nil || t == nil {
		return
	}
	if r.Name != nil {
		t.Name = *r.Name
	}
	if r.Settings != nil {
		t.Settings = r.Settings
	}
	t.UpdatedAt = time.Now()
}

// ToTenantResponse 转换租户实体
func ToTenantResponse(t *entity.Tenant) *TenantResponse {
	if t == nil {
		return nil
	}
	return &TenantResponse{
		ID:        t.ID,
		Name:      t.Name,
		Slug:      t.Slug,
		Settings:  t.Settings,
		Quota:     t.Quota,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
}
