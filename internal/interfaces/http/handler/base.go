package handler

import (
	"context"
	"fmt"
	"strings"

	"fasa-rag-api/internal/config"
	"fasa-rag-api/internal/domain/repository"
)

// resolveProvider 解析 LLM Provider 名称
func resolveProvider(cfg *config.Config, provider string) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("server config not configured")
	}

	p := strings.TrimSpace(provider)
	if p == "" {
		p = strings.TrimSpace(cfg.LLM.DefaultProvider)
	}
	if p == "" {
		return "", fmt.Errorf("llm provider not specified")
	}
	if len(p) > 32 {
		return "", fmt.Errorf("llm provider too long")
	}

	if _, ok := cfg.LLM.Providers[p]; !ok {
		return "", fmt.Errorf("llm provider not found: %s", p)
	}
	return p, nil
}

// withTenantTx 在租户事务中执行
func withTenantTx(ctx context.Context, txMgr repository.Transactor, tenantCtx repository.TenantContextManager, tenantID string, fn func(context.Context) error) error {
	if txMgr == nil || tenantCtx == nil {
		return fmt.Errorf("transaction dependencies not configured")
	}
	return txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := tenantCtx.SetTenant(txCtx, tenantID); err != nil {
			return err
		}
		return fn(txCtx)
	})
}
