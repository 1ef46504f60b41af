package messaging

import (
	"context"

	"fasa-rag-api/pkg/logger"
)

// AuditLogHandler 审计流消费处理器：把审计事件写入结构化日志，
// 日志采集链路（Loki/ELK）即为审计留痕的落地存储。
func AuditLogHandler() MessageHandler {
	return func(ctx context.Context, msg *Message) error {
		var entry AuditLogMessage
		if err := msg.UnmarshalPayload(&entry); err != nil {
			return err
		}

		logger.Info(ctx, "audit",
			"tenant_id", entry.TenantID,
			"user_id", entry.UserID,
			"action", entry.Action,
			"resource_type", entry.ResourceType,
			"resource_id", entry.ResourceID,
			"request_id", entry.RequestID,
			"audit_trace_id", entry.TraceID,
			"ip_address", entry.IPAddress,
		)
		return nil
	}
}
