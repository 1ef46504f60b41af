package messaging

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogHandler(t *testing.T) {
	msg, err := NewMessage("req-1", "audit", "t1", "", &AuditLogMessage{
		TenantID:     "t1",
		UserID:       "u1",
		Action:       "document.delete",
		ResourceType: "document",
		ResourceID:   "d1",
		RequestID:    "req-1",
	})
	require.NoError(t, err)

	handler := AuditLogHandler()
	assert.NoError(t, handler(context.Background(), msg))

	// 载荷损坏时返回错误，交由消费重试与死信处理
	bad := &Message{Type: "audit", Payload: json.RawMessage(`{`)}
	assert.Error(t, handler(context.Background(), bad))
}
