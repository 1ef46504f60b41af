// Package qdrant 提供 Qdrant 向量数据库访问层实现
package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"

	"fasa-rag-api/internal/config"
)

var tracer = otel.Tracer("qdrant")

// maxMessageSize gRPC 消息大小上限，大文档入库时单批 upsert 可能较大
const maxMessageSize = 50 * 1024 * 1024

// Client Qdrant 客户端
type Client struct {
	qdrant *qdrant.Client
	config *config.QdrantConfig
}

// NewClient 创建 Qdrant 客户端
func NewClient(ctx context.Context, cfg *config.QdrantConfig) (*Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(maxMessageSize),
				grpc.MaxCallSendMsgSize(maxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	c := &Client{
		qdrant: client,
		config: cfg,
	}

	if err := c.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return c, nil
}

// Qdrant 获取底层 Qdrant 客户端
func (c *Client) Qdrant() *qdrant.Client {
	return c.qdrant
}

// Close 关闭 Qdrant 连接
func (c *Client) Close() error {
	return c.qdrant.Close()
}

// HealthCheck 健康检查
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "qdrant.HealthCheck")
	defer span.End()

	_, err := c.qdrant.HealthCheck(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// CollectionName 获取带前缀的集合名称
func (c *Client) CollectionName(name string) string {
	if c.config.CollectionPrefix != "" {
		return c.config.CollectionPrefix + "_" + name
	}
	return name
}
