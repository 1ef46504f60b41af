// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"strings"

	"github.com/google/wire"

	"fasa-rag-api/internal/application/chat"
	"fasa-rag-api/internal/application/ingestion"
	"fasa-rag-api/internal/application/retrieval"
	"fasa-rag-api/internal/config"
	"fasa-rag-api/internal/domain/repository"
	"fasa-rag-api/internal/infrastructure/embedding"
	"fasa-rag-api/internal/infrastructure/llm"
	"fasa-rag-api/internal/infrastructure/messaging"
	"fasa-rag-api/internal/infrastructure/persistence/postgres"
	"fasa-rag-api/internal/infrastructure/persistence/qdrant"
	"fasa-rag-api/internal/infrastructure/persistence/redis"
	"fasa-rag-api/internal/interfaces/http/handler"
	"fasa-rag-api/internal/interfaces/http/middleware"
	"fasa-rag-api/internal/interfaces/http/router"
	"fasa-rag-api/pkg/logger"
)

// PostgresOnlyDataLayer 仅包含 PostgreSQL 的数据层（用于 bootstrap）
type PostgresOnlyDataLayer struct {
	PgClient      *postgres.Client
	TxManager     *postgres.TxManager
	TenantContext *postgres.TenantContext
	TenantRepo    *postgres.TenantRepository
	UserRepo      *postgres.UserRepository
	DocumentRepo  *postgres.DocumentRepository
	JobRepo       *postgres.JobRepository
	SessionRepo   *postgres.ConversationSessionRepository
	TurnRepo      *postgres.ConversationTurnRepository
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewTenantContext,
	postgres.NewTenantRepository,
	postgres.NewUserRepository,
	postgres.NewDocumentRepository,
	postgres.NewJobRepository,
	postgres.NewConversationSessionRepository,
	postgres.NewConversationTurnRepository,
)

// RepoSet 整合了具体实现与接口绑定的集合
var RepoSet = wire.NewSet(
	PostgresSet,
	// 接口绑定
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.TenantContextManager), new(*postgres.TenantContext)),
	wire.Bind(new(repository.TenantRepository), new(*postgres.TenantRepository)),
	wire.Bind(new(repository.UserRepository), new(*postgres.UserRepository)),
	wire.Bind(new(repository.DocumentRepository), new(*postgres.DocumentRepository)),
	wire.Bind(new(repository.JobRepository), new(*postgres.JobRepository)),
	wire.Bind(new(repository.ConversationSessionRepository), new(*postgres.ConversationSessionRepository)),
	wire.Bind(new(repository.ConversationTurnRepository), new(*postgres.ConversationTurnRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewCache,
	redis.NewRateLimiter,
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
)

// QdrantAppSet API 网关可选 Qdrant（不可达时不阻塞启动）
var QdrantAppSet = wire.NewSet(
	ProvideQdrantClientOptional,
	ProvideQdrantRepositoryOptional,
	ProvideRetrievalVectorRepositoryOptional,
)

// EmbeddingSet 可选 Embedder（不可用时禁用向量检索/索引）
var EmbeddingSet = wire.NewSet(
	ProvideEmbedderOptional,
)

// RetrievalSet 检索引擎与索引器
var RetrievalSet = wire.NewSet(
	ProvideRetrievalEngine,
	ProvideRetrievalIndexer,
)

// IngestionSet 入库流水线提供者集合
var IngestionSet = wire.NewSet(
	ProvideLoader,
	ingestion.NewPipeline,
)

// ChatSet 问答服务提供者集合
var ChatSet = wire.NewSet(
	llm.NewFactory,
	ProvideChatServiceConfig,
	chat.NewService,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideAuthConfig,
	handler.NewHealthHandler,
	handler.NewAuthHandler,
	handler.NewChatHandler,
	handler.NewRetrievalHandler,
	handler.NewDocumentHandler,
	handler.NewJobHandler,
	handler.NewUserHandler,
	handler.NewTenantHandler,
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

// ProvideQdrantClientOptional 提供可选的 Qdrant 客户端
func ProvideQdrantClientOptional(ctx context.Context, cfg *config.Config) (*qdrant.Client, func(), error) {
	client, err := qdrant.NewClient(ctx, &cfg.Vector.Qdrant)
	if err != nil {
		logger.Warn(ctx, "qdrant not available, vector features disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideQdrantRepositoryOptional 提供可选的向量仓储
func ProvideQdrantRepositoryOptional(client *qdrant.Client, cfg *config.Config) *qdrant.Repository {
	if client == nil {
		return nil
	}
	return qdrant.NewRepository(client, cfg.Embedding.Dimension)
}

// ProvideRetrievalVectorRepositoryOptional 提供检索层向量依赖
func ProvideRetrievalVectorRepositoryOptional(repo *qdrant.Repository) retrieval.VectorRepository {
	if repo == nil {
		return nil
	}
	return qdrant.NewRetrievalVectorRepository(repo)
}

// ProvideEmbedderOptional 提供可选的 Embedder
func ProvideEmbedderOptional(cfg *config.Config) retrieval.Embedder {
	if strings.TrimSpace(cfg.Embedding.Endpoint) == "" {
		return nil
	}
	return embedding.NewOllamaEmbedder(cfg.Embedding)
}

// ProvideRetrievalEngine 提供检索引擎
func ProvideRetrievalEngine(cfg *config.Config, embedder retrieval.Embedder, vectorRepo retrieval.VectorRepository) *retrieval.Engine {
	return retrieval.NewEngine(embedder, vectorRepo, retrieval.EngineConfig{
		TopK:            cfg.Retrieval.TopK,
		MaxTopK:         cfg.Retrieval.MaxTopK,
		OverFetchFactor: cfg.Retrieval.OverFetchFactor,
		Alpha:           cfg.Retrieval.Alpha,
		ScoreCutoff:     cfg.Retrieval.ScoreCutoff,
	})
}

// ProvideRetrievalIndexer 提供文档索引器
func ProvideRetrievalIndexer(cfg *config.Config, embedder retrieval.Embedder, vectorRepo retrieval.VectorRepository) *retrieval.Indexer {
	return retrieval.NewIndexer(embedder, vectorRepo, retrieval.IndexerConfig{
		EmbeddingBatchSize: cfg.Embedding.BatchSize,
		ChunkSizeRunes:     cfg.Ingestion.ChunkSize,
		ChunkOverlapRunes:  cfg.Ingestion.ChunkOverlap,
		MinSectionRunes:    cfg.Ingestion.MinSectionChars,
	})
}

// ProvideLoader 提供文档装载器
func ProvideLoader(cfg *config.Config) *ingestion.Loader {
	return ingestion.NewLoader(cfg.Ingestion.LibraryDir)
}

// ProvideChatServiceConfig 提供问答服务配置
func ProvideChatServiceConfig(cfg *config.Config) chat.ServiceConfig {
	return chat.ServiceConfig{
		AnswerCacheEnabled: cfg.Features.AnswerCache.Enabled,
		AnswerCacheTTL:     cfg.Features.AnswerCache.TTL,
	}
}

// ProvideAuthConfig 提供认证配置
func ProvideAuthConfig(cfg *config.Config) middleware.AuthConfig {
	return middleware.AuthConfig{
		Secret:    cfg.Security.JWT.Secret,
		Issuer:    cfg.Security.JWT.Issuer,
		SkipPaths: middleware.DefaultSkipPaths,
		Enabled:   true,
	}
}
