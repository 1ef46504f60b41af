// Package main 异步入库执行器入口（ingest-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fasa-rag-api/internal/application/ingestion"
	"fasa-rag-api/internal/application/retrieval"
	"fasa-rag-api/internal/config"
	"fasa-rag-api/internal/infrastructure/embedding"
	"fasa-rag-api/internal/infrastructure/messaging"
	"fasa-rag-api/internal/infrastructure/persistence/postgres"
	"fasa-rag-api/internal/infrastructure/persistence/qdrant"
	"fasa-rag-api/internal/infrastructure/persistence/redis"
	"fasa-rag-api/pkg/logger"
	"fasa-rag-api/pkg/tracer"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "ingest-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to init postgres", err)
	}
	defer func() { _ = pgClient.Close() }()

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to init redis", err)
	}
	defer func() { _ = redisClient.Close() }()

	// 入库是本进程的唯一职责，向量库与 Embedding 不可用时直接退出
	qdrantClient, err := qdrant.NewClient(ctx, &cfg.Vector.Qdrant)
	if err != nil {
		logger.Fatal(ctx, "failed to init qdrant", err)
	}
	defer func() { _ = qdrantClient.Close() }()

	if cfg.Embedding.Endpoint == "" {
		logger.Fatal(ctx, "embedding endpoint is required for ingest-worker", nil)
	}
	embedder := embedding.NewOllamaEmbedder(cfg.Embedding)

	vectorRepo := qdrant.NewRetrievalVectorRepository(qdrant.NewRepository(qdrantClient, cfg.Embedding.Dimension))
	indexer := retrieval.NewIndexer(embedder, vectorRepo, retrieval.IndexerConfig{
		EmbeddingBatchSize: cfg.Embedding.BatchSize,
		ChunkSizeRunes:     cfg.Ingestion.ChunkSize,
		ChunkOverlapRunes:  cfg.Ingestion.ChunkOverlap,
		MinSectionRunes:    cfg.Ingestion.MinSectionChars,
	})

	txMgr := postgres.NewTxManager(pgClient)
	tenantCtx := postgres.NewTenantContext(pgClient)
	jobRepo := postgres.NewJobRepository(pgClient)
	docRepo := postgres.NewDocumentRepository(pgClient)
	cache := redis.NewCache(redisClient)

	loader := ingestion.NewLoader(cfg.Ingestion.LibraryDir)
	pipeline := ingestion.NewPipeline(loader, docRepo, indexer)

	consumer := messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamSOPIngest,
		Group:         messaging.ConsumerGroupIngestWorker,
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  cfg.Messaging.RedisStream.BlockTimeout,
		ClaimInterval: cfg.Messaging.RedisStream.ClaimInterval,
		RetryLimit:    cfg.Messaging.RedisStream.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    cfg.Messaging.RedisStream.RetryBackoff.Initial,
			Max:        cfg.Messaging.RedisStream.RetryBackoff.Max,
			Multiplier: cfg.Messaging.RedisStream.RetryBackoff.Multiplier,
		},
	})

	runner := ingestion.NewJobRunner(txMgr, tenantCtx, jobRepo, pipeline)

	consumer.RegisterHandler("sop_ingest", func(msgCtx context.Context, msg *messaging.Message) error {
		var payload messaging.IngestJobMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}

		if err := runner.Run(msgCtx, payload.JobID, payload.TenantID, payload.Filename); err != nil {
			return err
		}

		// 入库成功后失效该租户的答案缓存
		if err := cache.InvalidateAnswers(msgCtx, payload.TenantID); err != nil {
			logger.Warn(msgCtx, "failed to invalidate answer cache", "error", err, "tenant_id", payload.TenantID)
		}
		return nil
	})

	// 审计流由本进程落盘，网关只负责发布
	auditConsumer := messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamAuditLog,
		Group:         messaging.ConsumerGroupAuditWriter,
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  cfg.Messaging.RedisStream.BlockTimeout,
		ClaimInterval: cfg.Messaging.RedisStream.ClaimInterval,
		RetryLimit:    cfg.Messaging.RedisStream.RetryLimit,
	})
	auditConsumer.RegisterHandler("audit", messaging.AuditLogHandler())

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}
	go consumer.MonitorDLQ(ctx, 100)

	if err := auditConsumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start audit consumer", err)
	}

	log := logger.FromContext(ctx)
	log.Info("ingest-worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("ingest-worker shutting down")
	consumer.Stop()
	auditConsumer.Stop()
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
