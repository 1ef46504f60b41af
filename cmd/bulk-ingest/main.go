// Package main SOP 文档批量入库命令行工具
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"fasa-rag-api/internal/application/ingestion"
	"fasa-rag-api/internal/application/retrieval"
	"fasa-rag-api/internal/config"
	"fasa-rag-api/internal/infrastructure/embedding"
	"fasa-rag-api/internal/infrastructure/persistence/postgres"
	"fasa-rag-api/internal/infrastructure/persistence/qdrant"
	"fasa-rag-api/internal/infrastructure/persistence/redis"
	"fasa-rag-api/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	var (
		tenantID = flag.String("tenant", os.Getenv("TENANT_ID"), "tenant ID to ingest documents for")
		path     = flag.String("path", "", "single document path relative to the library dir (empty = whole library)")
		workers  = flag.Int("workers", 4, "max concurrent document ingestions")
	)
	flag.Parse()

	if *tenantID == "" {
		log.Fatal("tenant ID is required (use -tenant or TENANT_ID)")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		log.Fatalf("failed to init postgres: %v", err)
	}
	defer func() { _ = pgClient.Close() }()

	qdrantClient, err := qdrant.NewClient(ctx, &cfg.Vector.Qdrant)
	if err != nil {
		log.Fatalf("failed to init qdrant: %v", err)
	}
	defer func() { _ = qdrantClient.Close() }()

	if cfg.Embedding.Endpoint == "" {
		log.Fatal("embedding endpoint is required for ingestion")
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
	docRepo := postgres.NewDocumentRepository(pgClient)

	loader := ingestion.NewLoader(cfg.Ingestion.LibraryDir)
	pipeline := ingestion.NewPipeline(loader, docRepo, indexer)

	var paths []string
	if *path != "" {
		p := *path
		if !filepath.IsAbs(p) {
			p = filepath.Join(cfg.Ingestion.LibraryDir, p)
		}
		paths = []string{p}
	} else {
		paths, err = loader.ListLibrary()
		if err != nil {
			log.Fatalf("failed to list library: %v", err)
		}
	}
	if len(paths) == 0 {
		fmt.Printf("No documents found in %s.\n", cfg.Ingestion.LibraryDir)
		return
	}

	fmt.Printf("Ingesting %d document(s) for tenant %s...\n", len(paths), *tenantID)

	// 每个文件独立事务，限并发批量入库
	var (
		mu      sync.Mutex
		results []*ingestion.Result
		failed  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*workers)
	for _, p := range paths {
		g.Go(func() error {
			var res *ingestion.Result
			err := txMgr.WithTransaction(gctx, func(txCtx context.Context) error {
				if err := tenantCtx.SetTenant(txCtx, *tenantID); err != nil {
					return err
				}
				var err error
				res, err = pipeline.IngestFile(txCtx, *tenantID, p)
				return err
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				fmt.Printf("  failed    %s: %v\n", p, err)
				return nil // 单个文件失败不中断整体流程
			}
			results = append(results, res)
			if res.Skipped {
				fmt.Printf("  skipped   %s (already indexed)\n", res.Document.Filename)
			} else {
				fmt.Printf("  indexed   %s (%d chunks)\n", res.Document.Filename, res.ChunksIndexed)
			}
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, r := range results {
		total += r.ChunksIndexed
	}
	fmt.Printf("Done: %d document(s), %d chunk(s) indexed.\n", len(results), total)

	// 答案缓存基于旧文档内容，入库完成后失效
	if redisClient, err := redis.NewClient(&cfg.Cache.Redis); err == nil {
		if err := redis.NewCache(redisClient).InvalidateAnswers(ctx, *tenantID); err != nil {
			fmt.Printf("warning: failed to invalidate answer cache: %v\n", err)
		}
		_ = redisClient.Close()
	}

	if failed > 0 {
		log.Fatalf("%d of %d documents failed to ingest", failed, len(paths))
	}
}
