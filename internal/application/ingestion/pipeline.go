package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"fasa-rag-api/internal/application/retrieval"
	"fasa-rag-api/internal/domain/entity"
	"fasa-rag-api/internal/domain/repository"
	"fasa-rag-api/pkg/logger"
	"fasa-rag-api/pkg/metrics"
	"fasa-rag-api/pkg/tracer"
)

// Result 单个文档的入库结果。
type Result struct {
	Document      *entity.Document
	ChunksIndexed int
	// Skipped 表示文件内容与库中活跃版本一致，未重新入库
	Skipped bool
}

// Pipeline 文档入库流水线：装载 -> 清洗 -> 分节 -> 切块向量化 -> 版本归档。
type Pipeline struct {
	loader  *Loader
	docs    repository.DocumentRepository
	indexer *retrieval.Indexer
}

// NewPipeline 创建入库流水线
func NewPipeline(loader *Loader, docs repository.DocumentRepository, indexer *retrieval.Indexer) *Pipeline {
	return &Pipeline{
		loader:  loader,
		docs:    docs,
		indexer: indexer,
	}
}

// IngestFile 入库单个文件。
// 同名文档的旧版本在新版本写入后会被归档，保证检索只命中一个版本。
func (p *Pipeline) IngestFile(ctx context.Context, tenantID, path string) (*Result, error) {
	if p == nil || p.loader == nil || p.docs == nil || p.indexer == nil {
		return nil, fmt.Errorf("pipeline not configured")
	}
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("path is required")
	}

	ctx, span := tracer.Start(ctx, "ingestion.IngestFile")
	defer span.End()
	span.SetAttributes(attribute.String("ingest.path", path))

	start := time.Now()

	raw, err := p.loader.Load(path)
	if err != nil {
		metrics.IngestDocumentsTotal.WithLabelValues(tenantID, "error").Inc()
		return nil, err
	}

	// 内容未变化的文件不重复入库
	if existing, err := p.docs.GetByFileHash(ctx, tenantID, raw.FileHash); err == nil && existing != nil && existing.IsActive() {
		logger.Info(ctx, "document unchanged, skipping ingest",
			"doc_name", existing.DocName, "version", existing.Version)
		return &Result{Document: existing, Skipped: true}, nil
	}

	docName, version := ParseFilename(raw.Filename)

	// 已有更新的活跃版本时拒绝入库，避免旧版文件把新版挤下线
	if active, err := p.docs.GetActiveByName(ctx, tenantID, docName); err == nil && active != nil {
		if CompareVersions(active.Version, version) > 0 {
			metrics.IngestDocumentsTotal.WithLabelValues(tenantID, "error").Inc()
			return nil, fmt.Errorf("newer version %s of %s is already active, refusing to ingest %s",
				active.Version, docName, version)
		}
	}

	cleaned := make([]PageText, 0, len(raw.Pages))
	for _, page := range raw.Pages {
		cleaned = append(cleaned, PageText{
			Number: page.Number,
			Text:   CleanText(page.Text),
		})
	}
	sections := SplitSections(cleaned)

	doc, err := p.docs.GetByNameAndVersion(ctx, tenantID, docName, version)
	if err != nil {
		metrics.IngestDocumentsTotal.WithLabelValues(tenantID, "error").Inc()
		return nil, err
	}
	isNew := doc == nil
	if isNew {
		doc = entity.NewDocument(tenantID, docName, version, raw.Filename)
	} else {
		doc.Filename = raw.Filename
		doc.Activate()
	}
	doc.FileHash = raw.FileHash
	if isNew {
		if err := p.docs.Create(ctx, doc); err != nil {
			metrics.IngestDocumentsTotal.WithLabelValues(tenantID, "error").Inc()
			return nil, err
		}
	}

	chunkCount, err := p.indexer.IndexDocument(ctx, tenantID, doc, sections)
	if err != nil {
		metrics.IngestDocumentsTotal.WithLabelValues(tenantID, "error").Inc()
		return nil, err
	}

	doc.MarkIngested(raw.PageCount, chunkCount, SectionTitles(sections))
	if err := p.docs.Update(ctx, doc); err != nil {
		metrics.IngestDocumentsTotal.WithLabelValues(tenantID, "error").Inc()
		return nil, err
	}

	// 归档同名文档的其他版本
	if err := p.docs.ArchiveOtherVersions(ctx, tenantID, docName, doc.ID); err != nil {
		metrics.IngestDocumentsTotal.WithLabelValues(tenantID, "error").Inc()
		return nil, err
	}

	metrics.IngestDocumentsTotal.WithLabelValues(tenantID, "success").Inc()
	metrics.IngestDuration.WithLabelValues(tenantID).Observe(time.Since(start).Seconds())
	metrics.IngestChunksPerDocument.WithLabelValues(tenantID).Observe(float64(chunkCount))

	logger.Info(ctx, "document ingested",
		"doc_name", docName,
		"version", version,
		"pages", raw.PageCount,
		"sections", len(sections),
		"chunks", chunkCount,
		"duration_ms", time.Since(start).Milliseconds())

	return &Result{Document: doc, ChunksIndexed: chunkCount}, nil
}

// IngestLibrary 扫描库目录并逐个入库，单个文件失败不中断整体流程。
func (p *Pipeline) IngestLibrary(ctx context.Context, tenantID string) ([]*Result, error) {
	paths, err := p.loader.ListLibrary()
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(paths))
	var failed int
	for _, path := range paths {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		res, err := p.IngestFile(ctx, tenantID, path)
		if err != nil {
			failed++
			logger.Error(ctx, "failed to ingest document", err, "path", path)
			continue
		}
		results = append(results, res)
	}

	if failed > 0 {
		return results, fmt.Errorf("%d of %d documents failed to ingest", failed, len(paths))
	}
	return results, nil
}

// RemoveDocument 删除文档：归档数据库记录并清除全部向量分块。
func (p *Pipeline) RemoveDocument(ctx context.Context, tenantID, documentID string) error {
	doc, err := p.docs.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("document %s not found", documentID)
	}

	if err := p.indexer.RemoveDocument(ctx, tenantID, doc.DocName); err != nil {
		return err
	}
	return p.docs.Delete(ctx, documentID)
}

// SetDocumentStatus 切换文档状态并同步向量分块的检索可见性。
func (p *Pipeline) SetDocumentStatus(ctx context.Context, tenantID, documentID string, status entity.DocumentStatus) (*entity.Document, error) {
	doc, err := p.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document %s not found", documentID)
	}

	switch status {
	case entity.DocumentStatusActive:
		doc.Activate()
	case entity.DocumentStatusArchived:
		doc.Archive()
	default:
		return nil, fmt.Errorf("unsupported document status: %s", status)
	}

	if err := p.indexer.SetDocumentActive(ctx, tenantID, doc.DocName, doc.IsActive()); err != nil {
		return nil, err
	}
	if err := p.docs.Update(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}
