package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"fasa-rag-api/internal/domain/entity"
)

const (
	defaultChunkSizeRunes    = 1024
	defaultChunkOverlapRunes = 200
	defaultMinSectionRunes   = 50
	defaultEmbeddingBatch    = 32
)

// IndexerConfig 索引器配置。
type IndexerConfig struct {
	EmbeddingBatchSize int
	ChunkSizeRunes     int
	ChunkOverlapRunes  int
	MinSectionRunes    int
}

func (c *IndexerConfig) applyDefaults() {
	if c.EmbeddingBatchSize <= 0 {
		c.EmbeddingBatchSize = defaultEmbeddingBatch
	}
	if c.ChunkSizeRunes <= 0 {
		c.ChunkSizeRunes = defaultChunkSizeRunes
	}
	if c.ChunkOverlapRunes < 0 {
		c.ChunkOverlapRunes = defaultChunkOverlapRunes
	}
	if c.MinSectionRunes <= 0 {
		c.MinSectionRunes = defaultMinSectionRunes
	}
}

// Indexer 负责把清洗后的文档章节切块、向量化并写入向量库。
type Indexer struct {
	embedder Embedder
	vector   VectorRepository
	cfg      IndexerConfig
}

// NewIndexer 创建索引器
func NewIndexer(embedder Embedder, vectorRepo VectorRepository, cfg IndexerConfig) *Indexer {
	cfg.applyDefaults()
	return &Indexer{
		embedder: embedder,
		vector:   vectorRepo,
		cfg:      cfg,
	}
}

func (i *Indexer) Enabled() bool {
	return i != nil && i.embedder != nil && i.vector != nil
}

func (i *Indexer) ensureReady(ctx context.Context) error {
	if i == nil || i.vector == nil {
		return ErrVectorDisabled
	}
	return i.vector.EnsureChunksCollection(ctx)
}

// IndexDocument 索引一个文档版本。
// 写入前会删除同名文档的全部旧分块，保证任一时刻同名 SOP 只有一个版本可被召回。
// 返回写入的分块数。
func (i *Indexer) IndexDocument(ctx context.Context, tenantID string, doc *entity.Document, sections []Section) (int, error) {
	if strings.TrimSpace(tenantID) == "" {
		return 0, fmt.Errorf("tenant_id is required")
	}
	if doc == nil {
		return 0, fmt.Errorf("document is nil")
	}
	if strings.TrimSpace(doc.ID) == "" {
		return 0, fmt.Errorf("document.id is required")
	}
	if strings.TrimSpace(doc.DocName) == "" {
		return 0, fmt.Errorf("document.doc_name is required")
	}
	if !i.Enabled() {
		return 0, ErrVectorDisabled
	}
	if err := i.ensureReady(ctx); err != nil {
		return 0, err
	}

	// 先删后写：清掉同名文档（含旧版本）的所有分块
	if err := i.vector.DeleteChunksByDocName(ctx, tenantID, doc.DocName); err != nil {
		return 0, err
	}
	if len(sections) == 0 {
		// 空文档不写索引；但会先执行删除以避免"旧分块残留"。
		return 0, nil
	}

	embedInputs := make([]string, 0, len(sections))
	chunks := make([]*VectorChunk, 0, len(sections))

	for _, sec := range sections {
		text := strings.TrimSpace(sec.Text)
		if len([]rune(text)) < i.cfg.MinSectionRunes {
			continue
		}

		pieces := splitByRunes(text, i.cfg.ChunkSizeRunes, i.cfg.ChunkOverlapRunes)
		for idx, piece := range pieces {
			embedText := piece
			if t := strings.TrimSpace(sec.Title); t != "" {
				// 前缀语言与语料一致，避免干扰向量相似度
				embedText = "Section: " + t + "\n" + embedText
			}

			embedInputs = append(embedInputs, embedText)
			chunks = append(chunks, &VectorChunk{
				ID:            uuid.NewString(),
				TenantID:      tenantID,
				DocumentID:    doc.ID,
				DocName:       doc.DocName,
				Version:       doc.Version,
				Page:          sec.Page,
				SectionNumber: strings.TrimSpace(sec.Number),
				SectionTitle:  strings.TrimSpace(sec.Title),
				ChunkIndex:    idx,
				TextContent:   piece,
				Active:        doc.IsActive(),
			})
		}
	}

	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := i.embedBatch(ctx, embedInputs)
	if err != nil {
		return 0, err
	}
	for idx := range chunks {
		chunks[idx].Vector = vectors[idx]
	}
	if err := i.vector.InsertChunks(ctx, tenantID, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// RemoveDocument 删除某文档的全部分块。
func (i *Indexer) RemoveDocument(ctx context.Context, tenantID, docName string) error {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(docName) == "" {
		return fmt.Errorf("tenant_id and doc_name are required")
	}
	if i == nil || i.vector == nil {
		return ErrVectorDisabled
	}
	if err := i.ensureReady(ctx); err != nil {
		return err
	}
	return i.vector.DeleteChunksByDocName(ctx, tenantID, docName)
}

// SetDocumentActive 切换某文档分块的检索可见性（归档/恢复）。
func (i *Indexer) SetDocumentActive(ctx context.Context, tenantID, docName string, active bool) error {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(docName) == "" {
		return fmt.Errorf("tenant_id and doc_name are required")
	}
	if i == nil || i.vector == nil {
		return ErrVectorDisabled
	}
	return i.vector.SetDocumentActive(ctx, tenantID, docName, active)
}

func (i *Indexer) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if i == nil || i.embedder == nil {
		return nil, ErrVectorDisabled
	}
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += i.cfg.EmbeddingBatchSize {
		end := start + i.cfg.EmbeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		v64, err := i.embedder.EmbedStrings(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		for _, vec := range v64 {
			f32 := make([]float32, 0, len(vec))
			for _, x := range vec {
				f32 = append(f32, float32(x))
			}
			out = append(out, f32)
		}
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(out), len(texts))
	}
	return out, nil
}
