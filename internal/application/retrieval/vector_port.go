package retrieval

import "context"

// Embedder 定义应用层对文本向量化能力的最小依赖（port）。
// 由基础设施层提供具体实现（例如 Ollama）。
type Embedder interface {
	EmbedStrings(ctx context.Context, texts []string) ([][]float64, error)
}

// VectorRepository 定义应用层对“向量存储/检索”的最小依赖（port）。
// 由基础设施层提供具体实现（例如 Qdrant）。
type VectorRepository interface {
	EnsureChunksCollection(ctx context.Context) error
	SearchChunks(ctx context.Context, params *VectorSearchParams) ([]*VectorSearchResult, error)
	DeleteChunksByDocName(ctx context.Context, tenantID, docName string) error
	InsertChunks(ctx context.Context, tenantID string, chunks []*VectorChunk) error
	// SetDocumentActive 切换某文档全部分块的检索可见性
	SetDocumentActive(ctx context.Context, tenantID, docName string, active bool) error
}

// VectorSearchParams 向量检索参数。
type VectorSearchParams struct {
	TenantID    string
	QueryVector []float32
	TopK        int
	DocNames    []string
}

// VectorSearchResult 向量检索结果。Score 为余弦相似度。
type VectorSearchResult struct {
	ID            string
	Score         float32
	TextContent   string
	DocumentID    string
	DocName       string
	Version       string
	Page          int
	SectionNumber string
	SectionTitle  string
	ChunkIndex    int
}

// VectorChunk 写入向量库的文档分块。
type VectorChunk struct {
	ID            string
	TenantID      string
	DocumentID    string
	DocName       string
	Version       string
	Page          int
	SectionNumber string
	SectionTitle  string
	ChunkIndex    int
	TextContent   string
	Active        bool
	Vector        []float32
}
