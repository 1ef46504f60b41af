package qdrant

import (
	"context"

	"fasa-rag-api/internal/application/retrieval"
)

// RetrievalVectorRepository 把 Repository 适配为检索层的 VectorRepository port。
type RetrievalVectorRepository struct {
	repo *Repository
}

// NewRetrievalVectorRepository 创建检索适配器
func NewRetrievalVectorRepository(repo *Repository) *RetrievalVectorRepository {
	return &RetrievalVectorRepository{repo: repo}
}

var _ retrieval.VectorRepository = (*RetrievalVectorRepository)(nil)

func (r *RetrievalVectorRepository) EnsureChunksCollection(ctx context.Context) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	return r.repo.EnsureChunksCollection(ctx)
}

func (r *RetrievalVectorRepository) SearchChunks(ctx context.Context, params *retrieval.VectorSearchParams) ([]*retrieval.VectorSearchResult, error) {
	if r == nil || r.repo == nil {
		return nil, retrieval.ErrVectorDisabled
	}
	if params == nil {
		return nil, nil
	}

	out, err := r.repo.SearchChunks(ctx, &SearchParams{
		TenantID:    params.TenantID,
		QueryVector: params.QueryVector,
		TopK:        params.TopK,
		DocNames:    params.DocNames,
	})
	if err != nil {
		return nil, err
	}

	results := make([]*retrieval.VectorSearchResult, 0, len(out))
	for i := range out {
		v := out[i]
		if v == nil {
			continue
		}
		results = append(results, &retrieval.VectorSearchResult{
			ID:            v.ID,
			Score:         v.Score,
			TextContent:   v.TextContent,
			DocumentID:    v.DocumentID,
			DocName:       v.DocName,
			Version:       v.Version,
			Page:          v.Page,
			SectionNumber: v.SectionNumber,
			SectionTitle:  v.SectionTitle,
			ChunkIndex:    v.ChunkIndex,
		})
	}
	return results, nil
}

func (r *RetrievalVectorRepository) DeleteChunksByDocName(ctx context.Context, tenantID, docName string) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	return r.repo.DeleteChunksByDocName(ctx, tenantID, docName)
}

func (r *RetrievalVectorRepository) InsertChunks(ctx context.Context, tenantID string, chunks []*retrieval.VectorChunk) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	if len(chunks) == 0 {
		return nil
	}

	converted := make([]*Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c == nil {
			continue
		}
		converted = append(converted, &Chunk{
			ID:            c.ID,
			DocumentID:    c.DocumentID,
			DocName:       c.DocName,
			Version:       c.Version,
			Page:          c.Page,
			SectionNumber: c.SectionNumber,
			SectionTitle:  c.SectionTitle,
			ChunkIndex:    c.ChunkIndex,
			TextContent:   c.TextContent,
			Active:        c.Active,
			Vector:        c.Vector,
		})
	}
	return r.repo.InsertChunks(ctx, tenantID, converted)
}

func (r *RetrievalVectorRepository) SetDocumentActive(ctx context.Context, tenantID, docName string, active bool) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	return r.repo.SetDocumentActive(ctx, tenantID, docName, active)
}
