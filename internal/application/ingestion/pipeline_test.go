package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fasa-rag-api/internal/application/retrieval"
	"fasa-rag-api/internal/domain/entity"
	"fasa-rag-api/internal/domain/repository"
)

type memDocRepo struct {
	docs     map[string]*entity.Document
	nextID   int
	archived []string
}

func newMemDocRepo() *memDocRepo {
	return &memDocRepo{docs: map[string]*entity.Document{}}
}

func (r *memDocRepo) Create(_ context.Context, doc *entity.Document) error {
	r.nextID++
	doc.ID = fmt.Sprintf("doc-%d", r.nextID)
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *memDocRepo) GetByID(_ context.Context, id string) (*entity.Document, error) {
	if d, ok := r.docs[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (r *memDocRepo) GetByNameAndVersion(_ context.Context, tenantID, docName, version string) (*entity.Document, error) {
	for _, d := range r.docs {
		if d.TenantID == tenantID && d.DocName == docName && d.Version == version {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memDocRepo) GetActiveByName(_ context.Context, tenantID, docName string) (*entity.Document, error) {
	for _, d := range r.docs {
		if d.TenantID == tenantID && d.DocName == docName && d.IsActive() {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memDocRepo) Update(_ context.Context, doc *entity.Document) error {
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *memDocRepo) Delete(_ context.Context, id string) error {
	delete(r.docs, id)
	return nil
}

func (r *memDocRepo) ListByTenant(context.Context, string, *repository.DocumentFilter, repository.Pagination) (*repository.PagedResult[*entity.Document], error) {
	return nil, nil
}

func (r *memDocRepo) ListVersions(_ context.Context, tenantID, docName string) ([]*entity.Document, error) {
	var out []*entity.Document
	for _, d := range r.docs {
		if d.TenantID == tenantID && d.DocName == docName {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memDocRepo) UpdateStatus(_ context.Context, id string, status entity.DocumentStatus) error {
	if d, ok := r.docs[id]; ok {
		d.Status = status
	}
	return nil
}

func (r *memDocRepo) ArchiveOtherVersions(_ context.Context, tenantID, docName, keepID string) error {
	for id, d := range r.docs {
		if d.TenantID == tenantID && d.DocName == docName && id != keepID {
			d.Status = entity.DocumentStatusArchived
			r.archived = append(r.archived, id)
		}
	}
	return nil
}

func (r *memDocRepo) GetByFileHash(_ context.Context, tenantID, fileHash string) (*entity.Document, error) {
	for _, d := range r.docs {
		if d.TenantID == tenantID && d.FileHash == fileHash {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memDocRepo) CountByTenant(context.Context, string, entity.DocumentStatus) (int64, error) {
	return int64(len(r.docs)), nil
}

type stubEmbedder struct{}

func (stubEmbedder) EmbedStrings(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0.1, 0.2}
	}
	return out, nil
}

type memVectorRepo struct {
	chunks  map[string][]*retrieval.VectorChunk // keyed by doc name
	deletes []string
}

func newMemVectorRepo() *memVectorRepo {
	return &memVectorRepo{chunks: map[string][]*retrieval.VectorChunk{}}
}

func (m *memVectorRepo) EnsureChunksCollection(context.Context) error { return nil }

func (m *memVectorRepo) SearchChunks(context.Context, *retrieval.VectorSearchParams) ([]*retrieval.VectorSearchResult, error) {
	return nil, nil
}

func (m *memVectorRepo) DeleteChunksByDocName(_ context.Context, _, docName string) error {
	m.deletes = append(m.deletes, docName)
	delete(m.chunks, docName)
	return nil
}

func (m *memVectorRepo) InsertChunks(_ context.Context, _ string, chunks []*retrieval.VectorChunk) error {
	for _, c := range chunks {
		m.chunks[c.DocName] = append(m.chunks[c.DocName], c)
	}
	return nil
}

func (m *memVectorRepo) SetDocumentActive(_ context.Context, _, docName string, active bool) error {
	for _, c := range m.chunks[docName] {
		c.Active = active
	}
	return nil
}

const sopBody = `1. Purpose
Defines the cleaning procedure for vessel V-100 in production suite A.
2. Scope
Applies to all cleaning operations performed on vessel V-100 by production staff.
5.2 Cleaning Agents
Only approved cleaning agents listed in appendix B may be used during the procedure.`

func newTestPipeline(t *testing.T) (*Pipeline, *memDocRepo, *memVectorRepo, string) {
	t.Helper()
	dir := t.TempDir()
	docs := newMemDocRepo()
	vectors := newMemVectorRepo()
	indexer := retrieval.NewIndexer(stubEmbedder{}, vectors, retrieval.IndexerConfig{MinSectionRunes: 10})
	return NewPipeline(NewLoader(dir), docs, indexer), docs, vectors, dir
}

func writeSOP(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestPipelineIngestFile(t *testing.T) {
	pipeline, docs, vectors, dir := newTestPipeline(t)
	path := writeSOP(t, dir, "SOP-021_CIP_v2.1.txt", sopBody)

	res, err := pipeline.IngestFile(context.Background(), "t1", path)
	require.NoError(t, err)
	require.NotNil(t, res.Document)
	assert.False(t, res.Skipped)
	assert.Equal(t, "SOP-021_CIP", res.Document.DocName)
	assert.Equal(t, "2.1", res.Document.Version)
	assert.Equal(t, 3, res.ChunksIndexed)
	assert.Equal(t, entity.DocumentStatusActive, res.Document.Status)
	require.NotNil(t, res.Document.IngestedAt)
	assert.Equal(t, []string{"1 Purpose", "2 Scope", "5.2 Cleaning Agents"}, []string(res.Document.SectionTitles))

	stored, err := docs.GetByID(context.Background(), res.Document.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 3, stored.ChunkCount)

	assert.Len(t, vectors.chunks["SOP-021_CIP"], 3)
}

func TestPipelineIngestFileSkipsUnchanged(t *testing.T) {
	pipeline, _, vectors, dir := newTestPipeline(t)
	path := writeSOP(t, dir, "SOP-021_CIP_v2.1.txt", sopBody)

	first, err := pipeline.IngestFile(context.Background(), "t1", path)
	require.NoError(t, err)
	require.False(t, first.Skipped)

	second, err := pipeline.IngestFile(context.Background(), "t1", path)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, first.Document.ID, second.Document.ID)
	// 未重复写向量库
	assert.Len(t, vectors.deletes, 1)
}

func TestPipelineNewVersionArchivesOld(t *testing.T) {
	pipeline, docs, vectors, dir := newTestPipeline(t)

	oldPath := writeSOP(t, dir, "SOP-021_CIP_v2.0.txt", sopBody)
	old, err := pipeline.IngestFile(context.Background(), "t1", oldPath)
	require.NoError(t, err)

	newPath := writeSOP(t, dir, "SOP-021_CIP_v2.1.txt", sopBody+"\n6. Records\nAll cleaning records are retained for five years per site policy.")
	latest, err := pipeline.IngestFile(context.Background(), "t1", newPath)
	require.NoError(t, err)

	assert.NotEqual(t, old.Document.ID, latest.Document.ID)

	// 旧版本被归档，新版本活跃
	oldStored, _ := docs.GetByID(context.Background(), old.Document.ID)
	assert.Equal(t, entity.DocumentStatusArchived, oldStored.Status)
	newStored, _ := docs.GetByID(context.Background(), latest.Document.ID)
	assert.Equal(t, entity.DocumentStatusActive, newStored.Status)

	// 向量库里只有新版本的分块
	for _, c := range vectors.chunks["SOP-021_CIP"] {
		assert.Equal(t, "2.1", c.Version)
	}
}

func TestPipelineRefusesOlderThanActive(t *testing.T) {
	pipeline, docs, _, dir := newTestPipeline(t)

	newPath := writeSOP(t, dir, "SOP-021_CIP_v2.10.txt", sopBody)
	latest, err := pipeline.IngestFile(context.Background(), "t1", newPath)
	require.NoError(t, err)

	// "2.9" < "2.10"，旧版文件不得把新版挤下线
	oldPath := writeSOP(t, dir, "SOP-021_CIP_v2.9.txt", sopBody+"\nstale content marker")
	_, err = pipeline.IngestFile(context.Background(), "t1", oldPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer version")

	stored, _ := docs.GetByID(context.Background(), latest.Document.ID)
	assert.Equal(t, entity.DocumentStatusActive, stored.Status)
	assert.Equal(t, "2.10", stored.Version)
}

func TestPipelineIngestLibrary(t *testing.T) {
	pipeline, _, _, dir := newTestPipeline(t)
	writeSOP(t, dir, "SOP-007_Gowning_v1.0.txt", sopBody)
	writeSOP(t, dir, "SOP-021_CIP_v2.1.txt", sopBody)
	writeSOP(t, dir, "notes.json", "{}") // 不支持的类型被跳过

	results, err := pipeline.IngestLibrary(context.Background(), "t1")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestPipelineIngestLibraryPartialFailure(t *testing.T) {
	pipeline, _, _, dir := newTestPipeline(t)
	writeSOP(t, dir, "SOP-021_CIP_v2.1.txt", sopBody)
	writeSOP(t, dir, "broken_v1.pdf", "not a real pdf")

	results, err := pipeline.IngestLibrary(context.Background(), "t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 documents failed")
	assert.Len(t, results, 1)
}

func TestPipelineRemoveDocument(t *testing.T) {
	pipeline, docs, vectors, dir := newTestPipeline(t)
	path := writeSOP(t, dir, "SOP-021_CIP_v2.1.txt", sopBody)

	res, err := pipeline.IngestFile(context.Background(), "t1", path)
	require.NoError(t, err)

	require.NoError(t, pipeline.RemoveDocument(context.Background(), "t1", res.Document.ID))

	gone, _ := docs.GetByID(context.Background(), res.Document.ID)
	assert.Nil(t, gone)
	assert.Empty(t, vectors.chunks["SOP-021_CIP"])
}

func TestPipelineSetDocumentStatus(t *testing.T) {
	pipeline, _, vectors, dir := newTestPipeline(t)
	path := writeSOP(t, dir, "SOP-021_CIP_v2.1.txt", sopBody)

	res, err := pipeline.IngestFile(context.Background(), "t1", path)
	require.NoError(t, err)

	doc, err := pipeline.SetDocumentStatus(context.Background(), "t1", res.Document.ID, entity.DocumentStatusArchived)
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusArchived, doc.Status)
	for _, c := range vectors.chunks["SOP-021_CIP"] {
		assert.False(t, c.Active)
	}

	doc, err = pipeline.SetDocumentStatus(context.Background(), "t1", res.Document.ID, entity.DocumentStatusActive)
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusActive, doc.Status)

	_, err = pipeline.SetDocumentStatus(context.Background(), "t1", res.Document.ID, entity.DocumentStatus("bogus"))
	assert.Error(t, err)
}

func TestPipelineIngestFileValidation(t *testing.T) {
	pipeline, _, _, _ := newTestPipeline(t)

	_, err := pipeline.IngestFile(context.Background(), "", "x.txt")
	assert.Error(t, err)

	_, err = pipeline.IngestFile(context.Background(), "t1", "")
	assert.Error(t, err)

	_, err = pipeline.IngestFile(context.Background(), "t1", "missing.txt")
	assert.Error(t, err)
}
