package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fasa-rag-api/internal/domain/entity"
)

func testDoc() *entity.Document {
	doc := entity.NewDocument("t1", "SOP-021_CIP", "2.1", "SOP-021_CIP_v2.1.pdf")
	doc.ID = "doc-1"
	return doc
}

func TestIndexerIndexDocument(t *testing.T) {
	embedder := &fakeEmbedder{}
	repo := &fakeVectorRepo{}
	indexer := NewIndexer(embedder, repo, IndexerConfig{MinSectionRunes: 10, ChunkSizeRunes: 1024})

	sections := []Section{
		{Number: "1", Title: "Purpose", Page: 1, Text: "Defines the cleaning procedure for vessel V-100."},
		{Number: "2", Title: "Tiny", Page: 1, Text: "too short"},
		{Number: "5.2", Title: "Cleaning Agents", Page: 4, Text: "Only approved agents may be used during cleaning."},
	}

	n, err := indexer.IndexDocument(context.Background(), "t1", testDoc(), sections)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// 写入前先删除同名文档旧分块
	assert.Equal(t, []string{"SOP-021_CIP"}, repo.deleted)

	require.Len(t, repo.inserted, 2)
	first := repo.inserted[0]
	assert.Equal(t, "t1", first.TenantID)
	assert.Equal(t, "doc-1", first.DocumentID)
	assert.Equal(t, "SOP-021_CIP", first.DocName)
	assert.Equal(t, "2.1", first.Version)
	assert.Equal(t, "1", first.SectionNumber)
	assert.Equal(t, "Purpose", first.SectionTitle)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, 0, first.ChunkIndex)
	assert.True(t, first.Active)
	assert.NotEmpty(t, first.ID)
	assert.Len(t, first.Vector, 3)

	// 向量化输入带章节标题前缀，存储文本不带
	require.Len(t, embedder.calls, 1)
	assert.True(t, strings.HasPrefix(embedder.calls[0][0], "Section: Purpose\n"))
	assert.Equal(t, "Defines the cleaning procedure for vessel V-100.", first.TextContent)
}

func TestIndexerSplitsLongSections(t *testing.T) {
	repo := &fakeVectorRepo{}
	indexer := NewIndexer(&fakeEmbedder{}, repo, IndexerConfig{
		MinSectionRunes:   10,
		ChunkSizeRunes:    50,
		ChunkOverlapRunes: 10,
		// 覆盖多批 embedding 调用
		EmbeddingBatchSize: 2,
	})

	sections := []Section{
		{Number: "6", Title: "Procedure", Page: 2, Text: strings.Repeat("step detail ", 30)},
	}

	n, err := indexer.IndexDocument(context.Background(), "t1", testDoc(), sections)
	require.NoError(t, err)
	assert.Greater(t, n, 1)

	for i, c := range repo.inserted {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, "6", c.SectionNumber)
	}
}

func TestIndexerEmptyDocumentStillDeletesOldChunks(t *testing.T) {
	repo := &fakeVectorRepo{}
	indexer := NewIndexer(&fakeEmbedder{}, repo, IndexerConfig{})

	n, err := indexer.IndexDocument(context.Background(), "t1", testDoc(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []string{"SOP-021_CIP"}, repo.deleted)
	assert.Empty(t, repo.inserted)
}

func TestIndexerValidation(t *testing.T) {
	indexer := NewIndexer(&fakeEmbedder{}, &fakeVectorRepo{}, IndexerConfig{})

	_, err := indexer.IndexDocument(context.Background(), "", testDoc(), nil)
	assert.Error(t, err)

	_, err = indexer.IndexDocument(context.Background(), "t1", nil, nil)
	assert.Error(t, err)

	doc := testDoc()
	doc.ID = ""
	_, err = indexer.IndexDocument(context.Background(), "t1", doc, nil)
	assert.Error(t, err)
}

func TestIndexerDisabled(t *testing.T) {
	indexer := NewIndexer(nil, nil, IndexerConfig{})
	_, err := indexer.IndexDocument(context.Background(), "t1", testDoc(), nil)
	assert.ErrorIs(t, err, ErrVectorDisabled)

	err = indexer.RemoveDocument(context.Background(), "t1", "SOP-021_CIP")
	assert.ErrorIs(t, err, ErrVectorDisabled)
}

func TestIndexerSetDocumentActive(t *testing.T) {
	repo := &fakeVectorRepo{}
	indexer := NewIndexer(&fakeEmbedder{}, repo, IndexerConfig{})

	require.NoError(t, indexer.SetDocumentActive(context.Background(), "t1", "SOP-021_CIP", false))
	assert.Error(t, indexer.SetDocumentActive(context.Background(), "", "SOP-021_CIP", false))
}
