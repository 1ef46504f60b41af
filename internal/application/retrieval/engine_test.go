package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	err   error
	calls [][]string
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string) ([][]float64, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0.1, 0.2, 0.3}
	}
	return out, nil
}

type fakeVectorRepo struct {
	results    []*VectorSearchResult
	searchErr  error
	ensureErr  error
	lastParams *VectorSearchParams
	inserted   []*VectorChunk
	deleted    []string
}

func (f *fakeVectorRepo) EnsureChunksCollection(context.Context) error { return f.ensureErr }

func (f *fakeVectorRepo) SearchChunks(_ context.Context, params *VectorSearchParams) ([]*VectorSearchResult, error) {
	f.lastParams = params
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

func (f *fakeVectorRepo) DeleteChunksByDocName(_ context.Context, _, docName string) error {
	f.deleted = append(f.deleted, docName)
	return nil
}

func (f *fakeVectorRepo) InsertChunks(_ context.Context, _ string, chunks []*VectorChunk) error {
	f.inserted = append(f.inserted, chunks...)
	return nil
}

func (f *fakeVectorRepo) SetDocumentActive(context.Context, string, string, bool) error {
	return nil
}

func hit(id string, score float32, text string) *VectorSearchResult {
	return &VectorSearchResult{
		ID:          id,
		Score:       score,
		TextContent: text,
		DocName:     "SOP-021",
		Version:     "2.1",
		Page:        1,
	}
}

func TestEngineSearchHybridScoring(t *testing.T) {
	repo := &fakeVectorRepo{results: []*VectorSearchResult{
		// dense 0.9, keyword 1.0 -> 0.95
		hit("a", 0.9, "approved cleaning agents"),
		// dense 0.95, keyword 0.0 -> 0.475, below cutoff
		hit("b", 0.95, "unrelated autoclave text"),
		// dense 0.5, keyword 1.0 -> 0.75
		hit("c", 0.5, "cleaning agents listed here"),
	}}
	engine := NewEngine(&fakeEmbedder{}, repo, EngineConfig{Alpha: 0.5, ScoreCutoff: 0.6})

	out, err := engine.Search(context.Background(), SearchInput{
		TenantID: "t1",
		Query:    "cleaning agents",
		Alpha:    -1,
		// 使用引擎默认 cutoff
		ScoreCutoff: -1,
	})
	require.NoError(t, err)
	require.Empty(t, out.DisabledReason)

	require.Len(t, out.Passages, 2)
	assert.Equal(t, "a", out.Passages[0].ID)
	assert.Equal(t, "c", out.Passages[1].ID)
	assert.InDelta(t, 0.95, out.Passages[0].Score, 1e-6)
	assert.InDelta(t, 0.9, out.Passages[0].DenseScore, 1e-6)
	assert.InDelta(t, 1.0, out.Passages[0].KeywordScore, 1e-6)
}

func TestEngineSearchPureKeywordAlpha(t *testing.T) {
	repo := &fakeVectorRepo{results: []*VectorSearchResult{
		hit("a", 0.99, "nothing relevant"),
		hit("b", 0.10, "cleaning agents procedure"),
	}}
	engine := NewEngine(&fakeEmbedder{}, repo, EngineConfig{})

	// alpha=0 合法：只按关键词覆盖率打分
	out, err := engine.Search(context.Background(), SearchInput{
		TenantID:    "t1",
		Query:       "cleaning agents",
		Alpha:       0,
		ScoreCutoff: -1,
	})
	require.NoError(t, err)
	require.Len(t, out.Passages, 1)
	assert.Equal(t, "b", out.Passages[0].ID)
	assert.InDelta(t, 1.0, out.Passages[0].Score, 1e-6)
}

func TestEngineSearchTopKClamping(t *testing.T) {
	var results []*VectorSearchResult
	for i := 0; i < 20; i++ {
		results = append(results, hit(fmt.Sprintf("p%d", i), 0.9, "cleaning agents"))
	}
	repo := &fakeVectorRepo{results: results}
	engine := NewEngine(&fakeEmbedder{}, repo, EngineConfig{TopK: 7, MaxTopK: 10, OverFetchFactor: 3})

	t.Run("default top_k", func(t *testing.T) {
		out, err := engine.Search(context.Background(), SearchInput{TenantID: "t1", Query: "cleaning agents", Alpha: -1, ScoreCutoff: -1})
		require.NoError(t, err)
		assert.Len(t, out.Passages, 7)
		// 过取候选以便混合打分后仍有足够结果
		assert.Equal(t, 21, repo.lastParams.TopK)
	})

	t.Run("top_k above max is clamped", func(t *testing.T) {
		out, err := engine.Search(context.Background(), SearchInput{TenantID: "t1", Query: "cleaning agents", TopK: 99, Alpha: -1, ScoreCutoff: -1})
		require.NoError(t, err)
		assert.Len(t, out.Passages, 10)
	})
}

func TestEngineSearchValidation(t *testing.T) {
	engine := NewEngine(&fakeEmbedder{}, &fakeVectorRepo{}, EngineConfig{})

	_, err := engine.Search(context.Background(), SearchInput{Query: "q"})
	assert.Error(t, err)

	_, err = engine.Search(context.Background(), SearchInput{TenantID: "t1", Query: "   "})
	assert.Error(t, err)
}

func TestEngineSearchDegradesWhenDisabled(t *testing.T) {
	t.Run("no embedder", func(t *testing.T) {
		engine := NewEngine(nil, &fakeVectorRepo{}, EngineConfig{})
		out, err := engine.Search(context.Background(), SearchInput{TenantID: "t1", Query: "q"})
		require.NoError(t, err)
		assert.Equal(t, ErrVectorDisabled.Error(), out.DisabledReason)
		assert.Empty(t, out.Passages)
	})

	t.Run("embed failure", func(t *testing.T) {
		engine := NewEngine(&fakeEmbedder{err: fmt.Errorf("ollama down")}, &fakeVectorRepo{}, EngineConfig{})
		out, err := engine.Search(context.Background(), SearchInput{TenantID: "t1", Query: "q"})
		require.NoError(t, err)
		assert.Contains(t, out.DisabledReason, "ollama down")
	})

	t.Run("search failure", func(t *testing.T) {
		engine := NewEngine(&fakeEmbedder{}, &fakeVectorRepo{searchErr: fmt.Errorf("qdrant down")}, EngineConfig{})
		out, err := engine.Search(context.Background(), SearchInput{TenantID: "t1", Query: "q"})
		require.NoError(t, err)
		assert.Contains(t, out.DisabledReason, "qdrant down")
	})
}

func TestEngineDebugSearch(t *testing.T) {
	repo := &fakeVectorRepo{results: []*VectorSearchResult{
		hit("a", 0.9, "cleaning agents"),
		hit("b", 0.1, "unrelated"),
	}}
	engine := NewEngine(&fakeEmbedder{}, repo, EngineConfig{})

	out, err := engine.DebugSearch(context.Background(), SearchInput{
		TenantID:         "t1",
		Query:            "cleaning agents",
		Alpha:            -1,
		ScoreCutoff:      -1,
		IncludeEmbedding: true,
	})
	require.NoError(t, err)
	require.NotNil(t, out.Debug)
	assert.Equal(t, 2, out.Debug.TotalCandidates)
	assert.Equal(t, 1, out.Debug.FilteredCandidates)
	assert.Equal(t, 1, out.Debug.BelowCutoff)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, out.QueryEmbedding)
}

func TestEngineSearchDocNameFilterPassthrough(t *testing.T) {
	repo := &fakeVectorRepo{}
	engine := NewEngine(&fakeEmbedder{}, repo, EngineConfig{})

	_, err := engine.Search(context.Background(), SearchInput{
		TenantID:    "t1",
		Query:       "q",
		DocNames:    []string{"SOP-021", "SOP-007"},
		Alpha:       -1,
		ScoreCutoff: -1,
	})
	require.NoError(t, err)
	require.NotNil(t, repo.lastParams)
	assert.Equal(t, []string{"SOP-021", "SOP-007"}, repo.lastParams.DocNames)
	assert.Equal(t, "t1", repo.lastParams.TenantID)
}
