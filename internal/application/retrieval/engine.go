package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"fasa-rag-api/pkg/metrics"
)

const (
	defaultTopK            = 7
	defaultMaxTopK         = 50
	defaultOverFetchFactor = 3
	defaultAlpha           = 0.5
	defaultScoreCutoff     = 0.60
)

// EngineConfig 检索引擎配置。
type EngineConfig struct {
	TopK            int
	MaxTopK         int
	OverFetchFactor int
	Alpha           float64
	ScoreCutoff     float64
}

func (c *EngineConfig) applyDefaults() {
	if c.TopK <= 0 {
		c.TopK = defaultTopK
	}
	if c.MaxTopK <= 0 {
		c.MaxTopK = defaultMaxTopK
	}
	if c.OverFetchFactor <= 0 {
		c.OverFetchFactor = defaultOverFetchFactor
	}
	if c.Alpha < 0 || c.Alpha > 1 {
		c.Alpha = defaultAlpha
	}
	if c.ScoreCutoff <= 0 || c.ScoreCutoff >= 1 {
		c.ScoreCutoff = defaultScoreCutoff
	}
}

// Engine 混合检索引擎：稠密向量召回 + 关键词覆盖率融合打分。
type Engine struct {
	embedder Embedder
	vector   VectorRepository
	cfg      EngineConfig
}

// NewEngine 创建检索引擎
func NewEngine(embedder Embedder, vectorRepo VectorRepository, cfg EngineConfig) *Engine {
	cfg.applyDefaults()
	return &Engine{
		embedder: embedder,
		vector:   vectorRepo,
		cfg:      cfg,
	}
}

func (e *Engine) Enabled() bool {
	return e != nil && e.embedder != nil && e.vector != nil
}

func (e *Engine) ensureReady(ctx context.Context) error {
	if e == nil || e.vector == nil {
		return ErrVectorDisabled
	}
	return e.vector.EnsureChunksCollection(ctx)
}

func (e *Engine) Search(ctx context.Context, in SearchInput) (*SearchOutput, error) {
	return e.search(ctx, in, false)
}

func (e *Engine) DebugSearch(ctx context.Context, in SearchInput) (*SearchOutput, error) {
	return e.search(ctx, in, true)
}

func (e *Engine) search(ctx context.Context, in SearchInput, forceDebug bool) (*SearchOutput, error) {
	if in.TopK <= 0 {
		in.TopK = e.cfg.TopK
	}
	if in.TopK > e.cfg.MaxTopK {
		in.TopK = e.cfg.MaxTopK
	}
	alpha := in.Alpha
	if alpha < 0 || alpha > 1 {
		alpha = e.cfg.Alpha
	}
	cutoff := in.ScoreCutoff
	if cutoff <= 0 || cutoff >= 1 {
		cutoff = e.cfg.ScoreCutoff
	}

	in.Query = strings.TrimSpace(in.Query)
	in.TenantID = strings.TrimSpace(in.TenantID)
	if in.TenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	if in.Query == "" {
		return nil, fmt.Errorf("query is required")
	}

	out := &SearchOutput{}

	var dbg *DebugInfo
	if forceDebug {
		dbg = &DebugInfo{}
	}

	if !e.Enabled() {
		out.DisabledReason = ErrVectorDisabled.Error()
		if dbg != nil {
			out.Debug = dbg
		}
		return out, nil
	}

	// 向量召回（可降级：失败时返回空结果并带上原因）
	if err := e.ensureReady(ctx); err != nil {
		out.DisabledReason = err.Error()
		if dbg != nil {
			out.Debug = dbg
		}
		return out, nil
	}

	embStart := time.Now()
	emb, err := e.embedQuery(ctx, in.Query)
	if err != nil {
		out.DisabledReason = err.Error()
		if dbg != nil {
			out.Debug = dbg
		}
		return out, nil
	}
	if dbg != nil {
		dbg.EmbedTimeMs = time.Since(embStart).Milliseconds()
	}
	if in.IncludeEmbedding {
		out.QueryEmbedding = emb
	}

	// 过取候选以便融合打分后仍有足够结果
	fetchK := in.TopK * e.cfg.OverFetchFactor
	if fetchK > e.cfg.MaxTopK*e.cfg.OverFetchFactor {
		fetchK = e.cfg.MaxTopK * e.cfg.OverFetchFactor
	}

	searchStart := time.Now()
	results, err := e.vector.SearchChunks(ctx, &VectorSearchParams{
		TenantID:    in.TenantID,
		QueryVector: emb,
		TopK:        fetchK,
		DocNames:    in.DocNames,
	})
	if err != nil {
		out.DisabledReason = err.Error()
		if dbg != nil {
			out.Debug = dbg
		}
		return out, nil
	}
	if dbg != nil {
		dbg.VectorSearchTimeMs = time.Since(searchStart).Milliseconds()
		dbg.TotalCandidates = len(results)
	}

	// 混合打分：final = alpha*dense + (1-alpha)*keyword
	queryTokens := tokenize(in.Query)
	passages := make([]Passage, 0, len(results))
	belowCutoff := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		dense := float64(r.Score)
		kw := keywordScore(queryTokens, r.TextContent)
		final := alpha*dense + (1-alpha)*kw
		if final < cutoff {
			belowCutoff++
			continue
		}
		passages = append(passages, Passage{
			ID:            strings.TrimSpace(r.ID),
			Text:          strings.TrimSpace(r.TextContent),
			Score:         final,
			DenseScore:    dense,
			KeywordScore:  kw,
			DocumentID:    r.DocumentID,
			DocName:       strings.TrimSpace(r.DocName),
			Version:       strings.TrimSpace(r.Version),
			Page:          r.Page,
			SectionNumber: strings.TrimSpace(r.SectionNumber),
			SectionTitle:  strings.TrimSpace(r.SectionTitle),
			ChunkIndex:    r.ChunkIndex,
		})
	}

	if belowCutoff > 0 {
		metrics.RetrievalHitsBelowCutoff.WithLabelValues("sop_chunks").Add(float64(belowCutoff))
	}

	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})
	if len(passages) > in.TopK {
		passages = passages[:in.TopK]
	}
	out.Passages = passages

	if dbg != nil {
		dbg.FilteredCandidates = len(passages)
		dbg.BelowCutoff = belowCutoff
		out.Debug = dbg
	}
	return out, nil
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if e == nil || e.embedder == nil {
		return nil, ErrVectorDisabled
	}
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, fmt.Errorf("query is empty")
	}
	v64, err := e.embedder.EmbedStrings(ctx, []string{q})
	if err != nil {
		return nil, err
	}
	if len(v64) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	vec := v64[0]
	out := make([]float32, 0, len(vec))
	for _, x := range vec {
		out = append(out, float32(x))
	}
	return out, nil
}
