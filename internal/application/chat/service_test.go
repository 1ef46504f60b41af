package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fasa-rag-api/internal/application/retrieval"
	"fasa-rag-api/internal/config"
	"fasa-rag-api/internal/domain/entity"
	"fasa-rag-api/internal/domain/repository"
	"fasa-rag-api/internal/infrastructure/llm"
	"fasa-rag-api/internal/infrastructure/persistence/redis"
)

type stubEmbedder struct{}

func (stubEmbedder) EmbedStrings(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0.1, 0.2}
	}
	return out, nil
}

type stubVectorRepo struct {
	results []*retrieval.VectorSearchResult
}

func (s *stubVectorRepo) EnsureChunksCollection(context.Context) error { return nil }

func (s *stubVectorRepo) SearchChunks(context.Context, *retrieval.VectorSearchParams) ([]*retrieval.VectorSearchResult, error) {
	return s.results, nil
}

func (s *stubVectorRepo) DeleteChunksByDocName(context.Context, string, string) error { return nil }

func (s *stubVectorRepo) InsertChunks(context.Context, string, []*retrieval.VectorChunk) error {
	return nil
}

func (s *stubVectorRepo) SetDocumentActive(context.Context, string, string, bool) error { return nil }

type memSessionRepo struct {
	sessions map[string]*entity.ConversationSession
	updated  int
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: map[string]*entity.ConversationSession{}}
}

func (r *memSessionRepo) Create(_ context.Context, s *entity.ConversationSession) error {
	if s.ID == "" {
		s.ID = fmt.Sprintf("sess-%d", len(r.sessions)+1)
	}
	r.sessions[s.ID] = s
	return nil
}

func (r *memSessionRepo) GetByID(_ context.Context, id string) (*entity.ConversationSession, error) {
	return r.sessions[id], nil
}

func (r *memSessionRepo) Update(_ context.Context, s *entity.ConversationSession) error {
	r.updated++
	r.sessions[s.ID] = s
	return nil
}

func (r *memSessionRepo) Delete(_ context.Context, id string) error {
	delete(r.sessions, id)
	return nil
}

func (r *memSessionRepo) ListByUser(context.Context, string, string, repository.Pagination) (*repository.PagedResult[*entity.ConversationSession], error) {
	return nil, nil
}

type memTurnRepo struct {
	turns []*entity.ConversationTurn
}

func (r *memTurnRepo) Create(_ context.Context, t *entity.ConversationTurn) error {
	r.turns = append(r.turns, t)
	return nil
}

func (r *memTurnRepo) ListBySession(context.Context, string, repository.Pagination) (*repository.PagedResult[*entity.ConversationTurn], error) {
	return nil, nil
}

func (r *memTurnRepo) GetRecentBySession(_ context.Context, sessionID string, _ int) ([]*entity.ConversationTurn, error) {
	var out []*entity.ConversationTurn
	for _, t := range r.turns {
		if t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	return out, nil
}

// newOllamaStub spins up a fake /api/chat endpoint returning answer and
// recording the last request.
func newOllamaStub(t *testing.T, answer string) (*llm.Factory, *[]llm.Message) {
	t.Helper()
	var lastMessages []llm.Message

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []llm.Message `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		lastMessages = req.Messages
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"message":           map[string]string{"role": "assistant", "content": answer},
			"done":              true,
			"prompt_eval_count": 100,
			"eval_count":        20,
		})
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{LLM: config.LLMConfig{
		DefaultProvider: "ollama",
		Providers: map[string]config.ProviderConfig{
			"ollama": {BaseURL: srv.URL, Model: "test-model"},
		},
	}}
	return llm.NewFactory(cfg), &lastMessages
}

func passageHit(docName, version, text string, score float32) *retrieval.VectorSearchResult {
	return &retrieval.VectorSearchResult{
		ID:            docName + "-c0",
		Score:         score,
		TextContent:   text,
		DocName:       docName,
		Version:       version,
		Page:          4,
		SectionNumber: "5.2",
		SectionTitle:  "Cleaning Agents",
	}
}

func newTestService(t *testing.T, answer string, hits []*retrieval.VectorSearchResult) (*Service, *memSessionRepo, *memTurnRepo, *[]llm.Message) {
	t.Helper()
	engine := retrieval.NewEngine(stubEmbedder{}, &stubVectorRepo{results: hits}, retrieval.EngineConfig{})
	factory, msgs := newOllamaStub(t, answer)
	sessions := newMemSessionRepo()
	turns := &memTurnRepo{}
	svc := NewService(engine, factory, sessions, turns, nil, ServiceConfig{})
	return svc, sessions, turns, msgs
}

func newAnswerCache(t *testing.T) *redis.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	host, portStr, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	client, err := redis.NewClient(&config.RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewCache(client)
}

func TestQueryCollapsesConcurrentIdenticalQuestions(t *testing.T) {
	hits := []*retrieval.VectorSearchResult{
		passageHit("SOP-021_CIP", "2.1", "Only approved cleaning agents may be used.", 0.9),
	}

	var llmCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		llmCalls.Add(1)
		time.Sleep(30 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"message":           map[string]string{"role": "assistant", "content": "Use Agent A. [1]"},
			"done":              true,
			"prompt_eval_count": 10,
			"eval_count":        5,
		})
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{LLM: config.LLMConfig{
		DefaultProvider: "ollama",
		Providers: map[string]config.ProviderConfig{
			"ollama": {BaseURL: srv.URL, Model: "test-model"},
		},
	}}
	engine := retrieval.NewEngine(stubEmbedder{}, &stubVectorRepo{results: hits}, retrieval.EngineConfig{})
	svc := NewService(engine, llm.NewFactory(cfg), newMemSessionRepo(), &memTurnRepo{}, newAnswerCache(t),
		ServiceConfig{AnswerCacheEnabled: true, AnswerCacheTTL: time.Minute})

	// 并发相同问题只触发一次生成
	const burst = 6
	outs := make([]*QueryOutput, burst)
	var wg sync.WaitGroup
	for i := 0; i < burst; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := svc.Query(context.Background(), &QueryInput{
				TenantID: "t1",
				Question: "Which cleaning agents are approved?",
			})
			assert.NoError(t, err)
			outs[i] = out
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), llmCalls.Load())
	fresh := 0
	for _, out := range outs {
		require.NotNil(t, out)
		assert.Equal(t, "Use Agent A. [1]", out.Answer)
		if !out.Cached {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)

	// 大小写与空白差异命中同一缓存键
	out, err := svc.Query(context.Background(), &QueryInput{
		TenantID: "t1",
		Question: "  which CLEANING agents\tare approved? ",
	})
	require.NoError(t, err)
	assert.True(t, out.Cached)
	assert.Equal(t, int32(1), llmCalls.Load())

	// 缓存命中的请求不携带他人的会话
	authed, err := svc.Query(context.Background(), &QueryInput{
		TenantID: "t1",
		UserID:   "u1",
		Question: "Which cleaning agents are approved?",
	})
	require.NoError(t, err)
	assert.True(t, authed.Cached)
	assert.Empty(t, authed.SessionID)
}

func TestQueryAnswersWithCitations(t *testing.T) {
	hits := []*retrieval.VectorSearchResult{
		passageHit("SOP-021_CIP", "2.1", "Only approved cleaning agents may be used.", 0.9),
	}
	svc, _, _, msgs := newTestService(t, "Only approved agents may be used. [1]", hits)

	out, err := svc.Query(context.Background(), &QueryInput{
		TenantID: "t1",
		Question: "Which cleaning agents are approved?",
	})
	require.NoError(t, err)

	assert.Equal(t, "Only approved agents may be used. [1]", out.Answer)
	assert.False(t, out.NotFound)
	assert.False(t, out.Cached)
	assert.Equal(t, 100, out.PromptTokens)
	assert.Equal(t, 20, out.CompletionTokens)

	require.Len(t, out.Citations, 1)
	c := out.Citations[0]
	assert.Equal(t, 1, c.Index)
	assert.Equal(t, "SOP-021_CIP", c.DocName)
	assert.Equal(t, "2.1", c.Version)
	assert.Equal(t, 4, c.Page)
	assert.Equal(t, "5.2 Cleaning Agents", c.SectionTitle)
	assert.Greater(t, c.Score, 0.0)

	// 系统提示在前，用户消息携带召回上下文
	require.GreaterOrEqual(t, len(*msgs), 2)
	assert.Equal(t, "system", (*msgs)[0].Role)
	assert.Contains(t, (*msgs)[0].Content, retrieval.NotFoundSentinel)
	last := (*msgs)[len(*msgs)-1]
	assert.Equal(t, "user", last.Role)
	assert.Contains(t, last.Content, "Only approved cleaning agents may be used.")
	assert.Contains(t, last.Content, "Which cleaning agents are approved?")
}

func TestQueryNotFoundSuppressesCitations(t *testing.T) {
	hits := []*retrieval.VectorSearchResult{
		passageHit("SOP-021_CIP", "2.1", "cleaning agents text", 0.9),
	}
	svc, _, _, _ := newTestService(t, retrieval.NotFoundSentinel, hits)

	out, err := svc.Query(context.Background(), &QueryInput{TenantID: "t1", Question: "cleaning agents?"})
	require.NoError(t, err)
	assert.True(t, out.NotFound)
	assert.Empty(t, out.Citations)
}

func TestQueryNoHitsStillAsksModel(t *testing.T) {
	svc, _, _, msgs := newTestService(t, retrieval.NotFoundSentinel, nil)

	out, err := svc.Query(context.Background(), &QueryInput{TenantID: "t1", Question: "unknown topic"})
	require.NoError(t, err)
	assert.True(t, out.NotFound)

	last := (*msgs)[len(*msgs)-1]
	assert.Contains(t, last.Content, "(no relevant excerpts found)")
}

func TestQuerySessionLifecycle(t *testing.T) {
	hits := []*retrieval.VectorSearchResult{
		passageHit("SOP-021_CIP", "2.1", "cleaning agents are listed in appendix B", 0.9),
	}
	svc, sessions, turns, msgs := newTestService(t, "Listed in appendix B. [1]", hits)

	// 指定 UserID 时自动创建会话并落两条消息
	out, err := svc.Query(context.Background(), &QueryInput{
		TenantID: "t1",
		UserID:   "u1",
		Question: "Where are cleaning agents listed?",
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.SessionID)

	session := sessions.sessions[out.SessionID]
	require.NotNil(t, session)
	assert.Equal(t, "t1", session.TenantID)
	assert.Equal(t, "Where are cleaning agents listed?", session.Title)

	require.Len(t, turns.turns, 2)
	assert.Equal(t, entity.RoleUser, turns.turns[0].Role)
	assert.Equal(t, entity.RoleAssistant, turns.turns[1].Role)
	assert.NotEmpty(t, turns.turns[1].Citations)

	// 复用会话时历史进入 Prompt
	_, err = svc.Query(context.Background(), &QueryInput{
		TenantID:  "t1",
		SessionID: out.SessionID,
		Question:  "And who approves them?",
	})
	require.NoError(t, err)
	require.Len(t, turns.turns, 4)

	var hasHistory bool
	for _, m := range *msgs {
		if m.Role == "assistant" && m.Content == "Listed in appendix B. [1]" {
			hasHistory = true
		}
	}
	assert.True(t, hasHistory)
}

func TestQuerySessionTenantMismatch(t *testing.T) {
	svc, sessions, _, _ := newTestService(t, "x", nil)
	other := entity.NewConversationSession("other-tenant", "u1")
	require.NoError(t, sessions.Create(context.Background(), other))

	_, err := svc.Query(context.Background(), &QueryInput{
		TenantID:  "t1",
		SessionID: other.ID,
		Question:  "q",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session not found")
}

func TestQueryValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t, "x", nil)

	_, err := svc.Query(context.Background(), &QueryInput{Question: "q"})
	assert.Error(t, err)

	_, err = svc.Query(context.Background(), &QueryInput{TenantID: "t1", Question: "  "})
	assert.Error(t, err)

	_, err = svc.Query(context.Background(), nil)
	assert.Error(t, err)
}

func TestQueryUnknownProvider(t *testing.T) {
	svc, _, _, _ := newTestService(t, "x", nil)

	_, err := svc.Query(context.Background(), &QueryInput{
		TenantID: "t1",
		Question: "q",
		Provider: "missing",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestQueryStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flusher := w.(http.Flusher)
		lines := []map[string]interface{}{
			{"message": map[string]string{"content": "Only approved "}},
			{"message": map[string]string{"content": "agents. [1]"}},
			{"done": true, "prompt_eval_count": 50, "eval_count": 8},
		}
		for _, l := range lines {
			_ = json.NewEncoder(w).Encode(l)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	cfg := &config.Config{LLM: config.LLMConfig{
		DefaultProvider: "ollama",
		Providers: map[string]config.ProviderConfig{
			"ollama": {BaseURL: srv.URL, Model: "test-model"},
		},
	}}
	hits := []*retrieval.VectorSearchResult{
		passageHit("SOP-021_CIP", "2.1", "approved agents listed", 0.9),
	}
	engine := retrieval.NewEngine(stubEmbedder{}, &stubVectorRepo{results: hits}, retrieval.EngineConfig{})
	svc := NewService(engine, llm.NewFactory(cfg), nil, nil, nil, ServiceConfig{})

	events, err := svc.QueryStream(context.Background(), &QueryInput{TenantID: "t1", Question: "approved agents"})
	require.NoError(t, err)

	var deltas string
	var final StreamEvent
	deadline := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case ev, ok := <-events:
			if !ok {
				done = true
				break
			}
			require.NoError(t, ev.Err)
			if ev.Done {
				final = ev
			} else {
				deltas += ev.Delta
			}
		case <-deadline:
			t.Fatal("timed out waiting for stream events")
		}
	}

	assert.Equal(t, "Only approved agents. [1]", deltas)
	assert.True(t, final.Done)
	assert.Equal(t, "Only approved agents. [1]", final.Answer)
	assert.False(t, final.NotFound)
	assert.NotEmpty(t, final.Citations)
}

func TestQueryStreamStopsWhenClientGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 40; i++ {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"message": map[string]string{"content": fmt.Sprintf("chunk %d ", i)},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"done": true})
		flusher.Flush()
	}))
	defer srv.Close()

	cfg := &config.Config{LLM: config.LLMConfig{
		DefaultProvider: "ollama",
		Providers: map[string]config.ProviderConfig{
			"ollama": {BaseURL: srv.URL, Model: "test-model"},
		},
	}}
	engine := retrieval.NewEngine(stubEmbedder{}, &stubVectorRepo{}, retrieval.EngineConfig{})
	svc := NewService(engine, llm.NewFactory(cfg), nil, nil, nil, ServiceConfig{})

	base := runtime.NumGoroutine()

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		events, err := svc.QueryStream(ctx, &QueryInput{TenantID: "t1", Question: "approved agents"})
		require.NoError(t, err)

		// 只收第一个事件就断开，剩余事件无人接收
		select {
		case <-events:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for first stream event")
		}
		cancel()
	}

	// 断开后发送端协程必须退出，不得悬挂在通道发送上
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= base+2
	}, 3*time.Second, 50*time.Millisecond)
}

func TestIsNotFoundAnswer(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{retrieval.NotFoundSentinel, true},
		{"  " + retrieval.NotFoundSentinel + "  ", true},
		{`"` + retrieval.NotFoundSentinel + `"`, true},
		{"information not found in the current sops.", true},
		{"The agents are listed in appendix B.", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsNotFoundAnswer(tt.answer), "answer %q", tt.answer)
	}
}

func TestCacheKeyPayloadDistinguishesParams(t *testing.T) {
	base := &QueryInput{Question: "how to clean the vessel", TopK: 7, Alpha: 0.5, ScoreCutoff: 0.6}
	same := &QueryInput{Question: "  How  To Clean\tthe vessel ", TopK: 7, Alpha: 0.5, ScoreCutoff: 0.6}
	diff := &QueryInput{Question: "how to clean the vessel", TopK: 7, Alpha: 0.3, ScoreCutoff: 0.6}
	filtered := &QueryInput{Question: "how to clean the vessel", TopK: 7, Alpha: 0.5, ScoreCutoff: 0.6, DocNames: []string{"SOP-021"}}

	assert.Equal(t, cacheKeyPayload(base), cacheKeyPayload(same))
	assert.NotEqual(t, cacheKeyPayload(base), cacheKeyPayload(diff))
	assert.NotEqual(t, cacheKeyPayload(base), cacheKeyPayload(filtered))
}
