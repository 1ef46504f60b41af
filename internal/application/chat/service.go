// Package chat 实现基于 SOP 召回的问答编排
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fasa-rag-api/internal/application/retrieval"
	"fasa-rag-api/internal/domain/entity"
	"fasa-rag-api/internal/domain/repository"
	"fasa-rag-api/internal/infrastructure/llm"
	"fasa-rag-api/internal/infrastructure/persistence/redis"
	"fasa-rag-api/pkg/logger"
	"fasa-rag-api/pkg/metrics"
)

var tracer = otel.Tracer("chat")

const (
	// maxContextPassages 注入 Prompt 的最大段落数
	maxContextPassages = 10
	// maxRunesPerPassage 单段落注入 Prompt 的最大字符数
	maxRunesPerPassage = 800
	// maxHistoryTurns 注入多轮对话的历史消息条数
	maxHistoryTurns = 6
)

// QueryInput 问答输入
type QueryInput struct {
	TenantID  string
	UserID    string
	SessionID string
	Question  string

	// 检索参数；零值表示使用检索引擎默认值
	TopK        int
	Alpha       float64
	ScoreCutoff float64
	DocNames    []string

	// LLM 参数
	Provider    string
	Temperature *float64
	MaxTokens   *int
}

// QueryOutput 问答输出
type QueryOutput struct {
	SessionID string            `json:"session_id,omitempty"`
	Answer    string            `json:"answer"`
	Citations []entity.Citation `json:"citations,omitempty"`
	NotFound  bool              `json:"not_found"`
	Cached    bool              `json:"cached"`

	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
}

// StreamEvent 流式问答事件
type StreamEvent struct {
	Delta string
	Done  bool

	// Done 为 true 时以下字段有效
	Answer    string
	Citations []entity.Citation
	NotFound  bool

	Err error
}

// ServiceConfig 问答服务配置
type ServiceConfig struct {
	AnswerCacheEnabled bool
	AnswerCacheTTL     time.Duration
}

// Service 问答服务
type Service struct {
	engine   *retrieval.Engine
	llm      *llm.Factory
	sessions repository.ConversationSessionRepository
	turns    repository.ConversationTurnRepository
	cache    *redis.Cache
	cfg      ServiceConfig
}

// NewService 创建问答服务
func NewService(
	engine *retrieval.Engine,
	factory *llm.Factory,
	sessions repository.ConversationSessionRepository,
	turns repository.ConversationTurnRepository,
	cache *redis.Cache,
	cfg ServiceConfig,
) *Service {
	if cfg.AnswerCacheTTL <= 0 {
		cfg.AnswerCacheTTL = time.Hour
	}
	return &Service{
		engine:   engine,
		llm:      factory,
		sessions: sessions,
		turns:    turns,
		cache:    cache,
		cfg:      cfg,
	}
}

// Query 执行一次问答：检索 -> Prompt 组装 -> LLM 生成 -> 引用提取 -> 会话落库
func (s *Service) Query(ctx context.Context, in *QueryInput) (*QueryOutput, error) {
	ctx, span := tracer.Start(ctx, "chat.Query",
		trace.WithAttributes(attribute.String("tenant_id", in.TenantID)))
	defer span.End()

	start := time.Now()

	if err := s.validate(in); err != nil {
		return nil, err
	}

	// 仅无会话的查询走答案缓存；多轮会话依赖历史，不缓存
	if s.cacheEnabled() && in.SessionID == "" {
		return s.cachedAnswer(ctx, in, start)
	}
	return s.answer(ctx, in, start)
}

// cachedAnswer 经 singleflight 读取或生成答案，
// 并发的相同问题在缓存未命中时只触发一次生成。
func (s *Service) cachedAnswer(ctx context.Context, in *QueryInput, start time.Time) (*QueryOutput, error) {
	cacheKey := redis.BuildAnswerKey(in.TenantID, cacheKeyPayload(in))
	var fresh *QueryOutput
	raw, err := s.cache.GetOrLoadSafe(ctx, cacheKey, s.cfg.AnswerCacheTTL, func() (interface{}, error) {
		out, err := s.answer(ctx, in, start)
		if err != nil {
			return nil, err
		}
		fresh = out
		// 会话归提问者所有，缓存副本不携带 session_id
		shared := *out
		shared.SessionID = ""
		return &shared, nil
	})
	if err != nil {
		return nil, err
	}
	// 本次调用触发了生成，直接返回带会话的原始结果
	if fresh != nil {
		return fresh, nil
	}
	var out QueryOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode cached answer: %w", err)
	}
	out.Cached = true
	metrics.ChatQueryTotal.WithLabelValues(in.TenantID, "cached").Inc()
	return &out, nil
}

func (s *Service) answer(ctx context.Context, in *QueryInput, start time.Time) (*QueryOutput, error) {
	session, history, err := s.loadSession(ctx, in)
	if err != nil {
		return nil, err
	}

	searchOut, err := s.engine.Search(ctx, retrieval.SearchInput{
		TenantID:    in.TenantID,
		Query:       in.Question,
		TopK:        in.TopK,
		Alpha:       in.Alpha,
		ScoreCutoff: in.ScoreCutoff,
		DocNames:    in.DocNames,
	})
	if err != nil {
		metrics.ChatQueryTotal.WithLabelValues(in.TenantID, "error").Inc()
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	if searchOut.DisabledReason != "" {
		logger.Warn(ctx, "retrieval degraded", "reason", searchOut.DisabledReason)
	}

	messages := s.buildMessages(history, searchOut.Passages, in.Question)

	client, err := s.client(in.Provider)
	if err != nil {
		metrics.ChatQueryTotal.WithLabelValues(in.TenantID, "error").Inc()
		return nil, err
	}

	result, err := client.Chat(ctx, messages, &llm.Options{
		Temperature: in.Temperature,
		MaxTokens:   in.MaxTokens,
	})
	if err != nil {
		metrics.ChatQueryTotal.WithLabelValues(in.TenantID, "error").Inc()
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	answer := strings.TrimSpace(result.Content)
	notFound := IsNotFoundAnswer(answer)

	out := &QueryOutput{
		Answer:           answer,
		NotFound:         notFound,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
	}
	if !notFound {
		out.Citations = buildCitations(searchOut.Passages)
	}

	if session != nil {
		out.SessionID = session.ID
		s.persistTurns(ctx, session, in.Question, out)
	}

	status := "success"
	if notFound {
		status = "not_found"
		metrics.ChatNotFoundTotal.WithLabelValues(in.TenantID).Inc()
	}
	metrics.ChatQueryTotal.WithLabelValues(in.TenantID, status).Inc()
	metrics.ChatQueryDuration.WithLabelValues(in.TenantID).Observe(time.Since(start).Seconds())

	logger.Info(ctx, "chat query completed",
		"not_found", notFound,
		"citations", len(out.Citations),
		"prompt_tokens", out.PromptTokens,
		"completion_tokens", out.CompletionTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// QueryStream 流式问答。返回的通道在生成结束或出错后关闭，
// 最后一个事件 Done 为 true 并携带完整答案与引用。
func (s *Service) QueryStream(ctx context.Context, in *QueryInput) (<-chan StreamEvent, error) {
	ctx, span := tracer.Start(ctx, "chat.QueryStream",
		trace.WithAttributes(attribute.String("tenant_id", in.TenantID)))
	defer span.End()

	if err := s.validate(in); err != nil {
		return nil, err
	}

	session, history, err := s.loadSession(ctx, in)
	if err != nil {
		return nil, err
	}

	searchOut, err := s.engine.Search(ctx, retrieval.SearchInput{
		TenantID:    in.TenantID,
		Query:       in.Question,
		TopK:        in.TopK,
		Alpha:       in.Alpha,
		ScoreCutoff: in.ScoreCutoff,
		DocNames:    in.DocNames,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	messages := s.buildMessages(history, searchOut.Passages, in.Question)

	client, err := s.client(in.Provider)
	if err != nil {
		return nil, err
	}

	chunks, err := client.ChatStream(ctx, messages, &llm.Options{
		Temperature: in.Temperature,
		MaxTokens:   in.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	events := make(chan StreamEvent)
	go func() {
		defer close(events)

		// 客户端断开后接收端不再取数，发送必须同时监听 ctx 退出
		send := func(ev StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var sb strings.Builder
		for chunk := range chunks {
			if chunk.Err != nil {
				send(StreamEvent{Err: chunk.Err})
				return
			}
			if chunk.Content != "" {
				sb.WriteString(chunk.Content)
				if !send(StreamEvent{Delta: chunk.Content}) {
					return
				}
			}
			if chunk.Done {
				answer := strings.TrimSpace(sb.String())
				notFound := IsNotFoundAnswer(answer)

				final := StreamEvent{
					Done:     true,
					Answer:   answer,
					NotFound: notFound,
				}
				if !notFound {
					final.Citations = buildCitations(searchOut.Passages)
				}

				status := "success"
				if notFound {
					status = "not_found"
					metrics.ChatNotFoundTotal.WithLabelValues(in.TenantID).Inc()
				}
				metrics.ChatQueryTotal.WithLabelValues(in.TenantID, status).Inc()

				if session != nil {
					out := &QueryOutput{
						SessionID: session.ID,
						Answer:    answer,
						Citations: final.Citations,
						NotFound:  notFound,
					}
					s.persistTurns(ctx, session, in.Question, out)
				}

				send(final)
				return
			}
		}
	}()
	return events, nil
}

// InvalidateAnswers 使租户答案缓存失效（文档入库或状态变更后调用）
func (s *Service) InvalidateAnswers(ctx context.Context, tenantID string) {
	if !s.cacheEnabled() {
		return
	}
	if err := s.cache.InvalidateAnswers(ctx, tenantID); err != nil {
		logger.Warn(ctx, "failed to invalidate answer cache", "error", err, "tenant_id", tenantID)
	}
}

func (s *Service) validate(in *QueryInput) error {
	if in == nil {
		return fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.TenantID) == "" {
		return fmt.Errorf("tenant id is required")
	}
	if strings.TrimSpace(in.Question) == "" {
		return fmt.Errorf("question is required")
	}
	if s.engine == nil || s.llm == nil {
		return fmt.Errorf("chat service not configured")
	}
	return nil
}

func (s *Service) cacheEnabled() bool {
	return s.cfg.AnswerCacheEnabled && s.cache != nil
}

func (s *Service) client(provider string) (*llm.OllamaClient, error) {
	if strings.TrimSpace(provider) == "" {
		return s.llm.Default()
	}
	return s.llm.Get(provider)
}

// loadSession 解析会话：传了 SessionID 则加载校验并取最近历史，否则按需创建
func (s *Service) loadSession(ctx context.Context, in *QueryInput) (*entity.ConversationSession, []*entity.ConversationTurn, error) {
	if s.sessions == nil || s.turns == nil {
		return nil, nil, nil
	}

	if in.SessionID != "" {
		session, err := s.sessions.GetByID(ctx, in.SessionID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load session: %w", err)
		}
		if session == nil || session.TenantID != in.TenantID {
			return nil, nil, fmt.Errorf("session not found: %s", in.SessionID)
		}

		history, err := s.turns.GetRecentBySession(ctx, session.ID, maxHistoryTurns)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load session history: %w", err)
		}
		return session, history, nil
	}

	// 未指定用户时不落会话，保持无状态问答
	if in.UserID == "" {
		return nil, nil, nil
	}

	session := entity.NewConversationSession(in.TenantID, in.UserID)
	session.Title = truncateRunes(in.Question, 80)
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}
	metrics.ActiveSessions.Inc()
	return session, nil, nil
}

// buildMessages 组装 LLM 消息：系统提示 + 历史 + 含上下文的用户消息
func (s *Service) buildMessages(history []*entity.ConversationTurn, passages []retrieval.Passage, question string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: retrieval.SystemPrompt})

	for _, turn := range history {
		if turn == nil || turn.Content == "" {
			continue
		}
		messages = append(messages, llm.Message{Role: string(turn.Role), Content: turn.Content})
	}

	contextBlock := retrieval.BuildPromptContext(passages, maxContextPassages, maxRunesPerPassage)
	messages = append(messages, llm.Message{Role: "user", Content: retrieval.BuildUserPrompt(contextBlock, question)})
	return messages
}

func (s *Service) persistTurns(ctx context.Context, session *entity.ConversationSession, question string, out *QueryOutput) {
	userTurn := entity.NewConversationTurn(session.ID, entity.RoleUser, question, nil)
	if err := s.turns.Create(ctx, userTurn); err != nil {
		logger.Warn(ctx, "failed to persist user turn", "error", err, "session_id", session.ID)
	}

	assistantTurn := entity.NewConversationTurn(session.ID, entity.RoleAssistant, out.Answer, out.Citations)
	if err := s.turns.Create(ctx, assistantTurn); err != nil {
		logger.Warn(ctx, "failed to persist assistant turn", "error", err, "session_id", session.ID)
	}

	session.UpdatedAt = time.Now()
	if err := s.sessions.Update(ctx, session); err != nil {
		logger.Warn(ctx, "failed to touch session", "error", err, "session_id", session.ID)
	}
}

// IsNotFoundAnswer 判断模型答复是否为"资料中未找到"的固定句
func IsNotFoundAnswer(answer string) bool {
	trimmed := strings.TrimSpace(answer)
	trimmed = strings.Trim(trimmed, `"`)
	return strings.EqualFold(trimmed, retrieval.NotFoundSentinel)
}

// buildCitations 将召回段落转为答案引用
func buildCitations(passages []retrieval.Passage) []entity.Citation {
	if len(passages) == 0 {
		return nil
	}
	n := len(passages)
	if n > maxContextPassages {
		n = maxContextPassages
	}
	citations := make([]entity.Citation, 0, n)
	for i := 0; i < n; i++ {
		p := passages[i]
		citations = append(citations, entity.Citation{
			Index:        i + 1,
			DocName:      p.DocName,
			Version:      p.Version,
			Page:         p.Page,
			SectionTitle: strings.TrimSpace(strings.TrimSpace(p.SectionNumber + " " + p.SectionTitle)),
			Score:        p.Score,
		})
	}
	return citations
}

// cacheKeyPayload 缓存键包含检索参数，避免不同参数命中同一答案
func cacheKeyPayload(in *QueryInput) string {
	return fmt.Sprintf("%s|%d|%.3f|%.3f|%s|%s",
		normalizeQuestion(in.Question), in.TopK, in.Alpha, in.ScoreCutoff,
		strings.Join(in.DocNames, ","), in.Provider)
}

// normalizeQuestion 小写并压缩空白，让大小写与排版差异命中同一缓存键
func normalizeQuestion(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

func truncateRunes(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max])
}
