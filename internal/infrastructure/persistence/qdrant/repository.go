// Package qdrant 提供 Qdrant 向量数据库访问层实现
package qdrant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fasa-rag-api/pkg/metrics"
)

// 分块集合的 payload 字段名
const (
	fieldTenantID      = "tenant_id"
	fieldDocumentID    = "document_id"
	fieldDocName       = "doc_name"
	fieldVersion       = "version"
	fieldPage          = "page"
	fieldSectionNumber = "section_number"
	fieldSectionTitle  = "section_title"
	fieldChunkIndex    = "chunk_index"
	fieldTextContent   = "text_content"
	fieldActive        = "active"
)

// Repository 向量检索仓储
type Repository struct {
	client    *Client
	dimension int

	ensureOnce sync.Once
	ensureErr  error
}

// NewRepository 创建向量检索仓储
func NewRepository(client *Client, dimension int) *Repository {
	return &Repository{
		client:    client,
		dimension: dimension,
	}
}

// SearchParams 检索参数
type SearchParams struct {
	TenantID    string
	QueryVector []float32
	TopK        int
	DocNames    []string
}

// SearchResult 检索结果。Score 为余弦相似度。
type SearchResult struct {
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

func (r *Repository) collectionName() string {
	return r.client.CollectionName(r.client.config.Collection)
}

// EnsureChunksCollection 确保分块集合存在，不存在时创建并建立 payload 索引。
func (r *Repository) EnsureChunksCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.qdrant == nil {
		return fmt.Errorf("qdrant client not configured")
	}

	r.ensureOnce.Do(func() {
		r.ensureErr = r.createCollectionIfAbsent(ctx)
	})
	return r.ensureErr
}

func (r *Repository) createCollectionIfAbsent(ctx context.Context) error {
	collName := r.collectionName()
	ctx, span := tracer.Start(ctx, "qdrant.EnsureChunksCollection",
		trace.WithAttributes(attribute.String("collection", collName)))
	defer span.End()

	exists, err := r.client.qdrant.CollectionExists(ctx, collName)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = r.client.qdrant.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(r.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// 过滤字段建立 payload 索引
	for field, fieldType := range map[string]qdrant.FieldType{
		fieldTenantID: qdrant.FieldType_FieldTypeKeyword,
		fieldDocName:  qdrant.FieldType_FieldTypeKeyword,
		fieldActive:   qdrant.FieldType_FieldTypeBool,
	} {
		ft := fieldType
		if _, err := r.client.qdrant.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: collName,
			FieldName:      field,
			FieldType:      &ft,
		}); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create payload index on %s: %w", field, err)
		}
	}
	return nil
}

// InsertChunks 批量写入文档分块
func (r *Repository) InsertChunks(ctx context.Context, tenantID string, chunks []*Chunk) error {
	if r == nil || r.client == nil || r.client.qdrant == nil {
		return fmt.Errorf("qdrant client not configured")
	}
	if len(chunks) == 0 {
		return nil
	}

	collName := r.collectionName()
	ctx, span := tracer.Start(ctx, "qdrant.InsertChunks",
		trace.WithAttributes(
			attribute.String("collection", collName),
			attribute.Int("chunk_count", len(chunks)),
		))
	defer span.End()

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		if c == nil {
			continue
		}
		payload := map[string]*qdrant.Value{
			fieldTenantID:      {Kind: &qdrant.Value_StringValue{StringValue: tenantID}},
			fieldDocumentID:    {Kind: &qdrant.Value_StringValue{StringValue: c.DocumentID}},
			fieldDocName:       {Kind: &qdrant.Value_StringValue{StringValue: c.DocName}},
			fieldVersion:       {Kind: &qdrant.Value_StringValue{StringValue: c.Version}},
			fieldPage:          {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(c.Page)}},
			fieldSectionNumber: {Kind: &qdrant.Value_StringValue{StringValue: c.SectionNumber}},
			fieldSectionTitle:  {Kind: &qdrant.Value_StringValue{StringValue: c.SectionTitle}},
			fieldChunkIndex:    {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(c.ChunkIndex)}},
			fieldTextContent:   {Kind: &qdrant.Value_StringValue{StringValue: c.TextContent}},
			fieldActive:        {Kind: &qdrant.Value_BoolValue{BoolValue: c.Active}},
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(c.ID),
			Vectors: qdrant.NewVectors(c.Vector...),
			Payload: payload,
		})
	}

	_, err := r.client.qdrant.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collName,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}
	return nil
}

// Chunk 写入向量库的文档分块
type Chunk struct {
	ID            string
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

// SearchChunks 检索文档分块。
// 只召回 active=true 的分块，归档文档不参与检索。
func (r *Repository) SearchChunks(ctx context.Context, params *SearchParams) ([]*SearchResult, error) {
	if r == nil || r.client == nil || r.client.qdrant == nil {
		return nil, fmt.Errorf("qdrant client not configured")
	}
	if params == nil {
		return nil, nil
	}

	collName := r.collectionName()
	ctx, span := tracer.Start(ctx, "qdrant.SearchChunks",
		trace.WithAttributes(
			attribute.String("collection", collName),
			attribute.Int("top_k", params.TopK),
		))
	defer span.End()

	start := time.Now()

	must := []*qdrant.Condition{
		keywordCondition(fieldTenantID, params.TenantID),
		boolCondition(fieldActive, true),
	}
	if len(params.DocNames) > 0 {
		must = append(must, keywordsCondition(fieldDocName, params.DocNames))
	}

	points, err := r.client.qdrant.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collName,
		Query:          qdrant.NewQuery(params.QueryVector...),
		Limit:          qdrant.PtrOf(uint64(params.TopK)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         &qdrant.Filter{Must: must},
	})
	if err != nil {
		span.RecordError(err)
		metrics.QdrantSearchTotal.WithLabelValues(collName, "error").Inc()
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	metrics.QdrantSearchTotal.WithLabelValues(collName, "success").Inc()
	metrics.QdrantSearchDuration.WithLabelValues(collName).Observe(time.Since(start).Seconds())

	results := make([]*SearchResult, 0, len(points))
	for _, p := range points {
		if p == nil {
			continue
		}
		res := &SearchResult{Score: p.Score}
		if p.Id != nil {
			res.ID = p.Id.GetUuid()
		}
		for key, v := range p.Payload {
			switch key {
			case fieldTextContent:
				res.TextContent = v.GetStringValue()
			case fieldDocumentID:
				res.DocumentID = v.GetStringValue()
			case fieldDocName:
				res.DocName = v.GetStringValue()
			case fieldVersion:
				res.Version = v.GetStringValue()
			case fieldPage:
				res.Page = int(v.GetIntegerValue())
			case fieldSectionNumber:
				res.SectionNumber = v.GetStringValue()
			case fieldSectionTitle:
				res.SectionTitle = v.GetStringValue()
			case fieldChunkIndex:
				res.ChunkIndex = int(v.GetIntegerValue())
			}
		}
		results = append(results, res)
	}

	span.SetAttributes(attribute.Int("result_count", len(results)))
	return results, nil
}

// DeleteChunksByDocName 删除某文档（全部版本）的所有分块
func (r *Repository) DeleteChunksByDocName(ctx context.Context, tenantID, docName string) error {
	if r == nil || r.client == nil || r.client.qdrant == nil {
		return fmt.Errorf("qdrant client not configured")
	}

	collName := r.collectionName()
	ctx, span := tracer.Start(ctx, "qdrant.DeleteChunksByDocName",
		trace.WithAttributes(
			attribute.String("collection", collName),
			attribute.String("doc_name", docName),
		))
	defer span.End()

	_, err := r.client.qdrant.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collName,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						keywordCondition(fieldTenantID, tenantID),
						keywordCondition(fieldDocName, docName),
					},
				},
			},
		},
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// SetDocumentActive 切换某文档全部分块的检索可见性
func (r *Repository) SetDocumentActive(ctx context.Context, tenantID, docName string, active bool) error {
	if r == nil || r.client == nil || r.client.qdrant == nil {
		return fmt.Errorf("qdrant client not configured")
	}

	collName := r.collectionName()
	ctx, span := tracer.Start(ctx, "qdrant.SetDocumentActive",
		trace.WithAttributes(
			attribute.String("collection", collName),
			attribute.String("doc_name", docName),
			attribute.Bool("active", active),
		))
	defer span.End()

	_, err := r.client.qdrant.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: collName,
		Payload: map[string]*qdrant.Value{
			fieldActive: {Kind: &qdrant.Value_BoolValue{BoolValue: active}},
		},
		PointsSelector: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						keywordCondition(fieldTenantID, tenantID),
						keywordCondition(fieldDocName, docName),
					},
				},
			},
		},
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set chunk visibility: %w", err)
	}
	return nil
}

func keywordCondition(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func keywordsCondition(key string, values []string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keywords{
						Keywords: &qdrant.RepeatedStrings{Strings: values},
					},
				},
			},
		},
	}
}

func boolCondition(key string, value bool) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Boolean{Boolean: value},
				},
			},
		},
	}
}
