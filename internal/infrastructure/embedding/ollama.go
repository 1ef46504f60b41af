// Package embedding 提供文本向量化客户端
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fasa-rag-api/internal/config"
	"fasa-rag-api/pkg/metrics"
)

// OllamaEmbedder 通过 Ollama /api/embed 接口生成文本向量。
type OllamaEmbedder struct {
	endpoint   string
	model      string
	dimension  int
	httpClient *http.Client
}

// NewOllamaEmbedder 创建 Ollama 向量化客户端
func NewOllamaEmbedder(cfg config.EmbeddingConfig) *OllamaEmbedder {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	return &OllamaEmbedder{
		endpoint:  endpoint,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// Dimension 返回向量维度
func (e *OllamaEmbedder) Dimension() int {
	return e.dimension
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// EmbedStrings 批量生成文本向量。
func (e *OllamaEmbedder) EmbedStrings(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	start := time.Now()

	reqBody, err := json.Marshal(embedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/api/embed", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama embed error (status %d): %s", resp.StatusCode, body)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(out.Embeddings), len(texts))
	}
	if e.dimension > 0 {
		for i, vec := range out.Embeddings {
			if len(vec) != e.dimension {
				return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(vec), e.dimension)
			}
		}
	}

	metrics.EmbeddingBatchDuration.WithLabelValues(e.model).Observe(time.Since(start).Seconds())
	return out.Embeddings, nil
}
