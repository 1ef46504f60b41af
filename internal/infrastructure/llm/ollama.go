// Package llm 提供大模型客户端
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fasa-rag-api/pkg/metrics"
)

// Message 对话消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options 模型调用参数
type Options struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// ChatResult 非流式调用结果
type ChatResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// StreamChunk 流式调用的增量片段
type StreamChunk struct {
	Content          string
	Done             bool
	PromptTokens     int
	CompletionTokens int
	Err              error
}

// OllamaClient Ollama 原生 API 客户端。
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client

	defaultTemperature float64
	defaultMaxTokens   int
}

// ClientConfig Ollama 客户端配置
type ClientConfig struct {
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// NewOllamaClient 创建 Ollama 客户端
func NewOllamaClient(cfg ClientConfig) *OllamaClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &OllamaClient{
		baseURL:            baseURL,
		model:              cfg.Model,
		httpClient:         &http.Client{Timeout: timeout},
		defaultTemperature: cfg.Temperature,
		defaultMaxTokens:   cfg.MaxTokens,
	}
}

// Model 返回模型名
func (c *OllamaClient) Model() string {
	return c.model
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type chatResponse struct {
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

func (c *OllamaClient) buildOptions(opts *Options) ollamaOptions {
	out := ollamaOptions{
		Temperature: c.defaultTemperature,
		NumPredict:  c.defaultMaxTokens,
	}
	if opts == nil {
		return out
	}
	if opts.Temperature != nil {
		out.Temperature = *opts.Temperature
	}
	if opts.MaxTokens != nil {
		out.NumPredict = *opts.MaxTokens
	}
	if opts.TopP != nil {
		out.TopP = *opts.TopP
	}
	return out
}

// Chat 非流式对话调用。
func (c *OllamaClient) Chat(ctx context.Context, messages []Message, opts *Options) (*ChatResult, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages are required")
	}

	start := time.Now()

	reqBody, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options:  c.buildOptions(opts),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues("ollama", c.model, "error").Inc()
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		metrics.LLMCallTotal.WithLabelValues("ollama", c.model, "error").Inc()
		return nil, fmt.Errorf("ollama chat error (status %d): %s", resp.StatusCode, body)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.LLMCallTotal.WithLabelValues("ollama", c.model, "error").Inc()
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}

	metrics.LLMCallTotal.WithLabelValues("ollama", c.model, "success").Inc()
	metrics.LLMCallDuration.WithLabelValues("ollama", c.model).Observe(time.Since(start).Seconds())
	metrics.LLMTokensUsed.WithLabelValues("ollama", c.model, "prompt").Add(float64(out.PromptEvalCount))
	metrics.LLMTokensUsed.WithLabelValues("ollama", c.model, "completion").Add(float64(out.EvalCount))

	return &ChatResult{
		Content:          strings.TrimSpace(out.Message.Content),
		PromptTokens:     out.PromptEvalCount,
		CompletionTokens: out.EvalCount,
	}, nil
}

// ChatStream 流式对话调用。
// 返回的 channel 在流结束或出错后关闭；最后一个片段携带 Done 和 Token 统计。
func (c *OllamaClient) ChatStream(ctx context.Context, messages []Message, opts *Options) (<-chan StreamChunk, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages are required")
	}

	reqBody, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
		Options:  c.buildOptions(opts),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues("ollama", c.model, "error").Inc()
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		metrics.LLMCallTotal.WithLabelValues("ollama", c.model, "error").Inc()
		return nil, fmt.Errorf("ollama chat error (status %d): %s", resp.StatusCode, body)
	}

	start := time.Now()
	ch := make(chan StreamChunk, 16)

	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			var chunk chatResponse
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				metrics.LLMCallTotal.WithLabelValues("ollama", c.model, "error").Inc()
				select {
				case ch <- StreamChunk{Err: fmt.Errorf("failed to parse stream chunk: %w", err)}:
				case <-ctx.Done():
				}
				return
			}

			out := StreamChunk{Content: chunk.Message.Content}
			if chunk.Done {
				out.Done = true
				out.PromptTokens = chunk.PromptEvalCount
				out.CompletionTokens = chunk.EvalCount

				metrics.LLMCallTotal.WithLabelValues("ollama", c.model, "success").Inc()
				metrics.LLMCallDuration.WithLabelValues("ollama", c.model).Observe(time.Since(start).Seconds())
				metrics.LLMTokensUsed.WithLabelValues("ollama", c.model, "prompt").Add(float64(chunk.PromptEvalCount))
				metrics.LLMTokensUsed.WithLabelValues("ollama", c.model, "completion").Add(float64(chunk.EvalCount))
			}

			select {
			case ch <- out:
			case <-ctx.Done():
				return
			}
			if chunk.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			metrics.LLMCallTotal.WithLabelValues("ollama", c.model, "error").Inc()
			select {
			case ch <- StreamChunk{Err: fmt.Errorf("error reading stream: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}
