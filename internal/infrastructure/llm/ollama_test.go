package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fasa-rag-api/internal/config"
)

func TestOllamaClientChat(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(chatResponse{
			Message:         Message{Role: "assistant", Content: "  Only approved agents may be used. [1]  "},
			Done:            true,
			PromptEvalCount: 120,
			EvalCount:       25,
		})
	}))
	defer srv.Close()

	client := NewOllamaClient(ClientConfig{BaseURL: srv.URL, Model: "llama3.1:8b", Temperature: 0.7, MaxTokens: 512})

	temp := 0.0
	res, err := client.Chat(context.Background(), []Message{
		{Role: "system", Content: "system prompt"},
		{Role: "user", Content: "question"},
	}, &Options{Temperature: &temp})
	require.NoError(t, err)

	assert.Equal(t, "Only approved agents may be used. [1]", res.Content)
	assert.Equal(t, 120, res.PromptTokens)
	assert.Equal(t, 25, res.CompletionTokens)

	assert.Equal(t, "llama3.1:8b", gotReq.Model)
	assert.False(t, gotReq.Stream)
	assert.Len(t, gotReq.Messages, 2)
	// 请求级参数覆盖客户端默认值
	assert.Equal(t, 0.0, gotReq.Options.Temperature)
	assert.Equal(t, 512, gotReq.Options.NumPredict)
}

func TestOllamaClientChatErrors(t *testing.T) {
	t.Run("empty messages", func(t *testing.T) {
		client := NewOllamaClient(ClientConfig{BaseURL: "http://localhost:1"})
		_, err := client.Chat(context.Background(), nil, nil)
		assert.Error(t, err)
	})

	t.Run("non-200 status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))
		defer srv.Close()

		client := NewOllamaClient(ClientConfig{BaseURL: srv.URL, Model: "missing"})
		_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "q"}}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 404")
		assert.Contains(t, err.Error(), "model not found")
	})
}

func TestOllamaClientChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		flusher := w.(http.Flusher)
		chunks := []chatResponse{
			{Message: Message{Content: "Only "}},
			{Message: Message{Content: "approved agents."}},
			{Done: true, PromptEvalCount: 100, EvalCount: 10},
		}
		for _, c := range chunks {
			_ = json.NewEncoder(w).Encode(c)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	client := NewOllamaClient(ClientConfig{BaseURL: srv.URL, Model: "llama3.1:8b"})

	ch, err := client.ChatStream(context.Background(), []Message{{Role: "user", Content: "q"}}, nil)
	require.NoError(t, err)

	var content string
	var last StreamChunk
	for chunk := range ch {
		require.NoError(t, chunk.Err)
		content += chunk.Content
		last = chunk
	}
	assert.Equal(t, "Only approved agents.", content)
	assert.True(t, last.Done)
	assert.Equal(t, 100, last.PromptTokens)
	assert.Equal(t, 10, last.CompletionTokens)
}

func TestOllamaClientChatStreamMalformedChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "{not json")
	}))
	defer srv.Close()

	client := NewOllamaClient(ClientConfig{BaseURL: srv.URL})
	ch, err := client.ChatStream(context.Background(), []Message{{Role: "user", Content: "q"}}, nil)
	require.NoError(t, err)

	var streamErr error
	for chunk := range ch {
		if chunk.Err != nil {
			streamErr = chunk.Err
		}
	}
	assert.Error(t, streamErr)
}

func TestFactory(t *testing.T) {
	cfg := &config.Config{
		LLM: config.LLMConfig{
			DefaultProvider: "ollama",
			Providers: map[string]config.ProviderConfig{
				"ollama": {BaseURL: "http://localhost:11434", Model: "llama3.1:8b"},
			},
		},
	}
	factory := NewFactory(cfg)

	def, err := factory.Default()
	require.NoError(t, err)
	assert.Equal(t, "llama3.1:8b", def.Model())

	// 同名 provider 复用同一客户端实例
	again, err := factory.Get("ollama")
	require.NoError(t, err)
	assert.Same(t, def, again)

	_, err = factory.Get("missing")
	assert.Error(t, err)
}
