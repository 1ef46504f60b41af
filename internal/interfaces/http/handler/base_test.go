package handler

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fasa-rag-api/internal/config"
	"fasa-rag-api/internal/interfaces/http/dto"
)

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			DefaultProvider: "ollama",
			Providers: map[string]config.ProviderConfig{
				"ollama": {Model: "llama3.1:8b"},
			},
		},
	}
}

func TestResolveProvider(t *testing.T) {
	cfg := testConfig()

	t.Run("empty falls back to default", func(t *testing.T) {
		p, err := resolveProvider(cfg, "")
		require.NoError(t, err)
		assert.Equal(t, "ollama", p)
	})

	t.Run("known provider", func(t *testing.T) {
		p, err := resolveProvider(cfg, "ollama")
		require.NoError(t, err)
		assert.Equal(t, "ollama", p)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := resolveProvider(cfg, "gpt-x")
		assert.Error(t, err)
	})

	t.Run("overlong provider name", func(t *testing.T) {
		_, err := resolveProvider(cfg, strings.Repeat("a", 33))
		assert.Error(t, err)
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := resolveProvider(nil, "ollama")
		assert.Error(t, err)
	})
}

func TestBuildQueryInput(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &ChatHandler{cfg: testConfig()}

	newCtx := func() *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("POST", "/v1/chat/query", nil)
		c.Set("tenant_id", "t1")
		c.Set("user_id", "u1")
		return c
	}

	t.Run("omitted alpha and cutoff use engine defaults", func(t *testing.T) {
		in, err := h.buildQueryInput(newCtx(), &dto.ChatRequest{Question: "q"})
		require.NoError(t, err)
		assert.Equal(t, "t1", in.TenantID)
		assert.Equal(t, "u1", in.UserID)
		// 负值约定为"使用引擎默认值"
		assert.Equal(t, -1.0, in.Alpha)
		assert.Equal(t, -1.0, in.ScoreCutoff)
		assert.Equal(t, "ollama", in.Provider)
	})

	t.Run("explicit zero alpha means pure keyword", func(t *testing.T) {
		zero := 0.0
		cutoff := 0.8
		in, err := h.buildQueryInput(newCtx(), &dto.ChatRequest{
			Question:    "q",
			Alpha:       &zero,
			ScoreCutoff: &cutoff,
			TopK:        5,
			DocNames:    []string{"SOP-021"},
		})
		require.NoError(t, err)
		assert.Equal(t, 0.0, in.Alpha)
		assert.Equal(t, 0.8, in.ScoreCutoff)
		assert.Equal(t, 5, in.TopK)
		assert.Equal(t, []string{"SOP-021"}, in.DocNames)
	})

	t.Run("unknown provider rejected", func(t *testing.T) {
		_, err := h.buildQueryInput(newCtx(), &dto.ChatRequest{Question: "q", Provider: "nope"})
		assert.Error(t, err)
	})
}
