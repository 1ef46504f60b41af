package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fasa-rag-api/pkg/utils"
)

func newAuthRouter(cfg AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(cfg))
	handler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"tenant_id": c.GetString("tenant_id"),
			"user_id":   c.GetString("user_id"),
			"role":      c.GetString("role"),
		})
	}
	r.GET("/v1/documents", handler)
	r.GET("/health", handler)
	return r
}

func doRequest(r *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	const secret = "test-secret"
	mgr := utils.NewJWTManager(secret, "fasa-rag")
	router := newAuthRouter(AuthConfig{
		Secret:    secret,
		Issuer:    "fasa-rag",
		SkipPaths: DefaultSkipPaths,
		Enabled:   true,
	})

	t.Run("valid access token", func(t *testing.T) {
		token, err := mgr.GenerateToken("t1", "u1", "admin", "access", time.Minute)
		require.NoError(t, err)

		w := doRequest(router, "/v1/documents", "Bearer "+token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"tenant_id":"t1"`)
		assert.Contains(t, w.Body.String(), `"role":"admin"`)
	})

	t.Run("missing header", func(t *testing.T) {
		w := doRequest(router, "/v1/documents", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		w := doRequest(router, "/v1/documents", "Token abc")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := mgr.GenerateToken("t1", "u1", "admin", "access", -time.Minute)
		require.NoError(t, err)

		w := doRequest(router, "/v1/documents", "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "token expired")
	})

	t.Run("refresh token rejected", func(t *testing.T) {
		token, err := mgr.GenerateToken("t1", "u1", "admin", "refresh", time.Minute)
		require.NoError(t, err)

		w := doRequest(router, "/v1/documents", "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "invalid token type")
	})

	t.Run("skip path bypasses auth", func(t *testing.T) {
		w := doRequest(router, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAuthMiddlewareDisabled(t *testing.T) {
	router := newAuthRouter(AuthConfig{Enabled: false})
	w := doRequest(router, "/v1/documents", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
