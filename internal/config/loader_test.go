package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_SET_VAR", "from-env")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set variable", "host: ${TEST_SET_VAR}", "host: from-env"},
		{"set variable ignores default", "host: ${TEST_SET_VAR:fallback}", "host: from-env"},
		{"unset with default", "host: ${TEST_UNSET_VAR_XYZ:localhost}", "host: localhost"},
		{"unset with empty default", "password: ${TEST_UNSET_VAR_XYZ:}", "password: "},
		{"unset without default kept as-is", "host: ${TEST_UNSET_VAR_XYZ}", "host: ${TEST_UNSET_VAR_XYZ}"},
		{"multiple placeholders", "${TEST_SET_VAR}:${TEST_UNSET_VAR_XYZ:5432}", "from-env:5432"},
		{"no placeholders", "plain text", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEnv(tt.input))
		})
	}
}

func writeConfigs(t *testing.T, base, env string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "configs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "config.yaml"), []byte(base), 0o644))
	if env != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "config.test.yaml"), []byte(env), 0o644))
	}
	t.Chdir(dir)
}

func TestLoad(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("TEST_PG_HOST", "db.internal")
	writeConfigs(t, `
app:
  name: fasa-rag-api
  env: ${APP_ENV:development}
database:
  postgres:
    host: ${TEST_PG_HOST:localhost}
    port: 5432
retrieval:
  top_k: 7
  alpha: 0.5
  score_cutoff: 0.60
`, `
server:
  http:
    port: 9090
`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fasa-rag-api", cfg.App.Name)
	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	// 环境配置覆盖默认配置
	assert.Equal(t, 9090, cfg.Server.HTTP.Port)
	assert.InDelta(t, 0.5, cfg.Retrieval.Alpha, 1e-9)
	assert.InDelta(t, 0.60, cfg.Retrieval.ScoreCutoff, 1e-9)
	assert.Equal(t, 7, cfg.Retrieval.TopK)
	// setDefaults 兜底未配置的键
	assert.Equal(t, "0.0.0.0", cfg.Server.HTTP.Host)
	assert.Equal(t, 50, cfg.Retrieval.MaxTopK)
}

func TestLoadMissingBaseConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := Load()
	assert.Error(t, err)
}
