package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "docintel.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.ExtractModel)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.ChatModel)
	assert.Equal(t, 8192, cfg.Anthropic.MaxTokens)
	assert.Equal(t, 3, cfg.Anthropic.RetryAttempts)
	assert.Equal(t, "text-embedding-3-small", cfg.OpenAI.EmbeddingModel)
	assert.Equal(t, 100, cfg.OpenAI.MaxBatchSize)
	assert.Equal(t, 1536, cfg.OpenAI.Dimensions)
	assert.Equal(t, "local", cfg.Extractor.Provider)
	assert.Equal(t, 5000, cfg.Pipeline.WordCap)
	assert.Equal(t, 10, cfg.Pipeline.MaxPagesPerBatch)
	assert.False(t, cfg.Pipeline.StrictCompletion)
	assert.Equal(t, 50, cfg.Retrieval.MinPageChars)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.3, cfg.Retrieval.SimilarityThreshold, 0.001)
	assert.InDelta(t, 0.8, cfg.Retrieval.ReadinessRatio, 0.001)
	assert.Equal(t, 10, cfg.Retrieval.HistoryLimit)
	assert.Equal(t, 2, cfg.Batch.MaxConcurrentDocuments)
}

func TestLoadFromYAML(t *testing.T) {
	chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/docintel
log:
  level: debug
  format: console
pipeline:
  word_cap: 2000
  strict_completion: true
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/docintel", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2000, cfg.Pipeline.WordCap)
	assert.True(t, cfg.Pipeline.StrictCompletion)
	// Defaults still apply for unset values
	assert.Equal(t, 10, cfg.Pipeline.MaxPagesPerBatch)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("DOCINTEL_STORE_DRIVER", "postgres")
	t.Setenv("DOCINTEL_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	require.Error(t, InitLogger(LogConfig{Level: "not-a-level"}))
}
