package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "local", cfg.EmbeddingVendor)
	assert.Equal(t, 1536, cfg.EmbeddingDimensions)
	assert.Equal(t, 60*time.Second, cfg.EmbeddingTimeout)
	assert.Equal(t, 30*time.Second, cfg.VectorStoreTimeout)
	assert.Equal(t, int64(50*1024*1024), cfg.MaxUploadSize)
	assert.Equal(t, 64, cfg.InsertBatchSize)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("EMBEDDING_VENDOR", "openai")
	t.Setenv("LAMB_API_TOKEN", "test-token")
	t.Setenv("EMBEDDING_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "openai", cfg.EmbeddingVendor)
	assert.Equal(t, "test-token", cfg.APIToken)
	assert.Equal(t, 5*time.Second, cfg.EmbeddingTimeout)
}

func TestIsDevelopment(t *testing.T) {
	assert.True(t, (&Config{Environment: "development"}).IsDevelopment())
	assert.True(t, (&Config{Environment: "Development"}).IsDevelopment())
	assert.False(t, (&Config{Environment: "production"}).IsDevelopment())
}
