package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	t.Setenv("MONGO_DB", "")
	t.Setenv("EMBEDDING_DIMENSION", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "agentflow", cfg.MongoDB)
	assert.Equal(t, 768, cfg.EmbeddingDimension)
	assert.Equal(t, 8080, cfg.BindPort)
	assert.False(t, cfg.Debug)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("EMBEDDING_DIMENSION", "1536")
	t.Setenv("DEBUG", "true")
	t.Setenv("BIND_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1536, cfg.EmbeddingDimension)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 9090, cfg.BindPort)
}

func TestExpandEnvVarsWithDefault(t *testing.T) {
	t.Setenv("AGENTFLOW_TEST_VAR", "")
	got := expandEnvVars("${AGENTFLOW_TEST_VAR:-fallback}")
	assert.Equal(t, "fallback", got)

	t.Setenv("AGENTFLOW_TEST_VAR", "set-value")
	got = expandEnvVars("${AGENTFLOW_TEST_VAR:-fallback}")
	assert.Equal(t, "set-value", got)
}
