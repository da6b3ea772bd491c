package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerSkipsBackendsMissingCredentials(t *testing.T) {
	m, err := NewManager([]BackendConfig{
		{Backend: "openai", Model: "gpt-4o"},           // no APIKey, skipped
		{Backend: "ollama", Model: "llama3"},            // no credential required
		{Backend: "anthropic", Model: "claude-3-5", APIKey: "sk-ant-test"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, m.Count())

	_, err = m.Resolve("openai", "gpt-4o")
	assert.Error(t, err)

	adapter, err := m.Resolve("ollama", "llama3")
	require.NoError(t, err)
	assert.Equal(t, "ollama/llama3", adapter.Name())
}

func TestManagerIsAvailableReportsMissingBackend(t *testing.T) {
	m, err := NewManager([]BackendConfig{{Backend: "ollama", Model: "llama3"}})
	require.NoError(t, err)

	ok, reason := m.IsAvailable("ollama")
	assert.True(t, ok)
	assert.Empty(t, reason)

	ok, reason = m.IsAvailable("gemini")
	assert.False(t, ok)
	assert.NotEmpty(t, reason)
}

func TestNewManagerRejectsUnknownBackend(t *testing.T) {
	_, err := NewManager([]BackendConfig{{Backend: "bogus", Model: "x"}})
	assert.Error(t, err)
}
