package forgeconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[llm]
api_base_url = "https://file.example/v1"
api_key = "file-key"
model_name = "file-model"
`), 0o644))

	t.Run("file values win with no env set", func(t *testing.T) {
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "https://file.example/v1", cfg.LLM.APIBaseURL)
		assert.Equal(t, "file-key", cfg.LLM.APIKey)
	})

	t.Run("env var overrides file value", func(t *testing.T) {
		t.Setenv("FORGE_LLM_API_KEY", "env-key")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "env-key", cfg.LLM.APIKey)
		assert.Equal(t, "file-model", cfg.LLM.ModelName)
	})
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[llm]
api_base_url = "https://example/v1"
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.api_key")
}

func TestLoad_CodingAgentRequiresCommandWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[llm]
api_base_url = "https://example/v1"
api_key = "k"
model_name = "m"

[coding_agent]
enabled = true
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coding_agent.command")
}

func TestEmbeddingConfig_Enabled(t *testing.T) {
	var e EmbeddingConfig
	assert.False(t, e.Enabled())
	e.APIBaseURL = "https://embed.example"
	assert.True(t, e.Enabled())
}
