package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/nexuserr"
)

func baseConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		Mode:             ModeLocal,
		LLMProvider:      "ollama",
		EmbedProvider:    "ollama",
		ChunkSize:        1000,
		ChunkOverlap:     200,
		MaxSnippetLength: 4000,
		VectorPath:       dir + "/vectors",
		LedgerPath:       dir + "/ledger.db",
		CacheDir:         dir + "/cache",
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, baseConfig(t).Validate())
}

func TestValidate_OverlapEqualsChunkSize(t *testing.T) {
	cfg := baseConfig(t)
	cfg.ChunkOverlap = cfg.ChunkSize
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, nexuserr.BadRequest, nexuserr.KindOf(err))
}

func TestValidate_OverlapExceedsChunkSize(t *testing.T) {
	cfg := baseConfig(t)
	cfg.ChunkOverlap = cfg.ChunkSize + 1
	require.Error(t, cfg.Validate())
}

func TestValidate_CloudModeRequiresCredential(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Mode = ModeCloud
	cfg.LLMProvider = "anthropic"
	cfg.EmbedProvider = "ollama"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, nexuserr.Unconfigured, nexuserr.KindOf(err))
}

func TestValidate_CloudModeWithCredentialOK(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Mode = ModeCloud
	cfg.LLMProvider = "anthropic"
	cfg.AnthropicAPIKey = "sk-test"
	require.NoError(t, cfg.Validate())
}

func TestValidate_UnknownMode(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Mode = "bogus"
	require.Error(t, cfg.Validate())
}
