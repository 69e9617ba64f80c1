package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/config"
	"nexus/internal/nexuserr"
)

func baseConfig() config.Config {
	return config.Config{
		Mode:          config.ModeLocal,
		LLMProvider:   "ollama",
		EmbedProvider: "ollama",
		OllamaHost:    "http://localhost:11434",
	}
}

func TestBuild_LocalModeAllowsOllama(t *testing.T) {
	gen, emb, err := Build(baseConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ollama", gen.BackendTag())
	assert.Equal(t, "ollama", emb.BackendTag())
}

func TestBuild_LocalModeRejectsCloudLLM(t *testing.T) {
	cfg := baseConfig()
	cfg.LLMProvider = "anthropic"
	_, _, err := Build(cfg, nil)
	require.Error(t, err)
	assert.Equal(t, nexuserr.ModeViolation, nexuserr.KindOf(err))
}

func TestBuild_UnknownProvider(t *testing.T) {
	cfg := baseConfig()
	cfg.Mode = config.ModeCloud
	cfg.LLMProvider = "bogus"
	_, _, err := Build(cfg, nil)
	require.Error(t, err)
	assert.Equal(t, nexuserr.UnknownProvider, nexuserr.KindOf(err))
}

func TestBuild_CloudModeMissingCredential(t *testing.T) {
	cfg := baseConfig()
	cfg.Mode = config.ModeCloud
	cfg.LLMProvider = "anthropic"
	_, _, err := Build(cfg, nil)
	require.Error(t, err)
	assert.Equal(t, nexuserr.Unconfigured, nexuserr.KindOf(err))
}

func TestValidateConfiguration_HybridUnsafeWarns(t *testing.T) {
	cfg := baseConfig()
	cfg.Mode = config.ModeHybrid
	cfg.HybridSafeMode = false
	report := ValidateConfiguration(context.Background(), cfg, nil)
	assert.Contains(t, report.Warnings, "HYBRID_SAFE_MODE disabled - full docs may be sent to cloud")
}
