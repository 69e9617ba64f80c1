// Package router builds the generation and embedding providers named by
// configuration, enforcing the mode-based admissibility rules NEXUS
// inherits from its Python original's ProviderRouter.
package router

import (
	"context"
	"net/http"

	"nexus/internal/config"
	"nexus/internal/embed"
	embedollama "nexus/internal/embed/ollama"
	embedopenai "nexus/internal/embed/openai"
	embedvertex "nexus/internal/embed/vertex"
	"nexus/internal/llm"
	"nexus/internal/llm/anthropic"
	"nexus/internal/llm/ollama"
	"nexus/internal/llm/openai"
	"nexus/internal/llm/vertex"
	"nexus/internal/nexuserr"
)

// Build returns the generation and embedding providers named by cfg,
// rejecting combinations the configured mode disallows. Providers are
// constructed lazily underneath (see internal/llm, internal/embed): no
// network call happens here.
func Build(cfg config.Config, httpClient *http.Client) (llm.Provider, embed.Provider, error) {
	gen, err := buildGeneration(cfg, httpClient)
	if err != nil {
		return nil, nil, err
	}
	emb, err := buildEmbedding(cfg, httpClient)
	if err != nil {
		return nil, nil, err
	}
	return gen, emb, nil
}

func buildGeneration(cfg config.Config, httpClient *http.Client) (llm.Provider, error) {
	provider := cfg.LLMProvider
	if cfg.Mode == config.ModeLocal && provider != "ollama" {
		return nil, nexuserr.New(nexuserr.ModeViolation,
			"LOCAL mode requires Ollama provider, got: %s. Set NEXUS_LLM_PROVIDER=ollama or change NEXUS_MODE.", provider)
	}
	switch provider {
	case "ollama":
		return ollama.New(cfg.OllamaHost, cfg.OllamaChatModel, httpClient), nil
	case "anthropic":
		return anthropic.New(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL, cfg.AnthropicModel, httpClient)
	case "openai":
		return openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, httpClient)
	case "vertex":
		return vertex.New(cfg.GoogleCloudProject, cfg.GoogleCloudLocation, cfg.VertexModel)
	default:
		return nil, nexuserr.New(nexuserr.UnknownProvider, "unknown LLM provider: %s. Valid options: ollama, anthropic, openai, vertex", provider)
	}
}

func buildEmbedding(cfg config.Config, httpClient *http.Client) (embed.Provider, error) {
	provider := cfg.EmbedProvider
	if cfg.Mode == config.ModeLocal && provider != "ollama" {
		return nil, nexuserr.New(nexuserr.ModeViolation,
			"LOCAL mode requires Ollama embeddings, got: %s. Set NEXUS_EMBED_PROVIDER=ollama or change NEXUS_MODE.", provider)
	}
	switch provider {
	case "ollama":
		return embedollama.New(cfg.OllamaHost, cfg.OllamaEmbedModel, httpClient), nil
	case "openai":
		return embedopenai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, "", httpClient)
	case "vertex":
		return embedvertex.New(cfg.GoogleCloudProject, cfg.GoogleCloudLocation, "")
	default:
		return nil, nexuserr.New(nexuserr.UnknownProvider, "unknown Embedding provider: %s. Valid options: ollama, openai, vertex", provider)
	}
}

// Report is the shape returned by ValidateConfiguration, mirroring the
// dict the original router.py's validate_configuration returns.
type Report struct {
	Valid          bool     `json:"valid"`
	Mode           string   `json:"mode"`
	LLMProvider    string   `json:"llm_provider"`
	EmbedProvider  string   `json:"embed_provider"`
	LLMAvailable   bool     `json:"llm_available"`
	EmbedAvailable bool     `json:"embed_available"`
	SafetyMode     string   `json:"safety_mode,omitempty"`
	Warnings       []string `json:"warnings"`
	Errors         []string `json:"errors"`
}

// ValidateConfiguration probes both providers and reports their
// reachability alongside mode-specific warnings, without failing
// startup: an unreachable provider is a warning, a misconfigured one is
// an error.
func ValidateConfiguration(ctx context.Context, cfg config.Config, httpClient *http.Client) Report {
	report := Report{
		Valid:         true,
		Mode:          string(cfg.Mode),
		LLMProvider:   cfg.LLMProvider,
		EmbedProvider: cfg.EmbedProvider,
		Warnings:      []string{},
		Errors:        []string{},
	}

	if gen, err := buildGeneration(cfg, httpClient); err != nil {
		report.Valid = false
		report.Errors = append(report.Errors, "LLM provider error: "+err.Error())
	} else {
		report.LLMAvailable = gen.IsAvailable(ctx)
		if !report.LLMAvailable {
			report.Warnings = append(report.Warnings, "LLM provider "+cfg.LLMProvider+" not available")
		}
	}

	if emb, err := buildEmbedding(cfg, httpClient); err != nil {
		report.Valid = false
		report.Errors = append(report.Errors, "Embedding provider error: "+err.Error())
	} else {
		report.EmbedAvailable = emb.IsAvailable(ctx)
		if !report.EmbedAvailable {
			report.Warnings = append(report.Warnings, "Embedding provider "+cfg.EmbedProvider+" not available")
		}
	}

	if cfg.Mode == config.ModeHybrid {
		if cfg.HybridSafeMode {
			report.SafetyMode = "HYBRID SAFE (docs local, snippets only to cloud)"
		} else {
			report.Warnings = append(report.Warnings, "HYBRID_SAFE_MODE disabled - full docs may be sent to cloud")
		}
	}

	return report
}
