// Package config resolves NEXUS's typed configuration from environment
// variables, overlaying a local .env file on the real process
// environment (godotenv.Overload: a value in .env wins over one already
// set) the way manifold's internal/config/loader.go does, and validates
// the mode/provider invariants once at startup.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"nexus/internal/nexuserr"
)

// Mode governs which providers the router will admit.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeCloud  Mode = "cloud"
	ModeHybrid Mode = "hybrid"
)

// Config is the fully resolved, validated runtime configuration.
type Config struct {
	Mode Mode

	LLMProvider   string
	EmbedProvider string

	ChunkSize    int
	ChunkOverlap int

	HybridSafeMode   bool
	MaxSnippetLength int

	VectorPath    string
	LedgerPath    string
	CacheDir      string
	VectorBackend string
	QdrantURL     string

	AnthropicAPIKey     string
	AnthropicBaseURL    string
	AnthropicModel      string
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	OpenAIModel         string
	GoogleCloudProject  string
	GoogleCloudLocation string
	VertexModel         string
	OllamaHost          string
	OllamaChatModel     string
	OllamaEmbedModel    string

	LogLevel     string
	HTTPAddr     string
	OTelService  string
	OTLPEndpoint string
}

// Load reads configuration from the environment, applying defaults for
// any option not explicitly set. It does not validate; call Validate
// (or rely on the caller doing so once at startup) to enforce the
// fail-fast invariants.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{
		Mode:                Mode(firstNonEmpty(os.Getenv("NEXUS_MODE"), "hybrid")),
		LLMProvider:         firstNonEmpty(os.Getenv("NEXUS_LLM_PROVIDER"), "ollama"),
		EmbedProvider:       firstNonEmpty(os.Getenv("NEXUS_EMBED_PROVIDER"), "ollama"),
		ChunkSize:           envInt("NEXUS_CHUNK_SIZE", 1000),
		ChunkOverlap:        envInt("NEXUS_CHUNK_OVERLAP", 200),
		HybridSafeMode:      envBool("NEXUS_HYBRID_SAFE_MODE", true),
		MaxSnippetLength:    envInt("NEXUS_MAX_SNIPPET_LENGTH", 4000),
		VectorPath:          firstNonEmpty(os.Getenv("NEXUS_VECTOR_PATH"), "./data/vectors"),
		LedgerPath:          firstNonEmpty(os.Getenv("NEXUS_LEDGER_PATH"), "./data/ledger.db"),
		CacheDir:            firstNonEmpty(os.Getenv("NEXUS_CACHE_DIR"), "./data/cache"),
		VectorBackend:       firstNonEmpty(os.Getenv("NEXUS_VECTOR_BACKEND"), "local"),
		QdrantURL:           os.Getenv("QDRANT_URL"),
		AnthropicAPIKey:     os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicBaseURL:    os.Getenv("ANTHROPIC_BASE_URL"),
		AnthropicModel:      firstNonEmpty(os.Getenv("ANTHROPIC_MODEL"), "claude-3-7-sonnet-latest"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:       os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:         firstNonEmpty(os.Getenv("OPENAI_MODEL"), "gpt-4o-mini"),
		GoogleCloudProject:  os.Getenv("GOOGLE_CLOUD_PROJECT"),
		GoogleCloudLocation: firstNonEmpty(os.Getenv("GOOGLE_CLOUD_LOCATION"), "us-central1"),
		VertexModel:         firstNonEmpty(os.Getenv("VERTEX_MODEL"), "gemini-1.5-flash"),
		OllamaHost:          firstNonEmpty(os.Getenv("OLLAMA_HOST"), "http://localhost:11434"),
		OllamaChatModel:     firstNonEmpty(os.Getenv("OLLAMA_CHAT_MODEL"), "llama3.1"),
		OllamaEmbedModel:    firstNonEmpty(os.Getenv("OLLAMA_EMBED_MODEL"), "nomic-embed-text"),
		LogLevel:            firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"),
		HTTPAddr:            firstNonEmpty(os.Getenv("NEXUS_HTTP_ADDR"), ":8080"),
		OTelService:         firstNonEmpty(os.Getenv("OTEL_SERVICE_NAME"), "nexus"),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
	return cfg, nil
}

// Validate enforces the fail-fast rules from the specification's
// configuration section: overlap must be smaller than chunk size, the
// configured mode's credential must be present, and persisted-state
// directories must be creatable.
func (c Config) Validate() error {
	if c.Mode != ModeLocal && c.Mode != ModeCloud && c.Mode != ModeHybrid {
		return nexuserr.New(nexuserr.BadRequest, "unknown mode %q", c.Mode)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return nexuserr.New(nexuserr.BadRequest, "chunk_overlap (%d) must be less than chunk_size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.ChunkSize <= 0 {
		return nexuserr.New(nexuserr.BadRequest, "chunk_size must be > 0")
	}
	if c.ChunkOverlap < 0 {
		return nexuserr.New(nexuserr.BadRequest, "chunk_overlap must be >= 0")
	}
	if c.MaxSnippetLength <= 0 {
		return nexuserr.New(nexuserr.BadRequest, "max_snippet_length must be > 0")
	}
	if c.Mode != ModeLocal {
		if err := c.checkCredential(c.LLMProvider); err != nil {
			return err
		}
		if err := c.checkCredential(c.EmbedProvider); err != nil {
			return err
		}
	}
	for _, dir := range []string{c.VectorPath, filepath.Dir(c.LedgerPath), c.CacheDir} {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nexuserr.Wrap(nexuserr.Unconfigured, err, "cannot create persisted-state directory %q", dir)
		}
	}
	return nil
}

// checkCredential reports an unconfigured error naming the missing
// environment variable when a cloud provider's credential is absent.
// Ollama requires no credential.
func (c Config) checkCredential(provider string) error {
	switch provider {
	case "anthropic":
		if strings.TrimSpace(c.AnthropicAPIKey) == "" {
			return nexuserr.New(nexuserr.Unconfigured, "ANTHROPIC_API_KEY is required for provider %q", provider)
		}
	case "openai":
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			return nexuserr.New(nexuserr.Unconfigured, "OPENAI_API_KEY is required for provider %q", provider)
		}
	case "vertex":
		if strings.TrimSpace(c.GoogleCloudProject) == "" {
			return nexuserr.New(nexuserr.Unconfigured, "GOOGLE_CLOUD_PROJECT is required for provider %q", provider)
		}
	case "ollama":
		// no credential required
	default:
		return nexuserr.New(nexuserr.UnknownProvider, "unknown provider %q", provider)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
