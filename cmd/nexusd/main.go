// Command nexusd is NEXUS's HTTP daemon: it loads configuration,
// validates the mode/provider invariants, opens the run ledger, builds
// the provider router, and serves the query/index/workspaces/runs API
// until an interrupt or terminate signal arrives. Wiring order follows
// agentd/main.go's load-config, init-logging, init-otel, build-client,
// build-providers, serve sequence.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"nexus/internal/config"
	"nexus/internal/ledger"
	"nexus/internal/observability"
	"nexus/internal/rag"
	"nexus/internal/router"
	"nexus/internal/vectorstore"

	"nexus/internal/httpapi"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("example.env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	observability.InitLogger("", cfg.LogLevel, cfg.OTLPEndpoint != "")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logResolvedConfig(cfg)

	shutdownOTel, err := observability.InitOTel(context.Background(), cfg)
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without observability")
		shutdownOTel = func(context.Context) error { return nil }
	}
	defer func() { _ = shutdownOTel(context.Background()) }()

	httpClient := observability.NewHTTPClient(nil)

	gen, emb, err := router.Build(cfg, httpClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build providers")
	}

	report := router.ValidateConfiguration(context.Background(), cfg, httpClient)
	for _, w := range report.Warnings {
		log.Warn().Msg(w)
	}

	led, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open ledger")
	}
	defer func() { _ = led.Close() }()

	factory := httpapi.PipelineFactory{
		LLMProvider:   gen,
		EmbedProvider: emb,
		ChunkSize:     cfg.ChunkSize,
		ChunkOverlap:  cfg.ChunkOverlap,
		VectorRoot:    cfg.VectorPath,
		Open:          storeOpener(cfg),
		SafeMode:      cfg.HybridSafeMode,
		MaxSnippet:    cfg.MaxSnippetLength,
	}

	server := httpapi.NewServer(cfg, factory, led)
	defer server.Close()

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("nexusd listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// logResolvedConfig emits the startup configuration at debug level with
// credential fields redacted, so an operator auditing a log bundle can
// see which mode/providers/paths a run used without the log leaking a
// cloud provider's API key.
func logResolvedConfig(cfg config.Config) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	log.Debug().RawJSON("config", observability.RedactJSON(raw)).Msg("resolved configuration")
}

// storeOpener picks the vectorstore backend named by cfg.VectorBackend,
// defaulting to the local JSONL partition.
func storeOpener(cfg config.Config) rag.StoreOpener {
	switch cfg.VectorBackend {
	case "qdrant":
		return func(ctx context.Context, dir string) (vectorstore.Store, error) {
			collection := workspaceCollectionName(dir)
			return vectorstore.OpenQdrant(ctx, cfg.QdrantURL, collection, 0)
		}
	default:
		return func(ctx context.Context, dir string) (vectorstore.Store, error) {
			return vectorstore.OpenLocal(dir)
		}
	}
}

// workspaceCollectionName derives a Qdrant collection name from a
// workspace's partition directory (its base name, the workspace id).
func workspaceCollectionName(dir string) string {
	base := dir
	for i := len(dir) - 1; i >= 0; i-- {
		if dir[i] == '/' {
			base = dir[i+1:]
			break
		}
	}
	return "nexus_" + base
}
