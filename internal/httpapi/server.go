// Package httpapi exposes NEXUS's stateless HTTP dispatcher: one
// mutex-guarded pipeline per workspace, materialised lazily on first
// use, and the run ledger's query surface. Structurally grounded on
// manifold/internal/httpapi.Server's mux + registerRoutes() shape,
// swapped from that package's playground endpoints to the
// query/index/workspaces/runs table.
package httpapi

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"nexus/internal/config"
	"nexus/internal/embed"
	"nexus/internal/ledger"
	"nexus/internal/llm"
	"nexus/internal/policy"
	"nexus/internal/rag"
)

// PipelineFactory holds the generation/embedding providers (built once
// at startup by the router) and the settings shared by every
// workspace's pipeline, and builds each workspace's pipeline from them,
// so the Server never imports provider backends directly.
type PipelineFactory struct {
	LLMProvider   llm.Provider
	EmbedProvider embed.Provider
	ChunkSize     int
	ChunkOverlap  int
	VectorRoot    string
	Open          rag.StoreOpener
	SafeMode      bool
	MaxSnippet    int
}

func (f PipelineFactory) build(workspaceID string) *rag.Pipeline {
	redactor := policy.New(f.SafeMode, f.MaxSnippet)
	return rag.New(workspaceID, f.VectorRoot, f.LLMProvider, f.EmbedProvider, redactor, f.ChunkSize, f.ChunkOverlap, f.Open)
}

// Server is NEXUS's HTTP surface.
type Server struct {
	cfg     config.Config
	factory PipelineFactory
	ledger  *ledger.Ledger

	mu         sync.Mutex
	pipelines  map[string]*rag.Pipeline
	queryCount atomic.Int64

	startedAt time.Time
	mux       *http.ServeMux
	limiter   *rateLimiter
	stopLimit func()
}

// NewServer constructs a Server wired to cfg, a provider factory, and
// the process-wide ledger.
func NewServer(cfg config.Config, factory PipelineFactory, led *ledger.Ledger) *Server {
	limiter, stop := newRateLimiter(defaultRateLimit, defaultRateBurst)
	s := &Server{
		cfg:       cfg,
		factory:   factory,
		ledger:    led,
		pipelines: make(map[string]*rag.Pipeline),
		startedAt: time.Now(),
		mux:       http.NewServeMux(),
		limiter:   limiter,
		stopLimit: stop,
	}
	s.registerRoutes()
	return s
}

// Close stops the rate limiter's background eviction goroutine.
func (s *Server) Close() { s.stopLimit() }

// ServeHTTP satisfies http.Handler, instrumented with OTel HTTP
// tracing the way manifold's daemons wrap their muxes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	otelhttp.NewHandler(s.limiter.middleware(s.mux), "nexus.http").ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleBanner)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /query", s.handleQuery)
	s.mux.HandleFunc("POST /index", s.handleIndex)
	s.mux.HandleFunc("GET /workspaces", s.handleListWorkspaces)
	s.mux.HandleFunc("POST /workspaces", s.handleCreateWorkspace)
	s.mux.HandleFunc("GET /runs", s.handleListRuns)
	s.mux.HandleFunc("GET /runs/{run_id}", s.handleGetRun)
}

// pipelineFor returns the workspace's pipeline, materialising it under
// lock on first access. The map insert is the only synchronisation
// point; the pipeline's own vector-store handle governs concurrent
// reads/writes once built.
func (s *Server) pipelineFor(workspaceID string) *rag.Pipeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pipelines[workspaceID]; ok {
		return p
	}
	p := s.factory.build(workspaceID)
	s.pipelines[workspaceID] = p
	return p
}

func (s *Server) workspaceDir(workspaceID string) string {
	return filepath.Join(s.cfg.VectorPath, workspaceID)
}

// listWorkspaceIDs enumerates workspace-partition directories under the
// configured vector root.
func (s *Server) listWorkspaceIDs(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.cfg.VectorPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
