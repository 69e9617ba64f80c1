package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"nexus/internal/ledger"
	"nexus/internal/nexuserr"
	"nexus/internal/observability"
	"nexus/internal/rag"
)

const serviceName = "nexus"
const serviceVersion = "0.1.0"

// Query request bounds per the question/max_results schema: a non-empty,
// bounded-length question and max_results in [1, 10]. defaultMaxResults
// matches the original's Pydantic model default (models.py: Field(default=3)).
const (
	defaultMaxResults = 3
	minMaxResults     = 1
	maxMaxResults     = 10
	minQuestionLen    = 1
	maxQuestionLen    = 5000
)

// validateQueryRequest enforces the question-length and max_results
// bounds rejected at the Pydantic model layer in the original
// (models.py: Field(..., min_length=1, max_length=5000) and
// Field(ge=1, le=10)).
func validateQueryRequest(req rag.QueryRequest) error {
	questionLen := utf8.RuneCountInString(req.Question)
	if questionLen < minQuestionLen || questionLen > maxQuestionLen {
		return nexuserr.New(nexuserr.BadRequest, "question must be between %d and %d characters", minQuestionLen, maxQuestionLen)
	}
	if req.MaxResults < minMaxResults || req.MaxResults > maxMaxResults {
		return nexuserr.New(nexuserr.BadRequest, "max_results must be between %d and %d", minMaxResults, maxMaxResults)
	}
	return nil
}

func (s *Server) handleBanner(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"version": serviceVersion,
		"endpoints": []string{
			"GET /health", "POST /query", "POST /index",
			"GET /workspaces", "POST /workspaces", "GET /runs", "GET /runs/{run_id}",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ready := make(map[string]bool, len(s.pipelines))
	for id, p := range s.pipelines {
		ready[id] = p.Ready()
	}
	s.mu.Unlock()

	documentsIndexed := 0
	for id := range ready {
		stats, err := s.ledger.GetWorkspaceStats(r.Context(), id)
		if err == nil {
			documentsIndexed += stats.FilesProcessedTotal
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"mode":               s.cfg.Mode,
		"llm_provider":       s.factory.LLMProvider.BackendTag(),
		"embed_provider":     s.factory.EmbedProvider.BackendTag(),
		"uptime_seconds":     time.Since(s.startedAt).Seconds(),
		"vector_store_ready": ready,
		"query_count":        s.queryCount.Load(),
		"documents_indexed":  documentsIndexed,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req rag.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.WorkspaceID == "" {
		respondError(w, http.StatusBadRequest, nexuserr.New(nexuserr.BadRequest, "workspace_id is required"))
		return
	}
	if req.MaxResults == 0 {
		req.MaxResults = defaultMaxResults
	}
	if err := validateQueryRequest(req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	pipeline := s.pipelineFor(req.WorkspaceID)
	resp, excerptHashes, err := pipeline.Query(r.Context(), req)
	if err != nil {
		observability.LoggerWithTrace(r.Context()).Error().Err(err).
			Str("workspace_id", req.WorkspaceID).Msg("query_failed")
		respondError(w, statusFromError(err), err)
		return
	}
	s.queryCount.Add(1)
	observability.LoggerWithTrace(r.Context()).Info().
		Str("workspace_id", resp.WorkspaceID).Str("run_id", resp.RunID).
		Int("citations", len(resp.Citations)).Int64("latency_ms", resp.LatencyMs).
		Msg("query_completed")

	if _, err := s.ledger.RecordQueryRun(r.Context(), ledger.QueryRunInput{
		RunID:         resp.RunID,
		Workspace:     resp.WorkspaceID,
		Question:      resp.Question,
		Answer:        resp.Answer,
		CitationCount: len(resp.Citations),
		Model:         resp.Model,
		Provider:      resp.Provider,
		LatencyMs:     resp.LatencyMs,
		ExcerptHashes: excerptHashes,
	}); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req rag.IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.WorkspaceID == "" {
		respondError(w, http.StatusBadRequest, nexuserr.New(nexuserr.BadRequest, "workspace_id is required"))
		return
	}

	pipeline := s.pipelineFor(req.WorkspaceID)
	result, err := pipeline.Index(r.Context(), req)
	if err != nil {
		observability.LoggerWithTrace(r.Context()).Error().Err(err).
			Str("workspace_id", req.WorkspaceID).Msg("index_failed")
		respondError(w, statusFromError(err), err)
		return
	}
	observability.LoggerWithTrace(r.Context()).Info().
		Str("workspace_id", result.WorkspaceID).Int("files_processed", result.FilesProcessed).
		Int("files_skipped", result.FilesSkipped).Int("total_chunks", result.TotalChunks).
		Msg("index_completed")

	sources := make([]string, len(result.DocumentSources))
	for i, src := range result.DocumentSources {
		encoded, _ := json.Marshal(src)
		sources[i] = string(encoded)
	}
	if _, err := s.ledger.RecordIndexRun(r.Context(), ledger.IndexRunInput{
		Workspace:        result.WorkspaceID,
		FilesProcessed:   result.FilesProcessed,
		FilesSkipped:     result.FilesSkipped,
		TotalChunks:      result.TotalChunks,
		ProcessingTimeMs: result.ProcessingTimeMs,
		DocumentSources:  sources,
		EmbedProvider:    s.factory.EmbedProvider.BackendTag(),
	}); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	ids, err := s.listWorkspaceIDs(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		stats, err := s.ledger.GetWorkspaceStats(r.Context(), id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, map[string]any{"workspace_id": id, "stats": stats})
	}
	respondJSON(w, http.StatusOK, map[string]any{"workspaces": out})
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace_id")
	if workspaceID == "" {
		respondError(w, http.StatusBadRequest, nexuserr.New(nexuserr.BadRequest, "workspace_id is required"))
		return
	}
	s.pipelineFor(workspaceID)
	respondJSON(w, http.StatusCreated, map[string]any{
		"workspace_id": workspaceID,
		"path":         s.workspaceDir(workspaceID),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace_id")
	runType := ledger.RunType(r.URL.Query().Get("run_type"))
	if runType == "" {
		runType = ledger.RunTypeAll
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	indexRuns, queryRuns, err := s.ledger.ListRuns(r.Context(), workspaceID, runType, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"index_runs": indexRuns, "query_runs": queryRuns})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	result, err := s.ledger.GetRun(r.Context(), runID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if result == nil {
		respondError(w, http.StatusNotFound, nexuserr.New(nexuserr.NotFound, "run %q not found", runID))
		return
	}

	switch result.RunType {
	case ledger.RunTypeIndex:
		respondJSON(w, http.StatusOK, map[string]any{"run_type": result.RunType, "run": result.IndexRun})
	default:
		respondJSON(w, http.StatusOK, map[string]any{"run_type": result.RunType, "run": result.QueryRun})
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

// statusFromError maps a NEXUS error Kind to an HTTP status per the
// wire protocol's status-code table: 400 client fault, 404 unknown run
// id, 500 everything else.
func statusFromError(err error) int {
	switch nexuserr.KindOf(err) {
	case nexuserr.BadRequest:
		return http.StatusBadRequest
	case nexuserr.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
