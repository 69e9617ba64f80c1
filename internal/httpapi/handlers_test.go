package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/config"
	"nexus/internal/embed"
	"nexus/internal/ledger"
	"nexus/internal/llm"
	"nexus/internal/rag"
	"nexus/internal/vectorstore"
)

type fakeLLM struct{}

func (fakeLLM) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	return "a generated answer", nil
}
func (fakeLLM) Model() string                        { return "fake-model" }
func (fakeLLM) BackendTag() string                   { return "fake" }
func (fakeLLM) IsAvailable(ctx context.Context) bool { return true }

type fakeEmbed struct{}

func (fakeEmbed) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1, 0}
	}
	return out, nil
}
func (f fakeEmbed) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return embed.EmbedQueryViaDocuments(ctx, f, text)
}
func (fakeEmbed) Dimension() int                       { return 3 }
func (fakeEmbed) BackendTag() string                   { return "fake" }
func (fakeEmbed) IsAvailable(ctx context.Context) bool { return true }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	vectorRoot := t.TempDir()
	led, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = led.Close() })

	cfg := config.Config{Mode: config.ModeLocal, VectorPath: vectorRoot}
	factory := PipelineFactory{
		LLMProvider:   fakeLLM{},
		EmbedProvider: fakeEmbed{},
		ChunkSize:     1000,
		ChunkOverlap:  200,
		VectorRoot:    vectorRoot,
		Open:          func(ctx context.Context, dir string) (vectorstore.Store, error) { return vectorstore.OpenLocal(dir) },
		SafeMode:      true,
		MaxSnippet:    4000,
	}
	s := NewServer(cfg, factory, led)
	t.Cleanup(s.Close)
	return s
}

func TestHandleBanner(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "fake", body["llm_provider"])
}

func TestHandleIndexThenQuery_RecordsLedgerRuns(t *testing.T) {
	s := newTestServer(t)

	srcDir := t.TempDir()
	path := filepath.Join(srcDir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("the quick brown fox jumps over the lazy dog"), 0o644))

	indexReq := rag.IndexRequest{Paths: []string{path}, WorkspaceID: "ws1"}
	body, _ := json.Marshal(indexReq)
	req := httptest.NewRequest(http.MethodPost, "/index", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	queryReq := rag.QueryRequest{Question: "what does the fox do?", WorkspaceID: "ws1", MaxResults: 3}
	body, _ = json.Marshal(queryReq)
	req = httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp rag.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "a generated answer", resp.Answer)
	require.NotEmpty(t, resp.RunID)

	req = httptest.NewRequest(http.MethodGet, "/runs/"+resp.RunID, nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleQuery_NotIndexedWorkspaceFails(t *testing.T) {
	s := newTestServer(t)
	queryReq := rag.QueryRequest{Question: "anything", WorkspaceID: "does-not-exist", MaxResults: 3}
	body, _ := json.Marshal(queryReq)
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleQuery_MissingWorkspaceIDIsBadRequest(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(rag.QueryRequest{Question: "q"})
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetRun_UnknownIDIsNotFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/runs/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCreateWorkspace_RejectsEmptyID(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/workspaces", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
