// Package rag implements the per-workspace indexing and querying
// pipeline: document loading, chunking, embedding, vector-store
// upsert/search, policy redaction, prompt assembly, and generation.
// Structurally grounded on manifold/internal/rag/service.Service — an
// options-constructed struct wired to its collaborators with Ingest
// and Retrieve methods — generalized here to Index and Query over a
// single workspace's vector-store partition instead of a shared
// multi-tenant search/vector/graph trio.
package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"nexus/internal/chunker"
	"nexus/internal/documents"
	"nexus/internal/embed"
	"nexus/internal/llm"
	"nexus/internal/nexuserr"
	"nexus/internal/policy"
	"nexus/internal/vectorstore"
)

// promptTemplate is the fixed prompt format; the context and question
// placeholders are substituted verbatim, with no further escaping.
const promptTemplate = `You are NEXUS, an autonomous document intelligence agent.
Use the following context to answer the question accurately and
concisely. If you don't know, say so.

Context: %s

Question: %s

Answer:`

// Citation is a retrieval result returned to the caller and fed to the
// redactor.
type Citation struct {
	Source         string  `json:"source"`
	Page           int     `json:"page,omitempty"`
	Excerpt        string  `json:"excerpt"`
	RelevanceScore float64 `json:"relevance_score"`
	ContentHash    string  `json:"content_hash"`
}

// IndexRequest names the files to ingest into a workspace.
type IndexRequest struct {
	Paths        []string `json:"paths"`
	WorkspaceID  string   `json:"workspace_id"`
	ForceReindex bool     `json:"force_reindex"`
}

// IndexResult reports what index_documents actually did.
type IndexResult struct {
	WorkspaceID      string             `json:"workspace_id"`
	FilesProcessed   int                `json:"files_processed"`
	FilesSkipped     int                `json:"files_skipped"`
	TotalChunks      int                `json:"total_chunks"`
	ProcessingTimeMs int64              `json:"processing_time_ms"`
	DocumentSources  []documents.Source `json:"document_sources"`
}

// QueryRequest is a bounded natural-language question against a
// workspace's indexed documents.
type QueryRequest struct {
	Question    string `json:"question"`
	WorkspaceID string `json:"workspace_id"`
	MaxResults  int    `json:"max_results"`
}

// QueryResponse is the generated answer plus its supporting citations.
type QueryResponse struct {
	RunID       string     `json:"run_id"`
	WorkspaceID string     `json:"workspace_id"`
	Question    string     `json:"question"`
	Answer      string     `json:"answer"`
	Citations   []Citation `json:"citations"`
	Model       string     `json:"model"`
	Provider    string     `json:"provider"`
	LatencyMs   int64      `json:"latency_ms"`
	Timestamp   time.Time  `json:"timestamp"`
}

// Clock abstracts time.Now for deterministic tests, per manifold's
// service.Clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// StoreOpener constructs a vectorstore.Store rooted at dir, creating it
// from scratch if absent. The pipeline calls it at most once per
// workspace, on the transition out of the empty/closed-on-disk states.
type StoreOpener func(ctx context.Context, dir string) (vectorstore.Store, error)

// Pipeline is the per-workspace RAG object: a generation capability, an
// embedding capability, a redactor, and a lazily bound vector-store
// handle rooted at <root>/<workspace_id>.
type Pipeline struct {
	workspaceID string
	root        string

	llmProvider   llm.Provider
	embedProvider embed.Provider
	redactor      *policy.Redactor
	chunkSize     int
	chunkOverlap  int

	open  StoreOpener
	store vectorstore.Store // nil until first successful index/open
	clock Clock
}

// Option configures a Pipeline during construction.
type Option func(*Pipeline)

// WithClock overrides the pipeline's time source.
func WithClock(c Clock) Option { return func(p *Pipeline) { p.clock = c } }

// New constructs a workspace's Pipeline. The vector-store handle is not
// opened here: the first Query or Index call tests whether
// <root>/<workspaceID> exists and is non-empty and opens it lazily if
// so, leaving the handle null otherwise.
func New(workspaceID, root string, llmProvider llm.Provider, embedProvider embed.Provider, redactor *policy.Redactor, chunkSize, chunkOverlap int, open StoreOpener, opts ...Option) *Pipeline {
	p := &Pipeline{
		workspaceID:   workspaceID,
		root:          root,
		llmProvider:   llmProvider,
		embedProvider: embedProvider,
		redactor:      redactor,
		chunkSize:     chunkSize,
		chunkOverlap:  chunkOverlap,
		open:          open,
		clock:         systemClock{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Pipeline) dir() string { return filepath.Join(p.root, p.workspaceID) }

// ensureStore binds p.store if it is still null: closed-on-disk → open
// when the partition directory already holds data, else the handle
// stays null until Index creates it.
func (p *Pipeline) ensureStore(ctx context.Context) error {
	if p.store != nil {
		return nil
	}
	entries, err := os.ReadDir(p.dir())
	if err != nil || len(entries) == 0 {
		return nil // empty state: no partition on disk yet
	}
	store, err := p.open(ctx, p.dir())
	if err != nil {
		return nexuserr.Wrap(nexuserr.Unrecoverable, err, "open vector store for workspace %q", p.workspaceID)
	}
	p.store = store
	return nil
}

// Ready reports whether this workspace has a bound vector-store handle.
func (p *Pipeline) Ready() bool { return p.store != nil }

// Index implements index_documents: load, record, chunk, embed, and
// upsert each path, skipping missing or unsupported ones.
func (p *Pipeline) Index(ctx context.Context, req IndexRequest) (IndexResult, error) {
	start := p.clock.Now()
	if err := p.ensureStore(ctx); err != nil {
		return IndexResult{}, err
	}

	var sources []documents.Source
	var allChunks []vectorstore.Chunk
	var allTexts []string
	filesProcessed, filesSkipped := 0, 0

	for _, path := range req.Paths {
		if !documents.Supported(path) {
			filesSkipped++
			continue
		}
		doc, err := documents.Load(path)
		if err != nil {
			filesSkipped++
			continue
		}
		sources = append(sources, doc.Source)
		filesProcessed++

		chunks := chunker.Split(doc.Text, p.chunkSize, p.chunkOverlap)
		for _, c := range chunks {
			id := fmt.Sprintf("%s:%d", doc.Source.Path, c.Index)
			allChunks = append(allChunks, vectorstore.Chunk{
				ID:     id,
				Text:   c.Text,
				Source: doc.Source.Path,
				Index:  c.Index,
			})
			allTexts = append(allTexts, c.Text)
		}
	}

	if len(allChunks) > 0 {
		vectors, err := p.embedProvider.EmbedDocuments(ctx, allTexts)
		if err != nil {
			return IndexResult{}, err
		}
		if p.store == nil {
			store, err := p.open(ctx, p.dir())
			if err != nil {
				return IndexResult{}, nexuserr.Wrap(nexuserr.Unrecoverable, err, "create vector store for workspace %q", p.workspaceID)
			}
			p.store = store
		}
		if err := p.store.Add(ctx, allChunks, vectors); err != nil {
			return IndexResult{}, nexuserr.Wrap(nexuserr.Unrecoverable, err, "upsert chunks for workspace %q", p.workspaceID)
		}
	}

	elapsed := p.clock.Now().Sub(start)
	return IndexResult{
		WorkspaceID:      p.workspaceID,
		FilesProcessed:   filesProcessed,
		FilesSkipped:     filesSkipped,
		TotalChunks:      len(allChunks),
		ProcessingTimeMs: elapsed.Milliseconds(),
		DocumentSources:  sources,
	}, nil
}

// Query implements query: fails not_indexed on an unbound handle,
// retrieves, redacts, assembles the fixed prompt, validates it, and
// invokes generation.
func (p *Pipeline) Query(ctx context.Context, req QueryRequest) (QueryResponse, []string, error) {
	start := p.clock.Now()
	if err := p.ensureStore(ctx); err != nil {
		return QueryResponse{}, nil, err
	}
	if p.store == nil {
		return QueryResponse{}, nil, nexuserr.New(nexuserr.NotIndexed, "workspace %q has not been indexed", p.workspaceID)
	}

	qvec, err := p.embedProvider.EmbedQuery(ctx, req.Question)
	if err != nil {
		return QueryResponse{}, nil, err
	}
	hits, err := p.store.Search(ctx, qvec, req.MaxResults)
	if err != nil {
		return QueryResponse{}, nil, nexuserr.Wrap(nexuserr.Unrecoverable, err, "search workspace %q", p.workspaceID)
	}

	citations := make([]Citation, len(hits))
	policyCitations := make([]policy.Citation, len(hits))
	for i, hit := range hits {
		citations[i] = Citation{
			Source:         hit.Chunk.Source,
			Page:           hit.Chunk.Page,
			Excerpt:        hit.Chunk.Text,
			RelevanceScore: 1.0 / float64(i+1),
		}
		policyCitations[i] = policy.Citation{
			Source:  hit.Chunk.Source,
			Page:    hit.Chunk.Page,
			Excerpt: hit.Chunk.Text,
		}
	}

	safeContext, excerptHashes := p.redactor.RedactSnippets(policyCitations)
	for i := range citations {
		citations[i].ContentHash = excerptHashes[i]
	}

	prompt := fmt.Sprintf(promptTemplate, safeContext, req.Question)
	if !p.redactor.ValidateOutboundPayload(prompt, "") {
		return QueryResponse{}, nil, nexuserr.New(nexuserr.PolicyViolation, "outbound payload for workspace %q failed validation", p.workspaceID)
	}

	answer, err := p.llmProvider.Generate(ctx, llm.GenerateRequest{Prompt: prompt})
	if err != nil {
		return QueryResponse{}, nil, err
	}

	for i := range citations {
		citations[i].Excerpt = truncateDisplay(citations[i].Excerpt, 200)
	}

	now := p.clock.Now()
	resp := QueryResponse{
		RunID:       uuid.NewString(),
		WorkspaceID: p.workspaceID,
		Question:    req.Question,
		Answer:      answer,
		Citations:   citations,
		Model:       p.llmProvider.Model(),
		Provider:    p.llmProvider.BackendTag(),
		LatencyMs:   now.Sub(start).Milliseconds(),
		Timestamp:   now,
	}
	return resp, excerptHashes, nil
}

func truncateDisplay(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
