package rag

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/embed"
	"nexus/internal/llm"
	"nexus/internal/nexuserr"
	"nexus/internal/policy"
	"nexus/internal/vectorstore"
)

type fakeLLM struct {
	lastPrompt string
	answer     string
}

func (f *fakeLLM) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	f.lastPrompt = req.Prompt
	return f.answer, nil
}
func (f *fakeLLM) Model() string                        { return "fake-model" }
func (f *fakeLLM) BackendTag() string                   { return "fake" }
func (f *fakeLLM) IsAvailable(ctx context.Context) bool { return true }

// fakeEmbed returns a fixed-dimension vector derived from text length,
// so distinct chunk texts land at distinguishable points.
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

func localOpener(ctx context.Context, dir string) (vectorstore.Store, error) {
	return vectorstore.OpenLocal(dir)
}

func newTestPipeline(t *testing.T, llmProvider llm.Provider) (*Pipeline, string) {
	t.Helper()
	root := t.TempDir()
	redactor := policy.New(true, 4000)
	p := New("ws1", root, llmProvider, fakeEmbed{}, redactor, 1000, 200, localOpener)
	return p, root
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestQuery_FailsNotIndexedOnEmptyWorkspace(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeLLM{})
	_, _, err := p.Query(context.Background(), QueryRequest{Question: "what?", WorkspaceID: "ws1", MaxResults: 3})
	require.Error(t, err)
	assert.Equal(t, nexuserr.NotIndexed, nexuserr.KindOf(err))
}

func TestIndex_SkipsMissingAndUnsupportedPaths(t *testing.T) {
	srcDir := t.TempDir()
	txt := writeFile(t, srcDir, "a.txt", "hello world, this is a document about cats.")

	p, _ := newTestPipeline(t, &fakeLLM{})
	result, err := p.Index(context.Background(), IndexRequest{
		Paths:       []string{txt, filepath.Join(srcDir, "missing.txt"), filepath.Join(srcDir, "a.bin")},
		WorkspaceID: "ws1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesProcessed)
	assert.Equal(t, 2, result.FilesSkipped)
	assert.Greater(t, result.TotalChunks, 0)
	assert.True(t, p.Ready())
}

func TestIndexThenQuery_ReturnsCitationsAndAnswer(t *testing.T) {
	srcDir := t.TempDir()
	txt := writeFile(t, srcDir, "a.txt", "cats are independent animals that sleep a lot during the day.")

	fake := &fakeLLM{answer: "Cats sleep a lot."}
	p, _ := newTestPipeline(t, fake)

	_, err := p.Index(context.Background(), IndexRequest{Paths: []string{txt}, WorkspaceID: "ws1"})
	require.NoError(t, err)

	resp, hashes, err := p.Query(context.Background(), QueryRequest{Question: "do cats sleep a lot?", WorkspaceID: "ws1", MaxResults: 3})
	require.NoError(t, err)
	assert.Equal(t, "Cats sleep a lot.", resp.Answer)
	require.Len(t, resp.Citations, len(hashes))
	assert.Equal(t, len(resp.Citations), len(hashes))
	if len(resp.Citations) > 1 {
		assert.Greater(t, resp.Citations[0].RelevanceScore, resp.Citations[1].RelevanceScore)
	}
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, "fake-model", resp.Model)
	assert.Equal(t, "fake", resp.Provider)
	assert.Contains(t, fake.lastPrompt, "You are NEXUS")
	assert.Contains(t, fake.lastPrompt, "do cats sleep a lot?")
}

func TestQuery_CitationExcerptTruncatedTo200Chars(t *testing.T) {
	srcDir := t.TempDir()
	long := ""
	for i := 0; i < 500; i++ {
		long += "x"
	}
	txt := writeFile(t, srcDir, "a.txt", long)

	p, _ := newTestPipeline(t, &fakeLLM{answer: "ok"})
	_, err := p.Index(context.Background(), IndexRequest{Paths: []string{txt}, WorkspaceID: "ws1"})
	require.NoError(t, err)

	resp, _, err := p.Query(context.Background(), QueryRequest{Question: "q", WorkspaceID: "ws1", MaxResults: 1})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Citations)
	assert.LessOrEqual(t, len(resp.Citations[0].Excerpt), 200)
}

func TestQuery_PolicyViolationWhenOutboundPayloadTooLarge(t *testing.T) {
	srcDir := t.TempDir()
	long := ""
	for i := 0; i < 50000; i++ {
		long += "x"
	}
	txt := writeFile(t, srcDir, "a.txt", long)

	redactor := policy.New(false, 4000) // safe mode off: no per-snippet truncation, payload check still runs length bound only when safe mode is on
	root := t.TempDir()
	p := New("ws1", root, &fakeLLM{answer: "ok"}, fakeEmbed{}, redactor, 100000, 0, localOpener)
	_, err := p.Index(context.Background(), IndexRequest{Paths: []string{txt}, WorkspaceID: "ws1"})
	require.NoError(t, err)

	_, _, err = p.Query(context.Background(), QueryRequest{Question: "q", WorkspaceID: "ws1", MaxResults: 1})
	require.NoError(t, err) // safe mode off means no length bound is enforced

	strictRedactor := policy.New(true, 10)
	p2 := New("ws1", root, &fakeLLM{answer: "ok"}, fakeEmbed{}, strictRedactor, 100000, 0, localOpener)
	_, _, err = p2.Query(context.Background(), QueryRequest{Question: "q", WorkspaceID: "ws1", MaxResults: 1})
	require.Error(t, err)
	assert.Equal(t, nexuserr.PolicyViolation, nexuserr.KindOf(err))
}
