package documents

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.txt"))
	assert.True(t, Supported("a.MD"))
	assert.True(t, Supported("a.pdf"))
	assert.False(t, Supported("a.docx"))
	assert.False(t, Supported("a"))
}

func TestLoad_TxtRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", doc.Text)
	assert.Equal(t, path, doc.Source.Path)
	assert.NotEmpty(t, doc.Source.ContentHash)
}

func TestLoad_SameFileTwiceSameHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# heading\ncontent"), 0o644))

	first, err := Load(path)
	require.NoError(t, err)
	second, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, first.Source.ContentHash, second.Source.ContentHash)
	assert.Equal(t, first.Source.ModTime, second.Source.ModTime)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/path/doc.txt")
	assert.Error(t, err)
}

func TestExtractPDFText_RecoversLiteralStrings(t *testing.T) {
	raw := []byte("stream\nBT (Hello) Tj (World) Tj ET\nendstream")
	text := extractPDFText(raw)
	assert.Contains(t, text, "Hello")
	assert.Contains(t, text, "World")
}
