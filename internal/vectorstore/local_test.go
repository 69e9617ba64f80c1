package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_EmptyDirStartsNotReady(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ws1")
	l, err := OpenLocal(dir)
	require.NoError(t, err)
	assert.False(t, l.Ready())
}

func TestLocal_AddThenSearchRanksByCosine(t *testing.T) {
	dir := t.TempDir()
	l, err := OpenLocal(dir)
	require.NoError(t, err)

	chunks := []Chunk{
		{ID: "a", Text: "alpha", Source: "f.txt", Index: 0},
		{ID: "b", Text: "beta", Source: "f.txt", Index: 1},
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
	}
	require.NoError(t, l.Add(context.Background(), chunks, vectors))
	assert.True(t, l.Ready())

	results, err := l.Search(context.Background(), []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Chunk.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestLocal_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	l1, err := OpenLocal(dir)
	require.NoError(t, err)
	require.NoError(t, l1.Add(context.Background(), []Chunk{{ID: "a", Text: "x"}}, [][]float32{{1, 2, 3}}))

	l2, err := OpenLocal(dir)
	require.NoError(t, err)
	assert.True(t, l2.Ready())

	results, err := l2.Search(context.Background(), []float32{1, 2, 3}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Chunk.ID)
}
