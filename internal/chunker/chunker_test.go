package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_ProducesOverlappingWindows(t *testing.T) {
	text := strings.Repeat("a", 2500)
	chunks := Split(text, 1000, 200)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 1000)
		assert.Equal(t, i, c.Index)
	}
}

func TestSplit_ShortTextProducesSingleChunk(t *testing.T) {
	chunks := Split("hello world", 1000, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0].Text)
}

func TestSplit_EmptyTextProducesNoChunks(t *testing.T) {
	assert.Empty(t, Split("", 1000, 200))
}

func TestSplit_PrefersWhitespaceBoundary(t *testing.T) {
	text := strings.Repeat("word ", 50) // 250 chars, many spaces
	chunks := Split(text, 60, 10)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.False(t, strings.HasPrefix(c.Text, " "))
	}
}
