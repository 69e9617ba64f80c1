package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestRedactSnippets_HashesMatchFullExcerptBeforeTruncation(t *testing.T) {
	r := New(true, 10)
	citations := []Citation{
		{Source: "a.txt", Excerpt: strings.Repeat("x", 50)},
		{Source: "b.txt", Page: 2, Excerpt: "short"},
	}
	_, hashes := r.RedactSnippets(citations)
	require.Len(t, hashes, len(citations))
	for i, c := range citations {
		assert.Equal(t, digest(c.Excerpt), hashes[i])
	}
}

func TestRedactSnippets_TruncatesEachSegmentUnderSafeMode(t *testing.T) {
	r := New(true, 100)
	citations := []Citation{
		{Source: "a.txt", Excerpt: strings.Repeat("x", 150)},
		{Source: "b.txt", Excerpt: "short"},
	}
	combined, _ := r.RedactSnippets(citations)
	// 119 + 7 + 21 = 147 chars fits the 2*100 total bound, so no emergency
	// truncation: the first segment is its attribution line plus the
	// excerpt cut to 100 chars and "...".
	segments := strings.Split(combined, "\n\n---\n\n")
	require.Len(t, segments, 2)
	lines := strings.SplitN(segments[0], "\n", 2)
	require.Len(t, lines, 2)
	assert.LessOrEqual(t, len(lines[1]), 100+len("..."))
}

func TestRedactSnippets_SafeModeOffIsIdentityOnExcerpts(t *testing.T) {
	r := New(false, 10)
	excerpt := strings.Repeat("y", 500)
	combined, _ := r.RedactSnippets([]Citation{{Source: "a.txt", Excerpt: excerpt}})
	assert.Contains(t, combined, excerpt)
	assert.NotContains(t, combined, "...")
}

func TestRedactSnippets_EmergencyTruncation(t *testing.T) {
	r := New(true, 5)
	citations := []Citation{
		{Source: "a.txt", Excerpt: strings.Repeat("x", 5)},
		{Source: "b.txt", Excerpt: strings.Repeat("y", 5)},
	}
	combined, _ := r.RedactSnippets(citations)
	assert.Contains(t, combined, "[Context truncated for safety]")
}

func TestValidateOutboundPayload_LengthBoundary(t *testing.T) {
	r := New(true, 10)
	ok := strings.Repeat("a", 100)
	tooLong := strings.Repeat("a", 101)
	assert.True(t, r.ValidateOutboundPayload(ok, ""))
	assert.False(t, r.ValidateOutboundPayload(tooLong, ""))
}

func TestValidateOutboundPayload_SafeModeOffIgnoresLength(t *testing.T) {
	r := New(false, 10)
	assert.True(t, r.ValidateOutboundPayload(strings.Repeat("a", 10000), ""))
}

func TestValidateOutboundPayload_SentinelDetection(t *testing.T) {
	r := New(true, 1000)
	assert.False(t, r.ValidateOutboundPayload("prefix SECRET suffix", "SECRET"))
	assert.True(t, r.ValidateOutboundPayload("prefix safe suffix", "SECRET"))
}
