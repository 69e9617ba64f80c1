// Package chunker splits document text into fixed-size, overlapping
// windows, generalized from manifold's internal/rag/chunker.fixedChunk
// but windowing on raw character counts (chunk_size/chunk_overlap) per
// the specification rather than a token-count heuristic.
package chunker

import "strings"

// Chunk is one ordered window of text produced from a single document.
type Chunk struct {
	Index int
	Text  string
}

// Split breaks text into contiguous chunks of at most chunkSize
// characters, each overlapping the previous by chunkOverlap characters,
// preferring to cut at a whitespace boundary to avoid mid-word splits.
// Callers are expected to have validated chunkOverlap < chunkSize
// (config.Config.Validate enforces this at startup).
func Split(text string, chunkSize, chunkOverlap int) []Chunk {
	if chunkSize <= 0 {
		return nil
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}

	var out []Chunk
	start := 0
	idx := 0
	for start < len(text) {
		end := start + chunkSize
		if end > len(text) {
			end = len(text)
		} else if i := strings.LastIndex(text[start:end], " "); i > chunkSize/2 {
			end = start + i
		}

		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			out = append(out, Chunk{Index: idx, Text: chunk})
			idx++
		}

		if end == len(text) {
			break
		}

		next := end - chunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}
