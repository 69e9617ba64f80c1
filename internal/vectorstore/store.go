// Package vectorstore abstracts NEXUS's vector-store handle: the
// specification treats the ANN engine itself as opaque, so this package
// supplies just enough of a concrete instance (a local JSONL-backed
// cosine search, and a Qdrant-backed alternative) to exercise the rest
// of the pipeline end to end.
package vectorstore

import "context"

// Chunk is the minimal unit vectorstore persists: text plus enough
// provenance to reconstruct a Citation on Search.
type Chunk struct {
	ID     string
	Text   string
	Source string
	Page   int
	Index  int
}

// Result is one ranked hit from Search.
type Result struct {
	Chunk Chunk
	Score float64
}

// Store is the vector-store handle a Pipeline holds per workspace.
type Store interface {
	// Add upserts chunks and their corresponding vectors (same order,
	// same length).
	Add(ctx context.Context, chunks []Chunk, vectors [][]float32) error
	// Search returns up to k nearest neighbors to vector, ranked by
	// descending similarity.
	Search(ctx context.Context, vector []float32, k int) ([]Result, error)
	// Ready reports whether the store has a populated, durable
	// partition (per §3's invariant: a workspace id always matches
	// exactly one vector-store partition on disk, or a not-yet-created
	// one).
	Ready() bool
	// Close releases any held resources (file handles, network
	// connections).
	Close() error
}
