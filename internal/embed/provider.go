// Package embed defines the embedding capability every backend (Ollama,
// OpenAI, Vertex) implements, per the provider-capability contract in
// the specification.
package embed

import "context"

// Provider is the embedding capability. embed_query(t) must be
// equivalent to embed_documents([t])[0]; implementations satisfy this
// by routing EmbedQuery through EmbedDocuments with a single-element
// batch.
type Provider interface {
	// EmbedQuery embeds a single piece of text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// EmbedDocuments embeds a batch of texts, sub-batching internally
	// at the backend's provider-imposed limit.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension reports the embedding vector length this backend
	// produces.
	Dimension() int
	// BackendTag is the stable, non-reflective identifier for this
	// backend ("ollama", "openai", "vertex").
	BackendTag() string
	// IsAvailable probes reachability without panicking on failure.
	IsAvailable(ctx context.Context) bool
}

// EmbedQueryViaDocuments implements EmbedQuery in terms of a provider's
// EmbedDocuments, the way every backend in this package satisfies the
// embed_query/embed_documents equivalence invariant.
func EmbedQueryViaDocuments(ctx context.Context, p Provider, text string) ([]float32, error) {
	vecs, err := p.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Batches splits items into chunks of at most size, preserving order.
func Batches(items []string, size int) [][]string {
	if size <= 0 || len(items) <= size {
		return [][]string{items}
	}
	var out [][]string
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}
