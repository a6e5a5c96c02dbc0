package embedding

import "context"

// noneBackend is the explicit placeholder: EMBEDDING_BACKEND=none emits a
// fixed zero vector of the configured dimension for every input rather than
// calling out to anything. Semantic search degrades to lexical-only ranking
// against these vectors, but the index still gets populated so every other
// operation (catalog lookups, keyword search, snippets) keeps working.
type noneBackend struct {
	dim int
}

// NewNone returns a Backend that always reports zero-ish vectors.
func NewNone(dim int) Backend {
	if dim <= 0 {
		dim = 64
	}
	return noneBackend{dim: dim}
}

func (b noneBackend) Name() string   { return "none" }
func (b noneBackend) Dimension() int { return b.dim }

func (b noneBackend) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, b.dim)
	}
	return out, nil
}

func (noneBackend) Ping(context.Context) error { return nil }
