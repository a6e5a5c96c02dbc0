// Package embedding provides the pluggable embedding backends and the
// dispatcher that sanitizes, batches, rate-limits and retries calls against
// them. The HTTP shape is grounded on the teacher's
// internal/embedding/client.go (EmbedText); the deterministic backend is
// grounded on internal/rag/embedder/embedder.go's deterministicEmbedder.
package embedding

import "context"

// Backend is the minimal interface every embedding backend implements. The
// dispatcher owns all cross-cutting concerns (sanitize, batch, retry,
// concurrency limiting) so backends stay simple request/response shims.
type Backend interface {
	Name() string
	Dimension() int
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Ping(ctx context.Context) error
}
