package embedding

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"docmind/internal/apperr"
	"docmind/internal/obs"
)

// defaultMaxInputRunes bounds a single input's length before it reaches a
// backend when the caller configures no cap of its own. Longer inputs are
// truncated rather than rejected, matching the spec's "sanitize -> truncate"
// stage ordering.
const defaultMaxInputRunes = 2000

// semaphoreWait bounds how long EmbedBatch will wait to acquire a
// concurrency slot before giving up with a Retriable error.
const semaphoreWait = 300 * time.Second

// Dispatcher wraps a Backend with the cross-cutting concerns that every
// backend needs identically: sanitize, truncate, batch, rate-limit, bound
// concurrency, retry, and fall back to a degraded backend on persistent
// failure. Grounded on the worker-pool/semaphore shape of the teacher's
// internal/llm/embeddings.go and internal/documents/pipeline.go.
type Dispatcher struct {
	backend       Backend
	fallback      Backend
	sem           *semaphore.Weighted
	limiter       *rate.Limiter
	maxBatch      int
	maxRetries    int
	maxInputRunes int
	metrics       obs.Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithFallback sets a degraded-mode backend consulted when the primary
// backend fails every retry (e.g. the deterministic backend).
func WithFallback(b Backend) Option { return func(d *Dispatcher) { d.fallback = b } }

// WithMetrics wires an obs.Metrics sink.
func WithMetrics(m obs.Metrics) Option { return func(d *Dispatcher) { d.metrics = m } }

// WithMaxInputRunes overrides the per-input character cap applied before
// truncation. Zero or negative leaves the default (2000) in place.
func WithMaxInputRunes(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxInputRunes = n
		}
	}
}

// NewDispatcher builds a Dispatcher around backend.
func NewDispatcher(backend Backend, maxConcurrent, maxBatch, maxRetries int, rps float64, opts ...Option) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	if maxBatch <= 0 {
		maxBatch = 64
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if rps <= 0 {
		rps = 5
	}
	d := &Dispatcher{
		backend:       backend,
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
		limiter:       rate.NewLimiter(rate.Limit(rps), maxBatch),
		maxBatch:      maxBatch,
		maxRetries:    maxRetries,
		maxInputRunes: defaultMaxInputRunes,
		metrics:       obs.NoopMetrics{},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// sanitize strips every control byte except \n, \r and \t, then trims
// surrounding whitespace, matching the spec's input-cleaning step.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if r <= 0x1F {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxRunes])
}

// EmbedMany sanitizes, truncates, batches and embeds every text, preserving
// input order. It bounds concurrency with a semaphore (bounded wait,
// default 300s) and applies a token-bucket rate limit across batches.
func (d *Dispatcher) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out, _, err := d.embedManyTracked(ctx, texts)
	return out, err
}

// EmbedManyTracked behaves like EmbedMany but additionally reports whether
// any batch had to fall back to the degraded backend, so a caller (e.g.
// internal/memory.LongTerm) can queue a follow-up re-embed once the
// primary backend recovers instead of silently accepting a placeholder.
func (d *Dispatcher) EmbedManyTracked(ctx context.Context, texts []string) ([][]float32, bool, error) {
	return d.embedManyTracked(ctx, texts)
}

func (d *Dispatcher) embedManyTracked(ctx context.Context, texts []string) ([][]float32, bool, error) {
	cleaned := make([]string, len(texts))
	for i, t := range texts {
		cleaned[i] = truncate(sanitize(t), d.maxInputRunes)
	}

	out := make([][]float32, len(cleaned))
	type batchJob struct {
		start int
		items []string
	}
	var batches []batchJob
	for start := 0; start < len(cleaned); start += d.maxBatch {
		end := start + d.maxBatch
		if end > len(cleaned) {
			end = len(cleaned)
		}
		batches = append(batches, batchJob{start: start, items: cleaned[start:end]})
	}

	degraded := false
	for _, b := range batches {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, false, apperr.New(apperr.Retriable, "rate limiter wait", err)
		}
		wctx, cancel := context.WithTimeout(ctx, semaphoreWait)
		err := d.sem.Acquire(wctx, 1)
		cancel()
		if err != nil {
			return nil, false, apperr.New(apperr.Retriable, "embedding concurrency semaphore timed out", err)
		}
		embs, deg, err := d.embedBatchWithRetry(ctx, b.items)
		d.sem.Release(1)
		if err != nil {
			return nil, false, err
		}
		degraded = degraded || deg
		for i, e := range embs {
			out[b.start+i] = e
		}
	}
	return out, degraded, nil
}

// embedBatchWithRetry retries the primary backend up to maxRetries times,
// splitting the batch in half on a count-mismatch error (the response
// might have silently dropped one troublesome input), and falls back to
// the degraded backend only after every retry on the full-size batch has
// been exhausted. The returned bool reports whether the degraded backend
// had to be used.
func (d *Dispatcher) embedBatchWithRetry(ctx context.Context, items []string) ([][]float32, bool, error) {
	var lastErr error
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		embs, err := d.backend.EmbedBatch(ctx, items)
		if err == nil {
			return embs, false, nil
		}
		lastErr = err
		if apperr.Is(err, apperr.Retriable) && len(items) > 1 && strings.Contains(err.Error(), "unexpected embedding count") {
			mid := len(items) / 2
			left, degL, errL := d.embedBatchWithRetry(ctx, items[:mid])
			if errL != nil {
				continue
			}
			right, degR, errR := d.embedBatchWithRetry(ctx, items[mid:])
			if errR != nil {
				continue
			}
			return append(left, right...), degL || degR, nil
		}
		d.metrics.IncCounter("embedding_retry", map[string]string{"backend": d.backend.Name()})
	}
	if d.fallback != nil {
		d.metrics.IncCounter("embedding_fallback", map[string]string{"backend": d.fallback.Name()})
		embs, err := d.fallback.EmbedBatch(ctx, items)
		if err == nil {
			return embs, true, nil
		}
	}
	return nil, false, apperr.New(apperr.Retriable, "embedding backend exhausted retries", lastErr)
}

// ProbeDimension embeds a single short probe string to discover the
// backend's actual output dimension. Nothing in this module calls it; the
// configured EMBED_DIMENSIONS value (default 768) is used as given.
func (d *Dispatcher) ProbeDimension(ctx context.Context) (int, error) {
	embs, err := d.backend.EmbedBatch(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, err
	}
	if len(embs) == 0 {
		return 0, apperr.New(apperr.Retriable, "probe returned no embedding", nil)
	}
	return len(embs[0]), nil
}

// Name returns the underlying primary backend's name.
func (d *Dispatcher) Name() string { return d.backend.Name() }
