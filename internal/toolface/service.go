package toolface

import (
	"context"
	"time"

	"docmind/internal/catalog"
	"docmind/internal/embedding"
	"docmind/internal/memory"
	"docmind/internal/obs"
	"docmind/internal/vectorindex"
)

// ReindexFunc triggers an ingest run, abstracting over ingestrun.Orchestrator
// to avoid toolface depending on the orchestrator's full dependency set.
type ReindexFunc func(ctx context.Context, roots []string, recreate, dryRun bool) (topicsIndexed int, err error)

// Service bundles every collaborator the eight tool operations need.
// Functional-options construction mirrors the teacher's
// internal/rag/service/service.go New(...).
type Service struct {
	vector     *vectorindex.Writer
	catalog    *catalog.Catalog
	dispatcher *embedding.Dispatcher
	ring       *memory.Ring
	journal    *memory.Journal
	snippets   *memory.SnippetSource
	status     *obs.Status
	metrics    obs.Metrics
	reindex    ReindexFunc
	clock      func() time.Time
	longTerm   *memory.LongTerm
	pending    *memory.PendingQueue
	limiter    *RateLimiter
}

// Option configures a Service.
type Option func(*Service)

func WithMetrics(m obs.Metrics) Option     { return func(s *Service) { s.metrics = m } }
func WithClock(fn func() time.Time) Option { return func(s *Service) { s.clock = fn } }

// WithLongTerm wires the vector-store long memory tier into save_snippet,
// so saved snippets are embedded and domain-tagged ("snippets") alongside
// ingested topics, not just journaled.
func WithLongTerm(lt *memory.LongTerm) Option { return func(s *Service) { s.longTerm = lt } }

// WithPending wires the pending-writes queue so save_snippet can defer its
// long-tier write when the embedding backend is degraded, per spec §4.F's
// write path, instead of failing the call.
func WithPending(p *memory.PendingQueue) Option { return func(s *Service) { s.pending = p } }

// WithRateLimiter enables the per-operation token-bucket rate limiter
// (spec §4.G cross-cutting). Without this option no operation is rate
// limited, which is what the unit tests in this package rely on.
func WithRateLimiter(l *RateLimiter) Option { return func(s *Service) { s.limiter = l } }

// New builds a Service.
func New(
	vector *vectorindex.Writer,
	cat *catalog.Catalog,
	dispatcher *embedding.Dispatcher,
	ring *memory.Ring,
	journal *memory.Journal,
	snippets *memory.SnippetSource,
	status *obs.Status,
	reindex ReindexFunc,
	opts ...Option,
) *Service {
	s := &Service{
		vector: vector, catalog: cat, dispatcher: dispatcher,
		ring: ring, journal: journal, snippets: snippets,
		status: status, reindex: reindex,
		metrics: obs.NoopMetrics{}, clock: time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// BuildRegistry registers all eight tool operations against reg. When a
// rate limiter is configured (WithRateLimiter), every operation is wrapped
// so exhaustion rejects with a typed, retriable error rather than running
// unbounded.
func (s *Service) BuildRegistry(reg Registry) {
	ops := []Operation{
		&semanticSearchOp{svc: s},
		&keywordSearchOp{svc: s},
		&getTopicOp{svc: s},
		&getFunctionInfoOp{svc: s},
		&listTitlesOp{svc: s},
		&indexStatusOp{svc: s},
		&saveSnippetOp{svc: s},
		&triggerReindexOp{svc: s},
	}
	for _, op := range ops {
		if s.limiter != nil {
			op = rateLimitedOp{inner: op, limiter: s.limiter}
		}
		reg.Register(op)
	}
}
