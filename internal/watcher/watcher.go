// Package watcher implements the periodic archive-discovery and
// pending-memory-drain loop (spec §4.H): two independent tickers, one that
// re-runs the ingest orchestrator over the configured source roots (which
// itself skips anything already indexed per internal/ingestcache, so a
// "changed archive" is the only one that does real work), and one that
// drains internal/memory's pending-writes queue whenever the long-tier
// write previously failed. The watcher is the sole component allowed to
// invoke ingest while the process runs in "api" (single-process) mode;
// cmd/docmind-ingest's standalone CLI is the only other caller, and only
// in split mode.
//
// Grounded on the teacher's periodic-poll goroutines in
// internal/hostinfo (ticker + select-on-ctx.Done shape), generalized to
// two independent intervals.
package watcher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"docmind/internal/apperr"
	"docmind/internal/ingestrun"
	"docmind/internal/memory"
	"docmind/internal/obs"
)

// IngestFunc runs one ingest pass, abstracting over ingestrun.Orchestrator.Run
// so this package does not need every orchestrator dependency to be
// testable.
type IngestFunc func(ctx context.Context, roots []string, opts ingestrun.RunOptions) (ingestrun.RunSummary, error)

// FlushFunc performs the long-tier write for one pending memory event.
type FlushFunc func(ctx context.Context, e memory.Event) error

// Watcher runs the two periodic sweeps described in spec §4.H.
type Watcher struct {
	Roots           []string
	ArchiveInterval time.Duration
	PendingInterval time.Duration

	Ingest  IngestFunc
	Pending *memory.PendingQueue
	Flush   FlushFunc

	Status  *obs.Status
	Metrics obs.Metrics
	Log     zerolog.Logger

	running atomic.Bool
}

// New builds a Watcher, defaulting both intervals to 600s per spec §4.H
// when zero is passed.
func New(roots []string, archiveInterval, pendingInterval time.Duration, ingest IngestFunc, pending *memory.PendingQueue, flush FlushFunc, status *obs.Status, metrics obs.Metrics, log zerolog.Logger) *Watcher {
	if archiveInterval <= 0 {
		archiveInterval = 600 * time.Second
	}
	if pendingInterval <= 0 {
		pendingInterval = 600 * time.Second
	}
	if metrics == nil {
		metrics = obs.NoopMetrics{}
	}
	return &Watcher{
		Roots: roots, ArchiveInterval: archiveInterval, PendingInterval: pendingInterval,
		Ingest: ingest, Pending: pending, Flush: flush,
		Status: status, Metrics: metrics, Log: log,
	}
}

// Run blocks, driving both sweeps until ctx is canceled. Each sweep runs in
// its own goroutine so a slow ingest pass never delays the pending-memory
// drain (spec §5: "Tool handlers must not hold locks across suspension
// points" applies equally here - neither loop blocks the other).
func (w *Watcher) Run(ctx context.Context) error {
	done := make(chan struct{}, 2)
	go func() { w.archiveLoop(ctx); done <- struct{}{} }()
	go func() { w.pendingLoop(ctx); done <- struct{}{} }()
	<-done
	<-done
	return ctx.Err()
}

func (w *Watcher) archiveLoop(ctx context.Context) {
	ticker := time.NewTicker(w.ArchiveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.TriggerIngest(ctx, nil, ingestrun.RunOptions{}); err != nil && !apperr.Is(err, apperr.Retriable) {
				w.Log.Warn().Err(err).Msg("watcher archive sweep failed")
			}
		}
	}
}

func (w *Watcher) pendingLoop(ctx context.Context) {
	ticker := time.NewTicker(w.PendingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.DrainPending(ctx)
		}
	}
}

// TriggerIngest runs one ingest pass over roots (or w.Roots when roots is
// nil), refusing to start a second concurrent run. This is the single
// choke point both the periodic archive sweep and toolface's
// trigger_reindex operation go through, realizing spec §4.H's "sole
// invoker of ingest" rule and §4.G's "conflict if ingest already running".
func (w *Watcher) TriggerIngest(ctx context.Context, roots []string, opts ingestrun.RunOptions) (ingestrun.RunSummary, error) {
	if !w.running.CompareAndSwap(false, true) {
		return ingestrun.RunSummary{}, apperr.New(apperr.Retriable, "ingest already running", nil)
	}
	defer w.running.Store(false)

	if len(roots) == 0 {
		roots = w.Roots
	}
	summary, err := w.Ingest(ctx, roots, opts)
	if err != nil {
		w.Log.Warn().Err(err).Msg("ingest run failed")
		return summary, err
	}
	if summary.ArchivesIndexed > 0 {
		w.Log.Info().
			Int("archives_indexed", summary.ArchivesIndexed).
			Int("topics_indexed", summary.TopicsIndexed).
			Msg("watcher drove an ingest pass")
	}
	return summary, nil
}

// DrainPending flushes every entry in the pending-writes queue, retrying
// long-tier writes that previously failed because the embedding backend
// was degraded. Draining is idempotent: entries that fail again stay
// queued for the next sweep (spec §4.F).
func (w *Watcher) DrainPending(ctx context.Context) {
	if w.Pending == nil || w.Flush == nil {
		return
	}
	flushed, retained, err := w.Pending.DrainAll(func(e memory.Event) error {
		return w.Flush(ctx, e)
	})
	if err != nil {
		w.Log.Warn().Err(err).Msg("pending-memory drain failed")
		return
	}
	if flushed > 0 || retained > 0 {
		w.Log.Info().Int("flushed", flushed).Int("retained", retained).Msg("pending-memory drain")
		w.Metrics.IncCounter("memory_pending_flushed", map[string]string{})
	}
}

// Running reports whether an ingest run is currently in flight.
func (w *Watcher) Running() bool { return w.running.Load() }
