// Package appwire is the composition root shared by every docmind binary:
// it reads a resolved config.Config and builds the full dependency graph
// (cache, embedding dispatcher, vector store, memory tiers, tool façade,
// watcher) exactly once, the same way the teacher's internal/rag/service
// package centralizes its own dependency wiring instead of repeating it
// per cmd/ entry point.
package appwire

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"docmind/internal/archivepipe"
	"docmind/internal/archivesignal"
	"docmind/internal/catalog"
	"docmind/internal/config"
	"docmind/internal/embedding"
	"docmind/internal/ingestcache"
	"docmind/internal/ingestrun"
	"docmind/internal/logging"
	"docmind/internal/memory"
	"docmind/internal/objectstore"
	"docmind/internal/obs"
	"docmind/internal/toolface"
	"docmind/internal/vectorindex"
	"docmind/internal/version"
	"docmind/internal/watcher"
)

// App bundles every wired collaborator. Individual cmd/ entry points use
// only the fields they need and call Close when they're done with them.
type App struct {
	Config  config.Config
	Log     zerolog.Logger
	Metrics obs.Metrics
	Status  *obs.Status

	Cache        ingestcache.Cache
	Dispatcher   *embedding.Dispatcher
	Vector       *vectorindex.Writer
	Catalog      *catalog.Catalog
	Pipeline     *archivepipe.Pipeline
	Orchestrator *ingestrun.Orchestrator
	Signal       *archivesignal.Publisher

	Ring     *memory.Ring
	Journal  *memory.Journal
	Pending  *memory.PendingQueue
	LongTerm *memory.LongTerm
	Snippets *memory.SnippetSource

	Service  *toolface.Service
	Registry toolface.Registry
	Watcher  *watcher.Watcher

	otelShutdown func(context.Context) error
}

// Build wires every collaborator from cfg. component tags the logger (e.g.
// "docmind-server", "docmind-ingest", "docmind-watch"); recreateVector is
// forwarded to vectorindex.New so a --recreate flag can pass through to the
// destructive-guard check at startup.
func Build(ctx context.Context, cfg config.Config, component string, recreateVector bool) (*App, error) {
	log := logging.New(component, cfg.LogLevel, cfg.Production)
	otelShutdown, err := obs.InitOTel(ctx, cfg.OTLPEndpoint, version.Version)
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without an exporter")
		otelShutdown = nil
	}
	metrics := obs.NewOtelMetrics()
	status := obs.NewStatus()

	cache, err := buildCache(ctx, cfg)
	if err != nil {
		return nil, err
	}

	backend, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	var fallback embedding.Backend
	if cfg.Embedding.Backend != "deterministic" && cfg.Embedding.Backend != "none" {
		fallback = embedding.NewDeterministic(cfg.Vector.Dimensions, true, 0)
	}
	dispatcher := embedding.NewDispatcher(
		backend,
		cfg.Embedding.MaxConcurrent, cfg.Embedding.MaxBatch, cfg.Embedding.MaxRetries, cfg.Embedding.RateLimitRPS,
		embedding.WithFallback(fallback),
		embedding.WithMetrics(metrics),
		embedding.WithMaxInputRunes(cfg.Embedding.MaxInputRunes),
	)
	status.Update(func(s obs.StatusSnapshot) obs.StatusSnapshot {
		s.EmbeddingBackend = dispatcher.Name()
		return s
	})

	vector, err := vectorindex.New(ctx, cfg.Vector.DSN, cfg.Vector.Collection, cfg.Vector.Dimensions, cfg.Vector.Metric, recreateVector)
	if err != nil {
		return nil, err
	}

	cat := catalog.New(cfg.CatalogPath)
	pipeline := archivepipe.NewPipeline(cfg.ArchiveUnpackCmd, cfg.WorkDir)

	var signal *archivesignal.Publisher
	if cfg.UseKafka {
		signal, err = archivesignal.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
	}

	orchestrator := &ingestrun.Orchestrator{
		Pipeline: pipeline,
		Vector:   vector,
		Catalog:  cat,
		Embed:    dispatcher.EmbedMany,
		Cache:    cache,
		Status:   status,
		Metrics:  metrics,
		Workers:  cfg.IngestWorkers,
	}
	if signal != nil {
		orchestrator.OnArchiveIndexed = func(archivePath string, topicCount int) {
			if err := signal.Publish(context.Background(), archivePath, topicCount); err != nil {
				log.Warn().Err(err).Str("archive", archivePath).Msg("publish archive-indexed event failed")
			}
		}
	}

	ring := memory.NewRing(cfg.RingCapacity)
	journal := memory.NewJournal(cfg.JournalPath, cfg.JournalTTL)
	pending := memory.NewPendingQueue(cfg.PendingQueuePath)
	longTerm := memory.NewLongTerm(vector, dispatcher)

	snippets, err := buildSnippets(ctx, cfg)
	if err != nil {
		return nil, err
	}

	limiter := toolface.NewRateLimiter(cfg.ToolRPS, cfg.ToolBurst)

	w := watcher.New(
		[]string{cfg.HelpSourcesDir},
		cfg.WatchArchiveInterval, cfg.WatchPendingInterval,
		func(ctx context.Context, roots []string, opts ingestrun.RunOptions) (ingestrun.RunSummary, error) {
			return orchestrator.Run(ctx, roots, opts)
		},
		pending,
		func(ctx context.Context, e memory.Event) error { return longTerm.Write(ctx, e) },
		status, metrics, log,
	)

	svc := toolface.New(
		vector, cat, dispatcher, ring, journal, snippets, status,
		func(ctx context.Context, roots []string, recreate, dryRun bool) (int, error) {
			summary, err := w.TriggerIngest(ctx, roots, ingestrun.RunOptions{Recreate: recreate, DryRun: dryRun})
			return summary.TopicsIndexed, err
		},
		toolface.WithMetrics(metrics),
		toolface.WithLongTerm(longTerm),
		toolface.WithPending(pending),
		toolface.WithRateLimiter(limiter),
	)
	reg := toolface.NewRegistry()
	svc.BuildRegistry(reg)

	return &App{
		Config: cfg, Log: log, Metrics: metrics, Status: status,
		Cache: cache, Dispatcher: dispatcher, Vector: vector, Catalog: cat,
		Pipeline: pipeline, Orchestrator: orchestrator, Signal: signal,
		Ring: ring, Journal: journal, Pending: pending, LongTerm: longTerm, Snippets: snippets,
		Service: svc, Registry: reg, Watcher: w,
		otelShutdown: otelShutdown,
	}, nil
}

func buildCache(ctx context.Context, cfg config.Config) (ingestcache.Cache, error) {
	if cfg.IngestCacheBackend != "redis" {
		return ingestcache.NewFileCache(cfg.IngestCachePath), nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return ingestcache.NewRedisCache(client, "docmind:ingest-cache"), nil
}

func buildSnippets(ctx context.Context, cfg config.Config) (*memory.SnippetSource, error) {
	var store objectstore.ObjectStore
	if cfg.UseS3Snippets {
		s3store, err := objectstore.NewS3Store(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		store = s3store
	}
	return memory.NewSnippetSource(cfg.SnippetsDir, store), nil
}

// Close releases every collaborator holding an external connection.
func (a *App) Close() error {
	var err error
	if a.Signal != nil {
		if cerr := a.Signal.Close(); cerr != nil {
			err = cerr
		}
	}
	if a.Vector != nil {
		if cerr := a.Vector.Close(); cerr != nil {
			err = cerr
		}
	}
	if a.otelShutdown != nil {
		if cerr := a.otelShutdown(context.Background()); cerr != nil {
			err = cerr
		}
	}
	return err
}
