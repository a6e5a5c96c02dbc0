// Package ingestrun drives the end-to-end ingest pipeline: discover
// archives under one or more roots, skip ones whose content hash is
// already recorded in the ingest cache, convert+index the rest through
// archivepipe and vectorindex, and publish status updates throughout.
// Staged, per-stage-timed pipeline shape grounded on the teacher's
// internal/rag/service/service.go Ingest method.
package ingestrun

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"docmind/internal/apperr"
	"docmind/internal/archivepipe"
	"docmind/internal/catalog"
	"docmind/internal/ingestcache"
	"docmind/internal/obs"
	"docmind/internal/vectorindex"
)

// Clock abstracts time.Now for deterministic tests.
type Clock interface{ Now() time.Time }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Orchestrator coordinates one ingest run across a set of archive roots.
type Orchestrator struct {
	Pipeline *archivepipe.Pipeline
	Vector   *vectorindex.Writer
	Catalog  *catalog.Catalog
	Embed    EmbedFunc
	Cache    ingestcache.Cache
	Status   *obs.Status
	Metrics  obs.Metrics
	Clock    Clock
	Workers  int
	OnArchiveIndexed func(archivePath string, topicCount int) // optional, e.g. Kafka publish
}

// EmbedFunc embeds a batch of texts, abstracting over embedding.Dispatcher
// to avoid an import cycle and to keep this package easily testable.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// RunOptions controls a single Run invocation.
type RunOptions struct {
	DryRun   bool
	Recreate bool
	// Language, when set, restricts this run to archives whose filename
	// suffix encodes this language tag. Non-matching archives are skipped
	// before extraction, not merely filtered out of the results.
	Language string
}

// RunSummary reports what a Run did.
type RunSummary struct {
	ArchivesTotal   int
	ArchivesIndexed int
	ArchivesSkipped int
	ArchivesFailed  int
	TopicsIndexed   int
	Duration        time.Duration
	Failures        map[string]string
}

func archiveHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// filterByLanguage keeps only archives whose filename-derived language
// matches lang, deciding before any archive is opened for hashing or
// extraction.
func filterByLanguage(archives []string, lang string) []string {
	out := archives[:0]
	for _, a := range archives {
		if _, language := archivepipe.DeriveArchiveVersionLanguage(a); language == lang {
			out = append(out, a)
		}
	}
	return out
}

func discoverArchives(roots []string) ([]string, error) {
	var found []string
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if strings.HasSuffix(strings.ToLower(path), ".hbk") || strings.HasSuffix(strings.ToLower(path), ".zip") {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, apperr.New(apperr.Retriable, "discover archives under "+root, err)
		}
	}
	sort.Strings(found)
	return found, nil
}

// Run executes one ingest pass over roots.
func (o *Orchestrator) Run(ctx context.Context, roots []string, opts RunOptions) (RunSummary, error) {
	clock := o.Clock
	if clock == nil {
		clock = systemClock{}
	}
	workers := o.Workers
	if workers <= 0 {
		workers = 4
	}

	start := clock.Now()
	if o.Status != nil {
		o.Status.Update(func(s obs.StatusSnapshot) obs.StatusSnapshot {
			s.Phase = obs.PhaseDiscover
			s.LastRunStartedAt = start
			s.LastError = ""
			return s
		})
	}

	archives, err := discoverArchives(roots)
	if err != nil {
		o.markFailed(clock, err)
		return RunSummary{}, err
	}
	if opts.Language != "" {
		archives = filterByLanguage(archives, opts.Language)
	}

	type work struct {
		path string
		hash string
	}
	var toProcess []work
	summary := RunSummary{ArchivesTotal: len(archives), Failures: map[string]string{}}

	for _, a := range archives {
		hash, herr := archiveHash(a)
		if herr != nil {
			summary.ArchivesFailed++
			summary.Failures[a] = herr.Error()
			continue
		}
		if !opts.Recreate {
			if entry, ok, _ := o.Cache.Lookup(ctx, a); ok && entry.ContentHash == hash {
				summary.ArchivesSkipped++
				continue
			}
		}
		toProcess = append(toProcess, work{path: a, hash: hash})
	}

	if opts.DryRun {
		summary.Duration = clock.Now().Sub(start)
		if o.Status != nil {
			o.Status.Update(func(s obs.StatusSnapshot) obs.StatusSnapshot {
				s.Phase = obs.PhaseDone
				s.ArchivesTotal = summary.ArchivesTotal
				s.ArchivesSkipped = summary.ArchivesSkipped
				s.LastRunEndedAt = clock.Now()
				return s
			})
		}
		return summary, nil
	}

	if o.Status != nil {
		o.Status.Update(func(s obs.StatusSnapshot) obs.StatusSnapshot {
			s.Phase = obs.PhaseIngesting
			s.ArchivesTotal = summary.ArchivesTotal
			return s
		})
	}

	var mu sync.Mutex
	jobs := make(chan work)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range jobs {
				n, perr := o.processArchive(ctx, w.path, w.hash)
				mu.Lock()
				if perr != nil {
					summary.ArchivesFailed++
					summary.Failures[w.path] = perr.Error()
				} else {
					summary.ArchivesIndexed++
					summary.TopicsIndexed += n
				}
				mu.Unlock()
			}
		}()
	}
	for _, w := range toProcess {
		jobs <- w
	}
	close(jobs)
	wg.Wait()

	summary.Duration = clock.Now().Sub(start)
	if o.Status != nil {
		o.Status.Update(func(s obs.StatusSnapshot) obs.StatusSnapshot {
			s.Phase = obs.PhaseDone
			s.ArchivesDone = summary.ArchivesIndexed
			s.ArchivesFailed = summary.ArchivesFailed
			s.ArchivesSkipped = summary.ArchivesSkipped
			s.TopicsIndexed += summary.TopicsIndexed
			s.LastRunEndedAt = clock.Now()
			if len(summary.Failures) > 0 {
				for _, v := range summary.Failures {
					s.LastError = v
					break
				}
			}
			return s
		})
	}
	if o.Metrics != nil {
		o.Metrics.ObserveHistogram("ingest_run_ms", float64(summary.Duration.Milliseconds()), nil)
	}
	return summary, nil
}

func (o *Orchestrator) markFailed(clock Clock, err error) {
	if o.Status == nil {
		return
	}
	o.Status.Update(func(s obs.StatusSnapshot) obs.StatusSnapshot {
		s.Phase = obs.PhaseFailed
		s.LastError = err.Error()
		s.LastRunEndedAt = clock.Now()
		return s
	})
}

func (o *Orchestrator) processArchive(ctx context.Context, path, hash string) (int, error) {
	var topics []archivepipe.Topic
	for t, err := range o.Pipeline.Run(ctx, path) {
		if err != nil {
			continue // per-file errors are isolated; the archive still proceeds with what it got
		}
		topics = append(topics, t)
	}
	if len(topics) == 0 {
		return 0, apperr.New(apperr.Retriable, "no topics extracted from "+path, nil)
	}

	texts := make([]string, len(topics))
	for i, t := range topics {
		texts[i] = t.Markdown
	}
	embs, err := o.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}

	ids := make([]string, len(topics))
	metadatas := make([]map[string]string, len(topics))
	for i, t := range topics {
		ids[i] = t.ID
		metadatas[i] = map[string]string{
			"type":     "topic",
			"title":    t.Title,
			"path":     t.Path,
			"version":  t.Version,
			"language": t.Language,
		}
	}
	if err := o.Vector.UpsertBatch(ctx, ids, embs, metadatas, 500); err != nil {
		return 0, err
	}

	if o.Catalog != nil {
		records := make([]catalog.TopicRecord, len(topics))
		for i, t := range topics {
			records[i] = catalog.TopicRecord{
				ID: t.ID, Title: t.Title, Path: t.Path,
				Version: t.Version, Language: t.Language,
				Excerpt: catalog.Excerpt(t.Markdown),
				Body:    t.Markdown,
			}
		}
		if err := o.Catalog.UpsertMany(records); err != nil {
			return len(topics), err
		}
	}

	if err := o.Cache.MarkIndexed(ctx, path, ingestcache.Entry{
		ContentHash: hash,
		IndexedAt:   time.Now().UTC().Format(time.RFC3339),
		TopicCount:  len(topics),
	}); err != nil {
		return len(topics), err
	}

	if o.OnArchiveIndexed != nil {
		o.OnArchiveIndexed(path, len(topics))
	}
	return len(topics), nil
}
