package watcher

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"docmind/internal/ingestrun"
	"docmind/internal/memory"
	"docmind/internal/obs"
)

func TestTriggerIngestRefusesConcurrentRuns(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	ingest := func(ctx context.Context, roots []string, opts ingestrun.RunOptions) (ingestrun.RunSummary, error) {
		started <- struct{}{}
		<-release
		return ingestrun.RunSummary{}, nil
	}
	w := New([]string{"/tmp/does-not-matter"}, time.Hour, time.Hour, ingest, nil, nil, obs.NewStatus(), obs.NewMockMetrics(), zerolog.Nop())

	go func() {
		_, _ = w.TriggerIngest(context.Background(), nil, ingestrun.RunOptions{})
	}()
	<-started
	require.True(t, w.Running())

	_, err := w.TriggerIngest(context.Background(), nil, ingestrun.RunOptions{})
	require.Error(t, err)

	close(release)
	require.Eventually(t, func() bool { return !w.Running() }, time.Second, 10*time.Millisecond)
}

func TestDrainPendingRetainsFailedEntries(t *testing.T) {
	dir := t.TempDir()
	pending := memory.NewPendingQueue(filepath.Join(dir, "pending.json"))
	require.NoError(t, pending.Enqueue(memory.Event{ID: "a", Domain: "snippet", Text: "ok"}))
	require.NoError(t, pending.Enqueue(memory.Event{ID: "b", Domain: "snippet", Text: "fails"}))

	var flushedIDs []string
	flush := func(_ context.Context, e memory.Event) error {
		if e.ID == "b" {
			return assertErr
		}
		flushedIDs = append(flushedIDs, e.ID)
		return nil
	}

	w := New(nil, time.Hour, time.Hour, nil, pending, flush, obs.NewStatus(), obs.NewMockMetrics(), zerolog.Nop())
	w.DrainPending(context.Background())

	require.Equal(t, []string{"a"}, flushedIDs)

	var calls int32
	flush2 := func(_ context.Context, e memory.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}
	w.Flush = flush2
	w.DrainPending(context.Background())
	require.Equal(t, int32(1), calls) // only "b" remained queued
}

var assertErr = errFlush{}

type errFlush struct{}

func (errFlush) Error() string { return "flush failed" }
