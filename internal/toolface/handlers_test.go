package toolface

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"docmind/internal/catalog"
	"docmind/internal/embedding"
	"docmind/internal/memory"
	"docmind/internal/obs"
	"docmind/internal/validation"
)

func newTestService(t *testing.T, reindex ReindexFunc) *Service {
	t.Helper()
	dir := t.TempDir()
	cat := catalog.New(filepath.Join(dir, "catalog.json"))
	require.NoError(t, cat.UpsertMany([]catalog.TopicRecord{
		{ID: "1", Title: "Installing the Widget", Version: "1.0", Language: "en", Excerpt: "steps to install"},
		{ID: "2", Title: "Uninstalling", Version: "1.0", Language: "en", Excerpt: "steps to remove"},
	}))
	ring := memory.NewRing(10)
	journal := memory.NewJournal(filepath.Join(dir, "journal.ndjson"), time.Hour)
	snippetsDir := filepath.Join(dir, "snippets")
	require.NoError(t, os.MkdirAll(snippetsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(snippetsDir, "widget.go"), []byte("func Widget() {}"), 0o644))
	snippets := memory.NewSnippetSource(snippetsDir, nil)
	status := obs.NewStatus()
	return New(nil, cat, nil, ring, journal, snippets, status, reindex, WithClock(func() time.Time {
		return time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	}))
}

func callOp(t *testing.T, op Operation, in any) (map[string]any, error) {
	t.Helper()
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	result, err := op.Call(context.Background(), raw)
	if err != nil {
		return nil, err
	}
	// round-trip through JSON so map[string]any assertions work uniformly
	// across struct and map return types.
	data, err := json.Marshal(result)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m, nil
}

func TestKeywordSearchOp(t *testing.T) {
	svc := newTestService(t, nil)
	op := &keywordSearchOp{svc: svc}
	out, err := callOp(t, op, map[string]any{"query": "widget", "limit": 10})
	require.NoError(t, err)
	results := out["results"].([]any)
	require.Len(t, results, 1)
}

func TestKeywordSearchOpRequiresQuery(t *testing.T) {
	svc := newTestService(t, nil)
	op := &keywordSearchOp{svc: svc}
	_, err := callOp(t, op, map[string]any{"query": ""})
	require.Error(t, err)
}

func TestGetTopicOp(t *testing.T) {
	svc := newTestService(t, nil)
	op := &getTopicOp{svc: svc}
	out, err := callOp(t, op, map[string]any{"id": "1"})
	require.NoError(t, err)
	require.Equal(t, "Installing the Widget", out["title"])
}

func TestGetTopicOpNotFound(t *testing.T) {
	svc := newTestService(t, nil)
	op := &getTopicOp{svc: svc}
	_, err := callOp(t, op, map[string]any{"id": "missing"})
	require.Error(t, err)
}

func TestListTitlesOp(t *testing.T) {
	svc := newTestService(t, nil)
	op := &listTitlesOp{svc: svc}
	out, err := callOp(t, op, map[string]any{"version": "1.0"})
	require.NoError(t, err)
	titles := out["titles"].([]any)
	require.Len(t, titles, 2)
}

func TestIndexStatusOp(t *testing.T) {
	svc := newTestService(t, nil)
	op := &indexStatusOp{svc: svc}
	raw, err := op.Call(context.Background(), nil)
	require.NoError(t, err)
	snap := raw.(obs.StatusSnapshot)
	require.Equal(t, obs.PhaseIdle, snap.Phase)
}

func TestSaveSnippetOp(t *testing.T) {
	svc := newTestService(t, nil)
	op := &saveSnippetOp{svc: svc}
	out, err := callOp(t, op, map[string]any{"title": "Example", "lang": "go", "code": "func Example() {}"})
	require.NoError(t, err)
	require.NotEmpty(t, out["id"])

	recent := svc.ring.Recent(1)
	require.Len(t, recent, 1)
	require.Equal(t, "snippets", recent[0].Domain)

	entries, err := svc.journal.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestSaveSnippetOpRequiresFields(t *testing.T) {
	svc := newTestService(t, nil)
	op := &saveSnippetOp{svc: svc}
	_, err := callOp(t, op, map[string]any{"title": "", "code": ""})
	require.Error(t, err)
}

func TestSaveSnippetOpRejectsOversizedCode(t *testing.T) {
	svc := newTestService(t, nil)
	op := &saveSnippetOp{svc: svc}
	huge := strings.Repeat("a", validation.MaxToolInputBytes+1)
	_, err := callOp(t, op, map[string]any{"title": "Big", "code": huge})
	require.Error(t, err)
}

func TestSaveSnippetOpIsFindableByKeywordSearch(t *testing.T) {
	svc := newTestService(t, nil)
	save := &saveSnippetOp{svc: svc}
	_, err := callOp(t, save, map[string]any{"title": "Frobnicate", "lang": "go", "code": "func Frobnicate() {}"})
	require.NoError(t, err)

	search := &keywordSearchOp{svc: svc}
	out, err := callOp(t, search, map[string]any{"query": "Frobnicate"})
	require.NoError(t, err)
	results := out["results"].([]any)
	require.Len(t, results, 1)
}

// alwaysFailBackend simulates an embedding backend that is entirely
// unreachable (primary down, no fallback configured), forcing
// LongTerm.Write to fail before it ever touches the vector store.
type alwaysFailBackend struct{}

func (alwaysFailBackend) Name() string   { return "always-fail" }
func (alwaysFailBackend) Dimension() int { return 8 }
func (alwaysFailBackend) Ping(context.Context) error { return nil }
func (alwaysFailBackend) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding backend unreachable")
}

func TestSaveSnippetOpQueuesPendingWhenEmbeddingDegraded(t *testing.T) {
	svc := newTestService(t, nil)
	dispatcher := embedding.NewDispatcher(alwaysFailBackend{}, 1, 1, 1, 10)
	svc.longTerm = memory.NewLongTerm(nil, dispatcher)
	dir := t.TempDir()
	pending := memory.NewPendingQueue(filepath.Join(dir, "pending.json"))
	svc.pending = pending

	op := &saveSnippetOp{svc: svc}
	out, err := callOp(t, op, map[string]any{"title": "Degraded", "code": "func Degraded() {}"})
	require.NoError(t, err)
	require.Equal(t, true, out["degraded"])

	flushed, retained, err := pending.DrainAll(func(memory.Event) error { return nil })
	require.NoError(t, err)
	require.Equal(t, 1, flushed)
	require.Equal(t, 0, retained)
}

func TestRateLimiterRejectsExhaustedOperation(t *testing.T) {
	svc := newTestService(t, nil)
	svc.limiter = NewRateLimiter(1, 1)
	reg := NewRegistry()
	svc.BuildRegistry(reg)

	raw, _ := json.Marshal(map[string]any{"id": "1"})
	_, err := reg.Dispatch(context.Background(), "get_topic", raw)
	require.NoError(t, err) // first call consumes the single burst token

	data, err := reg.Dispatch(context.Background(), "get_topic", raw)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	require.False(t, out["ok"].(bool))
}

func TestGetFunctionInfoOp(t *testing.T) {
	svc := newTestService(t, nil)
	op := &getFunctionInfoOp{svc: svc}
	out, err := callOp(t, op, map[string]any{"name": "widget"})
	require.NoError(t, err)
	topics := out["topics"].([]any)
	require.Len(t, topics, 1)
	snippets := out["snippets"].([]any)
	require.Len(t, snippets, 1)
}

func TestTriggerReindexOp(t *testing.T) {
	called := false
	svc := newTestService(t, func(ctx context.Context, roots []string, recreate, dryRun bool) (int, error) {
		called = true
		require.Equal(t, []string{"/help/sources"}, roots)
		return 42, nil
	})
	op := &triggerReindexOp{svc: svc}
	out, err := callOp(t, op, map[string]any{"roots": []string{"/help/sources"}})
	require.NoError(t, err)
	require.True(t, called)
	require.Equal(t, float64(42), out["topics_indexed"])
}

func TestTriggerReindexOpRequiresRoots(t *testing.T) {
	svc := newTestService(t, nil)
	op := &triggerReindexOp{svc: svc}
	_, err := callOp(t, op, map[string]any{"roots": []string{}})
	require.Error(t, err)
}

func TestRegistryDispatchUnknownOperation(t *testing.T) {
	reg := NewRegistry()
	data, err := reg.Dispatch(context.Background(), "nope", nil)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	require.False(t, out["ok"].(bool))
}

func TestRegistryDispatchSuccess(t *testing.T) {
	svc := newTestService(t, nil)
	reg := NewRegistry()
	svc.BuildRegistry(reg)
	require.Len(t, reg.Operations(), 8)

	raw, _ := json.Marshal(map[string]any{"id": "1"})
	data, err := reg.Dispatch(context.Background(), "get_topic", raw)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	require.True(t, out["ok"].(bool))
}
