package embedding

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"docmind/internal/apperr"
)

type fakeBackend struct {
	name    string
	dim     int
	calls   int64
	failN   int32 // fail this many times before succeeding
	mismatch bool
}

func (f *fakeBackend) Name() string   { return f.name }
func (f *fakeBackend) Dimension() int { return f.dim }
func (f *fakeBackend) Ping(context.Context) error { return nil }

func (f *fakeBackend) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.failN > 0 {
		atomic.AddInt32(&f.failN, -1)
		return nil, fmt.Errorf("injected failure")
	}
	if f.mismatch && len(texts) > 1 {
		out := make([][]float32, len(texts)-1)
		for i := range out {
			out[i] = []float32{1}
		}
		return out, apperr.New(apperr.Retriable, "unexpected embedding count", fmt.Errorf("got %d, want %d", len(out), len(texts)))
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func TestDispatcherEmbedManyPreservesOrder(t *testing.T) {
	b := &fakeBackend{name: "fake", dim: 1}
	d := NewDispatcher(b, 2, 2, 2, 1000)
	out, err := d.EmbedMany(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	require.Len(t, out, 5)
	require.Equal(t, [][]float32{{0}, {1}, {0}, {1}, {0}}, out)
}

func TestDispatcherFallsBackOnExhaustion(t *testing.T) {
	primary := &fakeBackend{name: "primary", dim: 1, failN: 10}
	fallback := NewDeterministic(8, true, 0)
	d := NewDispatcher(primary, 1, 10, 2, 1000, WithFallback(fallback))
	out, err := d.EmbedMany(context.Background(), []string{"x"})
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestDispatcherSplitsOnCountMismatch(t *testing.T) {
	b := &fakeBackend{name: "fake", dim: 1, mismatch: true}
	d := NewDispatcher(b, 2, 10, 2, 1000)
	out, err := d.EmbedMany(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestDeterministicEmbedBatchIsStable(t *testing.T) {
	b := NewDeterministic(16, true, 7)
	a, err := b.EmbedBatch(context.Background(), []string{"hello world"})
	require.NoError(t, err)
	c, err := b.EmbedBatch(context.Background(), []string{"hello world"})
	require.NoError(t, err)
	require.Equal(t, a, c)
}

func TestNoneBackendEmitsZeroVectors(t *testing.T) {
	b := NewNone(8)
	out, err := b.EmbedBatch(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, v := range out {
		require.Len(t, v, 8)
		for _, f := range v {
			require.Zero(t, f)
		}
	}
}
