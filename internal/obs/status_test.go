package obs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusUpdateConcurrentReads(t *testing.T) {
	s := NewStatus()
	require.Equal(t, PhaseIdle, s.Snapshot().Phase)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
		}()
	}
	s.Update(func(cur StatusSnapshot) StatusSnapshot {
		cur.Phase = PhaseIngesting
		cur.ArchivesTotal = 10
		return cur
	})
	wg.Wait()

	got := s.Snapshot()
	require.Equal(t, PhaseIngesting, got.Phase)
	require.Equal(t, 10, got.ArchivesTotal)
}

func TestMockMetrics(t *testing.T) {
	m := NewMockMetrics()
	m.IncCounter("x", nil)
	m.IncCounter("x", nil)
	m.ObserveHistogram("y", 1.5, nil)
	require.Equal(t, 2, m.Counts["x"])
	require.Equal(t, []float64{1.5}, m.Observs["y"])
}
