// Package obs holds the cross-cutting observability surface shared by the
// ingest orchestrator, the embedding dispatcher and the tool façade: an
// OpenTelemetry metrics adapter with cached instruments (grounded on the
// teacher's internal/rag/obs/metrics.go) and a single-writer ingest status
// snapshot safe for lock-free concurrent reads.
package obs

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics is the instrumentation surface every component depends on through
// an interface, so tests can substitute MockMetrics.
type Metrics interface {
	IncCounter(name string, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
}

// OtelMetrics implements Metrics against an otel Meter, caching instruments
// by name the same way the teacher's rag subsystem does.
type OtelMetrics struct {
	meter      metric.Meter
	mu         sync.RWMutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

// NewOtelMetrics builds an OtelMetrics using the "docmind" meter name.
func NewOtelMetrics() *OtelMetrics {
	return &OtelMetrics{
		meter:      otel.Meter("docmind"),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

func (m *OtelMetrics) getCounter(name string) metric.Int64Counter {
	m.mu.RLock()
	c, ok := m.counters[name]
	m.mu.RUnlock()
	if ok {
		return c
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok = m.counters[name]; ok {
		return c
	}
	c, _ = m.meter.Int64Counter(name)
	m.counters[name] = c
	return c
}

func (m *OtelMetrics) getHistogram(name string) metric.Float64Histogram {
	m.mu.RLock()
	h, ok := m.histograms[name]
	m.mu.RUnlock()
	if ok {
		return h
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok = m.histograms[name]; ok {
		return h
	}
	h, _ = m.meter.Float64Histogram(name)
	m.histograms[name] = h
	return h
}

func toAttrs(labels map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

func (m *OtelMetrics) IncCounter(name string, labels map[string]string) {
	m.getCounter(name).Add(context.Background(), 1, metric.WithAttributes(toAttrs(labels)...))
}

func (m *OtelMetrics) ObserveHistogram(name string, value float64, labels map[string]string) {
	m.getHistogram(name).Record(context.Background(), value, metric.WithAttributes(toAttrs(labels)...))
}

// MockMetrics is an in-memory Metrics test double.
type MockMetrics struct {
	mu      sync.Mutex
	Counts  map[string]int
	Observs map[string][]float64
}

// NewMockMetrics builds an empty MockMetrics.
func NewMockMetrics() *MockMetrics {
	return &MockMetrics{Counts: make(map[string]int), Observs: make(map[string][]float64)}
}

func (m *MockMetrics) IncCounter(name string, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counts[name]++
}

func (m *MockMetrics) ObserveHistogram(name string, value float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Observs[name] = append(m.Observs[name], value)
}

// NoopMetrics discards everything; used as the default when no Metrics is
// wired in.
type NoopMetrics struct{}

func (NoopMetrics) IncCounter(string, map[string]string)            {}
func (NoopMetrics) ObserveHistogram(string, float64, map[string]string) {}
