package memory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"docmind/internal/apperr"
)

// PendingQueue holds memory events destined for the long tier that have
// not yet been written (e.g. because the vector store was unreachable).
// It persists to a single JSON file with an atomic rename on every
// mutation, the same durability idiom as ingestcache.FileCache, and is
// drained by the watcher's pending-memory sweep.
type PendingQueue struct {
	path string
	mu   sync.Mutex
}

// NewPendingQueue returns a PendingQueue backed by path.
func NewPendingQueue(path string) *PendingQueue {
	return &PendingQueue{path: path}
}

func (q *PendingQueue) load() ([]Event, error) {
	data, err := os.ReadFile(q.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, nil
	}
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, nil
	}
	return events, nil
}

func (q *PendingQueue) save(events []Event) error {
	if err := os.MkdirAll(filepath.Dir(q.path), 0o755); err != nil {
		return apperr.New(apperr.Retriable, "create pending queue dir", err)
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return apperr.New(apperr.Retriable, "marshal pending queue", err)
	}
	tmp := q.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperr.New(apperr.Retriable, "write pending queue temp file", err)
	}
	return os.Rename(tmp, q.path)
}

// Enqueue appends an event to the pending queue.
func (q *PendingQueue) Enqueue(e Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	events, _ := q.load()
	events = append(events, e)
	return q.save(events)
}

// DrainAll passes every pending event to flush and reports how many were
// flushed and how many were retained. The queue is then rewritten
// atomically with only the events whose flush returned an error, so a
// failed long-tier write is retried on the next sweep.
func (q *PendingQueue) DrainAll(flush func(Event) error) (flushed, retained int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	events, lerr := q.load()
	if lerr != nil {
		return 0, 0, lerr
	}
	var failed []Event
	for _, e := range events {
		if ferr := flush(e); ferr != nil {
			failed = append(failed, e)
			continue
		}
		flushed++
	}
	retained = len(failed)
	if err := q.save(failed); err != nil {
		return flushed, retained, err
	}
	return flushed, retained, nil
}
