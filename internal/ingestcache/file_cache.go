package ingestcache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"docmind/internal/apperr"
)

// FileCache persists entries to a single JSON file, rewritten atomically
// (temp file + rename) on every mutation so a crash mid-write never
// corrupts the cache.
type FileCache struct {
	path string
	mu   sync.Mutex
}

// NewFileCache returns a FileCache backed by path. Read failures (missing
// or corrupt file) degrade to an empty cache with no error, matching the
// spec's "never crash on a cache read failure" requirement.
func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

func (c *FileCache) load() (map[string]Entry, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return map[string]Entry{}, nil
	}
	if err != nil {
		return map[string]Entry{}, nil
	}
	var m map[string]Entry
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]Entry{}, nil
	}
	if m == nil {
		m = map[string]Entry{}
	}
	return m, nil
}

func (c *FileCache) save(m map[string]Entry) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return apperr.New(apperr.Retriable, "create cache dir", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return apperr.New(apperr.Retriable, "marshal cache", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperr.New(apperr.Retriable, "write cache temp file", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return apperr.New(apperr.Retriable, "rename cache temp file", err)
	}
	return nil
}

func (c *FileCache) Lookup(_ context.Context, archivePath string) (Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, _ := c.load()
	e, ok := m[archivePath]
	return e, ok, nil
}

func (c *FileCache) MarkIndexed(_ context.Context, archivePath string, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, _ := c.load()
	m[archivePath] = entry
	return c.save(m)
}

func (c *FileCache) EraseAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(map[string]Entry{})
}
