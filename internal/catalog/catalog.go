// Package catalog keeps a lightweight sidecar index of topic metadata
// (title, path, version, language, a short excerpt) alongside the vector
// store. The vector store answers "what's semantically similar"; the
// catalog answers cheap questions like "list every title" or "find topics
// whose title contains X" without round-tripping through embeddings,
// using the same atomic-rename JSON file idiom as ingestcache.
package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"docmind/internal/apperr"
)

// TopicRecord is one entry in the catalog. Body carries the full converted
// Markdown so get_topic can return complete topic text; Excerpt stays a
// separate, short field so ListTitles/SearchKeyword payloads remain cheap.
type TopicRecord struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Path     string `json:"path"`
	Version  string `json:"version"`
	Language string `json:"language"`
	Excerpt  string `json:"excerpt"`
	Body     string `json:"body"`
}

const maxExcerptRunes = 400

// Excerpt trims markdown down to a short preview.
func Excerpt(markdown string) string {
	r := []rune(strings.TrimSpace(markdown))
	if len(r) <= maxExcerptRunes {
		return string(r)
	}
	return string(r[:maxExcerptRunes]) + "…"
}

// Catalog is a mutex-protected, file-backed store of TopicRecords.
type Catalog struct {
	path string
	mu   sync.Mutex
}

// New returns a Catalog backed by path.
func New(path string) *Catalog {
	return &Catalog{path: path}
}

func (c *Catalog) load() (map[string]TopicRecord, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return map[string]TopicRecord{}, nil
	}
	if err != nil {
		return map[string]TopicRecord{}, nil
	}
	var m map[string]TopicRecord
	if json.Unmarshal(data, &m) != nil || m == nil {
		return map[string]TopicRecord{}, nil
	}
	return m, nil
}

func (c *Catalog) save(m map[string]TopicRecord) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return apperr.New(apperr.Retriable, "create catalog dir", err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return apperr.New(apperr.Retriable, "marshal catalog", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperr.New(apperr.Retriable, "write catalog temp file", err)
	}
	return os.Rename(tmp, c.path)
}

// UpsertMany records or replaces a batch of topics.
func (c *Catalog) UpsertMany(records []TopicRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, _ := c.load()
	for _, r := range records {
		m[r.ID] = r
	}
	return c.save(m)
}

// Get returns a single record by ID.
func (c *Catalog) Get(id string) (TopicRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, _ := c.load()
	r, ok := m[id]
	return r, ok
}

// ListTitles returns every title, optionally filtered by version/language,
// sorted for stable output.
func (c *Catalog) ListTitles(version, language string) []TopicRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, _ := c.load()
	out := make([]TopicRecord, 0, len(m))
	for _, r := range m {
		if version != "" && r.Version != version {
			continue
		}
		if language != "" && r.Language != language {
			continue
		}
		r.Body = ""
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

// matchBand ranks how query matched a record: lower is a stronger match.
// Exact (case-insensitive) title equality outranks a title substring, which
// outranks a body/excerpt-only hit.
func matchBand(r TopicRecord, q string) (int, bool) {
	title := strings.ToLower(r.Title)
	switch {
	case title == q:
		return 0, true
	case strings.Contains(title, q):
		return 1, true
	case strings.Contains(strings.ToLower(r.Excerpt), q):
		return 2, true
	default:
		return 0, false
	}
}

// SearchKeyword returns topics whose title or excerpt contains query
// (case-insensitive substring match), capped at limit results. Results are
// ranked by match strength (exact title, then title substring, then
// excerpt-only) and stable-sorted by title within each band.
func (c *Catalog) SearchKeyword(query string, limit int) []TopicRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, _ := c.load()
	q := strings.ToLower(query)
	type ranked struct {
		rec  TopicRecord
		band int
	}
	var out []ranked
	for _, r := range m {
		if band, ok := matchBand(r, q); ok {
			out = append(out, ranked{rec: r, band: band})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].band != out[j].band {
			return out[i].band < out[j].band
		}
		return out[i].rec.Title < out[j].rec.Title
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	recs := make([]TopicRecord, len(out))
	for i, r := range out {
		r.rec.Body = ""
		recs[i] = r.rec
	}
	return recs
}

// Count returns the total number of catalog entries.
func (c *Catalog) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, _ := c.load()
	return len(m)
}
