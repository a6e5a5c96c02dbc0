package memory

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"docmind/internal/objectstore"
)

// Snippet is a named, language-tagged code sample surfaced by the
// save_snippet / semantic_search tool operations.
type Snippet struct {
	Title string `yaml:"title" json:"title"`
	Lang  string `yaml:"lang" json:"lang"`
	Code  string `yaml:"-" json:"code"`
}

func dedupeKey(s Snippet) string {
	sum := sha256.Sum256([]byte(s.Title + "\x00" + s.Code))
	return fmt.Sprintf("%x", sum)
}

// SnippetSource loads snippets from wherever they're kept: a local
// directory and, optionally, an S3 prefix.
type SnippetSource struct {
	localDir string
	store    objectstore.ObjectStore // nil when S3 is not configured
	bucket   string
}

// NewSnippetSource builds a SnippetSource. store may be nil to disable the
// S3 path entirely.
func NewSnippetSource(localDir string, store objectstore.ObjectStore) *SnippetSource {
	return &SnippetSource{localDir: localDir, store: store}
}

// Load reads every snippet from the local directory (JSON arrays,
// Markdown+YAML-front-matter, and raw code files) and, if an object store
// is configured, from its configured prefix, deduped by sha256(title+code).
func (s *SnippetSource) Load(ctx context.Context) ([]Snippet, error) {
	seen := map[string]bool{}
	var out []Snippet

	if s.localDir != "" {
		local, err := s.loadLocal()
		if err != nil {
			return nil, err
		}
		for _, sn := range local {
			k := dedupeKey(sn)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, sn)
		}
	}

	if s.store != nil {
		remote, err := s.loadRemote(ctx)
		if err != nil {
			return out, err // partial local results still useful
		}
		for _, sn := range remote {
			k := dedupeKey(sn)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, sn)
		}
	}

	return out, nil
}

func (s *SnippetSource) loadLocal() ([]Snippet, error) {
	var out []Snippet
	err := filepath.WalkDir(s.localDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil // skip unreadable files rather than aborting the whole load
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			var arr []Snippet
			if json.Unmarshal(data, &arr) == nil {
				out = append(out, arr...)
			}
		case ".md", ".markdown":
			if sn, ok := parseFrontMatter(string(data)); ok {
				out = append(out, sn)
			}
		default:
			out = append(out, Snippet{Title: filepath.Base(path), Lang: strings.TrimPrefix(filepath.Ext(path), "."), Code: string(data)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SnippetSource) loadRemote(ctx context.Context) ([]Snippet, error) {
	res, err := s.store.List(ctx, objectstore.ListOptions{})
	if err != nil {
		return nil, err
	}
	var out []Snippet
	for _, obj := range res.Objects {
		rc, _, err := s.store.Get(ctx, obj.Key)
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		if sn, ok := parseFrontMatter(string(data)); ok {
			out = append(out, sn)
			continue
		}
		out = append(out, Snippet{Title: filepath.Base(obj.Key), Code: string(data)})
	}
	return out, nil
}

// parseFrontMatter splits a "---\nyaml\n---\ncode" document into a
// Snippet, returning ok=false when there is no front matter delimiter.
func parseFrontMatter(content string) (Snippet, bool) {
	if !strings.HasPrefix(content, "---") {
		return Snippet{}, false
	}
	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var fm strings.Builder
	var body strings.Builder
	seenFirst := false
	closed := false
	for sc.Scan() {
		line := sc.Text()
		if line == "---" {
			if !seenFirst {
				seenFirst = true
				continue
			}
			closed = true
			continue
		}
		if !closed {
			fm.WriteString(line)
			fm.WriteString("\n")
		} else {
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	if !closed {
		return Snippet{}, false
	}
	var sn Snippet
	if err := yaml.Unmarshal([]byte(fm.String()), &sn); err != nil {
		return Snippet{}, false
	}
	sn.Code = strings.TrimSpace(body.String())
	return sn, true
}
