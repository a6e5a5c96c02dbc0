// Package webviewer implements the thin read-only viewer sketched as an
// external collaborator in spec §1/§6: a path-allowlisted directory
// listing and file server over one configured root (typically the
// extracted/converted topic tree or the snippets directory). It performs
// no indexing or search of its own — that's internal/toolface's job —
// and never accepts writes.
//
// Grounded on the teacher's internal/webui/handler.go spaHandler:
// Content-Type from mime.TypeByExtension with http.ServeContent sniffing it
// when the extension is unknown, HEAD support and Last-Modified handling
// via http.ServeContent (no ETag is set), and traversal rejected through the
// same "clean and verify prefix" idiom internal/validation.WithinRoot
// generalizes from handler.go's path.Clean usage.
package webviewer

import (
	"encoding/json"
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docmind/internal/validation"
)

// Entry describes one file or directory in a listing response.
type Entry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// Handler serves a read-only, path-allowlisted view of Root.
type Handler struct {
	Root string
}

// New returns a Handler rooted at root. root must exist; callers (cmd/
// entry points) are expected to validate that before mounting.
func New(root string) *Handler {
	return &Handler{Root: root}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rel := strings.TrimPrefix(r.URL.Path, "/")
	abs, err := validation.WithinRoot(h.Root, rel)
	if err != nil {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}

	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if info.IsDir() {
		h.serveListing(w, abs)
		return
	}
	h.serveFile(w, r, abs, info)
}

func (h *Handler) serveListing(w http.ResponseWriter, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{Name: e.Name(), IsDir: e.IsDir(), Size: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"entries": out})
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, abs string, info os.FileInfo) {
	f, err := os.Open(abs)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	ct := mime.TypeByExtension(filepath.Ext(abs))
	if ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, filepath.Base(abs), info.ModTime(), f)
}
