// Package archivepipe unpacks a vendor help archive, walks the extracted
// tree, classifies each file, and converts HTML pages to Markdown topics.
// Unpacking itself is an external collaborator (a configured command-line
// tool); this package only owns the walk/classify/convert/derive-ID steps.
package archivepipe

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"docmind/internal/apperr"
)

// Extractor unpacks an archive file into scratchDir.
type Extractor interface {
	Extract(ctx context.Context, archivePath, scratchDir string) error
}

// CommandExtractor shells out to a configured external unpacker tool, the
// same "thin shell over a standard archive tool" idiom the teacher uses for
// process-based collaborators (internal/mcp/servers.go spawning
// subprocesses via exec.CommandContext).
type CommandExtractor struct {
	Command string // e.g. "unhbk"
}

func (e CommandExtractor) Extract(ctx context.Context, archivePath, scratchDir string) error {
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return apperr.New(apperr.Retriable, "create scratch dir", err)
	}
	cmd := exec.CommandContext(ctx, e.Command, archivePath, scratchDir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return apperr.New(apperr.Retriable, fmt.Sprintf("unpack command failed: %s", strings.TrimSpace(string(out))), err)
	}
	return nil
}

// ZipExtractor is a pure-Go fallback used when the external unpacker
// command is not installed. It only handles the subset of vendor archives
// that happen to be plain zip containers.
type ZipExtractor struct{}

func (ZipExtractor) Extract(_ context.Context, archivePath, scratchDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return apperr.New(apperr.InvalidInput, "open archive as zip", err)
	}
	defer r.Close()

	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return apperr.New(apperr.Retriable, "create scratch dir", err)
	}
	for _, f := range r.File {
		dest := filepath.Join(scratchDir, f.Name)
		if !strings.HasPrefix(dest, filepath.Clean(scratchDir)+string(os.PathSeparator)) {
			continue // refuse zip-slip paths
		}
		if f.FileInfo().IsDir() {
			os.MkdirAll(dest, 0o755)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.Create(dest)
		if err != nil {
			rc.Close()
			return err
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return copyErr
		}
	}
	return nil
}

// Class describes how a walked file should be handled.
type Class string

const (
	ClassHTML    Class = "html"
	ClassMarkdown Class = "markdown"
	ClassAsset   Class = "asset"
	ClassSkip    Class = "skip"
)

var htmlExt = map[string]bool{".htm": true, ".html": true, ".xhtml": true}
var mdExt = map[string]bool{".md": true, ".markdown": true}

// Classify sniffs a file's extension to decide how the walk should treat
// it.
func Classify(path string) Class {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case htmlExt[ext]:
		return ClassHTML
	case mdExt[ext]:
		return ClassMarkdown
	case ext == ".css" || ext == ".js" || ext == ".png" || ext == ".gif" || ext == ".jpg" || ext == ".jpeg" || ext == ".svg":
		return ClassAsset
	default:
		return ClassSkip
	}
}

// Walk returns every regular file path under root, relative to root.
func Walk(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return rerr
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, apperr.New(apperr.Retriable, "walk extracted archive", err)
	}
	return out, nil
}

var versionLeafRe = regexp.MustCompile(`(?i)^v?(\d+(?:\.\d+){0,3})$`)
var languageSuffixRe = regexp.MustCompile(`(?i)_([a-z]{2})$`)

// DeriveArchiveVersionLanguage extracts a version and language tag from the
// archive file itself, not from anything inside it: version is the leaf
// directory name immediately above the archive on disk when that name
// looks like a version ("2024.1", "v3"); language is the archive's
// filename suffix ("help_ru.hbk" -> "ru"). They fall back to "unknown"
// and "en" when the parent directory's name or the archive's filename,
// respectively, doesn't encode them.
func DeriveArchiveVersionLanguage(archivePath string) (version, language string) {
	version, language = "unknown", "en"
	leaf := filepath.Base(filepath.Dir(archivePath))
	if m := versionLeafRe.FindStringSubmatch(leaf); len(m) > 1 {
		version = m[1]
	}
	stem := strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath))
	if m := languageSuffixRe.FindStringSubmatch(stem); len(m) > 1 {
		language = strings.ToLower(m[1])
	}
	return version, language
}

// DeriveID derives a stable, deterministic topic ID from its version,
// language and path, using the same uuid.NewSHA1 technique the teacher
// uses to turn arbitrary strings into valid point IDs.
func DeriveID(version, language, path string) string {
	key := version + "\x00" + language + "\x00" + path
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// Topic is a single converted, normalized help page.
type Topic struct {
	ID       string
	Version  string
	Language string
	Path     string
	Title    string
	Markdown string
}
