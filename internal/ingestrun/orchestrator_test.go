package ingestrun

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"docmind/internal/archivepipe"
	"docmind/internal/ingestcache"
	"docmind/internal/obs"
)

func writeZipArchive(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("1.0/en/topic.htm")
	require.NoError(t, err)
	_, err = w.Write([]byte("<html><body><p>content</p></body></html>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func fakeEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func TestOrchestratorSkipsUnchangedArchives(t *testing.T) {
	dir := t.TempDir()
	writeZipArchive(t, dir, "help.zip")

	cache := ingestcache.NewFileCache(filepath.Join(dir, "cache.json"))
	status := obs.NewStatus()
	o := &Orchestrator{
		Pipeline: &archivepipe.Pipeline{Extractor: archivepipe.ZipExtractor{}, ScratchRoot: t.TempDir()},
		Vector:   nil,
		Embed:    fakeEmbed,
		Cache:    cache,
		Status:   status,
		Workers:  1,
	}
	// There is no vector writer; a pre-recorded cache entry for the archive
	// makes Run skip it without ever calling processArchive.
	require.NoError(t, cache.MarkIndexed(context.Background(), filepath.Join(dir, "help.zip"), mustHash(t, filepath.Join(dir, "help.zip"))))

	summary, err := o.Run(context.Background(), []string{dir}, RunOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, summary.ArchivesTotal)
	require.Equal(t, 1, summary.ArchivesSkipped)
	require.Equal(t, 0, summary.ArchivesIndexed)
}

func TestOrchestratorDryRunDoesNotIndex(t *testing.T) {
	dir := t.TempDir()
	writeZipArchive(t, dir, "help.zip")

	cache := ingestcache.NewFileCache(filepath.Join(dir, "cache.json"))
	o := &Orchestrator{
		Pipeline: &archivepipe.Pipeline{Extractor: archivepipe.ZipExtractor{}, ScratchRoot: t.TempDir()},
		Embed:    fakeEmbed,
		Cache:    cache,
		Workers:  1,
	}

	summary, err := o.Run(context.Background(), []string{dir}, RunOptions{DryRun: true})
	require.NoError(t, err)
	require.Equal(t, 1, summary.ArchivesTotal)
	require.Equal(t, 0, summary.ArchivesIndexed)

	_, ok, _ := cache.Lookup(context.Background(), filepath.Join(dir, "help.zip"))
	require.False(t, ok)
}

func TestOrchestratorSkipsArchivesNotMatchingLanguageFilter(t *testing.T) {
	dir := t.TempDir()
	writeZipArchive(t, dir, "help_ru.zip")
	writeZipArchive(t, dir, "help_de.zip")

	cache := ingestcache.NewFileCache(filepath.Join(dir, "cache.json"))
	o := &Orchestrator{
		Pipeline: &archivepipe.Pipeline{Extractor: archivepipe.ZipExtractor{}, ScratchRoot: t.TempDir()},
		Embed:    fakeEmbed,
		Cache:    cache,
		Workers:  1,
	}

	summary, err := o.Run(context.Background(), []string{dir}, RunOptions{DryRun: true, Language: "ru"})
	require.NoError(t, err)
	require.Equal(t, 1, summary.ArchivesTotal)
}

func mustHash(t *testing.T, path string) ingestcache.Entry {
	t.Helper()
	h, err := archiveHash(path)
	require.NoError(t, err)
	return ingestcache.Entry{ContentHash: h, TopicCount: 1}
}
