package archivepipe

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	require.Equal(t, ClassHTML, Classify("a/b.htm"))
	require.Equal(t, ClassHTML, Classify("a/b.HTML"))
	require.Equal(t, ClassMarkdown, Classify("a/b.md"))
	require.Equal(t, ClassAsset, Classify("a/b.png"))
	require.Equal(t, ClassSkip, Classify("a/b.exe"))
}

func TestDeriveArchiveVersionLanguage(t *testing.T) {
	v, l := DeriveArchiveVersionLanguage("/sources/2024.1/help_ru.hbk")
	require.Equal(t, "2024.1", v)
	require.Equal(t, "ru", l)

	v, l = DeriveArchiveVersionLanguage("/sources/help.hbk")
	require.Equal(t, "unknown", v)
	require.Equal(t, "en", l)

	v, l = DeriveArchiveVersionLanguage("/sources/v3/help.hbk")
	require.Equal(t, "3", v)
	require.Equal(t, "en", l)
}

func TestDeriveIDDeterministic(t *testing.T) {
	a := DeriveID("1.0", "en", "a/b.htm")
	b := DeriveID("1.0", "en", "a/b.htm")
	require.Equal(t, a, b)
	c := DeriveID("1.0", "en", "a/c.htm")
	require.NotEqual(t, a, c)
}

func TestConvertHTMLAddsTitleWhenMissing(t *testing.T) {
	md, err := ConvertHTML("<p>Hello <b>world</b></p>", "My Page")
	require.NoError(t, err)
	require.Contains(t, md, "# My Page")
	require.Contains(t, md, "Hello")
}

func TestConvertHTMLKeepsExistingH1(t *testing.T) {
	md, err := ConvertHTML("<h1>Existing</h1><p>body</p>", "Ignored")
	require.NoError(t, err)
	require.NotContains(t, md, "# Ignored")
}

func TestPipelineRunOverZipArchive(t *testing.T) {
	dir := t.TempDir()
	versionDir := filepath.Join(dir, "2024.1")
	require.NoError(t, os.MkdirAll(versionDir, 0o755))
	archivePath := filepath.Join(versionDir, "help_ru.zip")

	f, err := os.Create(archivePath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("intro.htm")
	require.NoError(t, err)
	_, err = w.Write([]byte("<html><head><title>Intro</title></head><body><p>Welcome</p></body></html>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	p := &Pipeline{Extractor: ZipExtractor{}, ScratchRoot: dir}
	var topics []Topic
	for topic, err := range p.Run(context.Background(), archivePath) {
		require.NoError(t, err)
		topics = append(topics, topic)
	}
	require.Len(t, topics, 1)
	require.Equal(t, "2024.1", topics[0].Version)
	require.Equal(t, "ru", topics[0].Language)
	require.Contains(t, topics[0].Markdown, "Welcome")
}
