package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HELP_SOURCES_DIR", "HELP_SOURCE_BASE", "EMBED_BASE_URL", "VECTOR_DSN", "DOCMIND_MODE", "INGEST_CACHE_PATH"} {
		os.Unsetenv(k)
	}
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "dev", cfg.Mode)
	require.Equal(t, "/tmp/docmind/cache.json", cfg.IngestCachePath)
	require.Equal(t, "cosine", cfg.Vector.Metric)
	require.Equal(t, "docmind_topics", cfg.Vector.Collection)
}

func TestHelpSourcesDirLegacyAlias(t *testing.T) {
	os.Unsetenv("HELP_SOURCES_DIR")
	t.Setenv("HELP_SOURCE_BASE", "/srv/help")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/srv/help", cfg.HelpSourcesDir)
}

func TestContainerModeCachePath(t *testing.T) {
	os.Unsetenv("INGEST_CACHE_PATH")
	t.Setenv("DOCMIND_MODE", "container")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/app/var/docmind/cache.json", cfg.IngestCachePath)
}

func TestRequireHelpSourcesDirMissing(t *testing.T) {
	cfg := Config{}
	err := cfg.RequireHelpSourcesDir()
	require.Error(t, err)
}
