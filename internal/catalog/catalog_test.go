package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCatalogUpsertAndGet(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "catalog.json"))
	require.NoError(t, c.UpsertMany([]TopicRecord{
		{ID: "1", Title: "Installing the Widget", Version: "1.0", Language: "en", Excerpt: "steps to install"},
		{ID: "2", Title: "Uninstalling", Version: "1.0", Language: "en", Excerpt: "steps to remove"},
	}))

	r, ok := c.Get("1")
	require.True(t, ok)
	require.Equal(t, "Installing the Widget", r.Title)

	require.Equal(t, 2, c.Count())
}

func TestCatalogListTitlesFiltersByVersion(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "catalog.json"))
	require.NoError(t, c.UpsertMany([]TopicRecord{
		{ID: "1", Title: "A", Version: "1.0", Language: "en"},
		{ID: "2", Title: "B", Version: "2.0", Language: "en"},
	}))
	got := c.ListTitles("1.0", "")
	require.Len(t, got, 1)
	require.Equal(t, "A", got[0].Title)
}

func TestCatalogSearchKeyword(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "catalog.json"))
	require.NoError(t, c.UpsertMany([]TopicRecord{
		{ID: "1", Title: "Installing the Widget", Excerpt: "steps"},
		{ID: "2", Title: "Something Else", Excerpt: "widget callback"},
		{ID: "3", Title: "Unrelated", Excerpt: "nothing here"},
	}))
	got := c.SearchKeyword("widget", 10)
	require.Len(t, got, 2)
}

func TestCatalogSearchKeywordRanksExactTitleMatchFirst(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "catalog.json"))
	require.NoError(t, c.UpsertMany([]TopicRecord{
		{ID: "1", Title: "Something about Widget usage", Excerpt: "body text"},
		{ID: "2", Title: "widget", Excerpt: "exact title match"},
		{ID: "3", Title: "Unrelated", Excerpt: "mentions widget in passing"},
	}))
	got := c.SearchKeyword("widget", 10)
	require.Len(t, got, 3)
	require.Equal(t, "2", got[0].ID, "exact title match should rank first")
	require.Equal(t, "1", got[1].ID, "title substring match should rank before excerpt-only match")
	require.Equal(t, "3", got[2].ID)
}

func TestExcerptTruncates(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'a'
	}
	e := Excerpt(string(long))
	require.Less(t, len(e), 1000)
}
