package search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "search.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedArticles() []gateway.Article {
	tags := "navy, persia"
	return []gateway.Article{
		{ID: 1, Title: "The Battle of Salamis", Content: "Themistocles lured the Persian fleet into the straits.", CategoryName: "Ancient History", AuthorName: "Herodotus", Tags: &tags},
		{ID: 2, Title: "Founding of Baghdad", Content: "Al-Mansur laid out the round city in 762.", CategoryName: "Medieval History", AuthorName: "al-Tabari"},
		{ID: 3, Title: "The Printing Press", Content: "Gutenberg's movable type spread across Europe.", CategoryName: "Early Modern", AuthorName: "Eisenstein"},
	}
}

func TestIndex_AddAndSearch(t *testing.T) {
	store := newTestStore(t)
	x, err := OpenIndex(store, "")
	require.NoError(t, err)
	defer x.Close()

	require.NoError(t, x.Add(seedArticles()))

	n, err := x.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	res, err := x.Search("salamis", 10)
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, 1, res[0].ID)

	res, err = x.Search("persia", 10)
	require.NoError(t, err)
	require.NotEmpty(t, res, "tags are searchable")
	assert.Equal(t, 1, res[0].ID)

	res, err = x.Search("gutenb", 10)
	require.NoError(t, err)
	require.NotEmpty(t, res, "prefix matches")
	assert.Equal(t, 3, res[0].ID)

	res, err = x.Search("medieval", 10)
	require.NoError(t, err)
	require.NotEmpty(t, res, "category names are searchable")
	assert.Equal(t, 2, res[0].ID)

	cached, err := store.CachedArticle(2)
	require.NoError(t, err, "Add caches the full article")
	assert.Equal(t, "Founding of Baghdad", cached.Title)
}

func TestIndex_ShortOrBlankQuery(t *testing.T) {
	x, err := OpenIndex(newTestStore(t), "")
	require.NoError(t, err)
	defer x.Close()
	require.NoError(t, x.Add(seedArticles()))

	for _, q := range []string{"", "  ", "a", "!?"} {
		res, err := x.Search(q, 10)
		require.NoError(t, err)
		assert.Empty(t, res, "query %q", q)
	}
}

func TestIndex_Remove(t *testing.T) {
	store := newTestStore(t)
	x, err := OpenIndex(store, "")
	require.NoError(t, err)
	defer x.Close()
	require.NoError(t, x.Add(seedArticles()))

	require.NoError(t, x.Remove(1))
	res, err := x.Search("salamis", 10)
	require.NoError(t, err)
	assert.Empty(t, res)

	_, err = store.CachedArticle(1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIndex_ReindexesCacheOnOpen(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CacheArticles(seedArticles()))

	dir := t.TempDir()
	idxPath := filepath.Join(dir, "nested", "index.bleve")
	x, err := OpenIndex(store, idxPath)
	require.NoError(t, err)

	res, err := x.Search("baghdad", 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.NoError(t, x.Close())

	fi, err := os.Stat(idxPath)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())

	// Reopening an existing index works too.
	x, err = OpenIndex(store, idxPath)
	require.NoError(t, err)
	defer x.Close()
	n, err := x.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"battle", "of", "salamis"}, tokenize("Battle of SALAMIS!"))
	assert.Equal(t, []string{"al", "mansur"}, tokenize("al-Mansur"))
	assert.Empty(t, tokenize("a b c"))
}
