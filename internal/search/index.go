package search

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/pders01/chronicle/internal/debuglog"
	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/storage"
)

// ArticleCache is where indexed articles are kept in full.
type ArticleCache interface {
	CacheArticles(articles []gateway.Article) error
	CachedArticle(id int) (*gateway.Article, error)
	CachedArticles() ([]gateway.Article, error)
	ForgetArticle(id int) error
}

// Index is a full-text index over every article the client has seen. The
// bleve index holds terms; the article bodies live in the cache.
type Index struct {
	cache ArticleCache

	mu  sync.RWMutex
	idx bleve.Index
}

// OpenIndex opens or creates the index at indexPath and indexes whatever the
// cache already holds. An empty path keeps the index in memory.
func OpenIndex(cache ArticleCache, indexPath string) (*Index, error) {
	var (
		idx bleve.Index
		err error
	)
	if indexPath == "" {
		idx, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(indexPath), 0o755); mkErr != nil {
			return nil, fmt.Errorf("creating index directory: %w", mkErr)
		}
		idx, err = bleve.Open(indexPath)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(indexPath, buildIndexMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("opening search index: %w", err)
	}

	x := &Index{cache: cache, idx: idx}
	if err := x.reindexAll(); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return x, nil
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = standard.Name
	title.Store = true
	title.IncludeTermVectors = true

	content := bleve.NewTextFieldMapping()
	content.Analyzer = standard.Name
	content.Store = false

	tags := bleve.NewTextFieldMapping()
	tags.Analyzer = standard.Name

	category := bleve.NewTextFieldMapping()
	category.Analyzer = standard.Name

	author := bleve.NewTextFieldMapping()
	author.Analyzer = standard.Name

	dm.AddFieldMappingsAt("title", title)
	dm.AddFieldMappingsAt("content", content)
	dm.AddFieldMappingsAt("tags", tags)
	dm.AddFieldMappingsAt("category", category)
	dm.AddFieldMappingsAt("author", author)

	im.DefaultMapping = dm
	return im
}

func docID(id int) string { return "article:" + strconv.Itoa(id) }

func articleID(doc string) (int, bool) {
	id, err := strconv.Atoi(strings.TrimPrefix(doc, "article:"))
	return id, err == nil
}

func document(a gateway.Article) map[string]any {
	tags := ""
	if a.Tags != nil {
		tags = *a.Tags
	}
	return map[string]any{
		"title":    a.Title,
		"content":  a.Content,
		"tags":     tags,
		"category": a.CategoryName,
		"author":   a.AuthorName,
	}
}

func (x *Index) reindexAll() error {
	articles, err := x.cache.CachedArticles()
	if err != nil {
		return fmt.Errorf("reading article cache: %w", err)
	}
	return x.index(articles)
}

func (x *Index) index(articles []gateway.Article) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	batch := x.idx.NewBatch()
	for _, a := range articles {
		if err := batch.Index(docID(a.ID), document(a)); err != nil {
			return fmt.Errorf("indexing article %d: %w", a.ID, err)
		}
	}
	return x.idx.Batch(batch)
}

// Add caches and indexes articles. It satisfies listing.Sink so every
// fetched page feeds the offline index.
func (x *Index) Add(articles []gateway.Article) error {
	if len(articles) == 0 {
		return nil
	}
	if err := x.cache.CacheArticles(articles); err != nil {
		return fmt.Errorf("caching articles: %w", err)
	}
	return x.index(articles)
}

// Remove drops an article from the cache and the index.
func (x *Index) Remove(id int) error {
	if err := x.cache.ForgetArticle(id); err != nil {
		return fmt.Errorf("forgetting article %d: %w", id, err)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.idx.Delete(docID(id))
}

// Search matches query terms across title, tags, category, author and
// content, best first. Hits missing from the cache are skipped.
func (x *Index) Search(query string, limit int) ([]gateway.Article, error) {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return []gateway.Article{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	boosts := []struct {
		field string
		match float64
		pref  float64
	}{
		{"title", 4.0, 3.5},
		{"tags", 2.0, 1.8},
		{"category", 1.5, 1.2},
		{"author", 1.5, 1.2},
		{"content", 1.0, 0.8},
	}
	var qs []bleveQuery.Query
	for _, tok := range tokens {
		for _, b := range boosts {
			mq := bleve.NewMatchQuery(tok)
			mq.SetField(b.field)
			mq.SetBoost(b.match)
			qs = append(qs, mq)

			pq := bleve.NewPrefixQuery(tok)
			pq.SetField(b.field)
			pq.SetBoost(b.pref)
			qs = append(qs, pq)
		}
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(qs...), limit, 0, false)
	x.mu.RLock()
	res, err := x.idx.Search(req)
	x.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	out := make([]gateway.Article, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, ok := articleID(h.ID)
		if !ok {
			continue
		}
		a, err := x.cache.CachedArticle(id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	debuglog.Debugf("offline search %q: %d hits", query, len(out))
	return out, nil
}

// DocCount reports total documents in the index.
func (x *Index) DocCount() (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n, err := x.idx.DocCount()
	return int(n), err
}

func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.idx.Close()
}

// tokenize lowercases query and splits it on anything that is not a letter
// or digit, dropping single-character tokens.
func tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}
