package reader

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/glamour"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/chronicle/internal/config"
	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/gateway/gatewaytest"
	"github.com/pders01/chronicle/internal/storage"
	"github.com/pders01/chronicle/internal/uistate"
)

func strPtr(s string) *string { return &s }

func sampleArticle() gateway.Article {
	return gateway.Article{
		ID:           12,
		Title:        "The Fall of Constantinople",
		Content:      "In **1453** the city fell to Mehmed II.",
		CategoryName: "Byzantium",
		AuthorName:   "Doukas",
		PublishedAt:  strPtr("1453-05-29T08:00:00Z"),
		Images:       []string{"/uploads/1-walls.jpg", "https://cdn.test/cannon.png"},
		ViewsCount:   1,
		Status:       gateway.StatusPublished,
		Tags:         strPtr("siege, ottoman, "),
	}
}

func TestReader_LoadSuccess(t *testing.T) {
	stub := &gatewaytest.Stub{
		GetArticleFunc: func(_ context.Context, id int) (*gateway.Article, error) {
			a := sampleArticle()
			a.ID = id
			return &a, nil
		},
	}
	r := New(stub, nil)
	assert.Equal(t, uistate.Idle, r.Snapshot().State.Kind)

	snap, err := r.Load(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, uistate.Success, snap.State.Kind)
	require.NotNil(t, snap.Article)
	assert.Equal(t, 12, snap.Article.ID)
	assert.False(t, snap.Offline)
	assert.Equal(t, snap, r.Snapshot())
}

func TestReader_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{name: "server message", err: &gateway.APIError{StatusCode: 404, Message: "Article not found"}, message: "Article not found"},
		{name: "no server message", err: &gateway.APIError{StatusCode: 500}, message: FallbackMessage},
		{name: "transport without cache", err: &gateway.TransportError{Op: "GET", Err: errors.New("refused")}, message: gateway.TransportMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &gatewaytest.Stub{
				GetArticleFunc: func(context.Context, int) (*gateway.Article, error) { return nil, tt.err },
			}
			r := New(stub, nil)

			snap, err := r.Load(context.Background(), 1)
			assert.Error(t, err)
			assert.Equal(t, uistate.ErrorState(tt.message), snap.State)
			assert.Nil(t, snap.Article)
		})
	}
}

func TestReader_OfflineFallsBackToCache(t *testing.T) {
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "reader.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.CacheArticles([]gateway.Article{sampleArticle()}))

	stub := &gatewaytest.Stub{
		GetArticleFunc: func(context.Context, int) (*gateway.Article, error) {
			return nil, &gateway.TransportError{Op: "GET", Err: errors.New("no route to host")}
		},
	}
	r := New(stub, store)

	snap, err := r.Load(context.Background(), 12)
	require.NoError(t, err)
	assert.True(t, snap.Offline)
	require.NotNil(t, snap.Article)
	assert.Equal(t, "The Fall of Constantinople", snap.Article.Title)

	snap, err = r.Load(context.Background(), 99)
	assert.Error(t, err, "uncached article still fails")
	assert.Equal(t, uistate.ErrorState(gateway.TransportMessage), snap.State)
}

func TestReader_APIErrorIgnoresCache(t *testing.T) {
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "reader.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.CacheArticles([]gateway.Article{sampleArticle()}))

	stub := &gatewaytest.Stub{
		GetArticleFunc: func(context.Context, int) (*gateway.Article, error) {
			return nil, &gateway.APIError{StatusCode: 404, Message: "Article not found"}
		},
	}
	snap, err := New(stub, store).Load(context.Background(), 12)
	assert.Error(t, err)
	assert.Equal(t, uistate.ErrorState("Article not found"), snap.State)
}

func testRenderer() *Renderer {
	cfg := config.TestConfig().UI.Article
	r := NewRenderer(cfg, func(ref string) string {
		if strings.HasPrefix(ref, "/") {
			return "http://chronicle.test" + ref
		}
		return ref
	})
	r.style = glamour.WithStandardStyle("notty")
	return r
}

func TestRenderer_Markdown(t *testing.T) {
	md := testRenderer().Markdown(sampleArticle())

	assert.True(t, strings.HasPrefix(md, "# The Fall of Constantinople\n"))
	assert.Contains(t, md, "*by Doukas · 1453-05-29 · Byzantium · 1 view*")
	assert.Contains(t, md, "`#siege` `#ottoman`")
	assert.Contains(t, md, "1. http://chronicle.test/uploads/1-walls.jpg")
	assert.Contains(t, md, "2. https://cdn.test/cannon.png")
	assert.Contains(t, md, "In **1453** the city fell")
}

func TestRenderer_MarkdownDraft(t *testing.T) {
	md := testRenderer().Markdown(gateway.Article{ViewsCount: 3})

	assert.Contains(t, md, "# Untitled")
	assert.Contains(t, md, "*Draft · 3 views*")
	assert.Contains(t, md, "*No content yet.*")
	assert.NotContains(t, md, "Images:")
}

func TestRenderer_Render(t *testing.T) {
	r := testRenderer()

	out, err := r.Render(sampleArticle(), 100)
	require.NoError(t, err)
	assert.Contains(t, out, "The Fall of Constantinople")
	assert.Contains(t, out, "Mehmed II")

	first := r.glamour
	_, err = r.Render(sampleArticle(), 104)
	require.NoError(t, err)
	assert.Same(t, first, r.glamour, "small resize keeps the renderer")

	_, err = r.Render(sampleArticle(), 200)
	require.NoError(t, err)
	assert.NotSame(t, first, r.glamour)
}

func TestRenderer_WrapWidth(t *testing.T) {
	r := testRenderer()

	assert.Equal(t, 120, r.WrapWidth(300))
	assert.Equal(t, 90, r.WrapWidth(100))
	assert.Equal(t, 46, r.WrapWidth(52))
	assert.Equal(t, 36, r.WrapWidth(40))
	assert.Equal(t, 20, r.WrapWidth(10))
}
