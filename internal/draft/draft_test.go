package draft

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/gateway/gatewaytest"
	"github.com/pders01/chronicle/internal/storage"
)

var testCategories = []gateway.Category{
	{ID: 1, Name: "Ancient History"},
	{ID: 2, Name: "Medieval"},
}

func strPtr(s string) *string { return &s }

func hydrated(t *testing.T) *Draft {
	t.Helper()
	d := New()
	require.NoError(t, d.Hydrate(gateway.Article{
		ID:         10,
		Title:      "A",
		Content:    "B",
		Tags:       strPtr(""),
		CategoryID: 1,
		Images:     []string{"img1", "img2"},
		Status:     gateway.StatusPublished,
	}, testCategories))
	return d
}

func TestHydrate_NoChanges(t *testing.T) {
	d := hydrated(t)
	assert.False(t, d.HasChanges())

	snap := d.Snapshot()
	assert.Equal(t, 10, snap.ArticleID)
	require.NotNil(t, snap.Category)
	assert.Equal(t, "Ancient History", snap.Category.Name)
	assert.Equal(t, []string{"img1", "img2"}, snap.PersistedImages)
	assert.Empty(t, snap.PendingDeletions)
}

func TestHydrate_OnlyOnce(t *testing.T) {
	d := hydrated(t)
	assert.ErrorIs(t, d.Hydrate(gateway.Article{ID: 11}, nil), ErrAlreadyHydrated)

	fresh := New()
	fresh.UpdateField(Title, "typed first")
	assert.ErrorIs(t, fresh.Hydrate(gateway.Article{ID: 11}, nil), ErrAlreadyMutated)
}

func TestHydrate_CategoryResolution(t *testing.T) {
	byName := New()
	require.NoError(t, byName.Hydrate(gateway.Article{CategoryID: 99, CategoryName: "Medieval"}, testCategories))
	assert.Equal(t, 2, byName.Category().ID)

	synthetic := New()
	require.NoError(t, synthetic.Hydrate(gateway.Article{CategoryID: 7, CategoryName: "Lost"}, testCategories))
	assert.Equal(t, &gateway.Category{ID: 7, Name: "Lost"}, synthetic.Category())

	none := New()
	require.NoError(t, none.Hydrate(gateway.Article{Title: "x"}, testCategories))
	assert.Nil(t, none.Category())
	assert.False(t, none.HasChanges())
}

func TestHasChanges_SameValueIsNotAChange(t *testing.T) {
	d := hydrated(t)
	d.UpdateField(Title, "A")
	assert.False(t, d.HasChanges())

	assert.True(t, d.RemovePersistedImage("img1"))
	assert.True(t, d.HasChanges())
	assert.Equal(t, []string{"img1"}, d.Snapshot().PendingDeletions)
}

func TestHasChanges_ForwardTransitions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Draft)
	}{
		{"title", func(d *Draft) { d.UpdateField(Title, "A2") }},
		{"content", func(d *Draft) { d.UpdateField(Content, "B2") }},
		{"tags", func(d *Draft) { d.UpdateField(Tags, "rome") }},
		{"category", func(d *Draft) { d.SetCategory(&testCategories[1]) }},
		{"category cleared", func(d *Draft) { d.SetCategory(nil) }},
		{"new image", func(d *Draft) { d.AddNewImages("/tmp/a.jpg") }},
		{"persisted removal", func(d *Draft) { d.RemovePersistedImage("img2") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := hydrated(t)
			require.False(t, d.HasChanges())
			tt.mutate(d)
			assert.True(t, d.HasChanges())
		})
	}
}

func TestRemovePersistedImage_OneWay(t *testing.T) {
	d := hydrated(t)

	assert.False(t, d.RemovePersistedImage("missing"))
	assert.False(t, d.HasChanges(), "absent ref is a no-op")

	assert.True(t, d.RemovePersistedImage("img1"))
	assert.False(t, d.RemovePersistedImage("img1"), "already moved")

	snap := d.Snapshot()
	assert.Equal(t, []string{"img2"}, snap.PersistedImages)
	assert.Equal(t, []string{"img1"}, snap.PendingDeletions)
	for _, ref := range snap.PendingDeletions {
		assert.NotContains(t, snap.PersistedImages, ref)
	}
}

func TestNewImages(t *testing.T) {
	d := New()

	added := d.AddNewImages("/tmp/a.jpg", "/tmp/a.jpg")
	require.Len(t, added, 2)
	assert.NotEqual(t, added[0].Handle, added[1].Handle, "same file twice gets two entries")

	assert.True(t, d.SetCaption(added[1].Handle, "second copy"))
	assert.False(t, d.SetCaption("nope", "x"))

	assert.False(t, d.RemoveNewImage("nope"))
	assert.True(t, d.RemoveNewImage(added[0].Handle))

	snap := d.Snapshot()
	require.Len(t, snap.NewImages, 1)
	assert.Equal(t, "second copy", snap.NewImages[0].Caption)
	assert.Equal(t, "/tmp/a.jpg", snap.NewImages[0].Source)
}

func TestNewDraft_HasChanges(t *testing.T) {
	d := New()
	assert.False(t, d.HasChanges())
	d.UpdateField(Content, "draft text")
	assert.True(t, d.HasChanges())
}

func TestValidate(t *testing.T) {
	d := New()
	d.UpdateField(Title, "Hastings")

	assert.NoError(t, d.Validate(gateway.StatusDraft), "drafts accept blank content and category")
	assert.True(t, d.IsComplete(gateway.StatusDraft))

	err := d.Validate(gateway.StatusPublished)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Category)
	assert.Equal(t, []Field{Content}, verr.Fields)
	assert.Equal(t, "Content and category are required to publish", err.Error())

	d.UpdateField(Content, "1066")
	assert.Equal(t, "Category is required to publish", d.Validate(gateway.StatusPublished).Error())

	d.SetCategory(&testCategories[1])
	assert.NoError(t, d.Validate(gateway.StatusPublished))

	d.UpdateField(Title, "   ")
	assert.Equal(t, "Title is required", d.Validate(gateway.StatusDraft).Error())
	assert.Equal(t, "Title is required", d.Validate(gateway.StatusPublished).Error())
}

func TestValidate_AllMissing(t *testing.T) {
	err := New().Validate(gateway.StatusPublished)
	require.Error(t, err)
	assert.Equal(t, "Title, content and category are required to publish", err.Error())
}

func TestParseField(t *testing.T) {
	f, err := ParseField("Content")
	require.NoError(t, err)
	assert.Equal(t, Content, f)

	_, err = ParseField("images")
	assert.Error(t, err)
}

func TestRecordRestore(t *testing.T) {
	d := hydrated(t)
	d.UpdateField(Title, "A revised")
	d.RemovePersistedImage("img2")
	added := d.AddNewImages("/tmp/map.png")
	d.SetCaption(added[0].Handle, "Map of Gaul")

	store, err := storage.NewStore(filepath.Join(t.TempDir(), "drafts.db"))
	require.NoError(t, err)
	defer store.Close()

	rec := d.Record()
	assert.Equal(t, "article:10", rec.Key)
	require.NoError(t, store.SaveDraft(rec))

	loaded, err := store.LoadDraft(Key(10))
	require.NoError(t, err)

	restored := Restore(loaded)
	assert.True(t, restored.HasChanges())
	snap := restored.Snapshot()
	assert.Equal(t, "A revised", snap.Title)
	assert.Equal(t, []string{"img1"}, snap.PersistedImages)
	assert.Equal(t, []string{"img2"}, snap.PendingDeletions)
	require.Len(t, snap.NewImages, 1)
	assert.Equal(t, "Map of Gaul", snap.NewImages[0].Caption)
	assert.Equal(t, "A", snap.Baseline.Title)
	assert.ErrorIs(t, restored.Hydrate(gateway.Article{}, nil), ErrAlreadyHydrated)

	// Undoing the title edit leaves only the image changes.
	restored.UpdateField(Title, "A")
	assert.True(t, restored.HasChanges())
}

func TestKey(t *testing.T) {
	assert.Equal(t, KeyNew, Key(0))
	assert.Equal(t, "article:5", Key(5))
}

func TestOpen(t *testing.T) {
	stub := &gatewaytest.Stub{
		GetArticleFunc: func(_ context.Context, id int) (*gateway.Article, error) {
			return &gateway.Article{ID: id, Title: "Actium", CategoryID: 1, Images: []string{"x"}}, nil
		},
		ListCategoriesFunc: func(context.Context) ([]gateway.Category, error) {
			return testCategories, nil
		},
	}

	d, cats, err := Open(context.Background(), stub, 31)
	require.NoError(t, err)
	assert.Len(t, cats, 2)
	assert.Equal(t, 31, d.ArticleID())
	assert.Equal(t, "Ancient History", d.Category().Name)
	assert.False(t, d.HasChanges())
}

func TestOpen_PropagatesErrors(t *testing.T) {
	stub := &gatewaytest.Stub{
		GetArticleFunc: func(context.Context, int) (*gateway.Article, error) {
			return nil, &gateway.APIError{StatusCode: 404, Message: "Article not found"}
		},
		ListCategoriesFunc: func(context.Context) ([]gateway.Category, error) {
			return testCategories, nil
		},
	}

	_, _, err := Open(context.Background(), stub, 1)
	require.Error(t, err)
	assert.True(t, gateway.IsNotFound(err))
}

func TestOpen_EmptyArticle(t *testing.T) {
	stub := &gatewaytest.Stub{
		GetArticleFunc: func(context.Context, int) (*gateway.Article, error) {
			return nil, nil
		},
		ListCategoriesFunc: func(context.Context) ([]gateway.Category, error) {
			return testCategories, nil
		},
	}

	var (
		d   *Draft
		err error
	)
	require.NotPanics(t, func() { d, _, err = Open(context.Background(), stub, 9) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "article 9")
	assert.Nil(t, d)
}
