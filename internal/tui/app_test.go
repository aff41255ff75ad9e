package tui

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/chronicle/internal/config"
	"github.com/pders01/chronicle/internal/draft"
	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/gateway/gatewaytest"
	"github.com/pders01/chronicle/internal/listing"
	"github.com/pders01/chronicle/internal/search"
	"github.com/pders01/chronicle/internal/storage"
	"github.com/pders01/chronicle/internal/submit"
)

func newTestApp(t *testing.T, gw *gatewaytest.Stub) (*App, *storage.Store) {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	app := NewApp(store, gw, nil, config.TestConfig())
	t.Cleanup(app.Close)
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return app, store
}

func sampleArticles() []gateway.Article {
	return []gateway.Article{
		{ID: 1, Title: "The Fall of Constantinople", Content: "In 1453...", AuthorName: "Ana", Status: gateway.StatusPublished},
		{ID: 2, Title: "Magna Carta", Content: "Sealed in 1215.", AuthorName: "Ben", Status: gateway.StatusPublished},
	}
}

func sampleCategories() []gateway.Category {
	return []gateway.Category{{ID: 1, Name: "Antiquity"}, {ID: 2, Name: "Middle Ages"}}
}

func TestApp_SessionCheck(t *testing.T) {
	t.Run("no session starts on login", func(t *testing.T) {
		app, _ := newTestApp(t, &gatewaytest.Stub{})
		app.Update(app.checkSession()())
		assert.Equal(t, ViewLogin, app.view)
		assert.False(t, app.loggedIn())
	})

	t.Run("stored session goes home", func(t *testing.T) {
		stub := &gatewaytest.Stub{
			ListArticlesFunc: func(context.Context, gateway.ListOptions) ([]gateway.Article, error) {
				return sampleArticles(), nil
			},
		}
		app, store := newTestApp(t, stub)
		require.NoError(t, store.SaveSession(7, "token"))

		_, cmd := app.Update(app.checkSession()())
		assert.Equal(t, ViewHome, app.view)
		assert.Equal(t, 7, app.userID)
		assert.NotNil(t, cmd)
		assert.True(t, app.busy)
	})
}

func TestApp_LoginAndLogout(t *testing.T) {
	stub := &gatewaytest.Stub{
		LoginFunc: func(_ context.Context, req gateway.LoginRequest) (*gateway.Session, error) {
			return &gateway.Session{Token: "t", User: &gateway.User{ID: 3, Email: req.Email}}, nil
		},
	}
	app, store := newTestApp(t, stub)
	app.Update(app.checkSession()())

	app.Update(app.login("ana@example.com", "secret1")())
	assert.Equal(t, ViewHome, app.view)
	assert.Equal(t, 3, app.userID)

	id, err := store.UserID()
	require.NoError(t, err)
	assert.Equal(t, 3, id)

	app.Update(app.logout()())
	assert.Equal(t, ViewLogin, app.view)
	assert.False(t, app.loggedIn())
}

func TestApp_LoginFailureShowsMessage(t *testing.T) {
	stub := &gatewaytest.Stub{
		LoginFunc: func(context.Context, gateway.LoginRequest) (*gateway.Session, error) {
			return nil, &gateway.APIError{StatusCode: 401, Message: "Invalid credentials"}
		},
	}
	app, _ := newTestApp(t, stub)
	app.Update(app.checkSession()())

	app.Update(app.login("ana@example.com", "wrong-pass")())
	assert.Equal(t, ViewLogin, app.view)
	assert.Equal(t, StatusError, app.statusKind)
	assert.NotEmpty(t, app.status)
}

func TestApp_PageLoaded(t *testing.T) {
	stub := &gatewaytest.Stub{
		ListArticlesFunc: func(context.Context, gateway.ListOptions) ([]gateway.Article, error) {
			return sampleArticles(), nil
		},
	}
	app, store := newTestApp(t, stub)
	app.view = ViewHome

	app.Update(app.loadPage(true)())
	assert.Len(t, app.homeList.Items(), 2)
	assert.False(t, app.busy)

	cached, err := store.CachedArticle(2)
	require.NoError(t, err)
	assert.Equal(t, "Magna Carta", cached.Title)
}

func TestApp_PageLoadFailure(t *testing.T) {
	stub := &gatewaytest.Stub{
		ListArticlesFunc: func(context.Context, gateway.ListOptions) ([]gateway.Article, error) {
			return nil, &gateway.TransportError{Op: "list articles", Err: errors.New("connection refused")}
		},
	}
	app, _ := newTestApp(t, stub)
	app.view = ViewHome

	app.Update(pageLoadedMsg{result: app.cursor.Load(context.Background(), true)})
	assert.Empty(t, app.homeList.Items())
	assert.Equal(t, StatusError, app.statusKind)
}

func TestApp_OpenArticle(t *testing.T) {
	arts := sampleArticles()
	stub := &gatewaytest.Stub{
		GetArticleFunc: func(_ context.Context, id int) (*gateway.Article, error) {
			a := arts[id-1]
			return &a, nil
		},
	}
	app, _ := newTestApp(t, stub)
	app.view = ViewReader
	app.loadingArticle = true

	app.Update(app.openArticle(2)())
	assert.False(t, app.loadingArticle)
	require.NotNil(t, app.currentArticle)
	assert.Equal(t, 2, app.currentArticle.ID)
	assert.Contains(t, app.viewport.View(), "Magna")
}

func TestApp_OpenArticleFailureReturns(t *testing.T) {
	stub := &gatewaytest.Stub{
		GetArticleFunc: func(context.Context, int) (*gateway.Article, error) {
			return nil, &gateway.APIError{StatusCode: 404, Message: "Article not found"}
		},
	}
	app, _ := newTestApp(t, stub)
	app.view = ViewReader
	app.readerReturn = ViewHome

	app.Update(app.openArticle(9)())
	assert.Equal(t, ViewHome, app.view)
	assert.Equal(t, "Article not found", app.status)
}

func TestApp_SearchResults(t *testing.T) {
	app, _ := newTestApp(t, &gatewaytest.Stub{})
	app.view = ViewSearch
	app.searchSeq = 3

	app.Update(searchResultsMsg{seq: 2, snap: search.Snapshot{Query: "old", Articles: sampleArticles()}})
	assert.Empty(t, app.searchList.Items(), "stale responses are dropped")

	app.Update(searchResultsMsg{seq: 3, snap: search.Snapshot{Query: "magna", Articles: sampleArticles()[1:], Offline: true}})
	assert.Len(t, app.searchList.Items(), 1)
	assert.True(t, app.searchOffline)
	assert.Equal(t, StatusWarn, app.statusKind)

	app.Update(searchResultsMsg{seq: 3, err: search.ErrStale})
	assert.Len(t, app.searchList.Items(), 1)
}

func TestApp_NewArticleSubmit(t *testing.T) {
	var created gateway.ArticlePayload
	stub := &gatewaytest.Stub{
		ListCategoriesFunc: func(context.Context) ([]gateway.Category, error) {
			return sampleCategories(), nil
		},
		CreateArticleFunc: func(_ context.Context, p gateway.ArticlePayload) (string, error) {
			created = p
			return "Article created", nil
		},
		ListArticlesFunc: func(context.Context, gateway.ListOptions) ([]gateway.Article, error) {
			return nil, nil
		},
	}
	app, store := newTestApp(t, stub)
	require.NoError(t, store.SaveSession(5, "token"))
	app.userID = 5
	app.view = ViewHome
	app.editorReturn = ViewHome

	app.Update(app.openEditor(0)())
	require.Equal(t, ViewEditor, app.view)
	require.NotNil(t, app.editor.draft)
	assert.True(t, app.editor.target.IsInsert())

	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("Hastings")})
	assert.Equal(t, "Hastings", app.editor.draft.Snapshot().Title)

	app.Update(app.autosave()())
	rec, err := store.LoadDraft(draft.KeyNew)
	require.NoError(t, err)
	assert.Equal(t, "Hastings", rec.Title)

	app.Update(app.submitDraft(gateway.StatusDraft)())
	assert.Equal(t, "Hastings", created.Title)
	require.NotNil(t, created.UserID)
	assert.Equal(t, 5, *created.UserID)
	assert.Equal(t, StatusSuccess, app.statusKind)
	assert.Equal(t, "Article created", app.status)
	assert.Equal(t, ViewEditor, app.view, "the editor stays up until the confirmation delay passes")

	app.Update(app.dropAutosave(draft.KeyNew)())
	_, err = store.LoadDraft(draft.KeyNew)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	app.Update(leaveEditorMsg{})
	assert.Equal(t, ViewHome, app.view)
}

func TestApp_SubmitValidationFailureStays(t *testing.T) {
	stub := &gatewaytest.Stub{
		ListCategoriesFunc: func(context.Context) ([]gateway.Category, error) {
			return sampleCategories(), nil
		},
	}
	app, store := newTestApp(t, stub)
	require.NoError(t, store.SaveSession(5, "token"))
	app.userID = 5

	app.Update(app.openEditor(0)())
	app.Update(app.submitDraft(gateway.StatusPublished)())
	assert.Equal(t, ViewEditor, app.view)
	assert.Equal(t, StatusError, app.statusKind)
	assert.Zero(t, stub.Calls("CreateArticle"))
}

func TestApp_RestoreAutosave(t *testing.T) {
	stub := &gatewaytest.Stub{
		ListCategoriesFunc: func(context.Context) ([]gateway.Category, error) {
			return sampleCategories(), nil
		},
	}
	app, store := newTestApp(t, stub)
	app.userID = 5
	require.NoError(t, store.SaveDraft(&storage.DraftRecord{Key: draft.KeyNew, Title: "Agincourt", Content: "1415"}))

	app.Update(app.openEditor(0)())
	require.Equal(t, ViewRestoreDraft, app.view)
	assert.Contains(t, app.View(), "Agincourt")

	app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, ViewEditor, app.view)
	assert.Equal(t, "Agincourt", app.editor.title.Value())
	assert.Equal(t, "1415", app.editor.draft.Snapshot().Content)
	assert.Equal(t, MsgDraftRestored, app.status)
}

func TestApp_DiscardAutosave(t *testing.T) {
	stub := &gatewaytest.Stub{
		ListCategoriesFunc: func(context.Context) ([]gateway.Category, error) {
			return sampleCategories(), nil
		},
	}
	app, store := newTestApp(t, stub)
	app.userID = 5
	require.NoError(t, store.SaveDraft(&storage.DraftRecord{Key: draft.KeyNew, Title: "Agincourt"}))

	app.Update(app.openEditor(0)())
	require.Equal(t, ViewRestoreDraft, app.view)

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewEditor, app.view)
	assert.Empty(t, app.editor.title.Value())
	assert.Equal(t, MsgDraftDiscarded, app.status)
}

func TestApp_EditExistingArticle(t *testing.T) {
	tags := "war, france"
	stub := &gatewaytest.Stub{
		GetArticleFunc: func(_ context.Context, id int) (*gateway.Article, error) {
			return &gateway.Article{ID: id, Title: "Crecy", Content: "1346", CategoryID: 2, Tags: &tags}, nil
		},
		ListCategoriesFunc: func(context.Context) ([]gateway.Category, error) {
			return sampleCategories(), nil
		},
	}
	app, _ := newTestApp(t, stub)
	app.userID = 5

	app.Update(app.openEditor(11)())
	require.Equal(t, ViewEditor, app.view)
	assert.Equal(t, 11, app.editor.target.ArticleID())
	assert.Equal(t, "Crecy", app.editor.title.Value())
	assert.Equal(t, "war, france", app.editor.tags.Value())
	assert.False(t, app.editor.draft.HasChanges())

	// unchanged edits leave without a prompt
	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewHome, app.view)
}

func TestApp_ProfileDeleteArticle(t *testing.T) {
	arts := sampleArticles()
	stub := &gatewaytest.Stub{
		GetUserFunc: func(_ context.Context, id int) (*gateway.User, error) {
			return &gateway.User{ID: id, FullName: "Ana", Email: "ana@example.com"}, nil
		},
		ListUserArticlesFunc: func(context.Context, int) ([]gateway.Article, error) {
			return arts, nil
		},
		DeleteArticleFunc: func(_ context.Context, id int) (string, error) {
			arts = arts[1:]
			return "Article deleted", nil
		},
	}
	app, store := newTestApp(t, stub)
	require.NoError(t, store.SaveSession(4, "token"))
	app.userID = 4
	app.view = ViewProfile

	app.Update(app.loadProfile()())
	assert.Len(t, app.profileList.Items(), 2)
	assert.Contains(t, app.View(), "ana@example.com")

	app.Update(tea.KeyMsg{Type: tea.KeyCtrlX})
	require.Equal(t, ViewDeleteConfirm, app.view)
	require.NotNil(t, app.pendingDelete)
	assert.Equal(t, 1, app.pendingDelete.ID)

	app.Update(app.deleteArticle(app.pendingDelete.ID)())
	assert.Equal(t, ViewProfile, app.view)
	assert.Nil(t, app.pendingDelete)
	assert.Len(t, app.profileList.Items(), 1)
	assert.Equal(t, StatusSuccess, app.statusKind)
}

func TestApp_ProfileEditAndDeleteAccount(t *testing.T) {
	stub := &gatewaytest.Stub{
		GetUserFunc: func(_ context.Context, id int) (*gateway.User, error) {
			return &gateway.User{ID: id, FullName: "Ana", Email: "ana@example.com", Bio: "Byzantinist"}, nil
		},
		DeleteUserFunc: func(context.Context, int) (string, error) {
			return "User deleted", nil
		},
	}
	app, store := newTestApp(t, stub)
	require.NoError(t, store.SaveSession(4, "token"))
	app.userID = 4
	app.view = ViewProfileEdit

	app.Update(app.loadProfileFields()())
	assert.Equal(t, "Ana", app.profileForm.value(profileName))
	assert.Equal(t, "Byzantinist", app.profileForm.value(profileBio))

	app.Update(tea.KeyMsg{Type: tea.KeyCtrlX})
	require.Equal(t, ViewAccountDeleteConfirm, app.view)

	app.Update(app.deleteAccount()())
	assert.Equal(t, ViewLogin, app.view)
	assert.False(t, app.loggedIn())

	id, err := store.UserID()
	require.NoError(t, err)
	assert.Equal(t, storage.NoUser, id)
}

func TestApp_StatusExpiry(t *testing.T) {
	app, _ := newTestApp(t, &gatewaytest.Stub{})

	app.setStatus("first", StatusInfo, statusTTL)
	old := app.statusSeq
	app.setStatus("second", StatusWarn, statusTTL)

	app.Update(clearStatusMsg{id: old})
	assert.Equal(t, "second", app.status)

	app.Update(clearStatusMsg{id: app.statusSeq})
	assert.Empty(t, app.status)
}

func TestApp_HandlePageEndOfList(t *testing.T) {
	app, _ := newTestApp(t, &gatewaytest.Stub{})
	app.view = ViewHome

	app.handlePage(listing.Result{Outcome: listing.Appended})
	assert.Equal(t, MsgEndOfList, app.status)
}

func TestApp_ViewsRender(t *testing.T) {
	app, _ := newTestApp(t, &gatewaytest.Stub{})
	app.editor.load(draft.New(), sampleCategories(), submit.Insert())
	app.homeList.SetItems([]list.Item{articleItem{article: sampleArticles()[0]}})

	views := []View{
		ViewLogin, ViewRegister, ViewHome, ViewReader, ViewImages, ViewSearch,
		ViewEditor, ViewFilePicker, ViewRestoreDraft, ViewDiscardConfirm,
		ViewDeleteConfirm, ViewProfile, ViewProfileEdit, ViewAccountDeleteConfirm,
	}
	for _, v := range views {
		t.Run(v.String(), func(t *testing.T) {
			app.view = v
			assert.NotEmpty(t, app.View())
		})
	}
}

func TestApp_LeaveEditorAfterWithoutDelay(t *testing.T) {
	app, _ := newTestApp(t, &gatewaytest.Stub{})
	cmd := app.leaveEditorAfter(0)
	require.NotNil(t, cmd)
	assert.Equal(t, leaveEditorMsg{}, cmd())
}

func TestApp_PendingAutosaveAfterSubmitIsDropped(t *testing.T) {
	stub := &gatewaytest.Stub{
		ListCategoriesFunc: func(context.Context) ([]gateway.Category, error) {
			return sampleCategories(), nil
		},
		CreateArticleFunc: func(context.Context, gateway.ArticlePayload) (string, error) {
			return "Article created", nil
		},
	}
	app, store := newTestApp(t, stub)
	require.NoError(t, store.SaveSession(5, "token"))
	app.userID = 5
	app.editorReturn = ViewHome

	app.Update(app.openEditor(0)())
	require.Equal(t, ViewEditor, app.view)
	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("Agincourt")})
	pending := autosaveFireMsg{seq: app.autosaveSeq}

	app.Update(app.submitDraft(gateway.StatusDraft)())
	require.Equal(t, StatusSuccess, app.statusKind)
	app.Update(app.dropAutosave(draft.KeyNew)())

	_, cmd := app.Update(pending)
	if cmd != nil {
		app.Update(cmd())
	}
	assert.Nil(t, app.autosave(), "nothing is written once the article is saved")

	_, err := store.LoadDraft(draft.KeyNew)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestApp_NextPageFailureKeepsRows(t *testing.T) {
	app, _ := newTestApp(t, &gatewaytest.Stub{})
	app.view = ViewHome
	app.homeList.SetItems([]list.Item{articleItem{article: sampleArticles()[0]}})

	app.Update(pageLoadedMsg{result: listing.Result{
		Outcome: listing.Failed,
		Page:    2,
		Err:     &gateway.TransportError{Op: "list articles", Err: errors.New("connection reset")},
	}})
	assert.NotEqual(t, StatusError, app.statusKind)
	assert.Empty(t, app.status)
	assert.Len(t, app.homeList.Items(), 1)
}
