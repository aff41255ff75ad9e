package tui

import (
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/chronicle/internal/debuglog"
	"github.com/pders01/chronicle/internal/draft"
	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/search"
	"github.com/pders01/chronicle/internal/storage"
	"github.com/pders01/chronicle/internal/submit"
)

// wrapErr prefixes err with what the command was doing.
func wrapErr(doing string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", doing, err)
}

func (a *App) checkSession() tea.Cmd {
	return func() tea.Msg {
		id, err := a.store.UserID()
		return sessionCheckedMsg{userID: id, err: err}
	}
}

func (a *App) login(email, password string) tea.Cmd {
	return func() tea.Msg {
		user, err := a.auth.Login(a.ctx, email, password)
		return authDoneMsg{user: user, err: err}
	}
}

func (a *App) register(name, email, password string) tea.Cmd {
	return func() tea.Msg {
		user, err := a.auth.Register(a.ctx, name, email, password)
		return authDoneMsg{user: user, register: true, err: err}
	}
}

func (a *App) logout() tea.Cmd {
	return func() tea.Msg {
		return loggedOutMsg{err: a.auth.Logout()}
	}
}

// loadPage asks the cursor for the next page, or the first page on reset.
func (a *App) loadPage(reset bool) tea.Cmd {
	return func() tea.Msg {
		return pageLoadedMsg{result: a.cursor.Load(a.ctx, reset)}
	}
}

func (a *App) openArticle(id int) tea.Cmd {
	width := a.width
	return func() tea.Msg {
		snap, err := a.reader.Load(a.ctx, id)
		if err != nil {
			return articleLoadedMsg{snap: snap, err: err}
		}
		rendered, rerr := a.renderer.Render(*snap.Article, width)
		if rerr != nil {
			debuglog.Warnf("render article %d: %v", id, rerr)
			rendered = a.renderer.Markdown(*snap.Article)
		}
		return articleLoadedMsg{snap: snap, rendered: rendered}
	}
}

func (a *App) runSearch(seq int, query string) tea.Cmd {
	return func() tea.Msg {
		snap, err := a.searcher.Search(a.ctx, query)
		return searchResultsMsg{seq: seq, snap: snap, err: err}
	}
}

// openEditor loads what the editor needs: a hydrated draft for an existing
// article, or an empty one plus categories for a new article. Any autosaved
// work for the same key is returned for the restore prompt.
func (a *App) openEditor(articleID int) tea.Cmd {
	return func() tea.Msg {
		var msg editorOpenedMsg
		if articleID > 0 {
			d, cats, err := draft.Open(a.ctx, a.gw, articleID)
			if err != nil {
				return editorOpenedMsg{err: wrapErr("opening article", err)}
			}
			msg = editorOpenedMsg{draft: d, categories: cats, target: submit.Update(articleID)}
		} else {
			cats, err := a.gw.ListCategories(a.ctx)
			if err != nil {
				debuglog.Warnf("loading categories: %v", err)
			}
			msg = editorOpenedMsg{draft: draft.New(), categories: cats, target: submit.Insert()}
		}

		rec, err := a.store.LoadDraft(draft.Key(articleID))
		switch {
		case err == nil:
			if draft.Restore(rec).HasChanges() {
				msg.saved = rec
			}
		case !errors.Is(err, storage.ErrNotFound):
			debuglog.Warnf("reading autosave %s: %v", draft.Key(articleID), err)
		}
		return msg
	}
}

// scheduleAutosave debounces autosave writes; only the newest tick saves.
func (a *App) scheduleAutosave() tea.Cmd {
	a.autosaveSeq++
	seq := a.autosaveSeq
	return tea.Tick(autosaveDelay, func(time.Time) tea.Msg { return autosaveFireMsg{seq: seq} })
}

func (a *App) autosave() tea.Cmd {
	if a.editor.draft == nil || a.editor.saved {
		return nil
	}
	rec := a.editor.draft.Record()
	return func() tea.Msg {
		if err := a.store.SaveDraft(rec); err != nil {
			return errorMsg{err: wrapErr("autosave", err)}
		}
		return nil
	}
}

func (a *App) dropAutosave(key string) tea.Cmd {
	return func() tea.Msg {
		if err := a.store.DeleteDraft(key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return errorMsg{err: wrapErr("removing autosave", err)}
		}
		return nil
	}
}

func (a *App) submitDraft(status gateway.Status) tea.Cmd {
	d := a.editor.draft
	target := a.editor.target
	return func() tea.Msg {
		return submitDoneMsg{result: a.pipeline.Submit(a.ctx, d, status, target)}
	}
}

// leaveEditorAfter holds the success message on screen before leaving.
func (a *App) leaveEditorAfter(delay time.Duration) tea.Cmd {
	if delay <= 0 {
		return func() tea.Msg { return leaveEditorMsg{} }
	}
	return tea.Tick(delay, func(time.Time) tea.Msg { return leaveEditorMsg{} })
}

func (a *App) loadProfile() tea.Cmd {
	return func() tea.Msg {
		data, err := a.overview.Load(a.ctx)
		return profileLoadedMsg{data: data, err: err}
	}
}

func (a *App) deleteArticle(id int) tea.Cmd {
	return func() tea.Msg {
		msg, err := a.overview.DeleteArticle(a.ctx, id)
		if err == nil {
			a.cursor.Remove(id)
			if a.index != nil {
				if ierr := a.index.Remove(id); ierr != nil {
					debuglog.Warnf("unindexing article %d: %v", id, ierr)
				}
			}
		}
		return articleDeletedMsg{id: id, message: msg, err: err}
	}
}

func (a *App) loadProfileFields() tea.Cmd {
	return func() tea.Msg {
		fields, err := a.profileEditor.Load(a.ctx)
		return profileFieldsMsg{fields: fields, err: err}
	}
}

func (a *App) saveProfile() tea.Cmd {
	return func() tea.Msg {
		return profileSavedMsg{err: a.profileEditor.Submit(a.ctx)}
	}
}

func (a *App) deleteAccount() tea.Cmd {
	return func() tea.Msg {
		return accountDeletedMsg{err: a.profileEditor.DeleteAccount(a.ctx)}
	}
}

// validateImage checks a picked file before it is staged.
func (a *App) validateImage(path string) tea.Cmd {
	return func() tea.Msg {
		clean, err := a.imagePaths.ValidateFile(path)
		return imagePickedMsg{path: clean, err: err}
	}
}

func (a *App) openImage(ref string) tea.Cmd {
	return func() tea.Msg {
		if err := a.launcher.Open(ref); err != nil {
			return errorMsg{err: wrapErr("opening image", err)}
		}
		return nil
	}
}

// staleSearch reports whether a search response was superseded.
func staleSearch(err error) bool {
	return errors.Is(err, search.ErrStale)
}
