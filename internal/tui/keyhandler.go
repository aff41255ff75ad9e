package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/chronicle/internal/config"
	"github.com/pders01/chronicle/internal/draft"
	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/profile"
)

const maxSearchQuery = 256

type KeyHandler struct {
	app         *App
	config      *config.Config
	modifierKey string
	keys        keyMap
}

func NewKeyHandler(app *App, cfg *config.Config) *KeyHandler {
	modifierKey := cfg.Keys.Modifier + "+"
	return &KeyHandler{app: app, config: cfg, modifierKey: modifierKey, keys: newKeyMap(cfg)}
}

func (kh *KeyHandler) HandleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return kh.app, tea.Quit
	}

	if kh.isInTextInputMode() {
		return kh.handleTextInputMode(msg)
	}

	if model, cmd, handled := kh.handleCustomKeys(msg); handled {
		return model, cmd
	}

	return kh.delegateToCharm(msg)
}

func (kh *KeyHandler) isInTextInputMode() bool {
	switch kh.app.view {
	case ViewLogin, ViewRegister, ViewProfileEdit:
		return true
	case ViewSearch:
		return kh.app.searchInput.Focused()
	case ViewEditor:
		return kh.app.editor.isTyping()
	default:
		return false
	}
}

func (kh *KeyHandler) handleTextInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch kh.app.view {
	case ViewLogin:
		return kh.handleLoginKeys(msg)
	case ViewRegister:
		return kh.handleRegisterKeys(msg)
	case ViewProfileEdit:
		return kh.handleProfileEditKeys(msg)
	case ViewSearch:
		return kh.handleSearchInputKeys(msg)
	case ViewEditor:
		return kh.handleEditorTyping(msg)
	default:
		return kh.app, nil
	}
}

func (kh *KeyHandler) handleLoginKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := kh.app
	f := a.loginForm
	switch {
	case key.Matches(msg, kh.keys.Back):
		// browse without an account
		return a, a.enterHome()
	case key.Matches(msg, kh.keys.Register):
		a.view = ViewRegister
		a.auth.Reset()
		a.registerForm.reset()
		return a, a.registerForm.focusIndex(registerName)
	case msg.String() == "tab" || msg.String() == "down":
		return a, f.next()
	case msg.String() == "shift+tab" || msg.String() == "up":
		return a, f.prev()
	case msg.String() == "enter":
		if a.busy {
			return a, nil
		}
		return a, tea.Batch(
			a.startSpinner(MsgSigningIn),
			a.login(strings.TrimSpace(f.value(loginEmail)), f.value(loginPassword)),
		)
	}
	cmd, _ := f.update(msg)
	return a, cmd
}

func (kh *KeyHandler) handleRegisterKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := kh.app
	f := a.registerForm
	switch {
	case key.Matches(msg, kh.keys.Back):
		return a, a.enterLogin()
	case msg.String() == "tab" || msg.String() == "down":
		return a, f.next()
	case msg.String() == "shift+tab" || msg.String() == "up":
		return a, f.prev()
	case msg.String() == "enter":
		if a.busy {
			return a, nil
		}
		return a, tea.Batch(
			a.startSpinner(MsgRegistering),
			a.register(
				strings.TrimSpace(f.value(registerName)),
				strings.TrimSpace(f.value(registerEmail)),
				f.value(registerPassword),
			),
		)
	}
	cmd, _ := f.update(msg)
	return a, cmd
}

var profileFormFields = [...]profile.Field{
	profileName:     profile.FullName,
	profileEmail:    profile.Email,
	profileBio:      profile.Bio,
	profilePassword: profile.Password,
}

func (kh *KeyHandler) handleProfileEditKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := kh.app
	f := a.profileForm
	switch {
	case key.Matches(msg, kh.keys.Back):
		a.view = ViewProfile
		a.clearStatus()
		return a, nil
	case key.Matches(msg, kh.keys.Delete):
		a.view = ViewAccountDeleteConfirm
		return a, nil
	case msg.String() == "tab" || msg.String() == "down":
		return a, f.next()
	case msg.String() == "shift+tab" || msg.String() == "up":
		return a, f.prev()
	case msg.String() == "enter":
		if a.busy {
			return a, nil
		}
		return a, tea.Batch(a.startSpinner(MsgSaving), a.saveProfile())
	}
	cmd, changed := f.update(msg)
	if changed {
		a.profileEditor.Set(profileFormFields[f.focus], f.value(f.focus))
	}
	return a, cmd
}

func (kh *KeyHandler) handleSearchInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := kh.app
	switch msg.String() {
	case "esc":
		return kh.navigateBack()
	case "enter":
		if items := a.searchList.Items(); len(items) > 0 {
			if i, ok := items[0].(articleItem); ok {
				return kh.openReader(i.article.ID, ViewSearch)
			}
		}
		return a, nil
	case "tab", "down":
		if len(a.searchList.Items()) > 0 {
			a.searchInput.Blur()
			a.searchList.Select(0)
		}
		return a, nil
	}

	prev := a.pendingSearchQuery
	var cmd tea.Cmd
	a.searchInput, cmd = a.searchInput.Update(msg)

	query := sanitizeSearchInput(a.searchInput.Value())
	if query == prev {
		return a, cmd
	}
	a.pendingSearchQuery = query
	a.searchSeq++
	seq := a.searchSeq
	wait := time.Duration(a.searchDebounceMillis) * time.Millisecond
	return a, tea.Batch(cmd, tea.Tick(wait, func(time.Time) tea.Msg { return searchDebounceFireMsg{seq: seq} }))
}

func (kh *KeyHandler) handleEditorTyping(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := kh.app
	e := a.editor

	if e.editingCaption {
		switch msg.String() {
		case "enter":
			if e.commitCaption() {
				return a, a.scheduleAutosave()
			}
			return a, nil
		case "esc":
			e.cancelCaption()
			return a, nil
		}
		cmd, _ := e.updateInput(msg)
		return a, cmd
	}

	if model, cmd, handled := kh.handleEditorActions(msg); handled {
		return model, cmd
	}

	cmd, changed := e.updateInput(msg)
	if changed {
		cmd = tea.Batch(cmd, a.scheduleAutosave())
	}
	return a, cmd
}

// handleEditorActions covers the editor keys that work in every field.
func (kh *KeyHandler) handleEditorActions(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	a := kh.app
	e := a.editor
	switch {
	case key.Matches(msg, kh.keys.Back):
		model, cmd := kh.navigateBack()
		return model, cmd, true
	case key.Matches(msg, kh.keys.NextField):
		return a, e.nextField(), true
	case key.Matches(msg, kh.keys.PrevField):
		return a, e.prevField(), true
	case key.Matches(msg, kh.keys.SaveDraft):
		return a, kh.submit(gateway.StatusDraft), true
	case key.Matches(msg, kh.keys.Publish):
		return a, kh.submit(gateway.StatusPublished), true
	case key.Matches(msg, kh.keys.AttachImage):
		a.view = ViewFilePicker
		return a, a.filePicker.Init(), true
	}
	return a, nil, false
}

func (kh *KeyHandler) submit(status gateway.Status) tea.Cmd {
	a := kh.app
	if a.editor.submitting {
		return nil
	}
	a.editor.submitting = true
	return tea.Batch(a.startSpinner(MsgSaving), a.submitDraft(status))
}

func (kh *KeyHandler) handleCustomKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	a := kh.app

	switch a.view {
	case ViewEditor:
		return kh.handleEditorKeys(msg)
	case ViewFilePicker:
		if key.Matches(msg, kh.keys.Back) {
			a.view = ViewEditor
			return a, nil, true
		}
		return a, nil, false
	case ViewRestoreDraft:
		return kh.handleRestoreDraftKeys(msg)
	case ViewDiscardConfirm:
		return kh.handleDiscardConfirmKeys(msg)
	case ViewDeleteConfirm:
		return kh.handleDeleteConfirmKeys(msg)
	case ViewAccountDeleteConfirm:
		return kh.handleAccountDeleteConfirmKeys(msg)
	}

	switch {
	case key.Matches(msg, kh.keys.Quit):
		return a, tea.Quit, true
	case key.Matches(msg, kh.keys.Help):
		a.showHelp = !a.showHelp
		return a, nil, true
	case key.Matches(msg, kh.keys.Back):
		model, cmd := kh.navigateBack()
		return model, cmd, true
	case key.Matches(msg, kh.keys.Search) && a.view != ViewSearch:
		model, cmd := kh.enterSearchMode()
		return model, cmd, true
	}

	switch a.view {
	case ViewHome:
		return kh.handleHomeKeys(msg)
	case ViewReader:
		return kh.handleReaderKeys(msg)
	case ViewImages:
		return kh.handleImagesKeys(msg)
	case ViewProfile:
		return kh.handleProfileKeys(msg)
	default:
		return a, nil, false
	}
}

func (kh *KeyHandler) handleHomeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	a := kh.app
	switch {
	case key.Matches(msg, kh.keys.Refresh):
		return a, tea.Batch(a.startSpinner(MsgRefreshing), a.loadPage(true)), true
	case key.Matches(msg, kh.keys.NewArticle):
		model, cmd := kh.startEditing(0, ViewHome)
		return model, cmd, true
	case key.Matches(msg, kh.keys.Edit):
		if art, ok := a.selectedArticle(a.homeList); ok {
			model, cmd := kh.startEditing(art.ID, ViewHome)
			return model, cmd, true
		}
		return a, nil, true
	case key.Matches(msg, kh.keys.Profile):
		model, cmd := kh.enterProfile()
		return model, cmd, true
	}
	return a, nil, false
}

func (kh *KeyHandler) handleReaderKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	a := kh.app
	switch {
	case key.Matches(msg, kh.keys.OpenImage):
		model, cmd := kh.openImages()
		return model, cmd, true
	case key.Matches(msg, kh.keys.Edit):
		if a.currentArticle != nil && !a.loadingArticle {
			model, cmd := kh.startEditing(a.currentArticle.ID, ViewReader)
			return model, cmd, true
		}
		return a, nil, true
	}
	return a, nil, false
}

func (kh *KeyHandler) handleImagesKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	a := kh.app
	if msg.String() == "enter" || key.Matches(msg, kh.keys.OpenImage) {
		if i, ok := a.imageList.SelectedItem().(imageItem); ok {
			return a, a.openImage(i.ref), true
		}
		return a, nil, true
	}
	return a, nil, false
}

func (kh *KeyHandler) handleProfileKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	a := kh.app
	switch {
	case key.Matches(msg, kh.keys.Refresh):
		return a, tea.Batch(a.startSpinner(MsgLoadingProfile), a.loadProfile()), true
	case key.Matches(msg, kh.keys.Edit):
		if art, ok := a.selectedArticle(a.profileList); ok {
			model, cmd := kh.startEditing(art.ID, ViewProfile)
			return model, cmd, true
		}
		return a, nil, true
	case key.Matches(msg, kh.keys.Delete):
		if art, ok := a.selectedArticle(a.profileList); ok {
			a.pendingDelete = &art
			a.view = ViewDeleteConfirm
		}
		return a, nil, true
	case key.Matches(msg, kh.keys.EditProfile):
		a.view = ViewProfileEdit
		a.profileForm.reset()
		return a, tea.Batch(a.startSpinner(MsgLoadingProfile), a.loadProfileFields()), true
	case key.Matches(msg, kh.keys.Logout):
		return a, a.logout(), true
	}
	return a, nil, false
}

// handleEditorKeys runs when the category or images field has focus.
func (kh *KeyHandler) handleEditorKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	a := kh.app
	e := a.editor

	if model, cmd, handled := kh.handleEditorActions(msg); handled {
		return model, cmd, true
	}

	switch e.focus {
	case fieldCategory:
		delta := 0
		switch msg.String() {
		case "left", "h":
			delta = -1
		case "right", "l", "enter", " ":
			delta = 1
		}
		if delta != 0 && e.cycleCategory(delta) {
			return a, a.scheduleAutosave(), true
		}
	case fieldImages:
		switch {
		case msg.String() == "up" || msg.String() == "k":
			e.moveImage(-1)
		case msg.String() == "down" || msg.String() == "j":
			e.moveImage(1)
		case msg.String() == "enter":
			return a, e.beginCaption(), true
		case key.Matches(msg, kh.keys.Remove):
			if e.removeSelectedImage() {
				return a, a.scheduleAutosave(), true
			}
		}
	}
	return a, nil, true
}

func (kh *KeyHandler) handleRestoreDraftKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	a := kh.app
	pending := a.pendingEditor
	if pending == nil {
		a.view = a.editorReturn
		return a, nil, true
	}
	switch msg.String() {
	case "enter", "y":
		opened := *pending
		opened.draft = draft.Restore(pending.saved)
		cmd := a.startEditor(opened)
		return a, tea.Batch(cmd, a.setStatus(MsgDraftRestored, StatusSuccess, statusTTL)), true
	case "esc", "n":
		autosaveKey := pending.saved.Key
		cmd := a.startEditor(*pending)
		return a, tea.Batch(cmd, a.dropAutosave(autosaveKey), a.setStatus(MsgDraftDiscarded, StatusInfo, statusTTL)), true
	}
	return a, nil, true
}

func (kh *KeyHandler) handleDiscardConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	a := kh.app
	switch msg.String() {
	case "enter", "y":
		rec := a.editor.draft.Record()
		cmd := a.leaveEditor(false)
		return a, tea.Batch(cmd, a.dropAutosave(rec.Key), a.setStatus(MsgDraftDiscarded, StatusInfo, statusTTL)), true
	case "esc", "n":
		a.view = ViewEditor
		return a, nil, true
	}
	return a, nil, true
}

func (kh *KeyHandler) handleDeleteConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	a := kh.app
	switch msg.String() {
	case "enter", "y":
		if a.pendingDelete == nil || a.busy {
			return a, nil, true
		}
		return a, tea.Batch(a.startSpinner(MsgDeleting), a.deleteArticle(a.pendingDelete.ID)), true
	case "esc", "n":
		a.pendingDelete = nil
		a.view = ViewProfile
		return a, nil, true
	}
	return a, nil, true
}

func (kh *KeyHandler) handleAccountDeleteConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	a := kh.app
	switch msg.String() {
	case "enter", "y":
		if a.busy {
			return a, nil, true
		}
		return a, tea.Batch(a.startSpinner(MsgDeleting), a.deleteAccount()), true
	case "esc", "n":
		a.view = ViewProfileEdit
		return a, nil, true
	}
	return a, nil, true
}

// delegateToCharm lets the bubbles widgets handle keys we don't intercept.
func (kh *KeyHandler) delegateToCharm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := kh.app
	var cmd tea.Cmd

	switch a.view {
	case ViewHome:
		a.homeList, cmd = a.homeList.Update(msg)
		if msg.String() == "enter" {
			if art, ok := a.selectedArticle(a.homeList); ok {
				return kh.openReader(art.ID, ViewHome)
			}
		}
		return a, tea.Batch(cmd, a.maybePrefetch())

	case ViewSearch:
		switch msg.String() {
		case "tab", "shift+tab", "/":
			return a, a.searchInput.Focus()
		case "up":
			if a.searchList.Index() == 0 {
				return a, a.searchInput.Focus()
			}
		}
		a.searchList, cmd = a.searchList.Update(msg)
		if msg.String() == "enter" {
			if art, ok := a.selectedArticle(a.searchList); ok {
				return kh.openReader(art.ID, ViewSearch)
			}
		}
		return a, cmd

	case ViewProfile:
		a.profileList, cmd = a.profileList.Update(msg)
		if msg.String() == "enter" {
			if art, ok := a.selectedArticle(a.profileList); ok {
				return kh.openReader(art.ID, ViewProfile)
			}
		}
		return a, cmd

	case ViewImages:
		a.imageList, cmd = a.imageList.Update(msg)
		return a, cmd

	default:
		return a.updateActive(msg)
	}
}

func (kh *KeyHandler) openReader(id int, from View) (tea.Model, tea.Cmd) {
	a := kh.app
	a.readerReturn = from
	a.view = ViewReader
	a.loadingArticle = true
	a.currentArticle = nil
	a.viewport.SetContent("")
	return a, tea.Batch(a.startSpinner(MsgLoadingArticle), a.openArticle(id))
}

// startEditing opens the editor for articleID, or a new article when 0.
// Writing requires a session.
func (kh *KeyHandler) startEditing(articleID int, from View) (tea.Model, tea.Cmd) {
	a := kh.app
	if !a.loggedIn() {
		cmd := a.enterLogin()
		return a, tea.Batch(cmd, a.setStatus(MsgLoginRequired, StatusWarn, statusTTL))
	}
	if a.busy {
		return a, nil
	}
	a.editorReturn = from
	return a, tea.Batch(a.startSpinner(MsgOpeningEditor), a.openEditor(articleID))
}

func (kh *KeyHandler) enterProfile() (tea.Model, tea.Cmd) {
	a := kh.app
	if !a.loggedIn() {
		cmd := a.enterLogin()
		return a, tea.Batch(cmd, a.setStatus(MsgLoginRequired, StatusWarn, statusTTL))
	}
	a.view = ViewProfile
	return a, tea.Batch(a.startSpinner(MsgLoadingProfile), a.loadProfile())
}

// openImages opens a single image directly and lists several.
func (kh *KeyHandler) openImages() (tea.Model, tea.Cmd) {
	a := kh.app
	if a.currentArticle == nil {
		return a, nil
	}
	refs := a.currentArticle.Images
	switch len(refs) {
	case 0:
		return a, a.setStatus(MsgNoImages, StatusInfo, statusTTL)
	case 1:
		return a, a.openImage(refs[0])
	}

	items := make([]list.Item, len(refs))
	for i, ref := range refs {
		items[i] = imageItem{ref: ref, resolved: a.launcher.Resolve(ref), index: i, total: len(refs)}
	}
	a.imageList.SetItems(items)
	a.imageList.Select(0)

	title := "› images"
	if t := strings.TrimSpace(a.currentArticle.Title); t != "" {
		title = fmt.Sprintf("› images from: %s", truncateEnd(t, 50))
	}
	a.imageList.Title = title
	a.view = ViewImages
	return a, nil
}

// navigateBack implements smart back navigation
func (kh *KeyHandler) navigateBack() (tea.Model, tea.Cmd) {
	a := kh.app
	switch a.view {
	case ViewSearch:
		a.view = a.searchReturn
		if a.view == ViewReader && a.currentArticle == nil {
			a.view = ViewHome
		}
		a.searchInput.Reset()
		a.searchInput.Blur()
		a.pendingSearchQuery = ""
		a.searchSeq++
		a.searchOffline = false
		a.searchList.SetItems([]list.Item{})
		a.clearStatus()
		return a, nil

	case ViewReader:
		a.view = a.readerReturn
		a.currentArticle = nil
		if a.view == ViewSearch {
			a.searchInput.Blur()
		}
		return a, nil

	case ViewImages:
		a.view = ViewReader
		a.imageList.SetItems([]list.Item{})
		return a, nil

	case ViewEditor:
		if a.editor.submitting {
			return a, nil
		}
		if a.editor.draft != nil && a.editor.draft.HasChanges() {
			a.view = ViewDiscardConfirm
			return a, nil
		}
		autosaveKey := ""
		if a.editor.draft != nil {
			autosaveKey = a.editor.draft.Record().Key
		}
		return a, tea.Batch(a.leaveEditor(false), a.dropAutosave(autosaveKey))

	case ViewProfile:
		a.view = ViewHome
		return a, nil

	case ViewHome:
		if !a.loggedIn() {
			return a, a.enterLogin()
		}
		return a, nil

	default:
		return a, tea.Quit
	}
}

// enterSearchMode transitions to search view
func (kh *KeyHandler) enterSearchMode() (tea.Model, tea.Cmd) {
	a := kh.app
	a.searchReturn = a.view
	a.view = ViewSearch
	a.searchInput.Reset()
	a.pendingSearchQuery = ""
	a.searchOffline = false
	a.searchList.SetItems([]list.Item{})
	a.clearStatus()
	return a, a.searchInput.Focus()
}

// sanitizeSearchInput trims, flattens and length-limits a query.
func sanitizeSearchInput(input string) string {
	input = strings.Join(strings.Fields(input), " ")
	if len(input) > maxSearchQuery {
		input = strings.TrimSpace(clampRunes(input, maxSearchQuery))
	}
	return input
}

// GetHelpForCurrentView returns the key hints for the active screen.
func (kh *KeyHandler) GetHelpForCurrentView() []string {
	bindings := kh.keys.viewKeys(kh.app.view, kh.app.loggedIn())
	help := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		help = append(help, h.Key+": "+h.Desc)
	}
	return help
}
