package tui

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/chronicle/internal/auth"
	"github.com/pders01/chronicle/internal/config"
	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/imagecodec"
	"github.com/pders01/chronicle/internal/listing"
	"github.com/pders01/chronicle/internal/media"
	"github.com/pders01/chronicle/internal/profile"
	"github.com/pders01/chronicle/internal/reader"
	"github.com/pders01/chronicle/internal/search"
	"github.com/pders01/chronicle/internal/storage"
	"github.com/pders01/chronicle/internal/submit"
	"github.com/pders01/chronicle/internal/validation"
)

const autosaveDelay = 800 * time.Millisecond

// cacheSink stores fetched articles when no search index is available.
type cacheSink struct {
	store *storage.Store
}

func (s cacheSink) Add(articles []gateway.Article) error {
	return s.store.CacheArticles(articles)
}

type App struct {
	config *config.Config
	store  *storage.Store
	gw     gateway.Gateway
	index  *search.Index
	ctx    context.Context
	cancel context.CancelFunc

	auth          *auth.Flow
	cursor        *listing.Cursor
	searcher      *search.Searcher
	reader        *reader.Reader
	renderer      *reader.Renderer
	pipeline      *submit.Pipeline
	overview      *profile.Overview
	profileEditor *profile.Editor
	launcher      *media.Launcher
	imagePaths    *validation.ImagePathValidator

	keys       keyMap
	keyHandler *KeyHandler

	homeList     list.Model
	searchList   list.Model
	profileList  list.Model
	imageList    list.Model
	searchInput  textinput.Model
	viewport     viewport.Model
	filePicker   filepicker.Model
	spinner      spinner.Model
	help         help.Model
	loginForm    *form
	registerForm *form
	profileForm  *form
	editor       *editor

	view         View
	readerReturn View
	editorReturn View
	searchReturn View
	showHelp     bool
	width        int
	height       int

	userID         int
	currentArticle *gateway.Article
	articleOffline bool
	loadingArticle bool
	pendingDelete  *gateway.Article
	pendingEditor  *editorOpenedMsg
	profileData    profile.Data

	searchSeq            int
	pendingSearchQuery   string
	searchDebounceMillis int
	searchOffline        bool

	autosaveSeq int

	status     string
	statusKind StatusKind
	statusSeq  int
	busy       bool
}

// NewApp wires the screens to their controllers. index may be nil, in which
// case fetched articles are only cached and search has no offline fallback.
func NewApp(store *storage.Store, gw gateway.Gateway, index *search.Index, cfg *config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())
	ApplyTheme(cfg.UI.Colors)

	var (
		sink    listing.Sink = cacheSink{store: store}
		offline search.Offline
	)
	if index != nil {
		sink = index
		offline = index
	}

	launcher := media.NewLauncher(cfg)
	keys := newKeyMap(cfg)

	newList := func(title string) list.Model {
		l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
		l.Title = title
		l.SetShowStatusBar(false)
		l.SetFilteringEnabled(false)
		l.SetShowHelp(false)
		return l
	}

	si := textinput.New()
	si.Placeholder = "Search articles..."
	si.CharLimit = 256

	fp := filepicker.New()
	fp.AllowedTypes = validation.ImageExtensions
	fp.Height = 15
	if home, err := os.UserHomeDir(); err == nil {
		fp.CurrentDirectory = home
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	debounce := int(cfg.Search.Debounce / time.Millisecond)
	if debounce <= 0 {
		debounce = 300
	}

	app := &App{
		config:   cfg,
		store:    store,
		gw:       gw,
		index:    index,
		ctx:      ctx,
		cancel:   cancel,
		auth:     auth.New(gw, store),
		cursor:   listing.New(gw, listing.Options{PageSize: cfg.Listing.PageSize, PrefetchThreshold: cfg.Listing.PrefetchThreshold, Sink: sink}),
		searcher: search.New(gw, search.Options{Limit: cfg.Search.Limit, Offline: offline, Sink: sink}),
		reader:   reader.New(gw, store),
		renderer: reader.NewRenderer(cfg.UI.Article, launcher.Resolve),
		pipeline: submit.New(gw, store, imagecodec.NewFromConfig(cfg.Upload)),

		overview:      profile.NewOverview(gw, store),
		profileEditor: profile.NewEditor(gw, store),
		launcher:      launcher,
		imagePaths:    validation.NewImagePathValidator(cfg.Upload.MaxFileBytes),

		keys:         keys,
		homeList:     newList("› articles"),
		searchList:   newList("› results"),
		profileList:  newList("› my articles"),
		imageList:    newList("› images"),
		searchInput:  si,
		viewport:     viewport.New(0, 0),
		filePicker:   fp,
		spinner:      sp,
		help:         help.New(),
		loginForm:    newLoginForm(),
		registerForm: newRegisterForm(),
		profileForm:  newProfileForm(),
		editor:       newEditor(),

		view:                 ViewLogin,
		readerReturn:         ViewHome,
		editorReturn:         ViewHome,
		searchReturn:         ViewHome,
		userID:               storage.NoUser,
		searchDebounceMillis: debounce,
	}
	app.keyHandler = NewKeyHandler(app, cfg)

	return app
}

func (a *App) loggedIn() bool { return a.userID != storage.NoUser }

func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.checkSession(),
		tea.EnterAltScreen,
	)
}

// Close cancels requests still in flight.
func (a *App) Close() {
	a.cancel()
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.keyHandler.HandleKey(msg)

	case spinner.TickMsg:
		return a, a.updateSpinner(msg)

	case clearStatusMsg:
		if msg.id == a.statusSeq {
			a.clearStatus()
		}
		return a, nil

	case sessionCheckedMsg:
		if msg.err != nil {
			return a, a.setStatus(msg.err.Error(), StatusError, statusTTL)
		}
		a.userID = msg.userID
		if a.loggedIn() {
			return a, a.enterHome()
		}
		return a, a.enterLogin()

	case authDoneMsg:
		return a, a.handleAuthDone(msg)

	case loggedOutMsg:
		a.stopSpinner()
		if msg.err != nil {
			return a, a.setStatus(msg.err.Error(), StatusError, statusTTL)
		}
		a.userID = storage.NoUser
		return a, tea.Batch(a.enterLogin(), a.setStatus(auth.MsgLoggedOut, StatusInfo, statusTTL))

	case pageLoadedMsg:
		return a, a.handlePage(msg.result)

	case articleLoadedMsg:
		return a, a.handleArticle(msg)

	case searchDebounceFireMsg:
		if msg.seq != a.searchSeq || a.view != ViewSearch {
			return a, nil
		}
		if strings.TrimSpace(a.pendingSearchQuery) == "" {
			a.searchList.SetItems([]list.Item{})
			a.searchOffline = false
		}
		return a, a.runSearch(msg.seq, a.pendingSearchQuery)

	case searchResultsMsg:
		return a, a.handleSearchResults(msg)

	case editorOpenedMsg:
		return a, a.handleEditorOpened(msg)

	case autosaveFireMsg:
		if msg.seq != a.autosaveSeq || a.view != ViewEditor && a.view != ViewFilePicker {
			return a, nil
		}
		return a, a.autosave()

	case submitDoneMsg:
		return a, a.handleSubmitDone(msg.result)

	case leaveEditorMsg:
		if a.view != ViewEditor {
			return a, nil
		}
		return a, a.leaveEditor(true)

	case imagePickedMsg:
		a.view = ViewEditor
		if msg.err != nil {
			return a, a.setStatus(msg.err.Error(), StatusError, statusTTL)
		}
		a.editor.attach(msg.path)
		a.editor.focusField(fieldImages)
		return a, tea.Batch(
			a.scheduleAutosave(),
			a.setStatus(MsgImageAttached(truncateMiddle(msg.path, 40)), StatusSuccess, statusTTL),
		)

	case profileLoadedMsg:
		a.stopSpinner()
		if msg.err != nil {
			return a, a.setStatus(a.overview.State().Message, StatusError, statusTTL)
		}
		a.clearStatus()
		a.setProfileData(msg.data)
		return a, nil

	case articleDeletedMsg:
		a.stopSpinner()
		a.pendingDelete = nil
		if a.view == ViewDeleteConfirm {
			a.view = ViewProfile
		}
		if msg.err != nil {
			return a, a.setStatus(msg.message, StatusError, statusTTL)
		}
		a.setProfileData(a.overview.Data())
		a.homeList.SetItems(a.articleItems(a.cursor.Snapshot().Items, false))
		return a, a.setStatus(msg.message, StatusSuccess, statusTTL)

	case profileFieldsMsg:
		a.stopSpinner()
		if msg.err != nil {
			return a, a.setStatus(a.profileEditor.State().Message, StatusError, statusTTL)
		}
		a.clearStatus()
		a.profileForm.setValue(profileName, msg.fields.FullName)
		a.profileForm.setValue(profileEmail, msg.fields.Email)
		a.profileForm.setValue(profileBio, msg.fields.Bio)
		a.profileForm.setValue(profilePassword, "")
		return a, a.profileForm.focusIndex(profileName)

	case profileSavedMsg:
		a.stopSpinner()
		st := a.profileEditor.State()
		if msg.err != nil {
			return a, a.setStatus(st.Message, StatusError, statusTTL)
		}
		a.profileForm.setValue(profilePassword, "")
		a.view = ViewProfile
		return a, tea.Batch(a.setStatus(st.Message, StatusSuccess, statusTTL), a.loadProfile())

	case accountDeletedMsg:
		a.stopSpinner()
		st := a.profileEditor.State()
		if msg.err != nil {
			if a.view == ViewAccountDeleteConfirm {
				a.view = ViewProfileEdit
			}
			return a, a.setStatus(st.Message, StatusError, statusTTL)
		}
		a.userID = storage.NoUser
		return a, tea.Batch(a.enterLogin(), a.setStatus(st.Message, StatusSuccess, statusTTL))

	case errorMsg:
		a.stopSpinner()
		return a, a.setStatus(msg.err.Error(), StatusError, statusTTL)
	}

	return a.updateActive(msg)
}

// updateActive forwards messages nobody else handled to the active widget.
func (a *App) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.view {
	case ViewFilePicker:
		a.filePicker, cmd = a.filePicker.Update(msg)
		if ok, path := a.filePicker.DidSelectFile(msg); ok {
			return a, tea.Batch(cmd, a.validateImage(path))
		}
	case ViewReader:
		a.viewport, cmd = a.viewport.Update(msg)
	case ViewEditor:
		if a.editor.isTyping() {
			var changed bool
			cmd, changed = a.editor.updateInput(msg)
			if changed {
				cmd = tea.Batch(cmd, a.scheduleAutosave())
			}
		}
	case ViewSearch:
		a.searchInput, cmd = a.searchInput.Update(msg)
	}
	return a, cmd
}

func (a *App) resize(width, height int) {
	a.width = width
	a.height = height
	bodyHeight := max(height-3, 1)

	a.homeList.SetSize(width, bodyHeight)
	a.profileList.SetSize(width, max(bodyHeight-5, 3))
	a.imageList.SetSize(width, bodyHeight)
	a.searchList.SetSize(width, max(height-10, 5))
	a.viewport.Width = width
	a.viewport.Height = bodyHeight
	a.searchInput.Width = max(width-8, 10)
	a.filePicker.Height = max(bodyHeight-4, 5)
	a.help.Width = width

	a.loginForm.setWidth(max(width-8, 20))
	a.registerForm.setWidth(max(width-8, 20))
	a.profileForm.setWidth(max(width-8, 20))
	a.editor.setSize(width, height)
}

func (a *App) enterLogin() tea.Cmd {
	a.view = ViewLogin
	a.auth.Reset()
	a.loginForm.reset()
	a.currentArticle = nil
	return a.loginForm.focusIndex(loginEmail)
}

func (a *App) enterHome() tea.Cmd {
	a.view = ViewHome
	if len(a.homeList.Items()) > 0 {
		return nil
	}
	return tea.Batch(a.startSpinner(MsgRefreshing), a.loadPage(true))
}

func (a *App) handleAuthDone(msg authDoneMsg) tea.Cmd {
	a.stopSpinner()
	st := a.auth.State()
	if msg.err != nil {
		return a.setStatus(st.Message, StatusError, statusTTL)
	}
	if msg.user == nil || msg.register && st.Message == auth.MsgRegistered {
		// registered without a session: back to login
		a.registerForm.reset()
		return tea.Batch(a.enterLogin(), a.setStatus(st.Message, StatusSuccess, statusTTL))
	}
	a.userID = msg.user.ID
	a.loginForm.reset()
	a.registerForm.reset()
	return tea.Batch(a.enterHome(), a.setStatus(st.Message, StatusSuccess, statusTTL))
}

func (a *App) articleItems(articles []gateway.Article, showStatus bool) []list.Item {
	items := make([]list.Item, len(articles))
	for i, art := range articles {
		items[i] = articleItem{
			article:    art,
			excerptLen: a.config.UI.Article.MaxExcerptLength,
			showStatus: showStatus,
		}
	}
	return items
}

func (a *App) handlePage(res listing.Result) tea.Cmd {
	a.stopSpinner()
	switch res.Outcome {
	case listing.Replaced, listing.Appended:
		snap := a.cursor.Snapshot()
		selected := a.homeList.Index()
		cmd := a.homeList.SetItems(a.articleItems(snap.Items, false))
		if res.Outcome == listing.Appended {
			a.homeList.Select(selected)
		}
		a.clearStatus()
		if !snap.HasMore && res.Outcome == listing.Appended && res.Added == 0 {
			return tea.Batch(cmd, a.setStatus(MsgEndOfList, StatusInfo, statusTTL))
		}
		return cmd
	case listing.Failed:
		if res.Page > 1 {
			// The cursor logs it. Loaded rows stay usable and the next
			// scroll retries the same page.
			a.clearStatus()
			return nil
		}
		text := gateway.UserMessage(res.Err, "Failed to load articles")
		return a.setStatus(text, StatusError, statusTTL)
	default:
		a.clearStatus()
		return nil
	}
}

// maybePrefetch loads the next page once the selection nears the end.
func (a *App) maybePrefetch() tea.Cmd {
	total := len(a.homeList.Items())
	if !a.cursor.HasMore() || a.cursor.Fetching() {
		return nil
	}
	if !a.cursor.ShouldPrefetch(a.homeList.Index(), total) {
		return nil
	}
	return a.loadPage(false)
}

func (a *App) handleArticle(msg articleLoadedMsg) tea.Cmd {
	a.stopSpinner()
	a.loadingArticle = false
	if a.view != ViewReader {
		return nil
	}
	if msg.err != nil {
		a.view = a.readerReturn
		return a.setStatus(msg.snap.State.Message, StatusError, statusTTL)
	}
	a.currentArticle = msg.snap.Article
	a.articleOffline = msg.snap.Offline
	a.viewport.SetContent(msg.rendered)
	a.viewport.GotoTop()
	if msg.snap.Offline {
		return a.setStatus(MsgOfflineResults, StatusWarn, statusTTL)
	}
	a.clearStatus()
	return nil
}

func (a *App) handleSearchResults(msg searchResultsMsg) tea.Cmd {
	if staleSearch(msg.err) || msg.seq != a.searchSeq {
		return nil
	}
	a.stopSpinner()
	if msg.snap.State.IsError() {
		return a.setStatus(msg.snap.State.Message, StatusError, statusTTL)
	}
	a.searchOffline = msg.snap.Offline
	cmd := a.searchList.SetItems(a.articleItems(msg.snap.Articles, false))
	if strings.TrimSpace(msg.snap.Query) == "" {
		a.clearStatus()
		return cmd
	}
	text := MsgResultsCount(len(msg.snap.Articles))
	if len(msg.snap.Articles) == 0 {
		text = MsgNoResults
	}
	kind := StatusInfo
	if msg.snap.Offline {
		text += " • offline"
		kind = StatusWarn
	}
	return tea.Batch(cmd, a.setStatus(text, kind, statusTTL))
}

func (a *App) handleEditorOpened(msg editorOpenedMsg) tea.Cmd {
	a.stopSpinner()
	if msg.err != nil {
		return a.setStatus(gateway.UserMessage(msg.err, "Failed to open article"), StatusError, statusTTL)
	}
	a.pipeline.Reset()
	if msg.saved != nil {
		a.pendingEditor = &msg
		a.view = ViewRestoreDraft
		return nil
	}
	return a.startEditor(msg)
}

func (a *App) startEditor(msg editorOpenedMsg) tea.Cmd {
	a.pendingEditor = nil
	a.view = ViewEditor
	cmd := a.editor.load(msg.draft, msg.categories, msg.target)
	a.editor.setSize(a.width, a.height)
	if len(msg.categories) == 0 {
		return tea.Batch(cmd, a.setStatus(MsgCategoriesFailed, StatusWarn, statusTTL))
	}
	a.clearStatus()
	return cmd
}

func (a *App) handleSubmitDone(res submit.Result) tea.Cmd {
	a.stopSpinner()
	a.editor.submitting = false
	switch res.Outcome {
	case submit.Success:
		a.autosaveSeq++
		a.editor.saved = true
		key := ""
		if a.editor.draft != nil {
			key = a.editor.draft.Record().Key
		}
		return tea.Batch(
			a.setStatus(res.Message, StatusSuccess, 0),
			a.dropAutosave(key),
			a.leaveEditorAfter(a.config.UI.ConfirmDelay),
		)
	case submit.Busy:
		return nil
	default:
		return a.setStatus(res.Message, StatusError, statusTTL)
	}
}

// leaveEditor returns to where the editor was opened from. After a save the
// listing and any open profile are reloaded.
func (a *App) leaveEditor(saved bool) tea.Cmd {
	a.autosaveSeq++
	a.view = a.editorReturn
	a.pipeline.Reset()
	if !saved {
		return nil
	}
	a.clearStatus()
	cmds := []tea.Cmd{a.loadPage(true)}
	switch a.view {
	case ViewProfile:
		cmds = append(cmds, a.loadProfile())
	case ViewReader:
		if a.currentArticle != nil {
			a.loadingArticle = true
			cmds = append(cmds, a.openArticle(a.currentArticle.ID))
		}
	}
	return tea.Batch(cmds...)
}

func (a *App) setProfileData(d profile.Data) {
	a.profileData = d
	a.profileList.SetItems(a.articleItems(d.Articles, true))
}

func (a *App) selectedArticle(l list.Model) (gateway.Article, bool) {
	if i, ok := l.SelectedItem().(articleItem); ok {
		return i.article, true
	}
	return gateway.Article{}, false
}
