package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/pders01/chronicle/internal/config"
)

// keyMap holds the configurable bindings. Action keys take the configured
// modifier; quit, back and help are bare keys.
type keyMap struct {
	Quit       key.Binding
	Search     key.Binding
	NewArticle key.Binding
	Edit       key.Binding
	Delete     key.Binding
	Refresh    key.Binding
	Profile    key.Binding
	OpenImage  key.Binding
	Back       key.Binding
	Help       key.Binding

	// fixed, view-local bindings
	SaveDraft   key.Binding
	Publish     key.Binding
	AttachImage key.Binding
	EditProfile key.Binding
	Logout      key.Binding
	Register    key.Binding
	Confirm     key.Binding
	NextField   key.Binding
	PrevField   key.Binding
	Remove      key.Binding
}

func newKeyMap(cfg *config.Config) keyMap {
	mod := cfg.Keys.Modifier + "+"
	b := cfg.Keys.Bindings

	action := func(k, help string) key.Binding {
		return key.NewBinding(key.WithKeys(mod+k), key.WithHelp(mod+k, help))
	}
	bare := func(k, help string) key.Binding {
		return key.NewBinding(key.WithKeys(k), key.WithHelp(k, help))
	}

	return keyMap{
		Quit:       key.NewBinding(key.WithKeys(b.Quit, "ctrl+c"), key.WithHelp(b.Quit, "quit")),
		Search:     action(b.Search, "search"),
		NewArticle: action(b.NewArticle, "new"),
		Edit:       action(b.Edit, "edit"),
		Delete:     action(b.Delete, "delete"),
		Refresh:    action(b.Refresh, "refresh"),
		Profile:    action(b.Profile, "profile"),
		OpenImage:  action(b.OpenImage, "images"),
		Back:       bare(b.Back, "back"),
		Help:       bare(b.Help, "help"),

		SaveDraft:   action("d", "save draft"),
		Publish:     action("p", "publish"),
		AttachImage: action("a", "attach image"),
		EditProfile: action("u", "edit profile"),
		Logout:      action("l", "logout"),
		Register:    action("r", "register"),
		Confirm:     bare("enter", "confirm"),
		NextField:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		PrevField:   key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev field")),
		Remove:      key.NewBinding(key.WithKeys("x", "delete", "backspace"), key.WithHelp("x", "remove")),
	}
}

// viewKeys lists the bindings shown in the status bar for a view.
func (k keyMap) viewKeys(v View, loggedIn bool) []key.Binding {
	switch v {
	case ViewLogin:
		return []key.Binding{k.Confirm, k.NextField, k.Register, k.Back}
	case ViewRegister:
		return []key.Binding{k.Confirm, k.NextField, k.Back}
	case ViewHome:
		keys := []key.Binding{k.Search, k.Refresh}
		if loggedIn {
			keys = append(keys, k.NewArticle, k.Edit, k.Profile)
		}
		return append(keys, k.Help)
	case ViewReader:
		keys := []key.Binding{k.OpenImage, k.Search}
		if loggedIn {
			keys = append(keys, k.Edit)
		}
		return append(keys, k.Back)
	case ViewImages:
		return []key.Binding{k.Confirm, k.Back}
	case ViewSearch:
		return []key.Binding{k.NextField, k.Back}
	case ViewEditor:
		return []key.Binding{k.SaveDraft, k.Publish, k.AttachImage, k.NextField, k.Back}
	case ViewFilePicker:
		return []key.Binding{k.Confirm, k.Back}
	case ViewRestoreDraft:
		return []key.Binding{
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "restore")),
			key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "start over")),
		}
	case ViewDiscardConfirm, ViewDeleteConfirm, ViewAccountDeleteConfirm:
		return []key.Binding{k.Confirm, key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel"))}
	case ViewProfile:
		return []key.Binding{k.Edit, k.Delete, k.EditProfile, k.Logout, k.Back}
	case ViewProfileEdit:
		return []key.Binding{k.Confirm, k.NextField, k.Delete, k.Back}
	default:
		return nil
	}
}

// ShortHelp and FullHelp satisfy help.KeyMap for the help overlay.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Search, k.Refresh, k.NewArticle, k.Edit, k.Delete},
		{k.Profile, k.OpenImage, k.EditProfile, k.Logout},
		{k.SaveDraft, k.Publish, k.AttachImage, k.Remove},
		{k.NextField, k.PrevField, k.Back, k.Help, k.Quit},
	}
}
