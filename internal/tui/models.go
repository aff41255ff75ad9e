package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/chronicle/internal/draft"
	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/listing"
	"github.com/pders01/chronicle/internal/profile"
	"github.com/pders01/chronicle/internal/reader"
	"github.com/pders01/chronicle/internal/search"
	"github.com/pders01/chronicle/internal/storage"
	"github.com/pders01/chronicle/internal/submit"
)

type View int

const (
	ViewLogin View = iota
	ViewRegister
	ViewHome
	ViewReader
	ViewImages
	ViewSearch
	ViewEditor
	ViewFilePicker
	ViewRestoreDraft
	ViewDiscardConfirm
	ViewDeleteConfirm
	ViewProfile
	ViewProfileEdit
	ViewAccountDeleteConfirm
)

func (v View) String() string {
	switch v {
	case ViewLogin:
		return "login"
	case ViewRegister:
		return "register"
	case ViewHome:
		return "home"
	case ViewReader:
		return "reader"
	case ViewImages:
		return "images"
	case ViewSearch:
		return "search"
	case ViewEditor:
		return "editor"
	case ViewFilePicker:
		return "file picker"
	case ViewRestoreDraft:
		return "restore draft"
	case ViewDiscardConfirm:
		return "discard confirm"
	case ViewDeleteConfirm:
		return "delete confirm"
	case ViewProfile:
		return "profile"
	case ViewProfileEdit:
		return "profile edit"
	case ViewAccountDeleteConfirm:
		return "account delete confirm"
	default:
		return fmt.Sprintf("view(%d)", int(v))
	}
}

type articleItem struct {
	article    gateway.Article
	excerptLen int
	showStatus bool
}

func (i articleItem) Title() string {
	title := strings.TrimSpace(i.article.Title)
	if title == "" {
		title = "Untitled"
	}
	if i.showStatus && i.article.Status == gateway.StatusDraft {
		return DraftItemStyle.Render("◌ " + title)
	}
	return ArticleTitleStyle.Render(title)
}

func (i articleItem) Description() string {
	excerpt := strings.Join(strings.Fields(i.article.Content), " ")
	limit := i.excerptLen
	if limit <= 0 {
		limit = 80
	}
	excerpt = truncateEnd(excerpt, limit)

	meta := i.article.PublishedDate()
	if i.article.AuthorName != "" {
		meta = i.article.AuthorName + " • " + meta
	}
	if i.article.CategoryName != "" {
		meta += " • " + i.article.CategoryName
	}

	return lipgloss.NewStyle().
		Foreground(MutedColor).
		Render(excerpt) + TimeStyle.Render(" • "+meta)
}

func (i articleItem) FilterValue() string { return i.article.Title }

type imageItem struct {
	ref      string
	resolved string
	index    int
	total    int
}

func (i imageItem) Title() string {
	return fmt.Sprintf("Image %d of %d", i.index+1, i.total)
}

func (i imageItem) Description() string { return i.resolved }
func (i imageItem) FilterValue() string { return i.ref }

type sessionCheckedMsg struct {
	userID int
	err    error
}

type authDoneMsg struct {
	user     *gateway.User
	register bool
	err      error
}

type pageLoadedMsg struct {
	result listing.Result
}

type articleLoadedMsg struct {
	snap     reader.Snapshot
	rendered string
	err      error
}

type searchDebounceFireMsg struct {
	seq int
}

type searchResultsMsg struct {
	seq  int
	snap search.Snapshot
	err  error
}

type editorOpenedMsg struct {
	draft      *draft.Draft
	categories []gateway.Category
	target     submit.Target
	saved      *storage.DraftRecord
	err        error
}

type autosaveFireMsg struct {
	seq int
}

type submitDoneMsg struct {
	result submit.Result
}

type leaveEditorMsg struct{}

type imagePickedMsg struct {
	path string
	err  error
}

type profileLoadedMsg struct {
	data profile.Data
	err  error
}

type articleDeletedMsg struct {
	id      int
	message string
	err     error
}

type profileFieldsMsg struct {
	fields profile.Fields
	err    error
}

type profileSavedMsg struct {
	err error
}

type accountDeletedMsg struct {
	err error
}

type loggedOutMsg struct {
	err error
}

type errorMsg struct {
	err error
}
