package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Canonical short status messages used across the app.
const (
	MsgRefreshing       = "Refreshing…"
	MsgLoadingArticle   = "Loading article…"
	MsgLoadingProfile   = "Loading profile…"
	MsgOpeningEditor    = "Opening editor…"
	MsgSaving           = "Saving…"
	MsgSigningIn        = "Signing in…"
	MsgRegistering      = "Creating account…"
	MsgDeleting         = "Deleting…"
	MsgSearching        = "Searching…"
	MsgNoResults        = "No results"
	MsgEndOfList        = "No more articles"
	MsgDraftRestored    = "Draft restored"
	MsgDraftDiscarded   = "Draft discarded"
	MsgLoginRequired    = "Log in to write articles"
	MsgNoImages         = "This article has no images"
	MsgOfflineResults   = "Offline: showing cached articles"
	MsgCategoriesFailed = "Could not load categories"
)

const statusTTL = 4 * time.Second

// StatusKind picks the status bar style.
type StatusKind int

const (
	StatusInfo StatusKind = iota
	StatusSuccess
	StatusWarn
	StatusError
)

func MsgResultsCount(n int) string {
	if n == 1 {
		return "1 result"
	}
	return fmt.Sprintf("%d results", n)
}

func MsgImageAttached(name string) string {
	return fmt.Sprintf("Attached %s", name)
}

type clearStatusMsg struct {
	id int
}

// setStatus shows text in the status bar. A positive ttl clears it later;
// a newer status replaces an older one before its timer fires.
func (a *App) setStatus(text string, kind StatusKind, ttl time.Duration) tea.Cmd {
	a.statusSeq++
	a.status = text
	a.statusKind = kind
	if ttl <= 0 {
		return nil
	}
	id := a.statusSeq
	return tea.Tick(ttl, func(time.Time) tea.Msg { return clearStatusMsg{id: id} })
}

func (a *App) clearStatus() {
	a.statusSeq++
	a.status = ""
	a.statusKind = StatusInfo
}

// startSpinner marks the app busy and shows text until stopSpinner.
func (a *App) startSpinner(text string) tea.Cmd {
	a.busy = true
	a.setStatus(text, StatusInfo, 0)
	return a.spinner.Tick
}

func (a *App) stopSpinner() {
	a.busy = false
}

func (a *App) updateSpinner(msg spinner.TickMsg) tea.Cmd {
	if !a.busy {
		return nil
	}
	var cmd tea.Cmd
	a.spinner, cmd = a.spinner.Update(msg)
	return cmd
}

func (a *App) statusStyleFor(kind StatusKind) string {
	text := a.status
	if a.busy {
		text = a.spinner.View() + " " + text
	}
	switch kind {
	case StatusSuccess:
		return StatusSuccessStyle.Render(text)
	case StatusWarn:
		return StatusWarnStyle.Render(text)
	case StatusError:
		return StatusErrorStyle.Render("✗ " + text)
	default:
		return StatusInfoStyle.Render(text)
	}
}
