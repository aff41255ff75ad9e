package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (a *App) View() string {
	bodyHeight := max(a.height-3, 1)
	var content string

	switch a.view {
	case ViewLogin:
		content = a.formView("› sign in", a.loginForm, "Enter: sign in • ctrl+r: register • Esc: browse as guest", bodyHeight)
	case ViewRegister:
		content = a.formView("› create account", a.registerForm, "Enter: register • Tab: next field • Esc: back", bodyHeight)
	case ViewHome:
		if len(a.homeList.Items()) == 0 {
			content = renderCentered(a.width, bodyHeight, GetWelcomeMessage())
		} else {
			content = a.homeList.View()
		}
	case ViewReader:
		if a.loadingArticle {
			content = renderCentered(a.width, bodyHeight, renderMuted(MsgLoadingArticle))
		} else {
			content = a.viewport.View()
		}
	case ViewImages:
		content = a.imageList.View()
	case ViewSearch:
		content = a.searchView(bodyHeight)
	case ViewEditor:
		content = lipgloss.NewStyle().
			Width(a.width).
			Height(bodyHeight).
			MaxHeight(bodyHeight).
			Padding(0, 1).
			Render(a.editor.view())
	case ViewFilePicker:
		content = lipgloss.JoinVertical(lipgloss.Top,
			renderHeader("› attach image", a.filePicker.CurrentDirectory, a.width),
			"",
			a.filePicker.View(),
		)
	case ViewRestoreDraft:
		content = a.restoreDraftView(bodyHeight)
	case ViewDiscardConfirm:
		content = renderModal(a.width, bodyHeight,
			"⚠ Discard Changes",
			"Leave the editor and discard your changes?",
			a.editorSubject(),
			"The autosaved copy is deleted too.",
			"Enter: discard • Esc: keep editing",
		)
	case ViewDeleteConfirm:
		subject := ""
		if a.pendingDelete != nil {
			subject = a.pendingDelete.Title
		}
		content = renderModal(a.width, bodyHeight,
			"⚠ Delete Article",
			"Delete this article?",
			subject,
			"This cannot be undone.",
			"Enter: confirm • Esc: cancel",
		)
	case ViewProfile:
		content = a.profileView()
	case ViewProfileEdit:
		content = a.formView("› edit profile", a.profileForm, "Enter: save • ctrl+x: delete account • Esc: back", bodyHeight)
	case ViewAccountDeleteConfirm:
		content = renderModal(a.width, bodyHeight,
			"⚠ Delete Account",
			"Delete your account?",
			a.profileData.User.Email,
			"Your articles and session are removed.",
			"Enter: confirm • Esc: cancel",
		)
	}

	separator := SeparatorStyle.Render(strings.Repeat("─", max(a.width-1, 0)))
	return lipgloss.JoinVertical(lipgloss.Top, content, separator, a.statusBar())
}

func (a *App) formView(title string, f *form, hint string, height int) string {
	width := min(a.width, 72)
	body := lipgloss.JoinVertical(lipgloss.Left,
		formTitle(title),
		"",
		f.view(width),
		"",
		renderHelp(hint),
	)
	return renderCentered(a.width, height, body)
}

func (a *App) searchView(height int) string {
	header := "› search"
	if a.searchOffline {
		header += " (offline)"
	}

	var hint string
	switch {
	case a.searchInput.Focused():
		hint = "Type to search • Tab/↓: results • Esc: back"
	case len(a.searchList.Items()) > 0:
		hint = "↑↓: navigate • Enter: open • Tab/↑: search box • Esc: back"
	default:
		hint = "No results found • Tab/↑: search box • Esc: back"
	}

	body := lipgloss.JoinVertical(lipgloss.Top,
		lipgloss.NewStyle().Foreground(SecondaryColor).Bold(true).Render(header),
		"",
		renderInputFrame(a.searchInput.View(), a.searchInput.Focused(), max(a.width-8, 10)),
		renderMuted(hint),
		"",
		a.searchList.View(),
	)
	return lipgloss.NewStyle().
		Width(a.width).
		Height(height).
		MaxHeight(height).
		Render(body)
}

func (a *App) restoreDraftView(height int) string {
	detail := ""
	subject := "new article"
	if p := a.pendingEditor; p != nil && p.saved != nil {
		if strings.TrimSpace(p.saved.Title) != "" {
			subject = p.saved.Title
		}
		if !p.saved.SavedAt.IsZero() {
			detail = "Saved " + p.saved.SavedAt.Format("2006-01-02 15:04")
		}
	}
	return renderModal(a.width, height,
		"✎ Unsaved Draft",
		"Restore the work you did not submit?",
		subject,
		detail,
		"Enter: restore • Esc: start over",
	)
}

func (a *App) editorSubject() string {
	if a.editor.draft == nil {
		return ""
	}
	if t := strings.TrimSpace(a.editor.draft.Snapshot().Title); t != "" {
		return t
	}
	return "Untitled"
}

func (a *App) profileView() string {
	u := a.profileData.User
	name := u.FullName
	if name == "" {
		name = "profile"
	}

	drafts := len(a.profileData.Drafts())
	published := len(a.profileData.Published())
	summary := fmt.Sprintf("%s • %d published • %d drafts", u.Email, published, drafts)

	rows := []string{renderHeader("› "+name, summary, a.width)}
	if bio := strings.TrimSpace(u.Bio); bio != "" {
		rows = append(rows, ModalTextStyle.Render(truncateEnd(bio, a.width-2)))
	}
	rows = append(rows, "")
	if len(a.profileList.Items()) == 0 {
		rows = append(rows, EmptyStyle.Render("No articles yet. Press ctrl+n on the home screen to write one."))
	} else {
		rows = append(rows, a.profileList.View())
	}
	return lipgloss.JoinVertical(lipgloss.Top, rows...)
}

// statusBar shows the current status on the left and key help after it.
func (a *App) statusBar() string {
	var help string
	if a.showHelp {
		help = a.help.FullHelpView(a.keys.FullHelp())
	} else {
		help = a.help.ShortHelpView(a.keys.viewKeys(a.view, a.loggedIn()))
	}

	line := help
	if a.status != "" || a.busy {
		line = a.statusStyleFor(a.statusKind) + "  " + help
	}
	return StatusBarStyle.Width(a.width).Render(line)
}
