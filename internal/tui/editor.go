package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/chronicle/internal/draft"
	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/submit"
)

type editorField int

const (
	fieldTitle editorField = iota
	fieldCategory
	fieldTags
	fieldContent
	fieldImages
	editorFieldCount
)

func (f editorField) String() string {
	switch f {
	case fieldTitle:
		return "Title"
	case fieldCategory:
		return "Category"
	case fieldTags:
		return "Tags"
	case fieldContent:
		return "Content"
	case fieldImages:
		return "Images"
	default:
		return ""
	}
}

// editorImage is one row of the image panel: a persisted reference or a
// staged local file.
type editorImage struct {
	persisted bool
	ref       string
	handle    string
	caption   string
}

// editor is the article authoring screen. Every edit goes straight into the
// draft buffer; the widgets only mirror it.
type editor struct {
	draft      *draft.Draft
	target     submit.Target
	categories []gateway.Category

	title   textinput.Model
	tags    textinput.Model
	content textarea.Model
	caption textinput.Model

	focus          editorField
	imageIndex     int
	editingCaption bool
	submitting     bool
	saved          bool

	width  int
	height int
}

func newEditor() *editor {
	title := textinput.New()
	title.Placeholder = "Title"
	title.Prompt = ""
	title.CharLimit = 200

	tags := textinput.New()
	tags.Placeholder = "comma, separated, tags"
	tags.Prompt = ""
	tags.CharLimit = 300

	content := textarea.New()
	content.Placeholder = "Write the article in markdown…"
	content.ShowLineNumbers = false
	content.CharLimit = 0

	caption := textinput.New()
	caption.Placeholder = "Caption"
	caption.Prompt = "› "
	caption.CharLimit = 200

	return &editor{
		title:   title,
		tags:    tags,
		content: content,
		caption: caption,
	}
}

// load binds the screen to d and copies its fields into the widgets.
func (e *editor) load(d *draft.Draft, categories []gateway.Category, target submit.Target) tea.Cmd {
	e.draft = d
	e.target = target
	e.categories = categories
	e.imageIndex = 0
	e.editingCaption = false
	e.submitting = false
	e.saved = false

	snap := d.Snapshot()
	e.title.SetValue(snap.Title)
	e.tags.SetValue(snap.Tags)
	e.content.SetValue(snap.Content)
	e.caption.Reset()
	return e.focusField(fieldTitle)
}

func (e *editor) setSize(width, height int) {
	e.width = width
	e.height = height
	inner := max(width-8, 20)
	e.title.Width = inner
	e.tags.Width = inner
	e.caption.Width = inner
	e.content.SetWidth(inner)
	e.content.SetHeight(max(height-22, 5))
}

func (e *editor) focusField(f editorField) tea.Cmd {
	e.focus = f
	e.title.Blur()
	e.tags.Blur()
	e.content.Blur()
	switch f {
	case fieldTitle:
		return e.title.Focus()
	case fieldTags:
		return e.tags.Focus()
	case fieldContent:
		return e.content.Focus()
	}
	return nil
}

func (e *editor) nextField() tea.Cmd {
	return e.focusField((e.focus + 1) % editorFieldCount)
}

func (e *editor) prevField() tea.Cmd {
	return e.focusField((e.focus + editorFieldCount - 1) % editorFieldCount)
}

// categoryIndex is the position of the draft's category in the picker, or -1.
func (e *editor) categoryIndex() int {
	cat := e.draft.Category()
	if cat == nil {
		return -1
	}
	for i, c := range e.categories {
		if c.ID == cat.ID {
			return i
		}
	}
	return -1
}

// cycleCategory steps through the known categories, wrapping at both ends.
func (e *editor) cycleCategory(delta int) bool {
	n := len(e.categories)
	if n == 0 {
		return false
	}
	i := e.categoryIndex()
	if i < 0 {
		if delta > 0 {
			i = 0
		} else {
			i = n - 1
		}
	} else {
		i = ((i+delta)%n + n) % n
	}
	e.draft.SetCategory(&e.categories[i])
	return true
}

func (e *editor) images() []editorImage {
	snap := e.draft.Snapshot()
	out := make([]editorImage, 0, len(snap.PersistedImages)+len(snap.NewImages))
	for _, ref := range snap.PersistedImages {
		out = append(out, editorImage{persisted: true, ref: ref})
	}
	for _, img := range snap.NewImages {
		out = append(out, editorImage{ref: img.Source, handle: img.Handle, caption: img.Caption})
	}
	return out
}

func (e *editor) selectedImage() (editorImage, bool) {
	imgs := e.images()
	if e.imageIndex < 0 || e.imageIndex >= len(imgs) {
		return editorImage{}, false
	}
	return imgs[e.imageIndex], true
}

func (e *editor) moveImage(delta int) {
	n := len(e.images())
	if n == 0 {
		e.imageIndex = 0
		return
	}
	e.imageIndex = min(max(e.imageIndex+delta, 0), n-1)
}

// removeSelectedImage drops the highlighted image. Persisted images are
// queued for deletion on the server.
func (e *editor) removeSelectedImage() bool {
	img, ok := e.selectedImage()
	if !ok {
		return false
	}
	var removed bool
	if img.persisted {
		removed = e.draft.RemovePersistedImage(img.ref)
	} else {
		removed = e.draft.RemoveNewImage(img.handle)
	}
	e.moveImage(0)
	return removed
}

func (e *editor) attach(path string) {
	e.draft.AddNewImages(path)
	e.imageIndex = len(e.images()) - 1
}

// beginCaption opens the caption input for a staged image.
func (e *editor) beginCaption() tea.Cmd {
	img, ok := e.selectedImage()
	if !ok || img.persisted {
		return nil
	}
	e.editingCaption = true
	e.caption.SetValue(img.caption)
	return e.caption.Focus()
}

func (e *editor) commitCaption() bool {
	img, ok := e.selectedImage()
	e.editingCaption = false
	e.caption.Blur()
	if !ok || img.persisted {
		return false
	}
	return e.draft.SetCaption(img.handle, strings.TrimSpace(e.caption.Value()))
}

func (e *editor) cancelCaption() {
	e.editingCaption = false
	e.caption.Blur()
}

// isTyping reports whether keys should go to a text widget.
func (e *editor) isTyping() bool {
	if e.editingCaption {
		return true
	}
	switch e.focus {
	case fieldTitle, fieldTags, fieldContent:
		return true
	}
	return false
}

// updateInput forwards msg to the focused widget and copies any change into
// the draft. It reports whether the draft changed.
func (e *editor) updateInput(msg tea.Msg) (tea.Cmd, bool) {
	var cmd tea.Cmd
	if e.editingCaption {
		e.caption, cmd = e.caption.Update(msg)
		return cmd, false
	}

	switch e.focus {
	case fieldTitle:
		before := e.title.Value()
		e.title, cmd = e.title.Update(msg)
		if v := e.title.Value(); v != before {
			e.draft.UpdateField(draft.Title, v)
			return cmd, true
		}
	case fieldTags:
		before := e.tags.Value()
		e.tags, cmd = e.tags.Update(msg)
		if v := e.tags.Value(); v != before {
			e.draft.UpdateField(draft.Tags, v)
			return cmd, true
		}
	case fieldContent:
		before := e.content.Value()
		e.content, cmd = e.content.Update(msg)
		if v := e.content.Value(); v != before {
			e.draft.UpdateField(draft.Content, v)
			return cmd, true
		}
	}
	return cmd, false
}

func (e *editor) heading() string {
	if e.target.IsInsert() {
		return "› new article"
	}
	return fmt.Sprintf("› edit article #%d", e.target.ArticleID())
}

func (e *editor) view() string {
	inner := max(e.width-8, 20)
	label := func(f editorField) string {
		text := f.String()
		if e.focus == f {
			return lipgloss.NewStyle().Foreground(AccentColor).Bold(true).Render("▸ " + text)
		}
		return LabelStyle.Render("  " + text)
	}

	category := "none"
	if c := e.draft.Category(); c != nil {
		category = c.Name
	}
	if len(e.categories) > 0 {
		category = "‹ " + category + " ›"
	}

	subtitle := "unsaved changes"
	if !e.draft.HasChanges() {
		subtitle = "no changes"
	}

	rows := []string{
		renderHeader(e.heading(), subtitle, e.width),
		"",
		label(fieldTitle),
		renderInputFrame(e.title.View(), e.focus == fieldTitle, inner),
		label(fieldCategory),
		renderInputFrame(category, e.focus == fieldCategory, inner),
		label(fieldTags),
		renderInputFrame(e.tags.View(), e.focus == fieldTags, inner),
		label(fieldContent),
		renderInputFrame(e.content.View(), e.focus == fieldContent, inner),
		label(fieldImages),
		e.imagesView(inner),
	}
	if e.editingCaption {
		rows = append(rows, renderInputFrame(e.caption.View(), true, inner))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (e *editor) imagesView(width int) string {
	imgs := e.images()
	if len(imgs) == 0 {
		return renderMuted("  none • ctrl+a to attach")
	}
	lines := make([]string, 0, len(imgs))
	for i, img := range imgs {
		marker := "  "
		if e.focus == fieldImages && i == e.imageIndex {
			marker = "▸ "
		}
		var text string
		if img.persisted {
			text = "[stored] " + truncateMiddle(img.ref, width-12)
		} else {
			text = "[new] " + truncateMiddle(filepath.Base(img.ref), width/2)
			if img.caption != "" {
				text += " · " + truncateEnd(img.caption, width/3)
			}
		}
		lines = append(lines, marker+text)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
