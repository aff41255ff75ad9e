package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// form is a vertical stack of labelled single-line inputs with one focused.
type form struct {
	labels []string
	inputs []textinput.Model
	focus  int
}

type formField struct {
	label       string
	placeholder string
	secret      bool
	charLimit   int
}

func newForm(fields ...formField) *form {
	f := &form{}
	for _, fd := range fields {
		ti := textinput.New()
		ti.Placeholder = fd.placeholder
		ti.Prompt = ""
		if fd.charLimit > 0 {
			ti.CharLimit = fd.charLimit
		}
		if fd.secret {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '•'
		}
		f.labels = append(f.labels, fd.label)
		f.inputs = append(f.inputs, ti)
	}
	f.focusIndex(0)
	return f
}

func (f *form) focusIndex(i int) tea.Cmd {
	n := len(f.inputs)
	if n == 0 {
		return nil
	}
	f.focus = ((i % n) + n) % n
	var cmd tea.Cmd
	for j := range f.inputs {
		if j == f.focus {
			cmd = f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
	return cmd
}

func (f *form) next() tea.Cmd { return f.focusIndex(f.focus + 1) }
func (f *form) prev() tea.Cmd { return f.focusIndex(f.focus - 1) }

func (f *form) value(i int) string {
	return f.inputs[i].Value()
}

func (f *form) setValue(i int, v string) {
	f.inputs[i].SetValue(v)
}

func (f *form) reset() {
	for i := range f.inputs {
		f.inputs[i].Reset()
	}
	f.focusIndex(0)
}

func (f *form) setWidth(w int) {
	for i := range f.inputs {
		f.inputs[i].Width = w
	}
}

// update forwards msg to the focused input and reports whether its value
// changed.
func (f *form) update(msg tea.Msg) (tea.Cmd, bool) {
	before := f.inputs[f.focus].Value()
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd, f.inputs[f.focus].Value() != before
}

func (f *form) view(width int) string {
	inputWidth := max(width-8, 20)
	rows := make([]string, 0, len(f.inputs)*2)
	for i, in := range f.inputs {
		in.Width = inputWidth
		rows = append(rows,
			LabelStyle.Render(f.labels[i]),
			renderInputFrame(in.View(), i == f.focus, inputWidth),
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

const (
	loginEmail = iota
	loginPassword
)

const (
	registerName = iota
	registerEmail
	registerPassword
)

const (
	profileName = iota
	profileEmail
	profileBio
	profilePassword
)

func newLoginForm() *form {
	return newForm(
		formField{label: "Email", placeholder: "name@example.com", charLimit: 254},
		formField{label: "Password", secret: true, charLimit: 128},
	)
}

func newRegisterForm() *form {
	return newForm(
		formField{label: "Full name", placeholder: "Herodotus of Halicarnassus", charLimit: 100},
		formField{label: "Email", placeholder: "name@example.com", charLimit: 254},
		formField{label: "Password", placeholder: "at least 6 characters", secret: true, charLimit: 128},
	)
}

func newProfileForm() *form {
	return newForm(
		formField{label: "Full name", charLimit: 100},
		formField{label: "Email", charLimit: 254},
		formField{label: "Bio", placeholder: "A line about yourself", charLimit: 500},
		formField{label: "New password", placeholder: "leave blank to keep", secret: true, charLimit: 128},
	)
}

// formTitle renders a form screen header with the logo above it.
func formTitle(title string) string {
	return lipgloss.JoinVertical(lipgloss.Center,
		LogoStyle.Render(strings.Join(LogoLines, "\n")),
		"",
		TitleStyle.Render(title),
	)
}
