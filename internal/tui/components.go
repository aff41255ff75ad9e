package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// renderHeader returns a consistently styled header with an optional muted subtitle.
// Width is used to guide truncation via helpers.
func renderHeader(title, subtitle string, width int) string {
	title = truncateEnd(title, width-2)
	subtitle = truncateEnd(subtitle, width-2)
	rows := []string{HeaderStyle.Render(title)}
	if subtitle != "" {
		rows = append(rows, renderMuted(subtitle))
	}
	return lipgloss.JoinVertical(lipgloss.Top, rows...)
}

// renderInputFrame draws a rounded bordered container around a rendered input view.
func renderInputFrame(inputView string, focused bool, contentWidth int) string {
	borderColor := MutedColor
	if focused {
		borderColor = AccentColor
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Width(contentWidth + 4).
		Render(inputView)
}

// renderCentered centers the provided content within the given width/height box.
func renderCentered(width, height int, content string) string {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(content)
}

// renderModal lays out a confirmation dialog: title, subject, detail, keys.
func renderModal(width, height int, title, question, subject, detail, keys string) string {
	modalWidth := (width * 4) / 5
	if modalWidth < 20 {
		modalWidth = max(width-4, 15)
	}
	subject = truncateEnd(subject, modalWidth-4)

	line := func(style lipgloss.Style, text string) string {
		return style.Width(modalWidth).Align(lipgloss.Center).Render(text)
	}

	rows := []string{
		ModalTitleStyle.Render(title),
		"",
		line(ModalTextStyle, question),
	}
	if subject != "" {
		rows = append(rows, "", line(lipgloss.NewStyle().Foreground(AccentColor).Bold(true), subject))
	}
	if detail != "" {
		rows = append(rows, "", line(lipgloss.NewStyle().Foreground(MutedColor), detail))
	}
	rows = append(rows, "", "", renderHelp(keys))

	return renderCentered(width, height, lipgloss.JoinVertical(lipgloss.Center, rows...))
}

// renderMuted renders text in muted color (utility wrapper).
func renderMuted(text string) string {
	return lipgloss.NewStyle().Foreground(MutedColor).Render(text)
}

// renderHelp renders help/instructional text consistently.
func renderHelp(text string) string {
	return HelpStyle.Render(text)
}
