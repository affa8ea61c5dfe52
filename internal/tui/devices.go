// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"musualiser/internal/audio"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D7D7D"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))

	curveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065"))

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(1)
)

const panelWidth = 30

// renderSessions formats the capture source list. The active target is
// marked with a bullet and the cursor row is highlighted.
func renderSessions(sessions []audio.Session, cursor int, active audio.Target, width int) string {
	if len(sessions) == 0 {
		return dimStyle.Render("No capture sources found.")
	}

	var sb strings.Builder
	for i, s := range sessions {
		marker := "  "
		if s.Target() == active {
			marker = "• "
		}
		label := s.Name
		if s.Default {
			label += " (default)"
		}
		if s.ProcessID != 0 {
			label = fmt.Sprintf("%s [%d]", label, s.ProcessID)
		}
		sb.WriteString(listRow(marker+label, i == cursor, width))
		sb.WriteByte('\n')
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// renderSongs formats the song list. Index 0 is the Stop entry.
func renderSongs(songs []string, cursor, selected int, width int) string {
	if len(songs) <= 1 {
		return dimStyle.Render("No songs loaded.\nPass files to 'play'.")
	}

	var sb strings.Builder
	for i, path := range songs {
		marker := "  "
		if i == selected {
			marker = "▶ "
		}
		label := path
		if i > 0 {
			label = filepath.Base(path)
		}
		sb.WriteString(listRow(marker+label, i == cursor, width))
		sb.WriteByte('\n')
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func listRow(text string, highlighted bool, width int) string {
	if r := []rune(text); width > 1 && len(r) > width {
		text = string(r[:width-1]) + "…"
	}
	if highlighted {
		return highlightStyle.Render(text)
	}
	return infoStyle.Render(text)
}
