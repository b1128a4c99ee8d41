package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	codeStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Share link & embed fixer"))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter recognize • esc quit"))
		b.WriteString("\n")
		return b.String()
	}

	if m.result != nil {
		r := m.result
		b.WriteString(headingStyle.Render("What we fixed"))
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("Original URL: ") + r.OriginalURL + "\n")
		b.WriteString(labelStyle.Render("Content ID:   ") + r.ContentID + " (" + string(r.Platform) + " " + r.ContentType + ")\n")
		b.WriteString(r.Explanation + "\n\n")

		b.WriteString(headingStyle.Render("Embed code"))
		if m.embedCopied {
			b.WriteString("  " + okStyle.Render("Copied!"))
		}
		b.WriteString("\n")
		b.WriteString(m.code(r.EmbedCode))
		b.WriteString("\n")

		if m.report != nil {
			b.WriteString("\n")
			b.WriteString(headingStyle.Render("Bug report"))
			if m.reportCopied {
				b.WriteString("  " + okStyle.Render("Copied!"))
			}
			b.WriteString("\n")
			b.WriteString(labelStyle.Render("Paste this into the platform's support or feedback form."))
			b.WriteString("\n")
			b.WriteString(m.code(m.report.String()))
			b.WriteString("\n")
		}
	}

	if m.copyErr != nil {
		b.WriteString(errorStyle.Render("Copy failed: " + m.copyErr.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.help()))
	b.WriteString("\n")
	return b.String()
}

func (m Model) code(s string) string {
	style := codeStyle
	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	return style.Render(s)
}

func (m Model) help() string {
	keys := []string{"enter recognize", "ctrl+y copy code"}
	if m.report == nil {
		keys = append(keys, "ctrl+r report")
	} else {
		keys = append(keys, "ctrl+t copy report")
	}
	return strings.Join(append(keys, "esc quit"), " • ")
}
