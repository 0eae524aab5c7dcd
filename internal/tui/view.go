package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/existflow/learnportal/internal/model"
)

const sidebarWidth = 30

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	sidebar := m.renderSidebar()
	var main string
	if m.pane == PaneReader && m.current != nil {
		main = m.renderReader()
	} else {
		main = m.renderLessons()
	}
	statusBar := m.renderStatusBar()

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)

	switch m.mode {
	case ModeLoginEmail, ModeLoginPassword, ModeFeedback, ModeAddTime:
		mainContent = m.place(m.renderModal())
	case ModeOAuthError:
		mainContent = m.place(m.renderOAuthError())
	case ModeHelp:
		mainContent = m.renderHelp()
	}

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, statusBar)
}

func (m Model) place(modal string) string {
	return lipgloss.Place(
		m.width, m.height-2,
		lipgloss.Center, lipgloss.Center,
		modal,
		lipgloss.WithWhitespaceChars(" "),
	)
}

func (m Model) renderSidebar() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("Learning Portal") + "\n")
	if user := m.app.Auth.State().User; user != nil {
		s.WriteString(HelpStyle.Render(truncate(user.DisplayName(), sidebarWidth-4)) + "\n")
	} else {
		s.WriteString(HelpStyle.Render("not logged in") + "\n")
	}
	s.WriteString(lipgloss.NewStyle().Foreground(Border).Render(strings.Repeat("─", sidebarWidth-4)) + "\n\n")

	pct := m.app.Progress.CompletionPercentage()
	s.WriteString(progressBar(pct, sidebarWidth-10) + fmt.Sprintf(" %d%%", pct) + "\n\n")

	for i, topic := range model.Curriculum {
		cursor := "  "
		style := ItemStyle
		if m.app.Progress.IsTopicComplete(topic.ID) {
			style = ItemDoneStyle
		}
		if i == m.topicCursor && m.pane == PaneTopics {
			cursor = "❯ "
			style = ItemSelectedStyle
		}
		mark := "○"
		if m.app.Progress.IsTopicComplete(topic.ID) {
			mark = "✓"
		}
		s.WriteString(style.Render(fmt.Sprintf("%s%s %s", cursor, mark, truncate(topic.Title, sidebarWidth-10))) + "\n")
	}

	snap := m.app.Progress.Snapshot()
	s.WriteString("\n" + HelpStyle.Render(fmt.Sprintf("%d lessons · %d min", len(snap.CompletedLessons), snap.TotalTimeSpent)))

	return SidebarStyle.Width(sidebarWidth).Height(m.height - 2).Render(s.String())
}

func (m Model) renderLessons() string {
	width := m.width - sidebarWidth - 2
	var s strings.Builder

	s.WriteString(TitleStyle.Render(fmt.Sprintf("Lessons (%d)", len(m.lessons))) + "\n")
	s.WriteString(lipgloss.NewStyle().Foreground(Border).Render(strings.Repeat("─", max(width-4, 1))) + "\n\n")

	if len(m.lessons) == 0 {
		s.WriteString(HelpStyle.Render("  No lessons loaded. Press 'r' to refresh."))
	}

	// keep the cursor visible
	visible := m.height - 8
	start := 0
	if visible > 0 && m.cursor >= visible {
		start = m.cursor - visible + 1
	}

	for i := start; i < len(m.lessons) && (visible <= 0 || i < start+visible); i++ {
		l := m.lessons[i]
		cursor := "  "
		style := ItemStyle
		done := m.app.Progress.IsLessonComplete(l.ID)
		if done {
			style = ItemDoneStyle
		}
		if i == m.cursor && m.pane == PaneLessons {
			cursor = "❯ "
			style = ItemSelectedStyle
		}
		icon := "[ ]"
		if done {
			icon = "[x]"
		}
		line := fmt.Sprintf("%s%s %s %s", cursor, icon,
			TrackBadge(l.Track == model.TrackASPNETCore), truncate(l.Title, max(width-16, 8)))
		s.WriteString(style.Render(line) + "\n")
	}

	return MainStyle.Width(width).Height(m.height - 2).Render(s.String())
}

func (m Model) renderReader() string {
	width := m.width - sidebarWidth - 2
	l := m.current
	var s strings.Builder

	title := l.Title
	if m.app.Progress.IsLessonComplete(l.ID) {
		title += " ✓"
	}
	s.WriteString(TitleStyle.Render(title) + "\n")
	if l.Description != "" {
		s.WriteString(HelpStyle.Render(l.Description) + "\n")
	}
	s.WriteString(lipgloss.NewStyle().Foreground(Border).Render(strings.Repeat("─", max(width-4, 1))) + "\n\n")

	lines := wrapLines(l.Content, width-6)
	visible := m.height - 9
	if visible < 1 {
		visible = 1
	}
	start := m.scroll
	if start > len(lines)-1 {
		start = max(len(lines)-1, 0)
	}
	end := min(start+visible, len(lines))
	s.WriteString(strings.Join(lines[start:end], "\n"))

	return MainStyle.Width(width).Height(m.height - 2).Render(s.String())
}

func (m Model) renderStatusBar() string {
	help := "enter:open  x:complete  m:minutes  f:feedback  i:login  g:google  L:logout  ?:help  q:quit"
	if m.pane == PaneReader {
		help = "j/k:scroll  esc:back  x:complete  f:feedback  ?:help  q:quit"
	}
	if m.message != "" {
		help = m.message
	}

	status := ""
	if m.inflight > 0 || m.app.Auth.State().IsLoading {
		status = LoadingStyle.Render("working...")
	}

	if status != "" {
		avail := m.width - lipgloss.Width(help) - lipgloss.Width(status) - 4
		if avail > 0 {
			help += strings.Repeat(" ", avail) + status
		} else {
			help += " " + status
		}
	}

	return StatusBarStyle.Width(m.width).Render(help)
}

func (m Model) renderModal() string {
	title := "Log in"
	switch m.mode {
	case ModeLoginPassword:
		title = "Password for " + m.loginEmail
	case ModeFeedback:
		title = "Send feedback"
	case ModeAddTime:
		title = "Add study time"
	}

	content := lipgloss.NewStyle().Bold(true).Render(title) + "\n\n"
	content += m.input.View() + "\n\n"
	content += HelpStyle.Render("Enter:submit  Esc:cancel")

	return ModalStyle.Render(content)
}

func (m Model) renderOAuthError() string {
	content := ErrorStyle.Render("Google sign-in failed") + "\n\n"
	content += m.oauthErr + "\n\n"
	content += HelpStyle.Render("Press any key to close")
	return ErrorModalStyle.Width(50).Render(content)
}

func (m Model) renderHelp() string {
	help := `
╭─── Keyboard Shortcuts ───╮
│                          │
│  Navigation              │
│  ──────────              │
│  j/↓    Move down        │
│  k/↑    Move up          │
│  h/l    Switch pane      │
│  Tab    Switch pane      │
│  Enter  Open lesson      │
│  Esc    Back to list     │
│                          │
│  Progress                │
│  ────────                │
│  x      Mark complete    │
│  m      Add minutes      │
│                          │
│  Account                 │
│  ───────                 │
│  i      Log in           │
│  g      Google sign-in   │
│  L      Log out          │
│                          │
│  Other                   │
│  ─────                   │
│  f      Send feedback    │
│  r      Refresh          │
│  ?      Toggle help      │
│  q      Quit             │
│                          │
╰──────────────────────────╯

     Press any key to close
`
	return lipgloss.Place(m.width, m.height-2, lipgloss.Center, lipgloss.Center, help)
}
