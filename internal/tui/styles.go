package tui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	// Status colors
	Completed = lipgloss.Color("#95E1A3") // Green
	Loading   = lipgloss.Color("#FFE66D") // Yellow
	ErrorRed  = lipgloss.Color("#FF6B6B") // Red

	// Track colors
	TrackCoreColor = lipgloss.Color("#4ECDC4")
	TrackWebColor  = lipgloss.Color("#B39DDB")

	// UI colors
	Primary   = lipgloss.Color("#4ECDC4")
	Surface   = lipgloss.Color("#16213e")
	TextMuted = lipgloss.Color("#888888")
	Border    = lipgloss.Color("#333333")
)

// Styles
var (
	// Sidebar
	SidebarStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(Border).
			Padding(1, 1)

	// Lesson list and reader
	MainStyle = lipgloss.NewStyle().
			Padding(1, 2)

	ItemStyle = lipgloss.NewStyle().
			Padding(0, 1)

	ItemSelectedStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(Surface).
				Bold(true)

	ItemDoneStyle = lipgloss.NewStyle().
			Foreground(Completed).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	ProgressFilledStyle = lipgloss.NewStyle().Foreground(Completed)
	ProgressEmptyStyle  = lipgloss.NewStyle().Foreground(Border)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(Border)

	LoadingStyle = lipgloss.NewStyle().Foreground(Loading)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ErrorRed).Bold(true)

	// Input modal
	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2)

	ErrorModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ErrorRed).
			Padding(1, 2)

	// Help text
	HelpStyle = lipgloss.NewStyle().
			Foreground(TextMuted)
)

// TrackBadge renders a short label for a lesson track
func TrackBadge(aspnet bool) string {
	if aspnet {
		return lipgloss.NewStyle().Foreground(TrackWebColor).Render("web")
	}
	return lipgloss.NewStyle().Foreground(TrackCoreColor).Render("c# ")
}
