package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all key bindings
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	Tab      key.Binding
	Enter    key.Binding
	Complete key.Binding
	Time     key.Binding
	Feedback key.Binding
	Login    key.Binding
	Google   key.Binding
	Help     key.Binding
	Quit     key.Binding
	Escape   key.Binding
	Logout   key.Binding
	Refresh  key.Binding
}

var keys = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Left:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left pane")),
	Right:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right pane")),
	Tab:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
	Enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
	Complete: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "mark complete")),
	Time:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "add minutes")),
	Feedback: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "feedback")),
	Login:    key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "log in")),
	Google:   key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "Google sign-in")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Escape:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Logout:   key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "logout")),
	Refresh:  key.NewBinding(key.WithKeys("R", "r"), key.WithHelp("R", "refresh")),
}
