package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/existflow/learnportal/internal/app"
	"github.com/existflow/learnportal/internal/logger"
	"github.com/existflow/learnportal/internal/model"
)

// Pane represents which pane is focused
type Pane int

const (
	PaneTopics Pane = iota
	PaneLessons
	PaneReader
)

// Mode represents the current UI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeLoginEmail
	ModeLoginPassword
	ModeFeedback
	ModeAddTime
	ModeHelp
	ModeOAuthError
)

// Model is the main TUI model
type Model struct {
	ctx context.Context
	app *app.App

	lessons []model.Lesson
	current *model.Lesson

	// UI state
	width       int
	height      int
	pane        Pane
	mode        Mode
	topicCursor int
	cursor      int
	scroll      int

	// Input
	input      textinput.Model
	loginEmail string

	// inflight counts running network commands
	inflight int
	message  string
	oauthErr string
}

// NewModel creates a new TUI model
func NewModel(ctx context.Context, a *app.App) Model {
	logger.Info("Initializing TUI model")

	ti := textinput.New()
	ti.CharLimit = 512
	ti.Width = 50

	return Model{
		ctx:   ctx,
		app:   a,
		pane:  PaneLessons,
		mode:  ModeNormal,
		input: ti,
	}
}

func (m *Model) currentLesson() *model.Lesson {
	if m.cursor < len(m.lessons) {
		return &m.lessons[m.cursor]
	}
	return nil
}

func (m *Model) currentTopic() model.Topic {
	return model.Curriculum[m.topicCursor]
}

func (m *Model) loggedIn() bool {
	return m.app.Auth.HasSession()
}
