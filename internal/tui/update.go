package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/learnportal/internal/api"
	"github.com/existflow/learnportal/internal/auth"
	"github.com/existflow/learnportal/internal/logger"
	"github.com/existflow/learnportal/internal/model"
	"github.com/existflow/learnportal/internal/oauth"
)

// googleTimeout bounds how long the TUI waits for the OAuth redirect
const googleTimeout = 5 * time.Minute

// lessonsMsg carries both tracks' lessons
type lessonsMsg struct {
	lessons []model.Lesson
	err     error
}

// lessonMsg carries one fully loaded lesson
type lessonMsg struct {
	lesson *model.Lesson
	id     string
	err    error
}

// authMsg is sent when a login or logout settles
type authMsg struct {
	action string
	err    error
}

// googleMsg is sent when the OAuth callback listener reports
type googleMsg struct {
	outcome oauth.Outcome
	err     error
}

// feedbackMsg is sent when feedback submission settles
type feedbackMsg struct {
	fb  *model.Feedback
	err error
}

// Init loads the lesson list
func (m Model) Init() tea.Cmd {
	return m.loadLessons()
}

func (m Model) loadLessons() tea.Cmd {
	client := m.app.API
	ctx := m.ctx
	return func() tea.Msg {
		var all []model.Lesson
		for _, track := range []model.Track{model.TrackCore, model.TrackASPNETCore} {
			lessons, err := client.ListLessons(ctx, track)
			if err != nil {
				return lessonsMsg{err: err}
			}
			all = append(all, lessons...)
		}
		return lessonsMsg{lessons: all}
	}
}

func (m Model) loadLesson(id string) tea.Cmd {
	client := m.app.API
	ctx := m.ctx
	return func() tea.Msg {
		lesson, err := client.GetLessonAnyTrack(ctx, id)
		return lessonMsg{lesson: lesson, id: id, err: err}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case lessonsMsg:
		m.settle()
		if msg.err != nil {
			m.message = fmt.Sprintf("Failed to load lessons: %v", msg.err)
			return m, nil
		}
		m.lessons = msg.lessons
		if m.cursor >= len(m.lessons) {
			m.cursor = 0
		}
		m.message = fmt.Sprintf("Loaded %d lessons", len(m.lessons))
		return m, nil

	case lessonMsg:
		m.settle()
		if errors.Is(msg.err, api.ErrLessonNotFound) {
			m.message = fmt.Sprintf("Lesson %s not found", msg.id)
			return m, nil
		}
		if msg.err != nil {
			m.message = fmt.Sprintf("Failed to load lesson: %v", msg.err)
			return m, nil
		}
		m.current = msg.lesson
		m.scroll = 0
		m.pane = PaneReader
		return m, nil

	case authMsg:
		m.settle()
		switch {
		case errors.Is(msg.err, auth.ErrVerificationRequired):
			m.message = fmt.Sprintf("%s is not confirmed. Run 'portal auth confirm' then log in again.",
				m.app.Auth.State().VerificationEmail)
		case msg.err != nil:
			m.message = msg.err.Error()
		default:
			m.message = msg.action
		}
		return m, nil

	case googleMsg:
		m.settle()
		switch {
		case msg.err != nil:
			m.message = msg.err.Error()
		case msg.outcome.State == oauth.Failed:
			m.oauthErr = msg.outcome.Err.Error()
			m.mode = ModeOAuthError
		case msg.outcome.State == oauth.Succeeded:
			m.message = "Signed in as " + m.app.Auth.State().User.DisplayName()
		}
		return m, nil

	case feedbackMsg:
		m.settle()
		if msg.err != nil {
			m.message = fmt.Sprintf("Feedback failed: %v", msg.err)
		} else {
			m.message = "Thanks! Feedback " + msg.fb.ID + " received"
		}
		return m, nil

	case tea.KeyMsg:
		// Handle mode-specific input
		switch m.mode {
		case ModeLoginEmail, ModeLoginPassword, ModeFeedback, ModeAddTime:
			return m.updateInput(msg)
		case ModeHelp, ModeOAuthError:
			m.mode = ModeNormal
			return m, nil
		}

		// Normal mode key handling
		return m.handleNormalKeys(msg)
	}

	return m, nil
}

// handleNormalKeys handles key presses in normal mode
func (m Model) handleNormalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Tab):
		if m.pane == PaneTopics {
			m.pane = PaneLessons
		} else {
			m.pane = PaneTopics
		}

	case key.Matches(msg, keys.Left):
		if m.pane == PaneReader {
			m.pane = PaneLessons
		} else {
			m.pane = PaneTopics
		}

	case key.Matches(msg, keys.Right):
		m.pane = PaneLessons

	case key.Matches(msg, keys.Escape):
		if m.pane == PaneReader {
			m.pane = PaneLessons
		}

	case key.Matches(msg, keys.Up):
		m.handleUp()

	case key.Matches(msg, keys.Down):
		m.handleDown()

	case key.Matches(msg, keys.Enter):
		if m.pane == PaneLessons {
			if l := m.currentLesson(); l != nil {
				m.inflight++
				return m, m.loadLesson(l.ID)
			}
		}

	case key.Matches(msg, keys.Complete):
		m.handleComplete()

	case key.Matches(msg, keys.Time):
		if m.requireLogin() {
			return m.startInput(ModeAddTime, "Minutes studied", false)
		}

	case key.Matches(msg, keys.Feedback):
		return m.startInput(ModeFeedback, "What should we improve?", false)

	case key.Matches(msg, keys.Login):
		if m.loggedIn() {
			m.message = "Already logged in"
			return m, nil
		}
		return m.startInput(ModeLoginEmail, "Email", false)

	case key.Matches(msg, keys.Google):
		return m.startGoogle()

	case key.Matches(msg, keys.Help):
		m.mode = ModeHelp

	case key.Matches(msg, keys.Logout):
		if m.loggedIn() {
			m.app.Auth.Logout(m.ctx)
			m.message = "Logged out"
		}

	case key.Matches(msg, keys.Refresh):
		m.inflight++
		m.message = "Refreshing..."
		return m, m.loadLessons()
	}

	return m, nil
}

// settle records that one network command finished
func (m *Model) settle() {
	if m.inflight > 0 {
		m.inflight--
	}
}

func (m *Model) handleUp() {
	switch m.pane {
	case PaneTopics:
		if m.topicCursor > 0 {
			m.topicCursor--
		}
	case PaneLessons:
		if m.cursor > 0 {
			m.cursor--
		}
	case PaneReader:
		if m.scroll > 0 {
			m.scroll--
		}
	}
}

func (m *Model) handleDown() {
	switch m.pane {
	case PaneTopics:
		if m.topicCursor < len(model.Curriculum)-1 {
			m.topicCursor++
		}
	case PaneLessons:
		if m.cursor < len(m.lessons)-1 {
			m.cursor++
		}
	case PaneReader:
		m.scroll++
	}
}

func (m *Model) requireLogin() bool {
	if m.loggedIn() {
		return true
	}
	m.message = "Log in first (i or g)"
	return false
}

// handleComplete marks the focused topic or lesson complete
func (m *Model) handleComplete() {
	if !m.requireLogin() {
		return
	}

	var err error
	switch m.pane {
	case PaneTopics:
		topic := m.currentTopic()
		err = m.app.Progress.MarkTopicComplete(m.ctx, topic.ID)
		if err == nil {
			m.message = fmt.Sprintf("✓ %s (%d%%)", topic.Title, m.app.Progress.CompletionPercentage())
		}
	case PaneLessons, PaneReader:
		l := m.current
		if m.pane == PaneLessons {
			l = m.currentLesson()
		}
		if l == nil {
			return
		}
		err = m.app.Progress.MarkLessonComplete(m.ctx, l.ID)
		if err == nil {
			m.message = "✓ " + l.Title
		}
	}
	if err != nil {
		logger.Error("Failed to save progress", logger.Err(err))
		m.message = fmt.Sprintf("Failed to save progress: %v", err)
	}
}

func (m Model) startInput(mode Mode, placeholder string, password bool) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.input.SetValue("")
	m.input.Placeholder = placeholder
	m.input.EchoMode = textinput.EchoNormal
	if password {
		m.input.EchoMode = textinput.EchoPassword
	}
	m.input.Focus()
	return m, textinput.Blink
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		m.mode = ModeNormal
		m.input.Blur()
		return m, nil

	case key.Matches(msg, keys.Enter):
		value := strings.TrimSpace(m.input.Value())
		if value == "" {
			m.mode = ModeNormal
			return m, nil
		}

		switch m.mode {
		case ModeLoginEmail:
			m.loginEmail = value
			return m.startInput(ModeLoginPassword, "Password", true)

		case ModeLoginPassword:
			m.mode = ModeNormal
			m.input.Blur()
			m.input.SetValue("")
			m.inflight++
			m.message = "Logging in..."
			return m, m.login(m.loginEmail, value)

		case ModeFeedback:
			m.mode = ModeNormal
			m.inflight++
			return m, m.sendFeedback(value)

		case ModeAddTime:
			m.mode = ModeNormal
			minutes, err := strconv.Atoi(value)
			if err != nil {
				m.message = fmt.Sprintf("Not a number: %s", value)
				return m, nil
			}
			if err := m.app.Progress.AddTimeSpent(m.ctx, minutes); err != nil {
				m.message = err.Error()
				return m, nil
			}
			m.message = fmt.Sprintf("Added %d minutes", minutes)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) login(email, password string) tea.Cmd {
	mgr := m.app.Auth
	ctx := m.ctx
	return func() tea.Msg {
		err := mgr.Login(ctx, email, password)
		return authMsg{action: "Logged in as " + email, err: err}
	}
}

func (m Model) sendFeedback(message string) tea.Cmd {
	client := m.app.API
	ctx := m.ctx
	page := "tui"
	if m.current != nil && m.pane == PaneReader {
		page = "lesson-" + m.current.ID
	}
	return func() tea.Msg {
		fb, err := client.SubmitFeedback(ctx, message, page)
		return feedbackMsg{fb: fb, err: err}
	}
}

// startGoogle runs the whole OAuth flow as one command: listen on the
// origin, open the provider page, then wait for the handshake outcome
func (m Model) startGoogle() (tea.Model, tea.Cmd) {
	if m.loggedIn() {
		m.message = "Already logged in"
		return m, nil
	}

	a := m.app
	ctx := m.ctx
	m.inflight++
	m.message = "Continue sign-in in your browser..."
	return m, func() tea.Msg {
		srv, err := a.CallbackServer()
		if err != nil {
			return googleMsg{err: err}
		}
		if err := srv.Start(); err != nil {
			return googleMsg{err: err}
		}
		defer func() { _ = srv.Close() }()

		if err := a.Auth.LoginWithGoogle(ctx); err != nil {
			return googleMsg{err: err}
		}

		waitCtx, cancel := context.WithTimeout(ctx, googleTimeout)
		defer cancel()
		out, err := srv.Wait(waitCtx)
		return googleMsg{outcome: out, err: err}
	}
}
