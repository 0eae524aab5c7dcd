// Package auth owns the portal's authentication session.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/existflow/learnportal/internal/api"
	"github.com/existflow/learnportal/internal/logger"
	"github.com/existflow/learnportal/internal/model"
	"github.com/existflow/learnportal/internal/store"
)

// Backend is the subset of the API client the manager drives
type Backend interface {
	Login(ctx context.Context, email, password string) (*api.AuthResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error)
	ConfirmSignUp(ctx context.Context, email, code string) error
	ResendConfirmation(ctx context.Context, email string) error
	GoogleAuthURL(ctx context.Context, redirectURI string) (string, error)
	GoogleOAuth(ctx context.Context, code, redirectURI, state string) (*api.AuthResponse, error)
}

// Navigator performs the full navigation to the provider's authorization page
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// State is a snapshot of the session. User and Token are set and cleared
// together; RequiresVerification implies User == nil.
type State struct {
	User                 *model.User
	Token                string
	IsLoading            bool
	RequiresVerification bool
	VerificationEmail    string
}

// LoggedIn reports whether a session exists
func (s State) LoggedIn() bool { return s.User != nil }

// IdentityObserver is told about every change of the logged in identity
type IdentityObserver func(ctx context.Context, user *model.User)

// markers in a failed login body meaning the account exists but is unconfirmed
var notConfirmedMarkers = []string{
	"not confirmed",
	"usernotconfirmedexception",
	"not verified",
}

// Manager mediates every authentication-affecting operation
type Manager struct {
	backend Backend
	store   store.Store
	origin  string
	nav     Navigator

	mu        sync.Mutex
	state     State
	identity  []IdentityObserver
	listeners []func(State)
}

// New creates a manager. origin is the redirect target root for OAuth.
func New(backend Backend, st store.Store, origin string, nav Navigator) *Manager {
	return &Manager{
		backend: backend,
		store:   st,
		origin:  origin,
		nav:     nav,
	}
}

// RedirectURI is the origin root passed to the backend for OAuth flows
func (m *Manager) RedirectURI() string {
	return strings.TrimRight(m.origin, "/") + "/"
}

// OnIdentityChange registers an observer of identity changes
func (m *Manager) OnIdentityChange(fn IdentityObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = append(m.identity, fn)
}

// OnChange registers an observer called after every state mutation
func (m *Manager) OnChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// State returns a copy of the current state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Token returns the current bearer token, empty without a session
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Token
}

// HasSession reports whether a user is logged in
func (m *Manager) HasSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.User != nil
}

func (m *Manager) snapshotLocked() State {
	s := m.state
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// update applies fn under the lock, then notifies observers outside it
func (m *Manager) update(ctx context.Context, fn func(s *State)) {
	m.mu.Lock()
	before := m.state.User
	fn(&m.state)
	after := m.snapshotLocked()
	identity := append([]IdentityObserver(nil), m.identity...)
	listeners := append(([]func(State))(nil), m.listeners...)
	m.mu.Unlock()

	if !model.SameIdentity(before, after.User) {
		for _, obs := range identity {
			obs(ctx, after.User)
		}
	}
	for _, l := range listeners {
		l(after)
	}
}

// begin raises isLoading; the returned func lowers it and must be deferred
func (m *Manager) begin(ctx context.Context) func() {
	m.update(ctx, func(s *State) { s.IsLoading = true })
	return func() {
		m.update(ctx, func(s *State) { s.IsLoading = false })
	}
}

// Hydrate restores the session persisted by a previous run. Corrupt or
// half-written entries are removed and treated as "no session".
func (m *Manager) Hydrate(ctx context.Context) error {
	token, hasToken, err := m.store.Get(ctx, store.KeyAuthToken)
	if err != nil {
		return err
	}
	rawUser, hasUser, err := m.store.Get(ctx, store.KeyAuthUser)
	if err != nil {
		return err
	}
	if !hasToken && !hasUser {
		return nil
	}

	var user model.User
	if hasToken && hasUser && token != "" {
		err := json.Unmarshal([]byte(rawUser), &user)
		switch {
		case err != nil:
			logger.Warn("Stored user is corrupt, clearing session", logger.Err(err))
		case user.Email == "":
			logger.Warn("Stored user has no email, clearing session")
		default:
			m.update(ctx, func(s *State) {
				s.User = &user
				s.Token = token
			})
			logger.Info("Session restored", logger.F("email", user.Email))
			return nil
		}
	} else {
		logger.Warn("Stored session is incomplete, clearing it",
			logger.F("hasToken", hasToken), logger.F("hasUser", hasUser))
	}

	m.clearStore(ctx)
	return nil
}

// Login authenticates with email and password
func (m *Manager) Login(ctx context.Context, email, password string) error {
	defer m.begin(ctx)()
	m.update(ctx, func(s *State) {
		s.RequiresVerification = false
		s.VerificationEmail = ""
	})

	resp, err := m.backend.Login(ctx, email, password)
	if err != nil {
		msg := api.BackendMessage(err, "Login failed")
		if isNotConfirmed(err) {
			m.update(ctx, func(s *State) {
				s.RequiresVerification = true
				s.VerificationEmail = email
			})
			logger.Info("Login requires email verification", logger.F("email", email))
			return &Error{Kind: KindVerificationRequired, Message: msg, Err: err}
		}
		logger.Warn("Login failed", logger.F("email", email), logger.Err(err))
		return &Error{Kind: KindAuthFailed, Message: msg, Err: err}
	}

	return m.establish(ctx, resp.Token, model.User{
		Email:     firstNonEmpty(resp.Email, email),
		FirstName: resp.FirstName,
		LastName:  resp.LastName,
	}, KindAuthFailed)
}

// Register creates an account. It returns true when the backend requires
// email verification; in that case no session is established.
func (m *Manager) Register(ctx context.Context, req api.RegisterRequest) (bool, error) {
	defer m.begin(ctx)()
	m.update(ctx, func(s *State) {
		s.RequiresVerification = false
		s.VerificationEmail = ""
	})

	resp, err := m.backend.Register(ctx, req)
	if err != nil {
		logger.Warn("Registration failed", logger.F("email", req.Email), logger.Err(err))
		return false, &Error{Kind: KindRegistrationFailed, Message: api.BackendMessage(err, "Registration failed"), Err: err}
	}

	if resp.RequiresVerification {
		m.update(ctx, func(s *State) {
			s.RequiresVerification = true
			s.VerificationEmail = req.Email
		})
		logger.Info("Registration pending verification", logger.F("email", req.Email))
		return true, nil
	}

	err = m.establish(ctx, resp.Token, model.User{
		Email:     firstNonEmpty(resp.Email, req.Email),
		FirstName: firstNonEmpty(resp.FirstName, req.FirstName),
		LastName:  firstNonEmpty(resp.LastName, req.LastName),
	}, KindRegistrationFailed)
	return false, err
}

// ConfirmSignUp submits the verification code. It does not log the user in.
func (m *Manager) ConfirmSignUp(ctx context.Context, email, code string) error {
	defer m.begin(ctx)()

	if err := m.backend.ConfirmSignUp(ctx, email, code); err != nil {
		logger.Warn("Confirmation failed", logger.F("email", email), logger.Err(err))
		return &Error{Kind: KindConfirmFailed, Message: api.BackendMessage(err, "Confirmation failed"), Err: err}
	}

	m.update(ctx, func(s *State) {
		s.RequiresVerification = false
		s.VerificationEmail = ""
	})
	logger.Info("Sign-up confirmed", logger.F("email", email))
	return nil
}

// ResendConfirmationCode asks the backend to send a new code
func (m *Manager) ResendConfirmationCode(ctx context.Context, email string) error {
	defer m.begin(ctx)()

	if err := m.backend.ResendConfirmation(ctx, email); err != nil {
		return &Error{Kind: KindResendFailed, Message: api.BackendMessage(err, "Failed to resend confirmation code"), Err: err}
	}
	return nil
}

// LoginWithGoogle fetches the provider URL and navigates to it. Completion
// arrives later through HandleGoogleCallback.
func (m *Manager) LoginWithGoogle(ctx context.Context) error {
	defer m.begin(ctx)()

	authURL, err := m.backend.GoogleAuthURL(ctx, m.RedirectURI())
	if err == nil && authURL == "" {
		err = errors.New("empty authUrl in response")
	}
	if err != nil {
		logger.Warn("Failed to get Google auth URL", logger.Err(err))
		return &Error{Kind: KindGoogleAuthURLFailed, Message: api.BackendMessage(err, "Failed to get Google auth URL"), Err: err}
	}

	logger.Info("Navigating to Google sign-in")
	if err := m.nav.Navigate(ctx, authURL); err != nil {
		return &Error{Kind: KindGoogleAuthURLFailed, Message: "Failed to open Google sign-in", Err: err}
	}
	return nil
}

// HandleGoogleCallback exchanges the authorization code for a session
func (m *Manager) HandleGoogleCallback(ctx context.Context, code, state string) error {
	defer m.begin(ctx)()

	resp, err := m.backend.GoogleOAuth(ctx, code, m.RedirectURI(), state)
	if err != nil {
		logger.Warn("Google OAuth exchange failed", logger.Err(err))
		return &Error{Kind: KindGoogleOAuthFailed, Message: api.BackendMessage(err, "Google OAuth failed"), Err: err}
	}

	return m.establish(ctx, resp.Token, model.User{
		Email:     resp.Email,
		FirstName: resp.FirstName,
		LastName:  resp.LastName,
	}, KindGoogleOAuthFailed)
}

// Logout clears the session in memory and in the store. It never fails.
func (m *Manager) Logout(ctx context.Context) {
	m.update(ctx, func(s *State) {
		*s = State{}
	})
	m.clearStore(ctx)
	logger.Info("Logged out")
}

// establish sets user and token together and mirrors them into the store
func (m *Manager) establish(ctx context.Context, token string, user model.User, kind Kind) error {
	if token == "" || user.Email == "" {
		return &Error{Kind: kind, Message: "Incomplete session in response"}
	}

	data, err := json.Marshal(user)
	if err != nil {
		return &Error{Kind: kind, Message: "Failed to store session", Err: err}
	}
	if err := m.store.Set(ctx, store.KeyAuthToken, token); err != nil {
		return &Error{Kind: kind, Message: "Failed to store session", Err: err}
	}
	if err := m.store.Set(ctx, store.KeyAuthUser, string(data)); err != nil {
		_ = m.store.Remove(ctx, store.KeyAuthToken)
		return &Error{Kind: kind, Message: "Failed to store session", Err: err}
	}

	m.update(ctx, func(s *State) {
		s.User = &user
		s.Token = token
		s.RequiresVerification = false
		s.VerificationEmail = ""
	})
	logger.Info("Session established", logger.F("email", user.Email))
	return nil
}

func (m *Manager) clearStore(ctx context.Context) {
	for _, key := range []string{store.KeyAuthToken, store.KeyAuthUser} {
		if err := m.store.Remove(ctx, key); err != nil {
			logger.Warn("Failed to remove stored session entry", logger.F("key", key), logger.Err(err))
		}
	}
}

func isNotConfirmed(err error) bool {
	var httpErr *api.HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	body := strings.ToLower(httpErr.Body)
	for _, marker := range notConfirmedMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
