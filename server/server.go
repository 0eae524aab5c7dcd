package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/existflow/learnportal/internal/logger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Config controls the development backend
type Config struct {
	// PublicURL is the externally reachable base URL, used to build the
	// fake provider's authorize and token endpoints
	PublicURL           string
	SigningKey          []byte
	TokenTTL            time.Duration
	RequireVerification bool
	// BcryptCost defaults to bcrypt.DefaultCost
	BcryptCost int
	// Quiet disables the console request line
	Quiet bool
}

// Server is the development backend for the portal client
type Server struct {
	cfg      Config
	repo     Repository
	codes    CodeStore
	lessons  *Curriculum
	tokens   *TokenSigner
	validate *validator.Validate
	echo     *echo.Echo

	mu        sync.RWMutex
	publicURL string
}

// New creates a new server
func New(cfg Config, repo Repository, codes CodeStore) (*Server, error) {
	if repo == nil || codes == nil {
		return nil, errors.New("repository and code store are required")
	}

	tokens, err := NewTokenSigner(cfg.SigningKey, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	lessons, err := LoadCurriculum()
	if err != nil {
		return nil, fmt.Errorf("failed to load curriculum: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		repo:      repo,
		codes:     codes,
		lessons:   lessons,
		tokens:    tokens,
		validate:  validator.New(),
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}

	s.setupEcho()

	return s, nil
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = s.cfg.Quiet

	e.Use(s.requestLogger)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())

	// Health check
	e.GET("/health", s.handleHealth)

	// Auth endpoints
	auth := e.Group("/api/auth")
	auth.POST("/login", s.handleLogin)
	auth.POST("/register", s.handleRegister)
	auth.POST("/confirm-signup", s.handleConfirmSignUp)
	auth.POST("/resend-confirmation", s.handleResendConfirmation)
	auth.GET("/google-auth-url", s.handleGoogleAuthURL)
	auth.POST("/google-oauth", s.handleGoogleOAuth)
	auth.GET("/me", s.handleMe, s.requireAuth)

	// Built-in OAuth provider
	e.GET("/oauth/authorize", s.handleAuthorize)
	e.POST("/oauth/token", s.handleToken)

	// Lessons
	e.GET("/lessons", s.handleListLessons)
	e.GET("/lessons/aspnetcore", s.handleListASPNETLessons)
	e.GET("/lessons/aspnetcore/:id", s.handleGetASPNETLesson)
	e.GET("/lessons/:id", s.handleGetLesson)

	// Feedback, attributed when a valid bearer token is present
	fb := e.Group("/feedback", s.optionalAuth)
	fb.POST("", s.handleSubmitFeedback)
	fb.GET("", s.handleListFeedback)
	fb.GET("/:id", s.handleGetFeedback)

	s.echo = e
}

// SetPublicURL changes the base URL used for provider endpoints. Tests call
// it once the listener address is known.
func (s *Server) SetPublicURL(u string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publicURL = strings.TrimRight(u, "/")
}

func (s *Server) baseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.publicURL
}

// Close releases the repository and code store
func (s *Server) Close() error {
	s.codes.Close()
	return s.repo.Close()
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.echo
}

// Start starts the server
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// bind decodes the request into v and checks its validate tags. When ok is
// false the 400 response has already been written.
func (s *Server) bind(c echo.Context, v interface{}) (ok bool, err error) {
	if err := c.Bind(v); err != nil {
		return false, c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if err := s.validate.Struct(v); err != nil {
		return false, c.JSON(http.StatusBadRequest, map[string]string{"error": validationMessage(err)})
	}
	return true, nil
}

func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "invalid request"
	}
	fe := errs[0]
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	default:
		return field + " is invalid"
	}
}

// internalError logs err and answers 500
func internalError(c echo.Context, msg string, err error) error {
	logger.Error(msg, logger.Err(err), logger.F("uri", c.Request().RequestURI))
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": msg})
}
