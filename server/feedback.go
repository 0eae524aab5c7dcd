package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/existflow/learnportal/internal/logger"
	"github.com/existflow/learnportal/internal/model"
	"github.com/labstack/echo/v4"
	"github.com/segmentio/ksuid"
)

type feedbackRequest struct {
	Message     string `json:"message" validate:"required,max=5000"`
	PageContext string `json:"pageContext" validate:"max=500"`
}

// handleSubmitFeedback stores a feedback message, attributed to the caller
// when optionalAuth recognised a token
func (s *Server) handleSubmitFeedback(c echo.Context) error {
	var req feedbackRequest
	if ok, err := s.bind(c, &req); !ok {
		return err
	}

	fb := &model.Feedback{
		ID:          ksuid.New().String(),
		Message:     req.Message,
		UserID:      contextString(c, "user_id"),
		UserEmail:   contextString(c, "user_email"),
		PageContext: req.PageContext,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}

	if err := s.repo.CreateFeedback(c.Request().Context(), fb); err != nil {
		return internalError(c, "failed to store feedback", err)
	}

	logger.Info("Feedback received",
		logger.F("id", fb.ID),
		logger.F("user_id", fb.UserID),
		logger.F("page", fb.PageContext))

	return c.JSON(http.StatusCreated, fb)
}

func (s *Server) handleListFeedback(c echo.Context) error {
	items, err := s.repo.ListFeedback(c.Request().Context())
	if err != nil {
		return internalError(c, "failed to list feedback", err)
	}
	if items == nil {
		items = []model.Feedback{}
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) handleGetFeedback(c echo.Context) error {
	fb, err := s.repo.GetFeedback(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrFeedbackNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "feedback not found"})
	}
	if err != nil {
		return internalError(c, "failed to load feedback", err)
	}
	return c.JSON(http.StatusOK, fb)
}
