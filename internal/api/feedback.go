package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/existflow/learnportal/internal/model"
)

// ErrFeedbackSubmit wraps every failed feedback submission
var ErrFeedbackSubmit = errors.New("failed to submit feedback")

// SubmitFeedback posts a message, optionally tagged with the page it came from
func (c *Client) SubmitFeedback(ctx context.Context, message, pageContext string) (*model.Feedback, error) {
	body := struct {
		Message     string `json:"message"`
		PageContext string `json:"pageContext,omitempty"`
	}{message, pageContext}

	var fb model.Feedback
	if err := c.do(ctx, http.MethodPost, "/feedback", body, &fb); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeedbackSubmit, err)
	}
	return &fb, nil
}

// GetFeedback returns one feedback entry
func (c *Client) GetFeedback(ctx context.Context, id string) (*model.Feedback, error) {
	var fb model.Feedback
	if err := c.do(ctx, http.MethodGet, "/feedback/"+url.PathEscape(id), nil, &fb); err != nil {
		return nil, err
	}
	return &fb, nil
}

// ListFeedback returns all feedback entries
func (c *Client) ListFeedback(ctx context.Context) ([]model.Feedback, error) {
	var items []model.Feedback
	if err := c.do(ctx, http.MethodGet, "/feedback", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}
