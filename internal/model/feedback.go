package model

import "time"

// Feedback is a free-text message submitted from a page
type Feedback struct {
	ID          string    `json:"id"`
	Message     string    `json:"message"`
	UserID      string    `json:"userId,omitempty"`
	UserEmail   string    `json:"userEmail,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	PageContext string    `json:"pageContext,omitempty"`
}
