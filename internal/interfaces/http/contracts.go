package http

import (
	"time"

	"github.com/sawpanic/pointrun/internal/persistence"
)

// RunResponse wraps a stored run for the /runs/{id} endpoint
type RunResponse struct {
	Run       *persistence.Run `json:"run"`
	RequestID string           `json:"request_id"`
	Timestamp time.Time        `json:"timestamp"`
}

// ErrorResponse represents API error responses
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
