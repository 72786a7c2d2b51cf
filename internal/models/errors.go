package models

import "fmt"

// ValidationError represents a request validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}

// BasicResponse is the minimal status payload used by health endpoints.
type BasicResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}
