package client

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
)

// ServerRejection is a non-2xx answer other than 401. Message is the
// backend's own text, passed through unchanged.
type ServerRejection struct {
	StatusCode int
	Message    string
}

func (e *ServerRejection) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server rejected request: status %d", e.StatusCode)
	}
	return fmt.Sprintf("server rejected request: status %d: %s", e.StatusCode, e.Message)
}
