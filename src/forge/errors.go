package forge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from a forge API.
type APIError struct {
	Forge      Provider
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API %s %s: %d %s", e.Forge, e.Method, e.URL, e.StatusCode, e.Body)
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the forge.
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// IsConflict reports whether err says the resource already exists.
// GitHub answers a duplicate asset name with 422, Gitea and GitLab with 409.
func IsConflict(err error) bool {
	s := statusOf(err)
	return s == http.StatusConflict || s == http.StatusUnprocessableEntity
}

// IsTransient reports whether retrying the request may succeed: network
// failures, timeouts, rate limiting, and server errors. Cancellation is
// never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	switch s := apiErr.StatusCode; {
	case s == http.StatusRequestTimeout, s == http.StatusTooManyRequests:
		return true
	case s >= 500:
		return true
	}
	return false
}
