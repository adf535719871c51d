package router

import (
	"errors"
	"fmt"
)

// notConfiguredError signals that a backend does not serve the requested model.
type notConfiguredError struct{ backend, model string }

func (e notConfiguredError) Error() string {
	return fmt.Sprintf("%s: model %q not configured", e.backend, e.model)
}

// ErrNotConfigured constructs a notConfiguredError.
func ErrNotConfigured(backend, model string) error {
	return notConfiguredError{backend: backend, model: model}
}

// IsNotConfigured reports whether err means the backend should be skipped.
func IsNotConfigured(err error) bool {
	var nc notConfiguredError
	return errors.As(err, &nc)
}

// localUnavailableError means a configured local model is missing on disk.
type localUnavailableError struct{ path string }

func (e localUnavailableError) Error() string {
	return "local model not found at " + e.path
}

// IsLocalUnavailable reports whether err indicates a missing local model path.
func IsLocalUnavailable(err error) bool {
	var lu localUnavailableError
	return errors.As(err, &lu)
}

// HTTPStatusError is returned when the remote API answers with a non-2xx status.
type HTTPStatusError struct {
	Status string
	Code   int
	Body   string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return "http error: " + e.Status
	}
	return "http error: " + e.Status + ": " + e.Body
}

// StatusCode returns the upstream HTTP status code.
func (e *HTTPStatusError) StatusCode() int { return e.Code }
