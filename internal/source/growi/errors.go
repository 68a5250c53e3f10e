package growi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorKind string

const (
	// KindTransport means the request could not be completed.
	KindTransport ErrorKind = "transport"
	// KindStatus means the partner answered with a non-2xx status.
	KindStatus ErrorKind = "status"
	// KindShape means a 2xx body failed validation or reported success=false.
	KindShape ErrorKind = "shape"
)

// APIError is returned by the client for every failed page request.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	switch e.Kind {
	case KindTransport:
		return "growi request failed: " + e.Message
	case KindStatus:
		return fmt.Sprintf("growi returned status %d: %s", e.Status, e.Message)
	default:
		return "unexpected growi response shape: " + e.Message
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a failed page request may succeed if repeated:
// transport failures, 429, 5xx, and 422 responses reporting a partner-side
// request timeout.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.Kind {
	case KindTransport:
		return true
	case KindStatus:
		if apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError {
			return true
		}
		return apiErr.Status == http.StatusUnprocessableEntity &&
			strings.Contains(strings.ToLower(apiErr.Message), "request timeout")
	default:
		return false
	}
}
