package riot

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNotFound matches a RemoteError carrying 404.
var ErrNotFound = errors.New("not found")

// ErrInvalidKey matches a RemoteError carrying 401 or 403.
var ErrInvalidKey = errors.New("api key rejected")

// RemoteError is a non-2xx answer from the API. The body is never decoded.
type RemoteError struct {
	StatusCode int
	URL        string
	RetryAfter time.Duration
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("API returned status %d for %s", e.StatusCode, e.URL)
}

// Is lets callers use errors.Is(err, ErrNotFound) and errors.Is(err, ErrInvalidKey).
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrInvalidKey:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// TransportError is a network-level failure: timeout, DNS, connection reset.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusCode extracts the HTTP status of a RemoteError, or 0.
func StatusCode(err error) int {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}

// IsKeyError reports whether err means the API key is expired or forbidden.
func IsKeyError(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}
