package asr

import (
	"errors"
	"fmt"
)

// ErrTimeout reports that a backend call exceeded its deadline.
var ErrTimeout = errors.New("transcription timed out")

// NetworkError reports a transport-level failure reaching a backend.
// Network errors are transient and eligible for retry.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// BackendError reports that a backend was reached but refused or
// failed the request. Not retried.
type BackendError struct {
	Provider string
	Status   int
	Message  string
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s backend error (status %d): %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s backend error: %s", e.Provider, e.Message)
}

// FormatError reports audio the backend could not accept. Not retried.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("audio format rejected: %s", e.Reason)
}

// IsTransient reports whether a backend failure is worth retrying.
// Malformed audio and authentication failures are final; transport
// failures and timeouts are not.
func IsTransient(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, ErrTimeout)
}
