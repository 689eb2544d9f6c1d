package gotrue

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidEmail is returned before any request when an email address is malformed.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidPassword is returned before any request when a password fails the policy.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrNoSession is returned by operations that need a stored session.
	ErrNoSession = errors.New("no session")
	// ErrInvalidCallback is returned when a callback URL carries no usable tokens.
	ErrInvalidCallback = errors.New("invalid auth callback")
	// ErrURLRequired is returned by New when Config.URL is empty.
	ErrURLRequired = errors.New("gotrue url required")
	// ErrStorageRequired is returned by New without a Storage.
	ErrStorageRequired = errors.New("gotrue storage required")
)

// APIError is a non-2xx response from the auth server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gotrue: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("gotrue: %d: %s", e.Status, e.Message)
}

// ClientError reports whether the server rejected the request itself, as opposed to
// failing to serve it.
func (e *APIError) ClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

func isStatus(err error, statuses ...int) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, s := range statuses {
		if apiErr.Status == s {
			return true
		}
	}
	return false
}

func isClientError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.ClientError() && apiErr.Status != http.StatusTooManyRequests
}
