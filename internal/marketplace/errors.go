package marketplace

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a transport failure.
type ErrorKind int

const (
	// KindNetwork covers unreachable hosts, timeouts and an open breaker.
	KindNetwork ErrorKind = iota
	// KindServer covers non-2xx responses other than validation failures.
	KindServer
	// KindValidation covers 400 and 422 responses.
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// ErrShapeMismatch marks a list response in none of the accepted shapes.
// List degrades to an empty feed instead of returning it.
var ErrShapeMismatch = errors.New("unrecognized notification payload shape")

// Error is returned by every Client and Adapter call that fails.
type Error struct {
	Op         string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s error (%d): %v", e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AuthError indicates that the API token was rejected.
// It is returned by the client when a 401 response is received.
type AuthError struct {
	BaseURL string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.BaseURL, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsNotFound reports whether err is a 404 from the marketplace.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == http.StatusNotFound
}

// IsValidation reports whether the server rejected the request payload.
func IsValidation(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindValidation
}

// KindOf returns the kind of a transport error, or KindNetwork for errors
// that never reached the server.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNetwork
}

func kindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindServer
	}
}
