package untis

import (
	"errors"
	"fmt"
	"strings"
)

// JSON-RPC error codes the servers are known to send.
const (
	CodeMethodNotFound   = -32601
	CodeBadCredentials   = -8504
	CodeInvalidSchool    = -8500
	CodeNotAuthenticated = -8520
	CodeNoRight          = -8509
	CodeTooManyResults   = -6003
)

var (
	// ErrMissingCredentials is returned when an operation needs a stored
	// login and none exists for the user.
	ErrMissingCredentials = errors.New("no stored credentials for this user")

	// ErrNotImplemented marks operations of the HTML fallback that only
	// exist to keep the strategy chain total.
	ErrNotImplemented = errors.New("html fallback does not implement this operation yet")

	// ErrNoMethodLeft is returned when every candidate method name of an
	// operation was rejected by the server.
	ErrNoMethodLeft = errors.New("server accepted none of the candidate methods")

	// ErrNotAuthenticated gates data operations that need a session.
	ErrNotAuthenticated = errors.New("not authenticated against this server")
)

// ServerError is an application-level error reported by the server itself,
// as opposed to a transport or decode failure.
type ServerError struct {
	Code    int64
	Message string
}

func (e *ServerError) Error() string {
	msg := e.Message
	if friendly := friendlyServerMessage(e.Code); friendly != "" {
		msg = friendly
	}

	return fmt.Sprintf("server error %d: %s", e.Code, msg)
}

// IsMethodNotFound reports whether the server rejected the method name,
// which drives the candidate fallback chains.
func (e *ServerError) IsMethodNotFound() bool {
	return e.Code == CodeMethodNotFound
}

// IsBadCredentials reports a definitive credential rejection that must
// reach the caller unmasked.
func (e *ServerError) IsBadCredentials() bool {
	return e.Code == CodeBadCredentials
}

func friendlyServerMessage(code int64) string {
	switch code {
	case CodeBadCredentials:
		return "invalid user name and/or password"
	case CodeInvalidSchool:
		return "invalid school name"
	case CodeNotAuthenticated:
		return "not authenticated, log in again"
	case CodeNoRight:
		return "no right for the requested data"
	case CodeTooManyResults:
		return "too many results, narrow the requested range"
	}

	return ""
}

// TransportError wraps network-level failures so callers can tell them
// apart from answers the server actually gave.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError marks a payload the client could not make sense of.
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode %s: %v", e.What, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// HTTPError is a non-success status on a REST endpoint.
type HTTPError struct {
	Status int
	URL    string
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("server returned %d for %s", e.Status, e.URL)
}

// IsUnauthorized reports a 401/403 answer, which for probing purposes
// still proves the endpoint exists.
func (e *HTTPError) IsUnauthorized() bool {
	return e.Status == 401 || e.Status == 403
}

// TooOldError is raised when a timetable payload has the pre-2011 template
// shape that carries no absolute dates at all.
type TooOldError struct {
	Hint string
}

func (e *TooOldError) Error() string {
	return "server is too old to deliver dated timetables: " + e.Hint
}

// AuthAttempt records the outcome of one authentication strategy.
type AuthAttempt struct {
	Method string
	Err    error
}

// AuthFailedError aggregates the per-strategy failures after every enabled
// authentication path was tried.
type AuthFailedError struct {
	Attempts []AuthAttempt
}

func (e *AuthFailedError) Error() string {
	if len(e.Attempts) == 0 {
		return "authentication failed: no strategy was available"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Method, a.Err))
	}

	return "authentication failed: " + strings.Join(parts, "; ")
}

// BadCredentials walks an error chain and reports whether any link is a
// definitive credential rejection, in either protocol's spelling.
func BadCredentials(err error) bool {
	var se *ServerError
	if errors.As(err, &se) && se.IsBadCredentials() {
		return true
	}
	var he *HTTPError
	if errors.As(err, &he) && he.IsUnauthorized() {
		return true
	}
	var ae *AuthFailedError
	if errors.As(err, &ae) {
		for _, a := range ae.Attempts {
			if BadCredentials(a.Err) {
				return true
			}
		}
	}

	return false
}

// IsTransport reports whether the error chain contains a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
