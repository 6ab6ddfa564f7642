package mediaserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds. A *RequestError unwraps to exactly one of these.
var (
	// ErrNetwork covers unreachable servers, timeouts and unexpected statuses.
	ErrNetwork = errors.New("media server unreachable")
	// ErrAuth means a login was refused or could not be completed.
	ErrAuth = errors.New("media server login failed")
	// ErrAuthExpired means the stored token was rejected; log in again.
	ErrAuthExpired = errors.New("media server token expired")
	// ErrNotAuthenticated is returned by calls that need a token before Login.
	ErrNotAuthenticated = errors.New("not logged in to media server")
	// ErrLibraryNotFound means an item has no library ancestor.
	ErrLibraryNotFound = errors.New("library not found for item")
)

// RequestError describes a failed call. URL is already redacted.
type RequestError struct {
	Op         string
	Method     string
	URL        string
	StatusCode int
	Reason     string
	Kind       error
	Err        error
}

func (e *RequestError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Method)
	b.WriteString(" ")
	b.WriteString(e.URL)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *RequestError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// statusKind maps a non-2xx status on an authenticated call to an error kind.
func statusKind(code int) error {
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return ErrAuthExpired
	}
	return ErrNetwork
}
